// Package session orchestrates user actions: authentication, thread
// selection and management, and message submission with retrieval and a
// streamed reply. All per-user state lives in an explicit State value that
// each action receives and returns, so a transport can keep it wherever it
// likes (a cookie, a token, a client) and tests can drive actions directly.
package session

import "github.com/tbourn/smartlang-chat/internal/prompt"

// Level grades a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-visible message produced by an action.
type Notice struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// State is the serialisable session of one user.
type State struct {
	UserID        uint          `json:"user_id,omitempty"`
	Username      string        `json:"username,omitempty"`
	ThreadID      string        `json:"thread_id,omitempty"`
	Mode          prompt.Mode   `json:"mode"`
	History       []prompt.Turn `json:"history,omitempty"`
	PendingDelete string        `json:"pending_delete,omitempty"`
	Notices       []Notice      `json:"notices,omitempty"`
}

// LoggedIn reports whether the state belongs to an authenticated user.
func (s State) LoggedIn() bool { return s.UserID != 0 }

// LastNotice returns the most recent notice, if any.
func (s State) LastNotice() (Notice, bool) {
	if len(s.Notices) == 0 {
		return Notice{}, false
	}
	return s.Notices[len(s.Notices)-1], true
}

func (s *State) notify(l Level, text string) {
	s.Notices = append(s.Notices, Notice{Level: l, Text: text})
}

// begin starts an action: notices only describe the latest action.
func begin(s State) State {
	s.Notices = nil
	return s
}
