// Package prompt assembles the text prompt sent to the completion provider
// from a thread's conversation, the retrieved knowledge and the chat mode.
// Every function here is pure: identical inputs give byte-identical output.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

// Mode selects the instruction preamble.
type Mode int

const (
	Chat Mode = iota
	CodeAssistant
)

const (
	chatInstruction = "You are a helpful assistant. Keep responses clear and concise."
	codeInstruction = "You are a senior programming assistant. Provide runnable code examples, explain briefly, " +
		"and point out pitfalls. Prefer clear, tested snippets and mention required imports."
)

// String returns the display name of the mode.
func (m Mode) String() string {
	if m == CodeAssistant {
		return "Code Assistant"
	}
	return "Chat"
}

// ErrUnknownMode is returned by ParseMode for unrecognised names.
var ErrUnknownMode = errors.New("unknown mode")

// ParseMode accepts "chat", "code", "code assistant", "code_assistant" and
// "code-assistant" in any case. Blank input is Chat.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chat":
		return Chat, nil
	case "code", "code assistant", "code_assistant", "code-assistant", "codeassistant":
		return CodeAssistant, nil
	}
	return Chat, fmt.Errorf("%w %q", ErrUnknownMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Instruction returns the fixed preamble for mode.
func Instruction(m Mode) string {
	if m == CodeAssistant {
		return codeInstruction
	}
	return chatInstruction
}

// Turn is one conversation entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a titled piece of retrieved knowledge.
type Source struct {
	Title   string
	Content string
}

// FormatKnowledge renders sources as "DOCUMENT: <title>\n<content>" blocks
// separated by a blank line.
func FormatKnowledge(sources []Source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, "DOCUMENT: "+s.Title+"\n"+s.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Assemble builds the prompt:
//
//	<instruction>
//
//	Knowledge:
//	<knowledge>
//
//	Conversation:
//	User: ...
//	Assistant: ...
//
//	Assistant:
func Assemble(history []Turn, knowledge string, mode Mode) string {
	var b strings.Builder
	b.WriteString(Instruction(mode))
	b.WriteString("\n\nKnowledge:\n")
	b.WriteString(knowledge)
	b.WriteString("\n\nConversation:\n")
	for _, t := range history {
		b.WriteString(RoleLabel(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteByte('\n')
	}
	b.WriteString("\nAssistant:")
	return b.String()
}

// RoleLabel is the capitalized role used in the conversation block. Blank
// roles are labelled as the user.
func RoleLabel(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		role = string(domain.RoleUser)
	}
	// cases.Caser is stateful, so one per call.
	return cases.Title(language.Und, cases.NoLower).String(strings.ToLower(role))
}
