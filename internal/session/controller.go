package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/extract"
	"github.com/tbourn/smartlang-chat/internal/llm"
	"github.com/tbourn/smartlang-chat/internal/prompt"
	"github.com/tbourn/smartlang-chat/internal/services"
)

// ErrNotLoggedIn is reported by actions that need an authenticated user.
var ErrNotLoggedIn = errors.New("not logged in")

// Retriever selects the documents injected into a prompt.
type Retriever interface {
	Select(ctx context.Context, threadID, query string) ([]domain.Document, error)
}

// ExtractFunc turns an uploaded file into text.
type ExtractFunc func(name string, data []byte) (string, error)

// Observer receives chat outcomes for metrics.
type Observer interface {
	// Extraction is called with "saved", "empty" or "failed".
	Extraction(outcome string)
	// Title is called once per titling attempt.
	Title(fallback bool)
	// Reply is called with "complete", "incomplete" or "failed" and the
	// number of fragments received.
	Reply(outcome string, fragments int)
}

type nopObserver struct{}

func (nopObserver) Extraction(string) {}
func (nopObserver) Title(bool)        {}
func (nopObserver) Reply(string, int) {}

// Controller runs session actions against the services and the completion
// client.
type Controller struct {
	Auth      *services.AuthService
	Threads   *services.ThreadService
	Messages  *services.MessageService
	Documents *services.DocumentService
	Retriever Retriever
	LLM       llm.Client
	Extract   ExtractFunc
	Observer  Observer

	// Log is used when the context carries no logger.
	Log zerolog.Logger
}

// New returns a Controller that extracts uploads with extract.Text.
func New(auth *services.AuthService, threads *services.ThreadService, msgs *services.MessageService,
	docs *services.DocumentService, r Retriever, client llm.Client, log zerolog.Logger) *Controller {
	return &Controller{
		Auth:      auth,
		Threads:   threads,
		Messages:  msgs,
		Documents: docs,
		Retriever: r,
		LLM:       client,
		Extract:   extract.Text,
		Log:       log,
	}
}

func (c *Controller) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.Log
}

func (c *Controller) observer() Observer {
	if c.Observer != nil {
		return c.Observer
	}
	return nopObserver{}
}

// storeFailed records a generic failure notice and logs the cause.
func (c *Controller) storeFailed(ctx context.Context, st *State, op string, err error) {
	c.logger(ctx).Error().Err(err).Str("op", op).Str("thread_id", st.ThreadID).Msg("session action failed")
	st.notify(LevelError, "Operation failed, please try again.")
}

// Signup creates an account. Success asks the user to log in.
func (c *Controller) Signup(ctx context.Context, st State, username, password string) (State, error) {
	st = begin(st)
	err := c.Auth.Signup(ctx, username, password)
	switch {
	case err == nil:
		st.notify(LevelSuccess, "Created, please login.")
	case errors.Is(err, services.ErrInvalidUser):
		st.notify(LevelError, "Provide username and password")
	case errors.Is(err, services.ErrUsernameTaken):
		st.notify(LevelError, "Username already exists")
	default:
		c.storeFailed(ctx, &st, "signup", err)
	}
	return st, err
}

// Login authenticates and starts a fresh session. The token is empty on
// failure.
func (c *Controller) Login(ctx context.Context, st State, username, password string) (State, string, error) {
	st = begin(st)
	u, tok, err := c.Auth.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			st.notify(LevelError, "Invalid credentials")
		} else {
			c.storeFailed(ctx, &st, "login", err)
		}
		return st, "", err
	}
	return State{UserID: u.ID, Username: u.Username, Mode: st.Mode}, tok, nil
}

// Logout clears the session.
func (c *Controller) Logout(State) State { return State{} }

// SetMode switches between chat and code assistant modes.
func (c *Controller) SetMode(st State, m string) (State, error) {
	st = begin(st)
	mode, err := prompt.ParseMode(m)
	if err != nil {
		st.notify(LevelError, err.Error())
		return st, err
	}
	st.Mode = mode
	return st, nil
}

// NewThread creates an empty thread and selects it.
func (c *Controller) NewThread(ctx context.Context, st State) (State, *domain.Thread, error) {
	st = begin(st)
	if !st.LoggedIn() {
		st.notify(LevelError, "Please log in.")
		return st, nil, ErrNotLoggedIn
	}
	th, err := c.Threads.Create(ctx, st.UserID)
	if err != nil {
		c.storeFailed(ctx, &st, "new_thread", err)
		return st, nil, err
	}
	st.ThreadID = th.ThreadID
	st.History = nil
	st.PendingDelete = ""
	return st, th, nil
}

// SelectThread makes threadID current and loads its conversation.
func (c *Controller) SelectThread(ctx context.Context, st State, threadID string) (State, error) {
	st = begin(st)
	if !st.LoggedIn() {
		st.notify(LevelError, "Please log in.")
		return st, ErrNotLoggedIn
	}
	if _, err := c.Threads.Get(ctx, st.UserID, threadID); err != nil {
		c.threadFailed(ctx, &st, "select_thread", err)
		return st, err
	}
	msgs, err := c.Messages.List(ctx, threadID)
	if err != nil {
		c.storeFailed(ctx, &st, "select_thread", err)
		return st, err
	}
	st.ThreadID = threadID
	st.History = services.Turns(msgs)
	st.PendingDelete = ""
	return st, nil
}

// ListThreads lists the user's threads, pinned first then most recent.
func (c *Controller) ListThreads(ctx context.Context, st State) (State, []domain.Thread, error) {
	st = begin(st)
	if !st.LoggedIn() {
		st.notify(LevelError, "Please log in.")
		return st, nil, ErrNotLoggedIn
	}
	list, err := c.Threads.List(ctx, st.UserID)
	if err != nil {
		c.storeFailed(ctx, &st, "threads", err)
		return st, nil, err
	}
	if len(list) == 0 {
		st.notify(LevelInfo, "Select a conversation on the left or click New Chat.")
	}
	return st, list, nil
}

// Rename sets a thread's topic by hand.
func (c *Controller) Rename(ctx context.Context, st State, threadID, topic string) (State, string, error) {
	st = begin(st)
	if !st.LoggedIn() {
		st.notify(LevelError, "Please log in.")
		return st, "", ErrNotLoggedIn
	}
	got, err := c.Threads.Rename(ctx, st.UserID, threadID, topic)
	if err != nil {
		c.threadFailed(ctx, &st, "rename", err)
		return st, "", err
	}
	return st, got, nil
}

// TogglePin flips a thread's pinned flag and returns the new value.
func (c *Controller) TogglePin(ctx context.Context, st State, threadID string) (State, bool, error) {
	st = begin(st)
	if !st.LoggedIn() {
		st.notify(LevelError, "Please log in.")
		return st, false, ErrNotLoggedIn
	}
	pinned, err := c.Threads.TogglePin(ctx, st.UserID, threadID)
	if err != nil {
		c.threadFailed(ctx, &st, "toggle_pin", err)
		return st, pinned, err
	}
	return st, pinned, nil
}

// RequestDelete asks for confirmation before deleting threadID.
func (c *Controller) RequestDelete(st State, threadID string) State {
	st = begin(st)
	st.PendingDelete = threadID
	st.notify(LevelWarning, "Delete this conversation? This cannot be undone.")
	return st
}

// CancelDelete drops a pending delete.
func (c *Controller) CancelDelete(st State) State {
	st = begin(st)
	st.PendingDelete = ""
	return st
}

// ConfirmDelete deletes the pending thread with its messages and documents.
// When it is the current thread the selection is cleared.
func (c *Controller) ConfirmDelete(ctx context.Context, st State) (State, error) {
	st = begin(st)
	if !st.LoggedIn() {
		st.notify(LevelError, "Please log in.")
		return st, ErrNotLoggedIn
	}
	target := st.PendingDelete
	if target == "" {
		st.notify(LevelInfo, "Nothing to delete.")
		return st, nil
	}
	if err := c.Threads.Delete(ctx, st.UserID, target); err != nil {
		c.storeFailed(ctx, &st, "delete", err)
		return st, err
	}
	st.PendingDelete = ""
	if st.ThreadID == target {
		st.ThreadID = ""
		st.History = nil
	}
	st.notify(LevelSuccess, "Conversation deleted.")
	return st, nil
}

// KnowledgeBase returns the document panel of the current thread.
func (c *Controller) KnowledgeBase(ctx context.Context, st State) (State, []services.DocumentPreview, error) {
	st = begin(st)
	if st.ThreadID == "" {
		st.notify(LevelInfo, "Select a chat to view files uploaded for it.")
		return st, nil, nil
	}
	if _, err := c.Threads.Get(ctx, st.UserID, st.ThreadID); err != nil {
		c.threadFailed(ctx, &st, "documents", err)
		return st, nil, err
	}
	docs, err := c.Documents.Panel(ctx, st.ThreadID)
	if err != nil {
		c.storeFailed(ctx, &st, "documents", err)
		return st, nil, err
	}
	if len(docs) == 0 {
		st.notify(LevelInfo, "No files uploaded for this chat.")
	}
	return st, docs, nil
}

// threadFailed reports a failed thread lookup without telling missing and
// foreign threads apart.
func (c *Controller) threadFailed(ctx context.Context, st *State, op string, err error) {
	if errors.Is(err, services.ErrThreadNotFound) {
		st.notify(LevelError, "Conversation not found.")
		return
	}
	c.storeFailed(ctx, st, op, err)
}
