package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/extract"
	"github.com/tbourn/smartlang-chat/internal/llm"
	"github.com/tbourn/smartlang-chat/internal/prompt"
	"github.com/tbourn/smartlang-chat/internal/retrieval"
	"github.com/tbourn/smartlang-chat/internal/services"
)

// IncompleteMarker is appended to a reply whose stream broke off.
const IncompleteMarker = "\n\n[incomplete]"

// Upload is a file attached to a submission.
type Upload struct {
	Name string
	Data []byte
}

// Submission is one send from the input form: text, a file, or both.
type Submission struct {
	Text string
	File *Upload
}

// Outcome describes what a submission persisted.
type Outcome struct {
	Document   *domain.Document
	Messages   []domain.Message // user rows written, in order
	Title      string           // new topic when the thread was auto-titled
	Reply      *domain.Message
	Incomplete bool

	// Err is the failure that stopped the submission, if any. Attachment
	// problems do not stop a submission and are only reported as notices.
	Err error
}

// Submit stores the user's input, titles a fresh thread, retrieves thread
// knowledge and streams the assistant reply through onFragment. Failures
// are turned into notices; the returned state is always usable.
func (c *Controller) Submit(ctx context.Context, st State, sub Submission, onFragment func(string)) (State, Outcome) {
	st = begin(st)
	var out Outcome
	lg := c.logger(ctx)

	if !st.LoggedIn() {
		st.notify(LevelError, "Please log in.")
		out.Err = ErrNotLoggedIn
		return st, out
	}
	text := strings.TrimSpace(sub.Text)
	if text == "" && sub.File == nil {
		st.notify(LevelInfo, "Type a message or attach a file.")
		out.Err = services.ErrEmptySubmission
		return st, out
	}
	if st.ThreadID == "" {
		st.notify(LevelError, "Create or select a chat first.")
		out.Err = services.ErrNoThread
		return st, out
	}
	th, err := c.Threads.Get(ctx, st.UserID, st.ThreadID)
	if err != nil {
		c.threadFailed(ctx, &st, "submit", err)
		out.Err = err
		return st, out
	}
	tid := th.ThreadID

	// Attachment first, so the upload notice precedes the question.
	if sub.File != nil {
		if doc, m := c.attach(ctx, &st, tid, sub.File); doc != nil {
			out.Document = doc
			if m != nil {
				out.Messages = append(out.Messages, *m)
			}
		}
	}

	if text != "" {
		m, err := c.Messages.Append(ctx, tid, domain.RoleUser, text)
		if err != nil {
			if errors.Is(err, services.ErrTooLong) {
				st.notify(LevelError, "Message is too long.")
			} else {
				c.storeFailed(ctx, &st, "append_user", err)
			}
			out.Err = err
			return st, out
		}
		out.Messages = append(out.Messages, *m)
	}
	if len(out.Messages) == 0 {
		// Only an unusable attachment was sent; there is nothing to answer.
		return st, out
	}

	if domain.IsPlaceholderTopic(th.Topic) {
		seed := text
		if seed == "" {
			seed = sub.File.Name
		}
		out.Title = c.autoTitle(ctx, &st, tid, seed)
	}

	if err := c.Threads.Touch(ctx, tid); err != nil {
		lg.Warn().Err(err).Str("thread_id", tid).Msg("touch thread failed")
	}

	history, err := c.Messages.List(ctx, tid)
	if err != nil {
		c.storeFailed(ctx, &st, "history", err)
		out.Err = err
		return st, out
	}
	st.History = services.Turns(history)

	docs, err := c.Retriever.Select(ctx, tid, text)
	if err != nil {
		// Answer without knowledge rather than not at all.
		lg.Warn().Err(err).Str("thread_id", tid).Msg("retrieval failed")
		docs = nil
	}
	p := prompt.Assemble(st.History, retrieval.Knowledge(docs), st.Mode)

	reply, complete, frags, err := c.stream(ctx, p, onFragment)
	switch {
	case complete:
		c.observer().Reply("complete", frags)
	case reply != "":
		c.observer().Reply("incomplete", frags)
		out.Incomplete = true
		reply += IncompleteMarker
	default:
		c.observer().Reply("failed", frags)
	}
	if err != nil {
		lg.Error().Err(err).Str("thread_id", tid).Int("fragments", frags).Msg("reply stream failed")
		st.notify(LevelError, "The assistant could not answer: "+err.Error())
		out.Err = fmt.Errorf("%w: %v", services.ErrCompletion, err)
		if !out.Incomplete {
			return st, out
		}
	}

	// The reply is stored even when the client went away mid-stream.
	saveCtx := context.WithoutCancel(ctx)
	m, serr := c.Messages.Append(saveCtx, tid, domain.RoleAssistant, reply)
	if serr != nil {
		c.storeFailed(ctx, &st, "append_assistant", serr)
		if out.Err == nil {
			out.Err = serr
		}
		return st, out
	}
	out.Reply = m
	st.History = append(st.History, prompt.Turn{Role: string(domain.RoleAssistant), Content: reply})
	return st, out
}

// attach extracts and stores an uploaded file. Failures become notices and
// never stop the submission.
func (c *Controller) attach(ctx context.Context, st *State, threadID string, f *Upload) (*domain.Document, *domain.Message) {
	text, err := c.Extract(f.Name, f.Data)
	switch {
	case errors.Is(err, extract.ErrEmptyExtraction):
		c.observer().Extraction("empty")
		st.notify(LevelWarning, fmt.Sprintf("No text could be extracted from %s.", f.Name))
		return nil, nil
	case err != nil:
		c.observer().Extraction("failed")
		c.logger(ctx).Warn().Err(err).Str("file", f.Name).Msg("extraction failed")
		st.notify(LevelError, fmt.Sprintf("Could not read %s: %v", f.Name, err))
		return nil, nil
	}

	doc, err := c.Documents.Save(ctx, threadID, f.Name, text)
	if err != nil {
		c.observer().Extraction("failed")
		c.storeFailed(ctx, st, "save_document", err)
		return nil, nil
	}
	c.observer().Extraction("saved")
	m, err := c.Messages.Append(ctx, threadID, domain.RoleUser, "📎 Uploaded: "+f.Name)
	if err != nil {
		c.storeFailed(ctx, st, "append_upload", err)
		return doc, nil
	}
	return doc, m
}

// autoTitle replaces a placeholder topic once. Provider failures fall back
// to a title derived from seed so the send is never blocked.
func (c *Controller) autoTitle(ctx context.Context, st *State, threadID, seed string) string {
	title, err := c.LLM.GenerateTitle(ctx, seed)
	fallback := err != nil || domain.IsPlaceholderTopic(title)
	if fallback {
		if err != nil {
			c.logger(ctx).Warn().Err(err).Str("thread_id", threadID).Msg("title generation failed, using fallback")
		}
		title = llm.FallbackTitle(seed)
	}
	c.observer().Title(fallback)

	got, err := c.Threads.Rename(ctx, st.UserID, threadID, title)
	if err != nil {
		c.logger(ctx).Warn().Err(err).Str("thread_id", threadID).Msg("auto title failed")
		return ""
	}
	return got
}

// stream runs the completion and collects the reply. complete is false
// when the stream failed, in which case text holds whatever arrived.
func (c *Controller) stream(ctx context.Context, p string, onFragment func(string)) (text string, complete bool, frags int, err error) {
	s, err := c.LLM.StreamReply(ctx, p)
	if err != nil {
		return "", false, 0, err
	}
	text, err = llm.Collect(s, func(f string) {
		frags++
		if onFragment != nil {
			onFragment(f)
		}
	})
	return text, err == nil, frags, err
}
