// Message HTTP handlers.
//
// This file exposes REST endpoints for thread messages:
//   - POST /threads/{id}/messages   (submit text and/or a file, get the assistant reply)
//   - GET  /threads/{id}/messages   (list paginated messages for a thread)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (newline and length constraints, upload size)
//   - delegate the submission to the session controller
//   - implement conditional responses (ETag), idempotency and streaming
//
// Streaming:
// When the client sends `Accept: text/event-stream`, reply fragments are
// written as `fragment` events while they arrive, followed by one `done`
// event carrying the final result (or an `error` event).
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, thread, key), the handler returns that recorded
// assistant message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/http/middleware"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/session"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a user message. The
// multipart form accepts the same fields plus a "file" part.
type PostMessageRequest struct {
	// Content is the user prompt. It may be empty when a file is attached.
	Content string `json:"content" form:"content" example:"Explain blockchain simply"`
	// Mode selects the assistant persona: "chat" (default) or "code".
	Mode string `json:"mode" form:"mode" example:"chat"`
}

// PostMessageResponse describes what a submission stored.
type PostMessageResponse struct {
	// Reply is the assistant message; nil when nothing was answered.
	Reply *domain.Message `json:"reply"`
	// Messages are the user rows written (upload notice first).
	Messages []domain.Message `json:"messages"`
	// Document is the stored upload, if any.
	Document *domain.Document `json:"document,omitempty"`
	// Title is set when the thread was auto-titled by this submission.
	Title string `json:"title,omitempty" example:"Blockchain explained"`
	// Incomplete marks a reply whose stream broke off.
	Incomplete bool             `json:"incomplete"`
	Notices    []session.Notice `json:"notices,omitempty"`
}

// FragmentEvent is the payload of a streamed `fragment` event.
type FragmentEvent struct {
	Text string `json:"text"`
}

// ListMessagesResponse contains a page of thread messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// wantsStream reports whether the client asked for server-sent events.
func wantsStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

var errUploadTooLarge = errors.New("upload too large")

// bindSubmission reads a JSON or multipart submission.
func (h *Handlers) bindSubmission(c *gin.Context) (PostMessageRequest, *session.Upload, error) {
	var req PostMessageRequest
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, err
		}
		return req, nil, nil
	}

	if err := c.ShouldBind(&req); err != nil {
		return req, nil, err
	}
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, err
	}
	if fh.Size > h.opts.MaxUploadBytes {
		return req, nil, errUploadTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return req, nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.opts.MaxUploadBytes+1))
	if err != nil {
		return req, nil, err
	}
	if int64(len(data)) > h.opts.MaxUploadBytes {
		return req, nil, errUploadTooLarge
	}
	return req, &session.Upload{Name: filepath.Base(fh.Filename), Data: data}, nil
}

// replay serves a stored reply for a repeated Idempotency-Key. The
// validator usually resolved the key already; otherwise the store is asked.
func (h *Handlers) replay(c *gin.Context, uid uint, threadID, key string) bool {
	if key == "" {
		return false
	}
	ctx := c.Request.Context()
	replyID, found := middleware.ReplayOf(c)
	if !found && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, uid, threadID, key, time.Now().UTC()); err == nil {
			replyID, found = rec.MessageID, true
		}
	}
	if !found {
		return false
	}
	prev, err := h.ctl.Messages.Get(ctx, replyID)
	if err != nil || prev.ThreadID != threadID {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, http.StatusOK, PostMessageResponse{Reply: prev, Messages: []domain.Message{}})
	return true
}

func toResponse(st session.State, out session.Outcome) PostMessageResponse {
	msgs := out.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return PostMessageResponse{
		Reply:      out.Reply,
		Messages:   msgs,
		Document:   out.Document,
		Title:      out.Title,
		Incomplete: out.Incomplete,
		Notices:    st.Notices,
	}
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message and get the assistant reply
// @Description Stores the user's text and/or uploaded file, titles a new thread,
// @Description retrieves thread documents and generates the assistant reply.
// @Description With `Accept: text/event-stream` the reply is streamed as events.
// @Description Supports idempotency via the Idempotency-Key header (same key → same reply).
// @Tags        Messages
// @Accept      json
// @Accept      mpfd
// @Produce     json
// @Produce     text/event-stream
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header    string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path      string  true  "Thread ID"
// @Param       body             body      handlers.PostMessageRequest  false "JSON payload"
// @Param       file             formData  file    false "File to add to the thread's knowledge"
//
// @Success     200  {object}  handlers.PostMessageResponse  "Stored rows and assistant reply"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Thread not found"
// @Failure     413  {object}  handlers.ErrorResponse        "Upload too large"
// @Failure     502  {object}  handlers.ErrorResponse        "Completion failed"
// @Failure     503  {object}  handlers.ErrorResponse        "Store unavailable"
// @Router      /threads/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	threadID := c.Param("id")
	uid := userID(c)

	req, file, err := h.bindSubmission(c)
	switch {
	case errors.Is(err, errUploadTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
			fmt.Sprintf("file too large: max %d bytes", h.opts.MaxUploadBytes))
		return
	case err != nil:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message payload")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	if maxRunes := h.ctl.Messages.MaxRunes; maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if h.replay(c, uid, threadID, idemKey) {
		return
	}

	st, err := h.ctl.SetMode(stateFor(c, threadID), req.Mode)
	if err != nil {
		failFor(c, st, err)
		return
	}

	streaming := wantsStream(c)
	sse := &eventStream{c: c}
	var onFragment func(string)
	if streaming {
		onFragment = func(f string) { sse.send("fragment", FragmentEvent{Text: f}) }
	}

	st, out := h.ctl.Submit(ctx, st, session.Submission{Text: content, File: file}, onFragment)

	// Idempotency (store path) – best effort.
	if idemKey != "" && out.Reply != nil && h.db != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, uid, threadID, idemKey, out.Reply.ID, http.StatusOK, h.opts.IdempotencyTTL)
	}

	if out.Err != nil && out.Reply == nil {
		if sse.started {
			middleware.LoggerFrom(c).Warn().Err(out.Err).Str("thread_id", threadID).Msg("stream ended with error")
			msg := out.Err.Error()
			if n, ok := st.LastNotice(); ok {
				msg = n.Text
			}
			_, code := statusFor(out.Err)
			sse.fail(code, msg)
			return
		}
		failFor(c, st, out.Err)
		return
	}

	resp := toResponse(st, out)
	if streaming {
		sse.send("done", resp)
		return
	}
	ok(c, http.StatusOK, resp)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a thread
// @Description Returns a paginated list of messages in creation order.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true  "Thread ID"
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /threads/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	threadID := c.Param("id")
	uid := userID(c)

	if _, err := h.ctl.Threads.Get(ctx, uid, threadID); err != nil {
		failFor(c, session.State{}, err)
		return
	}

	// ETag pre-check (best effort).
	if h.db != nil {
		if count, lastID, err := repo.MessagesStats(ctx, h.db, threadID); err == nil {
			if notModified(c, fmt.Sprintf(`W/"messages:%s:%d:%d"`, threadID, count, lastID)) {
				return
			}
		}
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.ctl.Messages.ListPage(ctx, uid, threadID, page, pageSize)
	if err != nil {
		failFor(c, session.State{}, err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: paginate(page, pageSize, total)})
}
