// Thread HTTP handlers.
//
// This file exposes REST endpoints for conversation threads:
//   - POST   /threads              (create and select an empty thread)
//   - GET    /threads              (list, paginated, pinned first, ETag support)
//   - GET    /threads/{id}         (select a thread and return its history)
//   - PUT    /threads/{id}/topic   (rename)
//   - PUT    /threads/{id}/pin     (toggle pinned)
//   - DELETE /threads/{id}         (delete with messages and documents; needs confirm=true)
//
// Handlers are transport-thin: they rebuild a session.State from the
// authenticated identity and the path, run one controller action and
// translate the resulting state into an HTTP response.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/prompt"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/session"
	"github.com/tbourn/smartlang-chat/internal/utils"
)

//
// Handler wiring
//

// Options tunes transport limits.
type Options struct {
	// IdempotencyTTL is how long a replayable reply is kept. Defaults to 24h.
	IdempotencyTTL time.Duration
	// MaxUploadBytes caps a single uploaded file. Defaults to 10 MiB.
	MaxUploadBytes int64
}

// Handlers groups HTTP endpoints for auth, threads, messages and documents.
// Every endpoint delegates to the session controller.
type Handlers struct {
	ctl  *session.Controller
	db   *gorm.DB
	opts Options
}

// New constructs and returns a Handlers instance bound to the controller.
func New(ctl *session.Controller, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	h := &Handlers{ctl: ctl, opts: opts}
	if ctl != nil && ctl.Threads != nil {
		h.db = ctl.Threads.DB
	}
	return h
}

// userID returns the authenticated user id set by the auth middleware, or 0.
func userID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// username returns the authenticated username, if any.
func username(c *gin.Context) string {
	if v, ok := c.Get("username"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// stateFor rebuilds the per-request session for the caller with threadID
// selected.
func stateFor(c *gin.Context, threadID string) session.State {
	return session.State{UserID: userID(c), Username: username(c), ThreadID: threadID}
}

//
// DTOs
//

// RenameThreadRequest is the JSON payload for renaming a thread.
type RenameThreadRequest struct {
	// Topic is the new name; blank input becomes "Untitled".
	Topic string `json:"topic" binding:"max=500" example:"Blockchain explained"`
}

// ThreadResponse wraps a single thread.
type ThreadResponse struct {
	Thread  *domain.Thread   `json:"thread"`
	Notices []session.Notice `json:"notices,omitempty"`
}

// ThreadHistoryResponse is a selected thread with its conversation.
type ThreadHistoryResponse struct {
	ThreadID string           `json:"thread_id" example:"5f0c2b1e-7c1a-4a51-9d3f-0a3b8e7e2c11"`
	History  []prompt.Turn    `json:"history"`
	Notices  []session.Notice `json:"notices,omitempty"`
}

// TopicResponse carries the stored topic after a rename.
type TopicResponse struct {
	Topic string `json:"topic" example:"Blockchain explained"`
}

// PinResponse carries the pinned flag after a toggle.
type PinResponse struct {
	Pinned bool `json:"pinned" example:"true"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListThreadsResponse contains a page of threads and pagination metadata.
type ListThreadsResponse struct {
	Threads    []domain.Thread `json:"threads"`
	Pagination Pagination      `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses page/page_size with defaults 1/20 and a cap of 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	w := utils.ParseWindow(c.Query("page"), c.Query("page_size"))
	return w.Page, w.Size
}

func paginate(page, pageSize int, total int64) Pagination {
	w := utils.Window{Page: page, Size: pageSize}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: w.TotalPages(total),
		HasNext:    w.HasNext(total),
	}
}

// notModified sets the ETag and reports whether If-None-Match matched it.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

//
// Handlers
//

// CreateThread godoc
// @ID          createThread
// @Summary     Create a thread
// @Description Creates an empty "New Chat" thread owned by the caller.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Success     201  {object} handlers.ThreadResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /threads [post]
func (h *Handlers) CreateThread(c *gin.Context) {
	st, th, err := h.ctl.NewThread(c.Request.Context(), stateFor(c, ""))
	if err != nil {
		failFor(c, st, err)
		return
	}
	ok(c, http.StatusCreated, ThreadResponse{Thread: th, Notices: st.Notices})
}

// ListThreads godoc
// @ID          listThreads
// @Summary     List threads
// @Description Returns the caller's threads, pinned first, then most recently updated.
// @Description Supports weak ETags via If-None-Match.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"threads:1:3:1700000000\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListThreadsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /threads [get]
func (h *Handlers) ListThreads(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		if count, maxTS, err := repo.ThreadsStats(ctx, h.db, uid); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			if notModified(c, fmt.Sprintf(`W/"threads:%d:%d:%d"`, uid, count, ts)) {
				return
			}
		}
	}

	items, total, err := h.ctl.Threads.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failFor(c, session.State{}, err)
		return
	}
	if items == nil {
		items = []domain.Thread{}
	}
	ok(c, http.StatusOK, ListThreadsResponse{Threads: items, Pagination: paginate(page, pageSize, total)})
}

// GetThread godoc
// @ID          getThread
// @Summary     Open a thread
// @Description Selects a thread and returns its conversation in order.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Thread ID"
//
// @Success     200  {object} handlers.ThreadHistoryResponse
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /threads/{id} [get]
func (h *Handlers) GetThread(c *gin.Context) {
	st, err := h.ctl.SelectThread(c.Request.Context(), stateFor(c, ""), c.Param("id"))
	if err != nil {
		failFor(c, st, err)
		return
	}
	history := st.History
	if history == nil {
		history = []prompt.Turn{}
	}
	ok(c, http.StatusOK, ThreadHistoryResponse{ThreadID: st.ThreadID, History: history, Notices: st.Notices})
}

// RenameThread godoc
// @ID          renameThread
// @Summary     Rename a thread
// @Description Sets the topic of a thread owned by the caller. A blank topic becomes "Untitled".
// @Tags        Threads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                         true  "Thread ID"
// @Param       body  body  handlers.RenameThreadRequest  true  "New topic"
//
// @Success     200  {object} handlers.TopicResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Router      /threads/{id}/topic [put]
func (h *Handlers) RenameThread(c *gin.Context) {
	var req RenameThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "topic must be a string up to 500 characters")
		return
	}
	st, topic, err := h.ctl.Rename(c.Request.Context(), stateFor(c, ""), c.Param("id"), req.Topic)
	if err != nil {
		failFor(c, st, err)
		return
	}
	ok(c, http.StatusOK, TopicResponse{Topic: topic})
}

// TogglePin godoc
// @ID          togglePin
// @Summary     Pin or unpin a thread
// @Description Flips the pinned flag. Pinned threads are listed first.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Thread ID"
//
// @Success     200  {object} handlers.PinResponse
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Router      /threads/{id}/pin [put]
func (h *Handlers) TogglePin(c *gin.Context) {
	st, pinned, err := h.ctl.TogglePin(c.Request.Context(), stateFor(c, ""), c.Param("id"))
	if err != nil {
		failFor(c, st, err)
		return
	}
	ok(c, http.StatusOK, PinResponse{Pinned: pinned})
}

// DeleteThread godoc
// @ID          deleteThread
// @Summary     Delete a thread
// @Description Deletes a thread with all of its messages and documents. Without
// @Description confirm=true nothing is deleted and 409 asks for confirmation.
// @Description Deleting a missing thread succeeds.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       id       path   string  true   "Thread ID"
// @Param       confirm  query  bool    false  "Must be true to delete"
//
// @Success     204  {string} string "No Content"
// @Failure     409  {object} handlers.ErrorResponse "Confirmation required"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /threads/{id} [delete]
func (h *Handlers) DeleteThread(c *gin.Context) {
	st := h.ctl.RequestDelete(stateFor(c, ""), c.Param("id"))
	if c.Query("confirm") != "true" {
		msg := "confirmation required"
		if n, ok := st.LastNotice(); ok {
			msg = n.Text
		}
		fail(c, http.StatusConflict, ErrCodeConfirmationRequired, msg)
		return
	}
	st, err := h.ctl.ConfirmDelete(c.Request.Context(), st)
	if err != nil {
		failFor(c, st, err)
		return
	}
	noContent(c)
}
