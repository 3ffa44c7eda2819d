// Package handlers implements the HTTP API on top of the session controller.
//
// Every failure is written as an ErrorResponse with a stable code (see
// errors.go). Controller errors go through failFor, which picks the status
// from the error and carries the session notices along so a client sees the
// same messages an interactive UI would.
//
//	HTTP/1.1 502 Bad Gateway
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "completion_failed",
//	  "message": "The assistant could not answer: provider unavailable",
//	  "notices": [{"level": "error", "text": "The assistant could not answer: provider unavailable"}]
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/smartlang-chat/internal/http/middleware"
	"github.com/tbourn/smartlang-chat/internal/prompt"
	"github.com/tbourn/smartlang-chat/internal/services"
	"github.com/tbourn/smartlang-chat/internal/session"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"Thread not found"`
	// Notices raised by the action before it failed
	Notices []session.Notice `json:"notices,omitempty"`
}

func requestID(c *gin.Context) string {
	return c.Writer.Header().Get("X-Request-ID")
}

// abortWith writes resp with status and stops the handler chain. 5xx
// responses are logged with the request-scoped logger.
func abortWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = requestID(c)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

func fail(c *gin.Context, status int, code, msg string) {
	abortWith(c, status, ErrorResponse{Code: code, Message: msg})
}

// Fail writes the standard error envelope; used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// statusFor maps a controller or service error to an HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotLoggedIn),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, services.ErrThreadNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrUsernameTaken):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrInvalidUser),
		errors.Is(err, services.ErrNoThread),
		errors.Is(err, services.ErrEmptySubmission),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, prompt.ErrUnknownMode):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrCompletion):
		return http.StatusBadGateway, ErrCodeCompletionFailed
	case errors.Is(err, services.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrCodeStoreUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// failFor reports a controller error. The message is the last notice the
// action produced, falling back to the error text.
func failFor(c *gin.Context, st session.State, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if n, ok := st.LastNotice(); ok {
		msg = n.Text
	}
	abortWith(c, status, ErrorResponse{Code: code, Message: msg, Notices: st.Notices})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// eventStream writes server-sent events. Stream headers go out with the
// first event, so a request that fails before any event can still answer
// with a plain JSON error.
type eventStream struct {
	c       *gin.Context
	started bool
}

func (s *eventStream) send(event string, v any) {
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.started = true
	}
	s.c.SSEvent(event, v)
	s.c.Writer.Flush()
}

// fail ends an already started stream with an error event.
func (s *eventStream) fail(code, msg string) {
	s.send("error", ErrorResponse{RequestID: requestID(s.c), Code: code, Message: msg})
}
