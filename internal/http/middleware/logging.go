// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds request correlation, access logging and panic recovery.
// Both access loggers (Logger and RedactingLogger) attach a request-scoped
// zerolog.Logger under the Gin key "logger" and in the request context, so
// handlers use LoggerFrom(c) and the session controller and services use
// zerolog.Ctx(ctx) and all of them share the request_id.
//
// Access log lines carry the chat fields operators filter on: user_id,
// thread_id (the :id route parameter), stream (reply sent as server-sent
// events) and replayed (served from an Idempotency-Key). Health and metrics
// scrapes are logged at debug level.
//
// Recommended order: RequestID, a logger, Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	maxQueryLogLength = 2048
)

// quietPaths are logged at debug level.
var quietPaths = map[string]struct{}{"/health": {}, "/metrics": {}}

// RequestID reuses the incoming X-Request-ID or generates a UUIDv4, echoes
// it on the response and stores it under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// routePath is the registered route, or rawPath when nothing matched.
func routePath(c *gin.Context, rawPath func(string) string) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return rawPath(c.Request.URL.Path)
}

// attachScoped builds the request-scoped logger from ctx fields and installs
// it in the Gin and request contexts.
func attachScoped(c *gin.Context, ctx zerolog.Context) *zerolog.Logger {
	if id := c.Param("id"); id != "" {
		ctx = ctx.Str("thread_id", id)
	}
	l := ctx.Logger()
	c.Set("logger", &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
	return &l
}

// accessEvent picks the level for a finished request: error for 5xx or
// collected Gin errors, warn for 4xx, debug for health and metrics scrapes, info otherwise.
func accessEvent(l *zerolog.Logger, c *gin.Context, path string) *zerolog.Event {
	status := c.Writer.Status()
	var ev *zerolog.Event
	switch {
	case len(c.Errors) > 0:
		ev = l.Error().Str("errors", c.Errors.String())
	case status >= http.StatusInternalServerError:
		ev = l.Error()
	case status >= http.StatusBadRequest:
		ev = l.Warn()
	default:
		if _, quiet := quietPaths[path]; quiet {
			ev = l.Debug()
		} else {
			ev = l.Info()
		}
	}
	return ev.
		Uint("user_id", userIDFromCtx(c)).
		Int("status", status).
		Bool("stream", strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")).
		Bool("replayed", c.Writer.Header().Get("Idempotency-Replayed") == "true")
}

// Logger writes one structured access log per request: method, route,
// client, query (truncated), bytes in and out, latency and the chat fields.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid, _ := c.Get(requestIDKey)
		path := routePath(c, func(p string) string { return p })

		l := attachScoped(c, log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path))

		c.Next()

		accessEvent(l, c, path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recovery turns a panic into a JSON 500 (when nothing was written yet)
// and logs the stack with the request ID. A panic during a reply stream
// only aborts, since the event stream headers are already out.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// no access logger is installed. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// withUser adds the authenticated user to the request-scoped logger. No-op
// without an access logger.
func withUser(c *gin.Context, uid uint) {
	v, ok := c.Get("logger")
	if !ok {
		return
	}
	lg, ok := v.(*zerolog.Logger)
	if !ok {
		return
	}
	l := lg.With().Uint("user_id", uid).Logger()
	c.Set("logger", &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
