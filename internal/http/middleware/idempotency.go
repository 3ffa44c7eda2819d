// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on state-changing requests
// and resolves it against previously answered submissions. When a stored
// reply exists for (user, thread, key) the request is tagged with that
// reply's message ID so the handler can serve it again instead of calling
// the completion provider, and the rate limiter lets it through for free.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying a client-chosen key
// that makes a message submission safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // uint: stored reply message ID
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// ReplayOf returns the message ID of the stored reply this request repeats.
func ReplayOf(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return 0, false
	}
	id, _ := v.(uint)
	return id, id != 0
}

// IsReplay reports whether the request repeats an answered submission.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayOf(c)
	return ok
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup finds the reply stored for (userID, threadID, key) that
// is still valid at now. found=false with a nil error means no record.
type IdempotencyLookup func(ctx context.Context, userID uint, threadID, key string, now time.Time) (replyID uint, found bool, err error)

// IdempotencyValidator checks the Idempotency-Key header on POST, PUT,
// PATCH and DELETE requests. Safe methods ignore the header.
//
//   - absent header: no-op
//   - malformed key: 400 bad_idempotency_key
//   - lookup hit: ReplayOf(c) returns the stored reply and the rate limiter
//     is bypassed
//   - lookup error: logged, request continues as a first attempt
//
// lookup may be nil, in which case only validation happens.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		if !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			threadID := c.Param("id")
			replyID, found, err := lookup(c.Request.Context(), userIDFromCtx(c), threadID, key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("thread_id", threadID).Msg("idempotency lookup failed")
			case found && replyID != 0:
				c.Set(ctxKeyIdemReplay, replyID)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// userIDFromCtx extracts the user identifier set by Auth. Zero means the
// request is anonymous.
func userIDFromCtx(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
