// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. The token format is
// owned by the caller through a TokenParser, so the middleware only deals
// with the transport: reading the Authorization header, rejecting requests
// without a valid token, and stashing the identity for downstream handlers
// under the "userID" (uint) and "username" Gin context keys.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenParser validates a raw token and returns the identity it carries.
type TokenParser func(token string) (userID uint, username string, err error)

// Auth returns a Gin middleware that requires `Authorization: Bearer <token>`.
//
// Behavior:
//   - Missing or malformed header: 401 with code "unauthorized".
//   - Token rejected by parse: 401 with code "unauthorized".
//   - Otherwise the identity is stored and the request logger, when present,
//     is enriched with the user id.
func Auth(parse TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		uid, name, err := parse(tok)
		if err != nil || uid == 0 {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		c.Set("userID", uid)
		c.Set("username", name)
		withUser(c, uid)
		c.Next()
	}
}

// bearerToken extracts the token of a "Bearer" authorization header. The
// scheme is matched case-insensitively.
func bearerToken(h string) string {
	const prefix = "bearer "
	h = strings.TrimSpace(h)
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
