package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// defaultExposed are the response headers chat clients read: the request ID
// for support, replay marker for idempotent posts and the rate limit back-off.
var defaultExposed = []string{requestIDHeader, "Idempotency-Replayed", "Retry-After"}

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStorePaths are path prefixes whose responses must never be cached
	// (token issuing endpoints).
	NoStorePaths []string
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// Expose lists headers added to Access-Control-Expose-Headers when they
	// are present on the response. Nil means defaultExposed.
	Expose []string
}

// SecurityHeaders sets the API hardening headers (nosniff, frame deny, no
// referrer), optional browser policies, no-store for token paths and HSTS
// for HTTPS traffic. It also makes the chat headers readable by browsers:
// whatever is listed in Expose and set by the time the handler returns is
// appended to Access-Control-Expose-Headers without duplicates.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"
	expose := opt.Expose
	if expose == nil {
		expose = defaultExposed
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if matchesPrefix(c.Request.URL.Path, opt.NoStorePaths) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		// Set now for headers already known (request ID); the rest is
		// picked up before the first byte is written.
		exposePresent(h, expose)
		c.Writer = &exposeWriter{ResponseWriter: c.Writer, expose: expose}
		c.Next()
	}
}

// exposeWriter runs exposePresent right before the status line goes out, so
// headers set by handlers (Retry-After, Idempotency-Replayed) are included.
type exposeWriter struct {
	gin.ResponseWriter
	expose []string
	done   bool
}

func (w *exposeWriter) flushExpose() {
	if !w.done {
		w.done = true
		exposePresent(w.Header(), w.expose)
	}
}

func (w *exposeWriter) WriteHeader(code int) {
	w.flushExpose()
	w.ResponseWriter.WriteHeader(code)
}

func (w *exposeWriter) WriteHeaderNow() {
	w.flushExpose()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *exposeWriter) Write(b []byte) (int, error) {
	w.flushExpose()
	return w.ResponseWriter.Write(b)
}

func (w *exposeWriter) WriteString(s string) (int, error) {
	w.flushExpose()
	return w.ResponseWriter.WriteString(s)
}

func exposePresent(h http.Header, names []string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	have := make(map[string]struct{})
	for _, v := range strings.Split(cur, ",") {
		if v = strings.TrimSpace(v); v != "" {
			have[strings.ToLower(v)] = struct{}{}
		}
	}
	for _, n := range names {
		if h.Get(n) == "" {
			continue
		}
		if _, ok := have[strings.ToLower(n)]; ok {
			continue
		}
		have[strings.ToLower(n)] = struct{}{}
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
	}
	if cur != "" {
		h.Set(hdr, cur)
	}
}

// isHTTPS reports TLS on the connection or X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
