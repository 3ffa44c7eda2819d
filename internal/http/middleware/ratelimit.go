// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-process token-bucket limiter that sits in
// front of the account routes (keyed by client IP) and the thread API
// (keyed by user). Posting a message reaches the completion provider, so
// those requests can be charged more than one token.
//
// Buckets are process-local; a horizontally scaled deployment gets one
// budget per replica.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the identity used to key a rate-limit bucket.
type KeyFunc func(*gin.Context) string

// CostFunc returns how many tokens a request consumes.
type CostFunc func(*gin.Context) int

// KeyByUserOrIP prefers the authenticated user (set by Auth under "userID")
// and falls back to the client IP. Keys are namespaced ("user:42",
// "ip:203.0.113.7").
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := userIDFromCtx(c); uid != 0 {
			return "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys every request by client IP. Used before authentication,
// where a user identity does not exist yet.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// CompletionCost charges n tokens for POSTs to a thread's messages route
// and one token for everything else.
func CompletionCost(n int) CostFunc {
	if n < 1 {
		n = 1
	}
	return func(c *gin.Context) int {
		if c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/messages") {
			return n
		}
		return 1
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64 // tokens replenished per second
	Burst int     // bucket size; <= 0 becomes 1
	Key   KeyFunc // nil means KeyByUserOrIP
	Cost  CostFunc
	// IdleTTL is how long an untouched bucket is kept. Defaults to 10m.
	IdleTTL time.Duration
	// Scope labels rejections in chat_rate_limited_total (e.g. "auth", "api").
	Scope string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	opts RateLimitOptions
	now  func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter builds a limiter; install it with Handler().
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Key == nil {
		opts.Key = KeyByUserOrIP()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	if opts.Scope == "" {
		opts.Scope = "default"
	}
	now := time.Now
	return &RateLimiter{
		opts:      opts,
		now:       now,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
	}
}

// limiter returns the bucket for key, creating it if absent. Idle buckets
// are swept at most once per IdleTTL, before the lookup, so a stale bucket
// is dropped even when it is the one being requested.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.opts.IdleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.opts.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rate.Limit(rl.opts.RPS), rl.opts.Burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// size reports the number of live buckets.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// cost is the token charge for c, capped at the burst so it can be paid.
func (rl *RateLimiter) cost(c *gin.Context) int {
	n := 1
	if rl.opts.Cost != nil {
		n = rl.opts.Cost(c)
	}
	return min(max(n, 1), rl.opts.Burst)
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay of a completed submission. Replays are served without spending
// tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the limiting middleware. A rejected request gets 429 with
// the standard error envelope and a Retry-After header holding the whole
// seconds until enough tokens are available.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		lim := rl.limiter(rl.opts.Key(c), now)
		res := lim.ReserveN(now, rl.cost(c))
		delay := res.DelayFrom(now)
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		rateLimited.WithLabelValues(rl.opts.Scope).Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfter(delay)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

func retryAfter(d time.Duration) int {
	if d <= 0 || d == rate.InfDuration {
		return 1
	}
	return max(1, int(math.Ceil(d.Seconds())))
}
