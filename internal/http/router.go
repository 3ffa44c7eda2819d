// Package httpapi wires the HTTP transport (Gin) to the session controller,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/smartlang-chat/docs"
	"github.com/tbourn/smartlang-chat/internal/config"
	"github.com/tbourn/smartlang-chat/internal/http/handlers"
	"github.com/tbourn/smartlang-chat/internal/http/middleware"
	"github.com/tbourn/smartlang-chat/internal/llm"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/retrieval"
	"github.com/tbourn/smartlang-chat/internal/services"
	"github.com/tbourn/smartlang-chat/internal/session"
)

// bodySlack is headroom above the upload cap for multipart framing and the
// text fields that travel with the file.
const bodySlack = 1 << 20

var corsAllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health and metrics endpoints, and then mounts the public auth
// routes and the authenticated thread API under cfg.APIBasePath.
//
// Global middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs (redacting unless LOG_REDACT=false)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, security headers and gzip
//
// Protected routes add, in order: Auth → Idempotency validator → rate
// limiter (per user, bypassed on replay, message posts charged
// RATE_COMPLETION_COST tokens).
func RegisterRoutes(r *gin.Engine, db *gorm.DB, client llm.Client, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, with redaction unless disabled
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-Goog-Api-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (uploads plus framing, at least 1 MiB)
	r.Use(limitBody(max(int64(1<<20), cfg.MaxUploadBytes+bodySlack)))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers; tokens issued under /auth are never cached.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStorePaths: []string{joinPath(apiBase, "/auth")},
		EnablePolicy: true,
	}))

	// Compress JSON responses; the message routes stream events and are left alone.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/messages$`})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: controller ← services ← db/llm
	authSvc := services.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	ctl := session.New(
		authSvc,
		services.NewThreadService(db, services.RepoThreads{}),
		&services.MessageService{DB: db, MaxRunes: cfg.MaxMessageRunes},
		services.NewDocumentService(db),
		retrieval.New(db, cfg.RAGLimit),
		client,
		log.Logger,
	)
	ctl.Observer = middleware.ChatObserver{}
	h := handlers.New(ctl, handlers.Options{
		IdempotencyTTL: cfg.IdempotencyTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// Public account routes, limited per client IP.
	authRL := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:   cfg.RateRPS,
		Burst: cfg.RateBurst,
		Key:   middleware.KeyByIP(),
		Scope: "auth",
	})
	pub := groupWithPrefix(r, joinPath(apiBase, "/auth"))
	pub.Use(authRL.Handler())
	{
		pub.POST("/signup", h.Signup)
		pub.POST("/login", h.Login)
	}

	// Authenticated API
	apiRL := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:   cfg.RateRPS,
		Burst: cfg.RateBurst,
		Key:   middleware.KeyByUserOrIP(),
		Cost:  middleware.CompletionCost(cfg.RateCompletionCost),
		Scope: "api",
	})
	api := groupWithPrefix(r, apiBase)
	api.Use(
		middleware.Auth(func(tok string) (uint, string, error) {
			id, err := authSvc.ParseToken(tok)
			return id.UserID, id.Username, err
		}),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200},
			func(ctx context.Context, userID uint, threadID, key string, now time.Time) (uint, bool, error) {
				rec, err := repo.GetIdempotency(ctx, db, userID, threadID, key, now)
				switch {
				case errors.Is(err, repo.ErrNotFound):
					return 0, false, nil
				case err != nil:
					return 0, false, err
				}
				return rec.MessageID, true, nil
			},
		),
		apiRL.Handler(),
	)
	{
		// Threads
		api.POST("/threads", h.CreateThread)
		api.GET("/threads", h.ListThreads)
		api.GET("/threads/:id", h.GetThread)
		api.PUT("/threads/:id/topic", h.RenameThread)
		api.PUT("/threads/:id/pin", h.TogglePin)
		api.DELETE("/threads/:id", h.DeleteThread)

		// Messages
		api.GET("/threads/:id/messages", h.ListMessages)
		api.POST("/threads/:id/messages", h.PostMessage)

		// Knowledge base
		api.GET("/threads/:id/documents", h.ListDocuments)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath appends sub to a normalized base path.
func joinPath(base, sub string) string {
	if base == "" || base == "/" {
		return sub
	}
	return base + sub
}
