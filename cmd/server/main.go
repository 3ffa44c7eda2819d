// Command server runs the threaded chat HTTP API.
//
// @title                      SmartLang Chat API
// @version                    1.0
// @description                Threaded chat with per-thread document knowledge and streamed replies.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/smartlang-chat/internal/config"
	httpapi "github.com/tbourn/smartlang-chat/internal/http"
	"github.com/tbourn/smartlang-chat/internal/llm"
	"github.com/tbourn/smartlang-chat/internal/observability"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	logger := sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, ver)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn().Err(envErr).Msg("could not read .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver, observability.ResourceAttributes(cfg)...)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}
	go repo.PurgeIdempotencyEvery(logger.WithContext(ctx), db, time.Hour)

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.LLM.Provider).Msg("init completion client")
	}
	client = observability.TraceCompletions(client, cfg.LLM)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, client, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DB.Driver).
			Str("llm", cfg.LLM.Provider).
			Bool("swagger", cfg.SwaggerEnabled).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	if err := shutdownOTel(shCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown")
	}
	if c, ok := client.(io.Closer); ok {
		_ = c.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Msg("server exited")
}
