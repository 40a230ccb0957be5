package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/hugwawi/hugwawi-admin/internal/addressbook"
	"github.com/hugwawi/hugwawi-admin/internal/app"
	"github.com/hugwawi/hugwawi-admin/internal/contacttypes"
	"github.com/hugwawi/hugwawi-admin/internal/directory"
	"github.com/hugwawi/hugwawi-admin/internal/observability"
	"github.com/hugwawi/hugwawi-admin/internal/platform/cache"
	"github.com/hugwawi/hugwawi-admin/internal/searchlist"
	"github.com/hugwawi/hugwawi-admin/internal/shared"
	"github.com/hugwawi/hugwawi-admin/internal/view"
	"github.com/hugwawi/hugwawi-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is a local development convenience, the container sets real
	// environment variables.
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionManager(redisClient, "hugwawi_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("init templates", slog.Any("error", err))
		os.Exit(1)
	}

	dirClient, err := directory.NewClient(directory.Options{
		BaseURL:  cfg.DirectoryBaseURL,
		APIKey:   cfg.DirectoryAPIKey,
		Timeout:  cfg.DirectoryTimeout,
		RetryMax: cfg.DirectoryRetryMax,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	registry := searchlist.NewRegistry(func() *searchlist.Controller {
		return searchlist.NewController(dirClient, logger)
	}, cfg.SearchStateTTL, logger)
	go func() {
		if err := registry.Run(ctx); err != nil {
			logger.Error("search registry sweep", slog.Any("error", err))
		}
	}()

	contactTypes := contacttypes.NewCache(dirClient, redisClient, cfg.ContactTypesTTL, logger)

	addressBookHandler := addressbook.NewHandler(logger, dirClient, registry, contactTypes, templates, csrf)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	// Warm the contact-type catalogue right away instead of waiting for
	// the nightly schedule or the first search.
	if jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}); err != nil {
		logger.Warn("init job client", slog.Any("error", err))
	} else {
		if _, err := jobClient.EnqueueContactTypesWarmup(ctx, jobs.ContactTypesWarmupPayload{Reason: "boot"}); err != nil {
			logger.Warn("enqueue contact types warmup", slog.Any("error", err))
		}
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessions,
		CSRFManager:        csrf,
		AddressBookHandler: addressBookHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
