// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-desk/internal/config"
	"github.com/capitalize-ai/support-desk/internal/handler"
	"github.com/capitalize-ai/support-desk/internal/llm"
	_ "github.com/capitalize-ai/support-desk/internal/nats"
	"github.com/capitalize-ai/support-desk/internal/reconcile"
	"github.com/capitalize-ai/support-desk/internal/service"
	"github.com/capitalize-ai/support-desk/internal/session"
	"github.com/capitalize-ai/support-desk/internal/store"
	"github.com/capitalize-ai/support-desk/pkg/logger"
	"github.com/capitalize-ai/support-desk/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	log.Info("starting support desk API",
		zap.String("backend", cfg.StoreBackend),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-desk", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	// Open the message log
	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open message log", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	clockLoc, err := cfg.LegacyClockLocation()
	if err != nil {
		log.Error("invalid configuration", zap.Error(err))
		os.Exit(1)
	}
	engine := session.NewEngine(reconcile.New(reconcile.Options{
		SyntheticStep: cfg.SyntheticStep,
		SortTolerance: cfg.SortTolerance,
		ClockLocation: clockLoc,
	}))
	support := service.NewSupportService(st, engine, service.Options{
		PersistReadReceipts: cfg.PersistReadReceipts,
	}, log)

	// Reply drafts are optional
	var client llm.Client
	if cfg.DraftsEnabled() {
		client, err = llm.NewClient(llm.Provider(cfg.DefaultLLM), cfg.LLMKey())
		if err != nil {
			log.Warn("failed to create LLM client, drafts disabled", zap.Error(err))
			client = nil
		}
	}
	drafter := service.NewDrafter(support, client, log)

	// Keep the thread list in sync with writes from other processes
	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	go service.NewPoller(support, st, cfg.PollInterval, log).Run(pollCtx)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		TokenMaxAge:       cfg.JWTExpiration,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, support, drafter, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	log.Info("shutting down server")
	cancelPoll()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
