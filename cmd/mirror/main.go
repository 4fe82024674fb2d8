package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/use-agent/mirror/api"
	"github.com/use-agent/mirror/app"
	"github.com/use-agent/mirror/cache"
	"github.com/use-agent/mirror/config"
	"github.com/use-agent/mirror/jobs"
	"github.com/use-agent/mirror/store"
	"github.com/use-agent/mirror/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logger, closeLog := config.NewLogger(cfg.Log)
	defer closeLog()
	slog.SetDefault(logger)
	slog.Info("mirror starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
		"store", cfg.Store.Backend,
	)

	// ── 3. Pipeline (launches browser) ──────────────────────────────
	pipeline, err := app.New(cfg, logger)
	if err != nil {
		slog.Error("failed to initialise pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	// ── 4. Job records, cache, webhooks ─────────────────────────────
	st, err := store.New(context.Background(), cfg.Store, cfg.Jobs.TTL)
	if err != nil {
		slog.Error("failed to open job store", "error", err)
		os.Exit(1)
	}
	defer st.Close(context.Background())

	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()
	notifier := webhook.New(nil, logger)

	queue := jobs.New(pipeline.Runner, st, jobs.Options{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Placeholders:  cfg.Harvest.Placeholders,
		RespectRobots: cfg.Harvest.RespectRobots,
		Cache:         cc,
		Notifier:      notifier,
		Logger:        logger,
	})

	// ── 5. Start HTTP server ────────────────────────────────────────
	router := api.NewRouter(queue, pipeline.Browser, cfg, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	}
	if err := queue.Shutdown(ctx); err != nil {
		slog.Warn("running harvests did not finish", "error", err)
	}
	notifier.Wait()
	slog.Info("mirror stopped")
}
