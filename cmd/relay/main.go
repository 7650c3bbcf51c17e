package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidrelay/vidrelay/internal/api"
	"github.com/vidrelay/vidrelay/internal/api/handler"
	"github.com/vidrelay/vidrelay/internal/config"
	"github.com/vidrelay/vidrelay/internal/pipeline"
	"github.com/vidrelay/vidrelay/internal/resolve"
	"github.com/vidrelay/vidrelay/internal/store"
	"github.com/vidrelay/vidrelay/internal/validate"
	"github.com/vidrelay/vidrelay/internal/worker"
	"github.com/vidrelay/vidrelay/pkg/grok"
	"github.com/vidrelay/vidrelay/pkg/reddit"
	"github.com/vidrelay/vidrelay/pkg/telegram"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidrelay %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting vidrelay",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open the reservation store
	kv, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open state store", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	reservations := store.NewReservations(kv, cfg.Store.TTL, cfg.Pipeline.MaxRetries)

	// Initialize clients
	feed := reddit.NewClient(cfg.Reddit)
	sink := telegram.NewClient(cfg.Telegram)
	captioner := grok.NewClient(cfg.Grok)

	// Browser resolution is optional; without it indirect references ride
	// the retry budget to a text fallback.
	var resolver pipeline.Resolver
	if cfg.Browser.Enabled {
		resolver = resolve.NewResolver(resolve.NewChromeBrowser(cfg.Browser), cfg.Browser, logger)
	} else {
		logger.Info("browser resolution disabled")
	}

	validator := validate.New(cfg.Reddit.UserAgent, logger)
	dispatcher := pipeline.NewDispatcher(sink, captioner, cfg.Server.PublicBaseURL, logger)

	pipe := pipeline.New(
		feed,
		reservations,
		resolver,
		validator,
		dispatcher,
		cfg.Reddit.Flair,
		logger,
	)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(kv)
	previewHandler := handler.NewPreviewHandler()
	adminHandler := handler.NewAdminHandler(reservations)

	// Setup router
	router := api.NewRouter(healthHandler, previewHandler, adminHandler, cfg.Server.APIKey)

	// Start the pipeline runner
	runner := worker.NewRunner(pipe, kv, cfg.Pipeline.Interval, logger)
	runner.Start()

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop the runner (allow an in-flight pass to complete)
	if err := runner.Stop(25 * time.Second); err != nil {
		logger.Error("runner shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
