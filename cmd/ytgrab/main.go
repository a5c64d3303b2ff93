package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ytgrab/internal/cache"
	"ytgrab/internal/config"
	"ytgrab/internal/database"
	"ytgrab/internal/downloader"
	"ytgrab/internal/token"
	"ytgrab/internal/web"
	"ytgrab/internal/web/handlers"
	"ytgrab/internal/ytdlp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup structured logging
	setupLogging(cfg.LogLevel)

	slog.Info("Starting ytgrab", "version", "1.0.0")

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	// Initialize services
	runner := ytdlp.NewExecRunner(cfg.YtdlpPath, cfg.MaxExtractions)
	client := ytdlp.NewClient(runner, cfg.CookiesFile)
	resultCache := cache.New(cfg.CacheDir)
	tokens := token.NewRegistry()
	orchestrator := downloader.New(client, resultCache, db)

	if client.HasCookies() {
		slog.Info("Cookies file loaded", "path", cfg.CookiesFile)
	} else {
		slog.Info("No cookies file found, continuing without credentials")
	}

	h := handlers.NewHandlers(client, orchestrator, resultCache, tokens, db)
	server := web.NewServer(cfg, h)

	return runServer(server, resultCache, tokens, db)
}

func runServer(server *web.Server, resultCache *cache.Cache, tokens *token.Registry, db *database.DB) error {
	// Create main context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background janitors
	go resultCache.RunJanitor(ctx)
	go tokens.RunJanitor(ctx)
	go startHistoryCleanup(ctx, db)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	// Cancel context to stop the janitors
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// startHistoryCleanup runs a goroutine that prunes old history records daily
func startHistoryCleanup(ctx context.Context, db *database.DB) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	cleanupOldDownloads(db)

	for {
		select {
		case <-ctx.Done():
			slog.Info("History cleanup routine shutting down")
			return
		case <-ticker.C:
			cleanupOldDownloads(db)
		}
	}
}

// cleanupOldDownloads removes history records older than 60 days
func cleanupOldDownloads(db *database.DB) {
	retention := 60 * 24 * time.Hour

	slog.Info("Running history cleanup", "retention_days", 60)

	if err := db.DeleteOldDownloads(retention); err != nil {
		slog.Error("Failed to cleanup old downloads", "error", err)
		return
	}

	slog.Info("History cleanup completed")
}
