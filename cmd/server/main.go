package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"murmur/internal/ai"
	"murmur/internal/ai/gemini"
	"murmur/internal/ai/openai"
	"murmur/internal/api"
	"murmur/internal/artifacts"
	"murmur/internal/config"
	"murmur/internal/rewrite"
	"murmur/internal/storage/sqlite"
	"murmur/internal/transcription"
	"murmur/internal/websocket"
	"murmur/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Murmur server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Ensure the database directory exists
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}

	// Create history store. Corruption recovery and the in-memory fallback
	// happen inside NewHistoryStore.
	historyStore, err := sqlite.NewHistoryStore(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create history store", logger.Error(err))
		os.Exit(1)
	}
	defer historyStore.Close()
	if historyStore.Volatile() {
		log.Warn("History store is in-memory for this run, nothing will persist across restarts")
	}
	log.Info("Using SQLite history store", logger.String("path", cfg.Storage.SQLitePath))

	// Create artifact store for saved audio
	artifactStore, err := artifacts.NewStore(cfg.Artifacts.Dir, log)
	if err != nil {
		log.Error("Failed to create artifact store", logger.Error(err))
		os.Exit(1)
	}

	// Create transcription orchestrator
	orchestrator := transcription.New(transcription.Config{
		BaseURL:        cfg.Transcription.BaseURL,
		Model:          cfg.Transcription.Model,
		Punctuate:      cfg.Transcription.Punctuate,
		FormatText:     cfg.Transcription.FormatText,
		PollInterval:   time.Duration(cfg.Transcription.PollIntervalMs) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.Transcription.RequestTimeoutSecs) * time.Second,
	}, log)

	// Create rewriter (if enabled)
	var rewriter *rewrite.Rewriter
	if cfg.Rewrite.Enabled {
		var provider ai.ChatProvider
		timeout := time.Duration(cfg.Rewrite.TimeoutSecs) * time.Second
		switch cfg.Rewrite.Provider {
		case "gemini":
			provider = gemini.NewClient(cfg.Rewrite.APIKey, log, timeout)
		default:
			provider = openai.NewClient(cfg.Rewrite.APIKey, log, cfg.Rewrite.BaseURL, timeout)
		}
		rewriter = rewrite.New(provider, rewrite.Config{
			Model:       cfg.Rewrite.Model,
			Temperature: cfg.Rewrite.Temperature,
			MaxTokens:   cfg.Rewrite.MaxTokens,
		}, log)
		log.Info("Rewrite service enabled",
			logger.String("provider", cfg.Rewrite.Provider),
			logger.String("model", cfg.Rewrite.Model),
		)
	} else {
		log.Info("Rewrite service disabled, transcripts get local correction only")
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()

	// Create API router
	router := api.NewRouter(orchestrator, rewriter, historyStore, artifactStore, cfg, log, wsServer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
