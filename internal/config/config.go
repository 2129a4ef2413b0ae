package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Storage       StorageConfig       `toml:"storage"`       // History persistence settings
	Artifacts     ArtifactsConfig     `toml:"artifacts"`     // Saved audio artifact settings
	Transcription TranscriptionConfig `toml:"transcription"` // Remote transcription settings
	Rewrite       RewriteConfig       `toml:"rewrite"`       // Transcript rewrite settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g. 127.0.0.1 for localhost only)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout; dictation uploads can be slow)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains history persistence configuration
type StorageConfig struct {
	SQLitePath      string `toml:"sqlite_path"`       // Path to the history database file
	HistoryMaxCount int    `toml:"history_max_count"` // Maximum number of history items kept; older items are evicted on insert
}

// ArtifactsConfig controls where finished audio recordings are kept
type ArtifactsConfig struct {
	Dir       string `toml:"dir"`        // Directory for saved audio artifacts
	KeepAudio bool   `toml:"keep_audio"` // When false, the audio artifact is deleted right after a dictation is stored
}

// TranscriptionConfig contains settings for the remote transcription service
type TranscriptionConfig struct {
	BaseURL            string `toml:"base_url"`                // Transcription API base URL (e.g. https://api.assemblyai.com)
	APIKey             string `toml:"api_key"`                 // Bearer credential for the transcription service
	Model              string `toml:"model"`                   // Speech model requested on job submission
	Punctuate          bool   `toml:"punctuate"`               // Ask the remote service for punctuation
	FormatText         bool   `toml:"format_text"`             // Ask the remote service for casing/formatting normalization
	PollIntervalMs     int    `toml:"poll_interval_ms"`        // Delay between job status polls in milliseconds
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"` // Per-request HTTP timeout (upload can carry several MB of audio)
}

// RewriteConfig contains settings for the vocabulary-aware rewrite step
type RewriteConfig struct {
	Enabled     bool    `toml:"enabled"`      // When false, only the local fuzzy correction pass runs
	Provider    string  `toml:"provider"`     // Chat backend: "openai" or "gemini"
	APIKey      string  `toml:"api_key"`      // API key for the chat backend
	BaseURL     string  `toml:"base_url"`     // Optional base URL override (e.g. for proxies)
	Model       string  `toml:"model"`        // Chat model to use (e.g. "gpt-4o-mini")
	Temperature float64 `toml:"temperature"`  // Sampling temperature; 0 keeps rewrites deterministic
	MaxTokens   int     `toml:"max_tokens"`   // Response token cap
	TimeoutSecs int     `toml:"timeout_secs"` // Per-request timeout for the rewrite call
}

// Default returns a configuration with sensible defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8750,
			Host:             "127.0.0.1",
			ReadTimeoutSecs:  60,
			WriteTimeoutSecs: 0,
			IdleTimeoutSecs:  120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			SQLitePath:      "data/murmur.db",
			HistoryMaxCount: 100,
		},
		Artifacts: ArtifactsConfig{
			Dir:       "data/audio",
			KeepAudio: true,
		},
		Transcription: TranscriptionConfig{
			BaseURL:            "https://api.assemblyai.com",
			Model:              "best",
			Punctuate:          true,
			FormatText:         true,
			PollIntervalMs:     1000,
			RequestTimeoutSecs: 120,
		},
		Rewrite: RewriteConfig{
			Enabled:     true,
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   4096,
			TimeoutSecs: 60,
		},
	}
}

// Load reads the configuration from the given TOML file, layered over the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadWithFallback loads configuration from the provided path. When path is
// empty it searches configs/murmur.toml and then murmur.toml in the working
// directory; when none exists, the defaults are returned.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	for _, candidate := range []string{
		filepath.Join("configs", "murmur.toml"),
		"murmur.toml",
	} {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	return Default(), nil
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}

	if c.Storage.HistoryMaxCount < 0 {
		return fmt.Errorf("history_max_count must not be negative, got %d", c.Storage.HistoryMaxCount)
	}

	if c.Transcription.BaseURL == "" {
		return fmt.Errorf("transcription base_url is required")
	}
	if c.Transcription.PollIntervalMs <= 0 {
		return fmt.Errorf("transcription poll_interval_ms must be positive, got %d", c.Transcription.PollIntervalMs)
	}

	if c.Rewrite.Enabled {
		switch c.Rewrite.Provider {
		case "openai", "gemini":
		default:
			return fmt.Errorf("rewrite provider must be \"openai\" or \"gemini\", got %q", c.Rewrite.Provider)
		}
		if c.Rewrite.Model == "" {
			return fmt.Errorf("rewrite model is required when rewrite is enabled")
		}
	}

	return nil
}
