// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	ServerPort        string  `env:"PORT" envDefault:"8080"`
	LogLevel          string  `env:"LOG_LEVEL" envDefault:"info"`
	DatabasePath      string  `env:"DATABASE_PATH" envDefault:"ytgrab.db"`
	CacheDir          string  `env:"CACHE_DIR" envDefault:"cache"`
	CookiesFile       string  `env:"COOKIES_FILE" envDefault:"cookies.txt"`
	YtdlpPath         string  `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	MaxExtractions    int     `env:"MAX_CONCURRENT_EXTRACTIONS" envDefault:"30"`
	RequestsPerSecond float64 `env:"REQUESTS_PER_SECOND" envDefault:"50"`
	BurstSize         int     `env:"BURST_SIZE" envDefault:"100"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	if c.CacheDir == "" {
		return fmt.Errorf("CACHE_DIR cannot be empty")
	}
	c.CacheDir = filepath.Clean(c.CacheDir)

	if c.YtdlpPath == "" {
		return fmt.Errorf("YTDLP_PATH cannot be empty")
	}

	if c.MaxExtractions <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_EXTRACTIONS must be positive, got: %d", c.MaxExtractions)
	}

	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("REQUESTS_PER_SECOND must be positive, got: %v", c.RequestsPerSecond)
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("BURST_SIZE must be positive, got: %d", c.BurstSize)
	}

	return nil
}
