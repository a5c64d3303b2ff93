package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name: "all values set",
			envVars: map[string]string{
				"PORT":         "9090",
				"LOG_LEVEL":    "debug",
				"CACHE_DIR":    "/tmp/cache",
				"COOKIES_FILE": "/tmp/cookies.txt",
				"YTDLP_PATH":   "/usr/local/bin/yt-dlp",
			},
			wantErr: false,
		},
		{
			name:    "defaults applied",
			envVars: map[string]string{},
			wantErr: false,
		},
		{
			name: "invalid log level",
			envVars: map[string]string{
				"LOG_LEVEL": "loud",
			},
			wantErr: true,
		},
		{
			name: "invalid worker count",
			envVars: map[string]string{
				"MAX_CONCURRENT_EXTRACTIONS": "-1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			// Verify defaults
			if _, exists := tt.envVars["PORT"]; !exists {
				require.Equal(t, "8080", cfg.ServerPort)
			}
			if _, exists := tt.envVars["LOG_LEVEL"]; !exists {
				require.Equal(t, "info", cfg.LogLevel)
			}
			if _, exists := tt.envVars["CACHE_DIR"]; !exists {
				require.Equal(t, "cache", cfg.CacheDir)
			}
			if _, exists := tt.envVars["YTDLP_PATH"]; !exists {
				require.Equal(t, "yt-dlp", cfg.YtdlpPath)
			}
			if _, exists := tt.envVars["MAX_CONCURRENT_EXTRACTIONS"]; !exists {
				require.Equal(t, 30, cfg.MaxExtractions)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ServerPort:        "8080",
		LogLevel:          "info",
		DatabasePath:      "ytgrab.db",
		CacheDir:          "cache",
		CookiesFile:       "cookies.txt",
		YtdlpPath:         "yt-dlp",
		MaxExtractions:    30,
		RequestsPerSecond: 50,
		BurstSize:         100,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
		{"empty cache dir", func(c *Config) { c.CacheDir = "" }, true},
		{"empty ytdlp path", func(c *Config) { c.YtdlpPath = "" }, true},
		{"zero extractions", func(c *Config) { c.MaxExtractions = 0 }, true},
		{"zero rate", func(c *Config) { c.RequestsPerSecond = 0 }, true},
		{"zero burst", func(c *Config) { c.BurstSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
