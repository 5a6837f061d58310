// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all indexd configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database (optional — file fallback takes over when unset)
	DatabaseURL string

	// File store fallback
	DataDir string

	// Remote drive API
	RemoteBaseURL  string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	DriveUserID    string
	RequestTimeout time.Duration

	// Indexing
	IndexRoots       []string
	MaxDepth         int
	CacheTTL         time.Duration
	RefreshInterval  time.Duration
	TraversalWorkers int
	RemoteRPS        float64

	// Search
	SearchLimit   int
	DocExtensions []string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:      envOr("METRICS_ADDR", ":9090"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		DatabaseURL:      envOr("DATABASE_URL", ""),
		DataDir:          envOr("DATA_DIR", "/data/unidrive"),
		RemoteBaseURL:    envOr("REMOTE_BASE_URL", "https://graph.microsoft.com/v1.0"),
		TokenURL:         envOr("TOKEN_URL", ""),
		ClientID:         envOr("CLIENT_ID", ""),
		ClientSecret:     envOr("CLIENT_SECRET", ""),
		DriveUserID:      envOr("DRIVE_USER_ID", ""),
		RequestTimeout:   envDuration("REQUEST_TIMEOUT", 30*time.Second),
		IndexRoots:       envList("INDEX_ROOTS", []string{"University"}),
		MaxDepth:         envInt("MAX_DEPTH", 0),
		CacheTTL:         envDuration("CACHE_TTL", time.Hour),
		RefreshInterval:  envDuration("REFRESH_INTERVAL", 15*time.Minute),
		TraversalWorkers: envInt("TRAVERSAL_WORKERS", 4),
		RemoteRPS:        envFloat("REMOTE_RPS", 5),
		SearchLimit:      envInt("SEARCH_LIMIT", 10),
		DocExtensions:    envList("DOC_EXTENSIONS", nil),
	}

	if cfg.TraversalWorkers < 1 {
		return nil, fmt.Errorf("TRAVERSAL_WORKERS must be at least 1")
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("MAX_DEPTH must not be negative")
	}
	if len(cfg.IndexRoots) == 0 {
		return nil, fmt.Errorf("INDEX_ROOTS must name at least one folder")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
