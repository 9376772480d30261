// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Seed tree (JSON FileNode). Empty uses the built-in sample.
	SeedFile string

	// Watcher
	PollInterval   time.Duration
	WatchHighlight time.Duration
	WatchWake      bool

	// Editor
	EditorPulse time.Duration

	// Widget defaults
	PanelWidth  int
	Theme       string
	ExpandNames []string
	CollateLang string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:    envOr("METRICS_ADDR", ":9090"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogFormat:      envOr("LOG_FORMAT", "json"),
		SeedFile:       envOr("SEED_FILE", ""),
		PollInterval:   envMillis("POLL_INTERVAL_MS", 500),
		WatchHighlight: envMillis("WATCH_HIGHLIGHT_MS", 1500),
		WatchWake:      envBool("WATCH_WAKE", false),
		EditorPulse:    envMillis("EDITOR_PULSE_MS", 1000),
		PanelWidth:     envInt("PANEL_WIDTH", 250),
		Theme:          envOr("THEME", "dark"),
		ExpandNames:    envList("EXPAND_NAMES", []string{"src"}),
		CollateLang:    envOr("COLLATE_LANG", "en"),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.WatchHighlight <= 0 || cfg.EditorPulse <= 0 {
		return nil, fmt.Errorf("WATCH_HIGHLIGHT_MS and EDITOR_PULSE_MS must be positive")
	}
	if cfg.Theme != "dark" && cfg.Theme != "light" {
		return nil, fmt.Errorf("THEME must be dark or light, got %q", cfg.Theme)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

// envList splits a comma-separated value. Set but blank means an empty list.
func envList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	out := []string{}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
