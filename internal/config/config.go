// Package config provides configuration loading from environment
// variables with defaults for the GhostTrail binaries.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvInt returns the integer for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// CollectorConfig holds configuration for the collector process.
type CollectorConfig struct {
	// OutFile is the append-only JSONL log of accepted events.
	OutFile string
	// IncidentsDir is the base directory for incident artifacts.
	IncidentsDir string
	// MaxDepth bounds lineage chain length.
	MaxDepth int
	// SpoolDir, when non-empty, enables the spool-directory feed.
	SpoolDir string
	// HTTPAddr, when non-empty, enables the health/stats/metrics server.
	HTTPAddr string
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultCollectorConfig returns collector config from environment with defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		OutFile:         GetEnv("GHOSTTRAIL_OUTFILE", "alerts.jsonl"),
		IncidentsDir:    GetEnv("GHOSTTRAIL_INCIDENTS_DIR", defaultIncidentsDir()),
		MaxDepth:        GetEnvInt("GHOSTTRAIL_MAX_DEPTH", 25),
		SpoolDir:        GetEnv("GHOSTTRAIL_SPOOL_DIR", ""),
		HTTPAddr:        GetEnv("GHOSTTRAIL_HTTP_ADDR", ""),
		ShutdownTimeout: GetEnvDuration("GHOSTTRAIL_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func defaultIncidentsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "ghosttrail", "incidents")
}
