// Package config loads service configuration from the environment, with
// optional .env files for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration shared by the API server and the
// refresh worker.
type Config struct {
	// Port is the HTTP listen port.
	Port string
	// Env names the deployment environment (development, production).
	Env string

	// DataDir is the root directory for the on-disk transit catalogs.
	DataDir string
	// DatabasePath is the SQLite database file.
	DatabasePath string
	// CatalogThresholdDays is how long cached catalogs stay fresh.
	CatalogThresholdDays int

	// RefreshInterval is the worker's bookmark refresh period.
	RefreshInterval time.Duration
	// RefreshConcurrency bounds parallel upstream ETA fetches per cycle.
	RefreshConcurrency int

	// OTLPEndpoint is the OpenTelemetry collector address.
	OTLPEndpoint string
	// TelemetryEnabled switches OTLP export on.
	TelemetryEnabled bool
}

// Load reads .env then .env.local (overriding), and resolves the
// configuration from the environment with defaults suitable for local
// development.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := Config{
		Port:                 getenv("APP_PORT", "8080"),
		Env:                  getenv("APP_ENV", "development"),
		DataDir:              getenv("DATA_DIR", "data/catalogs"),
		DatabasePath:         getenv("SQLITE_DATABASE", "data/etapaper.db"),
		CatalogThresholdDays: 30,
		RefreshInterval:      30 * time.Second,
		RefreshConcurrency:   4,
		OTLPEndpoint:         getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled:     os.Getenv("OTEL_ENABLED") == "true",
	}

	if v := os.Getenv("CATALOG_THRESHOLD_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing CATALOG_THRESHOLD_DAYS: %w", err)
		}
		cfg.CatalogThresholdDays = days
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing REFRESH_INTERVAL: %w", err)
		}
		cfg.RefreshInterval = d
	}
	if v := os.Getenv("REFRESH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid REFRESH_CONCURRENCY %q", v)
		}
		cfg.RefreshConcurrency = n
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
