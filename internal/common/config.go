// Package common provides shared utilities for the ocean lab applications.
package common

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
	LogLevel           string
	LogFormat          string
	HTTPTimeout        time.Duration
	MetricsFile        string

	// Climate Data Store credentials. Empty values fall back to CDSAPIRC.
	CDSAPIURL string
	CDSAPIKey string
	CDSAPIRC  string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     9000,
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "ocean"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            getEnv("OCEAN_DATA_DIR", "/var/lib/ocean-lab"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		HTTPTimeout:        5 * time.Minute,
		MetricsFile:        getEnv("METRICS_FILE", ""),
		CDSAPIURL:          getEnv("CDSAPI_URL", ""),
		CDSAPIKey:          getEnv("CDSAPI_KEY", ""),
		CDSAPIRC:           getEnv("CDSAPI_RC", filepath.Join(home, ".cdsapirc")),
	}
}

// Load returns DefaultConfig with the numeric and enumerated environment
// variables parsed and validated.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if s := os.Getenv("CLICKHOUSE_PORT"); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid CLICKHOUSE_PORT %q", s)
		}
		cfg.ClickHousePort = port
	}

	if s := os.Getenv("HTTP_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT %q", s)
		}
		cfg.HTTPTimeout = d
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
		cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (allowed: text, json)", cfg.LogFormat)
	}

	if cfg.DataDir == "" {
		return nil, errors.New("OCEAN_DATA_DIR must not be empty")
	}

	return cfg, nil
}

// ClickHouseAddr returns the host:port address of the ClickHouse native port.
func (c *Config) ClickHouseAddr() string {
	return fmt.Sprintf("%s:%d", c.ClickHouseHost, c.ClickHousePort)
}

// ReanalysisDir returns the directory for ERA5 and CFSv2 downloads.
func (c *Config) ReanalysisDir() string {
	return filepath.Join(c.DataDir, "reanalysis")
}

// SeaIceDir returns the sea-ice data directory path.
func (c *Config) SeaIceDir() string {
	return filepath.Join(c.DataDir, "seaice")
}

// SSTDir returns the sea surface temperature data directory path.
func (c *Config) SSTDir() string {
	return filepath.Join(c.DataDir, "sst")
}

// ManifestPath returns the path of the download manifest database.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.DataDir, "manifest.db")
}

// SetClickHouseAddr overrides host and port from a host:port flag value.
func (c *Config) SetClickHouseAddr(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid ClickHouse address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid ClickHouse port in %q", addr)
	}
	c.ClickHouseHost = host
	c.ClickHousePort = port
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
