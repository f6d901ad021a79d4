// Package config loads gateway configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the gateway process.
type Config struct {
	// Server settings
	Port          int
	AllowedOrigin string

	// Database
	DatabaseDSN    string
	DatabaseDriver string // "postgres" or "sqlite", auto-detected from DSN

	// Sandbox containers
	SandboxImage  string
	ImagePlatform string
	DockerHost    string // optional override; empty uses the environment

	// Logging
	LogLevel  string
	LogFormat string // "console" or "json"
}

// Load reads configuration from environment variables.
// DATABASE_URL is the only required variable; everything else has defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Port = getEnvInt("PORT", 9000)
	cfg.AllowedOrigin = getEnv("ALLOWED_ORIGIN", "http://localhost")

	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	cfg.DatabaseDriver = detectDriver(cfg.DatabaseDSN)

	cfg.SandboxImage = getEnv("SANDBOX_IMAGE", "ubuntu:20.04")
	cfg.ImagePlatform = getEnv("SANDBOX_PLATFORM", "linux/amd64")
	cfg.DockerHost = getEnv("DOCKER_HOST", "")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	return cfg, nil
}

// detectDriver determines the database driver from the DSN.
func detectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.HasPrefix(dsn, "sqlite://") || strings.HasSuffix(dsn, ".db") || dsn == ":memory:" {
		return "sqlite"
	}
	return "postgres"
}

// CleanDSN removes the sqlite scheme prefix so the driver sees a plain path.
func (c *Config) CleanDSN() string {
	if c.DatabaseDriver == "sqlite" {
		return strings.TrimPrefix(c.DatabaseDSN, "sqlite://")
	}
	return c.DatabaseDSN
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
