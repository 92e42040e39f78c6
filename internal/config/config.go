// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/pkg/logging"
)

// devSecret signs tokens when no JWT_SECRET is set in development.
const devSecret = "splitledger-dev-secret"

var ErrMissingSecret = errors.New("JWT_SECRET must be set outside development")

// Config holds everything the server needs at startup.
type Config struct {
	Env             string
	Port            int
	DBPath          string
	JWTSecret       string
	TokenTTL        time.Duration
	DefaultCurrency string
	LogLevel        slog.Level
	LogFormat       string // "text" or "json"
}

// Development reports whether the server runs with development defaults.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// Load reads the configuration from environment variables.
//
// Environment variables:
//
//	ENV:              development or production (default: development)
//	PORT:             listen port (default: 8080)
//	DB_PATH:          SQLite file (default: ./data/ledger.db)
//	JWT_SECRET:       token signing key, required outside development
//	TOKEN_TTL:        session lifetime as a Go duration (default: 24h)
//	DEFAULT_CURRENCY: currency for new groups (default: USD)
//	LOG_LEVEL:        debug, info, warn, error (default: info)
//	LOG_FORMAT:       text or json (default: text)
func Load() (*Config, error) {
	cfg := &Config{
		Env:             strings.ToLower(getEnv("ENV", "development")),
		DBPath:          getEnv("DB_PATH", "./data/ledger.db"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", money.DefaultCurrency)),
		LogLevel:        logging.ParseLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid TOKEN_TTL %s: must be positive", ttl)
	}
	cfg.TokenTTL = ttl

	if !money.IsKnownCurrency(cfg.DefaultCurrency) {
		return nil, fmt.Errorf("invalid DEFAULT_CURRENCY %q", cfg.DefaultCurrency)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", cfg.LogFormat)
	}

	if cfg.JWTSecret == "" {
		if !cfg.Development() {
			return nil, ErrMissingSecret
		}
		cfg.JWTSecret = devSecret
	}

	return cfg, nil
}
