/*
config.go - Process configuration

PURPOSE:
  Loads server configuration from the environment, with an optional .env
  file for development. Flags on cmd/server override the environment so a
  local run never needs a file at all.

VARIABLES:
  PORT             HTTP port                       (default 8080)
  DATABASE_PATH    SQLite path, ":memory:" allowed (default billable.db)
  JWT_SECRET       HMAC signing secret             (required outside dev)
  JWT_EXPIRATION   token lifetime, Go duration     (default 24h)
  LOG_LEVEL        zerolog level name              (default info)
  LOG_FORMAT       console or json                 (default console)
  CORS_ORIGINS     comma-separated allowed origins

SEE ALSO:
  - cmd/server/main.go: Startup and flag overrides
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DatabasePath  string
	JWTSecret     string
	JWTExpiration time.Duration
	LogLevel      string
	LogFormat     string
	CORSOrigins   []string
}

// Load reads .env when present, then the environment. A missing .env is not
// an error; a malformed value is.
func Load() (*Config, error) {
	// .env is a developer convenience, never required
	_ = godotenv.Load()

	cfg := &Config{
		Port:          8080,
		DatabasePath:  "billable.db",
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: 24 * time.Hour,
		LogLevel:      "info",
		LogFormat:     "console",
		CORSOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("JWT_EXPIRATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION %q: %w", v, err)
		}
		cfg.JWTExpiration = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	if cfg.JWTSecret == "" {
		// Dev fallback so a bare `go run` works; production must set it.
		cfg.JWTSecret = "dev-secret-change-me"
	}
	return cfg, nil
}
