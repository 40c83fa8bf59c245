// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Fleet    FleetConfig
	Import   ImportConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8090, the fleet service owns 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8090"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default so progress streams stay open
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds settings for the import history database.
// History is disabled when URL is empty.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema migrations on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// Enabled reports whether a history database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// FleetConfig holds settings for the remote fleet service.
type FleetConfig struct {
	// BaseURL is the fleet service root (default: http://localhost:8080)
	BaseURL string `env:"FLEET_API_BASE_URL" envAlt:"BASE_URL" default:"http://localhost:8080"`

	// Token is sent as a bearer token when set
	Token string `env:"FLEET_API_TOKEN"`

	// Timeout bounds a single request to the fleet service (default: 15s)
	Timeout time.Duration `env:"FLEET_API_TIMEOUT" default:"15s"`

	// RateLimitRPS paces submissions; 0 disables pacing (default: 0)
	RateLimitRPS float64 `env:"FLEET_API_RATE_LIMIT_RPS" default:"0"`
}

// ImportConfig holds import processing settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single import (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// ResultRetention is how long finished imports stay queryable in memory (default: 15m)
	ResultRetention time.Duration `env:"IMPORT_RESULT_RETENTION" default:"15m"`

	// DefaultPolicy is fail-fast or best-effort (default: fail-fast)
	DefaultPolicy string `env:"IMPORT_DEFAULT_POLICY" default:"fail-fast"`

	// SkipMalformedRows drops rows with the wrong field count (default: true)
	SkipMalformedRows bool `env:"IMPORT_SKIP_MALFORMED_ROWS" default:"true"`
}

// HistoryConfig holds import history retention settings.
type HistoryConfig struct {
	// Retention is how long finished imports are kept (default: 30 days)
	Retention time.Duration `env:"HISTORY_RETENTION" default:"720h"`

	// PruneInterval is how often old imports are deleted (default: 24h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects /api requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
