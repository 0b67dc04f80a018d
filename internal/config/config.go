package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration for the hyphy-mcp server.
type Config struct {
	Server     ServerConfig
	Datamonkey DatamonkeyConfig
	Results    ResultsConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	LogLevel   string
}

type ServerConfig struct {
	Transport          string
	Port               int
	Env                string
	RateLimitPerMinute int
	// PublicURL is the address SSE clients are told to post messages to.
	PublicURL string
}

type DatamonkeyConfig struct {
	URL             string
	Port            int
	Timeout         time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
}

// BaseURL is the API root, e.g. http://localhost:9300/api/v1.
func (d DatamonkeyConfig) BaseURL() string {
	return fmt.Sprintf("%s:%d/api/v1", strings.TrimRight(d.URL, "/"), d.Port)
}

type ResultsConfig struct {
	Dir string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	JobStatusTTL time.Duration
}

type NATSConfig struct {
	URL     string
	Subject string
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Only the Datamonkey location has meaningful defaults; Postgres, Redis and
// NATS are enabled by setting their URLs.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Transport:          strings.ToLower(envString("HYPHY_MCP_TRANSPORT", TransportStdio)),
			Port:               envInt("HYPHY_MCP_PORT", 8080),
			Env:                envString("HYPHY_MCP_ENV", "development"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Datamonkey: DatamonkeyConfig{
			URL:             envString("DATAMONKEY_API_URL", "http://localhost"),
			Port:            envInt("DATAMONKEY_API_PORT", 9300),
			Timeout:         envDuration("DATAMONKEY_TIMEOUT", 30*time.Second),
			PollInterval:    envDuration("DATAMONKEY_POLL_INTERVAL", 10*time.Second),
			MaxPollAttempts: envInt("DATAMONKEY_POLL_MAX_ATTEMPTS", 0),
		},
		Results: ResultsConfig{
			Dir: envString("RESULTS_DIR", os.TempDir()),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			JobStatusTTL: envDuration("JOB_STATUS_TTL", 30*time.Minute),
		},
		NATS: NATSConfig{
			URL:     os.Getenv("NATS_URL"),
			Subject: envString("NATS_SUBJECT", "hyphy.jobs"),
		},
		LogLevel: strings.ToLower(envString("LOG_LEVEL", "info")),
	}
	cfg.Server.PublicURL = strings.TrimRight(
		envString("HYPHY_MCP_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)), "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Transport != TransportStdio && c.Server.Transport != TransportHTTP {
		return fmt.Errorf("HYPHY_MCP_TRANSPORT must be stdio or http, got %q", c.Server.Transport)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HYPHY_MCP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		return fmt.Errorf("HYPHY_MCP_BASE_URL must start with http:// or https://, got %q", c.Server.PublicURL)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.Server.RateLimitPerMinute)
	}

	if !strings.HasPrefix(c.Datamonkey.URL, "http://") && !strings.HasPrefix(c.Datamonkey.URL, "https://") {
		return fmt.Errorf("DATAMONKEY_API_URL must start with http:// or https://, got %q", c.Datamonkey.URL)
	}
	if c.Datamonkey.Port < 1 || c.Datamonkey.Port > 65535 {
		return fmt.Errorf("DATAMONKEY_API_PORT must be between 1 and 65535, got %d", c.Datamonkey.Port)
	}
	if c.Datamonkey.PollInterval <= 0 {
		return fmt.Errorf("DATAMONKEY_POLL_INTERVAL must be positive, got %s", c.Datamonkey.PollInterval)
	}
	if c.Datamonkey.MaxPollAttempts < 0 {
		return fmt.Errorf("DATAMONKEY_POLL_MAX_ATTEMPTS must not be negative, got %d", c.Datamonkey.MaxPollAttempts)
	}

	if c.Results.Dir == "" {
		return fmt.Errorf("RESULTS_DIR must not be empty")
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}

	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// envDuration accepts Go durations ("90s") or bare seconds ("90").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
