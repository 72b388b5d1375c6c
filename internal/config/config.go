// Package config provides process configuration read from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/genie/internal/appconfig"
)

// DefaultFallbackAPIEndpoint is used when the app config file has no apiEndpoint
// or cannot be loaded at all.
const DefaultFallbackAPIEndpoint = appconfig.DefaultFallbackEndpoint

// Config holds all process configuration.
type Config struct {
	Port        string
	AppEnv      string // "development" enables always-reload of the app config file
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration
	LogLevel    string
	LogFormat   string // "json" or "text"
	AppConfig   AppConfigSettings
	Relay       RelaySettings
	Admin       AdminSettings
}

// AppConfigSettings controls the JSON application config file.
type AppConfigSettings struct {
	Path             string
	Watch            bool
	FallbackEndpoint string
}

// RelaySettings controls chat forwarding.
type RelaySettings struct {
	UserID    string
	RateLimit float64 // messages per second per user
	RateBurst int
}

// AdminSettings identifies the administrator account and tunes the
// local identity provider.
type AdminSettings struct {
	Email          string
	HashIterations int // PBKDF2 rounds for new password hashes
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      strings.ToLower(getEnv("APP_ENV", "production")),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/genie.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "json")),
		AppConfig: AppConfigSettings{
			Path:             getEnv("APP_CONFIG_PATH", "./app.config.json"),
			Watch:            getEnvBool("APP_CONFIG_WATCH", false),
			FallbackEndpoint: getEnv("FALLBACK_API_ENDPOINT", DefaultFallbackAPIEndpoint),
		},
		Relay: RelaySettings{
			UserID:    getEnv("UPSTREAM_USER_ID", "currentUserIdentifier"),
			RateLimit: getEnvFloat("CHAT_RATE_LIMIT", 1),
			RateBurst: getEnvInt("CHAT_RATE_BURST", 5),
		},
		Admin: AdminSettings{
			Email:          strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", "admin@genie.com"))),
			HashIterations: getEnvInt("PASSWORD_HASH_ITERATIONS", 600000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AppConfig.Path == "" {
		return fmt.Errorf("APP_CONFIG_PATH cannot be empty")
	}
	u, err := url.Parse(c.AppConfig.FallbackEndpoint)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("FALLBACK_API_ENDPOINT must be an absolute URL")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Relay.RateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	if c.Relay.RateBurst <= 0 {
		return fmt.Errorf("CHAT_RATE_BURST must be > 0")
	}
	if c.Admin.HashIterations < 1000 {
		return fmt.Errorf("PASSWORD_HASH_ITERATIONS must be >= 1000")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	if c.IsDevelopment() {
		return false
	}
	return !strings.Contains(c.FrontendURL, "localhost") &&
		!strings.Contains(c.FrontendURL, "127.0.0.1") &&
		c.FrontendURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
