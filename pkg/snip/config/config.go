package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/crypto/bcrypt"
)

// devJWTSecret is only accepted when APP_ENV is development or test
const devJWTSecret = "snip-dev-secret-change-in-production"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	ShortCode ShortCodeConfig
	App       AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	BaseURL         string        `envconfig:"SNIP_BASE_URL"` // empty: derived from each request
	GinMode         string        `envconfig:"GIN_MODE" default:"release"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base URL must start with http:// or https://, got %q", c.BaseURL)
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode: %s (must be one of: debug, release, test)", c.GinMode)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds the database location.
type DatabaseConfig struct {
	DSN string `envconfig:"SNIP_DB_DSN" default:"snip.db"` // postgres:// URL or sqlite path
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	return nil
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        `envconfig:"JWT_SECRET"`
	JWTIssuer  string        `envconfig:"JWT_ISSUER" default:"snip"`
	JWTTTL     time.Duration `envconfig:"JWT_TTL" default:"24h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"12"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if c.JWTIssuer == "" {
		return fmt.Errorf("JWT issuer cannot be empty")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT TTL must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	return nil
}

// ShortCodeConfig controls generated short codes.
type ShortCodeConfig struct {
	Length      int `envconfig:"SHORT_CODE_LENGTH" default:"6"`
	MaxAttempts int `envconfig:"SHORT_CODE_MAX_ATTEMPTS" default:"10"`
}

// Validate validates the short code configuration.
func (c *ShortCodeConfig) Validate() error {
	if c.Length < 4 || c.Length > 10 {
		return fmt.Errorf("short code length must be between 4 and 10, got %d", c.Length)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("short code max attempts must be positive")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"production"` // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`     // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsDevelopment reports whether insecure defaults are acceptable.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// ParseLogLevel converts a LOG_LEVEL value to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// Missing .env is normal outside local development
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv loads and validates configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", &cfg.App); err != nil {
		return nil, fmt.Errorf("failed to load App config: %w", err)
	}
	if err := cfg.App.Validate(); err != nil {
		return nil, fmt.Errorf("invalid App config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load Server config: %w", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to load Database config: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Database config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to load Auth config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" && cfg.App.IsDevelopment() {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Auth config: %w", err)
	}

	if err := envconfig.Process("", &cfg.ShortCode); err != nil {
		return nil, fmt.Errorf("failed to load ShortCode config: %w", err)
	}
	if err := cfg.ShortCode.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ShortCode config: %w", err)
	}

	return cfg, nil
}
