package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Database.DSN != "snip.db" {
		t.Errorf("Expected default DSN snip.db, got %s", cfg.Database.DSN)
	}
	if cfg.Auth.JWTSecret != devJWTSecret {
		t.Error("Expected development JWT secret in test environment")
	}
	if cfg.Auth.JWTTTL != 24*time.Hour {
		t.Errorf("Expected 24h TTL, got %s", cfg.Auth.JWTTTL)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("Expected bcrypt cost 12, got %d", cfg.Auth.BcryptCost)
	}
	if cfg.ShortCode.Length != 6 || cfg.ShortCode.MaxAttempts != 10 {
		t.Errorf("Unexpected short code defaults: %+v", cfg.ShortCode)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9090")
	t.Setenv("SNIP_BASE_URL", "https://sn.ip")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("SHORT_CODE_LENGTH", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.BaseURL != "https://sn.ip" {
		t.Errorf("Unexpected server config: %+v", cfg.Server)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.JWTTTL != time.Hour {
		t.Errorf("Unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.ShortCode.Length != 8 {
		t.Errorf("Expected length 8, got %d", cfg.ShortCode.Length)
	}
}

func TestFromEnvRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	if err == nil || !strings.Contains(err.Error(), "JWT secret") {
		t.Errorf("Expected JWT secret error, got %v", err)
	}
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad environment", "APP_ENV", "moon"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"short code too long", "SHORT_CODE_LENGTH", "11"},
		{"no attempts", "SHORT_CODE_MAX_ATTEMPTS", "0"},
		{"bcrypt cost too high", "BCRYPT_COST", "40"},
		{"base url without scheme", "SNIP_BASE_URL", "sn.ip"},
		{"bad gin mode", "GIN_MODE", "turbo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "test")
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("warn")
	if err != nil || level != slog.LevelWarn {
		t.Errorf("Expected warn level, got %v (%v)", level, err)
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
