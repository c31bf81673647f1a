package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, "bowie.edu", cfg.InstitutionDomain)
	assert.Equal(t, "staff", cfg.ReviewerRole)
	assert.Equal(t, "admin", cfg.AdminRole)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpire)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 5, cfg.MaxAttachments)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("JWT_EXPIRE", "2d")
	t.Setenv("REVIEWER_ROLE", "Faculty")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT", "not-a-number")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 48*time.Hour, cfg.JWTExpire)
	assert.Equal(t, "faculty", cfg.ReviewerRole)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.True(t, cfg.IsProduction())
}

func TestDurationParsing(t *testing.T) {
	cases := map[string]time.Duration{
		"12h": 12 * time.Hour,
		"1d":  24 * time.Hour,
		"0d":  time.Hour,
		"-5m": time.Hour,
		"abc": time.Hour,
	}
	for raw, want := range cases {
		t.Setenv("TEST_DURATION", raw)
		assert.Equal(t, want, getEnvDurationOrDefault("TEST_DURATION", time.Hour), raw)
	}
}

func TestValidateRoles(t *testing.T) {
	cfg := Load()
	assert.NoError(t, cfg.Validate())

	cases := []struct {
		reviewer, admin, key string
	}{
		{"moderator", "admin", "REVIEWER_ROLE"},
		{"staff", "", "ADMIN_ROLE"},
		{"staff", "superuser", "ADMIN_ROLE"},
		{"admin", "staff", "ranks above"},
	}
	for _, tc := range cases {
		cfg.ReviewerRole, cfg.AdminRole = tc.reviewer, tc.admin
		err := cfg.Validate()
		if assert.Error(t, err, "%s/%s", tc.reviewer, tc.admin) {
			assert.Contains(t, err.Error(), tc.key)
		}
	}

	cfg.ReviewerRole, cfg.AdminRole = "faculty", "staff"
	assert.NoError(t, cfg.Validate())
}
