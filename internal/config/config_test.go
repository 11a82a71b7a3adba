package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("AUTH_ENABLED", "")

	cfg := Load()
	assert.Equal(t, "esimmock", cfg.AppName)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 20, cfg.DBMaxOpenConn)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, []string{"/health", "/metrics", "/v1/admin/health", "/qr/"}, cfg.Auth.PublicPrefixes)
	assert.Equal(t, 5.0, cfg.RateLimit.ProvisionRate)
	assert.Equal(t, 10, cfg.RateLimit.OrderLockTTL)
	assert.True(t, cfg.SeedOnStart)
}

func TestLoadProductionEnablesAuth(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_ENABLED", "")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Auth.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://mock.example.com/")
	t.Setenv("RATE_LIMIT_PROVISION_BURST", "3")
	t.Setenv("AUTH_PUBLIC_PATHS", " /health , ,/qr/ ")

	cfg := Load()
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, "https://mock.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 3, cfg.RateLimit.ProvisionBurst)
	assert.Equal(t, []string{"/health", "/qr/"}, cfg.Auth.PublicPrefixes)
}
