package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"empty gateway address", func(c *Config) { c.Gateway.Address = "" }},
		{"zero ping interval", func(c *Config) { c.Gateway.PingInterval = 0 }},
		{"empty broadcast url", func(c *Config) { c.Broadcast.BaseURL = "" }},
		{"negative grace window", func(c *Config) { c.Broadcast.JoinGraceWindow = -time.Second }},
		{"billing without interval", func(c *Config) { c.Billing.Enabled = true; c.Billing.ChargeInterval = 0 }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
		{"redis without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"rate limit without rps", func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.RequestsPerSecond = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Broadcast.JoinGraceWindow)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  address: ":9999"
broadcast:
  base_url: "http://media:5080"
  join_grace_window: 5s
billing:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "http://media:5080", cfg.Broadcast.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Broadcast.JoinGraceWindow)
	assert.False(t, cfg.Billing.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, ":8081", cfg.Gateway.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsInvalidYAMLValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  address: ""
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STAGECAST_BROADCAST_URL", "http://env-media:5080")
	t.Setenv("STAGECAST_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://env-media:5080", cfg.Broadcast.BaseURL)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}
