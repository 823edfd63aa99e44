package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRead_Defaults(t *testing.T) {
	t.Setenv("CFG_PATH", "")

	cfg, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "us-east-1", cfg.Identity.Region)
	assert.Equal(t, "000000000000", cfg.Identity.AccountID)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 60*time.Second, cfg.PurgeCooldown())
	assert.Equal(t, 5*time.Minute, cfg.DedupWindow())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, 10, cfg.Engine.MaxBatchEntries)
	assert.Equal(t, 262144, cfg.Engine.MaxBatchBytes)
	assert.Equal(t, 500, cfg.Engine.DefaultMoveRate)
}

func TestRead_YAML(t *testing.T) {
	t.Setenv("CFG_PATH", writeConfig(t, `
server:
  port: "9324"
  loglevel: debug
identity:
  region: eu-west-1
  accountId: "123456789012"
engine:
  purgeCooldown: 5
  dedupWindow: 30
  maxBatchEntries: 10
  maxBatchBytes: 1024
  defaultMoveRate: 50
`))

	cfg, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "9324", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "eu-west-1", cfg.Identity.Region)
	assert.Equal(t, "123456789012", cfg.Identity.AccountID)
	assert.Equal(t, 5*time.Second, cfg.PurgeCooldown())
	assert.Equal(t, 30*time.Second, cfg.DedupWindow())
	assert.Equal(t, 1024, cfg.Engine.MaxBatchBytes)
	assert.Equal(t, 50, cfg.Engine.DefaultMoveRate)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
}

func TestRead_EnvOverridesYAML(t *testing.T) {
	t.Setenv("CFG_PATH", writeConfig(t, "server:\n  port: \"9324\"\n"))
	t.Setenv("MEMQ_PORT", "7000")
	t.Setenv("MEMQ_ACCOUNT_ID", "222222222222")
	t.Setenv("MEMQ_DEDUP_WINDOW", "60")
	t.Setenv("MEMQ_AUTH_ENABLED", "true")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "222222222222", cfg.Identity.AccountID)
	assert.Equal(t, time.Minute, cfg.DedupWindow())
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing file", map[string]string{"CFG_PATH": "/nonexistent/config.yml"}},
		{"bad integer", map[string]string{"MEMQ_PURGE_COOLDOWN": "soon"}},
		{"bad boolean", map[string]string{"MEMQ_AUTH_ENABLED": "maybe"}},
		{"invalid range", map[string]string{"MEMQ_DEFAULT_MOVE_RATE": "501"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CFG_PATH", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Read()
			assert.Error(t, err)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		t.Setenv("CFG_PATH", writeConfig(t, "server: [unterminated"))
		_, err := Read()
		assert.ErrorContains(t, err, "parse")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"defaults", func(*AppConfig) {}, ""},
		{"empty port", func(c *AppConfig) { c.Server.Port = "" }, "port is required"},
		{"empty region", func(c *AppConfig) { c.Identity.Region = "" }, "region and account id are required"},
		{"negative cooldown", func(c *AppConfig) { c.Engine.PurgeCooldown = -1 }, "must not be negative"},
		{"zero batch entries", func(c *AppConfig) { c.Engine.MaxBatchEntries = 0 }, "maxBatchEntries"},
		{"zero batch bytes", func(c *AppConfig) { c.Engine.MaxBatchBytes = 0 }, "maxBatchBytes"},
		{"move rate too low", func(c *AppConfig) { c.Engine.DefaultMoveRate = 0 }, "defaultMoveRate"},
		{"auth without secret", func(c *AppConfig) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = ""
		}, "jwt secret"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
