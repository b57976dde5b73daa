package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  port: 8080
database:
  driver: memory
provider:
  webhook_secret: "whsec"
jwt:
  secret: "0123456789abcdef0123456789abcdef"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 72, cfg.Policy.DisputeGraceHours)
	assert.Equal(t, 48, cfg.Policy.RequestExpiryHours)
	assert.Equal(t, 3, cfg.Policy.ProviderMaxAttempts)
	assert.Equal(t, 10, cfg.Provider.TimeoutSeconds)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL())
	assert.Equal(t, "0 */5 * * * *", cfg.Scheduler.ReconcilePayments)
	assert.Equal(t, ":8080", cfg.GetServerAddress())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PROVIDER_WEBHOOK_SECRET", "from-env")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Provider.WebhookSecret)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "postgres", Host: "localhost", User: "rental", Database: "peer_rental"},
			Provider: ProviderConfig{WebhookSecret: "whsec"},
			JWT:      JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "postgres://rental:@localhost:0/peer_rental?sslmode=disable", cfg.GetDatabaseConnectionString())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing host", func(c *Config) { c.Database.Host = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"provider without key", func(c *Config) { c.Provider.BaseURL = "https://provider.test" }},
		{"missing webhook secret", func(c *Config) { c.Provider.WebhookSecret = "" }},
		{"short jwt secret", func(c *Config) { c.JWT.Secret = "short" }},
		{"firebase without credentials", func(c *Config) { c.Firebase.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("auth.login"))
	assert.Equal(t, SecurityRefresh, GetSecurityLevel("auth.refresh"))
	assert.Equal(t, SecuritySignature, GetSecurityLevel("webhooks.charge"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("bookings.create"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("unregistered.route"))
}
