package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, defaults().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/printdesk.db", cfg.Database.Path)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9090
database:
  path: /var/lib/printdesk/db.sqlite
  query_timeout: 3s
auth:
  admin_usernames: [admin, staff]
webhooks:
  endpoints:
    - name: slack
      url: https://hooks.example.com/printdesk
      secret: s3cret
      events: [job.submitted]
logging:
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/printdesk/db.sqlite", cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.True(t, cfg.Auth.IsAdmin("staff"))
	assert.False(t, cfg.Auth.IsAdmin("guest"))
	require.Len(t, cfg.Webhooks.Endpoints, 1)
	assert.Equal(t, []string{"job.submitted"}, cfg.Webhooks.Endpoints[0].Events)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PRINTDESK_PORT":               "7000",
		"PRINTDESK_DB_PATH":            "/tmp/p.db",
		"PRINTDESK_DB_QUERY_TIMEOUT":   "2s",
		"PRINTDESK_ADMIN_USERNAMES":    "root, ops ,",
		"PRINTDESK_WS_ALLOWED_ORIGINS": "https://desk.example.com",
		"PRINTDESK_LOG_LEVEL":          "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := defaults()
	require.NoError(t, applyEnv(cfg, lookup))
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/tmp/p.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, []string{"root", "ops"}, cfg.Auth.AdminUsernames)
	assert.Equal(t, []string{"https://desk.example.com"}, cfg.Notifications.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)

	env["PRINTDESK_PORT"] = "abc"
	assert.Error(t, applyEnv(defaults(), lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"db path", func(c *Config) { c.Database.Path = "" }},
		{"query timeout", func(c *Config) { c.Database.QueryTimeout = 0 }},
		{"token duration", func(c *Config) { c.Auth.TokenDuration = 0 }},
		{"bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 2 }},
		{"send buffer", func(c *Config) { c.Notifications.SendBuffer = 0 }},
		{"workers", func(c *Config) { c.Webhooks.WorkerCount = 0 }},
		{"endpoint url", func(c *Config) {
			c.Webhooks.Endpoints = []EndpointConfig{{Name: "x", URL: "not a url", Events: []string{"job.submitted"}}}
		}},
		{"endpoint events", func(c *Config) {
			c.Webhooks.Endpoints = []EndpointConfig{{Name: "x", URL: "http://localhost:9000/hook"}}
		}},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"log format", func(c *Config) { c.Logging.Format = "plain" }},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
