package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "a missing config file is not an error")

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "smtp", cfg.Mail.Transport)
	assert.Equal(t, 10, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, "/asset", cfg.Assets.RoutePrefix)
	assert.Equal(t, 10000, cfg.RateLimit.MaxKeys)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
database:
  url: postgres://localhost/mailform_test
smtp:
  host: mail.example.com
  port: 2525
  starttls: true
ratelimit:
  max: 3
  window_seconds: 10
render:
  escape_html: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.GetHost())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mail.example.com", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.StartTLS)
	assert.Equal(t, 3, cfg.RateLimit.Max)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window())
	assert.True(t, cfg.Render.EscapeHTML)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/from_yaml
smtp:
  host: yaml.example.com
`)

	t.Setenv("DATABASE_URL", "postgres://localhost/from_env")
	t.Setenv("SMTP_HOST", "env.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("MAILFORM_PEPPER", "test-pepper")
	t.Setenv("PORT", "3000")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/from_env", cfg.Database.URL)
	assert.Equal(t, "env.example.com", cfg.SMTP.Host)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, "test-pepper", cfg.Auth.Pepper)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}
