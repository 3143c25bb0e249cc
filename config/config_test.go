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

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
session:
  store: memory
  secret: s3cret
lookup:
  mode: static
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, "medcol-user", cfg.Session.CookieName)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "redis", cfg.Broker.Kind)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "push", cfg.Capture.Device)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "session:\n  secret: from-file\n")
	t.Setenv("MEDCOL_SESSION_SECRET", "from-env")
	t.Setenv("MEDCOL_DB_HOST", "db.internal")
	t.Setenv("MEDCOL_DB_PORT", "6543")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Session.Secret)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
}

func TestLoad_InvalidSwitches(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"session store", "session:\n  store: file\n"},
		{"lookup mode", "lookup:\n  mode: grpc\n"},
		{"http lookup without url", "lookup:\n  mode: http\n"},
		{"rabbitmq without url", "broker:\n  kind: rabbitmq\n"},
		{"capture device", "capture:\n  device: usb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	dsn := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}.DSN()
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", dsn)
}

func TestLoad_SecurityDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Security.AllowedOrigins)
	assert.Contains(t, cfg.Security.AllowedMethods, "PATCH")
	assert.Contains(t, cfg.Security.AllowedHeaders, "X-Request-ID")
}
