package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.True(t, cfg.Draft.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Draft.TTL)
	assert.Equal(t, 2*time.Second, cfg.Draft.Debounce)
	assert.Equal(t, 24*time.Hour, cfg.Draft.RetentionGrace)
	assert.Equal(t, 10*time.Minute, cfg.Draft.SessionIdle)
	assert.Equal(t, "drafts", cfg.Draft.KeyPrefix)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
state:
  backend: redis
database:
  redis:
    host: cache.internal
draft:
  enabled: false
  ttl: 48h
  debounce: 750ms
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.State.Backend)
	assert.Equal(t, "cache.internal", cfg.Database.Redis.Host)
	assert.Equal(t, 6379, cfg.Database.Redis.Port)
	assert.False(t, cfg.Draft.Enabled)
	assert.Equal(t, 48*time.Hour, cfg.Draft.TTL)
	assert.Equal(t, 750*time.Millisecond, cfg.Draft.Debounce)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DB: "drafts", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=drafts sslmode=disable", cfg.DSN())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
