package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CONCIERGE_HTTP_ADDR", ":9090")
	t.Setenv("CONCIERGE_LOG_LEVEL", "debug")
	t.Setenv("CONCIERGE_LOG_FORMAT", "JSON")
	t.Setenv("CONCIERGE_STORAGE", "file")
	t.Setenv("CONCIERGE_REDIS_ADDR", "localhost:6379")
	t.Setenv("CONCIERGE_REDIS_DB", "2")
	t.Setenv("CONCIERGE_SESSION_TTL", "2h")
	t.Setenv("CONCIERGE_PII_PATTERNS", "email, ^phone ,")
	t.Setenv("CONCIERGE_ENCRYPTION_KEY", strings.Repeat("ab", 32))

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"email", "^phone"}, cfg.PIIPatterns)
	assert.Len(t, cfg.EncryptionKey, 32)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CONCIERGE_CACHE_SIZE=7\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CONCIERGE_CACHE_SIZE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.CacheSize)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CONCIERGE_STORAGE", "postgres")
	t.Setenv("CONCIERGE_EMITTER_WORKERS", "many")
	t.Setenv("CONCIERGE_ENCRYPTION_KEY", "short")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONCIERGE_POSTGRES_DSN")
	assert.Contains(t, err.Error(), "CONCIERGE_EMITTER_WORKERS")
	assert.Contains(t, err.Error(), "CONCIERGE_ENCRYPTION_KEY")
}
