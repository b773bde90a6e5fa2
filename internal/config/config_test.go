package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "DATABASE_URL=postgres://localhost/shelfmate\nJWT_SECRET=0123456789abcdef0123\nSEARCH_CACHE_TTL=1m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/shelfmate", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, time.Minute, cfg.SearchCacheTTL)
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 256, cfg.EventQueueSize)
	assert.Equal(t, 5*time.Second, cfg.EventPublishTimeout)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/shelfmate")
	t.Setenv("JWT_SECRET", "an-environment-secret")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/shelfmate", cfg.DatabaseURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
