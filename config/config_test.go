package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "  secret  ")

	cfg := LoadConfig()

	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Database.UseSSL)
	assert.Equal(t, StorageNone, cfg.Storage.Backend)
	assert.Equal(t, MQNone, cfg.MQ.Backend)
	assert.Equal(t, 5*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SSL", "true")
	t.Setenv("GITHUB_TIMEOUT", "750ms")
	t.Setenv("GITHUB_CACHE_TTL", "not-a-duration")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 750*time.Millisecond, cfg.GitHub.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.GitHub.CacheTTL)
	assert.Equal(t, StorageMinio, cfg.Storage.Backend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg := LoadConfig()
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET is required")

	cfg.JWTSecret = "s"
	cfg.Storage.Backend = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage backend")

	cfg.Storage.Backend = StorageS3
	cfg.MQ.Backend = "kafka"
	assert.ErrorContains(t, cfg.Validate(), "unknown mq backend")
}
