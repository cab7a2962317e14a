package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("NOTIFIER_WEBHOOK_URL", "http://worker.local/hook")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "documents", cfg.MinIO.Bucket)
	assert.Equal(t, "public/", cfg.Ingest.Namespace)
	assert.Equal(t, "http://worker.local/hook", cfg.Notifier.WebhookURL)
	assert.Equal(t, 5*time.Second, cfg.Notifier.Timeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MaxUploadSize(t *testing.T) {
	t.Run("default is 10 MiB", func(t *testing.T) {
		cfg := Load()
		assert.Equal(t, int64(10*1024*1024), cfg.Ingest.MaxUploadBytes())
	})

	t.Run("human size override", func(t *testing.T) {
		t.Setenv("MAX_UPLOAD_SIZE", "2MiB")
		cfg := Load()
		assert.Equal(t, int64(2*1024*1024), cfg.Ingest.MaxUploadBytes())
	})

	t.Run("invalid falls back to default", func(t *testing.T) {
		t.Setenv("MAX_UPLOAD_SIZE", "lots")
		cfg := Load()
		assert.Equal(t, DefaultMaxUploadSize, cfg.Ingest.MaxUploadSize)
		assert.Equal(t, int64(10*1024*1024), cfg.Ingest.MaxUploadBytes())
	})
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Ingest.UploadTimeoutSec = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Notifier.TimeoutSec = -1
	assert.Error(t, cfg.Validate())
}

func TestLocation(t *testing.T) {
	cfg := Load()
	cfg.Timezone = "Asia/Jakarta"
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())

	cfg.Timezone = "nowhere"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}
