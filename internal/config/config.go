package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
)

// DefaultMaxUploadSize is the per-file ceiling applied when MAX_UPLOAD_SIZE is unset or invalid.
const DefaultMaxUploadSize = "10MiB"

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	// PublicBaseURL points at the bucket root as seen by readers (e.g. a CDN).
	// Empty means {endpoint}/{bucket}.
	PublicBaseURL string
	// PresignExpirySec bounds signed download URLs.
	PresignExpirySec int
}

// IngestConfig holds the limits applied by the ingestion pipeline.
type IngestConfig struct {
	// Namespace is prepended to every storage key.
	Namespace         string
	MaxUploadSize     string
	UploadTimeoutSec  int
	PersistTimeoutSec int
	maxUploadBytes    int64
}

// MaxUploadBytes returns the parsed size ceiling in bytes.
func (c IngestConfig) MaxUploadBytes() int64 {
	return c.maxUploadBytes
}

// UploadTimeout bounds the blob upload step.
func (c IngestConfig) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSec) * time.Second
}

// PersistTimeout bounds the metadata insert step.
func (c IngestConfig) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutSec) * time.Second
}

// NotifierConfig holds the downstream webhook settings.
// An empty WebhookURL disables notification without failing ingestion.
type NotifierConfig struct {
	WebhookURL string
	TimeoutSec int
	PoolSize   int
}

// Timeout is the budget for a single webhook dispatch.
func (c NotifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
	// CallbackToken guards the status callback used by the processing worker.
	CallbackToken string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Timezone string
	LogLevel string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Ingest   IngestConfig
	Notifier NotifierConfig
	Auth     AuthConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	cfg := &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:         getEnv("MINIO_ENDPOINT", ""),
			AccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:        getEnv("MINIO_SECRET_KEY", ""),
			Bucket:           getEnv("MINIO_BUCKET", "documents"),
			UseSSL:           getEnvBool("MINIO_USE_SSL", false),
			Region:           getEnv("MINIO_REGION", ""),
			PublicBaseURL:    getEnv("MINIO_PUBLIC_BASE_URL", ""),
			PresignExpirySec: getEnvInt("MINIO_PRESIGN_EXPIRY_SEC", 900),
		},
		Ingest: IngestConfig{
			Namespace:         getEnv("INGEST_NAMESPACE", "public/"),
			MaxUploadSize:     getEnv("MAX_UPLOAD_SIZE", DefaultMaxUploadSize),
			UploadTimeoutSec:  getEnvInt("INGEST_UPLOAD_TIMEOUT_SEC", 30),
			PersistTimeoutSec: getEnvInt("INGEST_PERSIST_TIMEOUT_SEC", 10),
		},
		Notifier: NotifierConfig{
			WebhookURL: getEnv("NOTIFIER_WEBHOOK_URL", ""),
			TimeoutSec: getEnvInt("NOTIFIER_TIMEOUT_SEC", 5),
			PoolSize:   getEnvInt("NOTIFIER_POOL_SIZE", 16),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("AUTH_JWT_SECRET", ""),
			JWKSURL:       getEnv("AUTH_JWKS_URL", ""),
			CallbackToken: getEnv("CALLBACK_TOKEN", ""),
		},
	}

	size, err := units.RAMInBytes(cfg.Ingest.MaxUploadSize)
	if err != nil || size <= 0 {
		cfg.Ingest.MaxUploadSize = DefaultMaxUploadSize
		size, _ = units.RAMInBytes(DefaultMaxUploadSize)
	}
	cfg.Ingest.maxUploadBytes = size

	return cfg
}

// Validate checks settings that have no safe default.
func (c *AppConfig) Validate() error {
	if c.Ingest.maxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.Ingest.UploadTimeoutSec <= 0 || c.Ingest.PersistTimeoutSec <= 0 {
		return fmt.Errorf("ingest timeouts must be positive")
	}
	if c.Notifier.TimeoutSec <= 0 {
		return fmt.Errorf("notifier timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BodyLimit is the largest request body fiber will accept: room for a batch of
// max-size files plus multipart overhead. Per-file limits are enforced by the service.
func (c *AppConfig) BodyLimit() int {
	return int(c.Ingest.maxUploadBytes)*10 + units.MiB
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
