// Package config loads the media service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	medialib "github.com/shoraid/go-medialib"
	s3driver "github.com/shoraid/go-medialib/drivers/s3"
)

// Config holds all configuration for the media service.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	HTTP       HTTPConfig
	Database   DatabaseConfig
	S3         S3Config
	Media      MediaConfig
	Reconciler ReconcilerConfig
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	RateLimit       int           `env:"HTTP_RATE_LIMIT" env-default:"600"` // requests per minute per IP, 0 disables
}

type DatabaseConfig struct {
	DSN     string `env:"DATABASE_URL" env-required:"true"`
	Migrate bool   `env:"DATABASE_MIGRATE" env-default:"true"`
}

type S3Config struct {
	Disk          string        `env:"MEDIA_DISK" env-default:"s3"`
	Bucket        string        `env:"S3_BUCKET" env-required:"true"`
	Region        string        `env:"S3_REGION" env-default:"us-east-1"`
	AccessKey     string        `env:"S3_ACCESS_KEY" env-required:"true"`
	SecretKey     string        `env:"S3_SECRET_KEY" env-required:"true"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	UseSSL        bool          `env:"S3_USE_SSL" env-default:"true"`
	Public        bool          `env:"S3_PUBLIC" env-default:"false"`
	PublicBaseURL string        `env:"S3_PUBLIC_BASE_URL"`
	DefaultExpiry time.Duration `env:"S3_SIGNED_URL_EXPIRY" env-default:"1h"`
}

type MediaConfig struct {
	UploadURLExpiry       time.Duration `env:"MEDIA_UPLOAD_URL_EXPIRY" env-default:"1h"`
	SignedURLExpiry       time.Duration `env:"MEDIA_SIGNED_URL_EXPIRY" env-default:"1h"`
	PendingRetention      time.Duration `env:"MEDIA_PENDING_RETENTION" env-default:"48h"`
	OptimizeBatchSize     int           `env:"MEDIA_OPTIMIZE_BATCH_SIZE" env-default:"50"`
	OptimizeConcurrency   int           `env:"MEDIA_OPTIMIZE_CONCURRENCY" env-default:"1"`
	MaxConversionAttempts int           `env:"MEDIA_MAX_CONVERSION_ATTEMPTS" env-default:"5"`
	OptimizeOnFinalize    bool          `env:"MEDIA_OPTIMIZE_ON_FINALIZE" env-default:"false"`
	ScratchDir            string        `env:"MEDIA_SCRATCH_DIR"`
	JPEGQuality           int           `env:"MEDIA_JPEG_QUALITY" env-default:"85"`
}

type ReconcilerConfig struct {
	Enabled          bool   `env:"RECONCILER_ENABLED" env-default:"true"`
	PendingSchedule  string `env:"RECONCILER_PENDING_SCHEDULE" env-default:"0 3 * * *"`
	OptimizeSchedule string `env:"RECONCILER_OPTIMIZE_SCHEDULE" env-default:"*/5 * * * *"`
}

// Load reads an optional .env file (or the given files) and then the environment.
// Variables already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}

// Pipeline converts the media settings into the library configuration.
func (c *Config) Pipeline() medialib.Config {
	cfg := medialib.DefaultConfig()
	cfg.Disk = c.S3.Disk
	cfg.UploadURLExpiry = c.Media.UploadURLExpiry
	cfg.SignedURLExpiry = c.Media.SignedURLExpiry
	cfg.PendingRetention = c.Media.PendingRetention
	cfg.OptimizeBatchSize = c.Media.OptimizeBatchSize
	cfg.OptimizeConcurrency = c.Media.OptimizeConcurrency
	cfg.MaxConversionAttempts = c.Media.MaxConversionAttempts
	cfg.OptimizeOnFinalize = c.Media.OptimizeOnFinalize
	if c.Media.ScratchDir != "" {
		cfg.ScratchDir = c.Media.ScratchDir
	}
	return cfg
}

// ObjectStorage converts the S3 settings into the driver configuration.
func (c *Config) ObjectStorage() s3driver.ObjectStorageConfig {
	visibility := medialib.VisibilityPrivate
	if c.S3.Public {
		visibility = medialib.VisibilityPublic
	}
	return s3driver.ObjectStorageConfig{
		Bucket:        c.S3.Bucket,
		Region:        c.S3.Region,
		AccessKey:     c.S3.AccessKey,
		SecretKey:     c.S3.SecretKey,
		Endpoint:      c.S3.Endpoint,
		UseSSL:        c.S3.UseSSL,
		Visibility:    visibility,
		PublicBaseURL: c.S3.PublicBaseURL,
		DefaultExpiry: c.S3.DefaultExpiry,
	}
}

// Schedules converts the reconciler settings into the library configuration.
func (c *Config) Schedules() medialib.ReconcilerConfig {
	return medialib.ReconcilerConfig{
		PendingSchedule:  c.Reconciler.PendingSchedule,
		OptimizeSchedule: c.Reconciler.OptimizeSchedule,
	}
}
