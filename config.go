package medialib

import (
	"os"
	"time"
)

// Conversion is a named derivative rendered at a fixed target width.
type Conversion struct {
	Name  string
	Width int
}

const (
	ConversionThumb      = "thumb"
	ConversionMobileHero = "mobile-hero"
	ConversionDefault    = "default"
	ConversionHero       = "hero"
)

// DefaultConversions is the stock derivative table.
func DefaultConversions() []Conversion {
	return []Conversion{
		{Name: ConversionThumb, Width: 300},
		{Name: ConversionMobileHero, Width: 768},
		{Name: ConversionDefault, Width: 1200},
		{Name: ConversionHero, Width: 1920},
	}
}

// fallbackConversions is the order used to serve a record when no
// (available) conversion was requested.
var fallbackConversions = []string{ConversionHero, ConversionThumb, ConversionDefault}

// Config holds the pipeline tunables. It is built once at startup and passed to New.
type Config struct {
	Disk                  string        // storage alias new records are written to
	UploadURLExpiry       time.Duration // lifetime of negotiated upload URLs
	SignedURLExpiry       time.Duration // lifetime of signed download URLs
	PendingRetention      time.Duration // age after which PENDING records are pruned
	OptimizeBatchSize     int           // records per optimization sweep
	OptimizeConcurrency   int           // records converted in parallel during a sweep
	MaxConversionAttempts int           // runs without any derivative before ERROR; 0 disables
	OptimizeOnFinalize    bool          // dispatch the generator right after CompleteUpload
	ScratchDir            string        // where originals are downloaded for conversion
	Conversions           []Conversion
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Disk:                  "s3",
		UploadURLExpiry:       time.Hour,
		SignedURLExpiry:       time.Hour,
		PendingRetention:      48 * time.Hour,
		OptimizeBatchSize:     50,
		OptimizeConcurrency:   1,
		MaxConversionAttempts: 5,
		ScratchDir:            os.TempDir(),
		Conversions:           DefaultConversions(),
	}
}

// withDefaults fills every zero field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Disk == "" {
		c.Disk = d.Disk
	}
	if c.UploadURLExpiry <= 0 {
		c.UploadURLExpiry = d.UploadURLExpiry
	}
	if c.SignedURLExpiry <= 0 {
		c.SignedURLExpiry = d.SignedURLExpiry
	}
	if c.PendingRetention <= 0 {
		c.PendingRetention = d.PendingRetention
	}
	if c.OptimizeBatchSize <= 0 {
		c.OptimizeBatchSize = d.OptimizeBatchSize
	}
	if c.OptimizeConcurrency <= 0 {
		c.OptimizeConcurrency = d.OptimizeConcurrency
	}
	if c.OptimizeConcurrency > c.OptimizeBatchSize {
		c.OptimizeConcurrency = c.OptimizeBatchSize
	}
	if c.MaxConversionAttempts < 0 {
		c.MaxConversionAttempts = 0
	}
	if c.ScratchDir == "" {
		c.ScratchDir = d.ScratchDir
	}
	if len(c.Conversions) == 0 {
		c.Conversions = d.Conversions
	}
	return c
}
