package medialib

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service orchestrates uploads, conversions and serving of media records.
// It keeps no state between calls beyond its collaborators.
type Service struct {
	cfg       Config
	store     MediaStore
	disks     *Manager
	converter Converter
	policies  *PolicySet
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger; the default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPolicies replaces the default upload policies and allow-lists.
func WithPolicies(p *PolicySet) Option {
	return func(s *Service) { s.policies = p }
}

// WithConverter sets the image converter. Without one nothing is optimized.
func WithConverter(c Converter) Option {
	return func(s *Service) { s.converter = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the random part of generated file names.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// New builds a Service. The config's disk alias must be registered in disks.
func New(cfg Config, store MediaStore, disks *Manager, opts ...Option) (*Service, error) {
	if store == nil || disks == nil {
		return nil, ErrInvalidConfig
	}

	s := &Service{
		cfg:      cfg.withDefaults(),
		store:    store,
		disks:    disks,
		policies: DefaultPolicies(),
		logger:   log.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := disks.Disk(s.cfg.Disk); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	s.logger = s.logger.With().Str("component", "medialib").Logger()
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Policies returns the allow-lists and upload policies in use.
func (s *Service) Policies() *PolicySet {
	return s.policies
}

// Close waits for background conversions started by CompleteUpload.
// Uploads completed after Close begins are not converted in the background;
// the optimization sweep picks them up.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) convertible(mimeType string) bool {
	return s.converter != nil && s.converter.Supports(normalizeMediaType(mimeType))
}

func (s *Service) conversionNames() []string {
	names := make([]string, len(s.cfg.Conversions))
	for i, c := range s.cfg.Conversions {
		names[i] = c.Name
	}
	return names
}
