package medialib

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	sweepPrunePending    = "prune_pending"
	sweepOptimizeWaiting = "optimize_waiting"

	// maxParallelDeletes bounds the fan-out of the pending-retention sweep.
	maxParallelDeletes = 16
)

// ReconcilerConfig configures the background sweeps.
type ReconcilerConfig struct {
	PendingSchedule  string // cron spec of the pending-retention sweep
	OptimizeSchedule string // cron spec of the optimization sweep
	// Registerer receives the sweep metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// DefaultReconcilerConfig runs the pending sweep daily at 03:00 and the
// optimization sweep every five minutes.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		PendingSchedule:  "0 3 * * *",
		OptimizeSchedule: "*/5 * * * *",
	}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Candidates int
	Processed  int
	Skipped    int
	Failed     int
	Duration   time.Duration
}

type reconcilerMetrics struct {
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newReconcilerMetrics(reg prometheus.Registerer) *reconcilerMetrics {
	f := promauto.With(reg)
	return &reconcilerMetrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medialib_reconciler_runs_total",
			Help: "Number of reconciler sweeps.",
		}, []string{"sweep"}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "medialib_reconciler_items_total",
			Help: "Media records handled by reconciler sweeps, by outcome.",
		}, []string{"sweep", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medialib_reconciler_duration_seconds",
			Help:    "Duration of reconciler sweeps.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"sweep"}),
	}
}

func (m *reconcilerMetrics) observe(sweep string, res SweepResult) {
	m.runs.WithLabelValues(sweep).Inc()
	m.items.WithLabelValues(sweep, "processed").Add(float64(res.Processed))
	m.items.WithLabelValues(sweep, "skipped").Add(float64(res.Skipped))
	m.items.WithLabelValues(sweep, "failed").Add(float64(res.Failed))
	m.duration.WithLabelValues(sweep).Observe(res.Duration.Seconds())
}

// Reconciler drives media lifecycle without a triggering request: it prunes
// stale PENDING uploads and pushes WAITING_OPTIMIZATION records through the generator.
type Reconciler struct {
	svc     *Service
	cfg     ReconcilerConfig
	cron    *cron.Cron
	metrics *reconcilerMetrics
	logger  zerolog.Logger
}

// NewReconciler validates the schedules and builds a Reconciler for svc.
func NewReconciler(svc *Service, cfg ReconcilerConfig) (*Reconciler, error) {
	d := DefaultReconcilerConfig()
	if cfg.PendingSchedule == "" {
		cfg.PendingSchedule = d.PendingSchedule
	}
	if cfg.OptimizeSchedule == "" {
		cfg.OptimizeSchedule = d.OptimizeSchedule
	}

	logger := svc.logger.With().Str("component", "reconciler").Logger()
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, spec := range []string{cfg.PendingSchedule, cfg.OptimizeSchedule} {
		if _, err := parser.Parse(spec); err != nil {
			return nil, fmt.Errorf("%w: schedule %q: %w", ErrInvalidConfig, spec, err)
		}
	}

	return &Reconciler{
		svc: svc,
		cfg: cfg,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		metrics: newReconcilerMetrics(cfg.Registerer),
		logger:  logger,
	}, nil
}

// Start registers both sweeps on their schedules and starts the scheduler.
// Sweeps run with ctx; cancel it or call Stop to end them.
func (r *Reconciler) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.cfg.PendingSchedule, func() { r.PrunePending(ctx) }); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc(r.cfg.OptimizeSchedule, func() { r.OptimizeWaiting(ctx) }); err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Info().
		Str("pending_schedule", r.cfg.PendingSchedule).
		Str("optimize_schedule", r.cfg.OptimizeSchedule).
		Msg("reconciler started")
	return nil
}

// Stop halts the scheduler and waits for running sweeps or ctx.
func (r *Reconciler) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
	r.logger.Info().Msg("reconciler stopped")
}

// PrunePending deletes PENDING records older than the retention window.
// Each candidate is re-read before deletion and skipped when it is no longer
// PENDING. Deletions run in parallel and fail independently.
func (r *Reconciler) PrunePending(ctx context.Context) SweepResult {
	start := time.Now()
	cutoff := r.svc.now().Add(-r.svc.cfg.PendingRetention)

	var res SweepResult
	candidates, err := r.svc.store.FindMany(ctx, MediaFilter{
		Statuses:      []Status{StatusPending},
		CreatedBefore: cutoff,
		OrderBy:       OrderByOldest,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query stale pending media")
		res.Failed = 1
		return r.finish(sweepPrunePending, res, start)
	}
	res.Candidates = len(candidates)

	var processed, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(maxParallelDeletes)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			deleted, err := r.prune(ctx, c.ID)
			switch {
			case err != nil:
				failed.Add(1)
				r.logger.Error().Err(err).Int64("media_id", c.ID).Msg("failed to prune pending media")
			case deleted:
				processed.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Processed = int(processed.Load())
	res.Skipped = int(skipped.Load())
	res.Failed = int(failed.Load())
	return r.finish(sweepPrunePending, res, start)
}

// prune re-reads the record and deletes it only if it is still PENDING.
func (r *Reconciler) prune(ctx context.Context, id int64) (bool, error) {
	m, err := r.svc.store.FindByID(ctx, id)
	if errors.Is(err, ErrMediaNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if m.Status != StatusPending {
		return false, nil
	}

	if err := r.svc.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// OptimizeWaiting runs the generator for the oldest WAITING_OPTIMIZATION records,
// at most OptimizeBatchSize per sweep and OptimizeConcurrency at a time.
func (r *Reconciler) OptimizeWaiting(ctx context.Context) SweepResult {
	start := time.Now()

	var res SweepResult
	batch, err := r.svc.store.FindMany(ctx, MediaFilter{
		Statuses: []Status{StatusWaitingOptimization},
		OrderBy:  OrderByOldest,
		Limit:    r.svc.cfg.OptimizeBatchSize,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query media awaiting optimization")
		res.Failed = 1
		return r.finish(sweepOptimizeWaiting, res, start)
	}
	res.Candidates = len(batch)

	var processed, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.svc.cfg.OptimizeConcurrency)

	for _, m := range batch {
		m := m
		g.Go(func() error {
			report, err := r.svc.GenerateConversions(ctx, m.ID)
			switch {
			case err != nil:
				failed.Add(1)
				r.logger.Error().Err(err).Int64("media_id", m.ID).Msg("failed to optimize media")
			case report == nil || report.Succeeded() == 0:
				skipped.Add(1)
			default:
				processed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Processed = int(processed.Load())
	res.Skipped = int(skipped.Load())
	res.Failed = int(failed.Load())
	return r.finish(sweepOptimizeWaiting, res, start)
}

func (r *Reconciler) finish(sweep string, res SweepResult, start time.Time) SweepResult {
	res.Duration = time.Since(start)
	r.metrics.observe(sweep, res)

	r.logger.Info().
		Str("sweep", sweep).
		Int("candidates", res.Candidates).
		Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("sweep finished")
	return res
}
