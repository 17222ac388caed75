package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/fieldops/riskmeter/internal/errors"
	"github.com/fieldops/riskmeter/internal/monitoring"
	"github.com/fieldops/riskmeter/internal/resilience"
	"github.com/fieldops/riskmeter/internal/scoring"
	"github.com/fieldops/riskmeter/internal/store"
)

// Scheduler periodically scores every known entity over a trailing window
// and persists the result as a snapshot. The scorer itself never retries;
// the scheduler wraps each whole run with caller-side retry instead.
type Scheduler struct {
	repo     *store.Repository
	scorer   *scoring.Scorer
	alerts   *monitoring.AlertManager
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
	interval time.Duration
	window   time.Duration
}

// NewScheduler creates a snapshot scheduler. window is the trailing period
// each run covers, e.g. 30 days.
func NewScheduler(repo *store.Repository, scorer *scoring.Scorer, alerts *monitoring.AlertManager,
	metrics *monitoring.Metrics, logger *monitoring.Logger, interval, window time.Duration) *Scheduler {
	return &Scheduler{
		repo:     repo,
		scorer:   scorer,
		alerts:   alerts,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		window:   window,
	}
}

// Start runs the scheduler until the context is cancelled. One run happens
// immediately, then one per interval.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Snapshot scheduler started", "interval", s.interval, "window", s.window)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Snapshot scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce scores every known entity once. A failure for one entity is
// logged and does not stop the rest of the run.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	entities, err := s.repo.ListEntities(ctx)
	if err != nil {
		s.logger.StorageErrorLogger(err, "list_entities")
		s.metrics.IncrementStorageError()
		return
	}

	periodEnd := time.Now()
	periodStart := periodEnd.Add(-s.window)

	failures := 0
	for _, w := range entities {
		if ctx.Err() != nil {
			return
		}

		w.PeriodStart = &periodStart
		w.PeriodEnd = &periodEnd

		if err := s.scoreEntity(ctx, w); err != nil {
			slog.Error("Scheduled scoring failed",
				"entity_type", w.EntityType,
				"entity_id", w.EntityID,
				"error", err,
			)
			failures++
		}
	}

	s.logger.SchedulerLogger("snapshot_run", len(entities), failures, time.Since(start))
}

// scoreEntity scores one entity with retry and persists the snapshot.
func (s *Scheduler) scoreEntity(ctx context.Context, w scoring.MetricWindow) error {
	var result scoring.CompositeScore

	err := resilience.Retry(ctx, "score entity", func() error {
		var scoreErr error
		result, scoreErr = s.scorer.Score(ctx, w)
		return scoreErr
	})
	if err != nil {
		s.metrics.IncrementStorageError()
		return err
	}

	s.metrics.IncrementReportRun()

	if _, err := s.repo.SaveSnapshot(ctx, result); err != nil {
		s.metrics.IncrementStorageError()
		return errors.WrapError(err, "save snapshot for %s %s", w.EntityType, w.EntityID)
	}
	s.metrics.IncrementSnapshotWrite()

	if s.alerts != nil {
		s.alerts.ProcessScore(ctx, result)
	}

	return nil
}
