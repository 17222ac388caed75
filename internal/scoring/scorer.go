package scoring

import (
	"context"
	"fmt"

	"github.com/fieldops/riskmeter/internal/types"
)

// Extractor abstracts the read side of the persistent store. An unknown
// entity yields empty collections, not an error; only storage failures
// surface as errors.
type Extractor interface {
	WorkOrders(ctx context.Context, w MetricWindow) ([]types.WorkOrder, error)
	Feedback(ctx context.Context, w MetricWindow) ([]types.FeedbackEntry, error)
	Issues(ctx context.Context, w MetricWindow) ([]types.Issue, error)
	AuditEntries(ctx context.Context, w MetricWindow) ([]types.AuditEntry, error)
}

// Scorer runs the full pipeline: extract raw records, derive ratios,
// compose the weighted score. It holds no mutable state, so concurrent
// runs for different windows are independent, and repeated runs over
// unchanged data are idempotent. It never retries: a storage error is
// returned to the caller as-is.
type Scorer struct {
	extractor Extractor
}

// NewScorer creates a scorer over the given extractor.
func NewScorer(extractor Extractor) *Scorer {
	return &Scorer{extractor: extractor}
}

// Score computes the composite risk score for one window.
func (s *Scorer) Score(ctx context.Context, w MetricWindow) (CompositeScore, error) {
	orders, err := s.extractor.WorkOrders(ctx, w)
	if err != nil {
		return CompositeScore{}, fmt.Errorf("fetch work orders: %w", err)
	}

	feedback, err := s.extractor.Feedback(ctx, w)
	if err != nil {
		return CompositeScore{}, fmt.Errorf("fetch feedback: %w", err)
	}

	issues, err := s.extractor.Issues(ctx, w)
	if err != nil {
		return CompositeScore{}, fmt.Errorf("fetch issues: %w", err)
	}

	audits, err := s.extractor.AuditEntries(ctx, w)
	if err != nil {
		return CompositeScore{}, fmt.Errorf("fetch audit entries: %w", err)
	}

	ratios := BuildRatioSet(orders, feedback, issues, audits)
	return Compose(w, ratios), nil
}
