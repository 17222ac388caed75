package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/riskmeter/internal/types"
)

// fakeExtractor serves fixed collections, failing on demand per collection.
type fakeExtractor struct {
	orders   []types.WorkOrder
	feedback []types.FeedbackEntry
	issues   []types.Issue
	audits   []types.AuditEntry
	failOn   string
}

var errStore = errors.New("store unavailable")

func (f *fakeExtractor) WorkOrders(ctx context.Context, w MetricWindow) ([]types.WorkOrder, error) {
	if f.failOn == "orders" {
		return nil, errStore
	}
	return f.orders, nil
}

func (f *fakeExtractor) Feedback(ctx context.Context, w MetricWindow) ([]types.FeedbackEntry, error) {
	if f.failOn == "feedback" {
		return nil, errStore
	}
	return f.feedback, nil
}

func (f *fakeExtractor) Issues(ctx context.Context, w MetricWindow) ([]types.Issue, error) {
	if f.failOn == "issues" {
		return nil, errStore
	}
	return f.issues, nil
}

func (f *fakeExtractor) AuditEntries(ctx context.Context, w MetricWindow) ([]types.AuditEntry, error) {
	if f.failOn == "audits" {
		return nil, errStore
	}
	return f.audits, nil
}

// scenarioExtractor is the agent from the compliance-shortfall scenario:
// 10 completed jobs with 9 on-time starts and finishes, 4.2-star average
// feedback, no issues, 5 audit entries.
func scenarioExtractor() *fakeExtractor {
	orders := make([]types.WorkOrder, 0, 10)
	for i := 0; i < 9; i++ {
		orders = append(orders, order(0, 0))
	}
	orders = append(orders, order(30, 30))

	return &fakeExtractor{
		orders: orders,
		feedback: []types.FeedbackEntry{
			{Stars: 5}, {Stars: 4}, {Stars: 4}, {Stars: 4}, {Stars: 4},
		},
		audits: make([]types.AuditEntry, 5),
	}
}

func TestScorerEmptyWindow(t *testing.T) {
	scorer := NewScorer(&fakeExtractor{})

	result, err := scorer.Score(context.Background(), agentWindow())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.FlaggedMetrics)
}

func TestScorerComplianceScenario(t *testing.T) {
	scorer := NewScorer(scenarioExtractor())

	result, err := scorer.Score(context.Background(), agentWindow())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Score)
	assert.InDelta(t, 90, result.Ratios.OnTimeStartPct, 0.0001)
	assert.InDelta(t, 90, result.Ratios.OnTimeFinishPct, 0.0001)
	assert.InDelta(t, 4.2, result.Ratios.AvgSatisfaction, 0.0001)
	assert.InDelta(t, 0.5, result.Ratios.ComplianceDensity, 0.0001)

	require.Len(t, result.FlaggedMetrics, 1)
	assert.Equal(t, SeverityMedium, result.FlaggedMetrics[MetricCompliance].Severity)
}

func TestScorerIdempotent(t *testing.T) {
	scorer := NewScorer(scenarioExtractor())
	w := agentWindow()

	first, err := scorer.Score(context.Background(), w)
	require.NoError(t, err)
	second, err := scorer.Score(context.Background(), w)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, firstJSON, secondJSON)
}

func TestScorerPropagatesStorageErrors(t *testing.T) {
	for _, failOn := range []string{"orders", "feedback", "issues", "audits"} {
		t.Run(failOn, func(t *testing.T) {
			scorer := NewScorer(&fakeExtractor{failOn: failOn})

			_, err := scorer.Score(context.Background(), agentWindow())
			require.Error(t, err)
			assert.ErrorIs(t, err, errStore)
		})
	}
}

func TestScorerWindowEchoedInResult(t *testing.T) {
	scorer := NewScorer(&fakeExtractor{})
	w := companyWindow()

	result, err := scorer.Score(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, w, result.Window)
}
