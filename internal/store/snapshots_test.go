package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/riskmeter/internal/scoring"
)

func sampleScore(entityID string, score int) scoring.CompositeScore {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	return scoring.CompositeScore{
		Score: score,
		FlaggedMetrics: map[string]scoring.FlaggedMetric{
			scoring.MetricCompliance: {Current: 0.5, Threshold: 0.8, Severity: scoring.SeverityMedium},
		},
		Ratios: scoring.RatioSet{
			OnTimeStartPct:     90,
			OnTimeFinishPct:    90,
			AvgSatisfaction:    4.2,
			WouldHireAgainPct:  100,
			IssueResolutionPct: 100,
			ComplianceDensity:  0.5,
		},
		Window: scoring.MetricWindow{
			EntityType:  scoring.EntityAgent,
			EntityID:    entityID,
			PeriodStart: &start,
			PeriodEnd:   &end,
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.SaveSnapshot(ctx, sampleScore("agent-1", 5))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	snapshots, err := repo.ListSnapshots(ctx, scoring.EntityAgent, "agent-1", 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	got := snapshots[0]
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, 5, got.Score)
	assert.Equal(t, scoring.EntityAgent, got.EntityType)
	assert.InDelta(t, 4.2, got.Ratios.AvgSatisfaction, 0.0001)

	flag, ok := got.FlaggedMetrics[scoring.MetricCompliance]
	require.True(t, ok)
	assert.Equal(t, scoring.SeverityMedium, flag.Severity)

	require.NotNil(t, got.PeriodStart)
	assert.True(t, got.PeriodStart.Equal(*saved.PeriodStart))
}

func TestListSnapshotsNewestFirstWithLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, score := range []int{10, 20, 30} {
		s, err := repo.SaveSnapshot(ctx, sampleScore("agent-1", score))
		require.NoError(t, err)

		// spread created_at so ordering is deterministic
		_, err = repo.db.ExecContext(ctx,
			`UPDATE risk_snapshots SET created_at = ? WHERE id = ?`,
			time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC), s.ID)
		require.NoError(t, err)
	}

	snapshots, err := repo.ListSnapshots(ctx, scoring.EntityAgent, "agent-1", 2)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 30, snapshots[0].Score)
	assert.Equal(t, 20, snapshots[1].Score)
}

func TestLatestSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	latest, err := repo.LatestSnapshot(ctx, scoring.EntityAgent, "agent-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = repo.SaveSnapshot(ctx, sampleScore("agent-1", 7))
	require.NoError(t, err)

	latest, err = repo.LatestSnapshot(ctx, scoring.EntityAgent, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 7, latest.Score)

	// other entities are not visible
	other, err := repo.LatestSnapshot(ctx, scoring.EntityCompany, "agent-1")
	require.NoError(t, err)
	assert.Nil(t, other)
}
