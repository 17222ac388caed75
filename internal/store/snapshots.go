package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/riskmeter/internal/scoring"
)

// RiskSnapshot is a persisted scoring result. Snapshots are only written
// when a caller explicitly asks for one; the scorer itself never stores
// intermediate state.
type RiskSnapshot struct {
	ID             string                           `json:"id"`
	EntityType     scoring.EntityType               `json:"entity_type"`
	EntityID       string                           `json:"entity_id"`
	PeriodStart    *time.Time                       `json:"period_start,omitempty"`
	PeriodEnd      *time.Time                       `json:"period_end,omitempty"`
	Score          int                              `json:"score"`
	Ratios         scoring.RatioSet                 `json:"ratios"`
	FlaggedMetrics map[string]scoring.FlaggedMetric `json:"flagged_metrics"`
	CreatedAt      time.Time                        `json:"created_at"`
}

// SaveSnapshot persists one scoring result.
func (r *Repository) SaveSnapshot(ctx context.Context, result scoring.CompositeScore) (*RiskSnapshot, error) {
	snapshot := &RiskSnapshot{
		ID:             uuid.New().String(),
		EntityType:     result.Window.EntityType,
		EntityID:       result.Window.EntityID,
		PeriodStart:    result.Window.PeriodStart,
		PeriodEnd:      result.Window.PeriodEnd,
		Score:          result.Score,
		Ratios:         result.Ratios,
		FlaggedMetrics: result.FlaggedMetrics,
		CreatedAt:      time.Now(),
	}

	ratiosJSON, err := json.Marshal(snapshot.Ratios)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ratios: %w", err)
	}

	flaggedJSON, err := json.Marshal(snapshot.FlaggedMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flagged metrics: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement("insert_snapshot")
	if err != nil {
		return nil, err
	}

	_, err = stmt.ExecContext(ctx, snapshot.ID, string(snapshot.EntityType), snapshot.EntityID,
		nullableTime(snapshot.PeriodStart), nullableTime(snapshot.PeriodEnd),
		snapshot.Score, string(ratiosJSON), string(flaggedJSON), snapshot.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	slog.Info("Risk snapshot saved",
		"entity_type", snapshot.EntityType,
		"entity_id", snapshot.EntityID,
		"score", snapshot.Score,
		"flagged", len(snapshot.FlaggedMetrics),
	)

	return snapshot, nil
}

// ListSnapshots returns the most recent snapshots for an entity, newest
// first.
func (r *Repository) ListSnapshots(ctx context.Context, entityType scoring.EntityType, entityID string, limit int) ([]RiskSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, period_start, period_end, score, ratios, flagged_metrics, created_at
		FROM risk_snapshots
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, string(entityType), entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []RiskSnapshot{}
	for rows.Next() {
		var s RiskSnapshot
		var periodStart, periodEnd sql.NullTime
		var ratiosJSON, flaggedJSON string
		if err := rows.Scan(&s.ID, &s.EntityType, &s.EntityID, &periodStart, &periodEnd,
			&s.Score, &ratiosJSON, &flaggedJSON, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.PeriodStart = timePtr(periodStart)
		s.PeriodEnd = timePtr(periodEnd)

		if err := json.Unmarshal([]byte(ratiosJSON), &s.Ratios); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ratios: %w", err)
		}
		if err := json.Unmarshal([]byte(flaggedJSON), &s.FlaggedMetrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flagged metrics: %w", err)
		}

		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// LatestSnapshot returns the newest snapshot for an entity, or nil when
// none has been stored yet.
func (r *Repository) LatestSnapshot(ctx context.Context, entityType scoring.EntityType, entityID string) (*RiskSnapshot, error) {
	snapshots, err := r.ListSnapshots(ctx, entityType, entityID, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}
