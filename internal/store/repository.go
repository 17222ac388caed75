package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/riskmeter/internal/scoring"
	"github.com/fieldops/riskmeter/internal/types"
)

// Repository implements the metric extractor over the sqlite store plus the
// ingest writes. All reads are typed at the boundary; an unknown entity
// simply matches no rows.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over db.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// entityColumn maps the entity type to the column the window filters on.
func entityColumn(entity scoring.EntityType) string {
	if entity == scoring.EntityCompany {
		return "company_id"
	}
	return "agent_id"
}

// windowClause appends the created_at bounds for the window, leaving a side
// open when the bound is absent.
func windowClause(query string, args []interface{}, w scoring.MetricWindow) (string, []interface{}) {
	if w.PeriodStart != nil {
		query += " AND created_at >= ?"
		args = append(args, *w.PeriodStart)
	}
	if w.PeriodEnd != nil {
		query += " AND created_at <= ?"
		args = append(args, *w.PeriodEnd)
	}
	return query, args
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// WorkOrders returns the work orders for the window's entity within its
// bounds.
func (r *Repository) WorkOrders(ctx context.Context, w scoring.MetricWindow) ([]types.WorkOrder, error) {
	query := `SELECT id, company_id, agent_id, status, scheduled_start, scheduled_end, actual_start, actual_end, created_at
		FROM work_orders WHERE ` + entityColumn(w.EntityType) + ` = ?`
	args := []interface{}{w.EntityID}
	query, args = windowClause(query, args, w)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work orders: %w", err)
	}
	defer rows.Close()

	orders := []types.WorkOrder{}
	for rows.Next() {
		var o types.WorkOrder
		var schedStart, schedEnd, actStart, actEnd sql.NullTime
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.AgentID, &o.Status,
			&schedStart, &schedEnd, &actStart, &actEnd, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}
		o.ScheduledStart = timePtr(schedStart)
		o.ScheduledEnd = timePtr(schedEnd)
		o.ActualStart = timePtr(actStart)
		o.ActualEnd = timePtr(actEnd)
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// Feedback returns the feedback entries for the window.
func (r *Repository) Feedback(ctx context.Context, w scoring.MetricWindow) ([]types.FeedbackEntry, error) {
	query := `SELECT id, work_order_id, company_id, agent_id, stars, would_hire_again, created_at
		FROM feedback_entries WHERE ` + entityColumn(w.EntityType) + ` = ?`
	args := []interface{}{w.EntityID}
	query, args = windowClause(query, args, w)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	entries := []types.FeedbackEntry{}
	for rows.Next() {
		var f types.FeedbackEntry
		if err := rows.Scan(&f.ID, &f.WorkOrderID, &f.CompanyID, &f.AgentID,
			&f.Stars, &f.WouldHireAgain, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback entry: %w", err)
		}
		entries = append(entries, f)
	}

	return entries, rows.Err()
}

// Issues returns the issues for the window.
func (r *Repository) Issues(ctx context.Context, w scoring.MetricWindow) ([]types.Issue, error) {
	query := `SELECT id, work_order_id, company_id, agent_id, status, created_at, resolved_at
		FROM issues WHERE ` + entityColumn(w.EntityType) + ` = ?`
	args := []interface{}{w.EntityID}
	query, args = windowClause(query, args, w)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	issues := []types.Issue{}
	for rows.Next() {
		var i types.Issue
		var resolvedAt sql.NullTime
		if err := rows.Scan(&i.ID, &i.WorkOrderID, &i.CompanyID, &i.AgentID,
			&i.Status, &i.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		i.ResolvedAt = timePtr(resolvedAt)
		issues = append(issues, i)
	}

	return issues, rows.Err()
}

// AuditEntries returns the compliance log rows for the window.
func (r *Repository) AuditEntries(ctx context.Context, w scoring.MetricWindow) ([]types.AuditEntry, error) {
	query := `SELECT id, company_id, agent_id, action, created_at
		FROM audit_entries WHERE ` + entityColumn(w.EntityType) + ` = ?`
	args := []interface{}{w.EntityID}
	query, args = windowClause(query, args, w)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []types.AuditEntry{}
	for rows.Next() {
		var a types.AuditEntry
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.AgentID, &a.Action, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, a)
	}

	return entries, rows.Err()
}

// InsertWorkOrder writes a work order row.
func (r *Repository) InsertWorkOrder(ctx context.Context, o *types.WorkOrder) error {
	stmt, err := r.db.GetPreparedStatement("insert_work_order")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, o.ID, o.CompanyID, o.AgentID, o.Status,
		nullableTime(o.ScheduledStart), nullableTime(o.ScheduledEnd),
		nullableTime(o.ActualStart), nullableTime(o.ActualEnd), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert work order: %w", err)
	}

	return nil
}

// InsertFeedback writes a feedback row.
func (r *Repository) InsertFeedback(ctx context.Context, f *types.FeedbackEntry) error {
	stmt, err := r.db.GetPreparedStatement("insert_feedback")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, f.ID, f.WorkOrderID, f.CompanyID, f.AgentID,
		f.Stars, f.WouldHireAgain, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feedback entry: %w", err)
	}

	return nil
}

// InsertIssue writes an issue row.
func (r *Repository) InsertIssue(ctx context.Context, i *types.Issue) error {
	stmt, err := r.db.GetPreparedStatement("insert_issue")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, i.ID, i.WorkOrderID, i.CompanyID, i.AgentID,
		i.Status, i.CreatedAt, nullableTime(i.ResolvedAt))
	if err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}

	return nil
}

// InsertAuditEntry writes an audit entry row.
func (r *Repository) InsertAuditEntry(ctx context.Context, a *types.AuditEntry) error {
	stmt, err := r.db.GetPreparedStatement("insert_audit_entry")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, a.ID, a.CompanyID, a.AgentID, a.Action, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListEntities returns every distinct agent and company that has work
// orders, for the snapshot scheduler to walk.
func (r *Repository) ListEntities(ctx context.Context) ([]scoring.MetricWindow, error) {
	windows := []scoring.MetricWindow{}

	for _, q := range []struct {
		entity scoring.EntityType
		query  string
	}{
		{scoring.EntityAgent, `SELECT DISTINCT agent_id FROM work_orders`},
		{scoring.EntityCompany, `SELECT DISTINCT company_id FROM work_orders`},
	} {
		rows, err := r.db.QueryContext(ctx, q.query)
		if err != nil {
			return nil, fmt.Errorf("failed to list entities: %w", err)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan entity id: %w", err)
			}
			windows = append(windows, scoring.MetricWindow{EntityType: q.entity, EntityID: id})
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return windows, nil
}
