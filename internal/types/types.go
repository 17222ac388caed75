package types

import "time"

// WorkOrder is a dispatch job as read from the store. Scheduling and
// completion timestamps are optional because jobs may be unscheduled or
// still in progress; the scorer treats missing fields as no signal.
type WorkOrder struct {
	ID             string     `json:"id"`
	CompanyID      string     `json:"company_id"`
	AgentID        string     `json:"agent_id"`
	Status         string     `json:"status"`
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// WorkOrderCompleted is the terminal status counted as a completed job.
const WorkOrderCompleted = "completed"

// Completed reports whether the work order finished.
func (w WorkOrder) Completed() bool {
	return w.Status == WorkOrderCompleted
}

// FeedbackEntry is a client rating for a completed work order.
type FeedbackEntry struct {
	ID             string    `json:"id"`
	WorkOrderID    string    `json:"work_order_id"`
	CompanyID      string    `json:"company_id"`
	AgentID        string    `json:"agent_id"`
	Stars          int       `json:"stars"` // 1-5
	WouldHireAgain bool      `json:"would_hire_again"`
	CreatedAt      time.Time `json:"created_at"`
}

// Issue statuses.
const (
	IssueOpen     = "open"
	IssueResolved = "resolved"
)

// Issue is a problem report raised against a work order.
type Issue struct {
	ID          string     `json:"id"`
	WorkOrderID string     `json:"work_order_id"`
	CompanyID   string     `json:"company_id"`
	AgentID     string     `json:"agent_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the issue has been closed out.
func (i Issue) Resolved() bool {
	return i.Status == IssueResolved
}

// AuditEntry is a compliance log row (checklist sign-off, photo upload,
// safety confirmation) attributed to an agent within a company.
type AuditEntry struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	AgentID   string    `json:"agent_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// RiskReportRequest is the request body for the on-demand report endpoint.
// Period bounds are optional ISO dates; absent bounds leave the window open.
type RiskReportRequest struct {
	EntityType  string `json:"entity_type" binding:"required"`
	EntityID    string `json:"entity_id" binding:"required"`
	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
}
