package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/riskmeter/internal/types"
)

// NewWorkOrder creates a work order with a generated ID.
func NewWorkOrder(companyID, agentID, status string, scheduledStart, scheduledEnd, actualStart, actualEnd *time.Time) *types.WorkOrder {
	return &types.WorkOrder{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		AgentID:        agentID,
		Status:         status,
		ScheduledStart: scheduledStart,
		ScheduledEnd:   scheduledEnd,
		ActualStart:    actualStart,
		ActualEnd:      actualEnd,
		CreatedAt:      time.Now(),
	}
}

// NewFeedbackEntry creates a feedback entry with a generated ID.
func NewFeedbackEntry(workOrderID, companyID, agentID string, stars int, wouldHireAgain bool) *types.FeedbackEntry {
	return &types.FeedbackEntry{
		ID:             uuid.New().String(),
		WorkOrderID:    workOrderID,
		CompanyID:      companyID,
		AgentID:        agentID,
		Stars:          stars,
		WouldHireAgain: wouldHireAgain,
		CreatedAt:      time.Now(),
	}
}

// NewIssue creates an issue with a generated ID.
func NewIssue(workOrderID, companyID, agentID, status string, resolvedAt *time.Time) *types.Issue {
	return &types.Issue{
		ID:          uuid.New().String(),
		WorkOrderID: workOrderID,
		CompanyID:   companyID,
		AgentID:     agentID,
		Status:      status,
		CreatedAt:   time.Now(),
		ResolvedAt:  resolvedAt,
	}
}

// NewAuditEntry creates an audit entry with a generated ID.
func NewAuditEntry(companyID, agentID, action string) *types.AuditEntry {
	return &types.AuditEntry{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		AgentID:   agentID,
		Action:    action,
		CreatedAt: time.Now(),
	}
}
