package scoring

import (
	"math"

	"github.com/fieldops/riskmeter/internal/types"
)

// Neutral defaults for zero-sample windows: no data is treated as no
// negative signal, never as a failure.
const (
	neutralPct     = 100.0
	neutralStars   = 5.0
	neutralDensity = 1.0
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pct converts a hit count over a denominator to a clamped percentage,
// falling back to the neutral default when there are no samples.
func pct(hits, total int) float64 {
	if total == 0 {
		return neutralPct
	}
	return clamp(float64(hits)/float64(total)*100, 0, 100)
}

// OnTimeStartPct is the share of work orders whose actual start was at or
// before the scheduled start. Orders missing either timestamp are excluded
// from both sides of the ratio.
func OnTimeStartPct(orders []types.WorkOrder) float64 {
	hits, total := 0, 0
	for _, o := range orders {
		if o.ScheduledStart == nil || o.ActualStart == nil {
			continue
		}
		total++
		if !o.ActualStart.After(*o.ScheduledStart) {
			hits++
		}
	}
	return pct(hits, total)
}

// OnTimeFinishPct is the share of work orders whose actual end was at or
// before the scheduled end.
func OnTimeFinishPct(orders []types.WorkOrder) float64 {
	hits, total := 0, 0
	for _, o := range orders {
		if o.ScheduledEnd == nil || o.ActualEnd == nil {
			continue
		}
		total++
		if !o.ActualEnd.After(*o.ScheduledEnd) {
			hits++
		}
	}
	return pct(hits, total)
}

// AvgSatisfaction is the mean star rating on the 1-5 scale. Entries with a
// rating outside that scale are malformed and contribute nothing.
func AvgSatisfaction(entries []types.FeedbackEntry) float64 {
	sum, total := 0, 0
	for _, f := range entries {
		if f.Stars < 1 || f.Stars > 5 {
			continue
		}
		sum += f.Stars
		total++
	}
	if total == 0 {
		return neutralStars
	}
	return float64(sum) / float64(total)
}

// WouldHireAgainPct is the share of feedback entries answering the
// would-hire-again question positively.
func WouldHireAgainPct(entries []types.FeedbackEntry) float64 {
	hits := 0
	for _, f := range entries {
		if f.WouldHireAgain {
			hits++
		}
	}
	return pct(hits, len(entries))
}

// IssueRatePct is the company-facing ratio: issues raised per hundred
// completed jobs. Higher is worse. Zero completed jobs means no exposure,
// so the rate is zero rather than undefined.
func IssueRatePct(issues []types.Issue, completedJobs int) float64 {
	if completedJobs == 0 {
		return 0
	}
	return clamp(float64(len(issues))/float64(completedJobs)*100, 0, 100)
}

// IssueResolutionPct is the agent-facing ratio: resolved issues over total
// issues. An agent with no issues raised against them has nothing to
// resolve, which reads as a perfect record.
func IssueResolutionPct(issues []types.Issue) float64 {
	hits := 0
	for _, i := range issues {
		if i.Resolved() {
			hits++
		}
	}
	return pct(hits, len(issues))
}

// ComplianceDensity is audit log entries per completed job. It is a plain
// ratio, not a percentage; values near or above 1.0 indicate every job left
// a compliance trail.
func ComplianceDensity(auditCount, completedJobs int) float64 {
	if completedJobs == 0 {
		return neutralDensity
	}
	return float64(auditCount) / float64(completedJobs)
}

// CompletedJobs counts work orders in the completed status.
func CompletedJobs(orders []types.WorkOrder) int {
	n := 0
	for _, o := range orders {
		if o.Completed() {
			n++
		}
	}
	return n
}

// BuildRatioSet derives the full ratio set from the raw collections for one
// window. Pure: it never touches the store and recomputes everything on
// every call.
func BuildRatioSet(orders []types.WorkOrder, feedback []types.FeedbackEntry, issues []types.Issue, audits []types.AuditEntry) RatioSet {
	completed := CompletedJobs(orders)
	return RatioSet{
		OnTimeStartPct:     OnTimeStartPct(orders),
		OnTimeFinishPct:    OnTimeFinishPct(orders),
		AvgSatisfaction:    AvgSatisfaction(feedback),
		WouldHireAgainPct:  WouldHireAgainPct(feedback),
		IssueRate:          IssueRatePct(issues, completed),
		IssueResolutionPct: IssueResolutionPct(issues),
		ComplianceDensity:  ComplianceDensity(len(audits), completed),
	}
}
