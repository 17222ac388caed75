package scoring

import "time"

// EntityType identifies the subject of a scoring run.
type EntityType string

const (
	EntityAgent   EntityType = "agent"
	EntityCompany EntityType = "company"
)

// Valid reports whether the entity type is one the scorer understands.
func (e EntityType) Valid() bool {
	return e == EntityAgent || e == EntityCompany
}

// MetricWindow scopes a single computation to an entity and a date range.
// Nil bounds leave that side of the window open. A window is never mutated
// once a computation starts.
type MetricWindow struct {
	EntityType  EntityType `json:"entityType"`
	EntityID    string     `json:"entityId"`
	PeriodStart *time.Time `json:"periodStart,omitempty"`
	PeriodEnd   *time.Time `json:"periodEnd,omitempty"`
}

// RatioSet holds the intermediate ratios derived from the raw collections.
// Values are kept at full precision; Rounded produces the display copy.
// IssueRate is only meaningful for companies and IssueResolutionPct for
// agents, mirroring the asymmetric formulas the product defined.
type RatioSet struct {
	OnTimeStartPct     float64 `json:"onTimeStartPct"`
	OnTimeFinishPct    float64 `json:"onTimeFinishPct"`
	AvgSatisfaction    float64 `json:"avgSatisfaction"` // 1-5 star scale
	WouldHireAgainPct  float64 `json:"wouldHireAgainPct"`
	IssueRate          float64 `json:"issueRate"`
	IssueResolutionPct float64 `json:"issueResolutionPct"`
	ComplianceDensity  float64 `json:"complianceDensity"`
}

// Timeliness is the mean of the on-time start and finish percentages.
func (r RatioSet) Timeliness() float64 {
	return (r.OnTimeStartPct + r.OnTimeFinishPct) / 2
}

// Rounded returns a copy with every ratio rounded to two decimal places.
func (r RatioSet) Rounded() RatioSet {
	return RatioSet{
		OnTimeStartPct:     round2(r.OnTimeStartPct),
		OnTimeFinishPct:    round2(r.OnTimeFinishPct),
		AvgSatisfaction:    round2(r.AvgSatisfaction),
		WouldHireAgainPct:  round2(r.WouldHireAgainPct),
		IssueRate:          round2(r.IssueRate),
		IssueResolutionPct: round2(r.IssueResolutionPct),
		ComplianceDensity:  round2(r.ComplianceDensity),
	}
}

// Severity tiers for flagged metrics.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// FlaggedMetric records a threshold breach. Current is expressed in the
// metric's native unit (stars for satisfaction, a 0-1 ratio for compliance
// density, percent otherwise).
type FlaggedMetric struct {
	Current   float64  `json:"current"`
	Threshold float64  `json:"threshold"`
	Severity  Severity `json:"severity"`
}

// CompositeScore is the result of one scoring run. Score is the risk score:
// 0 means no negative signal, 100 is the worst possible. Metrics at or above
// threshold are absent from FlaggedMetrics.
type CompositeScore struct {
	Score          int                      `json:"score"`
	FlaggedMetrics map[string]FlaggedMetric `json:"flaggedMetrics"`
	Ratios         RatioSet                 `json:"ratios"`
	Window         MetricWindow             `json:"window"`
}
