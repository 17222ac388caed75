package scoring

import "math"

// Metric names used in flagged-metric maps and category sub-scores.
const (
	MetricClientSatisfaction = "clientSatisfaction"
	MetricTimeliness         = "timeliness"
	MetricIssueResolution    = "issueResolution"
	MetricIssueRate          = "issueRate"
	MetricCompliance         = "compliance"
)

// categoryIssueHandling is a weight-table key only; flagged metrics use the
// entity-specific issueRate and issueResolution names.
const categoryIssueHandling = "issueHandling"

var categoryWeights = map[string]float64{
	MetricClientSatisfaction: 0.40,
	MetricTimeliness:         0.20,
	categoryIssueHandling:    0.30,
	MetricCompliance:         0.10,
}

// threshold pairs the passing bound with the high-severity cutoff for one
// metric. Inverted metrics (issue rate) breach when the value rises above
// the bound instead of falling below it.
type threshold struct {
	Pass     float64
	High     float64
	Inverted bool
}

// Compliance escalates to high only below half density: an audit trail on
// half the jobs is a gap worth surfacing, missing more than that is a
// serious one.
var thresholds = map[string]threshold{
	MetricClientSatisfaction: {Pass: 3.5, High: 2.5}, // star scale
	MetricTimeliness:         {Pass: 80, High: 60},
	MetricIssueResolution:    {Pass: 85, High: 70},
	MetricIssueRate:          {Pass: 15, High: 25, Inverted: true},
	MetricCompliance:         {Pass: 0.8, High: 0.5},
}

// Compose combines the ratio set into the final risk score. Each category
// sub-score starts from a perfect 100 and is replaced by the measured value
// only when it breaches its threshold, so above-threshold performance never
// earns a bonus. The reported score is 100 minus the weighted composite:
// higher means worse.
func Compose(w MetricWindow, ratios RatioSet) CompositeScore {
	satisfaction := 100.0
	if ratios.AvgSatisfaction < thresholds[MetricClientSatisfaction].Pass {
		satisfaction = clamp(ratios.AvgSatisfaction/5*100, 0, 100)
	}

	timeliness := 100.0
	if measured := ratios.Timeliness(); measured < thresholds[MetricTimeliness].Pass {
		timeliness = clamp(measured, 0, 100)
	}

	issueHandling := 100.0
	if w.EntityType == EntityCompany {
		if ratios.IssueRate > thresholds[MetricIssueRate].Pass {
			issueHandling = clamp(100-ratios.IssueRate, 0, 100)
		}
	} else {
		if ratios.IssueResolutionPct < thresholds[MetricIssueResolution].Pass {
			issueHandling = clamp(ratios.IssueResolutionPct, 0, 100)
		}
	}

	compliance := 100.0
	if ratios.ComplianceDensity < thresholds[MetricCompliance].Pass {
		compliance = clamp(ratios.ComplianceDensity, 0, 1) * 100
	}

	composite := categoryWeights[MetricClientSatisfaction]*satisfaction +
		categoryWeights[MetricTimeliness]*timeliness +
		categoryWeights[categoryIssueHandling]*issueHandling +
		categoryWeights[MetricCompliance]*compliance

	risk := int(math.Round(clamp(100-composite, 0, 100)))

	return CompositeScore{
		Score:          risk,
		FlaggedMetrics: Classify(w.EntityType, ratios),
		Ratios:         ratios.Rounded(),
		Window:         w,
	}
}
