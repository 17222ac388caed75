package scoring

// Classify emits a flagged-metric entry for every ratio that breached its
// threshold. Passing metrics are omitted entirely; an empty map means a
// clean window. Flagged values are reported in the metric's native unit and
// rounded the same way the display ratios are.
func Classify(entity EntityType, ratios RatioSet) map[string]FlaggedMetric {
	flags := make(map[string]FlaggedMetric)

	flagBelow := func(name string, current float64) {
		t := thresholds[name]
		if current >= t.Pass {
			return
		}
		severity := SeverityMedium
		if current < t.High {
			severity = SeverityHigh
		}
		flags[name] = FlaggedMetric{Current: round2(current), Threshold: t.Pass, Severity: severity}
	}

	flagAbove := func(name string, current float64) {
		t := thresholds[name]
		if current <= t.Pass {
			return
		}
		severity := SeverityMedium
		if current > t.High {
			severity = SeverityHigh
		}
		flags[name] = FlaggedMetric{Current: round2(current), Threshold: t.Pass, Severity: severity}
	}

	flagBelow(MetricClientSatisfaction, ratios.AvgSatisfaction)
	flagBelow(MetricTimeliness, ratios.Timeliness())
	flagBelow(MetricCompliance, ratios.ComplianceDensity)

	if entity == EntityCompany {
		flagAbove(MetricIssueRate, ratios.IssueRate)
	} else {
		flagBelow(MetricIssueResolution, ratios.IssueResolutionPct)
	}

	return flags
}
