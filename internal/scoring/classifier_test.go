package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySeverityTiers(t *testing.T) {
	tests := []struct {
		name     string
		entity   EntityType
		mutate   func(*RatioSet)
		metric   string
		severity Severity
	}{
		{
			name:     "satisfaction below pass is medium",
			entity:   EntityAgent,
			mutate:   func(r *RatioSet) { r.AvgSatisfaction = 3.0 },
			metric:   MetricClientSatisfaction,
			severity: SeverityMedium,
		},
		{
			name:     "satisfaction below high cutoff",
			entity:   EntityAgent,
			mutate:   func(r *RatioSet) { r.AvgSatisfaction = 2.0 },
			metric:   MetricClientSatisfaction,
			severity: SeverityHigh,
		},
		{
			name:     "timeliness between cutoffs is medium",
			entity:   EntityAgent,
			mutate:   func(r *RatioSet) { r.OnTimeStartPct = 70; r.OnTimeFinishPct = 70 },
			metric:   MetricTimeliness,
			severity: SeverityMedium,
		},
		{
			name:     "timeliness below high cutoff",
			entity:   EntityCompany,
			mutate:   func(r *RatioSet) { r.OnTimeStartPct = 50; r.OnTimeFinishPct = 50 },
			metric:   MetricTimeliness,
			severity: SeverityHigh,
		},
		{
			name:     "agent resolution between cutoffs is medium",
			entity:   EntityAgent,
			mutate:   func(r *RatioSet) { r.IssueResolutionPct = 75 },
			metric:   MetricIssueResolution,
			severity: SeverityMedium,
		},
		{
			name:     "agent resolution below high cutoff",
			entity:   EntityAgent,
			mutate:   func(r *RatioSet) { r.IssueResolutionPct = 50 },
			metric:   MetricIssueResolution,
			severity: SeverityHigh,
		},
		{
			name:     "company issue rate between cutoffs is medium",
			entity:   EntityCompany,
			mutate:   func(r *RatioSet) { r.IssueRate = 20 },
			metric:   MetricIssueRate,
			severity: SeverityMedium,
		},
		{
			name:     "company issue rate above high cutoff",
			entity:   EntityCompany,
			mutate:   func(r *RatioSet) { r.IssueRate = 30 },
			metric:   MetricIssueRate,
			severity: SeverityHigh,
		},
		{
			name:     "compliance between cutoffs is medium",
			entity:   EntityAgent,
			mutate:   func(r *RatioSet) { r.ComplianceDensity = 0.7 },
			metric:   MetricCompliance,
			severity: SeverityMedium,
		},
		{
			name:     "compliance at half density is still medium",
			entity:   EntityAgent,
			mutate:   func(r *RatioSet) { r.ComplianceDensity = 0.5 },
			metric:   MetricCompliance,
			severity: SeverityMedium,
		},
		{
			name:     "compliance below half density",
			entity:   EntityCompany,
			mutate:   func(r *RatioSet) { r.ComplianceDensity = 0.4 },
			metric:   MetricCompliance,
			severity: SeverityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratios := cleanRatios()
			tt.mutate(&ratios)

			flags := Classify(tt.entity, ratios)
			require.Len(t, flags, 1)

			flag, ok := flags[tt.metric]
			require.True(t, ok)
			assert.Equal(t, tt.severity, flag.Severity)
		})
	}
}

func TestClassifyPassingMetricsOmitted(t *testing.T) {
	assert.Empty(t, Classify(EntityAgent, cleanRatios()))
	assert.Empty(t, Classify(EntityCompany, cleanRatios()))
}

func TestClassifyExactThresholdPasses(t *testing.T) {
	ratios := RatioSet{
		OnTimeStartPct:     80,
		OnTimeFinishPct:    80,
		AvgSatisfaction:    3.5,
		IssueRate:          15,
		IssueResolutionPct: 85,
		ComplianceDensity:  0.8,
	}

	assert.Empty(t, Classify(EntityAgent, ratios))
	assert.Empty(t, Classify(EntityCompany, ratios))
}

func TestClassifyFlagInvariants(t *testing.T) {
	ratios := RatioSet{
		OnTimeStartPct:     30,
		OnTimeFinishPct:    40,
		AvgSatisfaction:    1.8,
		IssueRate:          60,
		IssueResolutionPct: 20,
		ComplianceDensity:  0.1,
	}

	for _, entity := range []EntityType{EntityAgent, EntityCompany} {
		for metric, flag := range Classify(entity, ratios) {
			if metric == MetricIssueRate {
				assert.Greater(t, flag.Current, flag.Threshold)
			} else {
				assert.Less(t, flag.Current, flag.Threshold)
			}
		}
	}
}

func TestClassifyEntityAsymmetry(t *testing.T) {
	ratios := cleanRatios()
	ratios.IssueRate = 50
	ratios.IssueResolutionPct = 10

	agentFlags := Classify(EntityAgent, ratios)
	require.Contains(t, agentFlags, MetricIssueResolution)
	assert.NotContains(t, agentFlags, MetricIssueRate)

	companyFlags := Classify(EntityCompany, ratios)
	require.Contains(t, companyFlags, MetricIssueRate)
	assert.NotContains(t, companyFlags, MetricIssueResolution)
}

func TestClassifyRoundsFlaggedValues(t *testing.T) {
	ratios := cleanRatios()
	ratios.ComplianceDensity = 0.333333

	flags := Classify(EntityAgent, ratios)
	require.Contains(t, flags, MetricCompliance)
	assert.Equal(t, 0.33, flags[MetricCompliance].Current)
}
