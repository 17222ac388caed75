package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanRatios returns a ratio set where every metric passes its threshold.
func cleanRatios() RatioSet {
	return RatioSet{
		OnTimeStartPct:     100,
		OnTimeFinishPct:    100,
		AvgSatisfaction:    5.0,
		WouldHireAgainPct:  100,
		IssueRate:          0,
		IssueResolutionPct: 100,
		ComplianceDensity:  1.0,
	}
}

func agentWindow() MetricWindow {
	return MetricWindow{EntityType: EntityAgent, EntityID: "agent-1"}
}

func companyWindow() MetricWindow {
	return MetricWindow{EntityType: EntityCompany, EntityID: "company-1"}
}

func TestComposeCleanWindowScoresZero(t *testing.T) {
	result := Compose(agentWindow(), cleanRatios())

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.FlaggedMetrics)
}

func TestComposeComplianceShortfall(t *testing.T) {
	// 10 completed jobs, 9/10 on time both ways, 4.2 stars, no issues,
	// 5 audit entries. Only compliance (0.5 < 0.8) breaches, so the score
	// reflects just the 10%-weighted shortfall: 100 - (90 + 0.1*50) = 5.
	ratios := RatioSet{
		OnTimeStartPct:     90,
		OnTimeFinishPct:    90,
		AvgSatisfaction:    4.2,
		WouldHireAgainPct:  100,
		IssueRate:          0,
		IssueResolutionPct: 100,
		ComplianceDensity:  0.5,
	}

	result := Compose(agentWindow(), ratios)

	assert.Equal(t, 5, result.Score)
	require.Len(t, result.FlaggedMetrics, 1)

	flag, ok := result.FlaggedMetrics[MetricCompliance]
	require.True(t, ok)
	assert.Equal(t, 0.5, flag.Current)
	assert.Equal(t, 0.8, flag.Threshold)
	assert.Equal(t, SeverityMedium, flag.Severity)
}

func TestComposeCompanyHighIssueRate(t *testing.T) {
	ratios := cleanRatios()
	ratios.IssueRate = 30

	result := Compose(companyWindow(), ratios)

	// issueHandling sub-score drops to 70: 100 - (70 + 0.3*70) = 9
	assert.Equal(t, 9, result.Score)
	require.Contains(t, result.FlaggedMetrics, MetricIssueRate)
	assert.Equal(t, SeverityHigh, result.FlaggedMetrics[MetricIssueRate].Severity)
}

func TestComposeIssueRateIgnoredForAgents(t *testing.T) {
	ratios := cleanRatios()
	ratios.IssueRate = 90 // would be a severe breach for a company

	result := Compose(agentWindow(), ratios)

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.FlaggedMetrics)
}

func TestComposeResolutionIgnoredForCompanies(t *testing.T) {
	ratios := cleanRatios()
	ratios.IssueResolutionPct = 10

	result := Compose(companyWindow(), ratios)

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.FlaggedMetrics)
}

func TestComposeNoBonusForExcellence(t *testing.T) {
	// A barely-passing window and a perfect window score identically.
	barely := RatioSet{
		OnTimeStartPct:     80,
		OnTimeFinishPct:    80,
		AvgSatisfaction:    3.5,
		WouldHireAgainPct:  0,
		IssueRate:          15,
		IssueResolutionPct: 85,
		ComplianceDensity:  0.8,
	}

	assert.Equal(t, Compose(agentWindow(), cleanRatios()).Score, Compose(agentWindow(), barely).Score)
	assert.Equal(t, Compose(companyWindow(), cleanRatios()).Score, Compose(companyWindow(), barely).Score)
}

func TestComposeWouldHireAgainCarriesNoWeight(t *testing.T) {
	low := cleanRatios()
	low.WouldHireAgainPct = 0

	assert.Equal(t, Compose(agentWindow(), cleanRatios()).Score, Compose(agentWindow(), low).Score)
}

func TestComposeScoreBounds(t *testing.T) {
	worst := RatioSet{
		OnTimeStartPct:     0,
		OnTimeFinishPct:    0,
		AvgSatisfaction:    0,
		WouldHireAgainPct:  0,
		IssueRate:          100,
		IssueResolutionPct: 0,
		ComplianceDensity:  0,
	}

	for _, w := range []MetricWindow{agentWindow(), companyWindow()} {
		result := Compose(w, worst)
		assert.GreaterOrEqual(t, result.Score, 0)
		assert.LessOrEqual(t, result.Score, 100)
	}

	// agent with everything at zero scores the full 100
	assert.Equal(t, 100, Compose(agentWindow(), worst).Score)
}

func TestComposeTimelinessMonotonicity(t *testing.T) {
	// Holding everything else fixed, a lower timeliness percentage never
	// lowers the risk score.
	prev := -1
	for pct := 100; pct >= 0; pct -= 5 {
		ratios := cleanRatios()
		ratios.OnTimeStartPct = float64(pct)
		ratios.OnTimeFinishPct = float64(pct)

		score := Compose(agentWindow(), ratios).Score
		assert.GreaterOrEqual(t, score, prev, "timeliness %d%% decreased the risk score", pct)
		prev = score
	}
}

func TestComposeRoundsDisplayRatios(t *testing.T) {
	ratios := cleanRatios()
	ratios.OnTimeStartPct = 66.666666

	result := Compose(agentWindow(), ratios)
	assert.Equal(t, 66.67, result.Ratios.OnTimeStartPct)
}

func TestCategoryWeightsSumToOne(t *testing.T) {
	total := 0.0
	for _, w := range categoryWeights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 0.0001)
}
