package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbandeira/solmon/internal/dataset"
)

func TestExecutiveKPIs(t *testing.T) {
	recs := []dataset.Record{
		{StatusMacro: dataset.StatusCompleted},
		{StatusMacro: dataset.StatusCompleted, Breached: true},
		{StatusMacro: dataset.StatusInProgress, Breached: true},
		{StatusMacro: dataset.StatusCancelled},
	}

	e := ExecutiveKPIs(recs)
	assert.Equal(t, 4, e.Total)
	assert.Equal(t, 2, e.Completed)
	assert.Equal(t, 2, e.Breached)
	assert.Equal(t, 1, e.Cancelled)
	assert.Equal(t, 50.0, e.CompletionRate)
	assert.Equal(t, 50.0, e.BreachRate)
}

func TestExecutiveKPIsEmpty(t *testing.T) {
	e := ExecutiveKPIs(nil)
	assert.Equal(t, 0, e.Total)
	assert.Equal(t, 0.0, e.CompletionRate)
}

func TestAdvancedKPIs(t *testing.T) {
	recs := []dataset.Record{
		{LeadTime: 10, Owner: "Ana", HasProgressLog: true},
		{LeadTime: 20, Owner: "Ana", HasProgressLog: true},
		{LeadTime: 30, HasProgressLog: false},
		{LeadTime: 400, Owner: "Beto", HasProgressLog: true, VeryOld: true},
	}

	a := AdvancedKPIs(recs)
	assert.Equal(t, 115.0, a.LeadMean)
	assert.Equal(t, 25.0, a.LeadMedian)
	assert.Equal(t, 1, a.VeryOld)
	assert.Equal(t, 1, a.MissingLog)
	assert.Equal(t, 1, a.MissingOwner)
	assert.GreaterOrEqual(t, a.LeadP95, a.LeadP90)
	assert.GreaterOrEqual(t, a.LeadP90, a.LeadP75)
}

func TestAdvancedKPIsEmpty(t *testing.T) {
	a := AdvancedKPIs(nil)
	assert.Equal(t, 0.0, a.LeadMean)
	assert.Equal(t, 0, a.LeadP95)
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{0, 10, 20, 30}
	assert.Equal(t, 15.0, percentile(sorted, 0.5))
	assert.Equal(t, 0.0, percentile(sorted, 0))
	assert.Equal(t, 30.0, percentile(sorted, 1))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.9))
}

func TestFunnelOrdering(t *testing.T) {
	recs := []dataset.Record{
		{StatusMacro: dataset.StatusInProgress},
		{StatusMacro: dataset.StatusInProgress},
		{StatusMacro: dataset.StatusCompleted},
		{StatusMacro: dataset.StatusCancelled},
	}

	rows := Funnel(recs)
	require.Len(t, rows, 3)
	assert.Equal(t, dataset.StatusInProgress, rows[0].Status)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, 50.0, rows[0].Percent)
	// Equal counts break ties by status name.
	assert.Equal(t, dataset.StatusCancelled, rows[1].Status)
	assert.Equal(t, dataset.StatusCompleted, rows[2].Status)
}

func TestFunnelEmpty(t *testing.T) {
	assert.Empty(t, Funnel(nil))
}

func TestBreachRateBy(t *testing.T) {
	recs := []dataset.Record{
		{OrgUnit: "SES", Breached: true},
		{OrgUnit: "SES", Breached: true},
		{OrgUnit: "SEF", Breached: true},
		{OrgUnit: "SEF"},
		{Breached: false},
	}

	rows := BreachRateBy(recs, ByOrgUnit)
	require.Len(t, rows, 3)
	assert.Equal(t, "SES", rows[0].Group)
	assert.Equal(t, 100.0, rows[0].Rate)
	assert.Equal(t, "SEF", rows[1].Group)
	assert.Equal(t, 50.0, rows[1].Rate)
	assert.Equal(t, Unassigned, rows[2].Group)
	assert.Equal(t, 0.0, rows[2].Rate)
}

func TestLeadTimeBy(t *testing.T) {
	recs := []dataset.Record{
		{Group: "NUC1", LeadTime: 10},
		{Group: "NUC1", LeadTime: 30},
		{Group: "NUC2", LeadTime: 5},
	}

	rows := LeadTimeBy(recs, ByGroup)
	require.Len(t, rows, 2)
	assert.Equal(t, "NUC1", rows[0].Group)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, 20.0, rows[0].Mean)
	assert.Equal(t, 20.0, rows[0].Median)
	assert.Equal(t, "NUC2", rows[1].Group)
	assert.Equal(t, 5.0, rows[1].Mean)
}

func TestCompletionBy(t *testing.T) {
	recs := []dataset.Record{
		{Group: "NUC1", StatusMacro: dataset.StatusCompleted},
		{Group: "NUC1", StatusMacro: dataset.StatusInProgress},
		{Group: "NUC1", StatusMacro: dataset.StatusCancelled},
		{Group: "NUC1", StatusMacro: dataset.StatusOther},
	}

	rows := CompletionBy(recs, ByGroup)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Total)
	assert.Equal(t, 1, rows[0].Completed)
	assert.Equal(t, 1, rows[0].InProgress)
	assert.Equal(t, 1, rows[0].Cancelled)
	assert.Equal(t, 1, rows[0].Other)
	assert.Equal(t, 25.0, rows[0].CompletionRate)
}

func TestTopCritical(t *testing.T) {
	recs := []dataset.Record{
		{Row: 1, LeadTime: 50},
		{Row: 2, LeadTime: 300},
		{Row: 3, LeadTime: 120},
		{Row: 4, LeadTime: 300},
	}

	top := TopCritical(recs, 3)
	require.Len(t, top, 3)
	// Ordered by age descending; ties keep input order.
	assert.Equal(t, 2, top[0].Row)
	assert.Equal(t, 4, top[1].Row)
	assert.Equal(t, 3, top[2].Row)
}

func TestTopCriticalBounds(t *testing.T) {
	recs := []dataset.Record{{Row: 1}, {Row: 2}}
	assert.Len(t, TopCritical(recs, 10), 2)
	assert.Nil(t, TopCritical(recs, 0))
	assert.Nil(t, TopCritical(nil, 5))
}

func TestAgingDistribution(t *testing.T) {
	recs := []dataset.Record{
		{AgingBucket: dataset.Aging0to30},
		{AgingBucket: dataset.Aging0to30},
		{AgingBucket: dataset.AgingOver365},
	}

	rows := AgingDistribution(recs)
	require.Len(t, rows, 6)
	assert.Equal(t, string(dataset.Aging0to30), rows[0].Label)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, 66.67, rows[0].Percent)
	assert.Equal(t, 0, rows[1].Count)
	assert.Equal(t, 1, rows[5].Count)
}

func TestDimensionDistribution(t *testing.T) {
	recs := []dataset.Record{
		{RiskDimension: dataset.DimensionNone},
		{RiskDimension: dataset.DimensionMixed},
		{RiskDimension: dataset.DimensionMixed},
	}

	rows := DimensionDistribution(recs)
	require.Len(t, rows, 5)
	assert.Equal(t, string(dataset.DimensionMixed), rows[4].Label)
	assert.Equal(t, 2, rows[4].Count)
}

func TestRiskDistributionHidesEmptyUndefined(t *testing.T) {
	recs := []dataset.Record{
		{RiskCategory: dataset.RiskLow},
		{RiskCategory: dataset.RiskHigh},
	}

	rows := RiskDistribution(recs)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.NotEqual(t, string(dataset.RiskUndefined), row.Label)
	}

	recs = append(recs, dataset.Record{RiskCategory: dataset.RiskUndefined})
	rows = RiskDistribution(recs)
	require.Len(t, rows, 4)
	assert.Equal(t, string(dataset.RiskUndefined), rows[3].Label)
}
