package risk

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbandeira/solmon/internal/config"
	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/schema"
)

func testConfig(t *testing.T, yaml string) *config.Settings {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fullMapping() schema.Mapping {
	return schema.Mapping{
		schema.FieldProgressLog: 0,
		schema.FieldReferenceID: 1,
		schema.FieldOwner:       2,
	}
}

// clean is a record that fires no risk condition.
func clean(row int) dataset.Record {
	return dataset.Record{
		Row:            row,
		StatusMacro:    dataset.StatusInProgress,
		LeadTime:       10,
		Owner:          "Ana",
		HasProgressLog: true,
	}
}

func score(t *testing.T, cfg *config.Settings, mapping schema.Mapping, recs ...dataset.Record) []dataset.Record {
	t.Helper()
	out := New(cfg, testLogger()).Score(&dataset.Frame{Records: recs, Mapping: mapping})
	require.Len(t, out.Records, len(recs))
	return out.Records
}

func TestScoreCleanRecord(t *testing.T) {
	recs := score(t, testConfig(t, "{}"), fullMapping(), clean(1))

	assert.Equal(t, 0, recs[0].RiskScore)
	assert.Equal(t, dataset.RiskLow, recs[0].RiskCategory)
	assert.Equal(t, dataset.DimensionNone, recs[0].RiskDimension)
}

func TestScoreSingleConditionDeltas(t *testing.T) {
	cfg := testConfig(t, "{}")

	tests := []struct {
		name   string
		mutate func(*dataset.Record)
		want   int
	}{
		{"breached", func(r *dataset.Record) { r.Breached = true }, 20},
		{"cancelled", func(r *dataset.Record) { r.StatusMacro = dataset.StatusCancelled }, 25},
		{"extreme age", func(r *dataset.Record) { r.LeadTime = 366 }, 30},
		{"missing log", func(r *dataset.Record) { r.HasProgressLog = false }, 15},
		{"missing owner", func(r *dataset.Record) { r.Owner = "" }, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := clean(1)
			tt.mutate(&rec)
			recs := score(t, cfg, fullMapping(), rec)

			// Firing exactly one condition raises the score by exactly its weight.
			assert.Equal(t, tt.want, recs[0].RiskScore)
		})
	}
}

func TestScoreAdditive(t *testing.T) {
	rec := clean(1)
	rec.Breached = true
	rec.LeadTime = 400
	rec.Owner = ""
	rec.HasProgressLog = false
	rec.StatusMacro = dataset.StatusCancelled

	recs := score(t, testConfig(t, "{}"), fullMapping(), rec)
	assert.Equal(t, 100, recs[0].RiskScore)
	assert.Equal(t, dataset.RiskHigh, recs[0].RiskCategory)
	assert.Equal(t, dataset.DimensionMixed, recs[0].RiskDimension)
}

func TestCategorizeBoundaries(t *testing.T) {
	assert.Equal(t, dataset.RiskLow, Categorize(0))
	assert.Equal(t, dataset.RiskLow, Categorize(20))
	assert.Equal(t, dataset.RiskModerate, Categorize(21))
	assert.Equal(t, dataset.RiskModerate, Categorize(50))
	assert.Equal(t, dataset.RiskHigh, Categorize(51))
	assert.Equal(t, dataset.RiskHigh, Categorize(100))
}

func TestScoreDimensions(t *testing.T) {
	cfg := testConfig(t, "{}")

	breached := clean(1)
	breached.Breached = true

	unowned := clean(2)
	unowned.Owner = ""

	cancelled := clean(3)
	cancelled.StatusMacro = dataset.StatusCancelled

	mixed := clean(4)
	mixed.Breached = true
	mixed.Owner = ""

	recs := score(t, cfg, fullMapping(), breached, unowned, cancelled, mixed)

	assert.Equal(t, dataset.DimensionTime, recs[0].RiskDimension)
	assert.True(t, recs[0].TimeRisk)

	assert.Equal(t, dataset.DimensionOperational, recs[1].RiskDimension)
	assert.True(t, recs[1].OperationalRisk)

	assert.Equal(t, dataset.DimensionGovernance, recs[2].RiskDimension)
	assert.True(t, recs[2].GovernanceRisk)

	assert.Equal(t, dataset.DimensionMixed, recs[3].RiskDimension)
}

func TestScoreExtremeAgeBoundary(t *testing.T) {
	cfg := testConfig(t, "risk:\n  extreme_age_days: 365\n")

	at := clean(1)
	at.LeadTime = 365
	over := clean(2)
	over.LeadTime = 366

	recs := score(t, cfg, fullMapping(), at, over)
	assert.Equal(t, 0, recs[0].RiskScore)
	assert.Equal(t, 30, recs[1].RiskScore)
}

func TestScoreMissingWeightCountsZero(t *testing.T) {
	cfg := testConfig(t, "risk:\n  weights:\n    breached: 20\n")

	rec := clean(1)
	rec.StatusMacro = dataset.StatusCancelled
	rec.Breached = true

	recs := score(t, cfg, fullMapping(), rec)
	// cancelled has no configured weight and contributes nothing.
	assert.Equal(t, 20, recs[0].RiskScore)
	assert.True(t, recs[0].GovernanceRisk)
}

func TestScoreMissingLogFallsBackToReference(t *testing.T) {
	cfg := testConfig(t, "{}")
	mapping := schema.Mapping{
		schema.FieldReferenceID: 0,
		schema.FieldOwner:       1,
	}

	rec := clean(1)
	rec.HasProgressLog = false
	rec.HasReferenceID = true

	recs := score(t, cfg, mapping, rec)
	// The reference column stands in for the absent log column.
	assert.Equal(t, 0, recs[0].RiskScore)

	rec.HasReferenceID = false
	recs = score(t, cfg, mapping, rec)
	assert.Equal(t, 15, recs[0].RiskScore)
}

func TestScoreConditionsDisabledWithoutColumns(t *testing.T) {
	cfg := testConfig(t, "{}")

	rec := clean(1)
	rec.Owner = ""
	rec.HasProgressLog = false
	rec.HasReferenceID = false

	recs := score(t, cfg, schema.Mapping{}, rec)
	assert.Equal(t, 0, recs[0].RiskScore)
	assert.False(t, recs[0].OperationalRisk)
}

func TestScoreMalformedRecordIsolated(t *testing.T) {
	cfg := testConfig(t, "{}")

	bad := dataset.Record{Row: 1, LeadTime: -3, StatusMacro: dataset.StatusOther}
	noStatus := dataset.Record{Row: 2, LeadTime: 5, Owner: "Ana", HasProgressLog: true}
	good := clean(3)
	good.Breached = true

	recs := score(t, cfg, fullMapping(), bad, noStatus, good)

	// Malformed rows get the defined default, not a score.
	assert.Equal(t, 0, recs[0].RiskScore)
	assert.Equal(t, dataset.RiskUndefined, recs[0].RiskCategory)
	assert.Equal(t, dataset.DimensionNone, recs[0].RiskDimension)

	assert.Equal(t, dataset.RiskUndefined, recs[1].RiskCategory)

	// Their neighbors still score normally.
	assert.Equal(t, 20, recs[2].RiskScore)
	assert.Equal(t, dataset.RiskLow, recs[2].RiskCategory)
}

func TestScoreDoesNotMutateInput(t *testing.T) {
	cfg := testConfig(t, "{}")
	rec := clean(1)
	rec.Breached = true
	in := &dataset.Frame{Records: []dataset.Record{rec}, Mapping: fullMapping()}

	_ = New(cfg, testLogger()).Score(in)
	assert.Equal(t, 0, in.Records[0].RiskScore)
}

// A 100-row base with overlapping conditions: 10 cancelled, 5 extremely old
// and breached. Overlapping rows accumulate both weights and land in high.
func TestScorePopulationScenario(t *testing.T) {
	cfg := testConfig(t, `
risk:
  weights:
    breached: 20
    cancelled: 25
    extreme_age: 30
    missing_log: 15
    missing_owner: 10
  extreme_age_days: 365
`)

	var recs []dataset.Record
	for i := 1; i <= 100; i++ {
		rec := clean(i)
		if i <= 10 {
			rec.StatusMacro = dataset.StatusCancelled
		}
		if i <= 5 {
			rec.LeadTime = 400
			rec.Breached = true
		}
		recs = append(recs, rec)
	}

	out := score(t, cfg, fullMapping(), recs...)

	high := 0
	for _, r := range out {
		if r.RiskCategory == dataset.RiskHigh {
			high++
		}
	}
	// Rows 1-5 score 25+30+20=75; rows 6-10 score 25; the rest 0.
	assert.Equal(t, 5, high)
	assert.Equal(t, 75, out[0].RiskScore)
	assert.Equal(t, dataset.DimensionMixed, out[0].RiskDimension)
	assert.Equal(t, 25, out[5].RiskScore)
	assert.Equal(t, dataset.RiskModerate, out[5].RiskCategory)
	assert.Equal(t, 0, out[99].RiskScore)
}
