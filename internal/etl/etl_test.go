package etl

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbandeira/solmon/internal/config"
	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/schema"
)

func testConfig(t *testing.T) *config.Settings {
	t.Helper()
	cfg, err := config.Parse([]byte(`
general:
  default_date: "2023-01-01"
  evaluation_date: "2024-06-15"
`))
	require.NoError(t, err)
	return cfg
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fullTable(rows [][]string) *dataset.Table {
	return &dataset.Table{
		Columns: []string{
			"Data da solicitação", "Situação do Processo", "Tipo da solicitação",
			"SEI", "Andamento SEI", "Responsável", "Órgão", "Núcleo Pertencente",
		},
		Rows: rows,
	}
}

func TestNormalizeBasicRow(t *testing.T) {
	table := fullTable([][]string{
		{"2024-06-01", " Em andamento ", "Pregão eletrônico", "123", "despachado", " Ana ", "SES", "NUC1"},
	})

	frame := New(testConfig(t), testLogger()).Normalize(table)
	require.Len(t, frame.Records, 1)

	rec := frame.Records[0]
	assert.Equal(t, 1, rec.Row)
	assert.True(t, rec.HasSubmissionDate)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), rec.SubmissionDate)
	assert.Equal(t, 14, rec.LeadTime)
	assert.Equal(t, dataset.StatusInProgress, rec.StatusMacro)
	assert.Equal(t, "Em andamento", rec.RawStatus)
	assert.Equal(t, dataset.ComplexityHigh, rec.Complexity)
	assert.Equal(t, "Ana", rec.Owner)
	assert.True(t, rec.HasReferenceID)
	assert.True(t, rec.HasProgressLog)
	assert.Equal(t, "SES", rec.OrgUnit)
	assert.Equal(t, "NUC1", rec.Group)
}

func TestNormalizeDefaultDateCoercion(t *testing.T) {
	table := fullTable([][]string{
		{"not a date", "Concluído", "", "", "", "", "", ""},
		{"", "Concluído", "", "", "", "", "", ""},
	})

	frame := New(testConfig(t), testLogger()).Normalize(table)
	require.Len(t, frame.Records, 2)

	// Both rows fall back to the default date; lead time counts from there.
	want := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, rec := range frame.Records {
		assert.Equal(t, want, rec.SubmissionDate)
		assert.Equal(t, 531, rec.LeadTime)
	}
}

func TestNormalizeFutureDateClamped(t *testing.T) {
	table := fullTable([][]string{
		{"2025-01-01", "Em análise", "", "", "", "", "", ""},
	})

	frame := New(testConfig(t), testLogger()).Normalize(table)
	require.Len(t, frame.Records, 1)
	assert.Equal(t, 0, frame.Records[0].LeadTime)
}

func TestNormalizeMissingColumns(t *testing.T) {
	table := &dataset.Table{
		Columns: []string{"Coluna X"},
		Rows:    [][]string{{"valor"}},
	}

	frame := New(testConfig(t), testLogger()).Normalize(table)
	require.Len(t, frame.Records, 1)

	rec := frame.Records[0]
	assert.False(t, rec.HasSubmissionDate)
	assert.Equal(t, 0, rec.LeadTime)
	assert.Equal(t, dataset.StatusUndefined, rec.StatusMacro)
	assert.Equal(t, dataset.ComplexityUndefined, rec.Complexity)
	assert.False(t, frame.Has(schema.FieldStatus))
}

func TestNormalizeMappingCarried(t *testing.T) {
	frame := New(testConfig(t), testLogger()).Normalize(fullTable(nil))
	assert.True(t, frame.Has(schema.FieldSubmissionDate))
	assert.True(t, frame.Has(schema.FieldOwner))
	assert.False(t, frame.Has(schema.FieldSLAOverride))
	assert.Empty(t, frame.Records)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want dataset.Status
	}{
		{"Cancelado", dataset.StatusCancelled},
		{"CANCELAMENTO solicitado", dataset.StatusCancelled},
		{"Indeferido", dataset.StatusCompleted},
		{"Deferido", dataset.StatusCompleted},
		{"Finalizado", dataset.StatusCompleted},
		{"Concluído", dataset.StatusCompleted},
		{"Em andamento", dataset.StatusInProgress},
		{"Em análise", dataset.StatusInProgress},
		{"em analise", dataset.StatusInProgress},
		{"Pendente de documentação", dataset.StatusInProgress},
		{"Aguardando assinatura", dataset.StatusOther},
		{"", dataset.StatusOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStatus(tt.raw), "raw %q", tt.raw)
	}
}

func TestClassifyStatusCancelWinsOverProgress(t *testing.T) {
	// Precedence: cancellation beats every later keyword group.
	assert.Equal(t, dataset.StatusCancelled, ClassifyStatus("Cancelado em análise"))
	assert.Equal(t, dataset.StatusCancelled, ClassifyStatus("Cancelamento concluído"))
}

func TestEstimateComplexity(t *testing.T) {
	tests := []struct {
		raw  string
		want dataset.Complexity
	}{
		{"Dispensa de licitação", dataset.ComplexityLow},
		{"Adesão a ata", dataset.ComplexityLow},
		{"Pregão eletrônico", dataset.ComplexityHigh},
		{"Concorrência pública", dataset.ComplexityHigh},
		{"Contratação direta", dataset.ComplexityMedium},
		{"", dataset.ComplexityUndefined},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateComplexity(tt.raw, true), "raw %q", tt.raw)
	}
}

func TestEstimateComplexityColumnAbsent(t *testing.T) {
	assert.Equal(t, dataset.ComplexityUndefined, EstimateComplexity("Pregão", false))
}

func TestEstimateComplexityLowBeatsHigh(t *testing.T) {
	assert.Equal(t, dataset.ComplexityLow, EstimateComplexity("Adesão via pregão", true))
}
