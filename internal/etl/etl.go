// Package etl builds the typed working table from the raw spreadsheet: it
// resolves the schema, derives lead time and the macro status, and fills the
// auxiliary enrichment fields. Missing inputs degrade to defaults with a
// warning; the only fatal condition is an unreadable source, handled upstream.
package etl

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbandeira/solmon/internal/config"
	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/schema"
)

// Normalizer turns a raw table into a typed frame.
type Normalizer struct {
	cfg *config.Settings
	log *logrus.Logger
}

// New creates a normalizer bound to the given settings.
func New(cfg *config.Settings, log *logrus.Logger) *Normalizer {
	return &Normalizer{cfg: cfg, log: log}
}

// Normalize resolves the schema and builds one record per input row.
func (n *Normalizer) Normalize(t *dataset.Table) *dataset.Frame {
	mapping := schema.MapColumns(t.Columns)
	frame := &dataset.Frame{Mapping: mapping}

	evalDate := n.cfg.EvaluationDate()
	defaultDate := n.cfg.DefaultDate()

	if !mapping.Has(schema.FieldSubmissionDate) {
		n.log.WithField("field", schema.FieldSubmissionDate).
			Warn("submission date column not found; lead_time set to 0 for all records")
	}
	if !mapping.Has(schema.FieldStatus) {
		n.log.WithField("field", schema.FieldStatus).
			Warn("process situation column not found; status_macro set to undefined")
	}
	if !mapping.Has(schema.FieldRequestType) {
		n.log.WithField("field", schema.FieldRequestType).
			Info("request type column not found; complexity_estimate set to undefined")
	}

	for i := 0; i < t.Len(); i++ {
		rec := dataset.Record{Row: i + 1}

		if col, ok := mapping.Index(schema.FieldSubmissionDate); ok {
			raw := t.Cell(i, col)
			date, parsed := dataset.ParseDate(raw)
			if !parsed {
				if strings.TrimSpace(raw) != "" {
					n.log.WithFields(logrus.Fields{"row": rec.Row, "value": raw}).
						Warn("unparseable submission date; using default date")
				}
				date = defaultDate
			}
			rec.SubmissionDate = date
			rec.HasSubmissionDate = true
			rec.LeadTime = daysBetween(date, evalDate)
		}

		if col, ok := mapping.Index(schema.FieldStatus); ok {
			rec.RawStatus = strings.TrimSpace(t.Cell(i, col))
			rec.StatusMacro = ClassifyStatus(rec.RawStatus)
		} else {
			rec.StatusMacro = dataset.StatusUndefined
		}

		if col, ok := mapping.Index(schema.FieldRequestType); ok {
			rec.RawType = strings.TrimSpace(t.Cell(i, col))
		}
		rec.Complexity = EstimateComplexity(rec.RawType, mapping.Has(schema.FieldRequestType))

		if col, ok := mapping.Index(schema.FieldReferenceID); ok {
			rec.ReferenceID = strings.TrimSpace(t.Cell(i, col))
		}
		rec.HasReferenceID = rec.ReferenceID != ""

		if col, ok := mapping.Index(schema.FieldProgressLog); ok {
			rec.ProgressLog = strings.TrimSpace(t.Cell(i, col))
		}
		rec.HasProgressLog = rec.ProgressLog != ""

		if col, ok := mapping.Index(schema.FieldOwner); ok {
			rec.Owner = strings.TrimSpace(t.Cell(i, col))
		}
		if col, ok := mapping.Index(schema.FieldOrgUnit); ok {
			rec.OrgUnit = strings.TrimSpace(t.Cell(i, col))
		}
		if col, ok := mapping.Index(schema.FieldGroup); ok {
			rec.Group = strings.TrimSpace(t.Cell(i, col))
		}
		if col, ok := mapping.Index(schema.FieldSLAOverride); ok {
			rec.RawSLAOverride = strings.TrimSpace(t.Cell(i, col))
		}

		frame.Records = append(frame.Records, rec)
	}

	n.log.WithFields(logrus.Fields{
		"rows":   len(frame.Records),
		"fields": len(mapping),
	}).Info("base normalized")
	return frame
}

// ClassifyStatus maps free status text to the macro bucket. First match wins;
// "indefer" is listed before "defer" on purpose, both land in completed.
func ClassifyStatus(raw string) dataset.Status {
	txt := strings.ToLower(raw)
	switch {
	case strings.Contains(txt, "cancel"):
		return dataset.StatusCancelled
	case containsAny(txt, "indefer", "defer", "finaliz", "conclu"):
		return dataset.StatusCompleted
	case containsAny(txt, "andamento", "analise", "análise", "pendente"):
		return dataset.StatusInProgress
	default:
		return dataset.StatusOther
	}
}

// EstimateComplexity keyword-classifies the request-type text. Low beats high
// when both keyword sets match, mirroring historical behavior.
func EstimateComplexity(rawType string, columnPresent bool) dataset.Complexity {
	if !columnPresent {
		return dataset.ComplexityUndefined
	}
	t := strings.ToLower(rawType)
	switch {
	case containsAny(t, "dispensa", "adesão", "adesao", "ata de registro", "renovação", "renovacao"):
		return dataset.ComplexityLow
	case containsAny(t, "pregão", "pregao", "concorrência", "concorrencia", "tomada de preços"):
		return dataset.ComplexityHigh
	case strings.TrimSpace(t) == "":
		return dataset.ComplexityUndefined
	default:
		return dataset.ComplexityMedium
	}
}

// daysBetween counts whole days from a submission date to the evaluation day,
// clamped at zero so future-dated rows do not produce negative ages.
func daysBetween(from, to time.Time) int {
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
