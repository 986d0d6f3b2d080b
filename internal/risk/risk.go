// Package risk computes the weighted composite risk score per record and the
// dominant risk dimension. Scoring degrades rather than fails: a condition
// whose input column is missing evaluates false for every record, which
// undercounts risk on incomplete schemas. Operators are expected to know this;
// every degraded condition is logged at warning level.
package risk

import (
	"github.com/sirupsen/logrus"

	"github.com/pbandeira/solmon/internal/config"
	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/schema"
)

// Category boundaries are deliberate constants, not configuration: the weights
// are tunable, the buckets are not. Lower bucket is inclusive.
const (
	lowMax      = 20
	moderateMax = 50
)

// Engine scores records against the configured condition weights.
type Engine struct {
	cfg *config.Settings
	log *logrus.Logger
}

// New creates a risk engine bound to the given settings.
func New(cfg *config.Settings, log *logrus.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// conditions holds the five boolean inputs for one record.
type conditions struct {
	breached     bool
	cancelled    bool
	extremeAge   bool
	missingLog   bool
	missingOwner bool
}

// Score returns a new frame with risk fields filled in. Records that fail
// validation are defaulted individually (score 0, category undefined, flags
// false); one malformed row never blanks the rest of the table.
func (e *Engine) Score(in *dataset.Frame) *dataset.Frame {
	out := in.Clone()

	// Column presence gates. The progress-log condition falls back to the
	// reference column when the log column is absent.
	logField := schema.FieldProgressLog
	haveLog := out.Has(logField)
	if !haveLog && out.Has(schema.FieldReferenceID) {
		logField = schema.FieldReferenceID
		haveLog = true
	}
	if !haveLog {
		e.log.WithField("condition", config.WeightMissingLog).
			Warn("no progress-log or reference column; missing_log condition disabled")
	}
	haveOwner := out.Has(schema.FieldOwner)
	if !haveOwner {
		e.log.WithField("condition", config.WeightMissingOwner).
			Warn("owner column not found; missing_owner condition disabled")
	}

	defaulted := 0
	for i := range out.Records {
		rec := &out.Records[i]

		if !e.validate(rec) {
			defaultRecord(rec)
			defaulted++
			continue
		}

		c := conditions{
			breached:   rec.Breached,
			cancelled:  rec.StatusMacro == dataset.StatusCancelled,
			extremeAge: rec.LeadTime > e.cfg.Risk.ExtremeAgeDays,
		}
		if haveOwner {
			c.missingOwner = rec.Owner == ""
		}
		if haveLog {
			if logField == schema.FieldProgressLog {
				c.missingLog = !rec.HasProgressLog
			} else {
				c.missingLog = !rec.HasReferenceID
			}
		}

		e.apply(rec, c)
	}

	if defaulted > 0 {
		e.log.WithField("records", defaulted).
			Warn("risk defaults applied to malformed records")
	}
	e.log.WithField("rows", len(out.Records)).Info("risk scores computed")
	return out
}

// validate is the explicit degrade-vs-score branch: a record whose inputs are
// inconsistent gets the defined default row instead of a score.
func (e *Engine) validate(rec *dataset.Record) bool {
	if rec.LeadTime < 0 {
		e.log.WithFields(logrus.Fields{"row": rec.Row, "lead_time": rec.LeadTime}).
			Warn("negative lead time; defaulting risk for record")
		return false
	}
	if rec.StatusMacro == "" {
		e.log.WithField("row", rec.Row).
			Warn("record missing status_macro; defaulting risk for record")
		return false
	}
	return true
}

func (e *Engine) apply(rec *dataset.Record, c conditions) {
	weights := e.cfg.Risk.Weights

	score := 0
	if c.breached {
		score += weights[config.WeightBreached]
	}
	if c.cancelled {
		score += weights[config.WeightCancelled]
	}
	if c.extremeAge {
		score += weights[config.WeightExtremeAge]
	}
	if c.missingLog {
		score += weights[config.WeightMissingLog]
	}
	if c.missingOwner {
		score += weights[config.WeightMissingOwner]
	}

	rec.RiskScore = score
	rec.RiskCategory = Categorize(score)

	rec.TimeRisk = c.breached || c.extremeAge
	rec.OperationalRisk = c.missingOwner || c.missingLog
	rec.GovernanceRisk = c.cancelled
	rec.RiskDimension = dominantDimension(rec.TimeRisk, rec.OperationalRisk, rec.GovernanceRisk)
}

// Categorize buckets a score: <=20 low, <=50 moderate, else high.
func Categorize(score int) dataset.RiskCategory {
	switch {
	case score <= lowMax:
		return dataset.RiskLow
	case score <= moderateMax:
		return dataset.RiskModerate
	default:
		return dataset.RiskHigh
	}
}

// dominantDimension needs no precedence tie-break: mixed absorbs every
// multi-group case.
func dominantDimension(timeRisk, operational, governance bool) dataset.RiskDimension {
	fired := 0
	dim := dataset.DimensionNone
	if timeRisk {
		fired++
		dim = dataset.DimensionTime
	}
	if operational {
		fired++
		dim = dataset.DimensionOperational
	}
	if governance {
		fired++
		dim = dataset.DimensionGovernance
	}
	switch fired {
	case 0:
		return dataset.DimensionNone
	case 1:
		return dim
	default:
		return dataset.DimensionMixed
	}
}

func defaultRecord(rec *dataset.Record) {
	rec.RiskScore = 0
	rec.RiskCategory = dataset.RiskUndefined
	rec.TimeRisk = false
	rec.OperationalRisk = false
	rec.GovernanceRisk = false
	rec.RiskDimension = dataset.DimensionNone
}
