// Package sla classifies each record's request type and derives its target
// turnaround, breach flags, margin and aging bucket. The stage never fails:
// missing inputs degrade to defaults and are logged.
package sla

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pbandeira/solmon/internal/config"
	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/schema"
)

// veryOldDays is fixed and independent of the aging bucket boundaries; both
// using 365 is intentional.
const veryOldDays = 365

// Engine applies the SLA rules.
type Engine struct {
	cfg *config.Settings
	log *logrus.Logger
}

// New creates an SLA engine bound to the given settings.
func New(cfg *config.Settings, log *logrus.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// Classify simplifies raw request-type text. Match order matters: "ata de
// registro" must win before the bare "registro" substring.
func Classify(raw string) dataset.RequestType {
	t := strings.ToLower(raw)
	switch {
	case strings.Contains(t, "adesão") || strings.Contains(t, "adesao"):
		return dataset.TypeAdesao
	case strings.Contains(t, "ata de registro") || strings.Contains(t, "arp"):
		return dataset.TypeARP
	case strings.Contains(t, "registro"):
		return dataset.TypeRegistro
	default:
		return dataset.TypeOutros
	}
}

// Apply returns a new frame with the SLA fields filled in. The input frame is
// left untouched. Applying twice yields identical values: every derived field
// is recomputed from source fields, never accumulated.
func (e *Engine) Apply(in *dataset.Frame) *dataset.Frame {
	out := in.Clone()

	if !out.Has(schema.FieldRequestType) {
		e.log.WithField("field", schema.FieldRequestType).
			Warn("request type column not found; all records classified as outros with base target")
	}
	overrides := out.Has(schema.FieldSLAOverride)

	for i := range out.Records {
		rec := &out.Records[i]

		rec.TypeSimplified = Classify(rec.RawType)

		mult, ok := e.cfg.SLA.Multipliers[string(rec.TypeSimplified)]
		if !ok {
			mult = 1
		}
		rec.SLATarget = e.cfg.SLA.BaseDays * mult
		rec.SLAOverridden = false
		if overrides && rec.RawSLAOverride != "" {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(rec.RawSLAOverride, ",", "."), 64); err == nil && v > 0 {
				rec.SLATarget = v
				rec.SLAOverridden = true
			} else {
				e.log.WithFields(logrus.Fields{"row": rec.Row, "value": rec.RawSLAOverride}).
					Warn("ignoring non-numeric SLA override")
			}
		}

		rec.Breached = float64(rec.LeadTime) > rec.SLATarget
		rec.SevereBreach = rec.LeadTime > e.cfg.SLA.SevereBreachDays
		rec.SLAMargin = int(rec.SLATarget) - rec.LeadTime
		rec.AgingBucket = dataset.BucketFor(rec.LeadTime)
		rec.VeryOld = rec.LeadTime > veryOldDays

		switch {
		case rec.SevereBreach:
			rec.SLACategory = dataset.SLASevere
		case rec.Breached:
			rec.SLACategory = dataset.SLABreached
		default:
			rec.SLACategory = dataset.SLAOnTrack
		}
	}

	e.log.WithField("rows", len(out.Records)).Info("SLA rules applied")
	return out
}
