// Package pipeline runs the staged enrichment end to end: read the source,
// normalize, apply SLA rules, score risk, snapshot. Stages are strictly
// sequential and each works on its own copy of the table.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pbandeira/solmon/internal/cache"
	"github.com/pbandeira/solmon/internal/config"
	"github.com/pbandeira/solmon/internal/dataset"
	"github.com/pbandeira/solmon/internal/etl"
	"github.com/pbandeira/solmon/internal/risk"
	"github.com/pbandeira/solmon/internal/sla"
)

// StepResult holds the outcome of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
}

// Result holds the outputs of a full pipeline run.
type Result struct {
	RunID       string
	Frame       *dataset.Frame
	Table       *dataset.Table // nil when served from the snapshot
	SourceHash  string
	EvaluatedAt time.Time
	FromCache   bool
	Steps       []StepResult
}

// Pipeline wires the stages together under one settings value.
type Pipeline struct {
	cfg *config.Settings
	log *logrus.Logger
}

// New creates a pipeline bound to the given settings.
func New(cfg *config.Settings, log *logrus.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

// Run executes the pipeline. The only fatal error is an unreadable source
// file; everything after that degrades with warnings. When refresh is false
// and a snapshot matches the current source content and evaluation day, the
// snapshot is served instead of recomputing.
func (p *Pipeline) Run(refresh bool) (*Result, error) {
	inputPath := p.cfg.General.InputPath

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("reading source file %s: %w", inputPath, err)
	}

	sum := sha256.Sum256(data)
	sourceHash := hex.EncodeToString(sum[:])
	evalDate := p.cfg.EvaluationDate()

	r := &Result{
		RunID:       uuid.NewString(),
		SourceHash:  sourceHash,
		EvaluatedAt: evalDate,
	}

	if p.cfg.CacheOn() && !refresh {
		if frame, ok := p.trySnapshot(sourceHash, evalDate); ok {
			r.Frame = frame
			r.FromCache = true
			r.Steps = append(r.Steps, StepResult{
				Name:    "Snapshot",
				Summary: fmt.Sprintf("Restored %d records from snapshot", len(frame.Records)),
			})
			return r, nil
		}
	}

	p.log.WithField("path", inputPath).Info("loading source base")
	table, err := dataset.Read(inputPath, data)
	if err != nil {
		return nil, fmt.Errorf("parsing source file %s: %w", inputPath, err)
	}
	r.Table = table
	r.Steps = append(r.Steps, StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("Read %d rows, %d columns", table.Len(), len(table.Columns)),
	})

	frame := etl.New(p.cfg, p.log).Normalize(table)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Normalize",
		Summary: fmt.Sprintf("Built %d records, %d fields resolved", len(frame.Records), len(frame.Mapping)),
	})

	frame = sla.New(p.cfg, p.log).Apply(frame)
	breached := 0
	for _, rec := range frame.Records {
		if rec.Breached {
			breached++
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "SLA",
		Summary: fmt.Sprintf("%d of %d records past target", breached, len(frame.Records)),
	})

	frame = risk.New(p.cfg, p.log).Score(frame)
	high := 0
	for _, rec := range frame.Records {
		if rec.RiskCategory == dataset.RiskHigh {
			high++
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Risk",
		Summary: fmt.Sprintf("%d of %d records scored high risk", high, len(frame.Records)),
	})

	r.Frame = frame

	if p.cfg.CacheOn() {
		p.saveSnapshot(r)
	}

	return r, nil
}

// trySnapshot restores the snapshot when it matches the current source. Any
// failure is a warning followed by a full recompute, never an error.
func (p *Pipeline) trySnapshot(sourceHash string, evalDate time.Time) (*dataset.Frame, bool) {
	if _, err := os.Stat(p.cfg.CachePath()); err != nil {
		return nil, false
	}

	store, err := cache.Open(p.cfg.CachePath())
	if err != nil {
		p.log.WithError(err).Warn("snapshot unavailable; running full pipeline")
		return nil, false
	}
	defer store.Close()

	frame, meta, err := store.Load()
	if err != nil {
		p.log.WithError(err).Warn("snapshot unreadable; running full pipeline")
		return nil, false
	}
	if meta.SourceHash != sourceHash {
		p.log.Info("source file changed since snapshot; running full pipeline")
		return nil, false
	}
	if meta.EvaluationDate != evalDate.Format("2006-01-02") {
		p.log.Info("snapshot from a previous evaluation day; recomputing lead times")
		return nil, false
	}
	if len(frame.Records) == 0 {
		return nil, false
	}

	p.log.WithFields(logrus.Fields{
		"snapshot": meta.SnapshotID,
		"rows":     meta.Rows,
	}).Info("serving snapshot")
	return frame, true
}

// saveSnapshot rewrites the snapshot after a full run. Failures are warnings:
// the cache is an optimization, never a correctness dependency.
func (p *Pipeline) saveSnapshot(r *Result) {
	store, err := cache.Open(p.cfg.CachePath())
	if err != nil {
		p.log.WithError(err).Warn("cannot open snapshot store; continuing without cache")
		return
	}
	defer store.Close()

	meta := cache.Meta{
		SnapshotID:     r.RunID,
		SourceHash:     r.SourceHash,
		EvaluationDate: r.EvaluatedAt.Format("2006-01-02"),
	}
	if err := store.Save(r.Frame, meta); err != nil {
		p.log.WithError(err).Warn("snapshot save failed; continuing without cache")
		return
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Snapshot",
		Summary: fmt.Sprintf("Saved %d records to %s", len(r.Frame.Records), store.Path()),
	})
}
