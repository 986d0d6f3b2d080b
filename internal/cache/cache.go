// Package cache persists the enriched table as a SQLite snapshot. The
// snapshot is opportunistic: it is read at startup when its source hash and
// evaluation date still match, rewritten after every full run, and any read
// problem falls back to a full recompute.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pbandeira/solmon/internal/dataset"
)

// Store wraps the snapshot database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Meta describes one snapshot.
type Meta struct {
	SnapshotID     string
	SourceHash     string
	EvaluationDate string // YYYY-MM-DD
	CreatedAt      string
	Rows           int
}

// Open creates or opens the snapshot database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating snapshot schema: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the snapshot database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the stored snapshot with the given frame. The schema mapping
// is not persisted; a restored frame is served read-only, never re-enriched.
func (s *Store) Save(f *dataset.Frame, meta Meta) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM snapshot_meta"); err != nil {
		return fmt.Errorf("clearing meta: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO records (
		row_num, submission_date, has_submission_date, raw_status, raw_type,
		reference_id, progress_log, owner, org_unit, group_name, raw_sla_override,
		lead_time, status_macro, has_reference_id, has_progress_log, complexity,
		type_simplified, sla_target, sla_overridden, breached, severe_breach,
		sla_margin, aging_bucket, very_old, sla_category,
		risk_score, risk_category, time_risk, operational_risk, governance_risk, risk_dimension
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range f.Records {
		_, err := stmt.Exec(
			r.Row, r.SubmissionDate.Format(time.RFC3339), b(r.HasSubmissionDate),
			r.RawStatus, r.RawType, r.ReferenceID, r.ProgressLog, r.Owner,
			r.OrgUnit, r.Group, r.RawSLAOverride,
			r.LeadTime, string(r.StatusMacro), b(r.HasReferenceID), b(r.HasProgressLog), string(r.Complexity),
			string(r.TypeSimplified), r.SLATarget, b(r.SLAOverridden), b(r.Breached), b(r.SevereBreach),
			r.SLAMargin, string(r.AgingBucket), b(r.VeryOld), string(r.SLACategory),
			r.RiskScore, string(r.RiskCategory), b(r.TimeRisk), b(r.OperationalRisk), b(r.GovernanceRisk), string(r.RiskDimension),
		)
		if err != nil {
			return fmt.Errorf("inserting record %d: %w", r.Row, err)
		}
	}

	meta.Rows = len(f.Records)
	if meta.CreatedAt == "" {
		meta.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	for key, value := range map[string]string{
		"snapshot_id":     meta.SnapshotID,
		"source_hash":     meta.SourceHash,
		"evaluation_date": meta.EvaluationDate,
		"created_at":      meta.CreatedAt,
		"rows":            fmt.Sprintf("%d", meta.Rows),
	} {
		if _, err := tx.Exec("INSERT INTO snapshot_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("writing meta %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// LoadMeta reads the snapshot metadata, sql.ErrNoRows-free: an empty snapshot
// returns zero-valued meta and no error.
func (s *Store) LoadMeta() (Meta, error) {
	rows, err := s.conn.Query("SELECT key, value FROM snapshot_meta")
	if err != nil {
		return Meta{}, fmt.Errorf("reading snapshot meta: %w", err)
	}
	defer rows.Close()

	var meta Meta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, err
		}
		switch key {
		case "snapshot_id":
			meta.SnapshotID = value
		case "source_hash":
			meta.SourceHash = value
		case "evaluation_date":
			meta.EvaluationDate = value
		case "created_at":
			meta.CreatedAt = value
		case "rows":
			fmt.Sscanf(value, "%d", &meta.Rows)
		}
	}
	return meta, rows.Err()
}

// Load restores the stored frame.
func (s *Store) Load() (*dataset.Frame, Meta, error) {
	meta, err := s.LoadMeta()
	if err != nil {
		return nil, Meta{}, err
	}

	rows, err := s.conn.Query(`SELECT
		row_num, submission_date, has_submission_date, raw_status, raw_type,
		reference_id, progress_log, owner, org_unit, group_name, raw_sla_override,
		lead_time, status_macro, has_reference_id, has_progress_log, complexity,
		type_simplified, sla_target, sla_overridden, breached, severe_breach,
		sla_margin, aging_bucket, very_old, sla_category,
		risk_score, risk_category, time_risk, operational_risk, governance_risk, risk_dimension
	FROM records ORDER BY row_num`)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("reading records: %w", err)
	}
	defer rows.Close()

	frame := &dataset.Frame{}
	for rows.Next() {
		var (
			r                                                        dataset.Record
			submitted                                                string
			hasDate, hasRef, hasLog, overridden                      int
			breached, severe, veryOld, timeRisk, opRisk, govRisk     int
			status, complexity, reqType, aging, slaCat, riskCat, dim string
		)
		if err := rows.Scan(
			&r.Row, &submitted, &hasDate, &r.RawStatus, &r.RawType,
			&r.ReferenceID, &r.ProgressLog, &r.Owner, &r.OrgUnit, &r.Group, &r.RawSLAOverride,
			&r.LeadTime, &status, &hasRef, &hasLog, &complexity,
			&reqType, &r.SLATarget, &overridden, &breached, &severe,
			&r.SLAMargin, &aging, &veryOld, &slaCat,
			&r.RiskScore, &riskCat, &timeRisk, &opRisk, &govRisk, &dim,
		); err != nil {
			return nil, Meta{}, fmt.Errorf("scanning record: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, submitted); err == nil {
			r.SubmissionDate = t
		}
		r.HasSubmissionDate = hasDate != 0
		r.StatusMacro = dataset.Status(status)
		r.HasReferenceID = hasRef != 0
		r.HasProgressLog = hasLog != 0
		r.Complexity = dataset.Complexity(complexity)
		r.TypeSimplified = dataset.RequestType(reqType)
		r.SLAOverridden = overridden != 0
		r.Breached = breached != 0
		r.SevereBreach = severe != 0
		r.AgingBucket = dataset.AgingBucket(aging)
		r.VeryOld = veryOld != 0
		r.SLACategory = dataset.SLACategory(slaCat)
		r.RiskCategory = dataset.RiskCategory(riskCat)
		r.TimeRisk = timeRisk != 0
		r.OperationalRisk = opRisk != 0
		r.GovernanceRisk = govRisk != 0
		r.RiskDimension = dataset.RiskDimension(dim)

		frame.Records = append(frame.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, Meta{}, err
	}

	if len(frame.Records) != meta.Rows {
		return nil, Meta{}, fmt.Errorf("snapshot row count mismatch: meta says %d, found %d", meta.Rows, len(frame.Records))
	}
	return frame, meta, nil
}

func b(v bool) int {
	if v {
		return 1
	}
	return 0
}
