package cache

import (
	"database/sql"
	"fmt"
)

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of snapshot schema migrations. Append new
// migrations with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial snapshot schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS snapshot_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    row_num INTEGER PRIMARY KEY,
    submission_date TEXT,
    has_submission_date INTEGER DEFAULT 0,
    raw_status TEXT,
    raw_type TEXT,
    reference_id TEXT,
    progress_log TEXT,
    owner TEXT,
    org_unit TEXT,
    group_name TEXT,
    raw_sla_override TEXT,
    lead_time INTEGER DEFAULT 0,
    status_macro TEXT,
    has_reference_id INTEGER DEFAULT 0,
    has_progress_log INTEGER DEFAULT 0,
    complexity TEXT,
    type_simplified TEXT,
    sla_target REAL DEFAULT 0,
    sla_overridden INTEGER DEFAULT 0,
    breached INTEGER DEFAULT 0,
    severe_breach INTEGER DEFAULT 0,
    sla_margin INTEGER DEFAULT 0,
    aging_bucket TEXT,
    very_old INTEGER DEFAULT 0,
    sla_category TEXT,
    risk_score INTEGER DEFAULT 0,
    risk_category TEXT,
    time_risk INTEGER DEFAULT 0,
    operational_risk INTEGER DEFAULT 0,
    governance_risk INTEGER DEFAULT 0,
    risk_dimension TEXT
);

CREATE INDEX IF NOT EXISTS idx_records_lead_time ON records(lead_time);
CREATE INDEX IF NOT EXISTS idx_records_risk_score ON records(risk_score);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate brings the snapshot schema up to the latest version, tracked with
// PRAGMA user_version.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// Set user_version outside the transaction (modernc/sqlite requirement).
		// Safe: if we crash here, the idempotent DDL lets the migration re-run.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
