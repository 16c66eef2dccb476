package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
)

// The schema is shared by every backend, so it sticks to types DuckDB and SQLite both accept.
// Instants are stored as unix nanoseconds.

const OffenseJournalSchema = `
	CREATE TABLE IF NOT EXISTS offense_journal (
		id VARCHAR NOT NULL PRIMARY KEY,
		resource_id VARCHAR NOT NULL,
		resource_kind VARCHAR NOT NULL,
		node VARCHAR,
		site VARCHAR,
		region VARCHAR,
		kind VARCHAR NOT NULL,
		magnitude DOUBLE NOT NULL,
		unit VARCHAR,
		detected_at BIGINT NOT NULL,
		evidence VARCHAR,
		attributes VARCHAR,
		recorded_at BIGINT NOT NULL
	);
`

const AuditTrailSchema = `
	CREATE TABLE IF NOT EXISTS audit_trail (
		seq BIGINT NOT NULL PRIMARY KEY,
		ts BIGINT NOT NULL,
		phase VARCHAR NOT NULL,
		case_id VARCHAR NOT NULL,
		action_id VARCHAR NOT NULL,
		resource_id VARCHAR NOT NULL,
		action VARCHAR NOT NULL,
		mode VARCHAR NOT NULL,
		offense_ids VARCHAR,
		result VARCHAR,
		note VARCHAR
	);
`

const SavingsLedgerSchema = `
	CREATE TABLE IF NOT EXISTS savings_ledger (
		action_id VARCHAR NOT NULL PRIMARY KEY,
		case_id VARCHAR NOT NULL,
		resource_id VARCHAR NOT NULL,
		action VARCHAR NOT NULL,
		amount DOUBLE NOT NULL,
		currency VARCHAR NOT NULL,
		recorded_at BIGINT NOT NULL
	);
`

const CycleRunsSchema = `
	CREATE TABLE IF NOT EXISTS cycle_runs (
		id VARCHAR NOT NULL PRIMARY KEY,
		mode VARCHAR NOT NULL,
		started_at BIGINT NOT NULL,
		finished_at BIGINT NOT NULL,
		cases_formed INTEGER NOT NULL,
		actions_applied INTEGER NOT NULL,
		actions_failed INTEGER NOT NULL,
		actions_skipped INTEGER NOT NULL,
		total_savings DOUBLE NOT NULL,
		currency VARCHAR,
		errors VARCHAR
	);
`

var bootQueries = []string{
	OffenseJournalSchema,
	AuditTrailSchema,
	SavingsLedgerSchema,
	CycleRunsSchema,
}

// Boot creates the schema through a raw driver connection.
func Boot(ctx context.Context, exec driver.ExecerContext) error {
	for _, query := range bootQueries {
		if _, err := exec.ExecContext(ctx, query, nil); err != nil {
			return fmt.Errorf("boot schema: %w", err)
		}
	}
	return nil
}

// BootDB creates the schema through an open database handle.
func BootDB(ctx context.Context, db *sql.DB) error {
	for _, query := range bootQueries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("boot schema: %w", err)
		}
	}
	return nil
}
