package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/linkmind/pkg/models/store"
	storesql "github.com/de-tools/linkmind/pkg/store/sql"
)

// Store keeps the history of remediation cycles.
type Store interface {
	SaveRun(ctx context.Context, run store.CycleRun) error
	ListRuns(ctx context.Context, limit int) ([]store.CycleRun, error)
}

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{
		db: db,
	}, nil
}

func (s *defaultStore) SaveRun(ctx context.Context, run store.CycleRun) error {
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("marshal cycle errors: %w", err)
	}
	_, err = storesql.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO cycle_runs (
			id, mode, started_at, finished_at, cases_formed, actions_applied,
			actions_failed, actions_skipped, total_savings, currency, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Mode,
		run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(),
		run.CasesFormed,
		run.ActionsApplied,
		run.ActionsFailed,
		run.ActionsSkipped,
		run.TotalSavings,
		run.Currency,
		string(errs),
	)
	if err != nil {
		return fmt.Errorf("insert cycle run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *defaultStore) ListRuns(ctx context.Context, limit int) ([]store.CycleRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := storesql.Conn(ctx, s.db).QueryContext(ctx, fmt.Sprintf(`
		SELECT id, mode, started_at, finished_at, cases_formed, actions_applied,
			actions_failed, actions_skipped, total_savings, currency, errors
		FROM cycle_runs
		ORDER BY started_at DESC
		LIMIT %d`, limit))
	if err != nil {
		return nil, fmt.Errorf("query cycle runs: %w", err)
	}
	defer rows.Close()

	runs := make([]store.CycleRun, 0)
	for rows.Next() {
		var (
			r                  store.CycleRun
			started, finished  int64
			currency, errsJSON sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Mode, &started, &finished, &r.CasesFormed, &r.ActionsApplied,
			&r.ActionsFailed, &r.ActionsSkipped, &r.TotalSavings, &currency, &errsJSON); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		r.Currency = currency.String
		if errsJSON.Valid && errsJSON.String != "" {
			_ = json.Unmarshal([]byte(errsJSON.String), &r.Errors)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
