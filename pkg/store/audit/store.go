package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/models/store"
	storesql "github.com/de-tools/linkmind/pkg/store/sql"
	"github.com/rs/zerolog"
)

// Filter narrows a listing of the trail. Zero fields match everything.
type Filter struct {
	CaseID     string
	ResourceID string
	ActionID   string
	Phase      string
	Result     string
	Mode       string
	// Limit keeps the most recent entries when positive.
	Limit int
}

func (f Filter) matches(r store.AuditRecord) bool {
	return (f.CaseID == "" || r.CaseID == f.CaseID) &&
		(f.ResourceID == "" || r.ResourceID == f.ResourceID) &&
		(f.ActionID == "" || r.ActionID == f.ActionID) &&
		(f.Phase == "" || r.Phase == f.Phase) &&
		(f.Result == "" || r.Result == f.Result) &&
		(f.Mode == "" || r.Mode == f.Mode)
}

// Store is the append-only audit trail. Entries are never updated or deleted; Append assigns
// a strictly increasing sequence number.
type Store interface {
	Append(ctx context.Context, record store.AuditRecord) (store.AuditRecord, error)
	List(ctx context.Context, filter Filter) ([]store.AuditRecord, error)
}

type sqlStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) Append(ctx context.Context, record store.AuditRecord) (store.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	offenseIDs, err := json.Marshal(record.OffenseIDs)
	if err != nil {
		return store.AuditRecord{}, fmt.Errorf("marshal offense ids: %w", err)
	}

	err = storesql.InTransaction(ctx, s.db, func(ctx context.Context) error {
		conn := storesql.Conn(ctx, s.db)
		var last int64
		if err := conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM audit_trail`).Scan(&last); err != nil {
			return fmt.Errorf("read audit sequence: %w", err)
		}
		record.Seq = last + 1

		_, err := conn.ExecContext(ctx, `
			INSERT INTO audit_trail (
				seq, ts, phase, case_id, action_id, resource_id, action, mode, offense_ids, result, note
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.Seq,
			record.Timestamp.UnixNano(),
			record.Phase,
			record.CaseID,
			record.ActionID,
			record.ResourceID,
			record.Action,
			record.Mode,
			string(offenseIDs),
			record.Result,
			record.Note,
		)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.AuditRecord{}, err
	}
	return record, nil
}

func (s *sqlStore) List(ctx context.Context, filter Filter) ([]store.AuditRecord, error) {
	logger := zerolog.Ctx(ctx)

	var (
		where []string
		args  []any
	)
	for _, c := range []struct {
		column string
		value  string
	}{
		{"case_id", filter.CaseID},
		{"resource_id", filter.ResourceID},
		{"action_id", filter.ActionID},
		{"phase", filter.Phase},
		{"result", filter.Result},
		{"mode", filter.Mode},
	} {
		if c.value != "" {
			where = append(where, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	query := `SELECT seq, ts, phase, case_id, action_id, resource_id, action, mode, offense_ids, result, note FROM audit_trail`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := storesql.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close audit rows")
		}
	}(rows)

	records := make([]store.AuditRecord, 0)
	for rows.Next() {
		var (
			r                        store.AuditRecord
			ts                       int64
			offenseIDs, result, note sql.NullString
		)
		if err := rows.Scan(&r.Seq, &ts, &r.Phase, &r.CaseID, &r.ActionID, &r.ResourceID,
			&r.Action, &r.Mode, &offenseIDs, &result, &note); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		r.Result, r.Note = result.String, note.String
		if offenseIDs.Valid && offenseIDs.String != "" {
			if err := json.Unmarshal([]byte(offenseIDs.String), &r.OffenseIDs); err != nil {
				return nil, fmt.Errorf("decode offense ids of entry %d: %w", r.Seq, err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// oldest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

type memoryStore struct {
	mu      sync.RWMutex
	records []store.AuditRecord
}

// NewMemoryStore keeps the trail in process memory, for stateless runs and tests.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (m *memoryStore) Append(_ context.Context, record store.AuditRecord) (store.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.Seq = int64(len(m.records) + 1)
	record.OffenseIDs = append([]string(nil), record.OffenseIDs...)
	m.records = append(m.records, record)
	return record, nil
}

func (m *memoryStore) List(_ context.Context, filter Filter) ([]store.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.AuditRecord, 0)
	for _, r := range m.records {
		if filter.matches(r) {
			r.OffenseIDs = append([]string(nil), r.OffenseIDs...)
			out = append(out, r)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}
