package savings

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/de-tools/linkmind/pkg/models/store"
	storesql "github.com/de-tools/linkmind/pkg/store/sql"
	"github.com/rs/zerolog"
)

// Store is the financial ledger of recovered value, one record per applied action.
type Store interface {
	Add(ctx context.Context, record store.SavingsRecord) error
	List(ctx context.Context) ([]store.SavingsRecord, error)
	// Totals sums recovered value per currency.
	Totals(ctx context.Context) (map[string]float64, error)
}

type sqlStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &sqlStore{db: db}, nil
}

// Add records the value of an action once; recording the same action again is a no-op.
func (s *sqlStore) Add(ctx context.Context, record store.SavingsRecord) error {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}
	_, err := storesql.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO savings_ledger (action_id, case_id, resource_id, action, amount, currency, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (action_id) DO NOTHING`,
		record.ActionID,
		record.CaseID,
		record.ResourceID,
		record.Action,
		record.Amount,
		record.Currency,
		record.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert savings record: %w", err)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context) ([]store.SavingsRecord, error) {
	logger := zerolog.Ctx(ctx)
	rows, err := storesql.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT action_id, case_id, resource_id, action, amount, currency, recorded_at
		FROM savings_ledger
		ORDER BY recorded_at, action_id`)
	if err != nil {
		return nil, fmt.Errorf("query savings ledger: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close savings rows")
		}
	}(rows)

	records := make([]store.SavingsRecord, 0)
	for rows.Next() {
		var (
			r  store.SavingsRecord
			at int64
		)
		if err := rows.Scan(&r.ActionID, &r.CaseID, &r.ResourceID, &r.Action, &r.Amount, &r.Currency, &at); err != nil {
			return nil, err
		}
		r.RecordedAt = time.Unix(0, at).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *sqlStore) Totals(ctx context.Context) (map[string]float64, error) {
	rows, err := storesql.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT currency, SUM(amount) FROM savings_ledger GROUP BY currency`)
	if err != nil {
		return nil, fmt.Errorf("sum savings ledger: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var (
			currency string
			total    float64
		)
		if err := rows.Scan(&currency, &total); err != nil {
			return nil, err
		}
		totals[currency] = total
	}
	return totals, rows.Err()
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]store.SavingsRecord
}

func NewMemoryStore() Store {
	return &memoryStore{records: make(map[string]store.SavingsRecord)}
}

func (m *memoryStore) Add(_ context.Context, record store.SavingsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ActionID]; ok {
		return nil
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}
	m.records[record.ActionID] = record
	return nil
}

func (m *memoryStore) List(_ context.Context) ([]store.SavingsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.SavingsRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].ActionID < out[j].ActionID
	})
	return out, nil
}

func (m *memoryStore) Totals(_ context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[string]float64)
	for _, r := range m.records {
		totals[r.Currency] += r.Amount
	}
	return totals, nil
}
