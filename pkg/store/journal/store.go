package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/linkmind/pkg/models/store"
	storesql "github.com/de-tools/linkmind/pkg/store/sql"
	"github.com/rs/zerolog"
)

// Store is the append-only journal of accepted offenses. It is replayed on startup to rebuild
// the ledger.
type Store interface {
	Append(ctx context.Context, records []store.OffenseRecord) error
	List(ctx context.Context, since time.Time) ([]store.OffenseRecord, error)
	Count(ctx context.Context) (int64, error)
}

type journalStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &journalStore{
		db: db,
	}, nil
}

// Append inserts records; records whose id is already journaled are ignored.
func (j *journalStore) Append(ctx context.Context, records []store.OffenseRecord) error {
	if len(records) == 0 {
		return nil
	}

	return storesql.InTransaction(ctx, j.db, func(ctx context.Context) error {
		conn := storesql.Conn(ctx, j.db)
		query := `
			INSERT INTO offense_journal (
				id, resource_id, resource_kind, node, site, region, kind,
				magnitude, unit, detected_at, evidence, attributes, recorded_at
			) VALUES (
				?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
			) ON CONFLICT (id) DO NOTHING`

		for _, record := range records {
			attributes, err := json.Marshal(record.Attributes)
			if err != nil {
				return fmt.Errorf("marshal attributes: %w", err)
			}
			recordedAt := record.RecordedAt
			if recordedAt.IsZero() {
				recordedAt = time.Now()
			}

			_, err = conn.ExecContext(ctx, query,
				record.ID,
				record.ResourceID,
				record.ResourceKind,
				record.Node,
				record.Site,
				record.Region,
				record.Kind,
				record.Magnitude,
				record.Unit,
				record.DetectedAt.UnixNano(),
				record.Evidence,
				string(attributes),
				recordedAt.UnixNano(),
			)
			if err != nil {
				return fmt.Errorf("insert offense %s: %w", record.ID, err)
			}
		}
		return nil
	})
}

// List returns journaled offenses detected at or after since, oldest first.
func (j *journalStore) List(ctx context.Context, since time.Time) ([]store.OffenseRecord, error) {
	logger := zerolog.Ctx(ctx)
	query := `
		SELECT id, resource_id, resource_kind, node, site, region, kind,
			magnitude, unit, detected_at, evidence, attributes, recorded_at
		FROM offense_journal
		WHERE detected_at >= ?
		ORDER BY detected_at, id
	`
	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}
	rows, err := storesql.Conn(ctx, j.db).QueryContext(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("query offense journal: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close journal rows")
		}
	}(rows)

	records := make([]store.OffenseRecord, 0)
	for rows.Next() {
		var (
			r                       store.OffenseRecord
			node, site, region      sql.NullString
			unit, evidence, attrRaw sql.NullString
			detectedAt, recordedAt  int64
		)
		if err := rows.Scan(&r.ID, &r.ResourceID, &r.ResourceKind, &node, &site, &region, &r.Kind,
			&r.Magnitude, &unit, &detectedAt, &evidence, &attrRaw, &recordedAt); err != nil {
			return nil, err
		}
		r.Node, r.Site, r.Region = node.String, site.String, region.String
		r.Unit, r.Evidence = unit.String, evidence.String
		r.DetectedAt = time.Unix(0, detectedAt).UTC()
		r.RecordedAt = time.Unix(0, recordedAt).UTC()
		if attrRaw.Valid && attrRaw.String != "" && attrRaw.String != "null" {
			if err := json.Unmarshal([]byte(attrRaw.String), &r.Attributes); err != nil {
				logger.Warn().Err(err).Str("offense", r.ID).Msg("dropping unreadable offense attributes")
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (j *journalStore) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := storesql.Conn(ctx, j.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM offense_journal`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count offense journal: %w", err)
	}
	return total, nil
}
