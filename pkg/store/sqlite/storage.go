package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	schema "github.com/de-tools/linkmind/pkg/store/sql"
	_ "modernc.org/sqlite"
)

type Settings struct {
	DbPath string
}

// NewDB opens a pure-Go SQLite database and creates the LinkMind schema. SQLite allows a single
// writer, so the pool is capped at one connection; this also keeps ":memory:" databases shared.
func NewDB(ctx context.Context, settings Settings) (*sql.DB, error) {
	path := settings.DbPath
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := schema.BootDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
