package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	schema "github.com/de-tools/linkmind/pkg/store/sql"
	"github.com/marcboeker/go-duckdb/v2"
)

type Settings struct {
	DbPath  string
	Threads int
}

// NewDB opens an embedded DuckDB database and creates the LinkMind schema on every new connection.
func NewDB(settings Settings) (*sql.DB, error) {
	threads := settings.Threads
	if threads <= 0 {
		threads = 4
	}
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=%d", settings.DbPath, threads), func(exec driver.ExecerContext) error {
		return schema.Boot(context.Background(), exec)
	})
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
