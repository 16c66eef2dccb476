package duckdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_BootsSchema(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "duckdb-test-*")
	require.NoError(t, err)

	defer func() {
		err := os.RemoveAll(tmpDir)
		if err != nil {
			t.Errorf("failed to cleanup test directory: %v", err)
		}
	}()

	dbPath := filepath.Join(tmpDir, "linkmind.db")
	db, err := NewDB(Settings{
		DbPath: dbPath,
	})
	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		err := db.Close()
		if err != nil {
			t.Errorf("failed to close database connection: %v", err)
		}
	}()

	_, err = db.Exec(
		`INSERT INTO savings_ledger (action_id, case_id, resource_id, action, amount, currency, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"action-001", "case-001", "DJELFA_GHOST_LINK", "revoke_license", 3400.0, "USD", int64(1),
	)
	require.NoError(t, err)

	for _, table := range []string{"offense_journal", "audit_trail", "savings_ledger", "cycle_runs"} {
		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		require.NoError(t, err, table)
	}

	var amount float64
	err = db.QueryRow("SELECT amount FROM savings_ledger WHERE action_id = ?", "action-001").Scan(&amount)
	require.NoError(t, err)
	assert.Equal(t, 3400.0, amount)
}
