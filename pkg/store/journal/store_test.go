package journal

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/linkmind/pkg/models/store"
	"github.com/de-tools/linkmind/pkg/store/duckdb"
	"github.com/de-tools/linkmind/pkg/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupFixtures(t *testing.T) map[string]*fixture {
	duck, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	lite, err := sqlite.NewDB(context.Background(), sqlite.Settings{})
	require.NoError(t, err)

	out := map[string]*fixture{}
	for name, db := range map[string]*sql.DB{"duckdb": duck, "sqlite": lite} {
		s, err := NewStore(db)
		require.NoError(t, err)
		out[name] = &fixture{db: db, store: s}
	}
	t.Cleanup(func() {
		duck.Close()
		lite.Close()
	})
	return out
}

func records() []store.OffenseRecord {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return []store.OffenseRecord{
		{
			ID: "o-2", ResourceID: "P1", ResourceKind: "port", Site: "DJELFA", Region: "CENTER",
			Kind: "zombie_port", Magnitude: 15, Unit: "W", DetectedAt: base.Add(time.Hour),
		},
		{
			ID: "o-1", ResourceID: "L1", ResourceKind: "license", Node: "NE-01", Site: "DJELFA", Region: "CENTER",
			Kind: "license_hoarding", Magnitude: 340, Unit: "Mbps", DetectedAt: base, Evidence: "reserved 400",
			Attributes: map[string]string{"reserved_capacity_mbps": "400"},
		},
	}
}

func TestStore_AppendAndList(t *testing.T) {
	for name, f := range setupFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, f.store.Append(ctx, records()))

			got, err := f.store.List(ctx, time.Time{})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "o-1", got[0].ID, "oldest first")
			assert.Equal(t, "NE-01", got[0].Node)
			assert.Equal(t, map[string]string{"reserved_capacity_mbps": "400"}, got[0].Attributes)
			assert.True(t, got[0].DetectedAt.Equal(records()[1].DetectedAt))
			assert.Empty(t, got[1].Node)

			later, err := f.store.List(ctx, records()[0].DetectedAt)
			require.NoError(t, err)
			assert.Len(t, later, 1)
		})
	}
}

func TestStore_AppendIgnoresReplays(t *testing.T) {
	for name, f := range setupFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, f.store.Append(ctx, records()))
			require.NoError(t, f.store.Append(ctx, records()))
			require.NoError(t, f.store.Append(ctx, nil))

			count, err := f.store.Count(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 2, count)
		})
	}
}

func TestStore_AppendRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO offense_journal").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO offense_journal").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s, err := NewStore(db)
	require.NoError(t, err)
	err = s.Append(context.Background(), records())
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStore_NilDB(t *testing.T) {
	s, err := NewStore(nil)
	assert.Error(t, err)
	assert.Nil(t, s)
}
