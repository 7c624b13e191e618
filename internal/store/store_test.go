package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a migrated SQLite store in a temp directory.
func newTestStore(t *testing.T, key []byte) *Store {
	t.Helper()

	ctx := context.Background()
	s, err := Open(ctx, Config{
		Driver:        DriverSQLite,
		URL:           filepath.Join(t.TempDir(), "recircuit.db"),
		EncryptionKey: key,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

// setClock pins the store clock and returns a function that advances it.
func setClock(s *Store, start time.Time) func(time.Duration) {
	now := start
	s.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestOpen_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown driver", cfg: Config{Driver: "mysql", URL: "x"}},
		{name: "missing url", cfg: Config{Driver: DriverSQLite}},
		{name: "short key", cfg: Config{Driver: DriverSQLite, URL: "x.db", EncryptionKey: []byte("short")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, s.Driver())
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	lite := &Store{driver: DriverSQLite}

	query := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}
