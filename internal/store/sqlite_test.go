package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/config"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal", "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, Run{ID: "run-1", Command: "statements:balance", Total: 3}))
	require.NoError(t, st.RecordTask(ctx, Task{RunID: "run-1", CompanyID: "0051", Status: TaskSucceeded, Duration: 1500 * time.Millisecond}))
	require.NoError(t, st.RecordTask(ctx, Task{RunID: "run-1", CompanyID: "5099", Status: TaskFailed, Kind: "no_rows_found", Error: "empty table"}))
	require.NoError(t, st.CompleteRun(ctx, "run-1", RunStatusComplete, 1, 1))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusComplete, runs[0].Status)
	assert.Equal(t, 3, runs[0].Total)
	assert.Equal(t, 1, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestSQLite_SucceededIDsScopedByCommand(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, Run{ID: "a", Command: "statements:balance"}))
	require.NoError(t, st.CreateRun(ctx, Run{ID: "b", Command: "market"}))
	require.NoError(t, st.RecordTask(ctx, Task{RunID: "a", CompanyID: "0051", Status: TaskSucceeded}))
	require.NoError(t, st.RecordTask(ctx, Task{RunID: "a", CompanyID: "5099", Status: TaskFailed}))
	require.NoError(t, st.RecordTask(ctx, Task{RunID: "b", CompanyID: "0012", Status: TaskSucceeded}))

	ids, err := st.SucceededIDs(ctx, "statements:balance")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"0051": true}, ids)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "missing", RunStatusComplete, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "j.db")})
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(ctx, Run{ID: "x", Command: "urls"}))
	assert.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unknown driver")
}
