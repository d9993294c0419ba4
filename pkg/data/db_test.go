package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(DriverSQLite, dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInit_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	s, err := Open(DriverSQLite, dbPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Init(context.Background()))
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(DriverSQLite, "")
	assert.Error(t, err)

	_, err = Open("mysql", "x")
	assert.Error(t, err)
}

func TestInit_RunsMigrations(t *testing.T) {
	s := setupTestDB(t)
	var version int
	err := s.DB.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	assert.NoError(t, err)
	assert.Greater(t, version, 0)
}

func TestInit_Idempotent(t *testing.T) {
	s := setupTestDB(t)
	assert.NoError(t, s.Init(context.Background()))

	var n int
	require.NoError(t, s.DB.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestInit_NilStore(t *testing.T) {
	var s *Store
	assert.ErrorIs(t, s.Init(context.Background()), errDBNotInitialized)
	assert.NoError(t, s.Close())
}

func TestRebind(t *testing.T) {
	pg := &Store{Driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Store{Driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestStatements(t *testing.T) {
	got := statements("-- comment\nCREATE TABLE a (x INTEGER);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INTEGER)", "CREATE INDEX i ON a (x)"}, got)
}
