package data

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DataFileName = "riskprep.db"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	dirMode = 0o700
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// Store persists run artifacts in SQLite or Postgres.
type Store struct {
	DB     *sql.DB
	Driver string
}

// Open connects to the database. For SQLite the DSN is a file path whose
// directory is created when missing.
func Open(driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database DSN not specified")
	}

	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, dirMode); err != nil {
				return nil, fmt.Errorf("creating database dir %s: %w", dir, err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}
	return &Store{DB: db, Driver: driver}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Init creates the schema. It is safe to call on an existing database.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errDBNotInitialized
	}

	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("connecting to %s database: %w", s.Driver, err)
	}

	b, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("failed to read the schema creation file: %w", err)
	}

	slog.Debug("creating db schema", "driver", s.Driver)
	for _, stmt := range statements(string(b)) {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create database schema: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to the $n form Postgres expects.
func (s *Store) rebind(q string) string {
	if s.Driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// statements splits a DDL script on semicolons, dropping comments and
// blank statements.
func statements(script string) []string {
	var lines []string
	for _, l := range strings.Split(script, "\n") {
		if t := strings.TrimSpace(l); t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		lines = append(lines, l)
	}

	var out []string
	for _, s := range strings.Split(strings.Join(lines, "\n"), ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
