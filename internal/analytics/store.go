// Package analytics serves the sales dashboard from a SQL database seeded
// with deterministic sample data.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

const sqliteInMem = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY,
	full_name TEXT NOT NULL,
	city TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY,
	agent_id INTEGER NOT NULL REFERENCES agents (id),
	sale_price BIGINT NOT NULL,
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS transactions_created_at ON transactions (created_at)`,
	`CREATE TABLE IF NOT EXISTS sample_range (
	min_date TEXT NOT NULL,
	max_date TEXT NOT NULL
)`,
}

// Store runs dashboard queries against a database/sql handle.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema. An empty sqlite DSN
// selects a private in-memory database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = sqliteInMem
		}
	case DriverPgx:
		if dsn == "" {
			return nil, errors.New("analytics: pgx driver requires a dsn")
		}
	default:
		return nil, fmt.Errorf("analytics: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("analytics: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// every sqlite connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("analytics: migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for the pgx driver. Queries in this
// package never contain ? inside literals.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPgx || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
