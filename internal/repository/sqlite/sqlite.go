// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// The whole store is one file next to the binary, with no server to run.
// It is the default store; set STORE_DRIVER=postgres for a shared server.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is SQLite transpiled to pure Go, so builds need no C
// toolchain and cross-compile like any other Go package. mattn/go-sqlite3
// needs CGo.
//
// TIMESTAMPS:
// SQLite has no native time type; DATETIME columns hold text. We open the
// database with _time_format=sqlite and always bind times in UTC, so every
// stored timestamp has the same shape and compares correctly as text.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	// The driver package's init() registers itself with database/sql as a
	// driver named "sqlite". It shares our package name, hence the alias.
	moderncsqlite "modernc.org/sqlite"

	"github.com/sakif/user-segments/internal/repository"
)

// compile-time check that *DB is a complete record store
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/segments.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite", dbPath+sep+"_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// Pin the pool to one connection so all queries see the same data.
	if strings.HasPrefix(dbPath, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the tables if they do not exist yet.
// CREATE TABLE IF NOT EXISTS is idempotent, so this runs on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			age                 INTEGER NOT NULL,
			gender              TEXT NOT NULL,
			country             TEXT NOT NULL DEFAULT '',
			device_type         TEXT NOT NULL DEFAULT ''
				CHECK (device_type IN ('mobile', 'desktop', 'tablet', '')),
			last_login          DATETIME,
			registration_date   DATETIME NOT NULL,
			active_in_last_days INTEGER NOT NULL DEFAULT 0,
			logins              INTEGER NOT NULL DEFAULT 0,
			click_rate          REAL NOT NULL DEFAULT 0,
			subscription_status TEXT NOT NULL DEFAULT ''
				CHECK (subscription_status IN ('active', 'inactive', 'trial', '')),
			purchase_value      REAL NOT NULL DEFAULT 0,
			created_at          DATETIME NOT NULL,
			updated_at          DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS segments (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			filters     TEXT NOT NULL,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_segments_created_at ON segments(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating segments table: %w", err)
	}

	return nil
}

// foldFunc is the SQL name of the Go case-folding function registered below.
const foldFunc = "go_fold"

// CASE FOLDING:
// SQLite's built-in LIKE and lower() only know ASCII, so "JOSÉ" would not
// find "José". go_fold runs strings.ToLower inside SQLite, giving the same
// Unicode folding the memory store uses. Registered functions apply to every
// connection opened afterwards, so this must run before any sql.Open.
func init() {
	err := moderncsqlite.RegisterDeterministicScalarFunction(foldFunc, 1,
		func(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case nil:
				return nil, nil
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
	if err != nil {
		panic(fmt.Sprintf("sqlite: registering %s: %v", foldFunc, err))
	}
}

// dialect renders query predicates for SQLite.
type dialect struct{}

func (dialect) Placeholder(int, any) string { return "?" }

// ContainsFold folds both the column and the pattern to lower case before
// LIKE compares them, so substring filters ignore case for every script,
// not just ASCII. The escape characters survive folding unchanged.
func (dialect) ContainsFold(column, placeholder string) string {
	return foldFunc + "(" + column + ") LIKE " + foldFunc + "(" + placeholder + `) ESCAPE '\'`
}
