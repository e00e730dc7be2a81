// Package store persists accounts, sessions and site content. One schema
// serves both PostgreSQL (production) and SQLite (development and tests);
// queries are written with ? placeholders and rebound for the driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures NewStore.
type Options struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// DSN is the connection string. For SQLite an empty DSN opens a private
	// in-memory database; a plain path opens (and creates) a file.
	DSN string
	// MaxOpenConns bounds the Postgres connection pool. SQLite always uses 1.
	MaxOpenConns int
	// SkipMigrations leaves the schema untouched (used by "migrate status").
	SkipMigrations bool
}

// Store is the data access layer. All methods are safe for concurrent use.
type Store struct {
	db     *sqlx.DB
	driver string
}

// NewStore opens the database described by opts and applies pending
// migrations.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(ctx, opts.DSN)
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		db, err = sqlx.ConnectContext(ctx, "pgx", opts.DSN)
		if err == nil {
			maxOpen := opts.MaxOpenConns
			if maxOpen <= 0 {
				maxOpen = 25
			}
			db.SetMaxOpenConns(maxOpen)
			db.SetMaxIdleConns(maxOpen / 5)
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if !opts.SkipMigrations {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return s, nil
}

func openSQLite(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// NewWithDB wraps an existing connection. driverName is the database/sql
// driver name ("pgx" or "sqlite") and selects the placeholder style.
// Migrations are not run.
func NewWithDB(db *sql.DB, driverName string) *Store {
	driver := DriverSQLite
	if driverName == "pgx" || driverName == "postgres" {
		driver = DriverPostgres
	}
	return &Store{db: sqlx.NewDb(db, driverName), driver: driver}
}

// Driver returns the configured driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() time.Time {
	return time.Now().UTC()
}
