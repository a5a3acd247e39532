// Package sqlstore implements the repositories on top of sqlx. PostgreSQL
// (lib/pq) is the production driver; SQLite (go-sqlite3) backs local runs
// and the adapter tests.
package sqlstore

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed schema_postgres.sql
var postgresSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

// Store is a repositories.Store backed by a SQL database
type Store struct {
	db *sqlx.DB
}

// Verify interface compliance
var _ repositories.Store = (*Store)(nil)

// Options configures Open
type Options struct {
	Driver         string
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	SkipMigrations bool
}

// Open connects to the database and applies the schema
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Driver != DriverPostgres && opts.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}

	s := New(db)
	if !opts.SkipMigrations {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// New wraps an existing connection pool
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.db.DriverName() == DriverSQLite {
		schema = sqliteSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool, mainly for tests
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Products() repositories.ProductRepository {
	return &ProductRepository{q: s.db}
}

func (s *Store) BOMs() repositories.BOMRepository {
	return &BOMRepository{q: s.db}
}

func (s *Store) Inventory() repositories.InventoryRepository {
	return &InventoryRepository{q: s.db}
}

// WithinTx runs fn inside a database transaction
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &txRepositories{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txRepositories struct {
	tx *sqlx.Tx
}

func (t *txRepositories) Products() repositories.ProductRepository {
	return &ProductRepository{q: t.tx}
}

func (t *txRepositories) BOMs() repositories.BOMRepository {
	return &BOMRepository{q: t.tx}
}

func (t *txRepositories) Inventory() repositories.InventoryRepository {
	return &InventoryRepository{q: t.tx}
}

// forUpdate returns the row locking clause for the driver. SQLite locks the
// whole database for the duration of a write transaction instead.
func forUpdate(q sqlx.ExtContext, lock bool) string {
	if lock && q.DriverName() == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}
