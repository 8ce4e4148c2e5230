/*
Package sqlstore provides the relational implementation of every domain Store.

PURPOSE:
  Implements stock.Store, products.Store, sales.Store, debts.Store and
  inventory.Store over sqlx, on SQLite (default, tests) or MySQL (shared
  deployments). Only schema DDL and driver error codes differ between the
  two dialects; every query is portable.

INTERFACES IMPLEMENTED:
  ledger.Transactor: WithTx, transaction carried in the context
  stock.Store:       conditional quantity updates
  products.Store:    catalogue
  sales.Store:       sales + items
  debts.Store:       customer_debts, supplier_debts, debt_payments
  inventory.Store:   inventories + inventory_items

SOFT DELETE:
  Reads go through active_* views (deleted_at IS NULL). Guarded writes
  repeat the predicate in their WHERE clause so a tombstoned row can never
  be modified by accident.

TRANSACTIONS:
  WithTx stores the *sqlx.Tx in the context. Every method resolves its
  executor through ext(ctx), so calls made with that context join the
  transaction. A nested WithTx joins the outer transaction.

CONCURRENCY:
  SQLite runs with a single connection: transactions serialise on it.
  MySQL relies on InnoDB row locks; deadlocks and lock-wait timeouts come
  back as ErrConcurrentModification.

USAGE:
  store, err := sqlstore.New(":memory:")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on open (CREATE ... IF NOT EXISTS). For
  production MySQL, use a versioned migration tool.

SEE ALSO:
  - store/sqlstore/schema.go: DDL per dialect
  - ledger/store.go: Transactor contract
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/retail-ledger/debts"
	"github.com/warp/retail-ledger/inventory"
	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/products"
	"github.com/warp/retail-ledger/sales"
	"github.com/warp/retail-ledger/stock"
)

// Dialect names a supported database driver.
type Dialect string

const (
	SQLite Dialect = "sqlite3"
	MySQL  Dialect = "mysql"
)

// Config selects and tunes the database.
type Config struct {
	Driver          Dialect
	DSN             string // file path for SQLite, go-sql-driver DSN for MySQL
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements all domain stores on one database handle.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

type txKey struct{ s *Store }

// New opens a SQLite store at dbPath. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(Config{Driver: SQLite, DSN: dbPath})
}

// Open connects, applies pool settings and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Driver {
	case SQLite, "":
		db, err = sqlx.Open(string(SQLite), sqliteDSN(cfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// One connection: serialises writers and keeps ":memory:" a single database.
		db.SetMaxOpenConns(1)
		cfg.Driver = SQLite
	case MySQL:
		dsn, err := mysqlDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		db, err = sqlx.Open(string(MySQL), dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	store := &Store{db: db, dialect: cfg.Driver}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "retail.db"
	}
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// mysqlDSN forces the options the store depends on.
func mysqlDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	c.ParseTime = true
	c.Loc = time.UTC
	// Report matched rows, not changed rows, so guarded UPDATEs are judged on their WHERE.
	c.ClientFoundRows = true
	return c.FormatDSN(), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports the driver in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == MySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (ledger.Transactor)
// =============================================================================

// WithTx runs fn inside a database transaction. fn must use the context it receives.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{s}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.translate("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{s}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.translate("commit", err)
	}
	return nil
}

// ext returns the transaction carried by ctx, or the pool.
func (s *Store) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{s}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

// exec runs a write and returns the number of matched rows.
func (s *Store) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.ext(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.translate(op, err)
	}
	return n, nil
}

// namedExec runs a write with :name bindings taken from arg.
func (s *Store) namedExec(ctx context.Context, op, query string, arg any) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, s.ext(ctx), query, arg)
	if err != nil {
		return 0, s.translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.translate(op, err)
	}
	return n, nil
}

func (s *Store) selectInto(ctx context.Context, op string, dest any, query string, args ...any) error {
	if err := sqlx.SelectContext(ctx, s.ext(ctx), dest, query, args...); err != nil {
		return s.translate(op, err)
	}
	return nil
}

// get loads one row into dest; a missing row becomes NotFoundError{kind,id}.
func (s *Store) get(ctx context.Context, kind, id string, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, s.ext(ctx), dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return s.translate("get "+kind, err)
	}
	return nil
}

func (s *Store) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, s.ext(ctx), &n, query, args...); err != nil {
		return 0, s.translate(op, err)
	}
	return n, nil
}

// =============================================================================
// ERROR TRANSLATION
// =============================================================================

// translate maps driver errors onto the ledger taxonomy.
func (s *Store) translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // ER_DUP_ENTRY
			return fmt.Errorf("%s: %w", op, ledger.ErrConflict)
		case 1205, 1213: // lock wait timeout, deadlock
			return fmt.Errorf("%s: %w", op, ledger.ErrConcurrentModification)
		case 3819: // check constraint violated
			return fmt.Errorf("%s: %w", op, ledger.ErrInvalidInput)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w", op, ledger.ErrConflict)
		case liteErr.ExtendedCode == sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%s: %w", op, ledger.ErrInvalidInput)
		case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w", op, ledger.ErrConcurrentModification)
		}
	}

	return &ledger.StorageError{Op: op, Err: err}
}

var (
	_ ledger.Transactor = (*Store)(nil)
	_ stock.Store       = (*Store)(nil)
	_ products.Store    = (*Store)(nil)
	_ sales.Store       = (*Store)(nil)
	_ debts.Store       = (*Store)(nil)
	_ inventory.Store   = (*Store)(nil)
)
