// Package driver provides a dialect-tagged handle over database/sql.
//
// The handle is explicitly owned: callers open it, pass it to the
// migrator and client, and close it when done. There is no process-wide
// connection state.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Supported dialects. The constants double as database/sql driver names.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// Supported reports whether the dialect is one this package knows.
func Supported(dialect string) bool {
	switch dialect {
	case SQLite, Postgres, MySQL:
		return true
	}
	return false
}

// ExecQuerier is the minimal statement-execution surface shared by a
// pooled connection and an open transaction.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Driver wraps a *sql.DB with its dialect. It is safe for concurrent use.
type Driver struct {
	db      *sql.DB
	dialect string
}

// Open opens a database handle for the given dialect and DSN. The
// matching database/sql driver must be registered by the caller
// (e.g. a blank import of modernc.org/sqlite or lib/pq).
//
// SQLite connections get foreign-key enforcement turned on via a DSN
// pragma so every pooled connection enforces it.
func Open(dialect, dsn string) (*Driver, error) {
	if !Supported(dialect) {
		return nil, fmt.Errorf("driver: unsupported dialect %q", dialect)
	}
	if dialect == SQLite && !strings.Contains(dsn, "_pragma=foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("driver: open %s: %w", dialect, err)
	}
	return &Driver{db: db, dialect: dialect}, nil
}

// OpenDB wraps an existing *sql.DB with a dialect tag. The caller keeps
// ownership of db's lifecycle only if it also skips calling Close here.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return &Driver{db: db, dialect: dialect}
}

// Dialect returns the driver's dialect tag.
func (d *Driver) Dialect() string { return d.dialect }

// DB returns the underlying *sql.DB.
func (d *Driver) DB() *sql.DB { return d.db }

// Close closes the underlying connection pool.
func (d *Driver) Close() error { return d.db.Close() }

// ExecContext executes a statement outside a transaction.
func (d *Driver) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query outside a transaction.
func (d *Driver) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (d *Driver) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("driver: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is an open transaction. All statements routed through it take
// effect atomically on Commit and are discarded on Rollback.
type Tx struct {
	tx *sql.Tx
}

// ExecContext executes a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// Commit persists the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback discards the transaction. Rolling back an already-finished
// transaction is a no-op.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
