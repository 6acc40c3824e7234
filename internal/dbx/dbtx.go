// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a Database handle that can also open transactions, and helpers to run
// functions inside a transaction and classify driver errors.
package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work executed by Database.WithTx.
type TxFunc func(ctx context.Context, tx DBTX) error

// Database runs units of work inside a transaction. Services depend on it
// instead of *sql.DB so the in-memory store can provide its own
// transaction semantics.
type Database interface {
	WithTx(ctx context.Context, fn TxFunc) error
}

// SQLDatabase adapts *sql.DB to Database.
type SQLDatabase struct {
	*sql.DB
	opts *sql.TxOptions
}

// NewSQLDatabase wraps db; opts is passed to every BeginTx (nil for defaults).
func NewSQLDatabase(db *sql.DB, opts *sql.TxOptions) *SQLDatabase {
	return &SQLDatabase{DB: db, opts: opts}
}

// WithTx runs fn inside a database transaction.
func (d *SQLDatabase) WithTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, d.DB, d.opts, fn)
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    // use tx instead of db
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
