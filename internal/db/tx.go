package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so store helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx starts a transaction, runs fn, and commits if fn returns nil.
// If fn returns an error (or panics) the transaction is rolled back and the
// error is returned unchanged.
//
//	err := db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
//	    // tx.ExecContext / tx.QueryContext ...
//	    return nil
//	})
func WithTx(ctx context.Context, d *sql.DB, fn func(*sql.Tx) error) (err error) {
	if d == nil {
		return errors.New("db: nil handle")
	}
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
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
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("db: commit: %w", e)
		}
	}()
	err = fn(tx)
	return
}

// ErrPersistence marks a failure of the underlying store. Callers surface it
// as a generic, retryable error.
var ErrPersistence = errors.New("persistence failure")

// Wrap tags err as a persistence failure while keeping the original in the
// chain. nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
