// Package pgrepos implements the core repositories on PostgreSQL with sqlx.
//
// Every write that the services expect to be atomic is a single statement (or a single
// transaction) relying on row locks, conditional WHERE clauses and unique indexes. No
// repository reads a row to decide how to write it back.
package pgrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/invasionlatina/backend/core"
)

const uniqueViolation = "23505"

// trapNoRowsErr maps the "no rows" error to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error, constraint ...string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != uniqueViolation {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint[0]
}

// stringArray never returns a NULL array, so that `x = ANY(...)` conditions stay boolean.
func stringArray(s []string) pq.StringArray {
	return append(pq.StringArray{}, s...)
}

// withTx runs fn in a transaction, committed when fn returns nil.
func withTx(ctx context.Context, db core.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
