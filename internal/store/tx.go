package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type execer interface {
	sqlx.ExtContext
}

// withTx begins a transaction, runs fn with it, and commits on success or
// rolls back on error or panic. Panics are rethrown.
//
// SQLite stores hold a single connection; fn must not touch s.db.
func (s *Store) withTx(ctx context.Context, fn func(tx execer) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
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

	return fn(tx)
}

func get(ctx context.Context, e execer, dest interface{}, q string, args ...interface{}) error {
	return sqlx.GetContext(ctx, e, dest, e.Rebind(q), args...)
}

func selectAll(ctx context.Context, e execer, dest interface{}, q string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, e, dest, e.Rebind(q), args...)
}

func exec(ctx context.Context, e execer, q string, args ...interface{}) (sql.Result, error) {
	return e.ExecContext(ctx, e.Rebind(q), args...)
}

func namedExec(ctx context.Context, e execer, q string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, e, q, arg)
}
