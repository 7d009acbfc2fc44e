// Package postgres implements storage.Store on top of sqlx and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/deskbot/core/database"
	"github.com/m3rciful/deskbot/internal/storage"
)

// Store is a storage.Store backed by PostgreSQL.
type Store struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() storage.Users               { return users{q: s.q} }
func (s *Store) Drafts() storage.Drafts             { return drafts{q: s.q} }
func (s *Store) Applications() storage.Applications { return applications{q: s.q} }
func (s *Store) Threads() storage.Threads           { return threads{q: s.q} }
func (s *Store) Messages() storage.Messages         { return messages{q: s.q} }

// InTx runs fn inside a database transaction.
func (s *Store) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&Store{db: s.db, q: tx, inTx: true})
	})
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
