// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/engineerhub/engineerhub/internal/auth"
	"github.com/engineerhub/engineerhub/internal/platform/db"
)

// Store implements auth.Store over a pool or an open transaction.
type Store struct {
	conn  db.DBTX
	begin db.Beginner
}

// NewStore constructs a Store backed by conn.
func NewStore(conn db.Beginner) *Store {
	return &Store{conn: conn, begin: conn}
}

// Accounts implements auth.Store.
func (s *Store) Accounts() auth.AccountRepository {
	return NewAccountRepository(s.conn)
}

// Sessions implements auth.Store.
func (s *Store) Sessions() auth.SessionRepository {
	return NewSessionRepository(s.conn)
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer one.
func (s *Store) WithTx(ctx context.Context, fn func(auth.Store) error) error {
	if s.begin == nil {
		return fn(s)
	}
	return db.WithTx(ctx, s.begin, func(tx pgx.Tx) error {
		return fn(&Store{conn: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
