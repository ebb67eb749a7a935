package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/engineerhub/engineerhub/internal/auth"
	"github.com/engineerhub/engineerhub/internal/platform/db"
	"github.com/engineerhub/engineerhub/internal/shared"
)

// SessionRepository implements auth.SessionRepository.
type SessionRepository struct {
	conn db.DBTX
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(conn db.DBTX) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// Create inserts a session. A digest collision reports shared.ErrConflict.
func (r *SessionRepository) Create(ctx context.Context, s auth.Session) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO sessions (token_digest, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		s.TokenDigest, s.UserID, s.ExpiresAt, s.CreatedAt)
	if isUniqueViolation(err) {
		return shared.ErrConflict
	}
	if err != nil {
		return oops.With("operation", "create session").Wrap(err)
	}
	return nil
}

// FindByDigest loads a session, expired or not.
func (r *SessionRepository) FindByDigest(ctx context.Context, digest string) (auth.Session, error) {
	var s auth.Session
	err := r.conn.QueryRow(ctx,
		`SELECT token_digest, user_id::text, expires_at, created_at FROM sessions WHERE token_digest = $1`,
		digest).Scan(&s.TokenDigest, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Session{}, shared.ErrNotFound
	}
	if err != nil {
		return auth.Session{}, oops.With("operation", "find session").Wrap(err)
	}
	return s, nil
}

// Delete removes a session. Missing rows are not an error.
func (r *SessionRepository) Delete(ctx context.Context, digest string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM sessions WHERE token_digest = $1`, digest); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry has passed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, oops.With("operation", "delete expired sessions").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
