package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/engineerhub/engineerhub/internal/shared"
)

// DefaultSessionTTL is the lifetime of a session and of its cookie.
const DefaultSessionTTL = 7 * 24 * time.Hour

// sessionCreateAttempts bounds retries after a digest collision.
const sessionCreateAttempts = 3

// SessionStore issues, validates and revokes opaque session tokens. Only the
// token digest is persisted.
type SessionStore struct {
	repo   SessionRepository
	tokens TokenGenerator
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionStore constructs a SessionStore. A zero ttl means DefaultSessionTTL.
func NewSessionStore(repo SessionRepository, tokens TokenGenerator, ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SessionStore{repo: repo, tokens: tokens, ttl: ttl, now: now}
}

// TTL returns the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// with returns a copy bound to repo, used inside transactions.
func (s *SessionStore) with(repo SessionRepository) *SessionStore {
	clone := *s
	clone.repo = repo
	return &clone
}

// Create persists a new session for userID and returns the client token.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	for attempt := 1; ; attempt++ {
		token, err := s.tokens.SessionToken()
		if err != nil {
			return "", err
		}

		now := s.now()
		err = s.repo.Create(ctx, Session{
			TokenDigest: DigestToken(token),
			UserID:      userID,
			ExpiresAt:   now.Add(s.ttl),
			CreatedAt:   now,
		})
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, shared.ErrConflict) || attempt >= sessionCreateAttempts {
			return "", oops.Code("AUTH_SESSION_CREATE_FAILED").With("attempt", attempt).Wrap(err)
		}
	}
}

// Validate resolves token to its account id. ok is false for unknown or
// expired tokens. Expired rows are left for the purge job.
func (s *SessionStore) Validate(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	session, err := s.repo.FindByDigest(ctx, DigestToken(token))
	if errors.Is(err, shared.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, oops.Code("AUTH_SESSION_LOOKUP_FAILED").Wrap(err)
	}
	if session.ExpiredAt(s.now()) {
		return "", false, nil
	}
	return session.UserID, true, nil
}

// Revoke deletes the session behind token. Unknown tokens are ignored.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, DigestToken(token)); err != nil {
		return oops.Code("AUTH_SESSION_REVOKE_FAILED").Wrap(err)
	}
	return nil
}

// Purge removes sessions that expired before now.
func (s *SessionStore) Purge(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("AUTH_SESSION_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}
