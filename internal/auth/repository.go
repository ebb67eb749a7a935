package auth

import (
	"context"
	"time"
)

// AccountRepository persists accounts. Lookups report shared.ErrNotFound and
// Create reports shared.ErrConflict when the email is taken.
type AccountRepository interface {
	Create(ctx context.Context, account Account) error
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	// SetVerificationCode replaces the pending code of an unverified account.
	// Verified or missing accounts report shared.ErrNotFound.
	SetVerificationCode(ctx context.Context, id, code string, expiresAt, now time.Time) error
	// ConsumeVerificationCode marks the account verified and clears the code
	// in one step, returning the account id. No match reports shared.ErrNotFound.
	ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (string, error)
	SetResetToken(ctx context.Context, id, digest string, expiresAt, now time.Time) error
	// ConsumeResetToken swaps the password hash and clears the token in one
	// step, returning the account id. No match reports shared.ErrNotFound.
	ConsumeResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (string, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch, now time.Time) (Account, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// SessionRepository persists sessions keyed by token digest.
type SessionRepository interface {
	// Create reports shared.ErrConflict on a digest collision.
	Create(ctx context.Context, session Session) error
	FindByDigest(ctx context.Context, digest string) (Session, error)
	// Delete is a no-op for unknown digests.
	Delete(ctx context.Context, digest string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Accounts() AccountRepository
	Sessions() SessionRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}
