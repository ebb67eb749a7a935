package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/engineerhub/engineerhub/internal/auth"
	"github.com/engineerhub/engineerhub/internal/platform/db"
	"github.com/engineerhub/engineerhub/internal/shared"
)

const accountColumns = `id::text, email, password_hash, display_name, email_verified,
	verification_code, verification_code_expiry, reset_token_digest, reset_token_expiry,
	created_at, updated_at`

// AccountRepository implements auth.AccountRepository.
type AccountRepository struct {
	conn db.DBTX
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(conn db.DBTX) *AccountRepository {
	return &AccountRepository{conn: conn}
}

// Create inserts a new account. A taken email reports shared.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, a auth.Account) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, display_name, email_verified,
			verification_code, verification_code_expiry, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Email, a.PasswordHash, a.DisplayName, a.EmailVerified,
		nullString(a.VerificationCode), nullTime(a.VerificationCodeExpiry), a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return shared.ErrConflict
	}
	if err != nil {
		return oops.With("operation", "create account").Wrap(err)
	}
	return nil
}

// FindByEmail loads an account by canonical email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (auth.Account, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row, "find account by email")
}

// FindByID loads an account by id.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (auth.Account, error) {
	if !validID(id) {
		return auth.Account{}, shared.ErrNotFound
	}
	row := r.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row, "find account by id")
}

// SetVerificationCode replaces the code of an unverified account.
func (r *AccountRepository) SetVerificationCode(ctx context.Context, id, code string, expiresAt, now time.Time) error {
	if !validID(id) {
		return shared.ErrNotFound
	}
	tag, err := r.conn.Exec(ctx,
		`UPDATE accounts
		 SET verification_code = $2, verification_code_expiry = $3, updated_at = $4
		 WHERE id = $1 AND NOT email_verified`,
		id, code, expiresAt, now)
	if err != nil {
		return oops.With("operation", "set verification code").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ConsumeVerificationCode verifies the account owning a live code.
func (r *AccountRepository) ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) (string, error) {
	var id string
	err := r.conn.QueryRow(ctx,
		`UPDATE accounts
		 SET email_verified = TRUE, verification_code = NULL, verification_code_expiry = NULL, updated_at = $3
		 WHERE email = $1 AND verification_code = $2 AND verification_code_expiry > $3 AND NOT email_verified
		 RETURNING id::text`,
		email, code, now).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", oops.With("operation", "consume verification code").Wrap(err)
	}
	return id, nil
}

// SetResetToken stores a reset token digest, replacing any earlier one.
func (r *AccountRepository) SetResetToken(ctx context.Context, id, digest string, expiresAt, now time.Time) error {
	if !validID(id) {
		return shared.ErrNotFound
	}
	tag, err := r.conn.Exec(ctx,
		`UPDATE accounts SET reset_token_digest = $2, reset_token_expiry = $3, updated_at = $4
		 WHERE id = $1`,
		id, digest, expiresAt, now)
	if isUniqueViolation(err) {
		return shared.ErrConflict
	}
	if err != nil {
		return oops.With("operation", "set reset token").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ConsumeResetToken swaps the password behind a live reset token.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (string, error) {
	var id string
	err := r.conn.QueryRow(ctx,
		`UPDATE accounts
		 SET password_hash = $2, reset_token_digest = NULL, reset_token_expiry = NULL, updated_at = $3
		 WHERE reset_token_digest = $1 AND reset_token_expiry > $3
		 RETURNING id::text`,
		digest, passwordHash, now).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", oops.With("operation", "consume reset token").Wrap(err)
	}
	return id, nil
}

// UpdatePassword replaces the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	if !validID(id) {
		return shared.ErrNotFound
	}
	tag, err := r.conn.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, now)
	if err != nil {
		return oops.With("operation", "update password").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil fields of patch.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, patch auth.ProfilePatch, now time.Time) (auth.Account, error) {
	if !validID(id) {
		return auth.Account{}, shared.ErrNotFound
	}
	row := r.conn.QueryRow(ctx,
		`UPDATE accounts SET display_name = COALESCE($2, display_name), updated_at = $3
		 WHERE id = $1
		 RETURNING `+accountColumns,
		id, patch.DisplayName, now)
	return scanAccount(row, "update profile")
}

// ClearExpiredResetTokens drops reset tokens past their expiry.
func (r *AccountRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx,
		`UPDATE accounts SET reset_token_digest = NULL, reset_token_expiry = NULL
		 WHERE reset_token_digest IS NOT NULL AND reset_token_expiry <= $1`,
		now)
	if err != nil {
		return 0, oops.With("operation", "clear expired reset tokens").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func scanAccount(row pgx.Row, operation string) (auth.Account, error) {
	var (
		a           auth.Account
		code        *string
		codeExpiry  *time.Time
		resetDigest *string
		resetExpiry *time.Time
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.EmailVerified,
		&code, &codeExpiry, &resetDigest, &resetExpiry, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Account{}, shared.ErrNotFound
	}
	if err != nil {
		return auth.Account{}, oops.With("operation", operation).Wrap(err)
	}
	a.VerificationCode = deref(code)
	a.VerificationCodeExpiry = deref(codeExpiry)
	a.ResetTokenDigest = deref(resetDigest)
	a.ResetTokenExpiry = deref(resetExpiry)
	return a, nil
}

// validID rejects ids that could never match the uuid primary key.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
