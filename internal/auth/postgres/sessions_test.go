package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engineerhub/engineerhub/internal/auth"
	"github.com/engineerhub/engineerhub/internal/shared"
)

func TestSessionRepository_CreateAndFind(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	session := auth.Session{TokenDigest: "digest", UserID: testAccountID, ExpiresAt: now.Add(auth.DefaultSessionTTL), CreatedAt: now}

	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("digest", testAccountID, session.ExpiresAt, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT token_digest, user_id::text, expires_at, created_at FROM sessions`).
		WithArgs("digest").
		WillReturnRows(pgxmock.NewRows([]string{"token_digest", "user_id", "expires_at", "created_at"}).
			AddRow("digest", testAccountID, session.ExpiresAt, now))

	repo := NewSessionRepository(mock)
	require.NoError(t, repo.Create(context.Background(), session))

	found, err := repo.FindByDigest(context.Background(), "digest")
	require.NoError(t, err)
	assert.Equal(t, session, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_CreateCollision(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := NewSessionRepository(mock).Create(context.Background(), auth.Session{TokenDigest: "dup"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_FindMissing(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT token_digest`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"token_digest", "user_id", "expires_at", "created_at"}))

	_, err := NewSessionRepository(mock).FindByDigest(context.Background(), "nope")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteAndPurge(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM sessions WHERE token_digest = \$1`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	repo := NewSessionRepository(mock)
	require.NoError(t, repo.Delete(context.Background(), "gone"))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxVerifiesAndCreatesSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`UPDATE accounts\s+SET email_verified = TRUE`).
		WithArgs("a@x.com", "123456", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testAccountID))
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store := NewStore(mock)
	err := store.WithTx(context.Background(), func(tx auth.Store) error {
		id, err := tx.Accounts().ConsumeVerificationCode(context.Background(), "a@x.com", "123456", now)
		if err != nil {
			return err
		}
		return tx.Sessions().Create(context.Background(), auth.Session{TokenDigest: "d", UserID: id, ExpiresAt: now.Add(time.Hour), CreatedAt: now})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxRollsBack(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`UPDATE accounts\s+SET email_verified = TRUE`).
		WithArgs("a@x.com", "123456", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testAccountID))
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()

	store := NewStore(mock)
	err := store.WithTx(context.Background(), func(tx auth.Store) error {
		id, err := tx.Accounts().ConsumeVerificationCode(context.Background(), "a@x.com", "123456", now)
		if err != nil {
			return err
		}
		return tx.Sessions().Create(context.Background(), auth.Session{TokenDigest: "d", UserID: id})
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
