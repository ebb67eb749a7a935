package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/engineerhub/engineerhub/internal/shared"
)

// Default lifetimes of emailed secrets.
const (
	DefaultVerificationCodeTTL = 2 * time.Minute
	DefaultResetTokenTTL       = time.Hour
)

// Outcomes reported to the Recorder.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeIgnored = "ignored"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
	Hasher              PasswordHasher
	Tokens              TokenGenerator
	Recorder            Recorder
	Clock               func() time.Time
}

// Service wraps the account and session lifecycle rules.
type Service struct {
	store    Store
	sessions *SessionStore
	notifier Notifier
	hasher   PasswordHasher
	tokens   TokenGenerator
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
	codeTTL  time.Duration
	resetTTL time.Duration
}

// NewService constructs a new Service. The session store must share the
// token generator and clock passed in opts.
func NewService(store Store, sessions *SessionStore, notifier Notifier, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		hasher:   opts.Hasher,
		tokens:   opts.Tokens,
		recorder: opts.Recorder,
		logger:   logger.With(slog.String("component", "auth")),
		now:      opts.Clock,
		codeTTL:  opts.VerificationCodeTTL,
		resetTTL: opts.ResetTokenTTL,
	}
	if s.hasher == nil {
		s.hasher = NewArgon2idHasher()
	}
	if s.tokens == nil {
		s.tokens = NewRandomTokens()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.codeTTL <= 0 {
		s.codeTTL = DefaultVerificationCodeTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTokenTTL
	}
	return s
}

// Sessions exposes the session store for middleware.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// Signup creates an unverified account and emails a verification code.
func (s *Service) Signup(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", oops.Code("AUTH_SIGNUP_FAILED").With("operation", "hash password").Wrap(err)
	}
	code, err := s.tokens.VerificationCode()
	if err != nil {
		return "", oops.Code("AUTH_SIGNUP_FAILED").With("operation", "generate code").Wrap(err)
	}

	now := s.now()
	account := Account{
		ID:                     uuid.NewString(),
		Email:                  email,
		PasswordHash:           hash,
		VerificationCode:       code,
		VerificationCodeExpiry: now.Add(s.codeTTL),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		s.recorder.AuthEvent("signup", outcomeFailure)
		if errors.Is(err, shared.ErrConflict) {
			return "", shared.ErrConflict
		}
		return "", oops.Code("AUTH_SIGNUP_FAILED").With("operation", "create account").Wrap(err)
	}

	s.notify(ctx, "verification", account.ID, func(ctx context.Context) error {
		return s.notifier.SendVerificationCode(ctx, email, code)
	})
	s.recorder.AuthEvent("signup", outcomeSuccess)
	return account.ID, nil
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords are indistinguishable; unverified accounts never get a session.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	account, err := s.store.Accounts().FindByEmail(ctx, email)
	found := err == nil
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return "", oops.Code("AUTH_LOGIN_FAILED").With("operation", "find account").Wrap(err)
	}

	target := dummyPasswordHash
	if found {
		target = account.PasswordHash
	}
	matched, verifyErr := s.hasher.Verify(password, target)
	if verifyErr != nil && found {
		s.logger.Warn("stored password hash unreadable", slog.String("account_id", account.ID), slog.Any("error", verifyErr))
	}

	switch {
	case !found:
		s.recorder.AuthEvent("login", outcomeFailure)
		return "", shared.ErrInvalidCredentials
	case !account.EmailVerified:
		s.recorder.AuthEvent("login", outcomeFailure)
		return "", shared.ErrEmailNotVerified
	case verifyErr != nil || !matched:
		s.recorder.AuthEvent("login", outcomeFailure)
		return "", shared.ErrInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, account.ID, password)
	}

	token, err := s.sessions.Create(ctx, account.ID)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").With("operation", "create session").Wrap(err)
	}
	s.recorder.AuthEvent("login", outcomeSuccess)
	return token, nil
}

// Logout revokes the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	s.recorder.AuthEvent("logout", outcomeSuccess)
	return nil
}

// ValidateSession resolves a session token to an account id.
func (s *Service) ValidateSession(ctx context.Context, token string) (string, bool, error) {
	return s.sessions.Validate(ctx, token)
}

// VerifyEmail consumes a verification code and opens a session in the same
// transaction. Wrong, expired and already used codes all report
// shared.ErrInvalidOrExpiredCode.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (string, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || !isSixDigits(code) {
		s.recorder.AuthEvent("verify_email", outcomeFailure)
		return "", shared.ErrInvalidOrExpiredCode
	}

	var (
		accountID string
		token     string
	)
	err := s.store.WithTx(ctx, func(tx Store) error {
		id, err := tx.Accounts().ConsumeVerificationCode(ctx, email, code, s.now())
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrInvalidOrExpiredCode
		}
		if err != nil {
			return oops.Code("AUTH_VERIFY_FAILED").With("operation", "consume code").Wrap(err)
		}
		accountID = id

		token, err = s.sessions.with(tx.Sessions()).Create(ctx, id)
		return err
	})
	if err != nil {
		s.recorder.AuthEvent("verify_email", outcomeFailure)
		if errors.Is(err, shared.ErrInvalidOrExpiredCode) {
			return "", shared.ErrInvalidOrExpiredCode
		}
		return "", oops.Code("AUTH_VERIFY_FAILED").Wrap(err)
	}

	s.notify(ctx, "welcome", accountID, func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, email)
	})
	s.recorder.AuthEvent("verify_email", outcomeSuccess)
	return token, nil
}

// ResendVerificationEmail issues a fresh code. Unknown and already verified
// addresses succeed silently.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	account, err := s.store.Accounts().FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		s.recorder.AuthEvent("resend_verification", outcomeIgnored)
		return nil
	}
	if err != nil {
		return oops.Code("AUTH_RESEND_FAILED").With("operation", "find account").Wrap(err)
	}
	if account.EmailVerified {
		s.recorder.AuthEvent("resend_verification", outcomeIgnored)
		return nil
	}

	code, err := s.tokens.VerificationCode()
	if err != nil {
		return oops.Code("AUTH_RESEND_FAILED").With("operation", "generate code").Wrap(err)
	}
	now := s.now()
	err = s.store.Accounts().SetVerificationCode(ctx, account.ID, code, now.Add(s.codeTTL), now)
	if errors.Is(err, shared.ErrNotFound) {
		// verified concurrently
		s.recorder.AuthEvent("resend_verification", outcomeIgnored)
		return nil
	}
	if err != nil {
		return oops.Code("AUTH_RESEND_FAILED").With("operation", "store code").Wrap(err)
	}

	s.logger.Debug("verification code reissued",
		slog.String("account_id", account.ID),
		slog.Bool("replaced_active_code", account.HasActiveCode(now)))
	s.notify(ctx, "verification", account.ID, func(ctx context.Context) error {
		return s.notifier.SendVerificationCode(ctx, email, code)
	})
	s.recorder.AuthEvent("resend_verification", outcomeSuccess)
	return nil
}

// ForgotPassword stores a one hour reset token and emails the link. Unknown
// addresses succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	account, err := s.store.Accounts().FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		s.recorder.AuthEvent("forgot_password", outcomeIgnored)
		return nil
	}
	if err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").With("operation", "find account").Wrap(err)
	}

	token, err := s.tokens.ResetToken()
	if err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").With("operation", "generate token").Wrap(err)
	}
	now := s.now()
	if err := s.store.Accounts().SetResetToken(ctx, account.ID, DigestToken(token), now.Add(s.resetTTL), now); err != nil {
		return oops.Code("AUTH_FORGOT_FAILED").With("operation", "store token").Wrap(err)
	}

	s.notify(ctx, "password_reset", account.ID, func(ctx context.Context) error {
		return s.notifier.SendPasswordReset(ctx, email, token)
	})
	s.recorder.AuthEvent("forgot_password", outcomeSuccess)
	return nil
}

// ResetPassword replaces the password behind a live reset token and burns the
// token. Existing sessions stay valid.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		s.recorder.AuthEvent("reset_password", outcomeFailure)
		return shared.ErrInvalidOrExpiredToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").With("operation", "hash password").Wrap(err)
	}

	_, err = s.store.Accounts().ConsumeResetToken(ctx, DigestToken(token), hash, s.now())
	if errors.Is(err, shared.ErrNotFound) {
		s.recorder.AuthEvent("reset_password", outcomeFailure)
		return shared.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").With("operation", "consume token").Wrap(err)
	}
	s.recorder.AuthEvent("reset_password", outcomeSuccess)
	return nil
}

// ChangePassword replaces the password after re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	account, err := s.findByID(ctx, userID, "AUTH_CHANGE_PASSWORD_FAILED")
	if err != nil {
		return err
	}

	matched, err := s.hasher.Verify(current, account.PasswordHash)
	if err != nil || !matched {
		s.recorder.AuthEvent("change_password", outcomeFailure)
		return shared.ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}
	if err := s.store.Accounts().UpdatePassword(ctx, account.ID, hash, s.now()); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrNotFound
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "update password").Wrap(err)
	}
	s.recorder.AuthEvent("change_password", outcomeSuccess)
	return nil
}

// GetUserProfile returns the public projection of an account.
func (s *Service) GetUserProfile(ctx context.Context, userID string) (Profile, error) {
	account, err := s.findByID(ctx, userID, "AUTH_PROFILE_FAILED")
	if err != nil {
		return Profile{}, err
	}
	return ProfileOf(account), nil
}

// UpdateUserProfile applies the allowed fields of patch.
func (s *Service) UpdateUserProfile(ctx context.Context, userID string, patch ProfilePatch) (Profile, error) {
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if utf8.RuneCountInString(name) > MaxDisplayNameLength {
			return Profile{}, fmt.Errorf("%w: displayName must be at most %d characters", shared.ErrValidation, MaxDisplayNameLength)
		}
		patch.DisplayName = &name
	}
	if patch.Empty() {
		return s.GetUserProfile(ctx, userID)
	}

	account, err := s.store.Accounts().UpdateProfile(ctx, userID, patch, s.now())
	if errors.Is(err, shared.ErrNotFound) {
		return Profile{}, shared.ErrNotFound
	}
	if err != nil {
		return Profile{}, oops.Code("AUTH_PROFILE_FAILED").With("operation", "update profile").Wrap(err)
	}
	return ProfileOf(account), nil
}

// PurgeExpired removes expired sessions and stale reset tokens.
func (s *Service) PurgeExpired(ctx context.Context) (sessions, resetTokens int64, err error) {
	sessions, err = s.sessions.Purge(ctx)
	if err != nil {
		return 0, 0, err
	}
	resetTokens, err = s.store.Accounts().ClearExpiredResetTokens(ctx, s.now())
	if err != nil {
		return sessions, 0, oops.Code("AUTH_PURGE_FAILED").With("operation", "clear reset tokens").Wrap(err)
	}
	return sessions, resetTokens, nil
}

func (s *Service) findByID(ctx context.Context, userID, code string) (Account, error) {
	if userID == "" {
		return Account{}, shared.ErrNotFound
	}
	account, err := s.store.Accounts().FindByID(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return Account{}, shared.ErrNotFound
	}
	if err != nil {
		return Account{}, oops.Code(code).With("operation", "find account").Wrap(err)
	}
	return account, nil
}

// upgradeHash rewrites a legacy hash after a successful login. Failures only
// cost the upgrade, never the login.
func (s *Service) upgradeHash(ctx context.Context, accountID, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.store.Accounts().UpdatePassword(ctx, accountID, hash, s.now())
	}
	if err != nil {
		s.logger.Warn("password hash upgrade failed", slog.String("account_id", accountID), slog.Any("error", err))
		return
	}
	s.logger.Info("password hash upgraded", slog.String("account_id", accountID))
}

// notify sends an email after state is committed. Delivery failures are
// logged and counted but never returned.
func (s *Service) notify(ctx context.Context, kind, accountID string, send func(context.Context) error) {
	if s.notifier == nil {
		return
	}
	if err := send(ctx); err != nil {
		s.recorder.MailFailure(kind)
		shared.LogError(s.logger, "email delivery failed",
			oops.Code("AUTH_DELIVERY_FAILED").With("kind", kind).With("account_id", accountID).Wrap(err))
	}
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: Email is required", shared.ErrValidation)
	}
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: Email is invalid", shared.ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("%w: Password must be at least %d characters", shared.ErrValidation, MinPasswordLength)
	}
	return nil
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
