package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/engineerhub/engineerhub/internal/auth"
	"github.com/engineerhub/engineerhub/internal/shared"
)

// memStore is an in-memory auth.Store. Each repository call holds the lock,
// so conditional updates behave like single SQL statements.
type memStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	accounts map[string]auth.Account
	sessions map[string]auth.Session

	createErr         error
	findErr           error
	sessionCreateErr  error
	sessionCollisions int
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]auth.Account),
		sessions: make(map[string]auth.Session),
	}
}

func (m *memStore) Accounts() auth.AccountRepository { return memAccounts{m} }
func (m *memStore) Sessions() auth.SessionRepository { return memSessions{m} }

// WithTx serializes transactions, snapshots state and restores it when fn fails.
func (m *memStore) WithTx(ctx context.Context, fn func(auth.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	accounts := make(map[string]auth.Account, len(m.accounts))
	for k, v := range m.accounts {
		accounts[k] = v
	}
	sessions := make(map[string]auth.Session, len(m.sessions))
	for k, v := range m.sessions {
		sessions[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.accounts = accounts
		m.sessions = sessions
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) account(email string) (auth.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, true
		}
	}
	return auth.Account{}, false
}

func (m *memStore) put(a auth.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
}

func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type memAccounts struct{ m *memStore }

func (r memAccounts) Create(_ context.Context, account auth.Account) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createErr != nil {
		return r.m.createErr
	}
	for _, a := range r.m.accounts {
		if a.Email == account.Email {
			return shared.ErrConflict
		}
	}
	r.m.accounts[account.ID] = account
	return nil
}

func (r memAccounts) FindByEmail(_ context.Context, email string) (auth.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.findErr != nil {
		return auth.Account{}, r.m.findErr
	}
	for _, a := range r.m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return auth.Account{}, shared.ErrNotFound
}

func (r memAccounts) FindByID(_ context.Context, id string) (auth.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.findErr != nil {
		return auth.Account{}, r.m.findErr
	}
	a, ok := r.m.accounts[id]
	if !ok {
		return auth.Account{}, shared.ErrNotFound
	}
	return a, nil
}

func (r memAccounts) SetVerificationCode(_ context.Context, id, code string, expiresAt, now time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok || a.EmailVerified {
		return shared.ErrNotFound
	}
	a.VerificationCode = code
	a.VerificationCodeExpiry = expiresAt
	a.UpdatedAt = now
	r.m.accounts[id] = a
	return nil
}

func (r memAccounts) ConsumeVerificationCode(_ context.Context, email, code string, now time.Time) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, a := range r.m.accounts {
		if a.Email != email || a.EmailVerified || a.VerificationCode != code || !a.HasActiveCode(now) {
			continue
		}
		a.EmailVerified = true
		a.VerificationCode = ""
		a.VerificationCodeExpiry = time.Time{}
		a.UpdatedAt = now
		r.m.accounts[id] = a
		return id, nil
	}
	return "", shared.ErrNotFound
}

func (r memAccounts) SetResetToken(_ context.Context, id, digest string, expiresAt, now time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.ResetTokenDigest = digest
	a.ResetTokenExpiry = expiresAt
	a.UpdatedAt = now
	r.m.accounts[id] = a
	return nil
}

func (r memAccounts) ConsumeResetToken(_ context.Context, digest, passwordHash string, now time.Time) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, a := range r.m.accounts {
		if a.ResetTokenDigest == "" || a.ResetTokenDigest != digest || !now.Before(a.ResetTokenExpiry) {
			continue
		}
		a.PasswordHash = passwordHash
		a.ResetTokenDigest = ""
		a.ResetTokenExpiry = time.Time{}
		a.UpdatedAt = now
		r.m.accounts[id] = a
		return id, nil
	}
	return "", shared.ErrNotFound
}

func (r memAccounts) UpdatePassword(_ context.Context, id, passwordHash string, now time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = now
	r.m.accounts[id] = a
	return nil
}

func (r memAccounts) UpdateProfile(_ context.Context, id string, patch auth.ProfilePatch, now time.Time) (auth.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return auth.Account{}, shared.ErrNotFound
	}
	if patch.DisplayName != nil {
		a.DisplayName = *patch.DisplayName
	}
	a.UpdatedAt = now
	r.m.accounts[id] = a
	return a, nil
}

func (r memAccounts) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, a := range r.m.accounts {
		if a.ResetTokenDigest != "" && !now.Before(a.ResetTokenExpiry) {
			a.ResetTokenDigest = ""
			a.ResetTokenExpiry = time.Time{}
			r.m.accounts[id] = a
			n++
		}
	}
	return n, nil
}

type memSessions struct{ m *memStore }

func (r memSessions) Create(_ context.Context, session auth.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.sessionCreateErr != nil {
		return r.m.sessionCreateErr
	}
	if r.m.sessionCollisions > 0 {
		r.m.sessionCollisions--
		return shared.ErrConflict
	}
	if _, exists := r.m.sessions[session.TokenDigest]; exists {
		return shared.ErrConflict
	}
	r.m.sessions[session.TokenDigest] = session
	return nil
}

func (r memSessions) FindByDigest(_ context.Context, digest string) (auth.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[digest]
	if !ok {
		return auth.Session{}, shared.ErrNotFound
	}
	return s, nil
}

func (r memSessions) Delete(_ context.Context, digest string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.sessions, digest)
	return nil
}

func (r memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for digest, s := range r.m.sessions {
		if s.ExpiredAt(now) {
			delete(r.m.sessions, digest)
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	Kind  string
	Email string
	Value string
}

// fakeNotifier records outbound mail and fails when err is set.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) record(kind, email, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{Kind: kind, Email: email, Value: value})
	return nil
}

func (n *fakeNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	return n.record("verification", email, code)
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	return n.record("password_reset", email, token)
}

func (n *fakeNotifier) SendWelcome(_ context.Context, email string) error {
	return n.record("welcome", email, "")
}

func (n *fakeNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

func (n *fakeNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.Kind == kind {
			c++
		}
	}
	return c
}

type fakeRecorder struct {
	mu       sync.Mutex
	events   map[string]int
	failures map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{events: map[string]int{}, failures: map[string]int{}}
}

func (r *fakeRecorder) AuthEvent(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[operation+"/"+outcome]++
}

func (r *fakeRecorder) MailFailure(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fastHasher keeps tests quick; argon2 costs 64MB per hash.
type fastHasher struct{}

func (fastHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain$" + password, nil
}

func (fastHasher) Verify(password, hash string) (bool, error) {
	rest, ok := strings.CutPrefix(hash, "plain$")
	if !ok {
		if strings.HasPrefix(hash, "$") {
			return false, nil
		}
		return false, errors.New("malformed hash")
	}
	return rest == password, nil
}

func (fastHasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, "plain$")
}

type harness struct {
	store    *memStore
	notifier *fakeNotifier
	recorder *fakeRecorder
	clock    *fakeClock
	service  *auth.Service
}

func newHarness() *harness {
	h := &harness{
		store:    newMemStore(),
		notifier: &fakeNotifier{},
		recorder: newFakeRecorder(),
		clock:    newFakeClock(),
	}
	tokens := auth.NewRandomTokens()
	sessions := auth.NewSessionStore(h.store.Sessions(), tokens, auth.DefaultSessionTTL, h.clock.Now)
	h.service = auth.NewService(h.store, sessions, h.notifier, nil, auth.Options{
		Hasher:   fastHasher{},
		Tokens:   tokens,
		Recorder: h.recorder,
		Clock:    h.clock.Now,
	})
	return h
}

// signupVerified creates an account, verifies it and returns the session token.
func (h *harness) signupVerified(ctx context.Context, email, password string) (string, error) {
	if _, err := h.service.Signup(ctx, email, password); err != nil {
		return "", err
	}
	mail, ok := h.notifier.last("verification")
	if !ok {
		return "", errors.New("no verification mail")
	}
	return h.service.VerifyEmail(ctx, email, mail.Value)
}
