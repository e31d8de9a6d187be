package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

// memDB is an in-memory stand-in for the Postgres repositories. WithTx
// serializes units of work and restores a snapshot when one fails, so
// rollback and CommitWithError behave like the real Tx.
type memDB struct {
	mu      sync.Mutex
	users   map[uuid.UUID]domain.User
	records map[string]domain.VerificationRecord
	resets  map[string]domain.ResetToken
}

func newMemDB() *memDB {
	return &memDB{
		users:   make(map[uuid.UUID]domain.User),
		records: make(map[string]domain.VerificationRecord),
		resets:  make(map[string]domain.ResetToken),
	}
}

type memSnapshot struct {
	users   map[uuid.UUID]domain.User
	records map[string]domain.VerificationRecord
	resets  map[string]domain.ResetToken
}

func (db *memDB) snapshot() memSnapshot {
	s := memSnapshot{
		users:   make(map[uuid.UUID]domain.User, len(db.users)),
		records: make(map[string]domain.VerificationRecord, len(db.records)),
		resets:  make(map[string]domain.ResetToken, len(db.resets)),
	}
	for k, v := range db.users {
		s.users[k] = v
	}
	for k, v := range db.records {
		s.records[k] = v
	}
	for k, v := range db.resets {
		s.resets[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.users = s.users
	db.records = s.records
	db.resets = s.resets
}

func (db *memDB) WithTx(ctx context.Context, fn func(q repository.Querier) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.snapshot()
	err := fn(nil)
	if err == nil {
		return nil
	}
	if inner, ok := repository.Committed(err); ok {
		return inner
	}
	db.restore(snap)
	return err
}

func (db *memDB) user(t *testing.T, id uuid.UUID) domain.User {
	t.Helper()
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		t.Fatalf("user %s not stored", id)
	}
	return u
}

func (db *memDB) record(identifier string, purpose domain.Purpose) (domain.VerificationRecord, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.records[recordKey(identifier, purpose)]
	return r, ok
}

func (db *memDB) resetCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.resets)
}

func recordKey(identifier string, purpose domain.Purpose) string {
	return identifier + "|" + string(purpose)
}

// memUsers implements UserStore and LockoutStore. Methods ending in Tx run
// under the WithTx lock; the others take it themselves.
type memUsers struct {
	db *memDB
}

func (s *memUsers) CreateTx(ctx context.Context, q repository.Querier, user *domain.User) error {
	for _, u := range s.db.users {
		if u.Status == domain.UserStatusDeleted {
			continue
		}
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
		if user.Username != nil && u.Username != nil && *u.Username == *user.Username {
			return domain.ErrUsernameTaken
		}
	}
	s.db.users[user.ID] = *user
	return nil
}

func (s *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok || u.Status == domain.UserStatusDeleted {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email && u.Status != domain.UserStatusDeleted {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUsers) GetByIdentifier(ctx context.Context, identifier string, statuses []domain.UserStatus) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		match := u.Email == identifier || (u.Username != nil && *u.Username == identifier)
		if !match {
			continue
		}
		for _, st := range statuses {
			if u.Status == st {
				return &u, nil
			}
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *memUsers) MarkVerifiedTx(ctx context.Context, q repository.Querier, userID uuid.UUID, now time.Time) error {
	u, ok := s.db.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Verified = true
	u.UpdatedAt = now
	s.db.users[userID] = u
	return nil
}

func (s *memUsers) UpdatePasswordTx(ctx context.Context, q repository.Querier, userID uuid.UUID, hash string, now time.Time) error {
	u, ok := s.db.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.Authentication = u.Authentication.Cleared()
	changed := now
	u.Authentication.PasswordChangedAt = &changed
	s.db.users[userID] = u
	return nil
}

func (s *memUsers) SetDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u := s.db.users[userID]
	u.DeviceToken = &token
	s.db.users[userID] = u
	return nil
}

func (s *memUsers) SoftDelete(ctx context.Context, userID uuid.UUID, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok || u.Status == domain.UserStatusDeleted {
		return domain.ErrUserNotFound
	}
	u.Status = domain.UserStatusDeleted
	u.Email = u.Email + "_deleted_" + now.Format("20060102150405")
	s.db.users[userID] = u
	return nil
}

func (s *memUsers) RecordLoginFailure(ctx context.Context, userID uuid.UUID, rule domain.LockoutRule, now time.Time) (domain.Authentication, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return domain.Authentication{}, domain.ErrUserNotFound
	}
	u.Authentication = rule.Apply(u.Authentication, now)
	s.db.users[userID] = u
	return u.Authentication, nil
}

func (s *memUsers) ResetLoginFailures(ctx context.Context, userID uuid.UUID, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u := s.db.users[userID]
	u.Authentication = u.Authentication.Cleared()
	s.db.users[userID] = u
	return nil
}

func (s *memUsers) ReleaseExpiredLock(ctx context.Context, userID uuid.UUID, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u := s.db.users[userID]
	if u.Authentication.LockExpired(now) {
		u.Authentication = u.Authentication.Cleared()
		s.db.users[userID] = u
	}
	return nil
}

type memVerifications struct {
	db *memDB
}

func (s *memVerifications) GetForUpdateTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose, now time.Time) (*domain.VerificationRecord, error) {
	r, ok := s.db.records[recordKey(identifier, purpose)]
	if !ok || !r.Live(now) {
		return nil, domain.ErrOTPNotFound
	}
	return &r, nil
}

func (s *memVerifications) UpsertTx(ctx context.Context, q repository.Querier, rec *domain.VerificationRecord, cooldown time.Duration) (*domain.VerificationRecord, error) {
	key := recordKey(rec.Identifier, rec.Purpose)
	next := *rec
	next.Attempts = 0
	next.RequestCount = 1
	if old, ok := s.db.records[key]; ok && old.Live(rec.LatestRequestAt) {
		if rec.LatestRequestAt.Sub(old.LatestRequestAt) < cooldown {
			return nil, domain.ErrOTPCooldown
		}
		next.ID = old.ID
		next.RequestCount = old.RequestCount + 1
		next.CreatedAt = old.CreatedAt
	}
	s.db.records[key] = next
	return &next, nil
}

func (s *memVerifications) IncrementAttemptsTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose) error {
	key := recordKey(identifier, purpose)
	r, ok := s.db.records[key]
	if !ok {
		return domain.ErrOTPNotFound
	}
	r.Attempts++
	s.db.records[key] = r
	return nil
}

func (s *memVerifications) DeleteTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose) error {
	delete(s.db.records, recordKey(identifier, purpose))
	return nil
}

type memResetTokens struct {
	db *memDB
}

func (s *memResetTokens) CreateTx(ctx context.Context, q repository.Querier, token *domain.ResetToken) error {
	s.db.resets[token.TokenHash] = *token
	return nil
}

func (s *memResetTokens) DeleteTx(ctx context.Context, q repository.Querier, tokenHash string) (*domain.ResetToken, error) {
	t, ok := s.db.resets[tokenHash]
	if !ok {
		return nil, domain.ErrResetTokenNotFound
	}
	delete(s.db.resets, tokenHash)
	return &t, nil
}

// captureDelivery keeps the last code sent per (identifier, purpose).
type captureDelivery struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
}

func (d *captureDelivery) DeliverCode(ctx context.Context, identifier string, purpose domain.Purpose, code string, expiresIn time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.codes == nil {
		d.codes = make(map[string]string)
	}
	d.codes[recordKey(identifier, purpose)] = code
	d.sent++
}

func (d *captureDelivery) code(t *testing.T, identifier string, purpose domain.Purpose) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	code, ok := d.codes[recordKey(identifier, purpose)]
	if !ok {
		t.Fatalf("no %s code delivered to %s", purpose, identifier)
	}
	return code
}

func (d *captureDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

// plainHasher skips argon2 so service tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "plain$" + plain, nil }
func (plainHasher) Compare(plain, digest string) bool  { return digest == "plain$"+plain }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	last := code[len(code)-1]
	if last == '9' {
		return code[:len(code)-1] + "0"
	}
	return code[:len(code)-1] + string(last+1)
}

type harness struct {
	db       *memDB
	users    *memUsers
	clock    *fakeClock
	delivery *captureDelivery
	lockout  *LockoutPolicy
	otp      *OTPManager
	resets   *ResetTokenService
	tokens   *TokenService
	login    *LoginService
	account  *AccountService
}

type harnessOptions struct {
	lockout LockoutConfig
	otp     OTPConfig
}

func defaultHarnessOptions() harnessOptions {
	return harnessOptions{
		lockout: LockoutConfig{MaxAttempts: 3, Restriction: 15 * time.Minute, Strategy: domain.LockoutExtend},
		otp: OTPConfig{
			Cooldown:    time.Minute,
			MaxAttempts: 3,
			MaxRequests: 5,
			CodeTTL:     10 * time.Minute,
			RecordTTL:   time.Hour,
			Digits:      6,
		},
	}
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	db := newMemDB()
	users := &memUsers{db: db}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	delivery := &captureDelivery{}
	hasher := plainHasher{}

	lockout := NewLockoutPolicy(opts.lockout, users, nil)
	lockout.now = clock.Now
	otp := NewOTPManager(opts.otp, db, &memVerifications{db: db}, delivery, nil)
	otp.now = clock.Now
	resets := NewResetTokenService(DefaultResetTokenTTL, &memResetTokens{db: db})
	resets.now = clock.Now
	tokens := NewTokenService(TokenConfig{JWTSecret: []byte("test-secret"), Issuer: "planhub-test"})
	tokens.now = clock.Now

	login := NewLoginService(users, hasher, lockout, otp, tokens, nil)
	login.now = clock.Now
	account := NewAccountService(AccountConfig{StrictEmailValidation: true}, AccountDeps{
		Tx:      db,
		Users:   users,
		Hasher:  hasher,
		Policy:  &PasswordPolicy{MinLength: 8},
		OTP:     otp,
		Resets:  resets,
		Tokens:  tokens,
		Lockout: lockout,
	})
	account.now = clock.Now

	return &harness{
		db:       db,
		users:    users,
		clock:    clock,
		delivery: delivery,
		lockout:  lockout,
		otp:      otp,
		resets:   resets,
		tokens:   tokens,
		login:    login,
		account:  account,
	}
}

// seedUser stores a user directly, bypassing signup.
func (h *harness) seedUser(t *testing.T, email, password string, verified bool) *domain.User {
	t.Helper()
	hash, _ := plainHasher{}.Hash(password)
	now := h.clock.Now()
	u := domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(email),
		Name:         "Test User",
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
		Verified:     verified,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	h.db.mu.Lock()
	h.db.users[u.ID] = u
	h.db.mu.Unlock()
	return &u
}
