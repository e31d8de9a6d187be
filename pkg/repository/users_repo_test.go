package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/planhub/pkg/domain"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "planhub"}

	dsn := cfg.DSN()

	assert.Equal(t, "postgres://u:p%40ss@db:5432/planhub?sslmode=disable", dsn)
}

func TestCommitWithError(t *testing.T) {
	if CommitWithError(nil) != nil {
		t.Fatal("CommitWithError(nil) should be nil")
	}

	err := CommitWithError(domain.ErrOTPInvalid)
	if !errors.Is(err, domain.ErrOTPInvalid) {
		t.Errorf("wrapped error should still match: %v", err)
	}
	if domain.KindOf(err) != domain.KindInvalidInput {
		t.Errorf("KindOf = %v, want invalid input", domain.KindOf(err))
	}
}

func TestUsersRepository_CreateAndLookup(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewUsersRepository(db)
	user := seedUser(t, db, uniqueEmail())

	got, err := repo.GetByIdentifier(ctx, user.Email, domain.LoginStatuses)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.False(t, got.Verified)

	_, err = repo.GetByIdentifier(ctx, user.Email, []domain.UserStatus{domain.UserStatusRestricted})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	dup := *user
	dup.ID = uuid.New()
	err = repo.CreateTx(ctx, db, &dup)
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUsersRepository_RecordLoginFailure(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewUsersRepository(db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("locks at threshold", func(t *testing.T) {
		user := seedUser(t, db, uniqueEmail())
		rule := domain.LockoutRule{MaxAttempts: 2, LockUntil: now.Add(15 * time.Minute), Strategy: domain.LockoutExtend}

		a, err := repo.RecordLoginFailure(ctx, user.ID, rule, now)
		require.NoError(t, err)
		assert.Equal(t, 1, a.WrongLoginAttempts)
		assert.False(t, a.IsRestricted)

		a, err = repo.RecordLoginFailure(ctx, user.ID, rule, now)
		require.NoError(t, err)
		assert.Equal(t, 2, a.WrongLoginAttempts)
		assert.True(t, a.IsRestricted)
		require.NotNil(t, a.RestrictionLeftAt)
		assert.True(t, a.RestrictionLeftAt.Equal(rule.LockUntil))
	})

	t.Run("extend keeps earlier lock", func(t *testing.T) {
		user := seedUser(t, db, uniqueEmail())
		first := domain.LockoutRule{MaxAttempts: 1, LockUntil: now.Add(5 * time.Minute), Strategy: domain.LockoutExtend}
		second := domain.LockoutRule{MaxAttempts: 1, LockUntil: now.Add(20 * time.Minute), Strategy: domain.LockoutExtend}

		_, err := repo.RecordLoginFailure(ctx, user.ID, first, now)
		require.NoError(t, err)
		a, err := repo.RecordLoginFailure(ctx, user.ID, second, now)
		require.NoError(t, err)
		assert.True(t, a.RestrictionLeftAt.Equal(first.LockUntil))
	})

	t.Run("overwrite replaces lock", func(t *testing.T) {
		user := seedUser(t, db, uniqueEmail())
		first := domain.LockoutRule{MaxAttempts: 1, LockUntil: now.Add(5 * time.Minute), Strategy: domain.LockoutOverwrite}
		second := domain.LockoutRule{MaxAttempts: 1, LockUntil: now.Add(20 * time.Minute), Strategy: domain.LockoutOverwrite}

		_, err := repo.RecordLoginFailure(ctx, user.ID, first, now)
		require.NoError(t, err)
		a, err := repo.RecordLoginFailure(ctx, user.ID, second, now)
		require.NoError(t, err)
		assert.True(t, a.RestrictionLeftAt.Equal(second.LockUntil))
	})

	t.Run("concurrent failures are all counted", func(t *testing.T) {
		user := seedUser(t, db, uniqueEmail())
		rule := domain.LockoutRule{MaxAttempts: 100, LockUntil: now.Add(time.Minute), Strategy: domain.LockoutExtend}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.RecordLoginFailure(ctx, user.ID, rule, now)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Authentication.WrongLoginAttempts)
	})
}

func TestUsersRepository_ReleaseExpiredLock(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewUsersRepository(db)
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := seedUser(t, db, uniqueEmail())

	rule := domain.LockoutRule{MaxAttempts: 1, LockUntil: now.Add(time.Minute), Strategy: domain.LockoutExtend}
	_, err := repo.RecordLoginFailure(ctx, user.ID, rule, now)
	require.NoError(t, err)

	require.NoError(t, repo.ReleaseExpiredLock(ctx, user.ID, now))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.Authentication.IsRestricted, "an active lock must survive")

	require.NoError(t, repo.ReleaseExpiredLock(ctx, user.ID, now.Add(2*time.Minute)))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.Authentication.IsRestricted)
	assert.Zero(t, got.Authentication.WrongLoginAttempts)
}

func TestUsersRepository_UpdatePasswordClearsCounters(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewUsersRepository(db)
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := seedUser(t, db, uniqueEmail())

	rule := domain.LockoutRule{MaxAttempts: 1, LockUntil: now.Add(time.Hour), Strategy: domain.LockoutExtend}
	_, err := repo.RecordLoginFailure(ctx, user.ID, rule, now)
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePasswordTx(ctx, db, user.ID, "new-hash", now))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Zero(t, got.Authentication.WrongLoginAttempts)
	assert.False(t, got.Authentication.IsRestricted)
	require.NotNil(t, got.Authentication.PasswordChangedAt)
	assert.True(t, got.Authentication.PasswordChangedAt.Equal(now))
}

func TestUsersRepository_SoftDeleteFreesEmail(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewUsersRepository(db)
	email := uniqueEmail()
	user := seedUser(t, db, email)

	require.NoError(t, repo.SoftDelete(ctx, user.ID, time.Now()))

	_, err := repo.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	exists, err := repo.ExistsByEmail(ctx, email)
	require.NoError(t, err)
	assert.False(t, exists)

	again := seedUser(t, db, email)
	assert.NotEqual(t, user.ID, again.ID)

	var stored string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, user.ID).Scan(&stored))
	assert.True(t, strings.HasPrefix(stored, email+"_deleted_"))

	assert.ErrorIs(t, repo.SoftDelete(ctx, user.ID, time.Now()), domain.ErrUserNotFound)
}
