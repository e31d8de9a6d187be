package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

// UserStore is the user persistence used by the auth services.
// *repository.UsersRepository implements it.
type UserStore interface {
	CreateTx(ctx context.Context, q repository.Querier, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string, statuses []domain.UserStatus) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	MarkVerifiedTx(ctx context.Context, q repository.Querier, userID uuid.UUID, now time.Time) error
	UpdatePasswordTx(ctx context.Context, q repository.Querier, userID uuid.UUID, hash string, now time.Time) error
	SetDeviceToken(ctx context.Context, userID uuid.UUID, token string) error
	SoftDelete(ctx context.Context, userID uuid.UUID, now time.Time) error
}

// LockoutStore applies lockout counter updates atomically.
type LockoutStore interface {
	RecordLoginFailure(ctx context.Context, userID uuid.UUID, rule domain.LockoutRule, now time.Time) (domain.Authentication, error)
	ResetLoginFailures(ctx context.Context, userID uuid.UUID, now time.Time) error
	ReleaseExpiredLock(ctx context.Context, userID uuid.UUID, now time.Time) error
}

// VerificationStore persists one-time-code records.
type VerificationStore interface {
	GetForUpdateTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose, now time.Time) (*domain.VerificationRecord, error)
	UpsertTx(ctx context.Context, q repository.Querier, rec *domain.VerificationRecord, cooldown time.Duration) (*domain.VerificationRecord, error)
	IncrementAttemptsTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose) error
	DeleteTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose) error
}

// ResetTokenStore persists hashed reset tokens.
type ResetTokenStore interface {
	CreateTx(ctx context.Context, q repository.Querier, token *domain.ResetToken) error
	DeleteTx(ctx context.Context, q repository.Querier, tokenHash string) (*domain.ResetToken, error)
}

// CodeDelivery sends a plaintext one-time code to its owner. Implementations
// must not block on the transport.
type CodeDelivery interface {
	DeliverCode(ctx context.Context, identifier string, purpose domain.Purpose, code string, expiresIn time.Duration)
}

var (
	_ UserStore         = (*repository.UsersRepository)(nil)
	_ LockoutStore      = (*repository.UsersRepository)(nil)
	_ VerificationStore = (*repository.VerificationRepository)(nil)
	_ ResetTokenStore   = (*repository.ResetTokensRepository)(nil)
)
