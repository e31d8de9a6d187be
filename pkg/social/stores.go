package social

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

// UserStore is the user lookup the social graph needs.
type UserStore interface {
	GetByIDTx(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.User, error)
	ProfilesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Profile, error)
}

// RequestStore persists friend and plan-join requests.
type RequestStore interface {
	CreateTx(ctx context.Context, q repository.Querier, req *domain.Request) error
	FindPendingTx(ctx context.Context, q repository.Querier, a, b uuid.UUID, typ domain.RequestType, planID *uuid.UUID) (*domain.Request, error)
	GetForUpdateTx(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Request, error)
	TransitionTx(ctx context.Context, q repository.Querier, id uuid.UUID, status domain.RequestStatus, now time.Time) error
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]*domain.Request, error)
}

// FriendshipStore persists friendships.
type FriendshipStore interface {
	ExistsTx(ctx context.Context, q repository.Querier, a, b uuid.UUID) (bool, error)
	CreateTx(ctx context.Context, q repository.Querier, f *domain.Friendship) error
	ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// PlanStore persists plans and their collaborator sets.
type PlanStore interface {
	Create(ctx context.Context, plan *domain.Plan) error
	GetTx(ctx context.Context, q repository.Querier, id uuid.UUID, forUpdate bool) (*domain.Plan, error)
	AddCollaboratorTx(ctx context.Context, q repository.Querier, planID, userID uuid.UUID, now time.Time) (bool, error)
}

// NotificationStore reads a user's persisted notifications.
type NotificationStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, now time.Time) error
}

// Notifier performs best-effort side effects once a transaction has
// committed. Implementations must not block and must not return errors.
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification)
	Emit(ctx context.Context, event string, payload any, room string) bool
}

var (
	_ UserStore         = (*repository.UsersRepository)(nil)
	_ RequestStore      = (*repository.RequestsRepository)(nil)
	_ FriendshipStore   = (*repository.FriendshipsRepository)(nil)
	_ PlanStore         = (*repository.PlansRepository)(nil)
	_ NotificationStore = (*repository.NotificationsRepository)(nil)
)
