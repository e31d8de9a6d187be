package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
)

// FriendshipsRepository stores friendships as canonical (low, high) pairs.
type FriendshipsRepository struct {
	db *sql.DB
}

// NewFriendshipsRepository creates a new friendships repository.
func NewFriendshipsRepository(db *sql.DB) *FriendshipsRepository {
	return &FriendshipsRepository{db: db}
}

// ExistsTx reports whether a and b are already friends.
func (r *FriendshipsRepository) ExistsTx(ctx context.Context, q Querier, a, b uuid.UUID) (bool, error) {
	low, high := domain.OrderedPair(a, b)
	query := `SELECT EXISTS(SELECT 1 FROM friendships WHERE user_low = $1 AND user_high = $2)`
	var exists bool
	err := q.QueryRowContext(ctx, query, low, high).Scan(&exists)
	return exists, err
}

// CreateTx inserts the friendship. A pair that already exists yields
// ErrFriendshipExists.
func (r *FriendshipsRepository) CreateTx(ctx context.Context, q Querier, f *domain.Friendship) error {
	query := `
		INSERT INTO friendships (id, user_low, user_high, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_low, user_high) DO NOTHING
	`
	res, err := q.ExecContext(ctx, query, f.ID, f.UserLow, f.UserHigh, f.RequestID, f.CreatedAt)
	if err != nil {
		return err
	}
	return expectOne(res, domain.ErrFriendshipExists)
}

// ListFriendIDs returns the ids of everyone userID is friends with.
func (r *FriendshipsRepository) ListFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT CASE WHEN user_low = $1 THEN user_high ELSE user_low END
		FROM friendships
		WHERE user_low = $1 OR user_high = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
