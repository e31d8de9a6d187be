package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
)

// NotificationsRepository handles notification persistence.
type NotificationsRepository struct {
	db *sql.DB
}

// NewNotificationsRepository creates a new notifications repository.
func NewNotificationsRepository(db *sql.DB) *NotificationsRepository {
	return &NotificationsRepository{db: db}
}

// Create stores a notification.
func (r *NotificationsRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, actor_id, type, title, body, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var data any
	if len(n.Data) > 0 {
		data = []byte(n.Data)
	}
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.ActorID, n.Type, n.Title, n.Body, data, n.CreatedAt,
	)
	return err
}

// ListByUser returns the latest notifications of a user.
func (r *NotificationsRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, actor_id, type, title, body, data, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		var data []byte
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.ActorID, &n.Type, &n.Title, &n.Body, &data, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		n.Data = data
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead sets read_at on a notification owned by userID.
func (r *NotificationsRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, now time.Time) error {
	query := `
		UPDATE notifications
		SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID, now)
	if err != nil {
		return err
	}
	return expectOne(res, domain.ErrNotificationNotFound)
}
