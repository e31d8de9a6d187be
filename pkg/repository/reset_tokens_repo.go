package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tendant/planhub/pkg/domain"
)

// ResetTokensRepository handles password reset token persistence.
type ResetTokensRepository struct {
	db *sql.DB
}

// NewResetTokensRepository creates a new reset tokens repository.
func NewResetTokensRepository(db *sql.DB) *ResetTokensRepository {
	return &ResetTokensRepository{db: db}
}

// CreateTx stores a hashed reset token.
func (r *ResetTokensRepository) CreateTx(ctx context.Context, q Querier, token *domain.ResetToken) error {
	query := `
		INSERT INTO reset_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := q.ExecContext(ctx, query, token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt)
	return err
}

// DeleteTx removes the token and returns what it held. Two concurrent
// callers can never both receive the row.
func (r *ResetTokensRepository) DeleteTx(ctx context.Context, q Querier, tokenHash string) (*domain.ResetToken, error) {
	query := `
		DELETE FROM reset_tokens
		WHERE token_hash = $1
		RETURNING token_hash, user_id, expires_at, created_at
	`
	token := &domain.ResetToken{}
	err := q.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.TokenHash, &token.UserID, &token.ExpiresAt, &token.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrResetTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// PurgeExpired deletes tokens past their expiry.
func (r *ResetTokensRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}
