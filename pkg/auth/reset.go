package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

// DefaultResetTokenTTL is how long a minted reset token stays redeemable.
const DefaultResetTokenTTL = 15 * time.Minute

// ResetTokenService mints and redeems single-use password reset tokens.
type ResetTokenService struct {
	ttl    time.Duration
	tokens ResetTokenStore
	now    func() time.Time
}

// NewResetTokenService creates a reset token service.
func NewResetTokenService(ttl time.Duration, tokens ResetTokenStore) *ResetTokenService {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenService{ttl: ttl, tokens: tokens, now: time.Now}
}

// MintTx stores a new token for userID and returns its plaintext.
func (s *ResetTokenService) MintTx(ctx context.Context, q repository.Querier, userID uuid.UUID) (string, error) {
	token, err := GenerateToken(resetTokenLen)
	if err != nil {
		return "", err
	}
	now := s.now()
	err = s.tokens.CreateTx(ctx, q, &domain.ResetToken{
		TokenHash: HashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// RedeemTx deletes the token and returns its owner. An expired token is
// deleted too, and the returned error keeps that deletion committed.
func (s *ResetTokenService) RedeemTx(ctx context.Context, q repository.Querier, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, domain.ErrResetTokenNotFound
	}
	stored, err := s.tokens.DeleteTx(ctx, q, HashToken(token))
	if err != nil {
		return uuid.Nil, err
	}
	if stored.Expired(s.now()) {
		return uuid.Nil, repository.CommitWithError(domain.ErrResetTokenExpired)
	}
	return stored.UserID, nil
}
