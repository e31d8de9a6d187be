package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResetToken is a single-use password reset credential. Only the hash is stored.
type ResetToken struct {
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
