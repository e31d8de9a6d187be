package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Friendship is an undirected relationship. UserLow sorts before UserHigh so
// an unordered pair has exactly one representation.
type Friendship struct {
	ID        uuid.UUID
	UserLow   uuid.UUID
	UserHigh  uuid.UUID
	RequestID uuid.UUID
	CreatedAt time.Time
}

// OrderedPair returns a and b sorted by their byte representation.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// NewFriendship builds the canonical friendship for a pair.
func NewFriendship(a, b, requestID uuid.UUID, now time.Time) *Friendship {
	low, high := OrderedPair(a, b)
	return &Friendship{
		ID:        uuid.New(),
		UserLow:   low,
		UserHigh:  high,
		RequestID: requestID,
		CreatedAt: now,
	}
}

// Other returns the friend of userID.
func (f *Friendship) Other(userID uuid.UUID) uuid.UUID {
	if f.UserLow == userID {
		return f.UserHigh
	}
	return f.UserLow
}
