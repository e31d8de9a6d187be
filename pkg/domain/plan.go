package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a shared activity owned by one user.
type Plan struct {
	ID            uuid.UUID   `json:"id"`
	OwnerID       uuid.UUID   `json:"owner_id"`
	Title         string      `json:"title"`
	Collaborators []uuid.UUID `json:"collaborators"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasCollaborator returns true if userID is already on the plan.
func (p *Plan) HasCollaborator(userID uuid.UUID) bool {
	for _, id := range p.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}

// NonOwner returns whichever of a and b is not the owner, and false when
// neither or both are.
func (p *Plan) NonOwner(a, b uuid.UUID) (uuid.UUID, bool) {
	switch {
	case a == p.OwnerID && b != p.OwnerID:
		return b, true
	case b == p.OwnerID && a != p.OwnerID:
		return a, true
	default:
		return uuid.Nil, false
	}
}
