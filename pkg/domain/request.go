package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the state of a request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// RequestType distinguishes friend requests from plan-join requests.
type RequestType string

const (
	RequestFriend RequestType = "friend"
	RequestPlan   RequestType = "plan"
)

// Request is a directed proposal awaiting the target user's decision.
type Request struct {
	ID          uuid.UUID     `json:"id"`
	RequestedBy uuid.UUID     `json:"requested_by"`
	RequestedTo uuid.UUID     `json:"requested_to"`
	Status      RequestStatus `json:"status"`
	Type        RequestType   `json:"type"`
	PlanID      *uuid.UUID    `json:"plan_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsPending returns true if the request has not been answered.
func (r *Request) IsPending() bool {
	return r.Status == RequestPending
}

// Counterpart returns the other participant.
func (r *Request) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.RequestedBy == userID {
		return r.RequestedTo
	}
	return r.RequestedBy
}

// CanTransition reports whether status may move to next.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	return s == RequestPending && (next == RequestAccepted || next == RequestRejected)
}
