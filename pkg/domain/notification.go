package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies what a notification is about.
type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_request_accepted"
	NotificationFriendRejected NotificationType = "friend_request_rejected"
	NotificationPlanRequest    NotificationType = "plan_request"
	NotificationPlanAccepted   NotificationType = "plan_request_accepted"
	NotificationPlanRejected   NotificationType = "plan_request_rejected"
)

// Notification is a persisted message for one user.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	ActorID   *uuid.UUID       `json:"actor_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Data      json.RawMessage  `json:"data,omitempty"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Live-update event names.
const (
	EventNewChat       = "newChat"
	EventNotification  = "notification"
	EventRequestUpdate = "requestUpdated"
)

// UserRoom is the live-update room that reaches one user.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}
