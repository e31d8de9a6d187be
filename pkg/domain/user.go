package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserStatusActive     UserStatus = "active"
	UserStatusRestricted UserStatus = "restricted"
	UserStatusDeleted    UserStatus = "deleted"
)

// Role is carried in issued tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents the account.
type User struct {
	ID             uuid.UUID
	Email          string
	Username       *string
	Name           string
	Role           Role
	Status         UserStatus
	Verified       bool
	PasswordHash   string
	DeviceToken    *string
	Authentication Authentication
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Authentication holds the lockout counters embedded in the user record.
type Authentication struct {
	IsRestricted       bool
	RestrictionLeftAt  *time.Time
	WrongLoginAttempts int
	PasswordChangedAt  *time.Time
}

// IsLocked returns true if the account is locked at the given instant.
func (a Authentication) IsLocked(now time.Time) bool {
	if a.RestrictionLeftAt == nil {
		return false
	}
	return now.Before(*a.RestrictionLeftAt)
}

// LockExpired reports a restriction whose window has already passed.
func (a Authentication) LockExpired(now time.Time) bool {
	return a.RestrictionLeftAt != nil && !now.Before(*a.RestrictionLeftAt)
}

// IsActive returns true if the account can be used.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
	}
}

// Profile is the part of a user shown to other users.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username *string   `json:"username,omitempty"`
}

// LoginStatuses are the statuses a password login may look up.
var LoginStatuses = []UserStatus{UserStatusActive, UserStatusRestricted}
