package domain

import (
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a verification record.
type Purpose string

const (
	PurposeAccountActivation Purpose = "account_activation"
	PurposeResetPassword     Purpose = "reset_password"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeAccountActivation || p == PurposeResetPassword
}

// VerificationRecord is the single live one-time-code record for an
// (identifier, purpose) pair.
type VerificationRecord struct {
	ID              uuid.UUID
	Identifier      string
	Purpose         Purpose
	OTPHash         string
	OTPExpiresAt    time.Time
	LatestRequestAt time.Time
	Attempts        int
	RequestCount    int
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// CodeExpired returns true once the code itself can no longer be used.
func (r *VerificationRecord) CodeExpired(now time.Time) bool {
	return now.After(r.OTPExpiresAt)
}

// Live returns true until the record's hard TTL passes.
func (r *VerificationRecord) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}
