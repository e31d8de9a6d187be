package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair represents the access and refresh token pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginOutcome tells a successful login apart from one that still needs
// the account to be verified.
type LoginOutcome string

const (
	LoginAuthenticated        LoginOutcome = "authenticated"
	LoginVerificationRequired LoginOutcome = "verification_required"
)

// LoginResult is returned by a password login that did not fail.
type LoginResult struct {
	Outcome LoginOutcome
	UserID  uuid.UUID
	Email   string
	Tokens  *TokenPair
}

// VerificationRequired reports the non-token variant.
func (r *LoginResult) VerificationRequired() bool {
	return r.Outcome == LoginVerificationRequired
}

// VerifyResult is what a successful code verification unlocks.
type VerifyResult struct {
	Purpose    Purpose
	UserID     uuid.UUID
	Tokens     *TokenPair
	ResetToken string
}
