package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should treat it.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
	KindConflict
	KindRateLimited
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindExpired:
		return "expired"
	default:
		return "internal"
	}
}

// Error is a typed failure returned by the services.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a typed error.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Invalid returns an InvalidInput error with a formatted message.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Code: "INVALID_INPUT", Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-readable code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// Authentication errors
var (
	ErrUserNotFound       = NewError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrUserAlreadyExists  = NewError(KindConflict, "USER_EXISTS", "user already exists")
	ErrInvalidCredentials = NewError(KindUnauthenticated, "INVALID_CREDENTIALS", "invalid credentials")
	ErrLoginNotAllowed    = NewError(KindInvalidInput, "BAD_REQUEST", "invalid credentials")
	ErrAccountLocked      = NewError(KindUnauthorized, "ACCOUNT_LOCKED", "account locked due to too many failed login attempts")
	ErrInvalidToken       = NewError(KindUnauthenticated, "INVALID_TOKEN", "invalid token")
	ErrTokenRevoked       = NewError(KindUnauthenticated, "TOKEN_REVOKED", "token issued before the last password change")
	ErrPasswordMismatch   = NewError(KindInvalidInput, "PASSWORD_MISMATCH", "passwords do not match")
	ErrAlreadyVerified    = NewError(KindConflict, "ALREADY_VERIFIED", "account already verified")
)

// One-time code errors
var (
	ErrOTPNotFound        = NewError(KindNotFound, "OTP_NOT_FOUND", "no verification code was requested")
	ErrOTPCooldown        = NewError(KindRateLimited, "RATE_LIMITED", "a code was sent recently, please wait before requesting another")
	ErrOTPRequestLimit    = NewError(KindRateLimited, "REQUEST_LIMIT_EXCEEDED", "too many codes requested")
	ErrOTPTooManyAttempts = NewError(KindRateLimited, "TOO_MANY_ATTEMPTS", "too many wrong codes, request a new one later")
	ErrOTPExpired         = NewError(KindExpired, "EXPIRED", "verification code expired")
	ErrOTPInvalid         = NewError(KindInvalidInput, "INVALID_CODE", "invalid verification code")
)

// Reset token errors
var (
	ErrResetTokenNotFound = NewError(KindNotFound, "RESET_TOKEN_NOT_FOUND", "reset token not found")
	ErrResetTokenExpired  = NewError(KindExpired, "RESET_TOKEN_EXPIRED", "reset token expired")
)

// Social graph errors
var (
	ErrRequestNotFound         = NewError(KindNotFound, "REQUEST_NOT_FOUND", "request not found")
	ErrRequestAlreadyProcessed = NewError(KindConflict, "REQUEST_ALREADY_PROCESSED", "request already processed")
	ErrRequestPending          = NewError(KindConflict, "REQUEST_PENDING", "a pending request already exists")
	ErrRequestToSelf           = NewError(KindInvalidInput, "REQUEST_TO_SELF", "cannot send a request to yourself")
	ErrRequestNotRecipient     = NewError(KindUnauthorized, "NOT_RECIPIENT", "only the recipient can answer this request")
	ErrTargetUnavailable       = NewError(KindNotFound, "TARGET_UNAVAILABLE", "user not found")
	ErrFriendshipExists        = NewError(KindConflict, "ALREADY_FRIENDS", "already friends")
	ErrPlanNotFound            = NewError(KindNotFound, "PLAN_NOT_FOUND", "plan not found")
	ErrPlanMembership          = NewError(KindConflict, "ALREADY_COLLABORATOR", "user already collaborates on this plan")
	ErrPlanRequestInvalid      = NewError(KindInvalidInput, "PLAN_REQUEST_INVALID", "plan requests must involve the plan owner")
	ErrNotificationNotFound    = NewError(KindNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")
)

// Validation errors
var (
	ErrInvalidEmail    = NewError(KindInvalidInput, "INVALID_EMAIL", "invalid email address")
	ErrWeakPassword    = NewError(KindInvalidInput, "WEAK_PASSWORD", "password does not meet requirements")
	ErrInvalidPurpose  = NewError(KindInvalidInput, "INVALID_PURPOSE", "unknown verification purpose")
	ErrInvalidUsername = NewError(KindInvalidInput, "INVALID_USERNAME", "username must be 3-30 characters of letters, digits, underscore or hyphen and start with a letter or digit")
	ErrUsernameTaken   = NewError(KindConflict, "USERNAME_TAKEN", "username already taken")
)
