package domain

import (
	"fmt"
	"strings"
	"time"
)

// LockoutStrategy decides how a new lock combines with one still in force.
type LockoutStrategy string

const (
	// LockoutExtend keeps the earliest of the active lock-until and the new one.
	LockoutExtend LockoutStrategy = "EXTEND"
	// LockoutOverwrite always replaces the lock-until with the new value.
	LockoutOverwrite LockoutStrategy = "OVERWRITE"
)

// ParseLockoutStrategy parses a configured strategy name.
func ParseLockoutStrategy(s string) (LockoutStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LockoutExtend):
		return LockoutExtend, nil
	case string(LockoutOverwrite), "STRICT_EARLIEST":
		return LockoutOverwrite, nil
	default:
		return "", fmt.Errorf("unknown lockout strategy %q", s)
	}
}

// LockoutRule describes one failed-login update. Repositories apply it
// atomically; Apply is the reference semantics.
type LockoutRule struct {
	MaxAttempts int
	LockUntil   time.Time
	Strategy    LockoutStrategy
}

// Apply returns the counters after one more failed attempt.
func (r LockoutRule) Apply(a Authentication, now time.Time) Authentication {
	a.WrongLoginAttempts++
	if a.WrongLoginAttempts < r.MaxAttempts {
		return a
	}

	a.IsRestricted = true
	until := r.LockUntil
	if r.Strategy == LockoutExtend && a.IsLocked(now) && a.RestrictionLeftAt.Before(until) {
		until = *a.RestrictionLeftAt
	}
	a.RestrictionLeftAt = &until
	return a
}

// Cleared returns the counters after a successful login or password change.
func (a Authentication) Cleared() Authentication {
	a.WrongLoginAttempts = 0
	a.IsRestricted = false
	a.RestrictionLeftAt = nil
	return a
}
