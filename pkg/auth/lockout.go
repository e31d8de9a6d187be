package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
)

// LockoutConfig holds the brute-force lockout settings.
type LockoutConfig struct {
	MaxAttempts int
	Restriction time.Duration
	Strategy    domain.LockoutStrategy
}

// LockoutPolicy decides and records login lockouts.
type LockoutPolicy struct {
	config LockoutConfig
	store  LockoutStore
	logger *slog.Logger
	now    func() time.Time
}

// NewLockoutPolicy creates a lockout policy.
func NewLockoutPolicy(config LockoutConfig, store LockoutStore, logger *slog.Logger) *LockoutPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.Restriction <= 0 {
		config.Restriction = 15 * time.Minute
	}
	if config.Strategy == "" {
		config.Strategy = domain.LockoutExtend
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LockoutPolicy{config: config, store: store, logger: logger, now: time.Now}
}

// CheckNotLocked fails with ErrAccountLocked while the restriction is in force.
func (p *LockoutPolicy) CheckNotLocked(a domain.Authentication) error {
	if a.IsLocked(p.now()) {
		return domain.ErrAccountLocked
	}
	return nil
}

// ReleaseIfExpired clears the counters of a lock that has run out, so the
// next failure starts counting from zero.
func (p *LockoutPolicy) ReleaseIfExpired(ctx context.Context, user *domain.User) error {
	now := p.now()
	if !user.Authentication.LockExpired(now) {
		return nil
	}
	if err := p.store.ReleaseExpiredLock(ctx, user.ID, now); err != nil {
		return err
	}
	user.Authentication = user.Authentication.Cleared()
	return nil
}

// Rule returns the update applied for one failure at now.
func (p *LockoutPolicy) Rule(now time.Time) domain.LockoutRule {
	return domain.LockoutRule{
		MaxAttempts: p.config.MaxAttempts,
		LockUntil:   now.Add(p.config.Restriction),
		Strategy:    p.config.Strategy,
	}
}

// RecordFailure counts one failed login.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, userID uuid.UUID) (domain.Authentication, error) {
	now := p.now()
	a, err := p.store.RecordLoginFailure(ctx, userID, p.Rule(now), now)
	if err != nil {
		return a, err
	}
	if a.IsRestricted && a.WrongLoginAttempts == p.config.MaxAttempts {
		p.logger.Warn("account locked", "user_id", userID, "until", a.RestrictionLeftAt)
	}
	return a, nil
}

// RecordSuccess clears the counters after a successful login.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, user *domain.User) error {
	if err := p.store.ResetLoginFailures(ctx, user.ID, p.now()); err != nil {
		return err
	}
	user.Authentication = user.Authentication.Cleared()
	return nil
}
