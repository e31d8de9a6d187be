package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/planhub/pkg/domain"
)

// LoginInput is a password login attempt.
type LoginInput struct {
	Identifier  string
	Password    string
	DeviceToken string
}

// LoginService answers whether a credential pair may log in.
type LoginService struct {
	users   UserStore
	hasher  PasswordHasher
	lockout *LockoutPolicy
	otp     *OTPManager
	tokens  *TokenService
	logger  *slog.Logger
	now     func() time.Time
}

// NewLoginService creates a login service.
func NewLoginService(users UserStore, hasher PasswordHasher, lockout *LockoutPolicy, otp *OTPManager, tokens *TokenService, logger *slog.Logger) *LoginService {
	if hasher == nil {
		hasher = Argon2Hasher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginService{
		users:   users,
		hasher:  hasher,
		lockout: lockout,
		otp:     otp,
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

// Login verifies the credentials. An unverified account gets a fresh
// activation code and a verification-required result instead of tokens.
func (s *LoginService) Login(ctx context.Context, in LoginInput) (*domain.LoginResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if IsEmail(identifier) {
		identifier = NormalizeEmail(identifier)
	}

	user, err := s.users.GetByIdentifier(ctx, identifier, domain.LoginStatuses)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrLoginNotAllowed
		}
		return nil, err
	}
	if user.Status == domain.UserStatusRestricted {
		s.logger.Info("login refused for restricted account", "user_id", user.ID)
		return nil, domain.ErrLoginNotAllowed
	}

	if err := s.lockout.ReleaseIfExpired(ctx, user); err != nil {
		return nil, err
	}
	if err := s.lockout.CheckNotLocked(user.Authentication); err != nil {
		s.logger.Info("login attempt on locked account", "user_id", user.ID)
		return nil, err
	}

	if !s.hasher.Compare(in.Password, user.PasswordHash) {
		if _, err := s.lockout.RecordFailure(ctx, user.ID); err != nil {
			return nil, err
		}
		// Same error as an unknown identifier.
		return nil, domain.ErrLoginNotAllowed
	}

	if !user.Verified {
		err := s.otp.Issue(ctx, user.Email, domain.PurposeAccountActivation)
		// A code sent within the cooldown is still usable.
		if err != nil && !errors.Is(err, domain.ErrOTPCooldown) {
			return nil, err
		}
		return &domain.LoginResult{
			Outcome: domain.LoginVerificationRequired,
			UserID:  user.ID,
			Email:   user.Email,
		}, nil
	}

	if err := s.lockout.RecordSuccess(ctx, user); err != nil {
		return nil, err
	}

	if in.DeviceToken != "" {
		if err := s.users.SetDeviceToken(ctx, user.ID, in.DeviceToken); err != nil {
			s.logger.Warn("failed to store device token", "user_id", user.ID, "error", err)
		}
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &domain.LoginResult{
		Outcome: domain.LoginAuthenticated,
		UserID:  user.ID,
		Email:   user.Email,
		Tokens:  tokens,
	}, nil
}

// Refresh exchanges a refresh token for a new pair. Tokens issued before
// the last password change are rejected.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.ErrInvalidToken
	}
	if IssuedBefore(claims, user.Authentication.PasswordChangedAt) {
		return nil, domain.ErrTokenRevoked
	}

	return s.tokens.Issue(user)
}
