package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

const maxNameLength = 100

// AccountConfig holds account flow settings.
type AccountConfig struct {
	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// SignupInput is a new account request.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Username *string
}

// AccountService implements signup, verification and password flows.
type AccountService struct {
	config  AccountConfig
	tx      repository.Transactor
	users   UserStore
	hasher  PasswordHasher
	policy  *PasswordPolicy
	otp     *OTPManager
	resets  *ResetTokenService
	tokens  *TokenService
	lockout *LockoutPolicy
	logger  *slog.Logger
	now     func() time.Time
}

// AccountDeps groups the collaborators of AccountService.
type AccountDeps struct {
	Tx     repository.Transactor
	Users  UserStore
	Hasher PasswordHasher
	Policy *PasswordPolicy
	OTP    *OTPManager
	Resets *ResetTokenService
	Tokens *TokenService

	// Lockout counts wrong current passwords on change and delete.
	Lockout *LockoutPolicy
	Logger  *slog.Logger
}

// NewAccountService creates an account service.
func NewAccountService(config AccountConfig, deps AccountDeps) *AccountService {
	if deps.Hasher == nil {
		deps.Hasher = Argon2Hasher{}
	}
	if deps.Policy == nil {
		deps.Policy = &PasswordPolicy{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &AccountService{
		config:  config,
		tx:      deps.Tx,
		users:   deps.Users,
		hasher:  deps.Hasher,
		policy:  deps.Policy,
		otp:     deps.OTP,
		resets:  deps.Resets,
		tokens:  deps.Tokens,
		lockout: deps.Lockout,
		logger:  deps.Logger,
		now:     time.Now,
	}
}

// Signup creates an unverified user and sends the activation code.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if err := ValidateEmail(in.Email, s.config.StrictEmailValidation, s.config.BlockDisposableEmail); err != nil {
		return nil, err
	}
	email := NormalizeEmail(in.Email)

	if err := s.policy.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	name := SanitizeName(in.Name)
	if err := ValidateStringLength("name", name, 1, maxNameLength); err != nil {
		return nil, err
	}

	username := in.Username
	if username != nil && *username == "" {
		username = nil
	}
	if username != nil {
		if err := ValidateUsername(*username); err != nil {
			return nil, err
		}
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		Name:         name,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var code string
	err = s.tx.WithTx(ctx, func(q repository.Querier) error {
		if err := s.users.CreateTx(ctx, q, user); err != nil {
			return err
		}
		code, err = s.otp.IssueTx(ctx, q, email, domain.PurposeAccountActivation)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.otp.Deliver(ctx, email, domain.PurposeAccountActivation, code)
	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// VerifyAccount redeems a one-time code. Activation marks the account
// verified and logs it in; reset returns a single-use reset token.
func (s *AccountService) VerifyAccount(ctx context.Context, email, code string, purpose domain.Purpose) (*domain.VerifyResult, error) {
	if !purpose.Valid() {
		return nil, domain.ErrInvalidPurpose
	}
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, err
	}

	result := &domain.VerifyResult{Purpose: purpose, UserID: user.ID}
	err = s.tx.WithTx(ctx, func(q repository.Querier) error {
		if err := s.otp.VerifyTx(ctx, q, email, purpose, code); err != nil {
			return err
		}
		if err := s.otp.ConsumeTx(ctx, q, email, purpose); err != nil {
			return err
		}
		switch purpose {
		case domain.PurposeAccountActivation:
			return s.users.MarkVerifiedTx(ctx, q, user.ID, s.now())
		default:
			token, err := s.resets.MintTx(ctx, q, user.ID)
			if err != nil {
				return err
			}
			result.ResetToken = token
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if purpose == domain.PurposeAccountActivation {
		user.Verified = true
		tokens, err := s.tokens.Issue(user)
		if err != nil {
			return nil, err
		}
		result.Tokens = tokens
		s.logger.Info("account verified", "user_id", user.ID)
	}
	return result, nil
}

// ResendOTP issues a new code for purpose. Unknown emails succeed silently.
func (s *AccountService) ResendOTP(ctx context.Context, email string, purpose domain.Purpose) error {
	if !purpose.Valid() {
		return domain.ErrInvalidPurpose
	}
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if purpose == domain.PurposeAccountActivation && user.Verified {
		return domain.ErrAlreadyVerified
	}
	return s.otp.Issue(ctx, email, purpose)
}

// ForgetPassword sends a reset code. Unknown emails succeed silently.
func (s *AccountService) ForgetPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	_, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	return s.otp.Issue(ctx, email, domain.PurposeResetPassword)
}

// ResetPassword redeems a reset token and sets the new password in one
// transaction.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return domain.ErrPasswordMismatch
	}
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	var userID uuid.UUID
	err = s.tx.WithTx(ctx, func(q repository.Querier) error {
		var err error
		userID, err = s.resets.RedeemTx(ctx, q, token)
		if err != nil {
			return err
		}
		return s.users.UpdatePasswordTx(ctx, q, userID, hash, s.now().Truncate(time.Microsecond))
	})
	if err != nil {
		return err
	}

	s.logger.Info("password reset", "user_id", userID)
	return nil
}

// ChangePassword replaces the password of a logged-in user and returns a
// new token pair, since older refresh tokens stop working.
func (s *AccountService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword, confirmPassword string) (*domain.TokenPair, error) {
	if newPassword != confirmPassword {
		return nil, domain.ErrPasswordMismatch
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(ctx, user, currentPassword); err != nil {
		return nil, err
	}
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	// The stamp is stored at microsecond precision and compared against the
	// iat_us claim of refresh tokens.
	now := s.now().Truncate(time.Microsecond)
	err = s.tx.WithTx(ctx, func(q repository.Querier) error {
		return s.users.UpdatePasswordTx(ctx, q, userID, hash, now)
	})
	if err != nil {
		return nil, err
	}

	user.PasswordHash = hash
	user.Authentication = user.Authentication.Cleared()
	user.Authentication.PasswordChangedAt = &now
	s.logger.Info("password changed", "user_id", userID)
	return s.tokens.Issue(user)
}

// DeleteAccount soft-deletes the user after checking the password.
func (s *AccountService) DeleteAccount(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.checkPassword(ctx, user, password); err != nil {
		return err
	}
	if err := s.users.SoftDelete(ctx, userID, s.now()); err != nil {
		return err
	}
	s.logger.Info("account deleted", "user_id", userID)
	return nil
}

// checkPassword re-authenticates a logged-in user. Wrong guesses count
// towards the same lockout as login.
func (s *AccountService) checkPassword(ctx context.Context, user *domain.User, password string) error {
	if s.lockout != nil {
		if err := s.lockout.ReleaseIfExpired(ctx, user); err != nil {
			return err
		}
		if err := s.lockout.CheckNotLocked(user.Authentication); err != nil {
			return err
		}
	}
	if s.hasher.Compare(password, user.PasswordHash) {
		return nil
	}
	if s.lockout != nil {
		if _, err := s.lockout.RecordFailure(ctx, user.ID); err != nil {
			return err
		}
	}
	return domain.ErrInvalidCredentials
}

// GetUser returns a non-deleted user.
func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}
