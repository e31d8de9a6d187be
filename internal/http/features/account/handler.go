// Package account serves signup, login, code verification and the
// password reset flow.
package account

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/planhub/internal/httputil"
	"github.com/tendant/planhub/internal/metrics"
	"github.com/tendant/planhub/pkg/auth"
	"github.com/tendant/planhub/pkg/domain"
)

// Accounts is the account lifecycle used by the handler.
type Accounts interface {
	Signup(ctx context.Context, in auth.SignupInput) (*domain.User, error)
	VerifyAccount(ctx context.Context, email, code string, purpose domain.Purpose) (*domain.VerifyResult, error)
	ResendOTP(ctx context.Context, email string, purpose domain.Purpose) error
	ForgetPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error
}

// Logins verifies credentials.
type Logins interface {
	Login(ctx context.Context, in auth.LoginInput) (*domain.LoginResult, error)
}

// TokenTTLs reports token lifetimes for cookie max-age.
type TokenTTLs interface {
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

// Handler handles account endpoints.
type Handler struct {
	logger       *slog.Logger
	accounts     Accounts
	logins       Logins
	ttls         TokenTTLs
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new account handler.
func NewHandler(logger *slog.Logger, accounts Accounts, logins Logins, ttls TokenTTLs, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		logins:       logins,
		ttls:         ttls,
		cookieConfig: cookieConfig,
	}
}

// SignupRequest represents a registration request.
type SignupRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required"`
	Name     string  `json:"name" validate:"required,max=100"`
	Username *string `json:"username,omitempty"`
}

// SignupResponse is returned after a successful signup. The account is
// unusable until verified with the emailed code.
type SignupResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// LoginRequest represents a login request. Identifier is an email or a
// username.
type LoginRequest struct {
	Identifier  string `json:"identifier" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DeviceToken string `json:"device_token,omitempty" validate:"max=512"`
}

// VerifyRequest submits a one-time code.
type VerifyRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Code    string `json:"code" validate:"required"`
	Purpose string `json:"purpose" validate:"required,oneof=account_activation reset_password"`
}

// ResendRequest asks for a fresh one-time code.
type ResendRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"required,oneof=account_activation reset_password"`
}

// ForgetRequest starts the password reset flow.
type ForgetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetRequest redeems a reset token.
type ResetRequest struct {
	ResetToken      string `json:"reset_token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// TokenResponse represents a token response. Web clients only get the
// metadata; the tokens travel in cookies.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// Signup registers an account and emails an activation code.
// POST /v1/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var username *string
	if req.Username != nil && *req.Username != "" {
		username = req.Username
	}

	user, err := h.accounts.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Username: username,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	httputil.JSON(w, http.StatusCreated, SignupResponse{
		UserID: user.ID.String(),
		Email:  user.Email,
		Status: string(domain.LoginVerificationRequired),
	})
}

// Login authenticates with a password.
// POST /v1/auth/login
//
// Unverified accounts get 202 and a fresh activation code instead of tokens.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	result, err := h.logins.Login(r.Context(), auth.LoginInput{
		Identifier:  req.Identifier,
		Password:    req.Password,
		DeviceToken: req.DeviceToken,
	})
	if err != nil {
		metrics.AuthFailure("login", domain.CodeOf(err))
		httputil.WriteError(w, r, err)
		return
	}

	if result.VerificationRequired() {
		httputil.JSON(w, http.StatusAccepted, SignupResponse{
			UserID: result.UserID.String(),
			Email:  result.Email,
			Status: string(result.Outcome),
		})
		return
	}
	h.writeTokens(w, r, result.Tokens)
}

// Verify checks a one-time code. Activation codes log the user in; reset
// codes return a single-use reset token.
// POST /v1/auth/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	result, err := h.accounts.VerifyAccount(r.Context(), req.Email, req.Code, domain.Purpose(req.Purpose))
	if err != nil {
		metrics.AuthFailure("otp", domain.CodeOf(err))
		httputil.WriteError(w, r, err)
		return
	}

	if result.Purpose == domain.PurposeResetPassword {
		httputil.JSON(w, http.StatusOK, map[string]string{"reset_token": result.ResetToken})
		return
	}
	h.writeTokens(w, r, result.Tokens)
}

// ResendOTP issues a new code subject to cooldown and request limits.
// POST /v1/auth/otp/resend
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.accounts.ResendOTP(r.Context(), req.Email, domain.Purpose(req.Purpose)); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "if the account exists, a code has been sent"})
}

// ForgetPassword emails a reset code. The response never reveals whether
// the account exists.
// POST /v1/auth/password/forget
func (h *Handler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgetRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.accounts.ForgetPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "if the account exists, a code has been sent"})
}

// ResetPassword sets a new password with a reset token.
// POST /v1/auth/password/reset
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.ResetToken, req.Password, req.ConfirmPassword); err != nil {
		metrics.AuthFailure("reset", domain.CodeOf(err))
		httputil.WriteError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}

// writeTokens writes tokens as cookies (web) or JSON (mobile).
func (h *Handler) writeTokens(w http.ResponseWriter, r *http.Request, tokens *domain.TokenPair) {
	WriteTokens(w, r, tokens, h.ttls, h.cookieConfig)
}

// WriteTokens is shared with the session and profile handlers.
func WriteTokens(w http.ResponseWriter, r *http.Request, tokens *domain.TokenPair, ttls TokenTTLs, cookieConfig httputil.CookieConfig) {
	if httputil.IsMobileClient(r) {
		httputil.JSON(w, http.StatusOK, TokenResponse{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenType:    tokens.TokenType,
			ExpiresIn:    tokens.ExpiresIn,
		})
		return
	}

	httputil.SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, ttls.AccessTokenTTL(), ttls.RefreshTokenTTL(), cookieConfig)
	httputil.JSON(w, http.StatusOK, TokenResponse{
		TokenType: tokens.TokenType,
		ExpiresIn: tokens.ExpiresIn,
	})
}
