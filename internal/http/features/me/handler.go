// Package me serves the authenticated user's own account.
package me

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/planhub/internal/http/features/account"
	"github.com/tendant/planhub/internal/http/middleware"
	"github.com/tendant/planhub/internal/httputil"
	"github.com/tendant/planhub/pkg/domain"
)

// Accounts is the subset of the account service used here.
type Accounts interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword, confirmPassword string) (*domain.TokenPair, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID, password string) error
}

// Handler handles user profile endpoints.
type Handler struct {
	accounts     Accounts
	ttls         account.TokenTTLs
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new me handler.
func NewHandler(accounts Accounts, ttls account.TokenTTLs, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{accounts: accounts, ttls: ttls, cookieConfig: cookieConfig}
}

// UserResponse represents the user profile response.
type UserResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Username *string `json:"username,omitempty"`
	Name     string  `json:"name"`
	Verified bool    `json:"verified"`
}

// ChangePasswordRequest changes the password of the current user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// DeleteRequest confirms account deletion with the password.
type DeleteRequest struct {
	Password string `json:"password" validate:"required"`
}

// GetMe returns the current user's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.accounts.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, UserResponse{
		ID:       user.ID.String(),
		Email:    user.Email,
		Username: user.Username,
		Name:     user.Name,
		Verified: user.Verified,
	})
}

// ChangePassword sets a new password and returns a fresh token pair.
// Refresh tokens issued earlier stop working.
// POST /v1/me/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	tokens, err := h.accounts.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	account.WriteTokens(w, r, tokens, h.ttls, h.cookieConfig)
}

// DeleteMe soft-deletes the current user.
// DELETE /v1/me
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req DeleteRequest
	if err := httputil.DecodeValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), userID, req.Password); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if !httputil.IsMobileClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}
	w.WriteHeader(http.StatusNoContent)
}
