// Package session serves token refresh and logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tendant/planhub/internal/http/features/account"
	"github.com/tendant/planhub/internal/httputil"
	"github.com/tendant/planhub/internal/metrics"
	"github.com/tendant/planhub/pkg/domain"
)

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
}

// Handler handles session endpoints.
type Handler struct {
	refresher    Refresher
	ttls         account.TokenTTLs
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(refresher Refresher, ttls account.TokenTTLs, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{refresher: refresher, ttls: ttls, cookieConfig: cookieConfig}
}

// RefreshRequest represents a token refresh request (for mobile clients).
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh refreshes an access token.
// POST /v1/auth/refresh
//
// For web clients: Reads refresh token from cookie, sets new cookies.
// For mobile clients: Reads/returns tokens in request/response body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	if httputil.IsMobileClient(r) {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		refreshToken = req.RefreshToken
		if refreshToken == "" {
			httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
			return
		}
	} else {
		var ok bool
		refreshToken, ok = httputil.GetRefreshTokenFromCookie(r)
		if !ok {
			httputil.Error(w, http.StatusUnauthorized, "refresh token not found")
			return
		}
	}

	tokens, err := h.refresher.Refresh(r.Context(), refreshToken)
	if err != nil {
		metrics.AuthFailure("refresh", domain.CodeOf(err))
		if domain.KindOf(err) == domain.KindUnauthenticated && !httputil.IsMobileClient(r) {
			httputil.ClearAuthCookies(w, h.cookieConfig)
		}
		httputil.WriteError(w, r, err)
		return
	}

	account.WriteTokens(w, r, tokens, h.ttls, h.cookieConfig)
}

// Logout ends the client session.
// POST /v1/auth/logout
//
// Tokens are stateless; web clients get their cookies cleared and mobile
// clients are expected to drop their tokens. Refresh tokens of either kind
// are invalidated server-side only by a password change.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if httputil.IsMobileClient(r) {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}

	w.WriteHeader(http.StatusNoContent)
}
