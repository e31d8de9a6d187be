package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/planhub/pkg/domain"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", domain.ErrOTPInvalid, http.StatusBadRequest, "INVALID_CODE"},
		{"unauthenticated", domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"locked", domain.ErrAccountLocked, http.StatusForbidden, "ACCOUNT_LOCKED"},
		{"not found", domain.ErrRequestNotFound, http.StatusNotFound, "REQUEST_NOT_FOUND"},
		{"conflict", domain.ErrRequestAlreadyProcessed, http.StatusConflict, "REQUEST_ALREADY_PROCESSED"},
		{"rate limited", domain.ErrOTPCooldown, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"expired", domain.ErrResetTokenExpired, http.StatusGone, "RESET_TOKEN_EXPIRED"},
		{"wrapped", errors.Join(errors.New("ctx"), domain.ErrPlanNotFound), http.StatusNotFound, "PLAN_NOT_FOUND"},
		{"untyped", errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantCode == "INTERNAL" {
				assert.NotContains(t, body.Error, "pq")
			}
		})
	}
}

type signupBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func TestDecodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"email":"a@example.com","password":"x"}`, ""},
		{"bad json", `{`, "invalid request body"},
		{"missing password", `{"email":"a@example.com"}`, "password is required"},
		{"bad email", `{"email":"nope","password":"x"}`, "email must be a valid email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst signupBody
			err := DecodeValidate(r, &dst)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "new_password", toSnake("NewPassword"))
	assert.Equal(t, "email", toSnake("Email"))
}
