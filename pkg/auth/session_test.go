package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/planhub/pkg/domain"
)

func newTestTokenService(now time.Time) *TokenService {
	s := NewTokenService(TokenConfig{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		JWTSecret:       []byte("access-secret"),
		RefreshSecret:   []byte("refresh-secret"),
		Issuer:          "planhub-test",
	})
	s.now = func() time.Time { return now }
	return s
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := newTestTokenService(now)
	user := &domain.User{ID: uuid.New(), Email: "tok@example.com", Role: domain.RoleAdmin, Verified: true}

	pair, err := s.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 900, pair.ExpiresIn)
	assert.Equal(t, now.Add(24*time.Hour), pair.RefreshExpiresAt)

	claims, err := s.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, "tok@example.com", claims.Email)

	refresh, err := s.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, tokenUseRefresh, refresh.Use)

	got, err := s.GetUserIDFromToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got)
}

func TestTokenService_RejectsWrongUse(t *testing.T) {
	s := newTestTokenService(time.Now())
	pair, err := s.Issue(&domain.User{ID: uuid.New()})
	require.NoError(t, err)

	_, err = s.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = s.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenService_Expired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := newTestTokenService(issued)
	pair, err := s.Issue(&domain.User{ID: uuid.New()})
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = s.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, "TOKEN_EXPIRED", domain.CodeOf(err))
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))

	_, err = s.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	s := newTestTokenService(time.Now())
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "planhub-test",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Use: tokenUseAccess,
	}

	tests := []struct {
		name   string
		method jwt.SigningMethod
		secret []byte
		mutate func(*TokenClaims)
	}{
		{name: "wrong secret", method: jwt.SigningMethodHS256, secret: []byte("other")},
		{name: "wrong algorithm", method: jwt.SigningMethodHS512, secret: []byte("access-secret")},
		{name: "wrong issuer", method: jwt.SigningMethodHS256, secret: []byte("access-secret"), mutate: func(c *TokenClaims) { c.Issuer = "elsewhere" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := claims
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			signed, err := jwt.NewWithClaims(tt.method, c).SignedString(tt.secret)
			require.NoError(t, err)

			if _, err := s.ValidateAccessToken(signed); err == nil {
				t.Error("ValidateAccessToken() accepted a foreign token")
			}
		})
	}
}

func TestIssuedBefore(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 300_000_000, time.UTC)
	secondsOnly := &TokenClaims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(issued)}}
	micro := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(issued)},
		IssuedAtMicro:    issued.UnixMicro(),
	}
	at := func(d time.Duration) *time.Time {
		t := issued.Add(d)
		return &t
	}

	tests := []struct {
		name      string
		claims    *TokenClaims
		changedAt *time.Time
		want      bool
	}{
		{"never changed", micro, nil, false},
		{"changed earlier", micro, at(-time.Hour), false},
		{"changed at the issue instant", micro, at(0), false},
		{"changed later in the same second", micro, at(400 * time.Millisecond), true},
		{"changed one microsecond later", micro, at(time.Microsecond), true},
		{"changed later", micro, at(2 * time.Second), true},
		{"without iat_us, same second", secondsOnly, at(400 * time.Millisecond), false},
		{"without iat_us, later second", secondsOnly, at(2 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IssuedBefore(tt.claims, tt.changedAt); got != tt.want {
				t.Errorf("IssuedBefore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIssueStampsMicrosecondIssuedAt(t *testing.T) {
	s := NewTokenService(TokenConfig{JWTSecret: []byte("secret")})
	now := time.Date(2026, 3, 1, 9, 0, 0, 123_456_789, time.UTC)
	s.now = func() time.Time { return now }

	pair, err := s.Issue(&domain.User{ID: uuid.New()})
	require.NoError(t, err)

	claims, err := s.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMicro(), claims.IssuedAtMicro)
}
