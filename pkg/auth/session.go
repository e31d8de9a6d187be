package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
)

const (
	// Default token lifetimes
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// TokenConfig holds JWT settings.
type TokenConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	JWTSecret       []byte
	RefreshSecret   []byte
	Issuer          string
}

// TokenService signs and verifies access and refresh tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a token service. Refresh tokens are signed with
// JWTSecret unless RefreshSecret is set.
func NewTokenService(config TokenConfig) *TokenService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if len(config.RefreshSecret) == 0 {
		config.RefreshSecret = config.JWTSecret
	}
	return &TokenService{config: config, now: time.Now}
}

// AccessTokenTTL returns the access token TTL.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (s *TokenService) RefreshTokenTTL() time.Duration {
	return s.config.RefreshTokenTTL
}

// TokenClaims represents the claims in access and refresh tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email    string      `json:"email,omitempty"`
	Role     domain.Role `json:"role"`
	Verified bool        `json:"verified,omitempty"`
	Use      string      `json:"use"`

	// IssuedAtMicro is iat in Unix microseconds, the precision of the
	// stored password change stamp.
	IssuedAtMicro int64 `json:"iat_us,omitempty"`
}

// UserID returns the subject as a UUID.
func (c *TokenClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Issue returns a fresh access and refresh token pair for user.
func (s *TokenService) Issue(user *domain.User) (*domain.TokenPair, error) {
	now := s.now()
	accessExpiry := now.Add(s.config.AccessTokenTTL)
	refreshExpiry := now.Add(s.config.RefreshTokenTTL)

	accessToken, err := s.sign(user, tokenUseAccess, now, accessExpiry, s.config.JWTSecret)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sign(user, tokenUseRefresh, now, refreshExpiry, s.config.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:        accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (s *TokenService) sign(user *domain.User, use string, now, expiry time.Time, secret []byte) (string, error) {
	role := user.Role
	if role == "" {
		role = domain.RoleUser
	}
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			Issuer:    s.config.Issuer,
			ID:        uuid.NewString(),
		},
		Email:         user.Email,
		Role:          role,
		Verified:      user.Verified,
		Use:           use,
		IssuedAtMicro: now.UnixMicro(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *TokenService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	return s.parse(tokenString, tokenUseAccess, s.config.JWTSecret)
}

// ValidateRefreshToken validates a refresh token and returns the claims.
func (s *TokenService) ValidateRefreshToken(tokenString string) (*TokenClaims, error) {
	return s.parse(tokenString, tokenUseRefresh, s.config.RefreshSecret)
}

func (s *TokenService) parse(tokenString, use string, secret []byte) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.NewError(domain.KindUnauthenticated, "TOKEN_EXPIRED", "token expired")
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Use != use {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// IssuedBefore reports whether a token was issued before changedAt. Tokens
// without iat_us fall back to the second precision of iat.
func IssuedBefore(claims *TokenClaims, changedAt *time.Time) bool {
	if changedAt == nil {
		return false
	}
	if claims.IssuedAtMicro != 0 {
		return claims.IssuedAtMicro < changedAt.UnixMicro()
	}
	if claims.IssuedAt == nil {
		return false
	}
	return claims.IssuedAt.Time.Before(changedAt.Truncate(time.Second))
}

// GetUserIDFromToken extracts the user ID from an access token.
func (s *TokenService) GetUserIDFromToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID()
}
