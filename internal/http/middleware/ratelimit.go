package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/planhub/internal/config"
	"github.com/tendant/planhub/internal/httputil"
)

// Rate limit groups.
const (
	LimitAuth    = "auth"
	LimitOTP     = "otp"
	LimitReset   = "reset"
	LimitRefresh = "refresh"
	LimitSocial  = "social"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
	// ByUser keys the limit on the authenticated user, falling back to the
	// client IP for anonymous requests.
	ByUser bool
}

// RateLimit creates a rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	key := httprate.KeyByIP
	if cfg.ByUser {
		key = keyByUser
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.JSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error: "rate limit exceeded. please try again later",
				Code:  "RATE_LIMITED",
			})
		}),
	)
}

func keyByUser(r *http.Request) (string, error) {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID.String(), nil
	}
	return httprate.KeyByIP(r)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates one middleware per limit group.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	groups := []string{LimitAuth, LimitOTP, LimitReset, LimitRefresh, LimitSocial}
	limiters := make(map[string]func(http.Handler) http.Handler, len(groups))
	if !cfg.Enabled {
		for _, g := range groups {
			limiters[g] = NoRateLimit()
		}
		return limiters
	}

	minutes := func(n int) time.Duration { return time.Duration(n) * time.Minute }
	limiters[LimitAuth] = RateLimit(RateLimitConfig{
		Requests: cfg.AuthRequestsPerMinute,
		Window:   minutes(cfg.AuthWindowMinutes),
		Logger:   logger,
	})
	limiters[LimitOTP] = RateLimit(RateLimitConfig{
		Requests: cfg.OTPRequestsPerWindow,
		Window:   minutes(cfg.OTPWindowMinutes),
		Logger:   logger,
	})
	limiters[LimitReset] = RateLimit(RateLimitConfig{
		Requests: cfg.ResetRequestsPerWindow,
		Window:   minutes(cfg.ResetWindowMinutes),
		Logger:   logger,
	})
	limiters[LimitRefresh] = RateLimit(RateLimitConfig{
		Requests: cfg.RefreshRequestsPerMinute,
		Window:   minutes(cfg.RefreshWindowMinutes),
		Logger:   logger,
	})
	limiters[LimitSocial] = RateLimit(RateLimitConfig{
		Requests: cfg.SocialRequestsPerMinute,
		Window:   minutes(cfg.SocialWindowMinutes),
		Logger:   logger,
		ByUser:   true,
	})
	return limiters
}
