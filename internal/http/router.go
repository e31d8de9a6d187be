package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tendant/planhub/internal/config"
	"github.com/tendant/planhub/internal/http/features/account"
	"github.com/tendant/planhub/internal/http/features/me"
	"github.com/tendant/planhub/internal/http/features/session"
	"github.com/tendant/planhub/internal/http/features/social"
	"github.com/tendant/planhub/internal/http/middleware"
	"github.com/tendant/planhub/internal/httputil"
	"github.com/tendant/planhub/internal/metrics"
)

// Accounts is everything the account and profile handlers need.
type Accounts interface {
	account.Accounts
	me.Accounts
}

// Logins covers password login and token refresh.
type Logins interface {
	account.Logins
	session.Refresher
}

// Tokens validates access tokens and reports token lifetimes.
type Tokens interface {
	middleware.TokenValidator
	account.TokenTTLs
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Accounts        Accounts
	Logins          Logins
	Tokens          Tokens
	Requests        social.Requests
	Plans           social.Plans
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	CORS            config.CORSConfig
	Validation      config.ValidationConfig
	CookieSecure    bool
	// RequireVerified gates the social endpoints on a verified email.
	RequireVerified bool
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cookies := httputil.DefaultCookieConfig(cfg.CookieSecure)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(metrics.Middleware)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Type"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	limiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, logger)

	accountHandler := account.NewHandler(logger, cfg.Accounts, cfg.Logins, cfg.Tokens, cookies)
	r.Group(func(r chi.Router) {
		r.Use(limiters[middleware.LimitAuth])
		r.Post("/v1/auth/signup", accountHandler.Signup)
		r.Post("/v1/auth/login", accountHandler.Login)
	})
	r.Group(func(r chi.Router) {
		r.Use(limiters[middleware.LimitOTP])
		r.Post("/v1/auth/verify", accountHandler.Verify)
		r.Post("/v1/auth/otp/resend", accountHandler.ResendOTP)
	})
	r.Group(func(r chi.Router) {
		r.Use(limiters[middleware.LimitReset])
		r.Post("/v1/auth/password/forget", accountHandler.ForgetPassword)
		r.Post("/v1/auth/password/reset", accountHandler.ResetPassword)
	})

	sessionHandler := session.NewHandler(cfg.Logins, cfg.Tokens, cookies)
	r.With(limiters[middleware.LimitRefresh]).Post("/v1/auth/refresh", sessionHandler.Refresh)
	r.Post("/v1/auth/logout", sessionHandler.Logout)

	meHandler := me.NewHandler(cfg.Accounts, cfg.Tokens, cookies)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens))
		r.Get("/v1/me", meHandler.GetMe)
		r.With(limiters[middleware.LimitAuth]).Post("/v1/me/password", meHandler.ChangePassword)
		r.With(limiters[middleware.LimitAuth]).Delete("/v1/me", meHandler.DeleteMe)
	})

	socialHandler := social.NewHandler(cfg.Requests, cfg.Plans)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens))
		if cfg.RequireVerified {
			r.Use(middleware.RequireVerified())
		}
		r.Use(limiters[middleware.LimitSocial])

		r.Get("/v1/friends", socialHandler.ListFriends)
		r.Post("/v1/friends/requests", socialHandler.SendFriendRequest)

		r.Post("/v1/plans", socialHandler.CreatePlan)
		r.Get("/v1/plans/{planID}", socialHandler.GetPlan)
		r.Post("/v1/plans/{planID}/requests", socialHandler.SendPlanRequest)

		r.Get("/v1/requests", socialHandler.ListRequests)
		r.Post("/v1/requests/{requestID}/accept", socialHandler.Accept)
		r.Post("/v1/requests/{requestID}/reject", socialHandler.Reject)

		r.Get("/v1/notifications", socialHandler.ListNotifications)
		r.Post("/v1/notifications/{notificationID}/read", socialHandler.MarkNotificationRead)
	})

	return r
}
