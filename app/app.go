// Package app wires repositories, services, delivery and the HTTP router
// into one runnable planhub instance.
//
// Setup:
//
//  1. Run migrations (planhub migrate up)
//  2. Create the App and serve its router
//
// Basic usage:
//
//	cfg, _ := config.Load()
//	db, _ := repository.NewDB(app.DBConfig(cfg))
//
//	a, err := app.New(ctx, cfg, db, logger)
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//	defer a.Close()
//	http.ListenAndServe(cfg.Addr(), a.Router())
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/planhub/internal/config"
	"github.com/tendant/planhub/internal/events"
	httpserver "github.com/tendant/planhub/internal/http"
	"github.com/tendant/planhub/internal/metrics"
	"github.com/tendant/planhub/internal/notification"
	"github.com/tendant/planhub/pkg/auth"
	"github.com/tendant/planhub/pkg/notify"
	"github.com/tendant/planhub/pkg/repository"
	"github.com/tendant/planhub/pkg/social"
)

// App is a wired planhub instance.
type App struct {
	config  *config.Config
	db      *sql.DB
	logger  *slog.Logger
	backend events.Backend

	verificationRepo *repository.VerificationRepository
	resetTokensRepo  *repository.ResetTokensRepository

	tokens     *auth.TokenService
	accounts   *auth.AccountService
	logins     *auth.LoginService
	requests   *social.RequestService
	plans      *social.PlanService
	dispatcher *notify.Dispatcher
}

// DBConfig extracts the database settings from cfg.
func DBConfig(cfg *config.Config) repository.Config {
	return repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
}

// Option customizes New.
type Option func(*options)

type options struct {
	email notify.EmailSender
}

// WithEmailSender replaces the email transport selected by the config.
func WithEmailSender(s notify.EmailSender) Option {
	return func(o *options) { o.email = s }
}

// New creates an App on db. It fails when the schema is missing or the
// configured broker cannot be reached.
func New(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if db == nil {
		return nil, errors.New("app: DB is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := validateSchema(ctx, db); err != nil {
		return nil, err
	}

	backend, err := events.Open(ctx, cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("app: open events backend: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	email := o.email
	if email == nil {
		email, err = newEmailSender(cfg.Email, logger)
		if err != nil {
			if backend != nil {
				_ = backend.Close()
			}
			return nil, err
		}
	}

	tx := repository.NewTransactor(db)
	usersRepo := repository.NewUsersRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	resetTokensRepo := repository.NewResetTokensRepository(db)
	requestsRepo := repository.NewRequestsRepository(db)
	friendshipsRepo := repository.NewFriendshipsRepository(db)
	plansRepo := repository.NewPlansRepository(db)
	notificationsRepo := repository.NewNotificationsRepository(db)

	dispatchCfg := notify.Config{
		Email: email,
		Renderer: notification.NewTemplates(notification.Product{
			Name: cfg.Email.Product,
			Link: cfg.Email.LinkURL,
		}),
		Store:   notificationsRepo,
		Devices: usersRepo,
		Timeout: cfg.Events.DispatchWait,
		OnFail:  metrics.DispatchFailure,
		Logger:  logger,
	}
	if backend != nil {
		dispatchCfg.Live = events.NewEmitter(backend, cfg.Events.LiveChannel, logger)
		dispatchCfg.Push = events.NewPushQueue(backend, cfg.Events.PushChannel)
	}
	dispatcher := notify.NewDispatcher(dispatchCfg)

	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		JWTSecret:       []byte(cfg.JWTSecret),
		RefreshSecret:   []byte(cfg.JWTRefreshSecret),
		Issuer:          cfg.JWTIssuer,
	})
	otp := auth.NewOTPManager(auth.OTPConfig{
		Cooldown:    cfg.OTP.Cooldown,
		MaxAttempts: cfg.OTP.MaxAttempts,
		MaxRequests: cfg.OTP.MaxRequests,
		CodeTTL:     cfg.OTP.CodeTTL,
		RecordTTL:   cfg.OTP.RecordTTL,
		Digits:      cfg.OTP.Digits,
	}, tx, verificationRepo, dispatcher, logger)
	lockout := auth.NewLockoutPolicy(auth.LockoutConfig{
		MaxAttempts: cfg.Lockout.MaxWrongAttempts,
		Restriction: cfg.Lockout.Restriction,
		Strategy:    cfg.Lockout.Strategy,
	}, usersRepo, logger)
	hasher := auth.Argon2Hasher{}

	accounts := auth.NewAccountService(auth.AccountConfig{
		StrictEmailValidation: cfg.Validation.StrictEmailValidation,
		BlockDisposableEmail:  cfg.Validation.BlockDisposableEmail,
	}, auth.AccountDeps{
		Tx:      tx,
		Users:   usersRepo,
		Hasher:  hasher,
		Policy:  auth.NewPasswordPolicy(cfg.PasswordPolicy),
		OTP:     otp,
		Resets:  auth.NewResetTokenService(cfg.ResetTokenTTL, resetTokensRepo),
		Tokens:  tokens,
		Lockout: lockout,
		Logger:  logger,
	})
	logins := auth.NewLoginService(usersRepo, hasher, lockout, otp, tokens, logger)

	requests := social.NewRequestService(social.Deps{
		Tx:            tx,
		Users:         usersRepo,
		Requests:      requestsRepo,
		Friendships:   friendshipsRepo,
		Plans:         plansRepo,
		Notifications: notificationsRepo,
		Notifier:      dispatcher,
		Logger:        logger,
	})

	return &App{
		config:           cfg,
		db:               db,
		logger:           logger,
		backend:          backend,
		verificationRepo: verificationRepo,
		resetTokensRepo:  resetTokensRepo,
		tokens:           tokens,
		accounts:         accounts,
		logins:           logins,
		requests:         requests,
		plans:            social.NewPlanService(tx, plansRepo),
		dispatcher:       dispatcher,
	}, nil
}

// Router returns the HTTP handler serving every planhub route.
func (a *App) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          a.logger,
		Accounts:        a.accounts,
		Logins:          a.logins,
		Tokens:          a.tokens,
		Requests:        a.requests,
		Plans:           a.plans,
		RateLimitConfig: a.config.RateLimit,
		SecurityHeaders: a.config.SecurityHeaders,
		CORS:            a.config.CORS,
		Validation:      a.config.Validation,
		CookieSecure:    a.config.CookieSecure,
		RequireVerified: true,
	})
}

// Tokens returns the token service for protecting routes outside the router.
func (a *App) Tokens() *auth.TokenService {
	return a.tokens
}

// Backend returns the events backend, or nil when none is configured.
func (a *App) Backend() events.Backend {
	return a.backend
}

// PurgeResult counts rows removed by Purge.
type PurgeResult struct {
	VerificationRecords int64
	ResetTokens         int64
}

// Purge deletes expired verification records and reset tokens.
func (a *App) Purge(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult
	now := time.Now()

	n, err := a.verificationRepo.PurgeExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("purge verification records: %w", err)
	}
	res.VerificationRecords = n

	n, err = a.resetTokensRepo.PurgeExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("purge reset tokens: %w", err)
	}
	res.ResetTokens = n

	a.logger.Info("purged expired records",
		"verification_records", res.VerificationRecords,
		"reset_tokens", res.ResetTokens,
	)
	return res, nil
}

// Close waits for in-flight deliveries, then closes the broker. The
// database is owned by the caller.
func (a *App) Close() error {
	a.dispatcher.Wait()
	if a.backend != nil {
		return a.backend.Close()
	}
	return nil
}

func newEmailSender(cfg config.EmailConfig, logger *slog.Logger) (notify.EmailSender, error) {
	switch cfg.Provider {
	case "smtp":
		return notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			FromName: cfg.FromName,
		}), nil
	case "mailgun":
		return notification.NewMailgunSender(notification.MailgunConfig{
			Domain:   cfg.MailgunDomain,
			APIKey:   cfg.MailgunAPIKey,
			EU:       cfg.MailgunEU,
			From:     cfg.From,
			FromName: cfg.FromName,
		}, logger), nil
	case "", "log":
		return notification.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("app: unknown email provider %q", cfg.Provider)
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB) error {
	requiredTables := []string{"users", "verification_records", "reset_tokens", "plans", "requests", "friendships", "notifications"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("app: missing table '%s' - run migrations first (planhub migrate up)", table)
		}
		if err != nil {
			return fmt.Errorf("app: failed to check schema: %w", err)
		}
	}

	return nil
}
