package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/planhub/pkg/domain"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int
	AppName    string
	LogLevel   string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTRefreshSecret string
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	CookieSecure     bool

	Lockout         LockoutConfig
	OTP             OTPConfig
	ResetTokenTTL   time.Duration
	PasswordPolicy  PasswordPolicyConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	CORS            CORSConfig
	Validation      ValidationConfig
	Email           EmailConfig
	Events          EventsConfig
}

// LockoutConfig holds brute-force lockout settings.
type LockoutConfig struct {
	MaxWrongAttempts int
	Restriction      time.Duration
	Strategy         domain.LockoutStrategy
}

// OTPConfig holds one-time code settings.
type OTPConfig struct {
	Cooldown    time.Duration
	MaxAttempts int
	MaxRequests int
	CodeTTL     time.Duration
	RecordTTL   time.Duration
	Digits      int
}

// PasswordPolicyConfig holds password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// RateLimitConfig holds per-group request limits.
type RateLimitConfig struct {
	Enabled                  bool
	AuthRequestsPerMinute    int
	AuthWindowMinutes        int
	OTPRequestsPerWindow     int
	OTPWindowMinutes         int
	ResetRequestsPerWindow   int
	ResetWindowMinutes       int
	RefreshRequestsPerMinute int
	RefreshWindowMinutes     int
	SocialRequestsPerMinute  int
	SocialWindowMinutes      int
}

// SecurityHeadersConfig holds response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	MaxRequestBodySize    int64
	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// EmailConfig selects and configures the email transport.
type EmailConfig struct {
	Provider string // smtp, mailgun or log
	From     string
	FromName string
	Product  string
	LinkURL  string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	MailgunDomain string
	MailgunAPIKey string
	MailgunEU     bool
}

// EventsConfig selects the broker used for live updates and push.
type EventsConfig struct {
	Backend      string // none, rabbitmq or pubsub
	LiveChannel  string
	PushChannel  string
	RabbitMQ     RabbitMQConfig
	PubSub       PubSubConfig
	DispatchWait time.Duration
}

// RabbitMQConfig configures the RabbitMQ backend.
type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

// PubSubConfig configures the Google Pub/Sub backend.
type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	strategy, err := domain.ParseLockoutStrategy(getEnv("LOCKOUT_STRATEGY", string(domain.LockoutExtend)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		AppName:    getEnv("APP_NAME", "planhub"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "planhub"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT defaults
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "planhub"),
		AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		CookieSecure:     getEnvBool("COOKIE_SECURE", false),

		Lockout: LockoutConfig{
			MaxWrongAttempts: getEnvInt("MAX_WRONG_ATTEMPTS", 5),
			Restriction:      time.Duration(getEnvInt("RESTRICTION_MINUTES", 15)) * time.Minute,
			Strategy:         strategy,
		},
		OTP: OTPConfig{
			Cooldown:    time.Duration(getEnvInt("OTP_COOLDOWN_SECONDS", 60)) * time.Second,
			MaxAttempts: getEnvInt("MAX_OTP_ATTEMPTS", 3),
			MaxRequests: getEnvInt("MAX_OTP_REQUEST_ALLOWED", 5),
			CodeTTL:     getEnvDuration("OTP_TTL", 10*time.Minute),
			RecordTTL:   getEnvDuration("OTP_RECORD_TTL", time.Hour),
			Digits:      getEnvInt("OTP_DIGITS", 6),
		},
		ResetTokenTTL: time.Duration(getEnvInt("RESET_TOKEN_TTL_MINUTES", 15)) * time.Minute,

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", false),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", false),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", false),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),
		},

		RateLimit: RateLimitConfig{
			Enabled:                  getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:    getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindowMinutes:        getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			OTPRequestsPerWindow:     getEnvInt("RATE_LIMIT_OTP_REQUESTS", 10),
			OTPWindowMinutes:         getEnvInt("RATE_LIMIT_OTP_WINDOW_MINUTES", 10),
			ResetRequestsPerWindow:   getEnvInt("RATE_LIMIT_RESET_REQUESTS", 5),
			ResetWindowMinutes:       getEnvInt("RATE_LIMIT_RESET_WINDOW_MINUTES", 15),
			RefreshRequestsPerMinute: getEnvInt("RATE_LIMIT_REFRESH_REQUESTS", 30),
			RefreshWindowMinutes:     getEnvInt("RATE_LIMIT_REFRESH_WINDOW_MINUTES", 1),
			SocialRequestsPerMinute:  getEnvInt("RATE_LIMIT_SOCIAL_REQUESTS", 60),
			SocialWindowMinutes:      getEnvInt("RATE_LIMIT_SOCIAL_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
		},

		CORS: CORSConfig{
			AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", nil),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 300),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize:    int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
			StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", true),
			BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),
		},

		Email: EmailConfig{
			Provider:      getEnv("EMAIL_PROVIDER", "log"),
			From:          getEnv("EMAIL_FROM", "no-reply@planhub.local"),
			FromName:      getEnv("EMAIL_FROM_NAME", "Planhub"),
			Product:       getEnv("EMAIL_PRODUCT_NAME", "Planhub"),
			LinkURL:       getEnv("APP_BASE_URL", "http://localhost:8080"),
			SMTPHost:      getEnv("SMTP_HOST", "localhost"),
			SMTPPort:      getEnvInt("SMTP_PORT", 1025),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
			MailgunDomain: getEnv("MAILGUN_DOMAIN", ""),
			MailgunAPIKey: getEnv("MAILGUN_API_KEY", ""),
			MailgunEU:     getEnvBool("MAILGUN_EU", false),
		},

		Events: EventsConfig{
			Backend:      getEnv("EVENTS_BACKEND", "none"),
			LiveChannel:  getEnv("EVENTS_LIVE_CHANNEL", "live-updates"),
			PushChannel:  getEnv("EVENTS_PUSH_CHANNEL", "push-notifications"),
			DispatchWait: getEnvDuration("EVENTS_DISPATCH_TIMEOUT", 10*time.Second),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Lockout.MaxWrongAttempts <= 0 {
		return fmt.Errorf("MAX_WRONG_ATTEMPTS must be positive, got %d", c.Lockout.MaxWrongAttempts)
	}
	if c.OTP.MaxAttempts <= 0 || c.OTP.MaxRequests <= 0 {
		return errors.New("MAX_OTP_ATTEMPTS and MAX_OTP_REQUEST_ALLOWED must be positive")
	}
	switch c.Email.Provider {
	case "log", "smtp":
	case "mailgun":
		if c.Email.MailgunDomain == "" || c.Email.MailgunAPIKey == "" {
			return errors.New("MAILGUN_DOMAIN and MAILGUN_API_KEY are required for the mailgun provider")
		}
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}
	switch c.Events.Backend {
	case "none":
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			return errors.New("RABBITMQ_URL is required for the rabbitmq backend")
		}
	case "pubsub":
		if c.Events.PubSub.ProjectID == "" {
			return errors.New("PUBSUB_PROJECT_ID is required for the pubsub backend")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
