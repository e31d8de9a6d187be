package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

// OTPConfig holds the one-time-code policy shared by every flow.
type OTPConfig struct {
	Cooldown    time.Duration
	MaxAttempts int
	MaxRequests int
	CodeTTL     time.Duration
	RecordTTL   time.Duration
	Digits      int
}

// OTPManager owns the lifecycle of verification records: issue, verify and
// consume. Account activation, password reset and resend all go through it.
type OTPManager struct {
	config   OTPConfig
	tx       repository.Transactor
	records  VerificationStore
	delivery CodeDelivery
	logger   *slog.Logger
	now      func() time.Time
}

// NewOTPManager creates an OTP manager.
func NewOTPManager(config OTPConfig, tx repository.Transactor, records VerificationStore, delivery CodeDelivery, logger *slog.Logger) *OTPManager {
	if config.Cooldown < 0 {
		config.Cooldown = 0
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 5
	}
	if config.CodeTTL <= 0 {
		config.CodeTTL = 10 * time.Minute
	}
	if config.RecordTTL < config.CodeTTL {
		config.RecordTTL = time.Hour
	}
	if config.Digits <= 0 {
		config.Digits = 6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPManager{
		config:   config,
		tx:       tx,
		records:  records,
		delivery: delivery,
		logger:   logger,
		now:      time.Now,
	}
}

// CodeTTL returns how long an issued code stays valid.
func (m *OTPManager) CodeTTL() time.Duration {
	return m.config.CodeTTL
}

// Issue creates or replaces the code for (identifier, purpose) in its own
// transaction and hands the plaintext to the delivery channel after commit.
func (m *OTPManager) Issue(ctx context.Context, identifier string, purpose domain.Purpose) error {
	var code string
	err := m.tx.WithTx(ctx, func(q repository.Querier) error {
		var err error
		code, err = m.IssueTx(ctx, q, identifier, purpose)
		return err
	})
	if err != nil {
		return err
	}
	m.Deliver(ctx, identifier, purpose, code)
	return nil
}

// IssueTx applies the cooldown and request limit and upserts a fresh code
// inside the caller's transaction. The caller delivers the returned code
// once the transaction has committed.
func (m *OTPManager) IssueTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose) (string, error) {
	if !purpose.Valid() {
		return "", domain.ErrInvalidPurpose
	}
	now := m.now()

	existing, err := m.records.GetForUpdateTx(ctx, q, identifier, purpose, now)
	if err != nil && !errors.Is(err, domain.ErrOTPNotFound) {
		return "", err
	}
	if existing != nil {
		if now.Sub(existing.LatestRequestAt) < m.config.Cooldown {
			return "", domain.ErrOTPCooldown
		}
		if existing.RequestCount >= m.config.MaxRequests {
			return "", domain.ErrOTPRequestLimit
		}
	}

	code, err := GenerateCode(m.config.Digits)
	if err != nil {
		return "", err
	}

	_, err = m.records.UpsertTx(ctx, q, &domain.VerificationRecord{
		ID:              uuid.New(),
		Identifier:      identifier,
		Purpose:         purpose,
		OTPHash:         HashToken(code),
		OTPExpiresAt:    now.Add(m.config.CodeTTL),
		LatestRequestAt: now,
		ExpiresAt:       now.Add(m.config.RecordTTL),
	}, m.config.Cooldown)
	if err != nil {
		return "", err
	}
	return code, nil
}

// Deliver hands a code to the delivery channel. Delivery is best-effort.
func (m *OTPManager) Deliver(ctx context.Context, identifier string, purpose domain.Purpose, code string) {
	if m.delivery == nil {
		m.logger.Warn("no code delivery configured", "purpose", purpose)
		return
	}
	m.delivery.DeliverCode(ctx, identifier, purpose, code, m.config.CodeTTL)
}

// VerifyTx checks candidate against the live record. A wrong guess is
// counted, and the returned error asks the enclosing transaction to commit
// so the count sticks. On success the caller consumes the record in the
// same transaction as whatever the code unlocks.
func (m *OTPManager) VerifyTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose, candidate string) error {
	if !purpose.Valid() {
		return domain.ErrInvalidPurpose
	}
	now := m.now()

	rec, err := m.records.GetForUpdateTx(ctx, q, identifier, purpose, now)
	if err != nil {
		return err
	}
	if rec.Attempts >= m.config.MaxAttempts {
		return domain.ErrOTPTooManyAttempts
	}
	if rec.CodeExpired(now) {
		return domain.ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(HashToken(candidate)), []byte(rec.OTPHash)) != 1 {
		if err := m.records.IncrementAttemptsTx(ctx, q, identifier, purpose); err != nil {
			return err
		}
		m.logger.Info("wrong verification code", "purpose", purpose, "attempts", rec.Attempts+1)
		return repository.CommitWithError(domain.ErrOTPInvalid)
	}
	return nil
}

// ConsumeTx deletes the record so the code cannot be replayed.
func (m *OTPManager) ConsumeTx(ctx context.Context, q repository.Querier, identifier string, purpose domain.Purpose) error {
	return m.records.DeleteTx(ctx, q, identifier, purpose)
}
