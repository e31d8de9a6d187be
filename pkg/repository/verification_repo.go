package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tendant/planhub/pkg/domain"
)

// VerificationRepository persists one-time-code records, one per
// (identifier, purpose).
type VerificationRepository struct {
	db *sql.DB
}

// NewVerificationRepository creates a new verification repository.
func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// GetForUpdateTx locks and returns the live record. Rows past their hard TTL
// are treated as absent.
func (r *VerificationRepository) GetForUpdateTx(ctx context.Context, q Querier, identifier string, purpose domain.Purpose, now time.Time) (*domain.VerificationRecord, error) {
	query := `
		SELECT id, identifier, purpose, otp_hash, otp_expires_at, latest_request_at,
		       attempts, request_count, expires_at, created_at
		FROM verification_records
		WHERE identifier = $1 AND purpose = $2 AND expires_at > $3
		FOR UPDATE
	`
	rec := &domain.VerificationRecord{}
	err := q.QueryRowContext(ctx, query, identifier, purpose, now).Scan(
		&rec.ID, &rec.Identifier, &rec.Purpose, &rec.OTPHash, &rec.OTPExpiresAt,
		&rec.LatestRequestAt, &rec.Attempts, &rec.RequestCount, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertTx inserts the record or fully replaces the code of the existing one.
// Attempts always restart at zero. The request counter carries over from a
// live row and restarts at one when the old row had already expired.
//
// A live row requested less than cooldown ago is left untouched and
// ErrOTPCooldown is returned. This holds when two first requests race on
// the unique key, where GetForUpdateTx had no row to lock.
func (r *VerificationRepository) UpsertTx(ctx context.Context, q Querier, rec *domain.VerificationRecord, cooldown time.Duration) (*domain.VerificationRecord, error) {
	query := `
		INSERT INTO verification_records (id, identifier, purpose, otp_hash, otp_expires_at,
		                                  latest_request_at, attempts, request_count, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 1, $7, $6)
		ON CONFLICT (identifier, purpose) DO UPDATE
		SET otp_hash = EXCLUDED.otp_hash,
		    otp_expires_at = EXCLUDED.otp_expires_at,
		    latest_request_at = EXCLUDED.latest_request_at,
		    attempts = 0,
		    request_count = CASE
		        WHEN verification_records.expires_at > EXCLUDED.latest_request_at
		             THEN verification_records.request_count + 1
		        ELSE 1
		    END,
		    expires_at = EXCLUDED.expires_at
		WHERE verification_records.expires_at <= EXCLUDED.latest_request_at
		   OR verification_records.latest_request_at <= $8
		RETURNING id, attempts, request_count, created_at
	`
	out := *rec
	err := q.QueryRowContext(ctx, query,
		rec.ID, rec.Identifier, rec.Purpose, rec.OTPHash, rec.OTPExpiresAt,
		rec.LatestRequestAt, rec.ExpiresAt, rec.LatestRequestAt.Add(-cooldown),
	).Scan(&out.ID, &out.Attempts, &out.RequestCount, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOTPCooldown
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// IncrementAttemptsTx adds one failed guess.
func (r *VerificationRepository) IncrementAttemptsTx(ctx context.Context, q Querier, identifier string, purpose domain.Purpose) error {
	query := `
		UPDATE verification_records
		SET attempts = attempts + 1
		WHERE identifier = $1 AND purpose = $2
	`
	_, err := q.ExecContext(ctx, query, identifier, purpose)
	return err
}

// DeleteTx removes the record once its code has been used.
func (r *VerificationRepository) DeleteTx(ctx context.Context, q Querier, identifier string, purpose domain.Purpose) error {
	query := `DELETE FROM verification_records WHERE identifier = $1 AND purpose = $2`
	_, err := q.ExecContext(ctx, query, identifier, purpose)
	return err
}

// PurgeExpired deletes records past their hard TTL.
func (r *VerificationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM verification_records WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}
