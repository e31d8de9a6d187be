package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/planhub/pkg/domain"
)

const userColumns = `
	id, email, username, name, role, status, verified, password_hash, device_token,
	is_restricted, restriction_left_at, wrong_login_attempts, password_changed_at,
	created_at, updated_at`

const authColumns = `is_restricted, restriction_left_at, wrong_login_attempts, password_changed_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.Name, &user.Role, &user.Status,
		&user.Verified, &user.PasswordHash, &user.DeviceToken,
		&user.Authentication.IsRestricted, &user.Authentication.RestrictionLeftAt,
		&user.Authentication.WrongLoginAttempts, &user.Authentication.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateTx creates a new user within a transaction.
func (r *UsersRepository) CreateTx(ctx context.Context, q Querier, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, username, name, role, status, verified, password_hash,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.Name, user.Role, user.Status,
		user.Verified, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if constraint, ok := uniqueConstraint(err); ok {
		if constraint == "users_username_key" {
			return domain.ErrUsernameTaken
		}
		return domain.ErrUserAlreadyExists
	}
	return err
}

// GetByID retrieves a non-deleted user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx retrieves a non-deleted user by ID within a transaction.
func (r *UsersRepository) GetByIDTx(ctx context.Context, q Querier, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND status <> 'deleted'`
	return scanUser(q.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a non-deleted user by normalized email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND status <> 'deleted'`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByIdentifier retrieves a user by email or username restricted to the
// given statuses.
func (r *UsersRepository) GetByIdentifier(ctx context.Context, identifier string, statuses []domain.UserStatus) (*domain.User, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (email = $1 OR username = $1) AND status = ANY($2)
		ORDER BY (email = $1) DESC
		LIMIT 1
	`
	return scanUser(r.db.QueryRowContext(ctx, query, identifier, pq.Array(names)))
}

// ProfilesByIDs returns the public profiles of the given non-deleted users.
func (r *UsersRepository) ProfilesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, name, username
		FROM users
		WHERE id = ANY($1::uuid[]) AND status <> 'deleted'
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Username); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ExistsByEmail checks if a non-deleted user holds the email.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND status <> 'deleted')`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, email).Scan(&exists)
	return exists, err
}

// RecordLoginFailure applies one failed attempt atomically and returns the
// resulting counters. The CASE expressions follow domain.LockoutRule.Apply.
func (r *UsersRepository) RecordLoginFailure(ctx context.Context, userID uuid.UUID, rule domain.LockoutRule, now time.Time) (domain.Authentication, error) {
	query := `
		UPDATE users
		SET wrong_login_attempts = wrong_login_attempts + 1,
		    is_restricted = CASE
		        WHEN wrong_login_attempts + 1 >= $2 THEN TRUE
		        ELSE is_restricted
		    END,
		    restriction_left_at = CASE
		        WHEN wrong_login_attempts + 1 < $2 THEN restriction_left_at
		        WHEN $4 AND restriction_left_at IS NOT NULL AND restriction_left_at > $5
		             THEN LEAST(restriction_left_at, $3)
		        ELSE $3
		    END,
		    updated_at = $5
		WHERE id = $1 AND status <> 'deleted'
		RETURNING ` + authColumns

	var a domain.Authentication
	err := r.db.QueryRowContext(ctx, query,
		userID, rule.MaxAttempts, rule.LockUntil, rule.Strategy == domain.LockoutExtend, now,
	).Scan(&a.IsRestricted, &a.RestrictionLeftAt, &a.WrongLoginAttempts, &a.PasswordChangedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, domain.ErrUserNotFound
	}
	if err != nil {
		return a, fmt.Errorf("record login failure: %w", err)
	}
	return a, nil
}

// ResetLoginFailures clears the lockout counters.
func (r *UsersRepository) ResetLoginFailures(ctx context.Context, userID uuid.UUID, now time.Time) error {
	query := `
		UPDATE users
		SET wrong_login_attempts = 0,
		    is_restricted = FALSE,
		    restriction_left_at = NULL,
		    updated_at = $2
		WHERE id = $1 AND status <> 'deleted'
	`
	_, err := r.db.ExecContext(ctx, query, userID, now)
	return err
}

// ReleaseExpiredLock clears the counters only if the lock has run out, so a
// concurrent failure that set a fresh lock is left alone.
func (r *UsersRepository) ReleaseExpiredLock(ctx context.Context, userID uuid.UUID, now time.Time) error {
	query := `
		UPDATE users
		SET wrong_login_attempts = 0,
		    is_restricted = FALSE,
		    restriction_left_at = NULL,
		    updated_at = $2
		WHERE id = $1 AND restriction_left_at IS NOT NULL AND restriction_left_at <= $2
	`
	_, err := r.db.ExecContext(ctx, query, userID, now)
	return err
}

// UpdatePasswordTx stores a new hash, stamps password_changed_at and clears
// the lockout counters.
func (r *UsersRepository) UpdatePasswordTx(ctx context.Context, q Querier, userID uuid.UUID, hash string, now time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    password_changed_at = $3,
		    wrong_login_attempts = 0,
		    is_restricted = FALSE,
		    restriction_left_at = NULL,
		    updated_at = $3
		WHERE id = $1 AND status <> 'deleted'
	`
	res, err := q.ExecContext(ctx, query, userID, hash, now)
	if err != nil {
		return err
	}
	return expectOne(res, domain.ErrUserNotFound)
}

// MarkVerifiedTx flags the account as verified.
func (r *UsersRepository) MarkVerifiedTx(ctx context.Context, q Querier, userID uuid.UUID, now time.Time) error {
	query := `
		UPDATE users
		SET verified = TRUE, updated_at = $2
		WHERE id = $1 AND status <> 'deleted'
	`
	res, err := q.ExecContext(ctx, query, userID, now)
	if err != nil {
		return err
	}
	return expectOne(res, domain.ErrUserNotFound)
}

// SetDeviceToken stores the push token used for notifications.
func (r *UsersRepository) SetDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	query := `UPDATE users SET device_token = $2, updated_at = NOW() WHERE id = $1 AND status <> 'deleted'`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	return err
}

// SoftDelete flips the status to deleted and suffixes the email so the
// address can register again.
func (r *UsersRepository) SoftDelete(ctx context.Context, userID uuid.UUID, now time.Time) error {
	query := `
		UPDATE users
		SET status = 'deleted',
		    email = email || '_deleted_' || $2::text,
		    device_token = NULL,
		    updated_at = $3
		WHERE id = $1 AND status <> 'deleted'
	`
	res, err := r.db.ExecContext(ctx, query, userID, now.Unix(), now)
	if err != nil {
		return err
	}
	return expectOne(res, domain.ErrUserNotFound)
}

func expectOne(res sql.Result, notFound error) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
