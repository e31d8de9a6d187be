package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
)

const requestColumns = `id, requested_by, requested_to, status, type, plan_id, created_at, updated_at`

// RequestsRepository handles friend and plan-join request persistence.
type RequestsRepository struct {
	db *sql.DB
}

// NewRequestsRepository creates a new requests repository.
func NewRequestsRepository(db *sql.DB) *RequestsRepository {
	return &RequestsRepository{db: db}
}

func scanRequest(row interface{ Scan(...any) error }) (*domain.Request, error) {
	req := &domain.Request{}
	err := row.Scan(
		&req.ID, &req.RequestedBy, &req.RequestedTo, &req.Status, &req.Type,
		&req.PlanID, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CreateTx inserts a pending request. The partial unique index turns a
// concurrent duplicate into ErrRequestPending.
func (r *RequestsRepository) CreateTx(ctx context.Context, q Querier, req *domain.Request) error {
	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		req.ID, req.RequestedBy, req.RequestedTo, req.Status, req.Type,
		req.PlanID, req.CreatedAt, req.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrRequestPending
	}
	return err
}

// FindPendingTx looks up a pending request between a and b in either
// direction.
func (r *RequestsRepository) FindPendingTx(ctx context.Context, q Querier, a, b uuid.UUID, typ domain.RequestType, planID *uuid.UUID) (*domain.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE ((requested_by = $1 AND requested_to = $2) OR (requested_by = $2 AND requested_to = $1))
		  AND type = $3
		  AND plan_id IS NOT DISTINCT FROM $4::uuid
		  AND status = 'pending'
		LIMIT 1
	`
	return scanRequest(q.QueryRowContext(ctx, query, a, b, typ, planID))
}

// GetForUpdateTx locks and returns a request.
func (r *RequestsRepository) GetForUpdateTx(ctx context.Context, q Querier, id uuid.UUID) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1 FOR UPDATE`
	return scanRequest(q.QueryRowContext(ctx, query, id))
}

// TransitionTx moves a pending request to status. A request that is no
// longer pending yields ErrRequestAlreadyProcessed.
func (r *RequestsRepository) TransitionTx(ctx context.Context, q Querier, id uuid.UUID, status domain.RequestStatus, now time.Time) error {
	query := `
		UPDATE requests
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	res, err := q.ExecContext(ctx, query, id, status, now)
	if err != nil {
		return err
	}
	return expectOne(res, domain.ErrRequestAlreadyProcessed)
}

// ListIncoming returns the pending requests addressed to userID, newest first.
func (r *RequestsRepository) ListIncoming(ctx context.Context, userID uuid.UUID) ([]*domain.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE requested_to = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
