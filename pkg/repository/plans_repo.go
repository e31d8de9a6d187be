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

// PlansRepository reads plans and maintains their collaborator sets.
type PlansRepository struct {
	db *sql.DB
}

// NewPlansRepository creates a new plans repository.
func NewPlansRepository(db *sql.DB) *PlansRepository {
	return &PlansRepository{db: db}
}

// Create inserts a plan.
func (r *PlansRepository) Create(ctx context.Context, plan *domain.Plan) error {
	query := `
		INSERT INTO plans (id, owner_id, title, collaborators, created_at, updated_at)
		VALUES ($1, $2, $3, $4::uuid[], $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		plan.ID, plan.OwnerID, plan.Title, pq.Array(uuidStrings(plan.Collaborators)),
		plan.CreatedAt, plan.UpdatedAt,
	)
	return err
}

// GetTx returns a plan. With forUpdate the row stays locked until the
// transaction ends.
func (r *PlansRepository) GetTx(ctx context.Context, q Querier, id uuid.UUID, forUpdate bool) (*domain.Plan, error) {
	query := `
		SELECT id, owner_id, title, collaborators::text[], created_at, updated_at
		FROM plans
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	plan := &domain.Plan{}
	var collaborators pq.StringArray
	err := q.QueryRowContext(ctx, query, id).Scan(
		&plan.ID, &plan.OwnerID, &plan.Title, &collaborators, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	plan.Collaborators = make([]uuid.UUID, 0, len(collaborators))
	for _, s := range collaborators {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("plan %s collaborator %q: %w", plan.ID, s, err)
		}
		plan.Collaborators = append(plan.Collaborators, id)
	}
	return plan, nil
}

// AddCollaboratorTx adds userID to the plan's collaborators unless present.
// It reports whether the set changed.
func (r *PlansRepository) AddCollaboratorTx(ctx context.Context, q Querier, planID, userID uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE plans
		SET collaborators = array_append(collaborators, $2::uuid),
		    updated_at = $3
		WHERE id = $1 AND NOT ($2::uuid = ANY(collaborators))
	`
	res, err := q.ExecContext(ctx, query, planID, userID, now)
	if err != nil {
		return false, err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
