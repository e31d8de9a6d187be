package social

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
	"github.com/tendant/planhub/pkg/repository"
)

const maxPlanTitleLength = 120

// PlanService creates and reads plans.
type PlanService struct {
	tx    repository.Transactor
	plans PlanStore
	now   func() time.Time
}

// NewPlanService creates a plan service.
func NewPlanService(tx repository.Transactor, plans PlanStore) *PlanService {
	return &PlanService{tx: tx, plans: plans, now: time.Now}
}

// CreatePlan stores a new plan owned by ownerID. The title is expected to
// be sanitized already.
func (s *PlanService) CreatePlan(ctx context.Context, ownerID uuid.UUID, title string) (*domain.Plan, error) {
	if title == "" {
		return nil, domain.Invalid("title is required")
	}
	if len([]rune(title)) > maxPlanTitleLength {
		return nil, domain.Invalid("title must be at most %d characters long", maxPlanTitleLength)
	}

	now := s.now()
	plan := &domain.Plan{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Title:         title,
		Collaborators: []uuid.UUID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlan returns a plan visible to userID: its owner or a collaborator.
func (s *PlanService) GetPlan(ctx context.Context, userID, planID uuid.UUID) (*domain.Plan, error) {
	var plan *domain.Plan
	err := s.tx.WithTx(ctx, func(q repository.Querier) error {
		var err error
		plan, err = s.plans.GetTx(ctx, q, planID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != userID && !plan.HasCollaborator(userID) {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}
