package service

import (
	"context"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"

	"github.com/google/uuid"
)

type PlanService interface {
	Create(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.PlanResponse, error)
	List(ctx context.Context, includeInactive bool) ([]dto.PlanResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type planService struct {
	repo repository.PlanRepository
}

func NewPlanService(repo repository.PlanRepository) PlanService {
	return &planService{repo: repo}
}

func (s *planService) Create(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	// Each plan type needs its own sizing field filled in.
	switch req.Type {
	case model.PlanDuration:
		if req.DurationDays <= 0 {
			return nil, apierror.Validation("invalid_duration",
				"duration plans require duration_days > 0")
		}
	case model.PlanSessions:
		if req.TotalSessions <= 0 {
			return nil, apierror.Validation("invalid_sessions",
				"sessions plans require total_sessions > 0")
		}
	}

	plan := &model.Plan{
		Name:          req.Name,
		Type:          req.Type,
		Price:         req.Price.Round(2),
		DurationDays:  req.DurationDays,
		TotalSessions: req.TotalSessions,
		ValidityDays:  req.ValidityDays,
		SessionPrice:  req.SessionPrice,
		Active:        true,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, err
	}
	return planToResponse(plan), nil
}

func (s *planService) Get(ctx context.Context, id uuid.UUID) (*dto.PlanResponse, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("plan_not_found", "plan not found")
	}
	return planToResponse(plan), nil
}

func (s *planService) List(ctx context.Context, includeInactive bool) ([]dto.PlanResponse, error) {
	plans, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.PlanResponse, len(plans))
	for i := range plans {
		resp[i] = *planToResponse(&plans[i])
	}
	return resp, nil
}

func (s *planService) Deactivate(ctx context.Context, id uuid.UUID) error {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return apierror.NotFound("plan_not_found", "plan not found")
	}
	plan.Active = false
	return s.repo.Update(ctx, plan)
}

func planToResponse(p *model.Plan) *dto.PlanResponse {
	return &dto.PlanResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		Type:          p.Type,
		Price:         p.Price,
		DurationDays:  p.DurationDays,
		TotalSessions: p.TotalSessions,
		ValidityDays:  p.ValidityDays,
		SessionPrice:  p.SessionPrice,
		Active:        p.Active,
	}
}
