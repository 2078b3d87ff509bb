package repository

import (
	"context"

	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PlanRepository interface {
	Create(ctx context.Context, p *model.Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Plan, error)
	Update(ctx context.Context, p *model.Plan) error
	List(ctx context.Context, includeInactive bool) ([]model.Plan, error)
}

type planRepo struct{ db *gorm.DB }

func NewPlanRepository(db *gorm.DB) PlanRepository { return &planRepo{db: db} }

func (r *planRepo) Create(ctx context.Context, p *model.Plan) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *planRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	var p model.Plan
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *planRepo) Update(ctx context.Context, p *model.Plan) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *planRepo) List(ctx context.Context, includeInactive bool) ([]model.Plan, error) {
	var plans []model.Plan
	q := r.db.WithContext(ctx)
	if !includeInactive {
		q = q.Where("active = true")
	}
	err := q.Order("name ASC").Find(&plans).Error
	return plans, err
}
