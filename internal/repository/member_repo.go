package repository

import (
	"context"

	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MemberRepository interface {
	Create(ctx context.Context, m *model.Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error)
	Update(ctx context.Context, m *model.Member) error
	List(ctx context.Context, page, limit int) ([]model.Member, int64, error)
}

type memberRepo struct{ db *gorm.DB }

func NewMemberRepository(db *gorm.DB) MemberRepository { return &memberRepo{db: db} }

func (r *memberRepo) Create(ctx context.Context, m *model.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *memberRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	var m model.Member
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memberRepo) Update(ctx context.Context, m *model.Member) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *memberRepo) List(ctx context.Context, page, limit int) ([]model.Member, int64, error) {
	var members []model.Member
	var total int64
	offset := (page - 1) * limit

	q := r.db.WithContext(ctx).Model(&model.Member{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&members).Error
	return members, total, err
}
