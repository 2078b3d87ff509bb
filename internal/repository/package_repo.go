package repository

import (
	"context"
	"time"

	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PackageRepository interface {
	Create(ctx context.Context, p *model.MemberPackage) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MemberPackage, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.MemberPackage, error)
	FindActiveByMember(ctx context.Context, memberID uuid.UUID) (*model.MemberPackage, error)
	// ConsumeSessionTx decrements remaining_sessions by one with a guard on
	// status and balance. Returns rows updated — 0 means the assignment was
	// not ACTIVE or had no sessions left.
	ConsumeSessionTx(tx *gorm.DB, id uuid.UUID) (int64, error)
	CompleteIfExhaustedTx(tx *gorm.DB, id uuid.UUID) error
	CreateUsageTx(tx *gorm.DB, u *model.PackageSessionUsage) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.MemberPackage, error)
	// ExpireOverdue sweeps ACTIVE assignments past their end date to EXPIRED.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	FindIdempotencyRecord(ctx context.Context, key string) (*model.CheckInIdempotencyRecord, error)
	CreateIdempotencyRecordTx(tx *gorm.DB, rec *model.CheckInIdempotencyRecord) error
	DB() *gorm.DB
}

type packageRepo struct{ db *gorm.DB }

func NewPackageRepository(db *gorm.DB) PackageRepository { return &packageRepo{db: db} }

func (r *packageRepo) DB() *gorm.DB { return r.db }

func (r *packageRepo) Create(ctx context.Context, p *model.MemberPackage) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *packageRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.MemberPackage, error) {
	var p model.MemberPackage
	err := r.db.WithContext(ctx).
		Preload("Usages", func(db *gorm.DB) *gorm.DB { return db.Order("used_at ASC") }).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.MemberPackage, error) {
	var p model.MemberPackage
	err := tx.First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepo) FindActiveByMember(ctx context.Context, memberID uuid.UUID) (*model.MemberPackage, error) {
	var p model.MemberPackage
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, model.PackageActive).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepo) ConsumeSessionTx(tx *gorm.DB, id uuid.UUID) (int64, error) {
	res := tx.Exec(
		`UPDATE member_packages
		    SET remaining_sessions = remaining_sessions - 1, updated_at = NOW()
		  WHERE id = ? AND status = ? AND remaining_sessions > 0`,
		id, model.PackageActive,
	)
	return res.RowsAffected, res.Error
}

func (r *packageRepo) CompleteIfExhaustedTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&model.MemberPackage{}).
		Where("id = ? AND remaining_sessions = 0 AND status = ?", id, model.PackageActive).
		Update("status", model.PackageCompleted).Error
}

func (r *packageRepo) CreateUsageTx(tx *gorm.DB, u *model.PackageSessionUsage) error {
	return tx.Create(u).Error
}

func (r *packageRepo) ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.MemberPackage, error) {
	var packs []model.MemberPackage
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&packs).Error
	return packs, err
}

func (r *packageRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.MemberPackage{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", model.PackageActive, now).
		Update("status", model.PackageExpired)
	return res.RowsAffected, res.Error
}

func (r *packageRepo) FindIdempotencyRecord(ctx context.Context, key string) (*model.CheckInIdempotencyRecord, error) {
	var rec model.CheckInIdempotencyRecord
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *packageRepo) CreateIdempotencyRecordTx(tx *gorm.DB, rec *model.CheckInIdempotencyRecord) error {
	return tx.Create(rec).Error
}
