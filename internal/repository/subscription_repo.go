package repository

import (
	"context"
	"time"

	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	CreateTx(tx *gorm.DB, s *model.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
	FindActiveByMember(ctx context.Context, memberID uuid.UUID) (*model.Subscription, error)
	// FindRecentDuplicate looks for an identical member/plan subscription
	// created after `since` — the duplicate-submission replay window.
	FindRecentDuplicate(ctx context.Context, memberID, planID uuid.UUID, since time.Time) (*model.Subscription, error)
	// ExpireActiveByMemberTx marks every active subscription of the member as
	// expired. Used by renew before creating the fresh cycle.
	ExpireActiveByMemberTx(tx *gorm.DB, memberID uuid.UUID) error
	UpdateTx(tx *gorm.DB, s *model.Subscription) error
	// SetStatusTx transitions status only while the row is still in `from`;
	// returns the number of rows updated (0 = lost a concurrent transition).
	SetStatusTx(tx *gorm.DB, id uuid.UUID, from, to model.SubscriptionStatus) (int64, error)
	// ExtendEndDateTx pushes end_date forward by whole days.
	ExtendEndDateTx(tx *gorm.DB, id uuid.UUID, days int) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.Subscription, error)
	CreatePauseTx(tx *gorm.DB, p *model.SubscriptionPause) error
	FindOpenPause(ctx context.Context, subscriptionID uuid.UUID) (*model.SubscriptionPause, error)
	// ClosePauseTx stamps the end of a pause interval only while it is still
	// open; returns the number of rows updated.
	ClosePauseTx(tx *gorm.DB, p *model.SubscriptionPause) (int64, error)
	DB() *gorm.DB
}

type subscriptionRepo struct{ db *gorm.DB }

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) DB() *gorm.DB { return r.db }

func (r *subscriptionRepo) CreateTx(tx *gorm.DB, s *model.Subscription) error {
	return tx.Create(s).Error
}

func (r *subscriptionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.WithContext(ctx).
		Preload("Pauses", func(db *gorm.DB) *gorm.DB { return db.Order("start_at ASC") }).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepo) FindActiveByMember(ctx context.Context, memberID uuid.UUID) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, model.SubActive).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepo) FindRecentDuplicate(ctx context.Context, memberID, planID uuid.UUID, since time.Time) (*model.Subscription, error) {
	var s model.Subscription
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND plan_id = ? AND status = ? AND created_at >= ?",
			memberID, planID, model.SubActive, since).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepo) ExpireActiveByMemberTx(tx *gorm.DB, memberID uuid.UUID) error {
	return tx.Model(&model.Subscription{}).
		Where("member_id = ? AND status = ?", memberID, model.SubActive).
		Update("status", model.SubExpired).Error
}

func (r *subscriptionRepo) UpdateTx(tx *gorm.DB, s *model.Subscription) error {
	return tx.Save(s).Error
}

func (r *subscriptionRepo) SetStatusTx(tx *gorm.DB, id uuid.UUID, from, to model.SubscriptionStatus) (int64, error) {
	res := tx.Model(&model.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *subscriptionRepo) ExtendEndDateTx(tx *gorm.DB, id uuid.UUID, days int) error {
	return tx.Model(&model.Subscription{}).
		Where("id = ?", id).
		Update("end_date", gorm.Expr("end_date + make_interval(days => ?)", days)).Error
}

func (r *subscriptionRepo) ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepo) CreatePauseTx(tx *gorm.DB, p *model.SubscriptionPause) error {
	return tx.Create(p).Error
}

func (r *subscriptionRepo) FindOpenPause(ctx context.Context, subscriptionID uuid.UUID) (*model.SubscriptionPause, error) {
	var p model.SubscriptionPause
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND end_at IS NULL", subscriptionID).
		Order("start_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *subscriptionRepo) ClosePauseTx(tx *gorm.DB, p *model.SubscriptionPause) (int64, error) {
	res := tx.Model(&model.SubscriptionPause{}).
		Where("id = ? AND end_at IS NULL", p.ID).
		Updates(map[string]any{
			"end_at":        p.EndAt,
			"duration_days": p.DurationDays,
		})
	return res.RowsAffected, res.Error
}
