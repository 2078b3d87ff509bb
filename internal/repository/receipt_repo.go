package repository

import (
	"context"
	"time"

	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReceiptRepository interface {
	Create(ctx context.Context, rec *model.Receipt) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) (*model.Receipt, error)
	Update(ctx context.Context, rec *model.Receipt) error
	NextReceiptNumber(ctx context.Context) (int, error)
	// FindPendingRetries returns pending receipts whose next_retry_at has
	// passed, oldest first. Consumed by the retry cron.
	FindPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Receipt, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.Receipt, error)
}

type receiptRepo struct{ db *gorm.DB }

func NewReceiptRepository(db *gorm.DB) ReceiptRepository { return &receiptRepo{db: db} }

func (r *receiptRepo) Create(ctx context.Context, rec *model.Receipt) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *receiptRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	var rec model.Receipt
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *receiptRepo) FindByPayment(ctx context.Context, paymentID uuid.UUID) (*model.Receipt, error) {
	var rec model.Receipt
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *receiptRepo) Update(ctx context.Context, rec *model.Receipt) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *receiptRepo) NextReceiptNumber(ctx context.Context) (int, error) {
	// PostgreSQL sequence for atomic receipt numbering
	var num int
	err := r.db.WithContext(ctx).Raw("SELECT nextval('receipts_number_seq')").Scan(&num).Error
	return num, err
}

func (r *receiptRepo) FindPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Receipt, error) {
	var recs []model.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.ReceiptPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *receiptRepo) ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.Receipt, error) {
	var recs []model.Receipt
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&recs).Error
	return recs, err
}
