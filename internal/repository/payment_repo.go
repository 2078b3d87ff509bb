package repository

import (
	"context"

	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	CreateTx(tx *gorm.DB, p *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Payment, error)
	// FindLatestSettledBySubscription returns the most recent money-received
	// payment for a subscription — the refund target during cancellation.
	FindLatestSettledBySubscription(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) (*model.Payment, error)
	// SumRefundedBySubscription totals refunded_total across every payment of
	// the subscription — the refunded side of the proration arithmetic.
	SumRefundedBySubscription(ctx context.Context, subscriptionID uuid.UUID) (decimal.Decimal, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]model.Payment, error)
	ListByMember(ctx context.Context, memberID uuid.UUID, page, limit int) ([]model.Payment, int64, error)
	// AddRefundedTotalTx increments refunded_total with a guard that rejects
	// any increment pushing it above amount. Returns the number of rows
	// updated — 0 means the guard fired.
	AddRefundedTotalTx(tx *gorm.DB, paymentID uuid.UUID, amount decimal.Decimal) (int64, error)
	UpdateStatusTx(tx *gorm.DB, paymentID uuid.UUID, status string) error
	CreateRefundTx(tx *gorm.DB, ref *model.Refund) error
	SumCollectedByShift(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error)
	SumRefundedByShift(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error)
	DB() *gorm.DB
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) DB() *gorm.DB { return r.db }

func (r *paymentRepo) CreateTx(tx *gorm.DB, p *model.Payment) error {
	return tx.Create(p).Error
}

func (r *paymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Preload("Refunds").First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := tx.First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) FindLatestSettledBySubscription(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := tx.WithContext(ctx).
		Where("subscription_id = ? AND status IN ?", subscriptionID,
			[]string{model.PaymentCompleted, model.PaymentPartialRefund}).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("shift_id = ?", shiftID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) ListByMember(ctx context.Context, memberID uuid.UUID, page, limit int) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64
	offset := (page - 1) * limit

	q := r.db.WithContext(ctx).Model(&model.Payment{}).Where("member_id = ?", memberID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Refunds").Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, total, err
}

// AddRefundedTotalTx is the single write path for refunded_total: an atomic
// increment guarded so that refunded_total never exceeds amount, even under
// concurrent refunds against the same payment.
func (r *paymentRepo) AddRefundedTotalTx(tx *gorm.DB, paymentID uuid.UUID, amount decimal.Decimal) (int64, error) {
	res := tx.Exec(
		`UPDATE payments
		    SET refunded_total = refunded_total + ?, updated_at = NOW()
		  WHERE id = ? AND refunded_total + ? <= amount`,
		amount, paymentID, amount,
	)
	return res.RowsAffected, res.Error
}

func (r *paymentRepo) UpdateStatusTx(tx *gorm.DB, paymentID uuid.UUID, status string) error {
	return tx.Model(&model.Payment{}).Where("id = ?", paymentID).Update("status", status).Error
}

func (r *paymentRepo) CreateRefundTx(tx *gorm.DB, ref *model.Refund) error {
	return tx.Create(ref).Error
}

func (r *paymentRepo) SumCollectedByShift(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByShift(ctx, shiftID, "amount",
		[]string{model.PaymentCompleted, model.PaymentRefunded, model.PaymentPartialRefund})
}

func (r *paymentRepo) SumRefundedByShift(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Refund{}).
		Select("SUM(amount)").
		Where("shift_id = ?", shiftID).
		Scan(&sum).Error
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

func (r *paymentRepo) SumRefundedBySubscription(ctx context.Context, subscriptionID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Select("SUM(refunded_total)").
		Where("subscription_id = ?", subscriptionID).
		Scan(&sum).Error
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

func (r *paymentRepo) sumByShift(ctx context.Context, shiftID uuid.UUID, column string, statuses []string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Select("SUM("+column+")").
		Where("shift_id = ? AND status IN ?", shiftID, statuses).
		Scan(&sum).Error
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}
