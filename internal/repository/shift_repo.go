package repository

import (
	"context"

	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ShiftRepository interface {
	Create(ctx context.Context, s *model.Shift) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	FindOpenByMachine(ctx context.Context, machineID string) (*model.Shift, error)
	FindOpenByUser(ctx context.Context, userID uuid.UUID) (*model.Shift, error)
	// CloseTx persists the close mutation only while the row is still open;
	// returns the number of rows updated (0 = lost the race, already closed).
	CloseTx(tx *gorm.DB, s *model.Shift) (int64, error)
	// SumCashPayments totals completed cash payments recorded in the shift.
	SumCashPayments(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error)
	CountPayments(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) (int64, error)
	List(ctx context.Context, page, limit int) ([]model.Shift, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type shiftRepo struct{ db *gorm.DB }

func NewShiftRepository(db *gorm.DB) ShiftRepository { return &shiftRepo{db: db} }

func (r *shiftRepo) DB() *gorm.DB { return r.db }

func (r *shiftRepo) Create(ctx context.Context, s *model.Shift) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindOpenByMachine(ctx context.Context, machineID string) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Where("machine_id = ? AND status = ?", machineID, model.ShiftOpen).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) FindOpenByUser(ctx context.Context, userID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Where("opened_by_id = ? AND status = ?", userID, model.ShiftOpen).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shiftRepo) CloseTx(tx *gorm.DB, s *model.Shift) (int64, error) {
	res := tx.Model(&model.Shift{}).
		Where("id = ? AND status = ?", s.ID, model.ShiftOpen).
		Updates(map[string]any{
			"closing_cash":    s.ClosingCash,
			"expected_cash":   s.ExpectedCash,
			"cash_difference": s.CashDifference,
			"status":          s.Status,
			"activity_type":   s.ActivityType,
			"closed_by_id":    s.ClosedByID,
			"closed_at":       s.ClosedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *shiftRepo) SumCashPayments(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.WithContext(ctx).Model(&model.Payment{}).
		Select("SUM(amount)").
		Where("shift_id = ? AND method = ? AND status IN ?",
			shiftID, model.MethodCash,
			[]string{model.PaymentCompleted, model.PaymentRefunded, model.PaymentPartialRefund}).
		Scan(&sum).Error
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

func (r *shiftRepo) CountPayments(ctx context.Context, tx *gorm.DB, shiftID uuid.UUID) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("shift_id = ?", shiftID).
		Count(&n).Error
	return n, err
}

func (r *shiftRepo) List(ctx context.Context, page, limit int) ([]model.Shift, int64, error) {
	var shifts []model.Shift
	var total int64
	offset := (page - 1) * limit

	q := r.db.WithContext(ctx).Model(&model.Shift{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("opened_at DESC").Offset(offset).Limit(limit).Find(&shifts).Error
	return shifts, total, err
}
