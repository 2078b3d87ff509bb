package service

import (
	"context"
	"time"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"
	"github.com/funkypatns/progym/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentService interface {
	Record(ctx context.Context, actor Actor, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error)
	Refund(ctx context.Context, actor Actor, req dto.RecordRefundRequest) (*dto.RefundResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.PaymentResponse, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]dto.PaymentResponse, error)
	ListByMember(ctx context.Context, memberID uuid.UUID, page, limit int) (*dto.PaymentListResponse, error)

	// RecordSplitTx applies the splitting rule inside the caller's transaction:
	// at most one completed payment for the amount paid now and, when
	// paidNow < total, exactly one pending invoice payment for the remainder —
	// never a single payment that silently represents unpaid money.
	RecordSplitTx(ctx context.Context, tx *gorm.DB, p SplitParams) (completed, pending *model.Payment, err error)

	// RefundTx issues a refund inside the caller's transaction. The increment
	// of refunded_total is guarded so the refund invariant cannot be broken.
	RefundTx(ctx context.Context, tx *gorm.DB, p RefundParams) (*model.Refund, error)
}

// SplitParams describes one settlement of a priced event.
type SplitParams struct {
	MemberID       uuid.UUID
	SubscriptionID *uuid.UUID
	ShiftID        *uuid.UUID
	Total          decimal.Decimal
	PaidNow        decimal.Decimal
	Method         string
	ExternalRef    *string
	CreatedByID    uuid.UUID
}

type RefundParams struct {
	PaymentID   uuid.UUID
	ShiftID     uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	CreatedByID uuid.UUID
}

type paymentService struct {
	repo       repository.PaymentRepository
	memberRepo repository.MemberRepository
	shifts     ShiftService
	dispatcher *worker.Dispatcher
}

func NewPaymentService(
	repo repository.PaymentRepository,
	memberRepo repository.MemberRepository,
	shifts ShiftService,
	dispatcher *worker.Dispatcher,
) PaymentService {
	return &paymentService{repo: repo, memberRepo: memberRepo, shifts: shifts, dispatcher: dispatcher}
}

// validateExternalRef enforces the non-cash reference rule: any non-cash
// payment moving real money must carry a gateway/bank reference.
func validateExternalRef(amount decimal.Decimal, method string, ref *string) error {
	if amount.IsPositive() && method != model.MethodCash && (ref == nil || *ref == "") {
		return apierror.Validation("external_reference_required",
			"non-cash payments require an external reference").
			WithFields(map[string]string{"external_reference": "required"})
	}
	return nil
}

// ── Record ────────────────────────────────────────────────────────────────────

func (s *paymentService) Record(ctx context.Context, actor Actor, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error) {
	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		return nil, apierror.Validation("invalid_member_id", "member_id must be a UUID")
	}
	if _, err := s.memberRepo.FindByID(ctx, memberID); err != nil {
		return nil, apierror.NotFound("member_not_found", "member not found")
	}

	amount := req.Amount.Round(2)
	if err := validateExternalRef(amount, req.Method, req.ExternalRef); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.PaymentCompleted
	}

	// Completed money is always scoped to an open shift; pending invoices
	// are not tied to a drawer.
	var shiftID *uuid.UUID
	if status == model.PaymentCompleted {
		resolved, err := s.resolveShift(ctx, actor, req.ShiftID)
		if err != nil {
			return nil, err
		}
		shiftID = &resolved.ID
	}

	var subscriptionID *uuid.UUID
	if req.SubscriptionID != nil {
		sid, err := uuid.Parse(*req.SubscriptionID)
		if err != nil {
			return nil, apierror.Validation("invalid_subscription_id", "subscription_id must be a UUID")
		}
		subscriptionID = &sid
	}

	payment := &model.Payment{
		MemberID:       memberID,
		SubscriptionID: subscriptionID,
		ShiftID:        shiftID,
		Amount:         amount,
		Method:         req.Method,
		Status:         status,
		ExternalRef:    req.ExternalRef,
		RefundedTotal:  decimal.Zero,
		Note:           req.Note,
		CreatedByID:    actor.UserID,
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, payment)
	})
	if txErr != nil {
		return nil, txErr
	}

	if s.dispatcher != nil && payment.Status == model.PaymentCompleted {
		_ = s.dispatcher.EnqueueReceipt(ctx, worker.ReceiptJobPayload{
			PaymentID: payment.ID.String(),
			MemberID:  payment.MemberID.String(),
		})
	}

	return paymentToResponse(payment), nil
}

// ── RecordSplitTx ─────────────────────────────────────────────────────────────

func (s *paymentService) RecordSplitTx(ctx context.Context, tx *gorm.DB, p SplitParams) (*model.Payment, *model.Payment, error) {
	total := p.Total.Round(2)
	paidNow := p.PaidNow.Round(2)

	if paidNow.GreaterThan(total) {
		return nil, nil, apierror.Validation("overpayment",
			"paid amount exceeds the total price")
	}
	if err := validateExternalRef(paidNow, p.Method, p.ExternalRef); err != nil {
		return nil, nil, err
	}

	var completed, pending *model.Payment

	if paidNow.IsPositive() {
		completed = &model.Payment{
			MemberID:       p.MemberID,
			SubscriptionID: p.SubscriptionID,
			ShiftID:        p.ShiftID,
			Amount:         paidNow,
			Method:         p.Method,
			Status:         model.PaymentCompleted,
			ExternalRef:    p.ExternalRef,
			RefundedTotal:  decimal.Zero,
			CreatedByID:    p.CreatedByID,
		}
		if err := s.repo.CreateTx(tx, completed); err != nil {
			return nil, nil, err
		}
	}

	if remainder := total.Sub(paidNow); remainder.IsPositive() {
		pending = &model.Payment{
			MemberID:       p.MemberID,
			SubscriptionID: p.SubscriptionID,
			Amount:         remainder.Round(2),
			Method:         p.Method,
			Status:         model.PaymentPending,
			RefundedTotal:  decimal.Zero,
			CreatedByID:    p.CreatedByID,
		}
		if err := s.repo.CreateTx(tx, pending); err != nil {
			return nil, nil, err
		}
	}

	return completed, pending, nil
}

// ── Refund ────────────────────────────────────────────────────────────────────
// Refunds always happen inside an open shift: the request's shift, or the
// actor's own open shift as fallback.

func (s *paymentService) Refund(ctx context.Context, actor Actor, req dto.RecordRefundRequest) (*dto.RefundResponse, error) {
	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		return nil, apierror.Validation("invalid_payment_id", "payment_id must be a UUID")
	}

	shift, err := s.resolveShift(ctx, actor, req.ShiftID)
	if err != nil {
		return nil, err
	}

	var refund *model.Refund
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		r, err := s.RefundTx(ctx, tx, RefundParams{
			PaymentID:   paymentID,
			ShiftID:     shift.ID,
			Amount:      req.Amount.Round(2),
			Reason:      req.Reason,
			CreatedByID: actor.UserID,
		})
		if err != nil {
			return err
		}
		refund = r
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return &dto.RefundResponse{
		ID:        refund.ID.String(),
		PaymentID: refund.PaymentID.String(),
		ShiftID:   refund.ShiftID.String(),
		Amount:    refund.Amount,
		Reason:    refund.Reason,
		CreatedAt: refund.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *paymentService) RefundTx(ctx context.Context, tx *gorm.DB, p RefundParams) (*model.Refund, error) {
	payment, err := s.repo.FindByIDTx(tx, p.PaymentID)
	if err != nil {
		return nil, apierror.NotFound("payment_not_found", "payment not found")
	}
	if payment.Status == model.PaymentPending {
		return nil, apierror.Validation("refund_pending_payment",
			"a pending invoice cannot be refunded")
	}

	amount := p.Amount.Round(2)

	// Guarded increment: fails atomically when the refund would push
	// refunded_total above amount, even under concurrent refunds.
	updated, err := s.repo.AddRefundedTotalTx(tx, p.PaymentID, amount)
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, apierror.Conflict("refund_exceeds_amount",
			"refund exceeds the remaining refundable amount")
	}

	refund := &model.Refund{
		PaymentID:   p.PaymentID,
		ShiftID:     p.ShiftID,
		Amount:      amount,
		Reason:      p.Reason,
		CreatedByID: p.CreatedByID,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateRefundTx(tx, refund); err != nil {
		return nil, err
	}

	status := model.PaymentPartialRefund
	if payment.RefundedTotal.Add(amount).Equal(payment.Amount) {
		status = model.PaymentRefunded
	}
	if err := s.repo.UpdateStatusTx(tx, p.PaymentID, status); err != nil {
		return nil, err
	}

	return refund, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *paymentService) Get(ctx context.Context, id uuid.UUID) (*dto.PaymentResponse, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("payment_not_found", "payment not found")
	}
	return paymentToResponse(payment), nil
}

func (s *paymentService) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]dto.PaymentResponse, error) {
	payments, err := s.repo.ListByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, *paymentToResponse(&payments[i]))
	}
	return out, nil
}

func (s *paymentService) ListByMember(ctx context.Context, memberID uuid.UUID, page, limit int) (*dto.PaymentListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	payments, total, err := s.repo.ListByMember(ctx, memberID, page, limit)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, *paymentToResponse(&payments[i]))
	}
	return &dto.PaymentListResponse{Data: items, Total: total, Page: page, Limit: limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// resolveShift picks the shift money moves through: the explicit request
// shift, falling back to the actor's request-bound shift. The result must be
// open.
func (s *paymentService) resolveShift(ctx context.Context, actor Actor, reqShiftID *string) (*model.Shift, error) {
	var shiftID uuid.UUID
	switch {
	case reqShiftID != nil && *reqShiftID != "":
		id, err := uuid.Parse(*reqShiftID)
		if err != nil {
			return nil, apierror.Validation("invalid_shift_id", "shift_id must be a UUID")
		}
		shiftID = id
	case actor.ShiftID != nil:
		shiftID = *actor.ShiftID
	default:
		return nil, apierror.Validation("shift_required", "no open shift available")
	}
	return s.shifts.RequireOpen(ctx, shiftID)
}

func paymentToResponse(p *model.Payment) *dto.PaymentResponse {
	resp := &dto.PaymentResponse{
		ID:            p.ID.String(),
		MemberID:      p.MemberID.String(),
		Amount:        p.Amount,
		Method:        p.Method,
		Status:        p.Status,
		ExternalRef:   p.ExternalRef,
		RefundedTotal: p.RefundedTotal,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if p.SubscriptionID != nil {
		sid := p.SubscriptionID.String()
		resp.SubscriptionID = &sid
	}
	if p.ShiftID != nil {
		shid := p.ShiftID.String()
		resp.ShiftID = &shid
	}
	return resp
}
