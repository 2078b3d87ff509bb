package service

import (
	"context"
	"errors"
	"math"
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

// duplicateWindow absorbs double-submitted create/renew requests: an
// identical member/plan subscription created inside the window is returned
// verbatim instead of raising a conflict.
const duplicateWindow = 5 * time.Second

type SubscriptionService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateSubscriptionRequest) (*dto.CreateSubscriptionResponse, error)
	Renew(ctx context.Context, actor Actor, req dto.RenewSubscriptionRequest) (*dto.CreateSubscriptionResponse, error)
	// TogglePause pauses an active subscription or resumes a paused one.
	// Resume closes the open pause interval and extends the end date by the
	// ceil-of-days the subscription spent paused.
	TogglePause(ctx context.Context, actor Actor, id uuid.UUID, req dto.TogglePauseRequest) (*dto.SubscriptionResponse, error)
	Cancel(ctx context.Context, actor Actor, id uuid.UUID, req dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error)
	PreviewCancel(ctx context.Context, id uuid.UUID) (*dto.CancelPreviewResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SubscriptionResponse, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	repo        repository.SubscriptionRepository
	planRepo    repository.PlanRepository
	memberRepo  repository.MemberRepository
	shiftRepo   repository.ShiftRepository
	paymentRepo repository.PaymentRepository
	payments    PaymentService
	shifts      ShiftService
	dispatcher  *worker.Dispatcher
}

func NewSubscriptionService(
	repo repository.SubscriptionRepository,
	planRepo repository.PlanRepository,
	memberRepo repository.MemberRepository,
	shiftRepo repository.ShiftRepository,
	paymentRepo repository.PaymentRepository,
	payments PaymentService,
	shifts ShiftService,
	dispatcher *worker.Dispatcher,
) SubscriptionService {
	return &subscriptionService{
		repo:        repo,
		planRepo:    planRepo,
		memberRepo:  memberRepo,
		shiftRepo:   shiftRepo,
		paymentRepo: paymentRepo,
		payments:    payments,
		shifts:      shifts,
		dispatcher:  dispatcher,
	}
}

// ── Create ────────────────────────────────────────────────────────────────────

func (s *subscriptionService) Create(ctx context.Context, actor Actor, req dto.CreateSubscriptionRequest) (*dto.CreateSubscriptionResponse, error) {
	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		return nil, apierror.Validation("invalid_member_id", "member_id must be a UUID")
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return nil, apierror.Validation("invalid_plan_id", "plan_id must be a UUID")
	}

	member, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil {
		return nil, apierror.NotFound("member_not_found", "member not found")
	}
	if !member.Active {
		return nil, apierror.Validation("member_inactive", "member is inactive")
	}

	plan, err := s.requireDurationPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	// Duplicate submit inside the window replays the existing subscription.
	if dup, err := s.repo.FindRecentDuplicate(ctx, memberID, planID, time.Now().Add(-duplicateWindow)); err == nil && dup != nil {
		return &dto.CreateSubscriptionResponse{Subscription: *subscriptionToResponse(dup)}, nil
	}

	if existing, err := s.repo.FindActiveByMember(ctx, memberID); err == nil && existing != nil {
		return nil, apierror.Conflict("active_subscription_exists",
			"member already has an active subscription")
	}

	start := time.Now()
	if req.StartDate != nil {
		start, err = time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return nil, apierror.Validation("invalid_start_date", "start_date must be YYYY-MM-DD")
		}
	}

	price := plan.Price
	if req.Price != nil {
		price = *req.Price
	}

	return s.createCycle(ctx, actor, member, cycleParams{
		planID:      planID,
		start:       start,
		price:       price,
		discount:    req.Discount,
		paidNow:     req.PaidAmount,
		method:      req.Method,
		externalRef: req.ExternalRef,
		shiftID:     req.ShiftID,
		duration:    plan.DurationDays,
	})
}

// ── Renew ─────────────────────────────────────────────────────────────────────

// Renew starts a fresh cycle from now. Any still-active subscription of the
// member is marked expired in the same transaction, so renewing early never
// stacks overlapping access periods.
func (s *subscriptionService) Renew(ctx context.Context, actor Actor, req dto.RenewSubscriptionRequest) (*dto.CreateSubscriptionResponse, error) {
	prevID, err := uuid.Parse(req.PreviousSubscriptionID)
	if err != nil {
		return nil, apierror.Validation("invalid_subscription_id", "previous_subscription_id must be a UUID")
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return nil, apierror.Validation("invalid_plan_id", "plan_id must be a UUID")
	}

	prev, err := s.repo.FindByID(ctx, prevID)
	if err != nil {
		return nil, apierror.NotFound("subscription_not_found", "subscription not found")
	}

	member, err := s.memberRepo.FindByID(ctx, prev.MemberID)
	if err != nil {
		return nil, apierror.NotFound("member_not_found", "member not found")
	}
	if !member.Active {
		return nil, apierror.Validation("member_inactive", "member is inactive")
	}

	plan, err := s.requireDurationPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	if dup, err := s.repo.FindRecentDuplicate(ctx, prev.MemberID, planID, time.Now().Add(-duplicateWindow)); err == nil && dup != nil {
		return &dto.CreateSubscriptionResponse{Subscription: *subscriptionToResponse(dup)}, nil
	}

	price := plan.Price
	if req.Price != nil {
		price = *req.Price
	}

	return s.createCycle(ctx, actor, member, cycleParams{
		planID:         planID,
		start:          time.Now(),
		price:          price,
		discount:       req.Discount,
		paidNow:        req.PaidAmount,
		method:         req.Method,
		externalRef:    req.ExternalRef,
		shiftID:        req.ShiftID,
		duration:       plan.DurationDays,
		expirePrevious: true,
	})
}

// cycleParams carries the validated inputs shared by Create and Renew.
type cycleParams struct {
	planID         uuid.UUID
	start          time.Time
	price          decimal.Decimal
	discount       decimal.Decimal
	paidNow        decimal.Decimal
	method         string
	externalRef    *string
	shiftID        *string
	duration       int
	expirePrevious bool
}

func (s *subscriptionService) createCycle(ctx context.Context, actor Actor, member *model.Member, p cycleParams) (*dto.CreateSubscriptionResponse, error) {
	fullPrice := p.price.Sub(p.discount).Round(2)
	if fullPrice.IsNegative() {
		fullPrice = decimal.Zero
	}
	paidNow := p.paidNow.Round(2)
	if paidNow.GreaterThan(fullPrice) {
		return nil, apierror.Validation("overpayment", "paid amount exceeds the subscription price")
	}

	payStatus := model.SubUnpaid
	switch {
	case fullPrice.IsZero() || paidNow.GreaterThanOrEqual(fullPrice):
		payStatus = model.SubPaid
	case paidNow.IsPositive():
		payStatus = model.SubPartial
	}

	// Money moving now needs an open shift to book it against.
	var shift *model.Shift
	if paidNow.IsPositive() {
		var err error
		shift, err = s.resolveShift(ctx, actor, p.shiftID)
		if err != nil {
			return nil, err
		}
	}

	sub := &model.Subscription{
		ID:            uuid.New(),
		MemberID:      member.ID,
		PlanID:        p.planID,
		StartDate:     p.start,
		EndDate:       p.start.AddDate(0, 0, p.duration),
		Price:         fullPrice,
		Discount:      p.discount.Round(2),
		PaidAmount:    paidNow,
		PaymentStatus: payStatus,
		Status:        model.SubActive,
		CreatedByID:   actor.UserID,
	}

	var completed, pending *model.Payment
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if p.expirePrevious {
			if err := s.repo.ExpireActiveByMemberTx(tx, member.ID); err != nil {
				return err
			}
		}
		if err := s.repo.CreateTx(tx, sub); err != nil {
			return err
		}
		if fullPrice.IsPositive() {
			var shiftID *uuid.UUID
			if shift != nil {
				shiftID = &shift.ID
			}
			var err error
			completed, pending, err = s.payments.RecordSplitTx(ctx, tx, SplitParams{
				MemberID:       member.ID,
				SubscriptionID: &sub.ID,
				ShiftID:        shiftID,
				Total:          fullPrice,
				PaidNow:        paidNow,
				Method:         p.method,
				ExternalRef:    p.externalRef,
				CreatedByID:    actor.UserID,
			})
			return err
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent create for the same member.
			return nil, apierror.Conflict("active_subscription_exists",
				"member already has an active subscription")
		}
		return nil, txErr
	}

	if s.dispatcher != nil && completed != nil {
		subID := sub.ID.String()
		_ = s.dispatcher.EnqueueReceipt(ctx, worker.ReceiptJobPayload{
			PaymentID:      completed.ID.String(),
			SubscriptionID: &subID,
			MemberID:       member.ID.String(),
			MemberEmail:    member.Email,
		})
	}

	resp := &dto.CreateSubscriptionResponse{Subscription: *subscriptionToResponse(sub)}
	if completed != nil {
		resp.Payment = paymentToResponse(completed)
	}
	if pending != nil {
		resp.PendingInvoice = paymentToResponse(pending)
	}
	return resp, nil
}

// ── Pause / Resume ────────────────────────────────────────────────────────────

func (s *subscriptionService) TogglePause(ctx context.Context, actor Actor, id uuid.UUID, req dto.TogglePauseRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("subscription_not_found", "subscription not found")
	}

	now := time.Now()

	// Both directions run through guarded status transitions: of two
	// near-simultaneous toggles only one can move the row, so a pause
	// interval is never opened twice and the end date never double-extends.
	switch sub.Status {
	case model.SubActive:
		pause := &model.SubscriptionPause{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			StartAt:        now,
		}
		err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			updated, err := s.repo.SetStatusTx(tx, sub.ID, model.SubActive, model.SubPaused)
			if err != nil {
				return err
			}
			if updated == 0 {
				return apierror.Conflict("invalid_state_transition",
					"subscription is no longer active")
			}
			return s.repo.CreatePauseTx(tx, pause)
		})

	case model.SubPaused:
		open, findErr := s.repo.FindOpenPause(ctx, sub.ID)
		err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
			updated, err := s.repo.SetStatusTx(tx, sub.ID, model.SubPaused, model.SubActive)
			if err != nil {
				return err
			}
			if updated == 0 {
				return apierror.Conflict("invalid_state_transition",
					"subscription is no longer paused")
			}
			// A paused subscription without an open interval is repaired by
			// resuming with zero extension rather than failing the resume.
			if findErr == nil && open != nil {
				days := ceilDays(now.Sub(open.StartAt))
				open.EndAt = &now
				open.DurationDays = &days
				closed, err := s.repo.ClosePauseTx(tx, open)
				if err != nil {
					return err
				}
				// The extension belongs to whoever stamps the interval shut.
				if closed == 1 {
					return s.repo.ExtendEndDateTx(tx, sub.ID, days)
				}
			}
			return nil
		})

	default:
		return nil, apierror.Conflict("invalid_state_transition",
			"subscription cannot be paused or resumed from state "+string(sub.Status))
	}
	if err != nil {
		return nil, err
	}

	if fresh, err := s.repo.FindByID(ctx, sub.ID); err == nil {
		sub = fresh
	}
	return subscriptionToResponse(sub), nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────

func (s *subscriptionService) Cancel(ctx context.Context, actor Actor, id uuid.UUID, req dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("subscription_not_found", "subscription not found")
	}
	if !sub.Status.CanTransitionTo(model.SubCancelled) {
		return nil, apierror.Conflict("invalid_state_transition",
			"subscription in state "+string(sub.Status)+" cannot be cancelled")
	}

	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, apierror.NotFound("plan_not_found", "plan not found")
	}

	refundedTotal, err := s.paymentRepo.SumRefundedBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	quote := computeCancelQuote(sub, plan.DurationDays, refundedTotal, now)

	prorated := req.Type == "prorated" && quote.refundable.IsPositive()

	// Resolve the shift up front: a prorated refund moves cash, so it must
	// book into an open shift before any row is touched.
	var shift *model.Shift
	if prorated {
		shift, err = s.resolveShift(ctx, actor, req.ShiftID)
		if err != nil {
			return nil, err
		}
	}

	reason := "subscription cancellation"
	if req.Reason != nil && *req.Reason != "" {
		reason = *req.Reason
	}

	refundAmount := decimal.Zero
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if prorated {
			target, err := s.paymentRepo.FindLatestSettledBySubscription(ctx, tx, sub.ID)
			if err != nil {
				return apierror.Validation("no_refundable_payment",
					"no settled payment to refund against")
			}
			if _, err := s.payments.RefundTx(ctx, tx, RefundParams{
				PaymentID:   target.ID,
				ShiftID:     shift.ID,
				Amount:      quote.refundable,
				Reason:      reason,
				CreatedByID: actor.UserID,
			}); err != nil {
				return err
			}
			refundAmount = quote.refundable
		}

		used := quote.usedAmount
		sub.Status = model.SubCancelled
		sub.EndDate = now
		sub.CancelReason = req.Reason
		sub.CancelledByID = &actor.UserID
		sub.CancelledAt = &now
		sub.UsedNonRefundableAmount = &used
		sub.AlertAcknowledged = false
		return s.repo.UpdateTx(tx, sub)
	})
	if txErr != nil {
		return nil, txErr
	}

	return &dto.CancelSubscriptionResponse{
		Subscription: *subscriptionToResponse(sub),
		RefundAmount: refundAmount,
	}, nil
}

func (s *subscriptionService) PreviewCancel(ctx context.Context, id uuid.UUID) (*dto.CancelPreviewResponse, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("subscription_not_found", "subscription not found")
	}
	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, apierror.NotFound("plan_not_found", "plan not found")
	}
	refundedTotal, err := s.paymentRepo.SumRefundedBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	quote := computeCancelQuote(sub, plan.DurationDays, refundedTotal, time.Now())
	return &dto.CancelPreviewResponse{
		UsedDays:         quote.usedDays,
		UsedAmount:       quote.usedAmount,
		RefundableAmount: quote.refundable,
	}, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *subscriptionService) Get(ctx context.Context, id uuid.UUID) (*dto.SubscriptionResponse, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("subscription_not_found", "subscription not found")
	}
	return subscriptionToResponse(sub), nil
}

func (s *subscriptionService) ListByMember(ctx context.Context, memberID uuid.UUID) ([]dto.SubscriptionResponse, error) {
	subs, err := s.repo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SubscriptionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, *subscriptionToResponse(&subs[i]))
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *subscriptionService) requireDurationPlan(ctx context.Context, planID uuid.UUID) (*model.Plan, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, apierror.NotFound("plan_not_found", "plan not found")
	}
	if !plan.Active {
		return nil, apierror.Validation("plan_inactive", "plan is inactive")
	}
	if plan.Type != model.PlanDuration || plan.DurationDays <= 0 {
		return nil, apierror.Validation("plan_not_duration",
			"subscriptions require a duration plan")
	}
	return plan, nil
}

// resolveShift picks the shift a money movement books into: the request's
// shift, then the one bound to the actor's session, then the actor's own
// open shift.
func (s *subscriptionService) resolveShift(ctx context.Context, actor Actor, reqShiftID *string) (*model.Shift, error) {
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
		open, err := s.shiftRepo.FindOpenByUser(ctx, actor.UserID)
		if err != nil || open == nil {
			return nil, apierror.Validation("shift_required", "no open shift available")
		}
		return open, nil
	}
	return s.shifts.RequireOpen(ctx, shiftID)
}

type cancelQuote struct {
	usedDays   int
	usedAmount decimal.Decimal
	refundable decimal.Decimal
}

// computeCancelQuote prorates by calendar day: every started day counts as
// used, the used amount never exceeds what was actually paid, and already
// refunded money is never refunded twice.
func computeCancelQuote(sub *model.Subscription, planDuration int, refundedTotal decimal.Decimal, now time.Time) cancelQuote {
	if planDuration <= 0 {
		used := decimal.Min(sub.Price, sub.PaidAmount).Round(2)
		return cancelQuote{usedDays: 0, usedAmount: used, refundable: decimal.Zero}
	}

	usedDays := ceilDays(now.Sub(sub.StartDate))
	if usedDays > planDuration {
		usedDays = planDuration
	}

	dailyRate := sub.Price.Div(decimal.NewFromInt(int64(planDuration)))
	usedAmount := dailyRate.Mul(decimal.NewFromInt(int64(usedDays))).Round(2)
	if usedAmount.GreaterThan(sub.PaidAmount) {
		usedAmount = sub.PaidAmount
	}

	refundable := sub.PaidAmount.Sub(refundedTotal).Sub(usedAmount).Round(2)
	if refundable.IsNegative() {
		refundable = decimal.Zero
	}
	return cancelQuote{usedDays: usedDays, usedAmount: usedAmount, refundable: refundable}
}

// ceilDays rounds a positive duration up to whole days; a started day counts.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

func subscriptionToResponse(sub *model.Subscription) *dto.SubscriptionResponse {
	resp := &dto.SubscriptionResponse{
		ID:                      sub.ID.String(),
		MemberID:                sub.MemberID.String(),
		PlanID:                  sub.PlanID.String(),
		StartDate:               sub.StartDate.Format("2006-01-02"),
		EndDate:                 sub.EndDate.Format("2006-01-02"),
		Price:                   sub.Price,
		Discount:                sub.Discount,
		PaidAmount:              sub.PaidAmount,
		PaymentStatus:           sub.PaymentStatus,
		Status:                  string(sub.Status),
		CancelReason:            sub.CancelReason,
		UsedNonRefundableAmount: sub.UsedNonRefundableAmount,
		CreatedAt:               sub.CreatedAt.Format(time.RFC3339),
	}
	for _, p := range sub.Pauses {
		entry := dto.PauseEntry{
			StartAt:      p.StartAt.Format(time.RFC3339),
			DurationDays: p.DurationDays,
		}
		if p.EndAt != nil {
			end := p.EndAt.Format(time.RFC3339)
			entry.EndAt = &end
		}
		resp.Pauses = append(resp.Pauses, entry)
	}
	return resp
}
