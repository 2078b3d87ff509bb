package service

import (
	"context"
	"testing"
	"time"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subscriptionFixture struct {
	subRepo     *memSubscriptionRepo
	planRepo    *memPlanRepo
	memberRepo  *memMemberRepo
	shiftRepo   *memShiftRepo
	paymentRepo *memPaymentRepo
	svc         SubscriptionService
	member      *model.Member
	plan        *model.Plan
	actor       Actor
}

// newSubscriptionFixture wires the full service graph over in-memory repos:
// a 30-day plan priced at 300, one active member, and an actor with an
// open shift bound to the session.
func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()
	f := &subscriptionFixture{
		subRepo:     newMemSubscriptionRepo(),
		planRepo:    newMemPlanRepo(),
		memberRepo:  newMemMemberRepo(),
		shiftRepo:   newMemShiftRepo(),
		paymentRepo: newMemPaymentRepo(),
	}
	shiftSvc := NewShiftService(f.shiftRepo, f.paymentRepo)
	paymentSvc := NewPaymentService(f.paymentRepo, f.memberRepo, shiftSvc, nil)
	f.svc = NewSubscriptionService(
		f.subRepo, f.planRepo, f.memberRepo, f.shiftRepo, f.paymentRepo,
		paymentSvc, shiftSvc, nil,
	)

	f.member = &model.Member{FullName: "Omar Said", Active: true}
	require.NoError(t, f.memberRepo.Create(context.Background(), f.member))

	f.plan = &model.Plan{
		Name:         "Monthly",
		Type:         model.PlanDuration,
		Price:        decimal.NewFromInt(300),
		DurationDays: 30,
		Active:       true,
	}
	require.NoError(t, f.planRepo.Create(context.Background(), f.plan))

	f.actor = Actor{UserID: uuid.New(), Role: model.RoleReception}
	opened := openShift(t, shiftSvc, f.actor, "front-desk-1", decimal.NewFromInt(100))
	shiftID := uuid.MustParse(opened.ID)
	f.actor.ShiftID = &shiftID
	return f
}

func (f *subscriptionFixture) create(t *testing.T, req dto.CreateSubscriptionRequest) *dto.CreateSubscriptionResponse {
	t.Helper()
	if req.MemberID == "" {
		req.MemberID = f.member.ID.String()
	}
	if req.PlanID == "" {
		req.PlanID = f.plan.ID.String()
	}
	if req.Method == "" {
		req.Method = model.MethodCash
	}
	resp, err := f.svc.Create(context.Background(), f.actor, req)
	require.NoError(t, err)
	return resp
}

func TestCreateSubscription_PartialPaymentSplits(t *testing.T) {
	f := newSubscriptionFixture(t)

	resp := f.create(t, dto.CreateSubscriptionRequest{
		PaidAmount: decimal.NewFromInt(120),
	})

	assert.Equal(t, model.SubPartial, resp.Subscription.PaymentStatus)
	assert.Equal(t, string(model.SubActive), resp.Subscription.Status)

	require.NotNil(t, resp.Payment)
	assert.True(t, resp.Payment.Amount.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, model.PaymentCompleted, resp.Payment.Status)

	require.NotNil(t, resp.PendingInvoice)
	assert.True(t, resp.PendingInvoice.Amount.Equal(decimal.NewFromInt(180)))
	assert.Equal(t, model.PaymentPending, resp.PendingInvoice.Status)

	// Both legs reference the subscription.
	require.NotNil(t, resp.Payment.SubscriptionID)
	assert.Equal(t, resp.Subscription.ID, *resp.Payment.SubscriptionID)
}

func TestCreateSubscription_FullPaymentHasNoInvoice(t *testing.T) {
	f := newSubscriptionFixture(t)

	resp := f.create(t, dto.CreateSubscriptionRequest{
		PaidAmount: decimal.NewFromInt(300),
	})
	assert.Equal(t, model.SubPaid, resp.Subscription.PaymentStatus)
	require.NotNil(t, resp.Payment)
	assert.Nil(t, resp.PendingInvoice)
}

func TestCreateSubscription_SecondActiveConflicts(t *testing.T) {
	f := newSubscriptionFixture(t)
	f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})

	// A different plan dodges the duplicate-replay window, so the
	// one-active-per-member rule is what must reject it.
	other := &model.Plan{
		Name: "Quarterly", Type: model.PlanDuration,
		Price: decimal.NewFromInt(750), DurationDays: 90, Active: true,
	}
	require.NoError(t, f.planRepo.Create(context.Background(), other))

	_, err := f.svc.Create(context.Background(), f.actor, dto.CreateSubscriptionRequest{
		MemberID: f.member.ID.String(),
		PlanID:   other.ID.String(),
		Method:   model.MethodCash,
	})
	require.Error(t, err)
	e := apierror.From(err)
	assert.Equal(t, apierror.KindConflict, e.Kind)
	assert.Equal(t, "active_subscription_exists", e.Code)
}

func TestCreateSubscription_DuplicateSubmitReplays(t *testing.T) {
	f := newSubscriptionFixture(t)

	first := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})
	// Same member, same plan, seconds apart: treated as a double submit and
	// answered with the already-created subscription instead of a conflict.
	again := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})

	assert.Equal(t, first.Subscription.ID, again.Subscription.ID)
	assert.Nil(t, again.Payment, "replay must not record money twice")
	assert.Len(t, f.subRepo.order, 1)
}

func TestCreateSubscription_RejectsSessionPlan(t *testing.T) {
	f := newSubscriptionFixture(t)
	sessions := &model.Plan{
		Name: "10 Sessions", Type: model.PlanSessions,
		Price: decimal.NewFromInt(200), TotalSessions: 10, Active: true,
	}
	require.NoError(t, f.planRepo.Create(context.Background(), sessions))

	_, err := f.svc.Create(context.Background(), f.actor, dto.CreateSubscriptionRequest{
		MemberID: f.member.ID.String(),
		PlanID:   sessions.ID.String(),
		Method:   model.MethodCash,
	})
	require.Error(t, err)
	assert.Equal(t, "plan_not_duration", apierror.From(err).Code)
}

func TestRenew_ExpiresPreviousCycle(t *testing.T) {
	f := newSubscriptionFixture(t)
	first := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})

	// Push the first cycle out of the duplicate window.
	firstID := uuid.MustParse(first.Subscription.ID)
	f.subRepo.subs[firstID].CreatedAt = time.Now().Add(-time.Minute)

	renewed, err := f.svc.Renew(context.Background(), f.actor, dto.RenewSubscriptionRequest{
		PreviousSubscriptionID: first.Subscription.ID,
		PlanID:                 f.plan.ID.String(),
		PaidAmount:             decimal.NewFromInt(300),
		Method:                 model.MethodCash,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.Subscription.ID, renewed.Subscription.ID)
	assert.Equal(t, string(model.SubActive), renewed.Subscription.Status)
	assert.Equal(t, model.SubExpired, f.subRepo.subs[firstID].Status)
}

func TestTogglePause_PauseThenResumeExtendsEndDate(t *testing.T) {
	f := newSubscriptionFixture(t)
	created := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})
	id := uuid.MustParse(created.Subscription.ID)

	paused, err := f.svc.TogglePause(context.Background(), f.actor, id, dto.TogglePauseRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(model.SubPaused), paused.Status)
	require.Len(t, paused.Pauses, 1)
	assert.Nil(t, paused.Pauses[0].EndAt)

	endBefore := f.subRepo.subs[id].EndDate

	resumed, err := f.svc.TogglePause(context.Background(), f.actor, id, dto.TogglePauseRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(model.SubActive), resumed.Status)

	// Any started pause day counts as a whole day of extension.
	require.Len(t, resumed.Pauses, 1)
	require.NotNil(t, resumed.Pauses[0].DurationDays)
	assert.Equal(t, 1, *resumed.Pauses[0].DurationDays)
	assert.Equal(t, endBefore.AddDate(0, 0, 1), f.subRepo.subs[id].EndDate)
}

func TestTogglePause_RejectsTerminalStates(t *testing.T) {
	f := newSubscriptionFixture(t)
	created := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})
	id := uuid.MustParse(created.Subscription.ID)
	f.subRepo.subs[id].Status = model.SubCancelled

	_, err := f.svc.TogglePause(context.Background(), f.actor, id, dto.TogglePauseRequest{})
	require.Error(t, err)
	e := apierror.From(err)
	assert.Equal(t, apierror.KindConflict, e.Kind)
	assert.Equal(t, "invalid_state_transition", e.Code)
}

// seedAgedSubscription creates a fully paid cycle and rewinds its start so
// that exactly `days` calendar days count as used for the next hour.
func (f *subscriptionFixture) seedAgedSubscription(t *testing.T, days int) uuid.UUID {
	t.Helper()
	created := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})
	id := uuid.MustParse(created.Subscription.ID)

	start := time.Now().Add(-(time.Duration(days)*24*time.Hour - time.Hour))
	sub := f.subRepo.subs[id]
	sub.StartDate = start
	sub.EndDate = start.AddDate(0, 0, f.plan.DurationDays)
	sub.CreatedAt = time.Now().Add(-time.Minute)
	return id
}

func TestPreviewCancel_ProratesByStartedDay(t *testing.T) {
	f := newSubscriptionFixture(t)
	id := f.seedAgedSubscription(t, 10)

	preview, err := f.svc.PreviewCancel(context.Background(), id)
	require.NoError(t, err)

	// 10 of 30 days at a 10/day rate: 100 used, 200 back.
	assert.Equal(t, 10, preview.UsedDays)
	assert.True(t, preview.UsedAmount.Equal(decimal.NewFromInt(100)), "used %s", preview.UsedAmount)
	assert.True(t, preview.RefundableAmount.Equal(decimal.NewFromInt(200)), "refundable %s", preview.RefundableAmount)
}

func TestCancel_ProratedRefundsRemainder(t *testing.T) {
	f := newSubscriptionFixture(t)
	id := f.seedAgedSubscription(t, 10)

	resp, err := f.svc.Cancel(context.Background(), f.actor, id, dto.CancelSubscriptionRequest{
		Type: "prorated",
	})
	require.NoError(t, err)

	assert.True(t, resp.RefundAmount.Equal(decimal.NewFromInt(200)), "refund %s", resp.RefundAmount)
	assert.Equal(t, string(model.SubCancelled), resp.Subscription.Status)
	require.NotNil(t, resp.Subscription.UsedNonRefundableAmount)
	assert.True(t, resp.Subscription.UsedNonRefundableAmount.Equal(decimal.NewFromInt(100)))

	sub := f.subRepo.subs[id]
	assert.False(t, sub.AlertAcknowledged)
	require.NotNil(t, sub.CancelledAt)

	// The refund landed on the subscription's settled payment.
	require.Len(t, f.paymentRepo.refunds, 1)
	assert.True(t, f.paymentRepo.refunds[0].Amount.Equal(decimal.NewFromInt(200)))
}

func TestCancel_ImmediateForfeitsRemainder(t *testing.T) {
	f := newSubscriptionFixture(t)
	id := f.seedAgedSubscription(t, 10)

	resp, err := f.svc.Cancel(context.Background(), f.actor, id, dto.CancelSubscriptionRequest{
		Type: "immediate",
	})
	require.NoError(t, err)
	assert.True(t, resp.RefundAmount.IsZero())
	assert.Empty(t, f.paymentRepo.refunds)
	assert.Equal(t, string(model.SubCancelled), resp.Subscription.Status)
}

func TestCancel_IsTerminal(t *testing.T) {
	f := newSubscriptionFixture(t)
	id := f.seedAgedSubscription(t, 10)

	_, err := f.svc.Cancel(context.Background(), f.actor, id, dto.CancelSubscriptionRequest{Type: "immediate"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), f.actor, id, dto.CancelSubscriptionRequest{Type: "immediate"})
	require.Error(t, err)
	assert.Equal(t, "invalid_state_transition", apierror.From(err).Code)
}

func TestComputeCancelQuote(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	base := func() *model.Subscription {
		return &model.Subscription{
			StartDate:  now.AddDate(0, 0, -10),
			Price:      decimal.NewFromInt(300),
			PaidAmount: decimal.NewFromInt(300),
		}
	}

	t.Run("mid cycle", func(t *testing.T) {
		q := computeCancelQuote(base(), 30, decimal.Zero, now)
		assert.Equal(t, 10, q.usedDays)
		assert.True(t, q.usedAmount.Equal(decimal.NewFromInt(100)))
		assert.True(t, q.refundable.Equal(decimal.NewFromInt(200)))
	})

	t.Run("partial day rounds up", func(t *testing.T) {
		sub := base()
		sub.StartDate = now.Add(-(10*24*time.Hour + time.Minute))
		q := computeCancelQuote(sub, 30, decimal.Zero, now)
		assert.Equal(t, 11, q.usedDays)
	})

	t.Run("used days clamp to plan duration", func(t *testing.T) {
		sub := base()
		sub.StartDate = now.AddDate(0, 0, -90)
		q := computeCancelQuote(sub, 30, decimal.Zero, now)
		assert.Equal(t, 30, q.usedDays)
		assert.True(t, q.usedAmount.Equal(decimal.NewFromInt(300)))
		assert.True(t, q.refundable.IsZero())
	})

	t.Run("used amount capped at what was paid", func(t *testing.T) {
		sub := base()
		sub.PaidAmount = decimal.NewFromInt(50)
		q := computeCancelQuote(sub, 30, decimal.Zero, now)
		assert.True(t, q.usedAmount.Equal(decimal.NewFromInt(50)))
		assert.True(t, q.refundable.IsZero())
	})

	t.Run("prior refunds reduce the refundable remainder", func(t *testing.T) {
		q := computeCancelQuote(base(), 30, decimal.NewFromInt(150), now)
		assert.True(t, q.refundable.Equal(decimal.NewFromInt(50)))
	})

	t.Run("zero duration plan forfeits everything", func(t *testing.T) {
		q := computeCancelQuote(base(), 0, decimal.Zero, now)
		assert.Equal(t, 0, q.usedDays)
		assert.True(t, q.usedAmount.Equal(decimal.NewFromInt(300)))
		assert.True(t, q.refundable.IsZero())
	})
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, 0, ceilDays(0))
	assert.Equal(t, 0, ceilDays(-time.Hour))
	assert.Equal(t, 1, ceilDays(time.Second))
	assert.Equal(t, 1, ceilDays(24*time.Hour))
	assert.Equal(t, 2, ceilDays(24*time.Hour+time.Second))
}

func TestTogglePause_ConcurrentPauseLosesRace(t *testing.T) {
	f := newSubscriptionFixture(t)
	created := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})
	id := uuid.MustParse(created.Subscription.ID)

	// A rival pause commits between this request's read and its write.
	f.subRepo.beforeSetStatus = func() {
		f.subRepo.subs[id].Status = model.SubPaused
	}

	_, err := f.svc.TogglePause(context.Background(), f.actor, id, dto.TogglePauseRequest{})
	require.Error(t, err)
	e := apierror.From(err)
	assert.Equal(t, apierror.KindConflict, e.Kind)
	assert.Equal(t, "invalid_state_transition", e.Code)

	// The loser must not have opened a second pause interval.
	assert.Empty(t, f.subRepo.pauses)
}

func TestTogglePause_ConcurrentResumeExtendsOnce(t *testing.T) {
	f := newSubscriptionFixture(t)
	created := f.create(t, dto.CreateSubscriptionRequest{PaidAmount: decimal.NewFromInt(300)})
	id := uuid.MustParse(created.Subscription.ID)

	_, err := f.svc.TogglePause(context.Background(), f.actor, id, dto.TogglePauseRequest{})
	require.NoError(t, err)
	endPaused := f.subRepo.subs[id].EndDate

	// A rival resume commits first: status back to active, interval closed,
	// end date already extended by its one started day.
	f.subRepo.beforeSetStatus = func() {
		now := time.Now()
		days := 1
		f.subRepo.subs[id].Status = model.SubActive
		for _, p := range f.subRepo.pauses {
			if p.SubscriptionID == id && p.EndAt == nil {
				p.EndAt = &now
				p.DurationDays = &days
			}
		}
		f.subRepo.subs[id].EndDate = f.subRepo.subs[id].EndDate.AddDate(0, 0, 1)
	}

	_, err = f.svc.TogglePause(context.Background(), f.actor, id, dto.TogglePauseRequest{})
	require.Error(t, err)
	assert.Equal(t, "invalid_state_transition", apierror.From(err).Code)

	// Exactly one extension was applied across both resume attempts.
	assert.Equal(t, endPaused.AddDate(0, 0, 1), f.subRepo.subs[id].EndDate)
}
