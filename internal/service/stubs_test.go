package service

// In-memory repository doubles shared by the service tests. Each stub mimics
// the guard semantics the SQL layer enforces (partial unique indexes, guarded
// UPDATEs) so concurrency invariants can be exercised without a database.

import (
	"context"
	"sort"
	"time"

	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Shift repository ──────────────────────────────────────────────────────────

type memShiftRepo struct {
	shifts   map[uuid.UUID]*model.Shift
	cashSum  decimal.Decimal
	payCount int64

	// beforeClose runs just before the guarded close UPDATE, letting tests
	// interleave a concurrent writer between the service's read and write.
	beforeClose func()
}

var _ repository.ShiftRepository = (*memShiftRepo)(nil)

func newMemShiftRepo() *memShiftRepo {
	return &memShiftRepo{shifts: make(map[uuid.UUID]*model.Shift), cashSum: decimal.Zero}
}

func (r *memShiftRepo) DB() *gorm.DB { return nil }

func (r *memShiftRepo) Create(_ context.Context, s *model.Shift) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.shifts[s.ID] = s
	return nil
}

func (r *memShiftRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	s, ok := r.shifts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	// Snapshot, like a real row read.
	cp := *s
	return &cp, nil
}

func (r *memShiftRepo) FindOpenByMachine(_ context.Context, machineID string) (*model.Shift, error) {
	for _, s := range r.shifts {
		if s.MachineID == machineID && s.Status == model.ShiftOpen {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memShiftRepo) FindOpenByUser(_ context.Context, userID uuid.UUID) (*model.Shift, error) {
	for _, s := range r.shifts {
		if s.OpenedByID == userID && s.Status == model.ShiftOpen {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memShiftRepo) CloseTx(_ *gorm.DB, s *model.Shift) (int64, error) {
	if r.beforeClose != nil {
		r.beforeClose()
	}
	cur, ok := r.shifts[s.ID]
	if !ok || cur.Status != model.ShiftOpen {
		return 0, nil
	}
	cp := *s
	r.shifts[s.ID] = &cp
	return 1, nil
}

func (r *memShiftRepo) SumCashPayments(_ context.Context, _ *gorm.DB, _ uuid.UUID) (decimal.Decimal, error) {
	return r.cashSum, nil
}

func (r *memShiftRepo) CountPayments(_ context.Context, _ *gorm.DB, _ uuid.UUID) (int64, error) {
	return r.payCount, nil
}

func (r *memShiftRepo) List(_ context.Context, _, _ int) ([]model.Shift, int64, error) {
	out := make([]model.Shift, 0, len(r.shifts))
	for _, s := range r.shifts {
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

// ── Payment repository ────────────────────────────────────────────────────────

type memPaymentRepo struct {
	payments map[uuid.UUID]*model.Payment
	order    []uuid.UUID
	refunds  []model.Refund
}

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[uuid.UUID]*model.Payment)}
}

func (r *memPaymentRepo) DB() *gorm.DB { return nil }

func (r *memPaymentRepo) CreateTx(_ *gorm.DB, p *model.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.payments[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *memPaymentRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	// Snapshot, like a real row read: later guarded updates must not be
	// visible through an earlier read.
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) FindLatestSettledBySubscription(_ context.Context, _ *gorm.DB, subID uuid.UUID) (*model.Payment, error) {
	for i := len(r.order) - 1; i >= 0; i-- {
		p := r.payments[r.order[i]]
		if p.SubscriptionID == nil || *p.SubscriptionID != subID {
			continue
		}
		switch p.Status {
		case model.PaymentCompleted, model.PaymentRefunded, model.PaymentPartialRefund:
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPaymentRepo) SumRefundedBySubscription(_ context.Context, subID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range r.payments {
		if p.SubscriptionID != nil && *p.SubscriptionID == subID {
			sum = sum.Add(p.RefundedTotal)
		}
	}
	return sum, nil
}

func (r *memPaymentRepo) ListByShift(_ context.Context, shiftID uuid.UUID) ([]model.Payment, error) {
	var out []model.Payment
	for _, id := range r.order {
		p := r.payments[id]
		if p.ShiftID != nil && *p.ShiftID == shiftID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) ListByMember(_ context.Context, memberID uuid.UUID, _, _ int) ([]model.Payment, int64, error) {
	var out []model.Payment
	for _, id := range r.order {
		p := r.payments[id]
		if p.MemberID == memberID {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memPaymentRepo) AddRefundedTotalTx(_ *gorm.DB, paymentID uuid.UUID, amount decimal.Decimal) (int64, error) {
	p, ok := r.payments[paymentID]
	if !ok {
		return 0, nil
	}
	if p.RefundedTotal.Add(amount).GreaterThan(p.Amount) {
		return 0, nil
	}
	p.RefundedTotal = p.RefundedTotal.Add(amount)
	return 1, nil
}

func (r *memPaymentRepo) UpdateStatusTx(_ *gorm.DB, paymentID uuid.UUID, status string) error {
	if p, ok := r.payments[paymentID]; ok {
		p.Status = status
	}
	return nil
}

func (r *memPaymentRepo) CreateRefundTx(_ *gorm.DB, ref *model.Refund) error {
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	r.refunds = append(r.refunds, *ref)
	return nil
}

func (r *memPaymentRepo) SumCollectedByShift(_ context.Context, shiftID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range r.payments {
		if p.ShiftID != nil && *p.ShiftID == shiftID && p.Status != model.PaymentPending {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *memPaymentRepo) SumRefundedByShift(_ context.Context, shiftID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, ref := range r.refunds {
		if ref.ShiftID == shiftID {
			sum = sum.Add(ref.Amount)
		}
	}
	return sum, nil
}

// ── Subscription repository ───────────────────────────────────────────────────

type memSubscriptionRepo struct {
	subs   map[uuid.UUID]*model.Subscription
	order  []uuid.UUID
	pauses map[uuid.UUID]*model.SubscriptionPause

	// beforeSetStatus runs just before the guarded status UPDATE, letting
	// tests interleave a concurrent transition between read and write.
	beforeSetStatus func()
}

var _ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{
		subs:   make(map[uuid.UUID]*model.Subscription),
		pauses: make(map[uuid.UUID]*model.SubscriptionPause),
	}
}

func (r *memSubscriptionRepo) DB() *gorm.DB { return nil }

func (r *memSubscriptionRepo) CreateTx(_ *gorm.DB, s *model.Subscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	r.subs[s.ID] = s
	r.order = append(r.order, s.ID)
	return nil
}

func (r *memSubscriptionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Subscription, error) {
	s, ok := r.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s.Pauses = nil
	for _, p := range r.pauses {
		if p.SubscriptionID == id {
			s.Pauses = append(s.Pauses, *p)
		}
	}
	sort.Slice(s.Pauses, func(i, j int) bool { return s.Pauses[i].StartAt.Before(s.Pauses[j].StartAt) })
	return s, nil
}

func (r *memSubscriptionRepo) FindActiveByMember(_ context.Context, memberID uuid.UUID) (*model.Subscription, error) {
	for _, s := range r.subs {
		if s.MemberID == memberID && s.Status == model.SubActive {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSubscriptionRepo) FindRecentDuplicate(_ context.Context, memberID, planID uuid.UUID, since time.Time) (*model.Subscription, error) {
	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.subs[r.order[i]]
		if s.MemberID == memberID && s.PlanID == planID &&
			s.Status == model.SubActive && !s.CreatedAt.Before(since) {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSubscriptionRepo) ExpireActiveByMemberTx(_ *gorm.DB, memberID uuid.UUID) error {
	for _, s := range r.subs {
		if s.MemberID == memberID && s.Status == model.SubActive {
			s.Status = model.SubExpired
		}
	}
	return nil
}

func (r *memSubscriptionRepo) UpdateTx(_ *gorm.DB, s *model.Subscription) error {
	r.subs[s.ID] = s
	return nil
}

func (r *memSubscriptionRepo) SetStatusTx(_ *gorm.DB, id uuid.UUID, from, to model.SubscriptionStatus) (int64, error) {
	if r.beforeSetStatus != nil {
		r.beforeSetStatus()
	}
	s, ok := r.subs[id]
	if !ok || s.Status != from {
		return 0, nil
	}
	s.Status = to
	return 1, nil
}

func (r *memSubscriptionRepo) ExtendEndDateTx(_ *gorm.DB, id uuid.UUID, days int) error {
	if s, ok := r.subs[id]; ok {
		s.EndDate = s.EndDate.AddDate(0, 0, days)
	}
	return nil
}

func (r *memSubscriptionRepo) ListByMember(_ context.Context, memberID uuid.UUID) ([]model.Subscription, error) {
	var out []model.Subscription
	for _, id := range r.order {
		if s := r.subs[id]; s.MemberID == memberID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSubscriptionRepo) CreatePauseTx(_ *gorm.DB, p *model.SubscriptionPause) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.pauses[p.ID] = p
	return nil
}

func (r *memSubscriptionRepo) FindOpenPause(_ context.Context, subID uuid.UUID) (*model.SubscriptionPause, error) {
	for _, p := range r.pauses {
		if p.SubscriptionID == subID && p.EndAt == nil {
			// Return a detached copy, like the real repo scanning into a
			// fresh struct; callers mutate the result before ClosePauseTx.
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memSubscriptionRepo) ClosePauseTx(_ *gorm.DB, p *model.SubscriptionPause) (int64, error) {
	cur, ok := r.pauses[p.ID]
	if !ok || cur.EndAt != nil {
		return 0, nil
	}
	cur.EndAt = p.EndAt
	cur.DurationDays = p.DurationDays
	return 1, nil
}

// ── Package repository ────────────────────────────────────────────────────────

type memPackageRepo struct {
	packs  map[uuid.UUID]*model.MemberPackage
	usages []model.PackageSessionUsage
	idem   map[string]*model.CheckInIdempotencyRecord
}

var _ repository.PackageRepository = (*memPackageRepo)(nil)

func newMemPackageRepo() *memPackageRepo {
	return &memPackageRepo{
		packs: make(map[uuid.UUID]*model.MemberPackage),
		idem:  make(map[string]*model.CheckInIdempotencyRecord),
	}
}

func (r *memPackageRepo) DB() *gorm.DB { return nil }

func (r *memPackageRepo) Create(_ context.Context, p *model.MemberPackage) error {
	// Mimic the one-ACTIVE-per-member partial unique index.
	for _, existing := range r.packs {
		if existing.MemberID == p.MemberID && existing.Status == model.PackageActive {
			return gorm.ErrDuplicatedKey
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.packs[p.ID] = p
	return nil
}

func (r *memPackageRepo) FindByID(_ context.Context, id uuid.UUID) (*model.MemberPackage, error) {
	p, ok := r.packs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *memPackageRepo) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.MemberPackage, error) {
	p, ok := r.packs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *memPackageRepo) FindActiveByMember(_ context.Context, memberID uuid.UUID) (*model.MemberPackage, error) {
	for _, p := range r.packs {
		if p.MemberID == memberID && p.Status == model.PackageActive {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPackageRepo) ConsumeSessionTx(_ *gorm.DB, id uuid.UUID) (int64, error) {
	p, ok := r.packs[id]
	if !ok || p.Status != model.PackageActive || p.RemainingSessions <= 0 {
		return 0, nil
	}
	p.RemainingSessions--
	return 1, nil
}

func (r *memPackageRepo) CompleteIfExhaustedTx(_ *gorm.DB, id uuid.UUID) error {
	if p, ok := r.packs[id]; ok && p.Status == model.PackageActive && p.RemainingSessions == 0 {
		p.Status = model.PackageCompleted
	}
	return nil
}

func (r *memPackageRepo) CreateUsageTx(_ *gorm.DB, u *model.PackageSessionUsage) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.usages = append(r.usages, *u)
	return nil
}

func (r *memPackageRepo) ListByMember(_ context.Context, memberID uuid.UUID) ([]model.MemberPackage, error) {
	var out []model.MemberPackage
	for _, p := range r.packs {
		if p.MemberID == memberID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPackageRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, p := range r.packs {
		if p.Status == model.PackageActive && p.EndDate != nil && p.EndDate.Before(now) {
			p.Status = model.PackageExpired
			n++
		}
	}
	return n, nil
}

func (r *memPackageRepo) FindIdempotencyRecord(_ context.Context, key string) (*model.CheckInIdempotencyRecord, error) {
	rec, ok := r.idem[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (r *memPackageRepo) CreateIdempotencyRecordTx(_ *gorm.DB, rec *model.CheckInIdempotencyRecord) error {
	if _, exists := r.idem[rec.Key]; exists {
		return gorm.ErrDuplicatedKey
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	r.idem[rec.Key] = rec
	return nil
}

// ── Member / plan repositories ────────────────────────────────────────────────

type memMemberRepo struct {
	members map[uuid.UUID]*model.Member
}

var _ repository.MemberRepository = (*memMemberRepo)(nil)

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{members: make(map[uuid.UUID]*model.Member)}
}

func (r *memMemberRepo) Create(_ context.Context, m *model.Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.members[m.ID] = m
	return nil
}

func (r *memMemberRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (r *memMemberRepo) Update(_ context.Context, m *model.Member) error {
	r.members[m.ID] = m
	return nil
}

func (r *memMemberRepo) List(_ context.Context, _, _ int) ([]model.Member, int64, error) {
	var out []model.Member
	for _, m := range r.members {
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

type memPlanRepo struct {
	plans map[uuid.UUID]*model.Plan
}

var _ repository.PlanRepository = (*memPlanRepo)(nil)

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[uuid.UUID]*model.Plan)}
}

func (r *memPlanRepo) Create(_ context.Context, p *model.Plan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.plans[p.ID] = p
	return nil
}

func (r *memPlanRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Plan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *memPlanRepo) Update(_ context.Context, p *model.Plan) error {
	r.plans[p.ID] = p
	return nil
}

func (r *memPlanRepo) List(_ context.Context, includeInactive bool) ([]model.Plan, error) {
	var out []model.Plan
	for _, p := range r.plans {
		if includeInactive || p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}
