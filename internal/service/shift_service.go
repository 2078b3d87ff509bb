package service

import (
	"context"
	"time"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShiftService interface {
	Open(ctx context.Context, actor Actor, req dto.OpenShiftRequest) (*dto.ShiftResponse, error)
	Close(ctx context.Context, actor Actor, req dto.CloseShiftRequest) (*dto.ShiftResponse, error)
	Summary(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftSummaryResponse, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*dto.ShiftResponse, error)
	History(ctx context.Context, page, limit int) ([]dto.ShiftResponse, int64, error)
	// RequireOpen is called by the payment recorder and the subscription
	// engine to resolve and validate the shift money is moving through.
	RequireOpen(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error)
}

type shiftService struct {
	repo        repository.ShiftRepository
	paymentRepo repository.PaymentRepository
}

func NewShiftService(repo repository.ShiftRepository, paymentRepo repository.PaymentRepository) ShiftService {
	return &shiftService{repo: repo, paymentRepo: paymentRepo}
}

// ── Open ──────────────────────────────────────────────────────────────────────
// At most one open shift per user and per machine at any time.

func (s *shiftService) Open(ctx context.Context, actor Actor, req dto.OpenShiftRequest) (*dto.ShiftResponse, error) {
	if existing, err := s.repo.FindOpenByUser(ctx, actor.UserID); err == nil && existing != nil {
		return nil, apierror.Conflict("user_shift_open", "user already has an open shift")
	}
	if existing, err := s.repo.FindOpenByMachine(ctx, req.MachineID); err == nil && existing != nil {
		return nil, apierror.Conflict("machine_shift_open", "machine already has an open shift")
	}

	shift := &model.Shift{
		MachineID:   req.MachineID,
		OpenedByID:  actor.UserID,
		OpeningCash: req.OpeningCash.Round(2),
		Status:      model.ShiftOpen,
		OpenedAt:    time.Now(),
	}
	if err := s.repo.Create(ctx, shift); err != nil {
		return nil, err
	}

	return shiftToResponse(shift), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// expectedCash = openingCash + Σ(completed cash payments in this shift).
// A shift with zero opening cash, zero closing cash, and zero payment rows is
// tagged NO_ACTIVITY — an audit classification, not an error. Closing is
// terminal.

func (s *shiftService) Close(ctx context.Context, actor Actor, req dto.CloseShiftRequest) (*dto.ShiftResponse, error) {
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		return nil, apierror.Validation("invalid_shift_id", "shift_id must be a UUID")
	}

	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.NotFound("shift_not_found", "shift not found")
	}
	if shift.Status != model.ShiftOpen {
		return nil, apierror.Conflict("shift_already_closed", "shift is already closed")
	}

	closing := req.ClosingCash.Round(2)

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		cashSum, err := s.repo.SumCashPayments(ctx, tx, shiftID)
		if err != nil {
			return err
		}
		paymentCount, err := s.repo.CountPayments(ctx, tx, shiftID)
		if err != nil {
			return err
		}

		expected := shift.OpeningCash.Add(cashSum).Round(2)
		difference := closing.Sub(expected).Round(2)

		activity := model.ShiftActivityNormal
		if shift.OpeningCash.IsZero() && closing.IsZero() && paymentCount == 0 {
			activity = model.ShiftActivityNoActivity
		}

		now := time.Now()
		closedBy := actor.UserID
		shift.ClosingCash = &closing
		shift.ExpectedCash = &expected
		shift.CashDifference = &difference
		shift.Status = model.ShiftClosed
		shift.ActivityType = &activity
		shift.ClosedByID = &closedBy
		shift.ClosedAt = &now

		// Guarded write: a concurrent closer that committed after our read
		// must not have its reconciliation overwritten.
		updated, err := s.repo.CloseTx(tx, shift)
		if err != nil {
			return err
		}
		if updated == 0 {
			return apierror.Conflict("shift_already_closed", "shift is already closed")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return shiftToResponse(shift), nil
}

// ── Summary ───────────────────────────────────────────────────────────────────
// Read-only money aggregate; does not mutate the shift.

func (s *shiftService) Summary(ctx context.Context, shiftID uuid.UUID) (*dto.ShiftSummaryResponse, error) {
	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.NotFound("shift_not_found", "shift not found")
	}

	collected, err := s.paymentRepo.SumCollectedByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	refunded, err := s.paymentRepo.SumRefundedByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	cashSum, err := s.repo.SumCashPayments(ctx, s.repo.DB(), shiftID)
	if err != nil {
		return nil, err
	}

	return &dto.ShiftSummaryResponse{
		ShiftID:        shift.ID.String(),
		TotalCollected: collected.Round(2),
		TotalRefunded:  refunded.Round(2),
		NetCash:        collected.Sub(refunded).Round(2),
		ExpectedCash:   shift.OpeningCash.Add(cashSum).Round(2),
	}, nil
}

// ── GetActive ─────────────────────────────────────────────────────────────────

func (s *shiftService) GetActive(ctx context.Context, userID uuid.UUID) (*dto.ShiftResponse, error) {
	shift, err := s.repo.FindOpenByUser(ctx, userID)
	if err != nil || shift == nil {
		return nil, nil
	}
	return shiftToResponse(shift), nil
}

func (s *shiftService) History(ctx context.Context, page, limit int) ([]dto.ShiftResponse, int64, error) {
	shifts, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.ShiftResponse, 0, len(shifts))
	for i := range shifts {
		out = append(out, *shiftToResponse(&shifts[i]))
	}
	return out, total, nil
}

// ── RequireOpen ───────────────────────────────────────────────────────────────

func (s *shiftService) RequireOpen(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	shift, err := s.repo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apierror.NotFound("shift_not_found", "shift not found")
	}
	if shift.Status != model.ShiftOpen {
		return nil, apierror.Validation("shift_not_open", "no open shift available")
	}
	return shift, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func shiftToResponse(shift *model.Shift) *dto.ShiftResponse {
	resp := &dto.ShiftResponse{
		ID:             shift.ID.String(),
		MachineID:      shift.MachineID,
		OpenedBy:       shift.OpenedByID.String(),
		OpeningCash:    shift.OpeningCash,
		ClosingCash:    shift.ClosingCash,
		ExpectedCash:   shift.ExpectedCash,
		CashDifference: shift.CashDifference,
		Status:         shift.Status,
		ActivityType:   shift.ActivityType,
		OpenedAt:       shift.OpenedAt.Format(time.RFC3339),
	}
	if shift.ClosedByID != nil {
		closedBy := shift.ClosedByID.String()
		resp.ClosedBy = &closedBy
	}
	if shift.ClosedAt != nil {
		t := shift.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}
