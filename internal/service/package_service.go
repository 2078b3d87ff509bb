package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PackageService interface {
	Assign(ctx context.Context, actor Actor, req dto.AssignPackageRequest) (*dto.PackageResponse, error)
	// CheckIn consumes exactly one session. Retrying with the same
	// idempotency key replays the stored outcome instead of consuming again.
	CheckIn(ctx context.Context, actor Actor, id uuid.UUID, req dto.CheckInRequest) (*dto.CheckInResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.PackageResponse, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]dto.PackageResponse, error)
	// SyncStatuses sweeps overdue ACTIVE assignments to EXPIRED.
	SyncStatuses(ctx context.Context) (int64, error)
}

type packageService struct {
	repo       repository.PackageRepository
	planRepo   repository.PlanRepository
	memberRepo repository.MemberRepository
}

func NewPackageService(
	repo repository.PackageRepository,
	planRepo repository.PlanRepository,
	memberRepo repository.MemberRepository,
) PackageService {
	return &packageService{repo: repo, planRepo: planRepo, memberRepo: memberRepo}
}

// ── Assign ────────────────────────────────────────────────────────────────────

func (s *packageService) Assign(ctx context.Context, actor Actor, req dto.AssignPackageRequest) (*dto.PackageResponse, error) {
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

	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, apierror.NotFound("plan_not_found", "plan not found")
	}
	if !plan.Active {
		return nil, apierror.Validation("plan_inactive", "plan is inactive")
	}
	if plan.Type != model.PlanSessions || plan.TotalSessions <= 0 {
		return nil, apierror.Validation("plan_not_sessions",
			"packages require a sessions plan with a positive session count")
	}

	if existing, err := s.repo.FindActiveByMember(ctx, memberID); err == nil && existing != nil {
		return nil, apierror.Conflict("active_package_exists",
			"member already has an active package")
	}

	start := time.Now()
	if req.StartDate != nil {
		start, err = time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return nil, apierror.Validation("invalid_start_date", "start_date must be YYYY-MM-DD")
		}
	}

	var endDate *time.Time
	if plan.ValidityDays != nil && *plan.ValidityDays > 0 {
		end := start.AddDate(0, 0, *plan.ValidityDays)
		endDate = &end
	}

	// Snapshot the session identity and price at assignment time.
	sessionName := plan.Name
	if req.SessionName != nil && *req.SessionName != "" {
		sessionName = *req.SessionName
	}
	sessionPrice := decimal.Zero
	if plan.SessionPrice != nil {
		sessionPrice = *plan.SessionPrice
	}
	if req.SessionPrice != nil {
		sessionPrice = *req.SessionPrice
	}

	pack := &model.MemberPackage{
		ID:                uuid.New(),
		MemberID:          memberID,
		PlanID:            planID,
		TotalSessions:     plan.TotalSessions,
		RemainingSessions: plan.TotalSessions,
		Status:            model.PackageActive,
		StartDate:         start,
		EndDate:           endDate,
		SessionName:       sessionName,
		SessionPrice:      sessionPrice.Round(2),
		CreatedByID:       actor.UserID,
	}
	if err := s.repo.Create(ctx, pack); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierror.Conflict("active_package_exists",
				"member already has an active package")
		}
		return nil, err
	}

	return packageToResponse(pack), nil
}

// ── CheckIn ───────────────────────────────────────────────────────────────────

func (s *packageService) CheckIn(ctx context.Context, actor Actor, id uuid.UUID, req dto.CheckInRequest) (*dto.CheckInResponse, error) {
	// Fast path: a key seen before replays the stored outcome verbatim.
	if rec, err := s.repo.FindIdempotencyRecord(ctx, req.IdempotencyKey); err == nil && rec != nil {
		return replayCheckIn(rec)
	}

	// Expiry is swept lazily so a stale ACTIVE row can't be consumed.
	if _, err := s.repo.ExpireOverdue(ctx, time.Now()); err != nil {
		return nil, err
	}

	pack, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("package_not_found", "package not found")
	}

	var payload dto.CheckInPayload
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		updated, err := s.repo.ConsumeSessionTx(tx, pack.ID)
		if err != nil {
			return err
		}
		if updated == 0 {
			// The guard failed: not ACTIVE anymore or no balance left.
			fresh, ferr := s.repo.FindByIDTx(tx, pack.ID)
			if ferr == nil && fresh != nil {
				pack = fresh
			}
			if pack.RemainingSessions <= 0 {
				return apierror.Conflict("no_sessions_remaining",
					"package has no sessions remaining")
			}
			return apierror.Conflict("package_not_active",
				"package is "+pack.Status+", not ACTIVE")
		}

		now := time.Now()
		usage := &model.PackageSessionUsage{
			ID:              uuid.New(),
			MemberPackageID: pack.ID,
			Source:          "check_in",
			UsedAt:          now,
			CreatedByID:     actor.UserID,
		}
		if err := s.repo.CreateUsageTx(tx, usage); err != nil {
			return err
		}
		if err := s.repo.CompleteIfExhaustedTx(tx, pack.ID); err != nil {
			return err
		}

		fresh, err := s.repo.FindByIDTx(tx, pack.ID)
		if err != nil {
			return err
		}

		payload = dto.CheckInPayload{
			AssignmentID:      pack.ID.String(),
			UsageID:           usage.ID.String(),
			RemainingSessions: fresh.RemainingSessions,
			Status:            fresh.Status,
			UsedAt:            now.Format(time.RFC3339),
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		return s.repo.CreateIdempotencyRecordTx(tx, &model.CheckInIdempotencyRecord{
			ID:              uuid.New(),
			Key:             req.IdempotencyKey,
			MemberPackageID: pack.ID,
			UsageID:         usage.ID,
			Response:        string(raw),
		})
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// A concurrent request with the same key won the insert race;
			// its stored outcome is the canonical one.
			if rec, err := s.repo.FindIdempotencyRecord(ctx, req.IdempotencyKey); err == nil && rec != nil {
				return replayCheckIn(rec)
			}
		}
		return nil, txErr
	}

	return &dto.CheckInResponse{Payload: payload, Replay: false}, nil
}

func replayCheckIn(rec *model.CheckInIdempotencyRecord) (*dto.CheckInResponse, error) {
	var payload dto.CheckInPayload
	if err := json.Unmarshal([]byte(rec.Response), &payload); err != nil {
		return nil, apierror.Internal("stored check-in outcome could not be decoded")
	}
	return &dto.CheckInResponse{Payload: payload, Replay: true}, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *packageService) Get(ctx context.Context, id uuid.UUID) (*dto.PackageResponse, error) {
	if _, err := s.repo.ExpireOverdue(ctx, time.Now()); err != nil {
		return nil, err
	}
	pack, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("package_not_found", "package not found")
	}
	return packageToResponse(pack), nil
}

func (s *packageService) ListByMember(ctx context.Context, memberID uuid.UUID) ([]dto.PackageResponse, error) {
	if _, err := s.repo.ExpireOverdue(ctx, time.Now()); err != nil {
		return nil, err
	}
	packs, err := s.repo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PackageResponse, 0, len(packs))
	for i := range packs {
		out = append(out, *packageToResponse(&packs[i]))
	}
	return out, nil
}

func (s *packageService) SyncStatuses(ctx context.Context) (int64, error) {
	return s.repo.ExpireOverdue(ctx, time.Now())
}

func packageToResponse(p *model.MemberPackage) *dto.PackageResponse {
	resp := &dto.PackageResponse{
		ID:                p.ID.String(),
		MemberID:          p.MemberID.String(),
		PlanID:            p.PlanID.String(),
		TotalSessions:     p.TotalSessions,
		RemainingSessions: p.RemainingSessions,
		Status:            p.Status,
		StartDate:         p.StartDate.Format("2006-01-02"),
		SessionName:       p.SessionName,
		SessionPrice:      p.SessionPrice,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
	}
	if p.EndDate != nil {
		end := p.EndDate.Format("2006-01-02")
		resp.EndDate = &end
	}
	return resp
}
