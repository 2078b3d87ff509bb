package service

import (
	"context"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"

	"github.com/google/uuid"
)

type MemberService interface {
	Create(ctx context.Context, req dto.CreateMemberRequest) (*dto.MemberResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.MemberResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateMemberRequest) (*dto.MemberResponse, error)
	List(ctx context.Context, page, limit int) (*dto.MemberListResponse, error)
}

type memberService struct {
	repo repository.MemberRepository
}

func NewMemberService(repo repository.MemberRepository) MemberService {
	return &memberService{repo: repo}
}

func (s *memberService) Create(ctx context.Context, req dto.CreateMemberRequest) (*dto.MemberResponse, error) {
	member := &model.Member{
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
		Active:   true,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, err
	}
	return memberToResponse(member), nil
}

func (s *memberService) Get(ctx context.Context, id uuid.UUID) (*dto.MemberResponse, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("member_not_found", "member not found")
	}
	return memberToResponse(member), nil
}

func (s *memberService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateMemberRequest) (*dto.MemberResponse, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("member_not_found", "member not found")
	}
	if req.FullName != nil {
		member.FullName = *req.FullName
	}
	if req.Phone != nil {
		member.Phone = req.Phone
	}
	if req.Email != nil {
		member.Email = req.Email
	}
	if req.Active != nil {
		member.Active = *req.Active
	}
	if err := s.repo.Update(ctx, member); err != nil {
		return nil, err
	}
	return memberToResponse(member), nil
}

func (s *memberService) List(ctx context.Context, page, limit int) (*dto.MemberListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	members, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.MemberListResponse{Total: total, Page: page, Limit: limit}
	resp.Members = make([]dto.MemberResponse, len(members))
	for i := range members {
		resp.Members[i] = *memberToResponse(&members[i])
	}
	return resp, nil
}

func memberToResponse(m *model.Member) *dto.MemberResponse {
	return &dto.MemberResponse{
		ID:       m.ID.String(),
		FullName: m.FullName,
		Phone:    m.Phone,
		Email:    m.Email,
		Active:   m.Active,
	}
}
