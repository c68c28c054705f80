package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

type BranchService struct {
	branches ports.Repository[domain.Branch]
	logger   *logrus.Logger
}

func NewBranchService(branches ports.Repository[domain.Branch], logger *logrus.Logger) *BranchService {
	return &BranchService{branches: branches, logger: logger}
}

type BranchInput struct {
	Name               *string                  `json:"name"`
	Code               *string                  `json:"code"`
	Classes            []string                 `json:"classes"`
	ClassFeeStructures []domain.ClassFeeMapping `json:"class_fee_structures" validate:"omitempty,dive"`
	GoogleLocation     *string                  `json:"google_location"`
	Address            *string                  `json:"address"`
	City               *string                  `json:"city"`
	State              *string                  `json:"state"`
	Pincode            *string                  `json:"pincode"`
	Phone              *string                  `json:"phone"`
	CoordinatorID      *string                  `json:"coordinator_id"`
	CCTVConfigs        []domain.CCTVConfig      `json:"cctv_configs" validate:"omitempty,dive"`
}

func (in BranchInput) apply(b *domain.Branch) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&b.Name, in.Name)
	set(&b.GoogleLocation, in.GoogleLocation)
	set(&b.Address, in.Address)
	set(&b.City, in.City)
	set(&b.State, in.State)
	set(&b.Pincode, in.Pincode)
	set(&b.Phone, in.Phone)
	set(&b.CoordinatorID, in.CoordinatorID)
	if in.Code != nil {
		b.Code = strings.ToUpper(strings.TrimSpace(*in.Code))
	}
	if in.Classes != nil {
		b.Classes = domain.UniqueIDs(in.Classes)
	}
	if in.ClassFeeStructures != nil {
		b.ClassFeeStructures = in.ClassFeeStructures
	}
	if in.CCTVConfigs != nil {
		b.CCTVConfigs = in.CCTVConfigs
	}
}

func (s *BranchService) Create(ctx context.Context, in BranchInput) (*domain.Branch, error) {
	b := &domain.Branch{
		ID:                 newID(),
		IsActive:           true,
		Classes:            []string{},
		ClassFeeStructures: []domain.ClassFeeMapping{},
		CCTVConfigs:        []domain.CCTVConfig{},
	}
	in.apply(b)
	if b.Name == "" {
		return nil, validationf("name is required")
	}
	if err := s.ensureCodeFree(ctx, b.Code, b.ID); err != nil {
		return nil, err
	}
	if err := s.branches.Insert(ctx, b); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"branch_id": b.ID, "code": b.Code}).Info("branch created")
	return b, nil
}

func (s *BranchService) List(ctx context.Context) ([]*domain.Branch, error) {
	return s.branches.Find(ctx, ports.Query{}.OrderBy("name", false))
}

func (s *BranchService) Get(ctx context.Context, id string) (*domain.Branch, error) {
	return s.branches.Get(ctx, id)
}

func (s *BranchService) Update(ctx context.Context, id string, in BranchInput) (*domain.Branch, error) {
	b, err := s.branches.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(b)
	if b.Name == "" {
		return nil, validationf("name must not be empty")
	}
	if in.Code != nil {
		if err := s.ensureCodeFree(ctx, b.Code, b.ID); err != nil {
			return nil, err
		}
	}
	if err := s.branches.Save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Archive hides the branch from every default query.
func (s *BranchService) Archive(ctx context.Context, id string) error {
	b, err := s.branches.Get(ctx, id)
	if err != nil {
		return err
	}
	b.IsActive = false
	return s.branches.Save(ctx, b)
}

func (s *BranchService) ensureCodeFree(ctx context.Context, code, selfID string) error {
	if code == "" {
		return nil
	}
	other, err := s.branches.FindOne(ctx, ports.Where(ports.Eq("code", code)))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != selfID:
		return conflictf("branch code %s is already in use", code)
	}
	return nil
}
