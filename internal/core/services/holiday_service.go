package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

type HolidayService struct {
	holidays ports.Repository[domain.Holiday]
	students ports.Repository[domain.Student]
	settings *SettingsService
	logger   *logrus.Logger
	now      Clock
}

func NewHolidayService(
	holidays ports.Repository[domain.Holiday],
	students ports.Repository[domain.Student],
	settings *SettingsService,
	logger *logrus.Logger,
) *HolidayService {
	return &HolidayService{holidays: holidays, students: students, settings: settings, logger: logger, now: systemClock}
}

type HolidayInput struct {
	Name         *string `json:"name"`
	Date         *string `json:"date"`
	EndDate      *string `json:"end_date"`
	AcademicYear *string `json:"academic_year"`
	Description  *string `json:"description"`
	BranchID     *string `json:"branch_id"`
}

func (in HolidayInput) apply(h *domain.Holiday) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&h.Name, in.Name)
	set(&h.Date, in.Date)
	set(&h.EndDate, in.EndDate)
	set(&h.AcademicYear, in.AcademicYear)
	set(&h.Description, in.Description)
	set(&h.BranchID, in.BranchID)
}

func validateHoliday(h *domain.Holiday) error {
	if h.Name == "" {
		return validationf("name is required")
	}
	start, err := domain.ParseDate(h.Date)
	if err != nil {
		return err
	}
	if h.EndDate != "" {
		end, err := domain.ParseDate(h.EndDate)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return validationf("end_date is before date")
		}
	}
	return nil
}

type HolidayFilter struct {
	AcademicYear string
	BranchID     string
}

// List returns holidays by date. A branch filter also includes school-wide
// holidays. Parents see their children's branches; staff their own.
func (s *HolidayService) List(ctx context.Context, actor *domain.User, f HolidayFilter) ([]*domain.Holiday, error) {
	q := ports.Query{}.OrderBy("date", false)
	if f.AcademicYear != "" {
		q = q.And(ports.Eq("academic_year", f.AcademicYear))
	}
	all, err := s.holidays.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	var scope domain.Scope
	switch {
	case actor.IsParent():
		students, err := linkedStudents(ctx, s.students, actor)
		if err != nil {
			return nil, err
		}
		scope = domain.BranchScope(branchIDsOf(students)...)
	case actor.IsAdmin():
		scope = domain.UnrestrictedScope()
	default:
		scope = domain.BranchScope(actor.BranchID)
	}
	if f.BranchID != "" {
		if !scope.Contains(f.BranchID) {
			return nil, forbiddenf("branch %s is outside your scope", f.BranchID)
		}
		scope = domain.BranchScope(f.BranchID)
	}

	out := all[:0]
	for _, h := range all {
		if h.BranchID == "" || scope.Contains(h.BranchID) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *HolidayService) Get(ctx context.Context, id string) (*domain.Holiday, error) {
	return s.holidays.Get(ctx, id)
}

// Create adds a holiday. Non-admin staff default to their own branch; the
// academic year defaults to the current one.
func (s *HolidayService) Create(ctx context.Context, actor *domain.User, in HolidayInput) (*domain.Holiday, error) {
	now := s.now()
	h := &domain.Holiday{ID: newID(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	in.apply(h)
	if h.BranchID == "" && !actor.IsAdmin() {
		h.BranchID = actor.BranchID
	}
	if err := validateHoliday(h); err != nil {
		return nil, err
	}
	if err := checkBranchWrite(actor, h.BranchID, "holidays"); err != nil {
		return nil, err
	}
	if h.AcademicYear == "" {
		h.AcademicYear = s.settings.CurrentAcademicYearName(ctx)
	}
	if err := s.holidays.Insert(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HolidayService) Update(ctx context.Context, actor *domain.User, id string, in HolidayInput) (*domain.Holiday, error) {
	h, err := s.holidays.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkBranchWrite(actor, h.BranchID, "holidays"); err != nil {
		return nil, err
	}
	in.apply(h)
	if err := validateHoliday(h); err != nil {
		return nil, err
	}
	if err := checkBranchWrite(actor, h.BranchID, "holidays"); err != nil {
		return nil, err
	}
	h.UpdatedAt = s.now()
	if err := s.holidays.Save(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HolidayService) Archive(ctx context.Context, actor *domain.User, id string) error {
	h, err := s.holidays.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := checkBranchWrite(actor, h.BranchID, "holidays"); err != nil {
		return err
	}
	h.IsActive = false
	h.UpdatedAt = s.now()
	return s.holidays.Save(ctx, h)
}
