package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

const dashboardDays = 6

// MobileService backs the parent app.
type MobileService struct {
	students      ports.Repository[domain.Student]
	branches      ports.Repository[domain.Branch]
	settings      *SettingsService
	announcements *AnnouncementService
	logger        *logrus.Logger
	now           Clock
}

func NewMobileService(
	students ports.Repository[domain.Student],
	branches ports.Repository[domain.Branch],
	settings *SettingsService,
	announcements *AnnouncementService,
	logger *logrus.Logger,
) *MobileService {
	return &MobileService{
		students:      students,
		branches:      branches,
		settings:      settings,
		announcements: announcements,
		logger:        logger,
		now:           systemClock,
	}
}

type ChildSummary struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	ClassName       string `json:"class_name"`
	RollNumber      string `json:"roll_number,omitempty"`
	AdmissionNumber string `json:"admission_number,omitempty"`
	BranchID        string `json:"branch_id"`
	BranchName      string `json:"branch_name"`
	PhotoURL        string `json:"photo_url,omitempty"`
}

type DayStatus struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

type ClassTimings struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type Dashboard struct {
	Children      []ChildSummary            `json:"children"`
	Selected      *ChildSummary             `json:"selected_child"`
	RecentDays    []DayStatus               `json:"recent_attendance"`
	Announcements []domain.AnnouncementView `json:"latest_announcements"`
	Timings       *ClassTimings             `json:"class_timings"`
	CCTVEnabled   bool                      `json:"cctv_enabled"`
	Banners       []string                  `json:"banners"`
	AcademicYear  string                    `json:"academic_year"`
}

type ParentProfile struct {
	Profile  domain.Profile `json:"profile"`
	Children []ChildSummary `json:"children"`
}

const notMarked = "not_marked"

func (s *MobileService) parentOnly(parent *domain.User) error {
	if !parent.IsParent() {
		return forbiddenf("parents only")
	}
	return nil
}

// children loads the parent's active students with branch names resolved in
// one lookup.
func (s *MobileService) children(ctx context.Context, parent *domain.User) ([]*domain.Student, []ChildSummary, error) {
	students, err := linkedStudents(ctx, s.students, parent)
	if err != nil {
		return nil, nil, err
	}
	domain.SortByRollNumber(students)
	names, err := branchNames(ctx, s.branches, branchIDsOf(students))
	if err != nil {
		return nil, nil, err
	}
	out := make([]ChildSummary, 0, len(students))
	for _, st := range students {
		out = append(out, ChildSummary{
			ID:              st.ID,
			FullName:        st.FullName,
			ClassName:       st.ClassName,
			RollNumber:      st.RollNumber,
			AdmissionNumber: st.AdmissionNumber,
			BranchID:        st.BranchID,
			BranchName:      names[st.BranchID],
			PhotoURL:        st.PhotoURL,
		})
	}
	return students, out, nil
}

// Dashboard summarizes one child: the selected one, or the first.
func (s *MobileService) Dashboard(ctx context.Context, parent *domain.User, studentID string) (*Dashboard, error) {
	if err := s.parentOnly(parent); err != nil {
		return nil, err
	}
	students, summaries, err := s.children(ctx, parent)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Children:      summaries,
		RecentDays:    []DayStatus{},
		Announcements: []domain.AnnouncementView{},
		CCTVEnabled:   settings.CCTVEnabled,
		Banners:       ActiveBanners(settings),
		AcademicYear:  s.settings.CurrentAcademicYearName(ctx),
	}

	idx := -1
	for i, st := range students {
		if studentID == "" || st.ID == studentID {
			idx = i
			break
		}
	}
	if studentID != "" && idx < 0 {
		return nil, forbiddenf("student is not linked to your account")
	}
	if idx >= 0 {
		child := students[idx]
		d.Selected = &summaries[idx]

		today := s.now()
		for i := 0; i < dashboardDays; i++ {
			date := today.AddDate(0, 0, -i).Format(domain.DateLayout)
			status, ok := child.AttendanceOn(date)
			if !ok {
				status = notMarked
			}
			d.RecentDays = append(d.RecentDays, DayStatus{Date: date, Status: status})
		}

		branch, err := s.branches.Get(ctx, child.BranchID)
		switch {
		case err == nil:
			if m, ok := branch.ClassMapping(child.ClassName); ok {
				d.Timings = &ClassTimings{StartTime: m.StartTime, EndTime: m.EndTime}
			}
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	page, err := s.announcements.List(ctx, parent, ListParams{Limit: 2})
	if err != nil {
		return nil, err
	}
	d.Announcements = page.Items
	return d, nil
}

func (s *MobileService) Profile(ctx context.Context, parent *domain.User) (*ParentProfile, error) {
	if err := s.parentOnly(parent); err != nil {
		return nil, err
	}
	_, summaries, err := s.children(ctx, parent)
	if err != nil {
		return nil, err
	}
	return &ParentProfile{Profile: parent.Profile(), Children: summaries}, nil
}

// AttendanceHistory returns a child's log newest first, optionally limited
// to one month of one year.
func (s *MobileService) AttendanceHistory(ctx context.Context, parent *domain.User, studentID string, month, year int) ([]domain.AttendanceLog, error) {
	if err := s.parentOnly(parent); err != nil {
		return nil, err
	}
	if !parent.HasStudent(studentID) {
		return nil, forbiddenf("student is not linked to your account")
	}
	if month < 0 || month > 12 {
		return nil, validationf("month must be within 1..12")
	}
	st, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	out := []domain.AttendanceLog{}
	for _, l := range st.AttendanceLogs {
		d, err := domain.ParseDate(l.Date)
		if err != nil {
			continue
		}
		if year > 0 && d.Year() != year {
			continue
		}
		if month > 0 && int(d.Month()) != month {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.Compare(out[i].Date, out[j].Date) > 0 })
	return out, nil
}
