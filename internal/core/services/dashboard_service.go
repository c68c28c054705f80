package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

const (
	recentAnnouncementDays = 30
	upcomingHolidayLimit   = 5
)

type DashboardCounts struct {
	Students      int64 `json:"students"`
	Staff         int64 `json:"staff"`
	Branches      int64 `json:"branches"`
	Announcements int   `json:"announcements"`
}

type DashboardAttendance struct {
	Present       int    `json:"present"`
	Absent        int    `json:"absent"`
	ClassesMarked int    `json:"classes_marked"`
	Date          string `json:"date"`
}

type DashboardFinance struct {
	TotalExpected float64 `json:"total_expected"`
	TotalReceived float64 `json:"total_received"`
	PendingAmount float64 `json:"pending_amount"`
}

type UpcomingHoliday struct {
	Name string `json:"name"`
	Date string `json:"date"`
	Days int    `json:"days"`
}

type DashboardStats struct {
	BranchID         string              `json:"branch_id,omitempty"`
	Counts           DashboardCounts     `json:"counts"`
	Attendance       DashboardAttendance `json:"attendance"`
	Finance          DashboardFinance    `json:"finance"`
	UpcomingHolidays []UpcomingHoliday   `json:"upcoming_holidays"`
}

// DashboardService aggregates the overview numbers shown to staff. Admins
// see the whole school, other staff their own branch.
type DashboardService struct {
	stores *DashboardStores
	logger *logrus.Logger
	now    Clock
}

type DashboardStores struct {
	Users         ports.Repository[domain.User]
	Students      ports.Repository[domain.Student]
	Branches      ports.Repository[domain.Branch]
	Attendance    ports.Repository[domain.AttendanceRecord]
	Announcements ports.Repository[domain.Announcement]
	Billings      ports.Repository[domain.Billing]
	Holidays      ports.Repository[domain.Holiday]
}

func NewDashboardService(stores *DashboardStores, logger *logrus.Logger) *DashboardService {
	return &DashboardService{stores: stores, logger: logger, now: systemClock}
}

func (s *DashboardService) Stats(ctx context.Context, actor *domain.User) (*DashboardStats, error) {
	if actor.IsParent() {
		return nil, forbiddenf("staff only")
	}
	branchID := ""
	if !actor.IsAdmin() {
		if actor.BranchID == "" {
			return nil, forbiddenf("no branch assigned to your account")
		}
		branchID = actor.BranchID
	}
	byBranch := func(q ports.Query) ports.Query {
		if branchID == "" {
			return q
		}
		return q.And(ports.Eq("branch_id", branchID))
	}

	now := s.now()
	today := now.Format(domain.DateLayout)
	out := &DashboardStats{
		BranchID:         branchID,
		Attendance:       DashboardAttendance{Date: today},
		UpcomingHolidays: []UpcomingHoliday{},
	}

	var err error
	if out.Counts.Students, err = s.stores.Students.Count(ctx, byBranch(ports.Query{})); err != nil {
		return nil, err
	}
	if out.Counts.Staff, err = s.staffCount(ctx, branchID); err != nil {
		return nil, err
	}
	if branchID == "" {
		if out.Counts.Branches, err = s.stores.Branches.Count(ctx, ports.Query{}); err != nil {
			return nil, err
		}
	} else {
		out.Counts.Branches = 1
	}

	scope := domain.UnrestrictedScope()
	if branchID != "" {
		scope = domain.BranchScope(branchID)
	}
	posts, err := s.stores.Announcements.Find(ctx, ports.Query{})
	if err != nil {
		return nil, err
	}
	since := now.AddDate(0, 0, -recentAnnouncementDays)
	for _, p := range domain.VisiblePostsForScope(posts, scope) {
		if !p.CreatedAt.Before(since) {
			out.Counts.Announcements++
		}
	}

	records, err := s.stores.Attendance.Find(ctx, byBranch(ports.Where(ports.Eq("date", today))))
	if err != nil {
		return nil, err
	}
	out.Attendance.ClassesMarked = len(records)
	for _, r := range records {
		for _, e := range r.Attendance {
			switch e.Status {
			case domain.StatusPresent:
				out.Attendance.Present++
			case domain.StatusAbsent:
				out.Attendance.Absent++
			}
		}
	}

	billings, err := s.stores.Billings.Find(ctx, byBranch(ports.Query{}))
	if err != nil {
		return nil, err
	}
	for _, b := range billings {
		out.Finance.TotalExpected += b.FeeStructure.Amount
		out.Finance.TotalReceived += b.AmountPaid
	}
	out.Finance.PendingAmount = out.Finance.TotalExpected - out.Finance.TotalReceived

	holidays, err := s.stores.Holidays.Find(ctx, ports.Query{}.OrderBy("date", false))
	if err != nil {
		return nil, err
	}
	for _, h := range holidays {
		if len(out.UpcomingHolidays) == upcomingHolidayLimit {
			break
		}
		if h.Date < today || (h.BranchID != "" && !scope.Contains(h.BranchID)) {
			continue
		}
		out.UpcomingHolidays = append(out.UpcomingHolidays, UpcomingHoliday{Name: h.Name, Date: h.Date, Days: holidayDays(h)})
	}
	return out, nil
}

// staffCount counts non-parent accounts, across the school or in one branch.
func (s *DashboardService) staffCount(ctx context.Context, branchID string) (int64, error) {
	if branchID != "" {
		users, err := s.stores.Users.Find(ctx, ports.Where(ports.Eq("branch_id", branchID)))
		if err != nil {
			return 0, err
		}
		var n int64
		for _, u := range users {
			if !u.IsParent() {
				n++
			}
		}
		return n, nil
	}
	total, err := s.stores.Users.Count(ctx, ports.Query{})
	if err != nil {
		return 0, err
	}
	parents, err := s.stores.Users.Count(ctx, ports.Where(ports.Eq("role", domain.RoleParent)))
	if err != nil {
		return 0, err
	}
	return total - parents, nil
}

// holidayDays is the inclusive length of the holiday in days.
func holidayDays(h *domain.Holiday) int {
	if h.EndDate == "" {
		return 1
	}
	start, err := domain.ParseDate(h.Date)
	if err != nil {
		return 1
	}
	end, err := domain.ParseDate(h.EndDate)
	if err != nil || end.Before(start) {
		return 1
	}
	return int(end.Sub(start).Hours()/24) + 1
}
