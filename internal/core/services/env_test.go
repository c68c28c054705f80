package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/adapters/docstore"
	"github.com/pralapin/school-service/internal/adapters/observability"
	"github.com/pralapin/school-service/internal/adapters/repository"
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/mocks"
)

// testEnv wires every service over an in-memory document store with a
// fixed clock.
type testEnv struct {
	now time.Time

	mem      *docstore.Memory
	stores   *repository.Stores
	push     *mocks.MockPushSender
	objects  *mocks.MockObjectStore
	renderer *mocks.MockReceiptRenderer

	roles         *RoleService
	registration  *RegistrationService
	settings      *SettingsService
	notifier      *NotificationService
	students      *StudentService
	attendance    *AttendanceService
	announcements *AnnouncementService
	billing       *BillingService
	branches      *BranchService
	holidays      *HolidayService
	mobile        *MobileService
	cctv          *CCTVService
	gallery       *GalleryService
	activities    *ActivityService
	dashboard     *DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := observability.NopLogger()

	mem := docstore.NewMemory()
	env := &testEnv{
		now:      time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC),
		mem:      mem,
		stores:   repository.NewStores(mem),
		push:     mocks.NewMockPushSender(),
		objects:  mocks.NewMockObjectStore(),
		renderer: mocks.NewMockReceiptRenderer(),
	}
	clock := func() time.Time { return env.now }
	st := env.stores

	env.roles = NewRoleService(st.Roles, false, logger)
	env.roles.now = clock
	env.registration = NewRegistrationService(st.Users, st.Roles, mocks.PlainHasher{}, logger)
	env.registration.now = clock
	env.settings = NewSettingsService(st.Settings, st.AcademicYears, env.objects, logger)
	env.settings.now = clock
	env.notifier = NewNotificationService(st.Users, st.Students, env.push, logger)
	env.students = NewStudentService(st.Students, st.AllStudents, st.Branches, env.settings, env.registration, env.objects, logger)
	env.students.now = clock
	env.attendance = NewAttendanceService(st.Attendance, st.Students, st.Branches, env.notifier, logger)
	env.attendance.now = clock
	env.announcements = NewAnnouncementService(st.Announcements, st.Users, st.Students, st.Branches, env.notifier, logger)
	env.announcements.now = clock
	env.billing = NewBillingService(st.Billings, st.Students, st.Branches, env.settings, env.renderer, env.objects,
		ReceiptOptions{SchoolName: "Little Steps", SchoolAddress: "1 Main Road"}, logger)
	env.billing.now = clock
	env.branches = NewBranchService(st.Branches, logger)
	env.holidays = NewHolidayService(st.Holidays, st.Students, env.settings, logger)
	env.holidays.now = clock
	env.mobile = NewMobileService(st.Students, st.Branches, env.settings, env.announcements, logger)
	env.mobile.now = clock
	env.cctv = NewCCTVService(st.Students, st.Branches, env.settings, domain.ClockWindow{Start: "09:00", End: "17:00"}, logger)
	env.cctv.now = clock
	env.gallery = NewGalleryService(st.Albums, st.Students, env.objects, logger)
	env.gallery.now = clock
	env.activities = NewActivityService(st.Activities, st.Students, env.objects, logger)
	env.activities.now = clock
	env.dashboard = NewDashboardService(&DashboardStores{
		Users:         st.Users,
		Students:      st.Students,
		Branches:      st.Branches,
		Attendance:    st.Attendance,
		Announcements: st.Announcements,
		Billings:      st.Billings,
		Holidays:      st.Holidays,
	}, logger)
	env.dashboard.now = clock

	ctx := context.Background()
	require.NoError(t, env.roles.EnsureDefaultRoles(ctx))
	_, err := env.settings.EnsureAcademicYear(ctx)
	require.NoError(t, err)
	return env
}

func (e *testEnv) branch(t *testing.T, name string, classes ...string) *domain.Branch {
	t.Helper()
	b, err := e.branches.Create(context.Background(), BranchInput{Name: &name, Classes: classes})
	require.NoError(t, err)
	return b
}

func (e *testEnv) admin() *domain.User {
	return &domain.User{ID: "admin-1", Role: domain.RoleAdmin, FullName: "Admin", IsActive: true}
}

func (e *testEnv) teacher(branchID string, classes ...string) *domain.User {
	return &domain.User{ID: "teacher-1", Role: domain.RoleTeacher, FullName: "Teacher", IsActive: true,
		BranchID: branchID, AssignedClassIDs: classes}
}

func (e *testEnv) student(t *testing.T, branchID, classID, name string) *domain.Student {
	t.Helper()
	st, err := e.students.Create(context.Background(), e.admin(), StudentInput{
		FullName: &name,
		BranchID: &branchID,
		ClassID:  &classID,
	})
	require.NoError(t, err)
	return st
}

// parent registers a parent with one device token per entry in tokens.
func (e *testEnv) parent(t *testing.T, email string, studentIDs []string, tokens ...string) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := e.registration.Register(ctx, RegisterUserInput{
		Email:      email,
		Password:   "secret1",
		FullName:   "Parent " + email,
		Role:       domain.RoleParent,
		StudentIDs: studentIDs,
	})
	require.NoError(t, err)
	for _, tok := range tokens {
		u.AddDeviceToken(tok)
	}
	require.NoError(t, e.stores.Users.Save(ctx, u))
	return u
}

func strp(s string) *string { return &s }

func boolp(b bool) *bool { return &b }

func floatp(f float64) *float64 { return &f }
