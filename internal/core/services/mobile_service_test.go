package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
)

type parentFixture struct {
	env    *testEnv
	branch *domain.Branch
	child  *domain.Student
	parent *domain.User
}

func newParentFixture(t *testing.T) *parentFixture {
	env := newTestEnv(t)
	ctx := context.Background()
	b, err := env.branches.Create(ctx, BranchInput{
		Name:    strp("North"),
		Classes: []string{"LKG"},
		ClassFeeStructures: []domain.ClassFeeMapping{
			{ClassName: "LKG", FeeStructureName: "Standard", StartTime: "08:30"},
		},
		CCTVConfigs: []domain.CCTVConfig{
			{StreamID: "cam1", Name: "Play area", HLSPlaylistURL: "https://video.test/cam1.m3u8", TokenSecret: "k1", Enabled: true},
			{StreamID: "cam2", Name: "Office", HLSPlaylistURL: "https://video.test/cam2.m3u8", TokenSecret: "k2", Enabled: false},
		},
	})
	require.NoError(t, err)
	child := env.student(t, b.ID, "LKG", "Asha")
	parent := env.parent(t, "mum@home.test", []string{child.ID}, "tok")
	return &parentFixture{env: env, branch: b, child: child, parent: parent}
}

func TestMobileService_Dashboard(t *testing.T) {
	f := newParentFixture(t)
	ctx := context.Background()

	_, err := f.env.attendance.MarkBulk(ctx, f.env.admin(),
		domain.AttendanceKey{BranchID: f.branch.ID, ClassID: "LKG", Date: "2024-07-14"},
		[]domain.AttendanceEntry{{StudentID: f.child.ID, Status: domain.StatusPresent}})
	require.NoError(t, err)
	_, err = f.env.announcements.Create(ctx, f.env.admin(), AnnouncementInput{Title: "Welcome", PublishToAll: true})
	require.NoError(t, err)

	d, err := f.env.mobile.Dashboard(ctx, f.parent, "")
	require.NoError(t, err)
	require.Len(t, d.Children, 1)
	require.NotNil(t, d.Selected)
	assert.Equal(t, "North", d.Selected.BranchName)

	require.Len(t, d.RecentDays, 6)
	assert.Equal(t, DayStatus{Date: "2024-07-15", Status: "not_marked"}, d.RecentDays[0])
	assert.Equal(t, DayStatus{Date: "2024-07-14", Status: domain.StatusPresent}, d.RecentDays[1])

	require.NotNil(t, d.Timings)
	assert.Equal(t, ClassTimings{StartTime: "08:30", EndTime: "13:00"}, *d.Timings)
	assert.Len(t, d.Announcements, 1)
	assert.True(t, d.CCTVEnabled)
	assert.Equal(t, "2024-25", d.AcademicYear)

	_, err = f.env.mobile.Dashboard(ctx, f.parent, "someone-else")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = f.env.mobile.Dashboard(ctx, f.env.admin(), "")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestMobileService_ProfileAndHistory(t *testing.T) {
	f := newParentFixture(t)
	ctx := context.Background()

	p, err := f.env.mobile.Profile(ctx, f.parent)
	require.NoError(t, err)
	assert.Equal(t, f.parent.ID, p.Profile.ID)
	require.Len(t, p.Children, 1)

	for _, date := range []string{"2024-06-28", "2024-07-01", "2024-07-12"} {
		_, err := f.env.attendance.MarkBulk(ctx, f.env.admin(),
			domain.AttendanceKey{BranchID: f.branch.ID, ClassID: "LKG", Date: date},
			[]domain.AttendanceEntry{{StudentID: f.child.ID, Status: domain.StatusPresent}})
		require.NoError(t, err)
	}

	july, err := f.env.mobile.AttendanceHistory(ctx, f.parent, f.child.ID, 7, 2024)
	require.NoError(t, err)
	require.Len(t, july, 2)
	assert.Equal(t, "2024-07-12", july[0].Date)

	all, err := f.env.mobile.AttendanceHistory(ctx, f.parent, f.child.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.env.mobile.AttendanceHistory(ctx, f.parent, f.child.ID, 13, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.env.mobile.AttendanceHistory(ctx, f.parent, "other", 0, 0)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestCCTVService_Streams(t *testing.T) {
	f := newParentFixture(t)
	ctx := context.Background()

	streams, err := f.env.cctv.Streams(ctx, f.parent, f.child.ID)
	require.NoError(t, err)
	assert.Equal(t, []StreamInfo{{StreamID: "cam1", Name: "Play area"}}, streams)

	link, err := f.env.cctv.StreamURL(ctx, f.parent, f.child.ID, "cam1")
	require.NoError(t, err)
	assert.Equal(t, 3600, link.ExpiresIn)
	assert.Equal(t, f.env.now.Add(time.Hour), link.ExpiresAt)
	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.Equal(t, f.child.ID, u.Query().Get("student_id"))
	assert.NotEmpty(t, u.Query().Get("token"))

	_, err = f.env.cctv.StreamURL(ctx, f.parent, f.child.ID, "cam2")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "disabled stream")
}

func TestCCTVService_Gates(t *testing.T) {
	f := newParentFixture(t)
	ctx := context.Background()

	_, err := f.env.cctv.Streams(ctx, f.env.admin(), f.child.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden), "parents only")

	_, err = f.env.cctv.Streams(ctx, f.parent, "not-mine")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	f.env.now = time.Date(2024, 7, 15, 20, 0, 0, 0, time.UTC)
	_, err = f.env.cctv.Streams(ctx, f.parent, f.child.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden), "outside school hours")

	f.env.now = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)
	_, err = f.env.settings.SetCCTVEnabled(ctx, false)
	require.NoError(t, err)
	_, err = f.env.cctv.Streams(ctx, f.parent, f.child.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden), "disabled globally")
}
