package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/mocks"
)

func TestStudentService_CreateAllocatesAdmissionNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG")
	south := env.branch(t, "South", "LKG")

	a := env.student(t, north.ID, "LKG", "Asha")
	b := env.student(t, north.ID, "LKG", "Bala")
	c := env.student(t, south.ID, "LKG", "Chitra")

	assert.Equal(t, "1", a.AdmissionNumber)
	assert.Equal(t, "2", b.AdmissionNumber)
	assert.Equal(t, "1", c.AdmissionNumber, "numbering is per branch")
	assert.Equal(t, "2024-25", a.AcademicYear)
	assert.Equal(t, "LKG", a.ClassName)

	require.NoError(t, env.students.Archive(ctx, env.admin(), b.ID))
	d := env.student(t, north.ID, "LKG", "Dev")
	assert.Equal(t, "3", d.AdmissionNumber, "archived numbers are never reused")
}

func TestStudentService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG")

	_, err := env.students.Create(ctx, env.admin(), StudentInput{FullName: strp("X"), BranchID: strp(north.ID)})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = env.students.Create(ctx, env.admin(), StudentInput{FullName: strp("X"), BranchID: strp("nowhere"), ClassID: strp("LKG")})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = env.students.Create(ctx, env.teacher("other"), StudentInput{FullName: strp("X"), BranchID: strp(north.ID), ClassID: strp("LKG")})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestStudentService_ListScopes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG", "UKG")
	south := env.branch(t, "South", "LKG")

	s1 := env.student(t, north.ID, "LKG", "Asha")
	env.student(t, north.ID, "UKG", "Bala")
	s3 := env.student(t, south.ID, "LKG", "Chitra")

	all, err := env.students.List(ctx, env.admin(), StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	own, err := env.students.List(ctx, env.teacher(north.ID), StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	_, err = env.students.List(ctx, env.teacher(north.ID), StudentFilter{BranchID: south.ID})
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	found, err := env.students.List(ctx, env.admin(), StudentFilter{Search: "chi"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, s3.ID, found[0].ID)

	parent := &domain.User{ID: "p", Role: domain.RoleParent, StudentIDs: []string{s1.ID}}
	mine, err := env.students.List(ctx, parent, StudentFilter{BranchID: south.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, s1.ID, mine[0].ID)

	_, err = env.students.Get(ctx, parent, s3.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestStudentService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG")
	st := env.student(t, north.ID, "LKG", "Asha")

	updated, err := env.students.Update(ctx, env.admin(), st.ID, StudentInput{RollNumber: strp(" 7 "), ClassName: strp("Lower KG")})
	require.NoError(t, err)
	assert.Equal(t, "7", updated.RollNumber)
	assert.Equal(t, "Lower KG", updated.ClassName)
	assert.Equal(t, st.AdmissionNumber, updated.AdmissionNumber)

	_, err = env.students.Update(ctx, env.admin(), st.ID, StudentInput{FullName: strp("")})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	parent := &domain.User{ID: "p", Role: domain.RoleParent, StudentIDs: []string{st.ID}}
	_, err = env.students.Update(ctx, parent, st.ID, StudentInput{RollNumber: strp("1")})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestStudentService_UploadPhotoReplacesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG")
	st := env.student(t, north.ID, "LKG", "Asha")

	first, err := env.students.UploadPhoto(ctx, env.admin(), st.ID, []byte("img1"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, mocks.MockObjectBaseURL+first.PhotoKey, first.PhotoURL)
	firstKey := first.PhotoKey

	second, err := env.students.UploadPhoto(ctx, env.admin(), st.ID, []byte("img2"), "image/jpeg")
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, second.PhotoKey)
	assert.False(t, env.objects.Has(firstKey))
	assert.True(t, env.objects.Has(second.PhotoKey))

	_, err = env.students.UploadPhoto(ctx, env.admin(), st.ID, []byte("gif"), "image/gif")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestStudentService_UploadPhotoKeepsRecordOnDeleteFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG")
	st := env.student(t, north.ID, "LKG", "Asha")

	_, err := env.students.UploadPhoto(ctx, env.admin(), st.ID, []byte("img1"), "image/png")
	require.NoError(t, err)
	env.objects.DeleteError = errors.New("bucket unavailable")

	second, err := env.students.UploadPhoto(ctx, env.admin(), st.ID, []byte("img2"), "image/png")
	require.NoError(t, err)
	stored, err := env.stores.Students.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, second.PhotoKey, stored.PhotoKey)
}

func TestStudentService_CreateParentAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG")
	st := env.student(t, north.ID, "LKG", "Asha")

	_, err := env.students.CreateParentAccount(ctx, env.admin(), st.ID, "secret1")
	assert.True(t, errors.Is(err, domain.ErrValidation), "guardian email required")

	_, err = env.students.Update(ctx, env.admin(), st.ID, StudentInput{
		PrimaryGuardian: &domain.GuardianInfo{Name: "Mum", Relationship: "mother", Email: "mum@home.test"},
	})
	require.NoError(t, err)

	parent, err := env.students.CreateParentAccount(ctx, env.admin(), st.ID, "secret1")
	require.NoError(t, err)
	assert.True(t, parent.HasStudent(st.ID))

	stored, err := env.stores.Students.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, stored.ParentUserID)
}
