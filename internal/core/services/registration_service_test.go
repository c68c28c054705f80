package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
)

func TestRegistrationService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      RegisterUserInput
		wantErr error
	}{
		{
			name: "staff_with_branch",
			in: RegisterUserInput{Email: "t1@school.test", Password: "secret1", FullName: "T One",
				Role: domain.RoleTeacher, BranchID: "B1", AssignedClassIDs: []string{"LKG", "LKG"}},
		},
		{
			name: "parent_with_students",
			in:   RegisterUserInput{Email: "p1@home.test", Password: "secret1", FullName: "P One", Role: domain.RoleParent, StudentIDs: []string{"s1"}},
		},
		{
			name:    "duplicate_email_any_case",
			in:      RegisterUserInput{Email: "T1@School.test", Password: "secret1", FullName: "Dup", Role: domain.RoleTeacher},
			wantErr: domain.ErrConflict,
		},
		{
			name:    "short_password",
			in:      RegisterUserInput{Email: "t2@school.test", Password: "123", FullName: "Short", Role: domain.RoleTeacher},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "unknown_role",
			in:      RegisterUserInput{Email: "t3@school.test", Password: "secret1", FullName: "X", Role: "wizard"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "bad_email",
			in:      RegisterUserInput{Email: "nope", Password: "secret1", FullName: "X", Role: domain.RoleTeacher},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := env.registration.Register(ctx, tt.in)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, u.IsActive)
			assert.Equal(t, "plain:secret1", u.HashedPassword)
			if u.IsParent() {
				assert.Equal(t, []string{"s1"}, u.StudentIDs)
				assert.Empty(t, u.BranchID)
			} else {
				assert.Equal(t, []string{"LKG"}, u.AssignedClassIDs)
				assert.Equal(t, "B1", u.BranchID)
			}
		})
	}
}

func TestRegistrationService_RegisterInactiveRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.roles.Create(ctx, CreateRoleInput{Name: "Driver"})
	require.NoError(t, err)
	_, err = env.roles.Update(ctx, "driver", UpdateRoleInput{IsActive: boolp(false)})
	require.NoError(t, err)

	_, err = env.registration.Register(ctx, RegisterUserInput{Email: "d@school.test", Password: "secret1", FullName: "D", Role: "driver"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRegistrationService_LinkParent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.registration.LinkParent(ctx, "Mum@Home.test", "Mum", "999", "secret1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "mum@home.test", first.Email)
	assert.Equal(t, []string{"s1"}, first.StudentIDs)

	again, err := env.registration.LinkParent(ctx, "mum@home.test", "Mum", "", "", "s2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, []string{"s1", "s2"}, again.StudentIDs)

	same, err := env.registration.LinkParent(ctx, "mum@home.test", "Mum", "", "", "s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, same.StudentIDs)

	registerStaff(t, env, "staff@school.test", domain.RoleTeacher)
	_, err = env.registration.LinkParent(ctx, "staff@school.test", "", "", "", "s3")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestRegistrationService_ListAndPasswords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b := registerStaff(t, env, "b@school.test", domain.RoleTeacher)
	registerStaff(t, env, "a@school.test", domain.RoleCoordinator)

	teachers, err := env.registration.List(ctx, UserFilter{Role: domain.RoleTeacher})
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, b.ID, teachers[0].ID)

	all, err := env.registration.List(ctx, UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.True(t, errors.Is(env.registration.SetPassword(ctx, b.ID, "x"), domain.ErrValidation))
	require.NoError(t, env.registration.SetPassword(ctx, b.ID, "newpass"))
	stored, err := env.registration.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "plain:newpass", stored.HashedPassword)

	assert.True(t, errors.Is(env.registration.SetPassword(ctx, "missing", "newpass"), domain.ErrNotFound))
}

func TestRegistrationService_UpdateStaffChangesAttendanceScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	north := env.branch(t, "North", "LKG", "UKG")
	south := env.branch(t, "South", "LKG")

	teacher, err := env.registration.Register(ctx, RegisterUserInput{Email: "t@school.test", Password: "secret1",
		FullName: "Tara", Role: domain.RoleTeacher, BranchID: north.ID, AssignedClassIDs: []string{"LKG"}})
	require.NoError(t, err)

	ukg := domain.AttendanceKey{BranchID: north.ID, ClassID: "UKG", Date: "2024-07-15"}
	_, err = env.attendance.Get(ctx, teacher, ukg)
	assert.True(t, errors.Is(err, domain.ErrForbidden), "got %v", err)

	updated, err := env.registration.UpdateStaff(ctx, teacher.ID, StaffPatch{
		FullName:         strp("  Tara K "),
		AssignedClassIDs: []string{"UKG", "LKG", "UKG"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tara K", updated.FullName)
	assert.Equal(t, []string{"UKG", "LKG"}, updated.AssignedClassIDs)
	assert.Equal(t, north.ID, updated.BranchID, "untouched fields are kept")

	_, err = env.attendance.Get(ctx, updated, ukg)
	require.NoError(t, err)

	moved, err := env.registration.UpdateStaff(ctx, teacher.ID, StaffPatch{
		Role:             strp(domain.RoleCoordinator),
		BranchID:         strp(south.ID),
		AssignedClassIDs: []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCoordinator, moved.Role)
	assert.Empty(t, moved.AssignedClassIDs)
	_, err = env.attendance.Get(ctx, moved, ukg)
	assert.True(t, errors.Is(err, domain.ErrForbidden), "coordinators stay inside their branch")

	stored, err := env.stores.Users.Get(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, south.ID, stored.BranchID)
}

func TestRegistrationService_UpdateStaffValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff, err := env.registration.Register(ctx, RegisterUserInput{Email: "f@school.test", Password: "secret1",
		FullName: "Faculty", Role: domain.RoleFaculty})
	require.NoError(t, err)
	parent := env.parent(t, "p@home.test", nil)

	tests := []struct {
		name    string
		id      string
		patch   StaffPatch
		wantErr error
	}{
		{"empty name", staff.ID, StaffPatch{FullName: strp(" ")}, domain.ErrValidation},
		{"unknown role", staff.ID, StaffPatch{Role: strp("janitor")}, domain.ErrValidation},
		{"parent role", staff.ID, StaffPatch{Role: strp(domain.RoleParent)}, domain.ErrValidation},
		{"parent account", parent.ID, StaffPatch{FullName: strp("x")}, domain.ErrNotFound},
		{"missing", "nobody", StaffPatch{}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.registration.UpdateStaff(ctx, tt.id, tt.patch)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRegistrationService_DeactivateStaff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher, err := env.registration.Register(ctx, RegisterUserInput{Email: "t@school.test", Password: "secret1",
		FullName: "Tara", Role: domain.RoleTeacher, BranchID: "B1", AssignedClassIDs: []string{"LKG"}})
	require.NoError(t, err)

	require.NoError(t, env.registration.DeactivateStaff(ctx, teacher.ID))

	stored, err := env.stores.Users.Get(ctx, teacher.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Empty(t, stored.Role)
	assert.Empty(t, stored.BranchID)
	assert.Empty(t, stored.AssignedClassIDs)

	parent := env.parent(t, "p@home.test", nil)
	assert.True(t, errors.Is(env.registration.DeactivateStaff(ctx, parent.ID), domain.ErrNotFound))
}
