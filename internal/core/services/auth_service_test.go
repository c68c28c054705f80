package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/adapters/observability"
	"github.com/pralapin/school-service/internal/adapters/token"
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/mocks"
)

func newAuthService(t *testing.T, env *testEnv) (*AuthService, *mocks.MockRevocationStore) {
	t.Helper()
	revocations := mocks.NewMockRevocationStore()
	issuer := token.NewHMACIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	svc := NewAuthService(env.stores.Users, env.stores.Roles, mocks.PlainHasher{}, issuer, revocations, observability.NopLogger())
	svc.now = func() time.Time { return env.now }
	return svc, revocations
}

func registerStaff(t *testing.T, env *testEnv, email, role string) *domain.User {
	t.Helper()
	u, err := env.registration.Register(context.Background(), RegisterUserInput{
		Email:    email,
		Password: "secret1",
		FullName: "Staff " + role,
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	auth, _ := newAuthService(t, env)
	ctx := context.Background()
	user := registerStaff(t, env, "Coord@School.test", domain.RoleCoordinator)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid_credentials_case_insensitive_email", email: "  coord@school.TEST", password: "secret1"},
		{name: "wrong_password", email: "coord@school.test", password: "nope", wantErr: domain.ErrUnauthorized},
		{name: "unknown_email", email: "ghost@school.test", password: "secret1", wantErr: domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := auth.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Nil(t, pair)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "bearer", pair.TokenType)
			assert.Equal(t, user.ID, pair.User.ID)
			assert.NotEmpty(t, pair.AccessToken)
			assert.NotEmpty(t, pair.RefreshToken)
		})
	}
}

func TestAuthService_LoginRejectsInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	auth, _ := newAuthService(t, env)
	ctx := context.Background()
	user := registerStaff(t, env, "off@school.test", domain.RoleTeacher)

	_, err := env.registration.SetActive(ctx, user.ID, false)
	require.NoError(t, err)

	_, err = auth.Login(ctx, "off@school.test", "secret1")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuthService_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	auth, _ := newAuthService(t, env)
	ctx := context.Background()
	registerStaff(t, env, "teach@school.test", domain.RoleTeacher)

	pair, err := auth.Login(ctx, "teach@school.test", "secret1")
	require.NoError(t, err)

	p, err := auth.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTeacher, p.User.Role)
	require.NotNil(t, p.Role)
	assert.True(t, domain.HasPermission(p.Role, domain.ModuleAttendance, domain.ActionEdit))

	_, err = auth.Authenticate(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized), "refresh tokens are not access tokens")

	_, err = auth.Authenticate(ctx, "garbage")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuthService_AuthenticateUnknownRoleGrantsNothing(t *testing.T) {
	env := newTestEnv(t)
	auth, _ := newAuthService(t, env)
	ctx := context.Background()
	user := registerStaff(t, env, "odd@school.test", domain.RoleTeacher)

	user.Role = "retired_role"
	require.NoError(t, env.stores.Users.Save(ctx, user))

	pair, err := auth.Login(ctx, "odd@school.test", "secret1")
	require.NoError(t, err)
	p, err := auth.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, p.Role)
	assert.False(t, domain.HasPermission(p.Role, domain.ModuleDashboard, domain.ActionView))
}

func TestAuthService_RefreshRotatesAndLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)
	auth, revocations := newAuthService(t, env)
	ctx := context.Background()
	registerStaff(t, env, "rot@school.test", domain.RoleCoordinator)

	pair, err := auth.Login(ctx, "rot@school.test", "secret1")
	require.NoError(t, err)

	next, err := auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Len(t, revocations.Revoked, 1)

	_, err = auth.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized), "old refresh token is revoked")

	require.NoError(t, auth.Logout(ctx, next.RefreshToken))
	_, err = auth.Refresh(ctx, next.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = auth.Refresh(ctx, next.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized), "access tokens cannot refresh")
}

func TestAuthService_RefreshRevocationStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	auth, revocations := newAuthService(t, env)
	ctx := context.Background()
	registerStaff(t, env, "down@school.test", domain.RoleCoordinator)

	pair, err := auth.Login(ctx, "down@school.test", "secret1")
	require.NoError(t, err)

	revocations.IsRevokedError = domain.ErrUnavailable
	_, err = auth.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
}

func TestAuthService_RegisterDeviceToken(t *testing.T) {
	env := newTestEnv(t)
	auth, _ := newAuthService(t, env)
	ctx := context.Background()
	parent := env.parent(t, "p@home.test", nil)

	for _, tok := range []string{"a", "b", "c", "d", "e", "f", "c"} {
		require.NoError(t, auth.RegisterDeviceToken(ctx, parent, tok))
	}
	stored, err := env.stores.Users.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, stored.FCMTokens)

	err = auth.RegisterDeviceToken(ctx, parent, "  ")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
