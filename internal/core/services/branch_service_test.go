package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
)

func TestBranchService_CRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b, err := env.branches.Create(ctx, BranchInput{Name: strp("North"), Code: strp(" nb "), Classes: []string{"LKG", "LKG", "UKG"}})
	require.NoError(t, err)
	assert.Equal(t, "NB", b.Code)
	assert.Equal(t, []string{"LKG", "UKG"}, b.Classes)
	assert.True(t, b.IsActive)

	_, err = env.branches.Create(ctx, BranchInput{Name: strp("Other"), Code: strp("NB")})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, err = env.branches.Create(ctx, BranchInput{Code: strp("X")})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	updated, err := env.branches.Update(ctx, b.ID, BranchInput{Code: strp("NB"), City: strp("Pune")})
	require.NoError(t, err, "keeping its own code is fine")
	assert.Equal(t, "Pune", updated.City)

	require.NoError(t, env.branches.Archive(ctx, b.ID))
	_, err = env.branches.Get(ctx, b.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	list, err := env.branches.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
