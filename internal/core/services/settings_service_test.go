package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

func TestSettingsService_DefaultsCreatedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.settings.Get(ctx)
	require.NoError(t, err)
	assert.True(t, st.CCTVEnabled)
	assert.Equal(t, domain.DefaultAcademicYearConfig(), st.AcademicYearConfig)

	_, err = env.settings.SetCCTVEnabled(ctx, false)
	require.NoError(t, err)
	again, err := env.settings.Get(ctx)
	require.NoError(t, err)
	assert.False(t, again.CCTVEnabled)

	n, err := env.stores.Settings.Count(ctx, ports.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSettingsService_SetClassOptions(t *testing.T) {
	env := newTestEnv(t)
	st, err := env.settings.SetClassOptions(context.Background(), []string{"LKG", " UKG ", "LKG", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"LKG", "UKG"}, st.ClassOptions)
}

func TestSettingsService_SetFeeStructuresValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		templates []domain.FeeStructureTemplate
	}{
		{name: "missing_name", templates: []domain.FeeStructureTemplate{{Name: " "}}},
		{name: "duplicate", templates: []domain.FeeStructureTemplate{{Name: "A"}, {Name: "A"}}},
		{name: "negative_fixed", templates: []domain.FeeStructureTemplate{{Name: "A", Components: []domain.FeeComponent{{Name: "x", Type: domain.ComponentFixed, Amount: floatp(-1)}}}}},
		{name: "percentage_over_100", templates: []domain.FeeStructureTemplate{{Name: "A", Components: []domain.FeeComponent{{Name: "x", Type: domain.ComponentPercentage, Percentage: floatp(120)}}}}},
		{name: "unknown_type", templates: []domain.FeeStructureTemplate{{Name: "A", Components: []domain.FeeComponent{{Name: "x", Type: "bonus"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.settings.SetFeeStructures(ctx, tt.templates)
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestSettingsService_AcademicYears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	current, err := env.settings.CurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-25", current.Name)

	env.now = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	next, err := env.settings.EnsureAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-26", next.Name)

	years, err := env.settings.ListAcademicYears(ctx)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, "2025-26", years[0].Name)
	assert.True(t, years[0].IsCurrent)
	assert.False(t, years[1].IsCurrent, "only one year is current")

	year, err := env.settings.SetAcademicYearConfig(ctx, domain.AcademicYearConfig{StartMonth: 1, StartDay: 1, EndMonth: 12, EndDay: 31})
	require.NoError(t, err)
	assert.Equal(t, "2025-26", year.Name)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), year.EndDate)

	_, err = env.settings.SetAcademicYearConfig(ctx, domain.AcademicYearConfig{StartMonth: 13, StartDay: 1, EndMonth: 1, EndDay: 1})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = env.settings.SetAcademicYearConfig(ctx, domain.AcademicYearConfig{StartMonth: 3, StartDay: 1, EndMonth: 2, EndDay: 31})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "February has no day 31")

	st, err := env.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, st.AcademicYearConfig.EndMonth, "rejected windows are not stored")
}

func TestSettingsService_Banners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < domain.MaxBanners; i++ {
		_, err := env.settings.AddBanner(ctx, []byte("img"), "image/png")
		require.NoError(t, err)
	}
	_, err := env.settings.AddBanner(ctx, []byte("img"), "image/png")
	assert.True(t, errors.Is(err, domain.ErrValidation), "banner limit")

	_, err = env.settings.AddBanner(ctx, []byte("img"), "text/plain")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	st, err := env.settings.Get(ctx)
	require.NoError(t, err)
	removedKey := st.Banners[1].Key

	st, err = env.settings.RemoveBanner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, st.Banners, domain.MaxBanners-1)
	assert.False(t, env.objects.Has(removedKey))
	assert.Len(t, ActiveBanners(st), domain.MaxBanners-1)

	_, err = env.settings.RemoveBanner(ctx, 9)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
