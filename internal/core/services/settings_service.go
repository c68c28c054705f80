package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// SettingsService owns the single settings document and the academic-year
// calendar derived from it.
type SettingsService struct {
	settings ports.Repository[domain.AppSettings]
	years    ports.Repository[domain.AcademicYear]
	objects  ports.ObjectStore
	logger   *logrus.Logger
	now      Clock
}

func NewSettingsService(
	settings ports.Repository[domain.AppSettings],
	years ports.Repository[domain.AcademicYear],
	objects ports.ObjectStore,
	logger *logrus.Logger,
) *SettingsService {
	return &SettingsService{settings: settings, years: years, objects: objects, logger: logger, now: systemClock}
}

// Get returns the settings, creating the defaults on first access.
func (s *SettingsService) Get(ctx context.Context) (*domain.AppSettings, error) {
	st, err := s.settings.Get(ctx, domain.SettingsID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	st = domain.DefaultSettings()
	if err := s.settings.Insert(ctx, st); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.settings.Get(ctx, domain.SettingsID)
		}
		return nil, err
	}
	s.logger.Info("created default settings")
	return st, nil
}

func (s *SettingsService) update(ctx context.Context, mutate func(*domain.AppSettings) error) (*domain.AppSettings, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := mutate(st); err != nil {
		return nil, err
	}
	if err := s.settings.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SettingsService) SetClassOptions(ctx context.Context, options []string) (*domain.AppSettings, error) {
	return s.update(ctx, func(st *domain.AppSettings) error {
		st.ClassOptions = domain.UniqueIDs(options)
		return nil
	})
}

// SetFeeStructures replaces the fee templates after checking each one.
func (s *SettingsService) SetFeeStructures(ctx context.Context, templates []domain.FeeStructureTemplate) (*domain.AppSettings, error) {
	seen := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, validationf("fee structure name is required")
		}
		if _, dup := seen[name]; dup {
			return nil, validationf("duplicate fee structure: %s", name)
		}
		seen[name] = struct{}{}
		if err := validateComponents(t); err != nil {
			return nil, err
		}
	}
	return s.update(ctx, func(st *domain.AppSettings) error {
		st.FeeStructures = templates
		return nil
	})
}

func validateComponents(t domain.FeeStructureTemplate) error {
	for _, c := range t.Components {
		switch c.Type {
		case domain.ComponentFixed:
			if c.Amount == nil || *c.Amount < 0 {
				return validationf("%s/%s: fixed components need a non-negative amount", t.Name, c.Name)
			}
		case domain.ComponentPercentage:
			if c.Percentage == nil || *c.Percentage < 0 || *c.Percentage > 100 {
				return validationf("%s/%s: percentage must be within 0..100", t.Name, c.Name)
			}
		default:
			return validationf("%s/%s: unknown component type %q", t.Name, c.Name, c.Type)
		}
	}
	return nil
}

func (s *SettingsService) SetCCTVEnabled(ctx context.Context, enabled bool) (*domain.AppSettings, error) {
	return s.update(ctx, func(st *domain.AppSettings) error {
		st.CCTVEnabled = enabled
		return nil
	})
}

// SetAcademicYearConfig stores the window and recomputes the current year.
func (s *SettingsService) SetAcademicYearConfig(ctx context.Context, cfg domain.AcademicYearConfig) (*domain.AcademicYear, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.update(ctx, func(st *domain.AppSettings) error {
		st.AcademicYearConfig = cfg
		return nil
	}); err != nil {
		return nil, err
	}
	return s.EnsureAcademicYear(ctx)
}

// EnsureAcademicYear makes the year containing now the only current one,
// creating it when absent.
func (s *SettingsService) EnsureAcademicYear(ctx context.Context) (*domain.AcademicYear, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	want := domain.AcademicYearFor(st.AcademicYearConfig, now)

	year, err := s.years.FindOne(ctx, ports.Where(ports.Eq("name", want.Name)))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		year = &want
		year.ID = newID()
		year.IsCurrent = true
		year.CreatedAt = now
		year.UpdatedAt = now
		if err := s.years.Insert(ctx, year); err != nil {
			return nil, err
		}
		s.logger.WithField("academic_year", year.Name).Info("created academic year")
	case err != nil:
		return nil, err
	default:
		if !year.IsCurrent || !year.StartDate.Equal(want.StartDate) || !year.EndDate.Equal(want.EndDate) {
			year.IsCurrent = true
			year.StartDate, year.EndDate = want.StartDate, want.EndDate
			year.UpdatedAt = now
			if err := s.years.Save(ctx, year); err != nil {
				return nil, err
			}
		}
	}

	others, err := s.years.Find(ctx, ports.Where(ports.Eq("is_current", true)))
	if err != nil {
		return nil, err
	}
	for _, other := range others {
		if other.ID == year.ID {
			continue
		}
		other.IsCurrent = false
		other.UpdatedAt = now
		if err := s.years.Save(ctx, other); err != nil {
			return nil, err
		}
	}
	return year, nil
}

// CurrentAcademicYear returns the year flagged current.
func (s *SettingsService) CurrentAcademicYear(ctx context.Context) (*domain.AcademicYear, error) {
	return s.years.FindOne(ctx, ports.Where(ports.Eq("is_current", true)))
}

// CurrentAcademicYearName falls back to "Unknown" when no year is current.
func (s *SettingsService) CurrentAcademicYearName(ctx context.Context) string {
	year, err := s.CurrentAcademicYear(ctx)
	if err != nil {
		return "Unknown"
	}
	return year.Name
}

func (s *SettingsService) ListAcademicYears(ctx context.Context) ([]*domain.AcademicYear, error) {
	return s.years.Find(ctx, ports.Query{}.OrderBy("start_date", true))
}

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// AddBanner uploads an image and appends it to the banner list.
func (s *SettingsService) AddBanner(ctx context.Context, data []byte, contentType string) (*domain.AppSettings, error) {
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, validationf("unsupported image type %q", contentType)
	}
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(st.Banners) >= domain.MaxBanners {
		return nil, validationf("at most %d banners are allowed", domain.MaxBanners)
	}
	key := domain.ObjectKey("banners", ext)
	url, err := s.objects.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}
	st.Banners = append(st.Banners, domain.Banner{URL: url, Key: key, IsActive: true})
	if err := s.settings.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RemoveBanner drops a banner by index. Deleting the object is best-effort.
func (s *SettingsService) RemoveBanner(ctx context.Context, index int) (*domain.AppSettings, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(st.Banners) {
		return nil, notFoundf("banner %d", index)
	}
	removed := st.Banners[index]
	st.Banners = append(st.Banners[:index], st.Banners[index+1:]...)
	if err := s.settings.Save(ctx, st); err != nil {
		return nil, err
	}
	if removed.Key != "" {
		if err := s.objects.Delete(ctx, removed.Key); err != nil {
			s.logger.WithError(err).WithField("key", removed.Key).Warn("could not delete banner object")
		}
	}
	return st, nil
}

// ActiveBanners lists banner URLs shown to parents.
func ActiveBanners(st *domain.AppSettings) []string {
	out := []string{}
	for _, b := range st.Banners {
		if b.IsActive {
			out = append(out, b.URL)
		}
	}
	return out
}
