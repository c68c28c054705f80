package domain

import (
	"fmt"
	"time"
)

// SettingsID is the id of the single settings document.
const SettingsID = "main"

const MaxBanners = 5

type AcademicYearConfig struct {
	StartMonth int `json:"start_month" validate:"min=1,max=12"`
	StartDay   int `json:"start_day" validate:"min=1,max=31"`
	EndMonth   int `json:"end_month" validate:"min=1,max=12"`
	EndDay     int `json:"end_day" validate:"min=1,max=31"`
}

// Validate rejects days past the end of their month. February is capped at
// 28 so the window resolves to the same dates every year.
func (c AcademicYearConfig) Validate() error {
	if err := validMonthDay(c.StartMonth, c.StartDay); err != nil {
		return fmt.Errorf("%w: academic year start: %v", ErrValidation, err)
	}
	if err := validMonthDay(c.EndMonth, c.EndDay); err != nil {
		return fmt.Errorf("%w: academic year end: %v", ErrValidation, err)
	}
	return nil
}

func validMonthDay(month, day int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month %d out of range", month)
	}
	// Day 0 of the following month in a non-leap year is the last day of month.
	last := time.Date(2023, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 || day > last {
		return fmt.Errorf("%s has no day %d", time.Month(month), day)
	}
	return nil
}

// DefaultAcademicYearConfig runs June 1 to May 31.
func DefaultAcademicYearConfig() AcademicYearConfig {
	return AcademicYearConfig{StartMonth: 6, StartDay: 1, EndMonth: 5, EndDay: 31}
}

type Banner struct {
	URL      string `json:"url" validate:"required"`
	Key      string `json:"s3_key"`
	IsActive bool   `json:"is_active"`
}

// AppSettings is the application-wide configuration document.
type AppSettings struct {
	ID                 string                 `json:"id"`
	ClassOptions       []string               `json:"class_options"`
	FeeStructures      []FeeStructureTemplate `json:"fee_structures"`
	AcademicYearConfig AcademicYearConfig     `json:"academic_year_config"`
	CCTVEnabled        bool                   `json:"cctv_enabled"`
	Banners            []Banner               `json:"banners"`
}

func DefaultSettings() *AppSettings {
	return &AppSettings{
		ID:                 SettingsID,
		ClassOptions:       []string{},
		FeeStructures:      []FeeStructureTemplate{},
		AcademicYearConfig: DefaultAcademicYearConfig(),
		CCTVEnabled:        true,
		Banners:            []Banner{},
	}
}

type AcademicYear struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AcademicYearFor computes the academic year containing now. Years are named
// "YYYY-YY"; the end date wraps to the next year when the end month precedes
// the start month and closes at 23:59:59.
func AcademicYearFor(cfg AcademicYearConfig, now time.Time) AcademicYear {
	now = now.UTC()
	startYear := now.Year()
	if now.Before(time.Date(startYear, time.Month(cfg.StartMonth), cfg.StartDay, 0, 0, 0, 0, time.UTC)) {
		startYear--
	}
	endYear := startYear
	if cfg.EndMonth < cfg.StartMonth {
		endYear++
	}
	return AcademicYear{
		Name:      fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100),
		StartDate: time.Date(startYear, time.Month(cfg.StartMonth), cfg.StartDay, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(endYear, time.Month(cfg.EndMonth), cfg.EndDay, 23, 59, 59, 0, time.UTC),
	}
}

type Holiday struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Date         string    `json:"date"`
	EndDate      string    `json:"end_date,omitempty"`
	AcademicYear string    `json:"academic_year"`
	Description  string    `json:"description,omitempty"`
	BranchID     string    `json:"branch_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
