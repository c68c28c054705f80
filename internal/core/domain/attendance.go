package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusLeave   = "leave"
)

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date format (YYYY-MM-DD): %q", ErrValidation, s)
	}
	return d, nil
}

// AttendanceKey identifies one class register for one day.
type AttendanceKey struct {
	BranchID string `json:"branch_id" validate:"required"`
	ClassID  string `json:"class_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
}

// ID is the deterministic document id for the key.
func (k AttendanceKey) ID() string {
	return k.BranchID + ":" + k.ClassID + ":" + k.Date
}

func (k AttendanceKey) Validate() error {
	if k.BranchID == "" || k.ClassID == "" {
		return fmt.Errorf("%w: branch_id and class_id are required", ErrValidation)
	}
	_, err := ParseDate(k.Date)
	return err
}

type AttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// AttendanceRecord moves OPEN -> FINALIZED once. A finalized record rejects
// every further mark.
type AttendanceRecord struct {
	ID          string            `json:"id"`
	BranchID    string            `json:"branch_id"`
	ClassID     string            `json:"class_id"`
	Date        string            `json:"date"`
	MarkedAt    time.Time         `json:"marked_at"`
	MarkedBy    string            `json:"marked_by"`
	IsFinalized bool              `json:"is_finalized"`
	FinalizedAt *time.Time        `json:"finalized_at,omitempty"`
	FinalizedBy string            `json:"finalized_by,omitempty"`
	Attendance  []AttendanceEntry `json:"attendance"`
}

// EmptyAttendance is the shape returned for a key that has never been marked.
func EmptyAttendance(k AttendanceKey) *AttendanceRecord {
	return &AttendanceRecord{
		ID:         k.ID(),
		BranchID:   k.BranchID,
		ClassID:    k.ClassID,
		Date:       k.Date,
		Attendance: []AttendanceEntry{},
	}
}

// Mark replaces the entry list. It fails with ErrLocked once finalized and
// leaves the record untouched.
func (r *AttendanceRecord) Mark(entries []AttendanceEntry, actor string, at time.Time) error {
	if r.IsFinalized {
		return ErrLocked
	}
	r.Attendance = append([]AttendanceEntry{}, entries...)
	r.MarkedBy = actor
	r.MarkedAt = at
	return nil
}

// Finalize locks the record. Calling it again re-stamps without error.
func (r *AttendanceRecord) Finalize(actor string, at time.Time) {
	r.IsFinalized = true
	r.FinalizedBy = actor
	r.FinalizedAt = &at
}

// ClassRef is a class offered at a branch as seen by attendance staff.
type ClassRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	BranchID   string `json:"branch_id"`
	BranchName string `json:"branch_name"`
}
