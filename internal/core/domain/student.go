package domain

import (
	"sort"
	"strconv"
	"time"
)

type GuardianInfo struct {
	Name              string `json:"name" validate:"required"`
	Relationship      string `json:"relationship" validate:"required"`
	RelationshipOther string `json:"relationship_other,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Email             string `json:"email,omitempty" validate:"omitempty,email"`
}

type EmergencyContact struct {
	Name         string `json:"name" validate:"required"`
	Relationship string `json:"relationship" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
}

// AttendanceLog is the per-student copy of a marked status. One entry per date.
type AttendanceLog struct {
	Date     string    `json:"date"`
	Status   string    `json:"status"`
	MarkedAt time.Time `json:"marked_at"`
	MarkedBy string    `json:"marked_by"`
}

type Student struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Gender          string `json:"gender,omitempty"`
	DateOfBirth     string `json:"date_of_birth,omitempty"`
	Address         string `json:"address,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	Pincode         string `json:"pincode,omitempty"`
	ParentUserID    string `json:"parent_user_id,omitempty"`
	BranchID        string `json:"branch_id"`
	ClassID         string `json:"class_id"`
	ClassName       string `json:"class_name,omitempty"`
	RollNumber      string `json:"roll_number,omitempty"`
	AcademicYear    string `json:"academic_year,omitempty"`
	AdmissionNumber string `json:"admission_number,omitempty"`

	PrimaryGuardian   *GuardianInfo     `json:"primary_guardian,omitempty"`
	SecondaryGuardian *GuardianInfo     `json:"secondary_guardian,omitempty"`
	EmergencyContact  *EmergencyContact `json:"emergency_contact,omitempty"`

	PhotoURL string `json:"photo_url,omitempty"`
	PhotoKey string `json:"photo_key,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AttendanceLogs []AttendanceLog `json:"attendance_logs"`
}

// UpsertAttendanceLog replaces any entry for the same date with the new one,
// appended at the end.
func (s *Student) UpsertAttendanceLog(entry AttendanceLog) {
	kept := s.AttendanceLogs[:0:0]
	for _, l := range s.AttendanceLogs {
		if l.Date != entry.Date {
			kept = append(kept, l)
		}
	}
	s.AttendanceLogs = append(kept, entry)
}

// AttendanceOn returns the logged status for a date, if any.
func (s *Student) AttendanceOn(date string) (string, bool) {
	for i := len(s.AttendanceLogs) - 1; i >= 0; i-- {
		if s.AttendanceLogs[i].Date == date {
			return s.AttendanceLogs[i].Status, true
		}
	}
	return "", false
}

// NextAdmissionNumber returns max(numeric admission numbers) + 1. Non-numeric
// values are ignored and gaps are never filled.
func NextAdmissionNumber(existing []string) string {
	max := 0
	for _, v := range existing {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// SortByRollNumber orders students by roll number, numerically when both
// values are numbers, then by name.
func SortByRollNumber(students []*Student) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		an, aerr := strconv.Atoi(a.RollNumber)
		bn, berr := strconv.Atoi(b.RollNumber)
		if aerr == nil && berr == nil && an != bn {
			return an < bn
		}
		if a.RollNumber != b.RollNumber {
			return a.RollNumber < b.RollNumber
		}
		return a.FullName < b.FullName
	})
}
