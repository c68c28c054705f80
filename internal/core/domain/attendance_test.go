package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceKey(t *testing.T) {
	k := AttendanceKey{BranchID: "B1", ClassID: "LKG", Date: "2024-07-15"}
	assert.Equal(t, "B1:LKG:2024-07-15", k.ID())
	assert.NoError(t, k.Validate())

	bad := []AttendanceKey{
		{ClassID: "LKG", Date: "2024-07-15"},
		{BranchID: "B1", Date: "2024-07-15"},
		{BranchID: "B1", ClassID: "LKG", Date: "15/07/2024"},
		{BranchID: "B1", ClassID: "LKG", Date: "2024-02-30"},
	}
	for _, k := range bad {
		assert.True(t, errors.Is(k.Validate(), ErrValidation), "%+v", k)
	}
}

func TestEmptyAttendance(t *testing.T) {
	rec := EmptyAttendance(AttendanceKey{BranchID: "B1", ClassID: "UKG", Date: "2024-07-15"})
	assert.Equal(t, "B1:UKG:2024-07-15", rec.ID)
	assert.False(t, rec.IsFinalized)
	assert.NotNil(t, rec.Attendance)
	assert.Empty(t, rec.Attendance)
}

func TestAttendanceRecord_FinalizedRejectsMarks(t *testing.T) {
	at := time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)
	rec := EmptyAttendance(AttendanceKey{BranchID: "B1", ClassID: "UKG", Date: "2024-07-15"})

	require.NoError(t, rec.Mark([]AttendanceEntry{{StudentID: "s1", Status: StatusPresent}}, "t1", at))
	assert.Equal(t, "t1", rec.MarkedBy)

	rec.Finalize("admin", at.Add(time.Hour))
	require.NotNil(t, rec.FinalizedAt)
	assert.Equal(t, "admin", rec.FinalizedBy)

	err := rec.Mark([]AttendanceEntry{{StudentID: "s1", Status: StatusAbsent}}, "t2", at.Add(2*time.Hour))
	assert.True(t, errors.Is(err, ErrLocked))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, StatusPresent, rec.Attendance[0].Status, "record unchanged")
	assert.Equal(t, "t1", rec.MarkedBy)
	assert.Equal(t, at, rec.MarkedAt)
}

func TestAttendanceRecord_RefinalizeRestamps(t *testing.T) {
	at := time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)
	rec := EmptyAttendance(AttendanceKey{BranchID: "B1", ClassID: "UKG", Date: "2024-07-15"})

	rec.Finalize("a1", at)
	rec.Finalize("a2", at.Add(time.Minute))

	assert.True(t, rec.IsFinalized)
	assert.Equal(t, "a2", rec.FinalizedBy)
	assert.Equal(t, at.Add(time.Minute), *rec.FinalizedAt)
}

func TestMark_CopiesEntries(t *testing.T) {
	rec := &AttendanceRecord{}
	entries := []AttendanceEntry{{StudentID: "s1", Status: StatusLate}}
	require.NoError(t, rec.Mark(entries, "t1", time.Time{}))

	entries[0].Status = StatusAbsent
	assert.Equal(t, StatusLate, rec.Attendance[0].Status)
}
