package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// AttendanceService runs the class register state machine. Every mark is
// written twice, to the register and to each student's own log; the writes
// are independent and not atomic.
type AttendanceService struct {
	records  ports.Repository[domain.AttendanceRecord]
	students ports.Repository[domain.Student]
	branches ports.Repository[domain.Branch]
	notifier *NotificationService
	logger   *logrus.Logger
	now      Clock
}

func NewAttendanceService(
	records ports.Repository[domain.AttendanceRecord],
	students ports.Repository[domain.Student],
	branches ports.Repository[domain.Branch],
	notifier *NotificationService,
	logger *logrus.Logger,
) *AttendanceService {
	return &AttendanceService{
		records:  records,
		students: students,
		branches: branches,
		notifier: notifier,
		logger:   logger,
		now:      systemClock,
	}
}

var validStatuses = map[string]struct{}{
	domain.StatusPresent: {},
	domain.StatusAbsent:  {},
	domain.StatusLate:    {},
	domain.StatusLeave:   {},
}

// Get returns the register, or an empty open one when the key was never
// marked.
func (s *AttendanceService) Get(ctx context.Context, actor *domain.User, key domain.AttendanceKey) (*domain.AttendanceRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := checkClassScope(actor, key.BranchID, key.ClassID); err != nil {
		return nil, err
	}
	rec, err := s.records.Get(ctx, key.ID())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EmptyAttendance(key), nil
	}
	return rec, err
}

// MarkBulk replaces the register's entries. A finalized register rejects the
// call with domain.ErrLocked and is left untouched.
func (s *AttendanceService) MarkBulk(ctx context.Context, actor *domain.User, key domain.AttendanceKey, entries []domain.AttendanceEntry) (*domain.AttendanceRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.StudentID == "" {
			return nil, validationf("student_id is required")
		}
		if _, ok := validStatuses[e.Status]; !ok {
			return nil, validationf("invalid status %q for student %s", e.Status, e.StudentID)
		}
	}
	if err := checkClassScope(actor, key.BranchID, key.ClassID); err != nil {
		return nil, err
	}

	rec, err := s.records.Get(ctx, key.ID())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec = domain.EmptyAttendance(key)
	case err != nil:
		return nil, err
	}

	now := s.now()
	if err := rec.Mark(entries, actor.ID, now); err != nil {
		return nil, err
	}
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}

	for _, e := range entries {
		s.logStudent(ctx, key, e, actor.ID, now)
		if e.Status == domain.StatusAbsent {
			s.notifyAbsent(ctx, key, e.StudentID)
		}
	}
	return rec, nil
}

// logStudent mirrors one entry into the student's log. Failures are logged;
// the register write already succeeded.
func (s *AttendanceService) logStudent(ctx context.Context, key domain.AttendanceKey, e domain.AttendanceEntry, actorID string, at time.Time) {
	st, err := s.students.Get(ctx, e.StudentID)
	if err != nil {
		s.logger.WithError(err).WithField("student_id", e.StudentID).Warn("attendance log skipped")
		return
	}
	st.UpsertAttendanceLog(domain.AttendanceLog{Date: key.Date, Status: e.Status, MarkedAt: at, MarkedBy: actorID})
	st.UpdatedAt = at
	if err := s.students.Save(ctx, st); err != nil {
		s.logger.WithError(err).WithField("student_id", e.StudentID).Warn("attendance log write failed")
	}
}

// Finalize locks an existing register. Finalizing twice re-stamps.
func (s *AttendanceService) Finalize(ctx context.Context, actor *domain.User, key domain.AttendanceKey) (*domain.AttendanceRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := checkClassScope(actor, key.BranchID, key.ClassID); err != nil {
		return nil, err
	}
	rec, err := s.records.Get(ctx, key.ID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, notFoundf("no attendance for %s on %s", key.ClassID, key.Date)
		}
		return nil, err
	}
	rec.Finalize(actor.ID, s.now())
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"attendance_id": rec.ID, "by": actor.ID}).Info("attendance finalized")
	return rec, nil
}

// Classes lists the classes the actor may take attendance for.
func (s *AttendanceService) Classes(ctx context.Context, actor *domain.User) ([]domain.ClassRef, error) {
	if actor.IsParent() {
		return nil, forbiddenf("staff only")
	}
	var branches []*domain.Branch
	if actor.IsAdmin() {
		all, err := s.branches.Find(ctx, ports.Query{}.OrderBy("name", false))
		if err != nil {
			return nil, err
		}
		branches = all
	} else {
		if actor.BranchID == "" {
			return []domain.ClassRef{}, nil
		}
		b, err := s.branches.Get(ctx, actor.BranchID)
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.ClassRef{}, nil
		}
		if err != nil {
			return nil, err
		}
		branches = []*domain.Branch{b}
	}

	out := []domain.ClassRef{}
	for _, b := range branches {
		for _, class := range b.Classes {
			if checkClassScope(actor, b.ID, class) != nil {
				continue
			}
			out = append(out, domain.ClassRef{ID: class, Name: class, BranchID: b.ID, BranchName: b.Name})
		}
	}
	return out, nil
}

// StudentsForClass lists the active students of a class by roll number.
func (s *AttendanceService) StudentsForClass(ctx context.Context, actor *domain.User, branchID, classID string) ([]*domain.Student, error) {
	if branchID == "" || classID == "" {
		return nil, validationf("branch_id and class_id are required")
	}
	if err := checkClassScope(actor, branchID, classID); err != nil {
		return nil, err
	}
	students, err := s.students.Find(ctx, ports.Where(
		ports.Eq("branch_id", branchID),
		ports.Eq("class_id", classID),
	))
	if err != nil {
		return nil, err
	}
	domain.SortByRollNumber(students)
	return students, nil
}

func (s *AttendanceService) notifyAbsent(ctx context.Context, key domain.AttendanceKey, studentID string) {
	st, err := s.students.Get(ctx, studentID)
	name := "Your child"
	if err == nil {
		name = st.FullName
	}
	s.notifier.NotifyStudentParents(ctx, studentID,
		"Attendance Alert",
		fmt.Sprintf("%s was marked absent on %s.", name, key.Date),
		map[string]string{"type": "attendance", "student_id": studentID, "date": key.Date},
	)
}
