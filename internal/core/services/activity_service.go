package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

type ActivityService struct {
	activities ports.Repository[domain.Activity]
	students   ports.Repository[domain.Student]
	photos     ports.ObjectStore
	logger     *logrus.Logger
	now        Clock
}

func NewActivityService(
	activities ports.Repository[domain.Activity],
	students ports.Repository[domain.Student],
	photos ports.ObjectStore,
	logger *logrus.Logger,
) *ActivityService {
	return &ActivityService{activities: activities, students: students, photos: photos, logger: logger, now: systemClock}
}

type ActivityInput struct {
	StudentID      string `json:"student_id" validate:"required"`
	Date           string `json:"date"`
	LessonProgress string `json:"lesson_progress"`
	Notes          string `json:"notes"`
}

// student loads the student and applies the viewer's scope: parents must be
// linked, staff must share the branch.
func (s *ActivityService) student(ctx context.Context, actor *domain.User, id string) (*domain.Student, error) {
	if actor.IsParent() && !actor.HasStudent(id) {
		return nil, forbiddenf("student is not linked to your account")
	}
	st, err := s.students.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsParent() {
		if err := checkStaffBranch(actor, st.BranchID); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// List returns a student's activity log, latest day first.
func (s *ActivityService) List(ctx context.Context, actor *domain.User, studentID string) ([]*domain.Activity, error) {
	if studentID == "" {
		return nil, validationf("student_id is required")
	}
	if _, err := s.student(ctx, actor, studentID); err != nil {
		return nil, err
	}
	return s.activities.Find(ctx, ports.Where(ports.Eq("student_id", studentID)).OrderBy("date", true))
}

// Create logs an activity for today unless a date is given.
func (s *ActivityService) Create(ctx context.Context, actor *domain.User, in ActivityInput) (*domain.Activity, error) {
	if actor.IsParent() {
		return nil, forbiddenf("staff only")
	}
	st, err := s.student(ctx, actor, strings.TrimSpace(in.StudentID))
	if err != nil {
		return nil, err
	}
	now := s.now()
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = now.Format(domain.DateLayout)
	}
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	a := &domain.Activity{
		ID:             newID(),
		StudentID:      st.ID,
		BranchID:       st.BranchID,
		Date:           date,
		LessonProgress: strings.TrimSpace(in.LessonProgress),
		Notes:          strings.TrimSpace(in.Notes),
		Photos:         []domain.ActivityPhoto{},
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedBy:      actor.ID,
	}
	if err := s.activities.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddPhoto attaches one photo to an activity.
func (s *ActivityService) AddPhoto(ctx context.Context, actor *domain.User, id string, u Upload) (*domain.Activity, error) {
	if actor.IsParent() {
		return nil, forbiddenf("staff only")
	}
	ext, err := u.imageExt()
	if err != nil {
		return nil, err
	}
	a, err := s.activities.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkStaffBranch(actor, a.BranchID); err != nil {
		return nil, err
	}

	key := domain.ObjectKey("photos", ext, a.StudentID, a.ID)
	url, err := s.photos.Put(ctx, key, u.Data, u.ContentType)
	if err != nil {
		return nil, err
	}
	now := s.now()
	a.Photos = append(a.Photos, domain.ActivityPhoto{
		Key:        key,
		URL:        url,
		Caption:    strings.TrimSpace(u.Caption),
		UploadedAt: now,
	})
	a.UpdatedAt = now
	if err := s.activities.Save(ctx, a); err != nil {
		if derr := s.photos.Delete(ctx, key); derr != nil {
			s.logger.WithError(derr).WithField("key", key).Warn("could not delete orphaned activity photo")
		}
		return nil, err
	}
	return a, nil
}
