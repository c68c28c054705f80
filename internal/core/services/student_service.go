package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

const maxPhotoBytes = 5 << 20

type StudentService struct {
	students     ports.Repository[domain.Student]
	allStudents  ports.Repository[domain.Student]
	branches     ports.Repository[domain.Branch]
	settings     *SettingsService
	registration *RegistrationService
	photos       ports.ObjectStore
	logger       *logrus.Logger
	now          Clock
}

// NewStudentService takes two student views: students hides archived
// records, allStudents includes them so archived admission numbers are never
// reused.
func NewStudentService(
	students ports.Repository[domain.Student],
	allStudents ports.Repository[domain.Student],
	branches ports.Repository[domain.Branch],
	settings *SettingsService,
	registration *RegistrationService,
	photos ports.ObjectStore,
	logger *logrus.Logger,
) *StudentService {
	return &StudentService{
		students:     students,
		allStudents:  allStudents,
		branches:     branches,
		settings:     settings,
		registration: registration,
		photos:       photos,
		logger:       logger,
		now:          systemClock,
	}
}

type StudentInput struct {
	FullName          *string                  `json:"full_name"`
	Gender            *string                  `json:"gender"`
	DateOfBirth       *string                  `json:"date_of_birth"`
	Address           *string                  `json:"address"`
	City              *string                  `json:"city"`
	State             *string                  `json:"state"`
	Pincode           *string                  `json:"pincode"`
	BranchID          *string                  `json:"branch_id"`
	ClassID           *string                  `json:"class_id"`
	ClassName         *string                  `json:"class_name"`
	RollNumber        *string                  `json:"roll_number"`
	PrimaryGuardian   *domain.GuardianInfo     `json:"primary_guardian" validate:"omitempty"`
	SecondaryGuardian *domain.GuardianInfo     `json:"secondary_guardian" validate:"omitempty"`
	EmergencyContact  *domain.EmergencyContact `json:"emergency_contact" validate:"omitempty"`
}

// apply copies the provided fields. Admission number and academic year are
// assigned at creation and never patched.
func (in StudentInput) apply(st *domain.Student) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&st.FullName, in.FullName)
	set(&st.Gender, in.Gender)
	set(&st.DateOfBirth, in.DateOfBirth)
	set(&st.Address, in.Address)
	set(&st.City, in.City)
	set(&st.State, in.State)
	set(&st.Pincode, in.Pincode)
	set(&st.BranchID, in.BranchID)
	set(&st.ClassID, in.ClassID)
	set(&st.ClassName, in.ClassName)
	set(&st.RollNumber, in.RollNumber)
	if in.PrimaryGuardian != nil {
		st.PrimaryGuardian = in.PrimaryGuardian
	}
	if in.SecondaryGuardian != nil {
		st.SecondaryGuardian = in.SecondaryGuardian
	}
	if in.EmergencyContact != nil {
		st.EmergencyContact = in.EmergencyContact
	}
	if st.ClassName == "" {
		st.ClassName = st.ClassID
	}
}

// Create admits a student. The admission number is the branch's highest
// numeric admission number plus one; concurrent creates may collide.
func (s *StudentService) Create(ctx context.Context, actor *domain.User, in StudentInput) (*domain.Student, error) {
	now := s.now()
	st := &domain.Student{
		ID:             newID(),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
		AttendanceLogs: []domain.AttendanceLog{},
	}
	in.apply(st)
	if st.FullName == "" || st.BranchID == "" || st.ClassID == "" {
		return nil, validationf("full_name, branch_id and class_id are required")
	}
	if err := checkStaffBranch(actor, st.BranchID); err != nil {
		return nil, err
	}
	if _, err := s.branches.Get(ctx, st.BranchID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, validationf("unknown branch: %s", st.BranchID)
		}
		return nil, err
	}

	next, err := s.nextAdmissionNumber(ctx, st.BranchID)
	if err != nil {
		return nil, err
	}
	st.AdmissionNumber = next
	st.AcademicYear = s.settings.CurrentAcademicYearName(ctx)

	if err := s.students.Insert(ctx, st); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"student_id":       st.ID,
		"branch_id":        st.BranchID,
		"admission_number": st.AdmissionNumber,
	}).Info("student admitted")
	return st, nil
}

func (s *StudentService) nextAdmissionNumber(ctx context.Context, branchID string) (string, error) {
	existing, err := s.allStudents.Find(ctx, ports.Where(ports.Eq("branch_id", branchID)))
	if err != nil {
		return "", err
	}
	numbers := make([]string, 0, len(existing))
	for _, st := range existing {
		numbers = append(numbers, st.AdmissionNumber)
	}
	return domain.NextAdmissionNumber(numbers), nil
}

type StudentFilter struct {
	BranchID string
	ClassID  string
	Search   string
}

// List returns a parent's own students, or for staff the students matching
// the filter within their scope, ordered by roll number.
func (s *StudentService) List(ctx context.Context, actor *domain.User, f StudentFilter) ([]*domain.Student, error) {
	if actor.IsParent() {
		out, err := linkedStudents(ctx, s.students, actor)
		if err != nil {
			return nil, err
		}
		domain.SortByRollNumber(out)
		return out, nil
	}

	if !actor.IsAdmin() {
		if f.BranchID != "" && f.BranchID != actor.BranchID {
			return nil, forbiddenf("branch %s is outside your scope", f.BranchID)
		}
		f.BranchID = actor.BranchID
	}

	q := ports.Query{}
	if f.BranchID != "" {
		q = q.And(ports.Eq("branch_id", f.BranchID))
	}
	if f.ClassID != "" {
		q = q.And(ports.Eq("class_id", f.ClassID))
	}
	found, err := s.students.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		filtered := found[:0]
		for _, st := range found {
			if strings.Contains(strings.ToLower(st.FullName), term) ||
				strings.Contains(strings.ToLower(st.RollNumber), term) ||
				strings.Contains(strings.ToLower(st.AdmissionNumber), term) {
				filtered = append(filtered, st)
			}
		}
		found = filtered
	}
	domain.SortByRollNumber(found)
	return found, nil
}

// Get loads a student the actor may see.
func (s *StudentService) Get(ctx context.Context, actor *domain.User, id string) (*domain.Student, error) {
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

func (s *StudentService) Update(ctx context.Context, actor *domain.User, id string, in StudentInput) (*domain.Student, error) {
	st, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.IsParent() {
		return nil, forbiddenf("parents cannot edit students")
	}
	in.apply(st)
	if st.FullName == "" || st.BranchID == "" || st.ClassID == "" {
		return nil, validationf("full_name, branch_id and class_id must not be empty")
	}
	if err := checkStaffBranch(actor, st.BranchID); err != nil {
		return nil, err
	}
	st.UpdatedAt = s.now()
	if err := s.students.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Archive soft-deletes a student.
func (s *StudentService) Archive(ctx context.Context, actor *domain.User, id string) error {
	st, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.IsParent() {
		return forbiddenf("parents cannot archive students")
	}
	st.IsActive = false
	st.UpdatedAt = s.now()
	return s.students.Save(ctx, st)
}

// UploadPhoto stores a new photo and replaces the previous one. Removing the
// old object is best-effort.
func (s *StudentService) UploadPhoto(ctx context.Context, actor *domain.User, id string, data []byte, contentType string) (*domain.Student, error) {
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, validationf("unsupported image type %q", contentType)
	}
	if len(data) == 0 || len(data) > maxPhotoBytes {
		return nil, validationf("photo must be between 1 byte and 5MB")
	}
	st, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.IsParent() {
		return nil, forbiddenf("parents cannot upload photos")
	}

	key := domain.ObjectKey("photos", ext, st.BranchID, st.ID)
	url, err := s.photos.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}
	previous := st.PhotoKey
	st.PhotoKey, st.PhotoURL = key, url
	st.UpdatedAt = s.now()
	if err := s.students.Save(ctx, st); err != nil {
		return nil, err
	}
	if previous != "" && previous != key {
		if err := s.photos.Delete(ctx, previous); err != nil {
			s.logger.WithError(err).WithField("key", previous).Warn("could not delete previous photo")
		}
	}
	return st, nil
}

// CreateParentAccount links the student to the account of its primary
// guardian's email, creating the account when needed.
func (s *StudentService) CreateParentAccount(ctx context.Context, actor *domain.User, id, password string) (*domain.User, error) {
	st, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.IsParent() {
		return nil, forbiddenf("staff only")
	}
	g := st.PrimaryGuardian
	if g == nil || strings.TrimSpace(g.Email) == "" {
		return nil, validationf("primary guardian email is required")
	}
	parent, err := s.registration.LinkParent(ctx, g.Email, g.Name, g.Phone, password, st.ID)
	if err != nil {
		return nil, err
	}
	if st.ParentUserID != parent.ID {
		st.ParentUserID = parent.ID
		st.UpdatedAt = s.now()
		if err := s.students.Save(ctx, st); err != nil {
			return nil, err
		}
	}
	return parent, nil
}
