package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

const minPasswordLength = 6

// RegistrationService manages user accounts: staff and parent registration,
// listing and password resets.
type RegistrationService struct {
	users  ports.Repository[domain.User]
	roles  ports.Repository[domain.Role]
	hasher ports.PasswordHasher
	logger *logrus.Logger
	now    Clock
}

func NewRegistrationService(
	users ports.Repository[domain.User],
	roles ports.Repository[domain.Role],
	hasher ports.PasswordHasher,
	logger *logrus.Logger,
) *RegistrationService {
	return &RegistrationService{users: users, roles: roles, hasher: hasher, logger: logger, now: systemClock}
}

type RegisterUserInput struct {
	Email            string   `json:"email" validate:"required,email"`
	Password         string   `json:"password" validate:"required,min=6"`
	FullName         string   `json:"full_name" validate:"required"`
	Phone            string   `json:"phone"`
	Role             string   `json:"role" validate:"required"`
	BranchID         string   `json:"branch_id"`
	AssignedClassIDs []string `json:"assigned_class_ids"`
	StudentIDs       []string `json:"student_ids"`
}

// Register creates an account. The role must exist and be active; the email
// must be unused.
func (s *RegistrationService) Register(ctx context.Context, in RegisterUserInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationf("a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationf("password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, validationf("full_name is required")
	}

	role, err := s.roles.Get(ctx, in.Role)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, validationf("unknown role: %s", in.Role)
	}
	if err != nil {
		return nil, err
	}
	if !role.IsActive {
		return nil, validationf("role %s is inactive", in.Role)
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:               newID(),
		Email:            email,
		HashedPassword:   hashed,
		Role:             role.Key,
		FullName:         strings.TrimSpace(in.FullName),
		Phone:            strings.TrimSpace(in.Phone),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
		StudentIDs:       []string{},
		AssignedClassIDs: []string{},
		FCMTokens:        []string{},
	}
	if role.Key == domain.RoleParent {
		user.StudentIDs = domain.UniqueIDs(in.StudentIDs)
	} else {
		user.BranchID = strings.TrimSpace(in.BranchID)
		user.AssignedClassIDs = domain.UniqueIDs(in.AssignedClassIDs)
	}

	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, conflictf("email already registered")
		}
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return user, nil
}

// LinkParent attaches a student to the parent account for email, creating
// the account with password when it does not exist yet.
func (s *RegistrationService) LinkParent(ctx context.Context, email, fullName, phone, password, studentID string) (*domain.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindOne(ctx, ports.Where(ports.Eq("email", email)))
	if errors.Is(err, domain.ErrNotFound) {
		return s.Register(ctx, RegisterUserInput{
			Email:      email,
			Password:   password,
			FullName:   fullName,
			Phone:      phone,
			Role:       domain.RoleParent,
			StudentIDs: []string{studentID},
		})
	}
	if err != nil {
		return nil, err
	}
	if !user.IsParent() {
		return nil, conflictf("email %s belongs to a non-parent account", email)
	}
	if user.HasStudent(studentID) {
		return user, nil
	}
	user.StudentIDs = append(user.StudentIDs, studentID)
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

type UserFilter struct {
	Role     string
	BranchID string
}

func (s *RegistrationService) List(ctx context.Context, f UserFilter) ([]domain.Profile, error) {
	q := ports.Query{}.OrderBy("full_name", false)
	if f.Role != "" {
		q = q.And(ports.Eq("role", f.Role))
	}
	if f.BranchID != "" {
		q = q.And(ports.Eq("branch_id", f.BranchID))
	}
	users, err := s.users.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, nil
}

func (s *RegistrationService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.Get(ctx, id)
}

// SetPassword replaces a user's password.
func (s *RegistrationService) SetPassword(ctx context.Context, id, password string) error {
	if len(password) < minPasswordLength {
		return validationf("password must be at least %d characters", minPasswordLength)
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return err
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	user.HashedPassword = hashed
	user.UpdatedAt = s.now()
	return s.users.Save(ctx, user)
}

// SetActive enables or disables an account. Disabled users cannot log in.
func (s *RegistrationService) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// StaffPatch carries the staff fields an administrator may change. Nil
// fields are left alone; an empty AssignedClassIDs clears the classes.
type StaffPatch struct {
	FullName         *string  `json:"full_name"`
	Phone            *string  `json:"phone"`
	Role             *string  `json:"role"`
	BranchID         *string  `json:"branch_id"`
	AssignedClassIDs []string `json:"assigned_class_ids"`
	IsActive         *bool    `json:"is_active"`
}

// UpdateStaff edits a staff account. Branch and class assignments decide
// what the account may see in attendance.
func (s *RegistrationService) UpdateStaff(ctx context.Context, id string, p StaffPatch) (*domain.User, error) {
	user, err := s.staff(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if name == "" {
			return nil, validationf("full_name must not be empty")
		}
		user.FullName = name
	}
	if p.Phone != nil {
		user.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Role != nil {
		role, err := s.roles.Get(ctx, *p.Role)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, validationf("unknown role: %s", *p.Role)
		}
		if err != nil {
			return nil, err
		}
		if !role.IsActive {
			return nil, validationf("role %s is inactive", role.Key)
		}
		if role.Key == domain.RoleParent {
			return nil, validationf("staff accounts cannot take the parent role")
		}
		user.Role = role.Key
	}
	if p.BranchID != nil {
		user.BranchID = strings.TrimSpace(*p.BranchID)
	}
	if p.AssignedClassIDs != nil {
		user.AssignedClassIDs = domain.UniqueIDs(p.AssignedClassIDs)
	}
	if p.IsActive != nil {
		user.IsActive = *p.IsActive
	}

	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("staff updated")
	return user, nil
}

// DeactivateStaff disables a staff account and strips its role, branch and
// classes. The record is kept.
func (s *RegistrationService) DeactivateStaff(ctx context.Context, id string) error {
	user, err := s.staff(ctx, id)
	if err != nil {
		return err
	}
	user.IsActive = false
	user.Role = ""
	user.BranchID = ""
	user.AssignedClassIDs = []string{}
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}
	s.logger.WithField("user_id", user.ID).Info("staff deactivated")
	return nil
}

func (s *RegistrationService) staff(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsParent() {
		return nil, notFoundf("staff member %s", id)
	}
	return user, nil
}

func (s *RegistrationService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.FindOne(ctx, ports.Where(ports.Eq("email", email)))
	switch {
	case err == nil:
		return conflictf("email already registered")
	case errors.Is(err, domain.ErrNotFound):
		return nil
	}
	return err
}
