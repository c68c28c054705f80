package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

type RoleService struct {
	roles             ports.Repository[domain.Role]
	allowEditDefaults bool
	logger            *logrus.Logger
	now               Clock
}

func NewRoleService(roles ports.Repository[domain.Role], allowEditDefaults bool, logger *logrus.Logger) *RoleService {
	return &RoleService{roles: roles, allowEditDefaults: allowEditDefaults, logger: logger, now: systemClock}
}

// EnsureDefaultRoles creates missing built-in roles and backfills modules
// missing from existing ones. Customized modules are never overwritten.
func (s *RoleService) EnsureDefaultRoles(ctx context.Context) error {
	now := s.now()
	for _, key := range domain.BuiltInRoleKeys {
		role, err := s.roles.Get(ctx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			role = &domain.Role{
				Key:         key,
				Name:        domain.DefaultRoleName(key),
				IsActive:    true,
				IsDefault:   true,
				Permissions: domain.DefaultPermissions(key),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.roles.Insert(ctx, role); err != nil {
				return err
			}
			s.logger.WithField("role", key).Info("seeded built-in role")
			continue
		case err != nil:
			return err
		}

		added := domain.MergeDefaults(role)
		role.IsDefault = true
		role.UpdatedAt = now
		if err := s.roles.Save(ctx, role); err != nil {
			return err
		}
		if added > 0 {
			s.logger.WithFields(logrus.Fields{"role": key, "modules": added}).Info("backfilled role permissions")
		}
	}
	return nil
}

func (s *RoleService) List(ctx context.Context) ([]*domain.Role, error) {
	return s.roles.Find(ctx, ports.Query{}.OrderBy("name", false))
}

func (s *RoleService) Get(ctx context.Context, key string) (*domain.Role, error) {
	return s.roles.Get(ctx, key)
}

func (s *RoleService) Modules() []domain.ModuleDescriptor {
	return domain.ModuleRegistry()
}

type CreateRoleInput struct {
	Name        string                          `json:"name" validate:"required"`
	Description string                          `json:"description"`
	Permissions map[string]domain.PermissionSet `json:"permissions"`
}

// Create adds a custom role. Modules left out of the input get no grants.
func (s *RoleService) Create(ctx context.Context, in CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("name is required")
	}
	perms, err := domain.PermissionsFromMap(in.Permissions)
	if err != nil {
		return nil, err
	}
	for _, m := range domain.AllModules() {
		if !perms.Has(m) {
			perms.Set(m, domain.PermissionSet{})
		}
	}

	key := domain.Slugify(name)
	if _, err := s.roles.Get(ctx, key); err == nil {
		return nil, conflictf("role already exists: %s", key)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	role := &domain.Role{
		Key:         key,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
		Permissions: perms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.Insert(ctx, role); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, conflictf("role already exists: %s", key)
		}
		return nil, err
	}
	return role, nil
}

type UpdateRoleInput struct {
	Name        *string                         `json:"name"`
	Description *string                         `json:"description"`
	IsActive    *bool                           `json:"is_active"`
	Permissions map[string]domain.PermissionSet `json:"permissions"`
}

// Update changes a role. Listed permission modules replace the stored ones;
// others are kept. Locked built-in roles reject the whole update.
func (s *RoleService) Update(ctx context.Context, key string, in UpdateRoleInput) (*domain.Role, error) {
	role, err := s.roles.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !domain.CanEdit(role, s.allowEditDefaults) {
		return nil, forbiddenf("built-in role %s cannot be edited", key)
	}

	var perms domain.Permissions
	if in.Permissions != nil {
		if perms, err = domain.PermissionsFromMap(in.Permissions); err != nil {
			return nil, err
		}
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validationf("name must not be empty")
		}
		role.Name = name
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		role.IsActive = *in.IsActive
	}
	for _, m := range domain.AllModules() {
		if set, ok := perms.Get(m); ok {
			role.Permissions.Set(m, set)
		}
	}
	role.UpdatedAt = s.now()

	if err := s.roles.Save(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// HasPermission resolves the role and answers the permission question. A
// missing role has no permissions.
func (s *RoleService) HasPermission(ctx context.Context, roleKey string, m domain.Module, a domain.Action) (bool, error) {
	role, err := s.roles.Get(ctx, roleKey)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return domain.HasPermission(role, m, a), nil
}
