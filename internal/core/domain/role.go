package domain

import (
	"regexp"
	"strings"
	"time"
)

// Built-in role keys seeded at startup.
const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleFaculty     = "faculty"
	RoleTeacher     = "teacher"
	RoleParent      = "parent"
)

// BuiltInRoleKeys lists the seeded roles in bootstrap order.
var BuiltInRoleKeys = []string{RoleAdmin, RoleCoordinator, RoleFaculty, RoleTeacher, RoleParent}

type Role struct {
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IsActive    bool        `json:"is_active"`
	IsDefault   bool        `json:"is_default"`
	Permissions Permissions `json:"permissions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func IsBuiltInRole(key string) bool {
	for _, k := range BuiltInRoleKeys {
		if k == key {
			return true
		}
	}
	return false
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a role key from a display name. Distinct names may collide;
// callers check uniqueness.
func Slugify(name string) string {
	key := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	key = strings.Trim(key, "_")
	if key == "" {
		return "role"
	}
	return key
}

// HasPermission is false for a nil or inactive role and for modules the role
// carries no entry for.
func HasPermission(role *Role, m Module, a Action) bool {
	if role == nil || !role.IsActive {
		return false
	}
	set, ok := role.Permissions.Get(m)
	if !ok {
		return false
	}
	return set.Allows(a)
}

// CanEdit reports whether the role's fields may be mutated. Built-in roles
// are locked unless allowEditDefaults is set.
func CanEdit(role *Role, allowEditDefaults bool) bool {
	if role == nil {
		return false
	}
	if !role.IsDefault {
		return true
	}
	return allowEditDefaults
}

// DefaultPermissions returns the static default table for a built-in role,
// with every registry module present.
func DefaultPermissions(roleKey string) Permissions {
	var p Permissions
	for _, m := range AllModules() {
		p.Set(m, defaultPermissionFor(roleKey, m))
	}
	return p
}

var (
	viewAddEdit = PermissionSet{View: true, Add: true, Edit: true}
	viewAdd     = PermissionSet{View: true, Add: true}
)

func defaultPermissionFor(roleKey string, m Module) PermissionSet {
	switch roleKey {
	case RoleAdmin:
		return fullAccess
	case RoleCoordinator:
		switch m {
		case ModuleDashboard, ModuleBranches, ModuleSettings:
			return viewOnly
		case ModuleStudents, ModuleAttendance, ModuleHolidays, ModuleFeed, ModuleGallery:
			return viewAddEdit
		}
	case RoleFaculty, RoleTeacher:
		switch m {
		case ModuleDashboard, ModuleHolidays, ModuleBranches:
			return viewOnly
		case ModuleStudents, ModuleAttendance, ModuleGallery:
			return viewAddEdit
		case ModuleFeed, ModuleActivities:
			return viewAdd
		}
	case RoleParent:
		switch m {
		case ModuleDashboard, ModuleStudents, ModuleAttendance, ModuleFeed, ModuleGallery,
			ModuleHolidays, ModuleBilling, ModuleMobile, ModuleCCTV:
			return viewOnly
		}
	}
	return noAccess
}

// MergeDefaults backfills modules missing from the role's table with the
// built-in defaults. Existing entries are never overwritten. It returns the
// number of modules added.
func MergeDefaults(role *Role) int {
	added := 0
	defaults := DefaultPermissions(role.Key)
	for _, m := range AllModules() {
		if role.Permissions.Has(m) {
			continue
		}
		set, _ := defaults.Get(m)
		role.Permissions.Set(m, set)
		added++
	}
	return added
}

// DefaultRoleName renders a built-in key in title case, "admin" -> "Admin".
func DefaultRoleName(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
