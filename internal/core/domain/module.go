package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// Module is a functional area subject to independent permission control.
// The set is closed; ModuleCount bounds every permission table.
type Module int

const (
	ModuleDashboard Module = iota
	ModuleStudents
	ModuleAttendance
	ModuleStaff
	ModuleFeed
	ModuleGallery
	ModuleHolidays
	ModuleBranches
	ModuleBilling
	ModuleActivities
	ModuleSettings
	ModuleUsers
	ModuleRolesPermissions
	ModuleMobile
	ModuleCCTV

	ModuleCount
)

type moduleInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"name"`
}

var modules = [ModuleCount]moduleInfo{
	ModuleDashboard:        {"dashboard", "Dashboard"},
	ModuleStudents:         {"students", "Students"},
	ModuleAttendance:       {"attendance", "Attendance"},
	ModuleStaff:            {"staff", "Staff"},
	ModuleFeed:             {"feed", "Announcements"},
	ModuleGallery:          {"gallery", "Gallery"},
	ModuleHolidays:         {"holidays", "Holidays"},
	ModuleBranches:         {"branches", "Branches"},
	ModuleBilling:          {"billing", "Billing"},
	ModuleActivities:       {"activities", "Activities"},
	ModuleSettings:         {"settings", "Settings"},
	ModuleUsers:            {"users", "Users"},
	ModuleRolesPermissions: {"roles_permissions", "Roles & Permissions"},
	ModuleMobile:           {"mobile", "Mobile"},
	ModuleCCTV:             {"cctv", "CCTV"},
}

var moduleByKey = func() map[string]Module {
	m := make(map[string]Module, ModuleCount)
	for i, info := range modules {
		m[info.Key] = Module(i)
	}
	return m
}()

func (m Module) Valid() bool { return m >= 0 && m < ModuleCount }

// Key returns the stable wire key, e.g. "roles_permissions".
func (m Module) Key() string {
	if !m.Valid() {
		return fmt.Sprintf("module(%d)", int(m))
	}
	return modules[m].Key
}

func (m Module) DisplayName() string {
	if !m.Valid() {
		return ""
	}
	return modules[m].DisplayName
}

func (m Module) String() string { return m.Key() }

// ParseModule resolves a wire key. Unknown keys are a validation error.
func ParseModule(key string) (Module, error) {
	if m, ok := moduleByKey[key]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("%w: unsupported module: %s", ErrValidation, key)
}

// AllModules returns the registry in declaration order.
func AllModules() []Module {
	out := make([]Module, ModuleCount)
	for i := range out {
		out[i] = Module(i)
	}
	return out
}

// ModuleDescriptor is the public shape of a registry entry.
type ModuleDescriptor struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

func ModuleRegistry() []ModuleDescriptor {
	out := make([]ModuleDescriptor, 0, ModuleCount)
	for _, info := range modules {
		out = append(out, ModuleDescriptor{Key: info.Key, Name: info.DisplayName})
	}
	return out
}

// Action is one of the four CRUD-style permission actions.
type Action string

const (
	ActionView   Action = "view"
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionView, ActionAdd, ActionEdit, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("%w: unsupported action: %s", ErrValidation, s)
}

// ActionForMethod maps an HTTP method to the action it requires.
func ActionForMethod(method string) (Action, bool) {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionView, true
	case http.MethodPost:
		return ActionAdd, true
	case http.MethodPut, http.MethodPatch:
		return ActionEdit, true
	case http.MethodDelete:
		return ActionDelete, true
	}
	return "", false
}
