package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PermissionSet holds four independent grants. Edit does not imply view.
type PermissionSet struct {
	View   bool `json:"view"`
	Add    bool `json:"add"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

func (p PermissionSet) Allows(a Action) bool {
	switch a {
	case ActionView:
		return p.View
	case ActionAdd:
		return p.Add
	case ActionEdit:
		return p.Edit
	case ActionDelete:
		return p.Delete
	}
	return false
}

var (
	fullAccess = PermissionSet{View: true, Add: true, Edit: true, Delete: true}
	viewOnly   = PermissionSet{View: true}
	noAccess   = PermissionSet{}
)

type permissionSlot struct {
	set     PermissionSet
	present bool
}

// Permissions is a per-module permission table. A slot may be absent, which
// is distinct from present-with-no-grants: absent slots are backfilled by the
// default-role bootstrap, present ones are never overwritten.
type Permissions struct {
	slots [ModuleCount]permissionSlot
}

func (p *Permissions) Set(m Module, s PermissionSet) {
	if !m.Valid() {
		return
	}
	p.slots[m] = permissionSlot{set: s, present: true}
}

func (p Permissions) Get(m Module) (PermissionSet, bool) {
	if !m.Valid() {
		return PermissionSet{}, false
	}
	s := p.slots[m]
	return s.set, s.present
}

func (p Permissions) Has(m Module) bool {
	_, ok := p.Get(m)
	return ok
}

func (p Permissions) Len() int {
	n := 0
	for _, s := range p.slots {
		if s.present {
			n++
		}
	}
	return n
}

// UnknownModulesError lists module keys that are not in the registry.
type UnknownModulesError struct {
	Keys []string
}

func (e *UnknownModulesError) Error() string {
	return "unsupported modules in permissions: " + strings.Join(e.Keys, ", ")
}

func (e *UnknownModulesError) Is(target error) bool { return target == ErrValidation }

// PermissionsFromMap validates keys at the boundary. All unknown keys are
// reported together.
func PermissionsFromMap(in map[string]PermissionSet) (Permissions, error) {
	var p Permissions
	var unknown []string
	for key, set := range in {
		m, ok := moduleByKey[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		p.Set(m, set)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Permissions{}, &UnknownModulesError{Keys: unknown}
	}
	return p, nil
}

func (p Permissions) ToMap() map[string]PermissionSet {
	out := make(map[string]PermissionSet, p.Len())
	for i, s := range p.slots {
		if s.present {
			out[Module(i).Key()] = s.set
		}
	}
	return out
}

func (p Permissions) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToMap())
}

func (p *Permissions) UnmarshalJSON(data []byte) error {
	var raw map[string]PermissionSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode permissions: %w", err)
	}
	parsed, err := PermissionsFromMap(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ModulePermission is the list form used by the roles API: one entry per
// registry module, absent slots rendered as no grants.
type ModulePermission struct {
	Module string `json:"module" validate:"required"`
	PermissionSet
}

func (p Permissions) List() []ModulePermission {
	out := make([]ModulePermission, 0, ModuleCount)
	for _, m := range AllModules() {
		set, _ := p.Get(m)
		out = append(out, ModulePermission{Module: m.Key(), PermissionSet: set})
	}
	return out
}

// PermissionsFromList builds a table from API input, rejecting unknown modules.
func PermissionsFromList(items []ModulePermission) (Permissions, error) {
	var p Permissions
	var unknown []string
	for _, item := range items {
		m, ok := moduleByKey[item.Module]
		if !ok {
			unknown = append(unknown, item.Module)
			continue
		}
		p.Set(m, item.PermissionSet)
	}
	if len(unknown) > 0 {
		return Permissions{}, &UnknownModulesError{Keys: unknown}
	}
	return p, nil
}
