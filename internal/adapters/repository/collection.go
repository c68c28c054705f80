package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Collection names.
const (
	Roles              = "roles"
	Users              = "users"
	Students           = "students"
	Branches           = "branches"
	AttendanceRecords  = "attendance_records"
	Announcements      = "feed"
	Billings           = "billing"
	SettingsCollection = "settings"
	AcademicYears      = "academic_years"
	Holidays           = "holidays"
	Albums             = "albums"
	Activities         = "activities"
)

// AllCollections is used to provision table-backed stores.
var AllCollections = []string{
	Roles, Users, Students, Branches, AttendanceRecords, Announcements,
	Billings, SettingsCollection, AcademicYears, Holidays, Albums, Activities,
}

// Collection is a typed repository over a DocumentStore. Archivable
// collections hide documents with is_active=false unless IncludeArchived is
// used.
type Collection[T any] struct {
	store      ports.DocumentStore
	name       string
	idField    string
	id         func(*T) string
	archivable bool
}

func NewCollection[T any](store ports.DocumentStore, name string, id func(*T) string) *Collection[T] {
	return &Collection[T]{store: store, name: name, idField: "id", id: id}
}

// NewArchivableCollection builds a collection whose reads default to active
// documents only.
func NewArchivableCollection[T any](store ports.DocumentStore, name string, id func(*T) string) *Collection[T] {
	return &Collection[T]{store: store, name: name, idField: "id", id: id, archivable: true}
}

// WithIDField names the document field that holds the id, "id" by default.
func (c *Collection[T]) WithIDField(field string) *Collection[T] {
	cp := *c
	cp.idField = field
	return &cp
}

// IncludeArchived returns a view that also sees archived documents.
func (c *Collection[T]) IncludeArchived() *Collection[T] {
	cp := *c
	cp.archivable = false
	return &cp
}

func (c *Collection[T]) scoped(q ports.Query) ports.Query {
	if !c.archivable {
		return q
	}
	return q.And(ports.Eq("is_active", true))
}

func (c *Collection[T]) decode(raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return &v, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := c.FindOne(ctx, ports.Where(ports.Eq(c.idField, id)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrNotFound, c.name, id)
	}
	return doc, err
}

func (c *Collection[T]) FindOne(ctx context.Context, q ports.Query) (*T, error) {
	raw, err := c.store.FindOne(ctx, c.name, c.scoped(q))
	if err != nil {
		return nil, err
	}
	return c.decode(raw)
}

func (c *Collection[T]) Find(ctx context.Context, q ports.Query) ([]*T, error) {
	raws, err := c.store.Find(ctx, c.name, c.scoped(q))
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		v, err := c.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) Count(ctx context.Context, q ports.Query) (int64, error) {
	return c.store.Count(ctx, c.name, c.scoped(q))
}

func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	return c.store.Insert(ctx, c.name, c.id(doc), raw)
}

func (c *Collection[T]) Save(ctx context.Context, doc *T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	return c.store.Save(ctx, c.name, c.id(doc), raw)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}

var _ ports.Repository[domain.Student] = (*Collection[domain.Student])(nil)
