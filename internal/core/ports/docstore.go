package ports

import (
	"context"
	"encoding/json"
)

// Op is a filter operator understood by every document store.
type Op int

const (
	// OpEq matches a scalar field equal to Value. A nil Value matches a
	// missing or null field.
	OpEq Op = iota
	// OpIn matches a scalar field equal to any element of Value ([]any).
	OpIn
	// OpContains matches an array field holding Value.
	OpContains
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

func In[T any](field string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Field: field, Op: OpIn, Value: vs}
}

func Contains(field string, value any) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

type SortField struct {
	Field string
	Desc  bool
}

// Query selects documents: every filter must match (AND).
type Query struct {
	Filters []Filter
	Sort    []SortField
	Skip    int
	Limit   int
}

func Where(filters ...Filter) Query { return Query{Filters: filters} }

func (q Query) And(filters ...Filter) Query {
	q.Filters = append(append([]Filter{}, q.Filters...), filters...)
	return q
}

func (q Query) OrderBy(field string, desc bool) Query {
	q.Sort = append(append([]SortField{}, q.Sort...), SortField{Field: field, Desc: desc})
	return q
}

func (q Query) Page(skip, limit int) Query {
	q.Skip, q.Limit = skip, limit
	return q
}

// DocumentStore persists JSON documents keyed by id inside named collections.
// FindOne returns an error wrapping domain.ErrNotFound when nothing matches and
// Insert one wrapping domain.ErrConflict on a duplicate id. There are no
// transactions.
type DocumentStore interface {
	FindOne(ctx context.Context, collection string, q Query) (json.RawMessage, error)
	Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	Count(ctx context.Context, collection string, q Query) (int64, error)
	Insert(ctx context.Context, collection, id string, doc json.RawMessage) error
	Save(ctx context.Context, collection, id string, doc json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Repository is a typed view over one collection.
type Repository[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, q Query) (*T, error)
	Find(ctx context.Context, q Query) ([]*T, error)
	Count(ctx context.Context, q Query) (int64, error)
	Insert(ctx context.Context, doc *T) error
	Save(ctx context.Context, doc *T) error
	Delete(ctx context.Context, id string) error
}
