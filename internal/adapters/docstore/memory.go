package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Memory is an in-process DocumentStore. Documents are kept as raw JSON and
// returned in insertion order unless a sort is requested.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	docs  map[string]json.RawMessage
}

var _ ports.DocumentStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]json.RawMessage)}
		m.collections[name] = c
	}
	return c
}

type memDoc struct {
	raw    json.RawMessage
	fields map[string]any
}

func (m *Memory) match(name string, q ports.Query) ([]memDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[name]
	if !ok {
		return nil, nil
	}

	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	var out []memDoc
	for _, id := range c.order {
		raw := c.docs[id]
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("memory store: decode %s/%s: %w", name, id, err)
		}
		if matchesAll(fields, filters) {
			out = append(out, memDoc{raw: raw, fields: fields})
		}
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, s := range q.Sort {
				c := compareValues(out[i].fields[s.Field], out[j].fields[s.Field])
				if c == 0 {
					continue
				}
				if s.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Skip > 0 {
		if q.Skip >= len(out) {
			return nil, nil
		}
		out = out[q.Skip:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) FindOne(ctx context.Context, collection string, q ports.Query) (json.RawMessage, error) {
	q.Limit = 1
	docs, err := m.match(collection, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, collection)
	}
	return cloneRaw(docs[0].raw), nil
}

func (m *Memory) Find(ctx context.Context, collection string, q ports.Query) ([]json.RawMessage, error) {
	docs, err := m.match(collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, cloneRaw(d.raw))
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, collection string, q ports.Query) (int64, error) {
	q.Skip, q.Limit, q.Sort = 0, 0, nil
	docs, err := m.match(collection, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (m *Memory) Insert(ctx context.Context, collection, id string, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, exists := c.docs[id]; exists {
		return fmt.Errorf("%w: %s/%s already exists", domain.ErrConflict, collection, id)
	}
	c.docs[id] = cloneRaw(doc)
	c.order = append(c.order, id)
	return nil
}

func (m *Memory) Save(ctx context.Context, collection, id string, doc json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = cloneRaw(doc)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, exists := c.docs[id]; !exists {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, id)
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close(ctx context.Context) error { return nil }

func cloneRaw(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}

// normalizeFilters round-trips filter values through JSON so they compare
// equal to decoded document fields (every number becomes float64).
func normalizeFilters(filters []ports.Filter) ([]ports.Filter, error) {
	out := make([]ports.Filter, len(filters))
	for i, f := range filters {
		b, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("memory store: encode filter %s: %w", f.Field, err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		out[i] = ports.Filter{Field: f.Field, Op: f.Op, Value: v}
	}
	return out, nil
}

func matchesAll(fields map[string]any, filters []ports.Filter) bool {
	for _, f := range filters {
		if !matches(fields[f.Field], f) {
			return false
		}
	}
	return true
}

func matches(value any, f ports.Filter) bool {
	switch f.Op {
	case ports.OpEq:
		return reflect.DeepEqual(value, f.Value)
	case ports.OpIn:
		candidates, _ := f.Value.([]any)
		for _, c := range candidates {
			if reflect.DeepEqual(value, c) {
				return true
			}
		}
		return false
	case ports.OpContains:
		items, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if reflect.DeepEqual(item, f.Value) {
				return true
			}
		}
		return false
	}
	return false
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	}
	return 4
}

// compareValues orders null < numbers < strings < booleans < everything else.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case bool:
		bv := b.(bool)
		if av != bv {
			if !av {
				return -1
			}
			return 1
		}
	}
	return 0
}
