package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

type doc struct {
	ID       string   `json:"id"`
	Branch   string   `json:"branch_id"`
	Roll     int      `json:"roll"`
	Active   bool     `json:"is_active"`
	Parents  []string `json:"parent_ids"`
	Nickname *string  `json:"nickname"`
}

func seed(t *testing.T, m *Memory, docs ...doc) {
	t.Helper()
	for _, d := range docs {
		raw, err := json.Marshal(d)
		require.NoError(t, err)
		require.NoError(t, m.Insert(context.Background(), "students", d.ID, raw))
	}
}

func ids(t *testing.T, raws []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		var d doc
		require.NoError(t, json.Unmarshal(raw, &d))
		out = append(out, d.ID)
	}
	return out
}

func TestMemory_Filters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	nick := "Bee"
	seed(t, m,
		doc{ID: "a", Branch: "north", Roll: 3, Active: true, Parents: []string{"p1"}},
		doc{ID: "b", Branch: "south", Roll: 1, Active: true, Parents: []string{"p1", "p2"}, Nickname: &nick},
		doc{ID: "c", Branch: "north", Roll: 2, Active: false},
	)

	tests := []struct {
		name string
		q    ports.Query
		want []string
	}{
		{"all in insertion order", ports.Query{}, []string{"a", "b", "c"}},
		{"eq string", ports.Where(ports.Eq("branch_id", "north")), []string{"a", "c"}},
		{"eq bool", ports.Where(ports.Eq("is_active", true)), []string{"a", "b"}},
		{"eq int", ports.Where(ports.Eq("roll", 2)), []string{"c"}},
		{"eq nil matches null", ports.Where(ports.Eq("nickname", nil)), []string{"a", "c"}},
		{"in", ports.Where(ports.In("id", []string{"c", "a", "zz"})), []string{"a", "c"}},
		{"contains", ports.Where(ports.Contains("parent_ids", "p2")), []string{"b"}},
		{"and", ports.Where(ports.Eq("branch_id", "north"), ports.Eq("is_active", true)), []string{"a"}},
		{"sort asc", ports.Query{}.OrderBy("roll", false), []string{"b", "c", "a"}},
		{"sort desc", ports.Query{}.OrderBy("roll", true), []string{"a", "c", "b"}},
		{"multi-key sort", ports.Query{}.OrderBy("branch_id", false).OrderBy("roll", false), []string{"c", "a", "b"}},
		{"page", ports.Query{}.OrderBy("roll", false).Page(1, 1), []string{"c"}},
		{"skip past end", ports.Query{}.Page(5, 0), []string{}},
		{"missing field", ports.Where(ports.Eq("missing", "x")), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := m.Find(ctx, "students", tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, raws))
		})
	}

	n, err := m.Count(ctx, "students", ports.Where(ports.Eq("branch_id", "north")).Page(0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "count ignores paging")
}

func TestMemory_WriteSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m, doc{ID: "a", Roll: 1}, doc{ID: "b", Roll: 2})

	err := m.Insert(ctx, "students", "a", json.RawMessage(`{"id":"a"}`))
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, m.Save(ctx, "students", "a", json.RawMessage(`{"id":"a","roll":9}`)))
	require.NoError(t, m.Save(ctx, "students", "c", json.RawMessage(`{"id":"c","roll":0}`)))
	raws, err := m.Find(ctx, "students", ports.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(t, raws), "save keeps position and appends new ids")

	one, err := m.FindOne(ctx, "students", ports.Where(ports.Eq("id", "a")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","roll":9}`, string(one))

	require.NoError(t, m.Delete(ctx, "students", "b"))
	assert.ErrorIs(t, m.Delete(ctx, "students", "b"), domain.ErrNotFound)

	_, err = m.FindOne(ctx, "students", ports.Where(ports.Eq("id", "b")))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = m.FindOne(ctx, "nothing", ports.Query{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	raw := json.RawMessage(`{"id":"a"}`)
	require.NoError(t, m.Insert(ctx, "students", "a", raw))
	raw[2] = 'X'

	got, err := m.FindOne(ctx, "students", ports.Query{})
	require.NoError(t, err)
	got[2] = 'Y'

	again, err := m.FindOne(ctx, "students", ports.Query{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(again))
}

func TestMemory_ConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	done := make(chan error)
	for i := 0; i < 20; i++ {
		go func(i int) {
			id := fmt.Sprintf("s%d", i)
			done <- m.Insert(ctx, "students", id, json.RawMessage(`{"id":"`+id+`"}`))
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}
	n, err := m.Count(ctx, "students", ports.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, compareValues(nil, 1.0))
	assert.Equal(t, -1, compareValues(1.0, "a"))
	assert.Equal(t, -1, compareValues("a", false))
	assert.Equal(t, 1, compareValues(true, false))
	assert.Equal(t, 0, compareValues("x", "x"))
	assert.Equal(t, 1, compareValues(2.5, 1.0))
}
