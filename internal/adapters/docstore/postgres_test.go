package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgres(db), mock
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		q        ports.Query
		paged    bool
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no filters",
			q:       ports.Query{},
			paged:   true,
			wantSQL: "SELECT doc FROM students ORDER BY seq ASC",
		},
		{
			name:     "eq with sort and page",
			q:        ports.Where(ports.Eq("branch_id", "b1")).OrderBy("created_at", true).Page(10, 5),
			paged:    true,
			wantSQL:  "SELECT doc FROM students WHERE doc->'branch_id' = $1::jsonb ORDER BY doc->'created_at' DESC, seq ASC LIMIT $2 OFFSET $3",
			wantArgs: []any{`"b1"`, 5, 10},
		},
		{
			name:     "in and contains",
			q:        ports.Where(ports.In("id", []string{"a", "b"}), ports.Contains("parent_ids", "p1")),
			paged:    false,
			wantSQL:  "SELECT doc FROM students WHERE doc->'id' IN (SELECT jsonb_array_elements($1::jsonb)) AND doc->'parent_ids' @> $2::jsonb",
			wantArgs: []any{`["a","b"]`, `["p1"]`},
		},
		{
			name:    "eq nil",
			q:       ports.Where(ports.Eq("deleted_at", nil)),
			paged:   false,
			wantSQL: "SELECT doc FROM students WHERE (doc->'deleted_at' IS NULL OR doc->'deleted_at' = 'null'::jsonb)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildSelect("students", "doc", tt.q, tt.paged)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSelect_RejectsUnsafeIdentifiers(t *testing.T) {
	_, _, err := buildSelect("students; drop table users", "doc", ports.Query{}, true)
	assert.Error(t, err)
	_, _, err = buildSelect("students", "doc", ports.Where(ports.Eq("x' OR 1=1", 1)), true)
	assert.Error(t, err)
	_, _, err = buildSelect("students", "doc", ports.Query{}.OrderBy("Robert'); --", false), true)
	assert.Error(t, err)
}

func TestPostgres_Find(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT doc FROM branches WHERE doc->'is_active' = $1::jsonb ORDER BY seq ASC").
		WithArgs("true").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).
			AddRow([]byte(`{"id":"b1"}`)).
			AddRow([]byte(`{"id":"b2"}`)))

	docs, err := p.Find(context.Background(), "branches", ports.Where(ports.Eq("is_active", true)))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.JSONEq(t, `{"id":"b2"}`, string(docs[1]))
}

func TestPostgres_FindOneNotFound(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT doc FROM users WHERE doc->'email' = $1::jsonb ORDER BY seq ASC LIMIT $2").
		WithArgs(`"a@b.test"`, 1).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, err := p.FindOne(context.Background(), "users", ports.Where(ports.Eq("email", "a@b.test")))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_Count(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM students WHERE doc->'branch_id' = $1::jsonb").
		WithArgs(`"b1"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := p.Count(context.Background(), "students", ports.Where(ports.Eq("branch_id", "b1")).Page(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPostgres_InsertDuplicateIsConflict(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("INSERT INTO users (id, doc) VALUES ($1, $2)").
		WithArgs("u1", `{"id":"u1"}`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := p.Insert(context.Background(), "users", "u1", json.RawMessage(`{"id":"u1"}`))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.False(t, errors.Is(err, domain.ErrUnavailable))
}

func TestPostgres_SaveUpserts(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("INSERT INTO users (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc").
		WithArgs("u1", `{"id":"u1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.Save(context.Background(), "users", "u1", json.RawMessage(`{"id":"u1"}`)))
}

func TestPostgres_Delete(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("DELETE FROM holidays WHERE id = $1").
		WithArgs("h1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM holidays WHERE id = $1").
		WithArgs("h2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.Delete(context.Background(), "holidays", "h1"))
	assert.ErrorIs(t, p.Delete(context.Background(), "holidays", "h2"), domain.ErrNotFound)
}

func TestPostgres_QueryErrorIsWrapped(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT doc FROM students ORDER BY seq ASC").
		WillReturnError(errors.New("connection reset"))

	_, err := p.Find(context.Background(), "students", ports.Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find students")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestPostgres_OutageIsUnavailable(t *testing.T) {
	p, mock := newMockPostgres(t)
	ctx := context.Background()
	down := errors.New("connection refused")
	mock.ExpectExec("INSERT INTO users (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc").
		WithArgs("u1", `{"id":"u1"}`).
		WillReturnError(down)
	mock.ExpectExec("DELETE FROM users WHERE id = $1").
		WithArgs("u1").
		WillReturnError(down)
	mock.ExpectQuery("SELECT COUNT(*) FROM users").
		WillReturnError(down)

	assert.ErrorIs(t, p.Save(ctx, "users", "u1", json.RawMessage(`{"id":"u1"}`)), domain.ErrUnavailable)
	assert.ErrorIs(t, p.Delete(ctx, "users", "u1"), domain.ErrUnavailable)
	_, err := p.Count(ctx, "users", ports.Query{})
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	// Open breaker: the database is not queried again.
	_, err = p.Find(ctx, "users", ports.Query{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestPostgres_EnsureCollections(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS students (seq BIGSERIAL, id TEXT PRIMARY KEY, doc JSONB NOT NULL)").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.EnsureCollections(context.Background(), "students"))
	assert.Error(t, p.EnsureCollections(context.Background(), "Bad-Name"))
}
