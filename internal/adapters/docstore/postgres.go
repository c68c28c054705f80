package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Postgres stores each collection as a table of (seq, id, doc jsonb).
type Postgres struct {
	db *sql.DB
	cb *gobreaker.CircuitBreaker
}

var _ ports.DocumentStore = (*Postgres)(nil)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db: db,
		cb: config.NewCircuitBreaker("PostgreSQL"),
	}
}

func checkIdent(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("docstore: invalid identifier %q", name)
	}
	return nil
}

// EnsureCollections creates the backing tables if they do not exist.
func (p *Postgres) EnsureCollections(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := checkIdent(name); err != nil {
			return err
		}
		stmt := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (seq BIGSERIAL, id TEXT PRIMARY KEY, doc JSONB NOT NULL)`, name)
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return nil
}

// buildWhere translates filters into a WHERE clause with numbered args.
func buildWhere(filters []ports.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if err := checkIdent(f.Field); err != nil {
			return "", nil, err
		}
		field := fmt.Sprintf("doc->'%s'", f.Field)

		var param any
		switch f.Op {
		case ports.OpEq:
			if f.Value == nil {
				clauses = append(clauses, fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", field, field))
				continue
			}
			param = f.Value
		case ports.OpIn, ports.OpContains:
			param = f.Value
			if f.Op == ports.OpContains {
				param = []any{f.Value}
			}
		default:
			return "", nil, fmt.Errorf("docstore: unsupported operator %d", f.Op)
		}

		b, err := json.Marshal(param)
		if err != nil {
			return "", nil, fmt.Errorf("docstore: encode filter %s: %w", f.Field, err)
		}
		args = append(args, string(b))
		n := "$" + strconv.Itoa(len(args))

		switch f.Op {
		case ports.OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = %s::jsonb", field, n))
		case ports.OpIn:
			clauses = append(clauses, fmt.Sprintf("%s IN (SELECT jsonb_array_elements(%s::jsonb))", field, n))
		case ports.OpContains:
			clauses = append(clauses, fmt.Sprintf("%s @> %s::jsonb", field, n))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func buildSelect(collection, columns string, q ports.Query, paged bool) (string, []any, error) {
	if err := checkIdent(collection); err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s", columns, collection, where)
	if !paged {
		return sb.String(), args, nil
	}

	order := make([]string, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		if err := checkIdent(s.Field); err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		order = append(order, fmt.Sprintf("doc->'%s' %s", s.Field, dir))
	}
	order = append(order, "seq ASC")
	sb.WriteString(" ORDER BY " + strings.Join(order, ", "))

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if q.Skip > 0 {
		args = append(args, q.Skip)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args, nil
}

func (p *Postgres) FindOne(ctx context.Context, collection string, q ports.Query) (json.RawMessage, error) {
	q.Limit = 1
	docs, err := p.Find(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, collection)
	}
	return docs[0], nil
}

func (p *Postgres) Find(ctx context.Context, collection string, q ports.Query) ([]json.RawMessage, error) {
	stmt, args, err := buildSelect(collection, "doc", q, true)
	if err != nil {
		return nil, err
	}

	result, err := p.cb.Execute(func() (interface{}, error) {
		rows, err := p.db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var docs []json.RawMessage
		for rows.Next() {
			var doc []byte
			if err := rows.Scan(&doc); err != nil {
				return nil, err
			}
			docs = append(docs, json.RawMessage(doc))
		}
		return docs, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, config.Unavailable(err))
	}
	return result.([]json.RawMessage), nil
}

func (p *Postgres) Count(ctx context.Context, collection string, q ports.Query) (int64, error) {
	stmt, args, err := buildSelect(collection, "COUNT(*)", q, false)
	if err != nil {
		return 0, err
	}
	result, err := p.cb.Execute(func() (interface{}, error) {
		var n int64
		err := p.db.QueryRowContext(ctx, stmt, args...).Scan(&n)
		return n, err
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, config.Unavailable(err))
	}
	return result.(int64), nil
}

func (p *Postgres) Insert(ctx context.Context, collection, id string, doc json.RawMessage) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	stmt := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2)", collection)
	_, err := p.cb.Execute(func() (interface{}, error) {
		_, err := p.db.ExecContext(ctx, stmt, id, string(doc))
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s/%s already exists", domain.ErrConflict, collection, id)
		}
		return nil, err
	})
	return config.Unavailable(err)
}

func (p *Postgres) Save(ctx context.Context, collection, id string, doc json.RawMessage) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc", collection)
	_, err := p.cb.Execute(func() (interface{}, error) {
		_, err := p.db.ExecContext(ctx, stmt, id, string(doc))
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", collection, id, config.Unavailable(err))
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = $1", collection)
	_, err := p.cb.Execute(func() (interface{}, error) {
		res, err := p.db.ExecContext(ctx, stmt, id)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, id)
		}
		return nil, nil
	})
	return config.Unavailable(err)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close(ctx context.Context) error {
	return p.db.Close()
}
