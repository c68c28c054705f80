package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Mongo stores documents with their id as _id.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	cb     *gobreaker.CircuitBreaker
}

var _ ports.DocumentStore = (*Mongo)(nil)

func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &Mongo{
		client: client,
		db:     client.Database(dbName),
		cb:     config.NewCircuitBreaker("MongoDB"),
	}, nil
}

func mongoFilter(filters []ports.Filter) (bson.M, error) {
	out := bson.M{}
	for _, f := range filters {
		switch f.Op {
		case ports.OpEq, ports.OpContains:
			// Mongo equality on an array field already means "contains".
			out[f.Field] = f.Value
		case ports.OpIn:
			out[f.Field] = bson.M{"$in": f.Value}
		default:
			return nil, fmt.Errorf("docstore: unsupported operator %d", f.Op)
		}
	}
	return out, nil
}

func mongoSort(fields []ports.SortField) bson.D {
	sort := bson.D{}
	for _, s := range fields {
		dir := 1
		if s.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: s.Field, Value: dir})
	}
	return sort
}

// toBSON decodes a JSON document keeping integers integral.
func toBSON(id string, doc json.RawMessage) (bson.M, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	out := normalizeNumbers(m).(map[string]any)
	out["_id"] = id
	return bson.M(out), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	}
	return v
}

func fromBSON(m bson.M) (json.RawMessage, error) {
	delete(m, "_id")
	return json.Marshal(m)
}

func (s *Mongo) FindOne(ctx context.Context, collection string, q ports.Query) (json.RawMessage, error) {
	q.Limit = 1
	docs, err := s.Find(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, collection)
	}
	return docs[0], nil
}

func (s *Mongo) Find(ctx context.Context, collection string, q ports.Query) ([]json.RawMessage, error) {
	filter, err := mongoFilter(q.Filters)
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(mongoSort(q.Sort))
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	result, err := s.cb.Execute(func() (interface{}, error) {
		cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)

		var docs []json.RawMessage
		for cur.Next(ctx) {
			var m bson.M
			if err := cur.Decode(&m); err != nil {
				return nil, err
			}
			raw, err := fromBSON(m)
			if err != nil {
				return nil, err
			}
			docs = append(docs, raw)
		}
		return docs, cur.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, config.Unavailable(err))
	}
	return result.([]json.RawMessage), nil
}

func (s *Mongo) Count(ctx context.Context, collection string, q ports.Query) (int64, error) {
	filter, err := mongoFilter(q.Filters)
	if err != nil {
		return 0, err
	}
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.db.Collection(collection).CountDocuments(ctx, filter)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, config.Unavailable(err))
	}
	return result.(int64), nil
}

func (s *Mongo) Insert(ctx context.Context, collection, id string, doc json.RawMessage) error {
	m, err := toBSON(id, doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = s.cb.Execute(func() (interface{}, error) {
		_, err := s.db.Collection(collection).InsertOne(ctx, m)
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s/%s already exists", domain.ErrConflict, collection, id)
		}
		return nil, err
	})
	return config.Unavailable(err)
}

func (s *Mongo) Save(ctx context.Context, collection, id string, doc json.RawMessage) error {
	m, err := toBSON(id, doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = s.cb.Execute(func() (interface{}, error) {
		return s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, m, options.Replace().SetUpsert(true))
	})
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", collection, id, config.Unavailable(err))
	}
	return nil
}

func (s *Mongo) Delete(ctx context.Context, collection, id string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, id)
		}
		return nil, nil
	})
	return config.Unavailable(err)
}

func (s *Mongo) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Mongo) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
