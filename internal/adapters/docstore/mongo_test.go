package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/pralapin/school-service/internal/core/ports"
)

func TestMongoFilter(t *testing.T) {
	got, err := mongoFilter([]ports.Filter{
		ports.Eq("branch_id", "b1"),
		ports.Contains("target_branch_ids", "b2"),
		ports.In("status", []string{"present", "late"}),
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"branch_id":         "b1",
		"target_branch_ids": "b2",
		"status":            bson.M{"$in": []any{"present", "late"}},
	}, got)

	_, err = mongoFilter([]ports.Filter{{Field: "x", Op: ports.Op(42)}})
	assert.ErrorContains(t, err, "unsupported operator 42")
}

func TestMongoSort(t *testing.T) {
	got := mongoSort([]ports.SortField{{Field: "created_at", Desc: true}, {Field: "name"}})
	assert.Equal(t, bson.D{{Key: "created_at", Value: -1}, {Key: "name", Value: 1}}, got)
	assert.Empty(t, mongoSort(nil))
}

func TestToBSON_KeepsIntegersIntegral(t *testing.T) {
	doc := json.RawMessage(`{"id":"s1","roll":7,"fee":1250.5,"marks":[1,2.5],"address":{"pin":560001}}`)

	m, err := toBSON("s1", doc)
	require.NoError(t, err)
	assert.Equal(t, "s1", m["_id"])
	assert.Equal(t, int64(7), m["roll"])
	assert.Equal(t, 1250.5, m["fee"])
	assert.Equal(t, []any{int64(1), 2.5}, m["marks"])
	assert.Equal(t, map[string]any{"pin": int64(560001)}, m["address"])

	_, err = toBSON("s1", json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestFromBSON_DropsObjectID(t *testing.T) {
	raw, err := fromBSON(bson.M{"_id": "s1", "id": "s1", "name": "Asha"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s1","name":"Asha"}`, string(raw))
}
