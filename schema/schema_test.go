package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memStore is an in-memory Store. FindOne understands only the empty filter
// and single-field {$exists: true} filters.
type memStore struct {
	order       []string
	docs        map[string][]bson.D
	aggregated  map[string][]bson.D
	aggregateOn []string
}

func (m *memStore) ListCollections(ctx context.Context) ([]string, error) {
	return m.order, nil
}

func (m *memStore) FindOne(ctx context.Context, collection string, filter bson.D) (bson.D, error) {
	for _, doc := range m.docs[collection] {
		if len(filter) == 0 {
			return doc, nil
		}
		for _, e := range doc {
			if e.Key == filter[0].Key {
				return doc, nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.D, error) {
	m.aggregateOn = append(m.aggregateOn, collection)
	if docs, ok := m.aggregated[collection]; ok {
		return docs, nil
	}
	if len(m.docs[collection]) == 0 {
		return nil, nil
	}
	return m.docs[collection][:1], nil
}

func TestBuildCapsFieldsInOrder(t *testing.T) {
	doc := bson.D{}
	for i := 1; i <= 25; i++ {
		doc = append(doc, bson.E{Key: fmt.Sprintf("f%02d", i), Value: i})
	}
	store := &memStore{order: []string{"wide"}, docs: map[string][]bson.D{"wide": {doc}}}

	catalog, err := NewInferencer(store, 20, "tripplanners", zap.NewNop()).Build(context.Background())
	require.NoError(t, err)

	fields := catalog.Fields["wide"]
	require.Len(t, fields, 20)
	for i, f := range fields {
		assert.Equal(t, fmt.Sprintf("f%02d", i+1), f.Name)
	}
}

func TestBuildCapIsSharedAcrossNesting(t *testing.T) {
	nested := bson.D{}
	for i := 1; i <= 15; i++ {
		nested = append(nested, bson.E{Key: fmt.Sprintf("n%02d", i), Value: "x"})
	}
	doc := bson.D{
		{Key: "a", Value: 1},
		{Key: "inner", Value: nested},
		{Key: "b", Value: 2},
		{Key: "c", Value: 3},
		{Key: "d", Value: 4},
		{Key: "e", Value: 5},
		{Key: "z", Value: 6},
	}
	store := &memStore{order: []string{"c"}, docs: map[string][]bson.D{"c": {doc}}}

	catalog, err := NewInferencer(store, 20, "", zap.NewNop()).Build(context.Background())
	require.NoError(t, err)

	fields := catalog.Fields["c"]
	require.Len(t, fields, 20)
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, "inner.n01", fields[1].Name)
	assert.Equal(t, "inner.n15", fields[15].Name)
	assert.Equal(t, "e", fields[19].Name)
}

func TestBuildWalksValues(t *testing.T) {
	fleetID := primitive.NewObjectID()
	trip := bson.D{
		{Key: "trip_no", Value: "D#20250101 - 0001"},
		{Key: "status", Value: int32(1)},
		{Key: "genericdata", Value: bson.D{
			{Key: "fleet", Value: fleetID},
			{Key: "driver_name", Value: "Arun"},
		}},
		{Key: "orders", Value: bson.D{
			{Key: "delivery", Value: bson.A{
				bson.D{{Key: "item", Value: "Milk"}, {Key: "qty", Value: int32(40)}},
				bson.D{{Key: "other", Value: "ignored"}},
			}},
			{Key: "sale", Value: bson.A{}},
		}},
		{Key: "tags", Value: bson.A{"a", "b"}},
	}
	fleet := bson.D{{Key: "_id", Value: fleetID}, {Key: "fleet", Value: "Fleet A"}}
	store := &memStore{
		order: []string{"tripplanners", "fleets", "empty"},
		docs: map[string][]bson.D{
			"tripplanners": {trip},
			"fleets":       {fleet},
		},
	}

	catalog, err := NewInferencer(store, 20, "tripplanners", zap.NewNop()).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"tripplanners", "fleets"}, catalog.Collections)
	assert.Equal(t, []string{"tripplanners"}, store.aggregateOn)

	want := []Field{
		{Name: "trip_no", Type: "string"},
		{Name: "status", Type: "int32"},
		{Name: "genericdata.fleet", Type: ReferenceType, References: "fleets"},
		{Name: "genericdata.driver_name", Type: "string"},
		{Name: "orders.delivery.item", Type: "string"},
		{Name: "orders.delivery.qty", Type: "int32"},
		{Name: "orders.sale", Type: "array"},
		{Name: "tags", Type: "array"},
	}
	assert.Equal(t, want, catalog.Fields["tripplanners"])

	assert.Equal(t, Field{Name: "_id", Type: ReferenceType, References: "fleets"}, catalog.Fields["fleets"][0])
	assert.Equal(t, Field{Name: "fleet", Type: "string"}, catalog.Fields["fleets"][1])
}

func TestBuildUnresolvedReference(t *testing.T) {
	doc := bson.D{{Key: "owner", Value: primitive.NewObjectID()}}
	store := &memStore{order: []string{"things"}, docs: map[string][]bson.D{"things": {doc}}}

	catalog, err := NewInferencer(store, 20, "", zap.NewNop()).Build(context.Background())
	require.NoError(t, err)

	// The sampled document itself carries "owner".
	assert.Equal(t, "things", catalog.Fields["things"][0].References)

	store.docs["things"] = []bson.D{{{Key: "nested", Value: bson.D{{Key: "owner", Value: primitive.NewObjectID()}}}}}
	catalog, err = NewInferencer(store, 20, "", zap.NewNop()).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", catalog.Fields["things"][0].References)
}

func TestCatalogJSON(t *testing.T) {
	c := newCatalog()
	c.add("b", []Field{{Name: "x", Type: "string"}})
	c.add("a", []Field{{Name: "y", Type: ReferenceType}})

	out, err := c.JSON()
	require.NoError(t, err)
	assert.Less(t, indexOf(out, `"b"`), indexOf(out, `"a"`), "listing order preserved")

	var decoded map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "x", decoded["b"][0]["name"])
	_, hasRef := decoded["b"][0]["references"]
	assert.False(t, hasRef)
	ref, hasRef := decoded["a"][0]["references"]
	assert.True(t, hasRef)
	assert.Nil(t, ref)

	cut, err := c.Truncated(10)
	require.NoError(t, err)
	assert.Equal(t, out[:10], cut)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
