package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetwise/database"
	apperrors "fleetwise/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingStore struct {
	docs      []bson.D
	count     int64
	err       error
	findOpts  database.FindOptions
	pipeline  []bson.D
	lastCall  string
	lastColl  string
	lastQuery bson.D
}

func (s *recordingStore) ListCollections(ctx context.Context) ([]string, error) {
	return nil, s.err
}

func (s *recordingStore) FindOne(ctx context.Context, collection string, filter bson.D) (bson.D, error) {
	s.lastCall, s.lastColl, s.lastQuery = "findOne", collection, filter
	if len(s.docs) == 0 {
		return nil, s.err
	}
	return s.docs[0], s.err
}

func (s *recordingStore) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.D, error) {
	s.lastCall, s.lastColl, s.pipeline = "aggregate", collection, pipeline
	return s.docs, s.err
}

func (s *recordingStore) Find(ctx context.Context, collection string, filter bson.D, opts database.FindOptions) ([]bson.D, error) {
	s.lastCall, s.lastColl, s.lastQuery, s.findOpts = "find", collection, filter, opts
	return s.docs, s.err
}

func (s *recordingStore) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	s.lastCall, s.lastColl, s.lastQuery = "count", collection, filter
	return s.count, s.err
}

func mustParse(t *testing.T, q string) *Intent {
	t.Helper()
	in, err := ParseIntent(q)
	require.NoError(t, err)
	return in
}

func TestExecute(t *testing.T) {
	docs := []bson.D{
		{{Key: "trip_no", Value: "D#1"}},
		{{Key: "trip_no", Value: "D#2"}},
	}

	t.Run("find passes options", func(t *testing.T) {
		store := &recordingStore{docs: docs}
		ex := NewExecutor(store, time.Second, zap.NewNop())
		res, err := ex.Execute(context.Background(), mustParse(t, `db.tripplanners.find({status: 1}).sort({trip_no: 1}).limit(2)`))
		require.NoError(t, err)
		assert.False(t, res.Scalar)
		assert.Len(t, res.Docs, 2)
		assert.Equal(t, "find", store.lastCall)
		assert.Equal(t, int64(2), store.findOpts.Limit)
		assert.Equal(t, bson.D{{Key: "trip_no", Value: int32(1)}}, store.findOpts.Sort)
	})

	t.Run("count", func(t *testing.T) {
		store := &recordingStore{count: 7}
		res, err := NewExecutor(store, 0, zap.NewNop()).Execute(context.Background(), mustParse(t, `db.fleets.countDocuments({})`))
		require.NoError(t, err)
		assert.True(t, res.Scalar)
		assert.Equal(t, int64(7), res.Count)
	})

	t.Run("len of unbounded find counts in the store", func(t *testing.T) {
		store := &recordingStore{count: 42}
		res, err := NewExecutor(store, 0, zap.NewNop()).Execute(context.Background(), mustParse(t, `len(list(db.tripplanners.find({})))`))
		require.NoError(t, err)
		assert.Equal(t, "count", store.lastCall)
		assert.Equal(t, int64(42), res.Count)
	})

	t.Run("len of aggregate counts documents", func(t *testing.T) {
		store := &recordingStore{docs: docs}
		res, err := NewExecutor(store, 0, zap.NewNop()).Execute(context.Background(), mustParse(t, `len(db.t.aggregate([{$match: {}}]))`))
		require.NoError(t, err)
		assert.True(t, res.Scalar)
		assert.Equal(t, int64(2), res.Count)
	})

	t.Run("distinct groups by field", func(t *testing.T) {
		store := &recordingStore{docs: []bson.D{{{Key: "_id", Value: "Arun"}}, {{Key: "_id", Value: "Priya"}}}}
		res, err := NewExecutor(store, 0, zap.NewNop()).Execute(context.Background(), mustParse(t, `db.tripplanners.distinct("genericdata.driver_name")`))
		require.NoError(t, err)
		require.Len(t, store.pipeline, 5)
		assert.Equal(t, bson.D{{Key: "_id", Value: "$_v"}}, store.pipeline[3][0].Value)
		assert.Equal(t, []bson.D{
			{{Key: "genericdata.driver_name", Value: "Arun"}},
			{{Key: "genericdata.driver_name", Value: "Priya"}},
		}, res.Docs)
	})

	t.Run("distinct flattens array fields", func(t *testing.T) {
		store := &recordingStore{docs: []bson.D{{{Key: "_id", Value: "Ghee"}}, {{Key: "_id", Value: "Milk"}}}}
		res, err := NewExecutor(store, 0, zap.NewNop()).Execute(context.Background(), mustParse(t, `db.tripplanners.distinct("orders.delivery.item", {status: 5})`))
		require.NoError(t, err)
		assert.Equal(t, []bson.D{
			{{Key: "$match", Value: bson.D{{Key: "status", Value: int32(5)}}}},
			{{Key: "$project", Value: bson.D{{Key: "_v", Value: "$orders.delivery.item"}}}},
			{{Key: "$unwind", Value: "$_v"}},
			{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$_v"}}}},
			{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		}, store.pipeline)
		assert.Equal(t, []bson.D{
			{{Key: "orders.delivery.item", Value: "Ghee"}},
			{{Key: "orders.delivery.item", Value: "Milk"}},
		}, res.Docs)
	})

	t.Run("store failure is an execution error", func(t *testing.T) {
		store := &recordingStore{err: apperrors.Kind(apperrors.ErrTimeout, errors.New("deadline"))}
		_, err := NewExecutor(store, 0, zap.NewNop()).Execute(context.Background(), mustParse(t, `db.fleets.find()`))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrExecution))
		assert.True(t, apperrors.IsTimeout(err))
	})
}

func TestNormalize(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("count", func(t *testing.T) {
		rows := Normalize(&Result{Scalar: true, Count: 3})
		assert.Equal(t, []bson.D{{{Key: "count", Value: int64(3)}}}, rows)
	})

	t.Run("nested values", func(t *testing.T) {
		res := &Result{Docs: []bson.D{{
			{Key: "_id", Value: oid},
			{Key: "when", Value: primitive.NewDateTimeFromTime(when)},
			{Key: "nested", Value: bson.D{{Key: "ref", Value: oid}, {Key: "n", Value: int32(1)}}},
			{Key: "list", Value: bson.A{oid, "x", bson.D{{Key: "at", Value: primitive.NewDateTimeFromTime(when)}}}},
		}}}
		rows := Normalize(res)
		want := []bson.D{{
			{Key: "_id", Value: oid.Hex()},
			{Key: "when", Value: "2025-03-04T05:06:07Z"},
			{Key: "nested", Value: bson.D{{Key: "ref", Value: oid.Hex()}, {Key: "n", Value: int32(1)}}},
			{Key: "list", Value: bson.A{oid.Hex(), "x", bson.D{{Key: "at", Value: "2025-03-04T05:06:07Z"}}}},
		}}
		assert.Equal(t, want, rows)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Normalize(&Result{}))
	})
}

func TestRowsJSONAndTable(t *testing.T) {
	rows := []bson.D{
		{{Key: "b", Value: "x"}, {Key: "a", Value: int32(1)}},
		{{Key: "a", Value: int32(2)}, {Key: "c", Value: bson.D{{Key: "d", Value: true}}}},
	}

	out, err := RowsJSON(rows)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"b\": \"x\",\n    \"a\": 1\n  },\n  {\n    \"a\": 2,\n    \"c\": {\n      \"d\": true\n    }\n  }\n]", out)

	table := ToTable(rows)
	assert.Equal(t, []string{"b", "a", "c"}, table.Columns)
	assert.Equal(t, [][]any{
		{"x", int32(1), nil},
		{nil, int32(2), `{"d":true}`},
	}, table.Rows)
}
