package query

import (
	"context"
	"fmt"
	"time"

	"fleetwise/database"
	apperrors "fleetwise/errors"
	"fleetwise/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Result is the raw outcome of an executed intent: either a scalar count or
// a list of documents.
type Result struct {
	Scalar bool
	Count  int64
	Docs   []bson.D
}

// Executor runs intents against the document store.
type Executor struct {
	store   database.DocumentStore
	timeout time.Duration
	logger  *zap.Logger
}

func NewExecutor(store database.DocumentStore, timeout time.Duration, logger *zap.Logger) *Executor {
	return &Executor{store: store, timeout: timeout, logger: logger}
}

// Execute runs the intent under the executor's timeout. Failures are tagged
// ErrExecution and keep ErrTimeout when the deadline fired.
func (e *Executor) Execute(ctx context.Context, in *Intent) (*Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := e.execute(ctx, in)
	metrics.RecordExecution(string(in.Op), err)
	if err != nil {
		e.logger.Warn("Query execution failed",
			zap.String("collection", in.Collection),
			zap.String("op", string(in.Op)),
			zap.Error(err))
		return nil, apperrors.Kind(apperrors.ErrExecution, err)
	}

	if in.Len && !res.Scalar {
		res = &Result{Scalar: true, Count: int64(len(res.Docs))}
	}
	return res, nil
}

func (e *Executor) execute(ctx context.Context, in *Intent) (*Result, error) {
	switch in.Op {
	case OpFind:
		if in.Len && in.Skip == 0 && in.Limit == 0 {
			n, err := e.store.Count(ctx, in.Collection, in.Filter)
			if err != nil {
				return nil, err
			}
			return &Result{Scalar: true, Count: n}, nil
		}
		docs, err := e.store.Find(ctx, in.Collection, in.Filter, database.FindOptions{
			Projection: in.Projection,
			Sort:       in.Sort,
			Skip:       in.Skip,
			Limit:      in.Limit,
		})
		if err != nil {
			return nil, err
		}
		return &Result{Docs: docs}, nil

	case OpFindOne:
		docs, err := e.store.Find(ctx, in.Collection, in.Filter, database.FindOptions{
			Projection: in.Projection,
			Limit:      1,
		})
		if err != nil {
			return nil, err
		}
		return &Result{Docs: docs}, nil

	case OpCount:
		n, err := e.store.Count(ctx, in.Collection, in.Filter)
		if err != nil {
			return nil, err
		}
		return &Result{Scalar: true, Count: n}, nil

	case OpDistinct:
		// $unwind flattens array values the way distinct does; scalars pass through as one element.
		pipeline := []bson.D{
			{{Key: "$match", Value: orEmpty(in.Filter)}},
			{{Key: "$project", Value: bson.D{{Key: "_v", Value: "$" + in.Field}}}},
			{{Key: "$unwind", Value: "$_v"}},
			{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$_v"}}}},
			{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		}
		groups, err := e.store.Aggregate(ctx, in.Collection, pipeline)
		if err != nil {
			return nil, err
		}
		docs := make([]bson.D, 0, len(groups))
		for _, g := range groups {
			var v interface{}
			if len(g) > 0 {
				v = g[0].Value
			}
			docs = append(docs, bson.D{{Key: in.Field, Value: v}})
		}
		return &Result{Docs: docs}, nil

	case OpAggregate:
		docs, err := e.store.Aggregate(ctx, in.Collection, in.Pipeline)
		if err != nil {
			return nil, err
		}
		return &Result{Docs: docs}, nil
	}
	return nil, fmt.Errorf("unsupported operation %q", in.Op)
}

func orEmpty(d bson.D) bson.D {
	if d == nil {
		return bson.D{}
	}
	return d
}
