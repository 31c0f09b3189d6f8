package database

import (
	"context"
	"errors"
	"fmt"

	apperrors "fleetwise/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// FindOptions narrows a Find call. Zero values mean "not set".
type FindOptions struct {
	Projection bson.D
	Sort       bson.D
	Skip       int64
	Limit      int64
}

// DocumentStore is the read surface the query pipeline needs from the fleet
// database. Documents are returned as bson.D so field order survives.
type DocumentStore interface {
	ListCollections(ctx context.Context) ([]string, error)
	// FindOne returns nil, nil when no document matches.
	FindOne(ctx context.Context, collection string, filter bson.D) (bson.D, error)
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.D, error)
	Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]bson.D, error)
	Count(ctx context.Context, collection string, filter bson.D) (int64, error)
}

// MongoStore is the MongoDB-backed DocumentStore. The underlying client is
// pooled and safe for concurrent use.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

func NewMongoStore(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.Kind(apperrors.ErrDatabaseOperation, fmt.Errorf("connect to mongo: %w", err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.Kind(apperrors.ErrDatabaseOperation, fmt.Errorf("ping mongo: %w", err))
	}
	logger.Info("Successfully connected to MongoDB", zap.String("database", database))
	return &MongoStore{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, storeError(ctx, "list collections", err)
	}
	return names, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter bson.D) (bson.D, error) {
	var doc bson.D
	err := s.db.Collection(collection).FindOne(ctx, orEmpty(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(ctx, "find one in "+collection, err)
	}
	return doc, nil
}

func (s *MongoStore) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.D, error) {
	cur, err := s.db.Collection(collection).Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		return nil, storeError(ctx, "aggregate "+collection, err)
	}
	docs := []bson.D{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError(ctx, "read aggregate cursor for "+collection, err)
	}
	return docs, nil
}

func (s *MongoStore) Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]bson.D, error) {
	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cur, err := s.db.Collection(collection).Find(ctx, orEmpty(filter), findOpts)
	if err != nil {
		return nil, storeError(ctx, "find in "+collection, err)
	}
	docs := []bson.D{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeError(ctx, "read find cursor for "+collection, err)
	}
	return docs, nil
}

func (s *MongoStore) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, orEmpty(filter))
	if err != nil {
		return 0, storeError(ctx, "count "+collection, err)
	}
	return n, nil
}

func orEmpty(filter bson.D) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

// storeError tags err as a timeout when the context deadline fired, and as a
// database failure otherwise.
func storeError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return apperrors.Kind(apperrors.ErrTimeout, fmt.Errorf("%s: %w", op, err))
	}
	return apperrors.Kind(apperrors.ErrDatabaseOperation, fmt.Errorf("%s: %w", op, err))
}
