package eventstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoStore is the production Event Store backend: insert maps to
// InsertOne, find maps to Find with a field-equality filter document.
type MongoStore struct {
	client   *mongo.Client
	database string
	timeout  time.Duration
	logger   *zap.Logger
}

// MongoConfig configures a MongoStore. Collection names the events
// collection that NewMongoStore indexes at startup; callers still pass the
// collection explicitly to Insert/Find on every call (eventsCollection in
// process/status.go), so this field's sole job is driving ensureIndexes.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// NewMongoStore connects to MongoDB and returns a MongoStore.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	store := &MongoStore{
		client:   client,
		database: cfg.Database,
		timeout:  cfg.Timeout,
		logger:   logger,
	}

	if cfg.Collection != "" {
		if err := store.ensureIndexes(connectCtx, cfg.Collection); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes on %s: %w", cfg.Collection, err)
		}
	}

	logger.Info("mongo event store connected", zap.String("database", cfg.Database), zap.String("collection", cfg.Collection))

	return store, nil
}

// ensureIndexes creates the indexes the append-only log is queried by:
// process_id lookups (status/reducer reads) ordered by occurred_at, and a
// uniqueness guard on (process_id, seq) matching the in-memory store's
// append semantics.
func (s *MongoStore) ensureIndexes(ctx context.Context, collection string) error {
	coll := s.client.Database(s.database).Collection(collection)

	lookupIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "process_id", Value: 1}, {Key: "occurred_at", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ctx, lookupIndex); err != nil {
		return err
	}

	seqIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "process_id", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, seqIndex); err != nil {
		return err
	}
	return nil
}

// Insert appends doc to collection via InsertOne.
func (s *MongoStore) Insert(ctx context.Context, collection string, doc Document) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coll := s.client.Database(s.database).Collection(collection)
	if _, err := coll.InsertOne(ctx, bson.M(doc)); err != nil {
		return fmt.Errorf("mongo insert into %s: %w", collection, err)
	}
	return nil
}

// Find streams documents matching filter via a field-equality Find query.
func (s *MongoStore) Find(ctx context.Context, collection string, filter Document, fn func(Document) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coll := s.client.Database(s.database).Collection(collection)
	cursor, err := coll.Find(ctx, bson.M(filter))
	if err != nil {
		return fmt.Errorf("mongo find in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("mongo decode document: %w", err)
		}
		if err := fn(Document(doc)); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
