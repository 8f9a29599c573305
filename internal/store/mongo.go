package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arzan03/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Collection is a Repository backed by a MongoDB collection.
type Collection[T any] struct {
	coll    *mongo.Collection
	scope   bson.M
	timeout time.Duration
}

// Option configures a Collection.
type Option func(*settings)

type settings struct {
	scope   bson.M
	timeout time.Duration
	unique  []string
}

// WithScope adds a filter that every query implicitly includes.
func WithScope(scope bson.M) Option {
	return func(s *settings) { s.scope = scope }
}

// WithTimeout bounds every database call.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithUnique declares fields whose values must be unique. Mongo enforces this through indexes
// created at startup; the in-memory store checks it itself.
func WithUnique(fields ...string) Option {
	return func(s *settings) { s.unique = append(s.unique, fields...) }
}

func newSettings(opts []Option) settings {
	s := settings{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func NewCollection[T any](coll *mongo.Collection, opts ...Option) *Collection[T] {
	s := newSettings(opts)
	return &Collection[T]{coll: coll, scope: s.scope, timeout: s.timeout}
}

func (c *Collection[T]) FindByID(ctx context.Context, id primitive.ObjectID) (T, error) {
	return c.FindOne(ctx, bson.M{"_id": id})
}

func (c *Collection[T]) Find(ctx context.Context, q query.Query) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cursor, err := c.coll.Find(ctx, scoped(q.Filter(), c.scope), q.FindOptions())
	if err != nil {
		return nil, fmt.Errorf("%s.Find: %w", c.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s.Find decode: %w", c.coll.Name(), err)
	}
	return docs, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, filter bson.M) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc T
	err := c.coll.FindOne(ctx, scoped(filter, c.scope)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, errNotFound()
	}
	if err != nil {
		return doc, fmt.Errorf("%s.FindOne: %w", c.coll.Name(), err)
	}
	return doc, nil
}

// Create inserts doc and reads it back so callers see stored defaults and the generated id.
func (c *Collection[T]) Create(ctx context.Context, doc T) (T, error) {
	insertCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.coll.InsertOne(insertCtx, doc)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s.Create: %w", c.coll.Name(), err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s.Create: unexpected id type %T", c.coll.Name(), res.InsertedID)
	}

	var stored T
	readCtx, cancelRead := context.WithTimeout(ctx, c.timeout)
	defer cancelRead()
	if err := c.coll.FindOne(readCtx, bson.M{"_id": id}).Decode(&stored); err != nil {
		return stored, fmt.Errorf("%s.Create read back: %w", c.coll.Name(), err)
	}
	return stored, nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id primitive.ObjectID, update bson.M) (T, error) {
	return c.UpdateOne(ctx, bson.M{"_id": id}, update)
}

// UpdateOne applies update to the first document matching filter and returns the new version.
// The match and the write are a single atomic operation.
func (c *Collection[T]) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc T
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := c.coll.FindOneAndUpdate(ctx, scoped(filter, c.scope), update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, errNotFound()
	}
	if err != nil {
		return doc, fmt.Errorf("%s.UpdateOne: %w", c.coll.Name(), err)
	}
	return doc, nil
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id primitive.ObjectID) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc T
	err := c.coll.FindOneAndDelete(ctx, scoped(bson.M{"_id": id}, c.scope)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, errNotFound()
	}
	if err != nil {
		return doc, fmt.Errorf("%s.DeleteByID: %w", c.coll.Name(), err)
	}
	return doc, nil
}
