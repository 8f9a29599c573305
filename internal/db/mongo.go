package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	Users    = "users"
	Tours    = "tours"
	Reviews  = "reviews"
	Bookings = "bookings"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique and lookup indexes the app relies on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		Users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "passwordResetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		Tours: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
			{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
		},
		Reviews: {
			{Keys: bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		Bookings: {
			{Keys: bson.D{{Key: "user", Value: 1}}},
			{Keys: bson.D{{Key: "checkoutSession", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
	}
	for name, models := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
