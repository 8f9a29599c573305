// Package store holds the generic repositories used by every resource.
package store

import (
	"context"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repository is the capability set shared by all entity collections. Implementations apply
// their default scope (for example "active users only") to every read and write.
type Repository[T any] interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (T, error)
	Find(ctx context.Context, q query.Query) ([]T, error)
	FindOne(ctx context.Context, filter bson.M) (T, error)
	Create(ctx context.Context, doc T) (T, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, update bson.M) (T, error)
	UpdateOne(ctx context.Context, filter bson.M, update bson.M) (T, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (T, error)
}

// ParseID converts a hex identifier from a request into an ObjectID.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, &apperror.CastError{Path: "_id", Value: raw, Err: err}
	}
	return id, nil
}

func errNotFound() error {
	return apperror.NotFound("No document found with this ID")
}

// scoped merges the default scope into filter. Scope keys win over client keys.
func scoped(filter, scope bson.M) bson.M {
	out := make(bson.M, len(filter)+len(scope))
	for k, v := range filter {
		out[k] = v
	}
	for k, v := range scope {
		out[k] = v
	}
	return out
}
