package services

import (
	"context"

	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Directory looks up public profiles of active users.
type Directory struct {
	users store.Repository[models.User]
}

func NewDirectory(users store.Repository[models.User]) *Directory {
	return &Directory{users: users}
}

// ByIDs returns the active users among ids, keyed by id.
func (d *Directory) ByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in := make(bson.A, 0, len(ids))
	for _, id := range ids {
		in = append(in, id)
	}
	users, err := d.users.Find(ctx, unpaged(models.UserSchema).Where("_id", bson.M{"$in": in}))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = scrub(u)
	}
	return out, nil
}
