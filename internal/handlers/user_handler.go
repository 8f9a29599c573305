package handlers

import (
	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewUserResource is the admin view of accounts. Accounts are only created through signup.
func NewUserResource(repo store.Repository[models.User], opts query.Options) Resource[models.User] {
	return Resource[models.User]{
		Repo:    repo,
		Builder: query.NewBuilder(models.UserSchema, opts),
		Create: func(c *fiber.Ctx) (models.User, error) {
			return models.User{}, apperror.Validation("This route is not defined! Please use /signup instead.")
		},
		Update: func(c *fiber.Ctx, _ primitive.ObjectID) (bson.M, error) {
			var in services.UserInput
			if err := parseBody(c, &in); err != nil {
				return nil, err
			}
			return in.Fields()
		},
	}
}
