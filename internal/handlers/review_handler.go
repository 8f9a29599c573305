package handlers

import (
	"context"
	"time"

	"github.com/arzan03/tourbook/internal/middleware"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewReviewResource serves /reviews and /tours/:tourId/reviews. Every write refreshes the
// tour's rating summary.
func NewReviewResource(repo store.Repository[models.Review], svc *services.ReviewService, opts query.Options) Resource[models.Review] {
	return Resource[models.Review]{
		Repo:    repo,
		Builder: query.NewBuilder(models.ReviewSchema, opts),
		Parents: map[string]string{"tourId": "tour"},
		Create: func(c *fiber.Ctx) (models.Review, error) {
			var in services.ReviewInput
			if err := parseBody(c, &in); err != nil {
				return models.Review{}, err
			}
			var tourID, userID primitive.ObjectID
			if raw := c.Params("tourId"); raw != "" {
				id, err := store.ParseID(raw)
				if err != nil {
					return models.Review{}, err
				}
				tourID = id
			}
			if me, ok := middleware.CurrentUser(c); ok {
				userID = me.ID
			}
			return in.NewReview(tourID, userID, time.Now())
		},
		Update: func(c *fiber.Ctx, _ primitive.ObjectID) (bson.M, error) {
			var in services.ReviewInput
			if err := parseBody(c, &in); err != nil {
				return nil, err
			}
			return in.Fields()
		},
		AfterWrite: func(ctx context.Context, r models.Review) error {
			return svc.RecalculateRatings(ctx, r.Tour)
		},
	}
}
