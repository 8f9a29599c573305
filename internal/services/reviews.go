package services

import (
	"context"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/arzan03/tourbook/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewService struct {
	reviews store.Repository[models.Review]
	tours   store.Repository[models.Tour]
	log     logging.Logger
}

func NewReviewService(reviews store.Repository[models.Review], tours store.Repository[models.Tour], log logging.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, tours: tours, log: log}
}

// ForTour lists every review of a tour, newest first.
func (s *ReviewService) ForTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Review, error) {
	return s.reviews.Find(ctx, unpaged(models.ReviewSchema).Where("tour", tourID))
}

// RecalculateRatings refreshes the tour's rating summary from its reviews. Averages are rounded
// to one decimal; a tour without reviews goes back to the default.
func (s *ReviewService) RecalculateRatings(ctx context.Context, tourID primitive.ObjectID) error {
	reviews, err := s.ForTour(ctx, tourID)
	if err != nil {
		return err
	}

	avg := models.DefaultRatingsAverage
	if len(reviews) > 0 {
		var sum float64
		for _, r := range reviews {
			sum += r.Rating
		}
		avg = math.Round(sum/float64(len(reviews))*10) / 10
	}

	_, err = s.tours.UpdateByID(ctx, tourID, bson.M{"$set": bson.M{
		"ratingsAverage":  avg,
		"ratingsQuantity": len(reviews),
	}})
	if apperror.IsKind(err, apperror.KindNotFound) {
		// secret or deleted tour
		s.log.Warn(ctx, "ratings not updated, tour not visible", "tour", tourID.Hex())
		return nil
	}
	return err
}

// unpaged is a query with the default sort and no pagination.
func unpaged(schema query.Schema) query.Query {
	q, err := query.NewBuilder(schema, query.Options{}).Build(url.Values{})
	if err != nil {
		panic(err) // empty parameters cannot fail validation
	}
	return q
}

// ReviewInput is the writable part of a review.
type ReviewInput struct {
	Review *string  `json:"review" validate:"omitempty,min=1,max=1000"`
	Rating *float64 `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Tour   string   `json:"tour" validate:"omitempty,mongodb"`
	User   string   `json:"user" validate:"omitempty,mongodb"`
}

// NewReview validates create input. tourID and userID fill in the references the body omits.
func (in ReviewInput) NewReview(tourID, userID primitive.ObjectID, now time.Time) (models.Review, error) {
	if err := Validate(in); err != nil {
		return models.Review{}, err
	}
	if in.Review == nil || strings.TrimSpace(*in.Review) == "" {
		return models.Review{}, apperror.Validation("Review can not be empty!")
	}
	if in.Rating == nil {
		return models.Review{}, apperror.Validation("A review must have a rating")
	}
	if tourID.IsZero() && in.Tour != "" {
		tourID, _ = primitive.ObjectIDFromHex(in.Tour)
	}
	if userID.IsZero() && in.User != "" {
		userID, _ = primitive.ObjectIDFromHex(in.User)
	}
	if tourID.IsZero() {
		return models.Review{}, apperror.Validation("Review must belong to a tour.")
	}
	if userID.IsZero() {
		return models.Review{}, apperror.Validation("Review must belong to a user.")
	}
	return models.Review{
		Review:    strings.TrimSpace(*in.Review),
		Rating:    *in.Rating,
		Tour:      tourID,
		User:      userID,
		CreatedAt: now.UTC(),
	}, nil
}

// Fields returns the $set document for an update. References cannot be moved.
func (in ReviewInput) Fields() (bson.M, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	set := bson.M{}
	if in.Review != nil {
		set["review"] = strings.TrimSpace(*in.Review)
	}
	setIf(set, "rating", in.Rating)
	return set, nil
}
