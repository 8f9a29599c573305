package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TourInput is the writable part of a tour.
type TourInput struct {
	Name            *string            `json:"name" validate:"omitempty,min=10,max=40"`
	Duration        *int               `json:"duration" validate:"omitempty,gt=0"`
	MaxGroupSize    *int               `json:"maxGroupSize" validate:"omitempty,gt=0"`
	Difficulty      *models.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium difficult"`
	RatingsAverage  *float64           `json:"ratingsAverage" validate:"omitempty,gte=1,lte=5"`
	Price           *float64           `json:"price" validate:"omitempty,gt=0"`
	PriceDiscount   *float64           `json:"priceDiscount" validate:"omitempty,gte=0"`
	Summary         *string            `json:"summary" validate:"omitempty,max=300"`
	Description     *string            `json:"description"`
	ImageCover      *string            `json:"imageCover"`
	Images          []string           `json:"images"`
	StartDates      []time.Time        `json:"startDates"`
	SecretTour      *bool              `json:"secretTour"`
	StartLocation   *models.Location   `json:"startLocation"`
	Locations       []models.Location  `json:"locations"`
	Guides          []string           `json:"guides" validate:"omitempty,dive,mongodb"`
}

// TourStats is one difficulty group of the stats report.
type TourStats struct {
	Difficulty models.Difficulty `json:"difficulty"`
	NumTours   int               `json:"numTours"`
	NumRatings int               `json:"numRatings"`
	AvgRating  float64           `json:"avgRating"`
	AvgPrice   float64           `json:"avgPrice"`
	MinPrice   float64           `json:"minPrice"`
	MaxPrice   float64           `json:"maxPrice"`
}

// MonthPlan lists the tours starting in one month.
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

type TourService struct {
	tours store.Repository[models.Tour]
}

func NewTourService(tours store.Repository[models.Tour]) *TourService {
	return &TourService{tours: tours}
}

// BySlug finds a visible tour by its URL slug.
func (s *TourService) BySlug(ctx context.Context, tourSlug string) (models.Tour, error) {
	return s.tours.FindOne(ctx, bson.M{"slug": tourSlug})
}

// Slug derives the URL slug stored with a tour.
func Slug(name string) string {
	return slug.Make(name)
}

// Stats groups tours rated 4.5 or better by difficulty, ordered by average price.
func (s *TourService) Stats(ctx context.Context) ([]TourStats, error) {
	tours, err := s.tours.Find(ctx, unpaged(models.TourSchema).Where("ratingsAverage", bson.M{"$gte": 4.5}))
	if err != nil {
		return nil, err
	}

	groups := map[models.Difficulty]*TourStats{}
	ratingSum := map[models.Difficulty]float64{}
	priceSum := map[models.Difficulty]float64{}
	for _, t := range tours {
		g, ok := groups[t.Difficulty]
		if !ok {
			g = &TourStats{Difficulty: t.Difficulty, MinPrice: t.Price, MaxPrice: t.Price}
			groups[t.Difficulty] = g
		}
		g.NumTours++
		g.NumRatings += t.RatingsQuantity
		ratingSum[t.Difficulty] += t.RatingsAverage
		priceSum[t.Difficulty] += t.Price
		g.MinPrice = math.Min(g.MinPrice, t.Price)
		g.MaxPrice = math.Max(g.MaxPrice, t.Price)
	}

	out := make([]TourStats, 0, len(groups))
	for d, g := range groups {
		g.AvgRating = math.Round(ratingSum[d]/float64(g.NumTours)*10) / 10
		g.AvgPrice = math.Round(priceSum[d]/float64(g.NumTours)*100) / 100
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AvgPrice < out[j].AvgPrice })
	return out, nil
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	tours, err := s.tours.Find(ctx, unpaged(models.TourSchema).Where("startDates", bson.M{"$gte": from, "$lt": to}))
	if err != nil {
		return nil, err
	}

	months := map[int]*MonthPlan{}
	for _, t := range tours {
		for _, d := range t.StartDates {
			if d.Before(from) || !d.Before(to) {
				continue
			}
			m := int(d.Month())
			p, ok := months[m]
			if !ok {
				p = &MonthPlan{Month: m}
				months[m] = p
			}
			p.NumTourStarts++
			p.Tours = append(p.Tours, t.Name)
		}
	}

	out := make([]MonthPlan, 0, len(months))
	for _, p := range months {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NumTourStarts != out[j].NumTourStarts {
			return out[i].NumTourStarts > out[j].NumTourStarts
		}
		return out[i].Month < out[j].Month
	})
	if len(out) > 12 {
		out = out[:12]
	}
	return out, nil
}

// Check validates the input. Creating requires every mandatory field.
func (in TourInput) Check(creating bool) error {
	if err := Validate(in); err != nil {
		return err
	}
	if creating {
		switch {
		case in.Name == nil:
			return apperror.Validation("A tour must have a name")
		case in.Duration == nil:
			return apperror.Validation("A tour must have a duration")
		case in.MaxGroupSize == nil:
			return apperror.Validation("A tour must have a group size")
		case in.Difficulty == nil:
			return apperror.Validation("A tour must have a difficulty")
		case in.Price == nil:
			return apperror.Validation("A tour must have a price")
		case in.Summary == nil:
			return apperror.Validation("A tour must have a summary")
		case in.ImageCover == nil:
			return apperror.Validation("A tour must have a cover image")
		}
	}
	// The price may be absent on update; the stored one is checked by CheckDiscount.
	if in.PriceDiscount != nil && in.Price != nil && *in.PriceDiscount >= *in.Price {
		return apperror.Validation(fmt.Sprintf("Discount price (%v) should be below regular price", *in.PriceDiscount))
	}
	return nil
}

// CheckDiscount validates the discount against the price a tour will have after the update.
func (in TourInput) CheckDiscount(current models.Tour) error {
	price := current.Price
	if in.Price != nil {
		price = *in.Price
	}
	discount := current.PriceDiscount
	if in.PriceDiscount != nil {
		discount = *in.PriceDiscount
	}
	if discount > 0 && discount >= price {
		return apperror.Validation(fmt.Sprintf("Discount price (%v) should be below regular price", discount))
	}
	return nil
}

// Fields returns the $set document for the provided fields. Renaming a tour updates its slug.
func (in TourInput) Fields() (bson.M, error) {
	set := bson.M{}
	if in.Name != nil {
		set["name"] = strings.TrimSpace(*in.Name)
		set["slug"] = Slug(*in.Name)
	}
	setIf(set, "duration", in.Duration)
	setIf(set, "maxGroupSize", in.MaxGroupSize)
	setIf(set, "difficulty", in.Difficulty)
	setIf(set, "ratingsAverage", in.RatingsAverage)
	setIf(set, "price", in.Price)
	setIf(set, "priceDiscount", in.PriceDiscount)
	setIf(set, "summary", in.Summary)
	setIf(set, "description", in.Description)
	setIf(set, "imageCover", in.ImageCover)
	setIf(set, "secretTour", in.SecretTour)
	setIf(set, "startLocation", in.StartLocation)
	if in.Images != nil {
		set["images"] = in.Images
	}
	if in.StartDates != nil {
		set["startDates"] = in.StartDates
	}
	if in.Locations != nil {
		set["locations"] = in.Locations
	}
	if in.Guides != nil {
		guides, err := objectIDs("guides", in.Guides)
		if err != nil {
			return nil, err
		}
		set["guides"] = guides
	}
	return set, nil
}

// NewTour builds a tour document from validated create input.
func (in TourInput) NewTour(now time.Time) (models.Tour, error) {
	guides, err := objectIDs("guides", in.Guides)
	if err != nil {
		return models.Tour{}, err
	}
	t := models.Tour{
		Name:           strings.TrimSpace(*in.Name),
		Slug:           Slug(*in.Name),
		Duration:       *in.Duration,
		MaxGroupSize:   *in.MaxGroupSize,
		Difficulty:     *in.Difficulty,
		RatingsAverage: models.DefaultRatingsAverage,
		Price:          *in.Price,
		Summary:        strings.TrimSpace(*in.Summary),
		ImageCover:     *in.ImageCover,
		Images:         in.Images,
		StartDates:     in.StartDates,
		StartLocation:  in.StartLocation,
		Locations:      in.Locations,
		Guides:         guides,
		CreatedAt:      now.UTC(),
	}
	if in.RatingsAverage != nil {
		t.RatingsAverage = *in.RatingsAverage
	}
	if in.PriceDiscount != nil {
		t.PriceDiscount = *in.PriceDiscount
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.SecretTour != nil {
		t.SecretTour = *in.SecretTour
	}
	return t, nil
}

func setIf[T any](set bson.M, key string, v *T) {
	if v != nil {
		set[key] = *v
	}
}

func objectIDs(path string, raw []string) ([]primitive.ObjectID, error) {
	if raw == nil {
		return nil, nil
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := primitive.ObjectIDFromHex(r)
		if err != nil {
			return nil, &apperror.CastError{Path: path, Value: r, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// All lists every visible tour, newest first.
func (s *TourService) All(ctx context.Context) ([]models.Tour, error) {
	return s.tours.Find(ctx, unpaged(models.TourSchema))
}
