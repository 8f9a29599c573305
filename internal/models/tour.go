package models

import (
	"time"

	"github.com/arzan03/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

const DefaultRatingsAverage = 4.5

// Location is a GeoJSON point with a description.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Slug            string               `bson:"slug" json:"slug"`
	Duration        int                  `bson:"duration" json:"duration"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize"`
	Difficulty      Difficulty           `bson:"difficulty" json:"difficulty"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage"`
	RatingsQuantity int                  `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Price           float64              `bson:"price" json:"price"`
	PriceDiscount   float64              `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Summary         string               `bson:"summary" json:"summary"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover" json:"imageCover"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	StartDates      []time.Time          `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool                 `bson:"secretTour" json:"-"`
	StartLocation   *Location            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location           `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	Version         int                  `bson:"__v" json:"__v,omitempty"`
}

// DurationWeeks mirrors the virtual field shown on tour pages.
func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// PublicScope hides secret tours from every query.
var PublicScope = bson.M{"secretTour": bson.M{"$ne": true}}

var TourSchema = query.Schema{
	"name":            {Kind: query.String},
	"slug":            {Kind: query.String},
	"duration":        {Kind: query.Number, Repeatable: true},
	"maxGroupSize":    {Kind: query.Number, Repeatable: true},
	"difficulty":      {Kind: query.String, Repeatable: true},
	"ratingsAverage":  {Kind: query.Number, Repeatable: true},
	"ratingsQuantity": {Kind: query.Number, Repeatable: true},
	"price":           {Kind: query.Number, Repeatable: true},
	"priceDiscount":   {Kind: query.Number},
	"summary":         {Kind: query.String},
	"description":     {Kind: query.String},
	"imageCover":      {Kind: query.String},
	"images":          {Kind: query.String},
	"startDates":      {Kind: query.Date},
	"startLocation":   {Kind: query.String},
	"locations":       {Kind: query.String},
	"guides":          {Kind: query.ObjectID},
	"createdAt":       {Kind: query.Date},
}
