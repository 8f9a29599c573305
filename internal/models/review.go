package models

import (
	"time"

	"github.com/arzan03/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string             `bson:"review" json:"review"`
	Rating    float64            `bson:"rating" json:"rating"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Version   int                `bson:"__v" json:"__v,omitempty"`
}

var ReviewSchema = query.Schema{
	"review":    {Kind: query.String},
	"rating":    {Kind: query.Number, Repeatable: true},
	"tour":      {Kind: query.ObjectID},
	"user":      {Kind: query.ObjectID},
	"createdAt": {Kind: query.Date},
}
