package models

import (
	"time"

	"github.com/arzan03/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Tour  primitive.ObjectID `bson:"tour" json:"tour"`
	User  primitive.ObjectID `bson:"user" json:"user"`
	Price float64            `bson:"price" json:"price"`
	Paid  bool               `bson:"paid" json:"paid"`
	// CheckoutSession is the provider session that paid for the booking, if any.
	CheckoutSession string    `bson:"checkoutSession,omitempty" json:"checkoutSession,omitempty"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	Version         int       `bson:"__v" json:"__v,omitempty"`
}

var BookingSchema = query.Schema{
	"tour":      {Kind: query.ObjectID},
	"user":      {Kind: query.ObjectID},
	"price":     {Kind: query.Number},
	"paid":      {Kind: query.Bool},
	"createdAt": {Kind: query.Date},
}
