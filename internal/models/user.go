package models

import (
	"time"

	"github.com/arzan03/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleLeadGuide Role = "lead-guide"
	RoleGuide     Role = "guide"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleLeadGuide, RoleGuide:
		return true
	}
	return false
}

const DefaultPhoto = "default.jpg"

// User is an account. Password and the reset fields never leave the server.
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name"`
	Email                string             `bson:"email" json:"email"`
	Role                 Role               `bson:"role" json:"role"`
	Photo                string             `bson:"photo" json:"photo"`
	Password             string             `bson:"password,omitempty" json:"-"`
	PasswordChangedAt    *time.Time         `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               bool               `bson:"active" json:"-"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
}

// ActiveScope keeps deactivated accounts out of every user query.
var ActiveScope = bson.M{"active": bson.M{"$ne": false}}

var UserSchema = query.Schema{
	"name":      {Kind: query.String},
	"email":     {Kind: query.String},
	"role":      {Kind: query.String, Repeatable: true},
	"photo":     {Kind: query.String},
	"createdAt": {Kind: query.Date},
}
