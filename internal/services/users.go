package services

import (
	"strings"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// UserInput is what administrators may change on an account.
type UserInput struct {
	Name     *string      `json:"name" validate:"omitempty,min=1,max=50"`
	Email    *string      `json:"email" validate:"omitempty,email"`
	Role     *models.Role `json:"role" validate:"omitempty,oneof=admin user lead-guide guide"`
	Photo    *string      `json:"photo"`
	Password string       `json:"password"`
}

// Fields returns the $set document. Passwords are never changed through this path.
func (in UserInput) Fields() (bson.M, error) {
	if in.Password != "" {
		return nil, apperror.Validation("This route is not for password updates. Please use /updateMyPassword.")
	}
	if err := Validate(in); err != nil {
		return nil, err
	}
	set := bson.M{}
	if in.Name != nil {
		set["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		set["email"] = normalizeEmail(*in.Email)
	}
	setIf(set, "role", in.Role)
	setIf(set, "photo", in.Photo)
	return set, nil
}
