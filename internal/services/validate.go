package services

import (
	"reflect"
	"strings"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks v against its `validate` tags and returns a ValidationError on failure.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return apperror.Normalize(err)
	}
	return nil
}
