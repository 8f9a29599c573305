package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/mongo"
)

// CastError reports a value that could not be converted into a document identifier.
type CastError struct {
	Path  string
	Value string
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast to ObjectID failed for %s %q: %v", e.Path, e.Value, e.Err)
}

func (e *CastError) Unwrap() error {
	return e.Err
}

var dupKeyPattern = regexp.MustCompile(`dup key: \{ ?(.*?) ?\}`)

// Normalize converts any error into an *Error. Operational errors pass through, known infra
// errors are rewritten into operational ones, the rest become Internal.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok && appErr.Operational {
		return appErr
	}
	if translated := translate(err); translated != nil {
		return translated
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(err)
}

func translate(err error) *Error {
	var castErr *CastError
	if errors.As(err, &castErr) {
		return Wrap(err, KindValidation, http.StatusBadRequest,
			fmt.Sprintf("Invalid %s: %s.", castErr.Path, castErr.Value))
	}

	if mongo.IsDuplicateKeyError(err) {
		msg := "Duplicate field value. Please use another value!"
		if m := dupKeyPattern.FindStringSubmatch(err.Error()); len(m) == 2 {
			msg = fmt.Sprintf("Duplicate field value: %s. Please use another value!", m[1])
		}
		return Wrap(err, KindConflict, http.StatusConflict, msg)
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return Wrap(err, KindInvalidToken, http.StatusUnauthorized, "Your token has expired! Please log in again.")
	}
	if errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenUnverifiable) ||
		errors.Is(err, jwt.ErrTokenInvalidClaims) ||
		errors.Is(err, jwt.ErrTokenNotValidYet) {
		return Wrap(err, KindInvalidToken, http.StatusUnauthorized, "Invalid token. Please log in again!")
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return Wrap(err, KindNotFound, http.StatusNotFound, "No document found with this ID")
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return Wrap(err, KindValidation, http.StatusBadRequest, validationMessage(verrs))
	}

	return nil
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, "Please provide a valid email")
		case "eqfield":
			msgs = append(msgs, "Passwords are not the same!")
		case "min", "max", "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}
