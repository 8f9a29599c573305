package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind is the declared type of a queryable field.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	Date
	ObjectID
)

// Field describes one attribute clients may filter, sort or select by.
type Field struct {
	Kind Kind
	// Repeatable fields keep every value of a duplicated query parameter (matched with $in).
	// Any other duplicated parameter collapses to its last value.
	Repeatable bool
}

// Schema is the set of attributes an entity exposes to the query builder. Anything not
// declared here is rejected.
type Schema map[string]Field

func (s Schema) has(name string) bool {
	if name == "_id" {
		return true
	}
	_, ok := s[name]
	return ok
}

func (s Schema) convert(name, raw string) (any, error) {
	field, ok := s[name]
	if !ok {
		if name == "_id" {
			field = Field{Kind: ObjectID}
		} else {
			return nil, apperror.Validation(fmt.Sprintf("Unknown field: %s", name))
		}
	}

	invalid := func() error {
		return apperror.Validation(fmt.Sprintf("Invalid value for %s: %s", name, raw))
	}

	switch field.Kind {
	case Number:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalid()
		}
		return v, nil
	case Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalid()
		}
		return v, nil
	case Date:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if v, err := time.Parse(layout, raw); err == nil {
				return v, nil
			}
		}
		return nil, invalid()
	case ObjectID:
		v, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, invalid()
		}
		return v, nil
	default:
		return raw, nil
	}
}
