// Package query turns client query-string parameters into a validated, immutable database
// query. Parameters pass through a fixed pipeline: filter, sort, paginate, select fields.
package query

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/arzan03/tourbook/internal/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VersionField is the internal revision counter hidden from default selections.
const VersionField = "__v"

var reservedKeys = map[string]bool{"sort": true, "fields": true, "limit": true, "page": true}

// operatorKey matches whole keys of the form field[op] only.
var operatorKey = regexp.MustCompile(`^([A-Za-z0-9_.]+)\[(gte|gt|lte|lt)\]$`)

// Query is an immutable description of a find operation.
type Query struct {
	filter     bson.M
	sort       bson.D
	paginated  bool
	skip       int64
	limit      int64
	projection bson.D
}

// Options tunes the paginate stage.
type Options struct {
	DefaultLimit int64
	MaxLimit     int64
}

// Stage is one step of the pipeline. Stages never mutate their input.
type Stage func(Query) (Query, error)

// Builder applies the pipeline for one entity schema.
type Builder struct {
	schema Schema
	opts   Options
}

func NewBuilder(schema Schema, opts Options) Builder {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 2
	}
	return Builder{schema: schema, opts: opts}
}

// Build runs filter, sort, paginate and selectFields in that order. Pagination must see the
// filtered, sorted set, so the order is fixed.
func (b Builder) Build(params url.Values) (Query, error) {
	q := Query{filter: bson.M{}}
	for _, stage := range []Stage{
		b.Filter(params),
		b.Sort(params),
		b.Paginate(params),
		b.SelectFields(params),
	} {
		next, err := stage(q)
		if err != nil {
			return Query{}, err
		}
		q = next
	}
	return q, nil
}

// Filter turns non-reserved parameters into equality or comparison constraints. A field takes
// either kind, never both.
func (b Builder) Filter(params url.Values) Stage {
	return func(q Query) (Query, error) {
		out := q.clone()
		for key, values := range params {
			if reservedKeys[key] || len(values) == 0 {
				continue
			}

			if m := operatorKey.FindStringSubmatch(key); m != nil {
				field, op := m[1], "$"+m[2]
				if !b.schema.has(field) {
					return Query{}, apperror.Validation(fmt.Sprintf("Unknown field: %s", field))
				}
				v, err := b.schema.convert(field, values[len(values)-1])
				if err != nil {
					return Query{}, err
				}
				cond, _ := out.filter[field].(bson.M)
				if cond == nil {
					cond = bson.M{}
				}
				cond[op] = v
				out.filter[field] = cond
				continue
			}

			if strings.ContainsAny(key, "[]$") {
				return Query{}, apperror.Validation(fmt.Sprintf("Unsupported filter: %s", key))
			}
			if !b.schema.has(key) {
				return Query{}, apperror.Validation(fmt.Sprintf("Unknown field: %s", key))
			}
			if params.Has(key+"[gte]") || params.Has(key+"[gt]") || params.Has(key+"[lte]") || params.Has(key+"[lt]") {
				return Query{}, apperror.Validation(fmt.Sprintf("Cannot combine equality and comparison on field: %s", key))
			}

			if b.schema[key].Repeatable && len(values) > 1 {
				in := make(bson.A, 0, len(values))
				for _, raw := range values {
					v, err := b.schema.convert(key, raw)
					if err != nil {
						return Query{}, err
					}
					in = append(in, v)
				}
				out.filter[key] = bson.M{"$in": in}
				continue
			}

			v, err := b.schema.convert(key, values[len(values)-1])
			if err != nil {
				return Query{}, err
			}
			out.filter[key] = v
		}
		return out, nil
	}
}

// Sort reads a comma separated field list; a leading "-" sorts descending. The default is
// newest first. _id is appended as a tiebreaker so pages are stable.
func (b Builder) Sort(params url.Values) Stage {
	return func(q Query) (Query, error) {
		out := q.clone()
		out.sort = bson.D{}

		raw := lastValue(params, "sort")
		if raw == "" {
			raw = "-createdAt"
		}
		seenID := false
		for _, name := range splitList(raw) {
			dir := 1
			if strings.HasPrefix(name, "-") {
				dir = -1
				name = name[1:]
			}
			if !b.schema.has(name) {
				return Query{}, apperror.Validation(fmt.Sprintf("Cannot sort by unknown field: %s", name))
			}
			if name == "_id" {
				seenID = true
			}
			out.sort = append(out.sort, bson.E{Key: name, Value: dir})
		}
		if !seenID {
			out.sort = append(out.sort, bson.E{Key: "_id", Value: 1})
		}
		return out, nil
	}
}

// Paginate computes a skip/limit window when page or limit is present. Pages past the end
// simply yield nothing.
func (b Builder) Paginate(params url.Values) Stage {
	return func(q Query) (Query, error) {
		out := q.clone()
		if !params.Has("page") && !params.Has("limit") {
			return out, nil
		}

		page, err := positiveInt(params, "page", 1)
		if err != nil {
			return Query{}, err
		}
		limit, err := positiveInt(params, "limit", b.opts.DefaultLimit)
		if err != nil {
			return Query{}, err
		}
		if b.opts.MaxLimit > 0 && limit > b.opts.MaxLimit {
			limit = b.opts.MaxLimit
		}

		out.paginated = true
		if page-1 > math.MaxInt64/limit {
			out.skip = math.MaxInt64
		} else {
			out.skip = (page - 1) * limit
		}
		out.limit = limit
		return out, nil
	}
}

// SelectFields restricts returned attributes. Either all names are plain (inclusion) or all
// are prefixed with "-" (exclusion). By default only the version field is dropped.
func (b Builder) SelectFields(params url.Values) Stage {
	return func(q Query) (Query, error) {
		out := q.clone()
		raw := lastValue(params, "fields")
		if raw == "" {
			out.projection = bson.D{{Key: VersionField, Value: 0}}
			return out, nil
		}

		out.projection = bson.D{}
		mode := 0
		for _, name := range splitList(raw) {
			v := 1
			if strings.HasPrefix(name, "-") {
				v = 0
				name = name[1:]
			}
			if !b.schema.has(name) {
				return Query{}, apperror.Validation(fmt.Sprintf("Cannot select unknown field: %s", name))
			}
			if name != "_id" {
				if mode == 0 {
					mode = v + 1
				} else if mode != v+1 {
					return Query{}, apperror.Validation("Cannot mix included and excluded fields")
				}
			}
			out.projection = append(out.projection, bson.E{Key: name, Value: v})
		}
		return out, nil
	}
}

// Where scopes the query to field == value, overriding any client constraint on that field.
func (q Query) Where(field string, value any) Query {
	out := q.clone()
	out.filter[field] = value
	return out
}

// Filter returns a copy of the filter document.
func (q Query) Filter() bson.M {
	return q.clone().filter
}

func (q Query) Sort() bson.D { return append(bson.D(nil), q.sort...) }

func (q Query) Skip() int64 { return q.skip }

// Limit is zero when the query is not paginated.
func (q Query) Limit() int64 { return q.limit }

func (q Query) Paginated() bool { return q.paginated }

func (q Query) Projection() bson.D { return append(bson.D(nil), q.projection...) }

// FindOptions renders the query as Mongo find options.
func (q Query) FindOptions() *options.FindOptions {
	opts := options.Find()
	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}
	if q.paginated {
		opts.SetSkip(q.skip).SetLimit(q.limit)
	}
	if len(q.projection) > 0 {
		opts.SetProjection(q.projection)
	}
	return opts
}

func (q Query) clone() Query {
	out := q
	out.filter = make(bson.M, len(q.filter))
	for k, v := range q.filter {
		if cond, ok := v.(bson.M); ok {
			c := make(bson.M, len(cond))
			for ck, cv := range cond {
				c[ck] = cv
			}
			v = c
		}
		out.filter[k] = v
	}
	out.sort = append(bson.D(nil), q.sort...)
	out.projection = append(bson.D(nil), q.projection...)
	return out
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// lastValue returns the final occurrence of key, so repeated parameters resolve last-wins.
func lastValue(params url.Values, key string) string {
	values := params[key]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func positiveInt(params url.Values, key string, fallback int64) (int64, error) {
	raw := lastValue(params, key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, apperror.Validation(fmt.Sprintf("%s must be a positive integer", key))
	}
	return n, nil
}
