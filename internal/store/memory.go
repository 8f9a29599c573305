package store

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arzan03/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Memory is an in-process Repository with the same matching, scoping and uniqueness rules as
// Collection. Tests use it in place of MongoDB.
type Memory[T any] struct {
	mu     sync.RWMutex
	docs   []bson.M
	scope  bson.M
	unique [][]string
}

func NewMemory[T any](opts ...Option) *Memory[T] {
	s := newSettings(opts)
	m := &Memory[T]{scope: s.scope}
	for _, u := range s.unique {
		m.unique = append(m.unique, strings.Split(u, ","))
	}
	return m
}

func (m *Memory[T]) FindByID(ctx context.Context, id primitive.ObjectID) (T, error) {
	return m.FindOne(ctx, bson.M{"_id": id})
}

func (m *Memory[T]) Find(_ context.Context, q query.Query) ([]T, error) {
	m.mu.RLock()
	filter := scoped(q.Filter(), m.scope)
	matched := make([]bson.M, 0)
	for _, doc := range m.docs {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	m.mu.RUnlock()

	sortDocs(matched, q.Sort())

	if q.Paginated() {
		matched = window(matched, q.Skip(), q.Limit())
	}

	out := make([]T, 0, len(matched))
	for _, doc := range matched {
		v, err := decode[T](project(doc, q.Projection()))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// window returns docs[skip:skip+limit] clamped to the slice, without overflowing on huge values.
func window(docs []bson.M, skip, limit int64) []bson.M {
	n := int64(len(docs))
	if skip < 0 {
		skip = 0
	}
	if skip > n {
		skip = n
	}
	end := n
	if limit >= 0 && limit < n-skip {
		end = skip + limit
	}
	return docs[skip:end]
}

func (m *Memory[T]) FindOne(_ context.Context, filter bson.M) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if doc := m.first(scoped(filter, m.scope)); doc != nil {
		return decode[T](doc)
	}
	var zero T
	return zero, errNotFound()
}

func (m *Memory[T]) Create(_ context.Context, doc T) (T, error) {
	var zero T
	raw, err := encode(doc)
	if err != nil {
		return zero, err
	}
	if id, ok := raw["_id"].(primitive.ObjectID); !ok || id.IsZero() {
		raw["_id"] = primitive.NewObjectID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnique(raw, -1); err != nil {
		return zero, err
	}
	m.docs = append(m.docs, raw)
	return decode[T](raw)
}

func (m *Memory[T]) UpdateByID(ctx context.Context, id primitive.ObjectID, update bson.M) (T, error) {
	return m.UpdateOne(ctx, bson.M{"_id": id}, update)
}

func (m *Memory[T]) UpdateOne(_ context.Context, filter bson.M, update bson.M) (T, error) {
	var zero T
	m.mu.Lock()
	defer m.mu.Unlock()

	filter = scoped(filter, m.scope)
	for i, doc := range m.docs {
		if !matches(doc, filter) {
			continue
		}
		next, err := applyUpdate(doc, update)
		if err != nil {
			return zero, err
		}
		if err := m.checkUnique(next, i); err != nil {
			return zero, err
		}
		m.docs[i] = next
		return decode[T](next)
	}
	return zero, errNotFound()
}

func (m *Memory[T]) DeleteByID(_ context.Context, id primitive.ObjectID) (T, error) {
	var zero T
	m.mu.Lock()
	defer m.mu.Unlock()

	filter := scoped(bson.M{"_id": id}, m.scope)
	for i, doc := range m.docs {
		if matches(doc, filter) {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return decode[T](doc)
		}
	}
	return zero, errNotFound()
}

func (m *Memory[T]) first(filter bson.M) bson.M {
	for _, doc := range m.docs {
		if matches(doc, filter) {
			return doc
		}
	}
	return nil
}

func (m *Memory[T]) checkUnique(doc bson.M, self int) error {
	for _, fields := range m.unique {
		for i, other := range m.docs {
			if i == self {
				continue
			}
			same := true
			for _, f := range fields {
				a, okA := doc[f]
				b, okB := other[f]
				if !okA || !okB || !equal(a, b) {
					same = false
					break
				}
			}
			if !same {
				continue
			}
			keys := make([]string, 0, len(fields))
			for _, f := range fields {
				keys = append(keys, fmt.Sprintf("%s: %q", f, fmt.Sprint(doc[f])))
			}
			return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
				Code: 11000,
				Message: fmt.Sprintf("E11000 duplicate key error collection: memory index: %s_1 dup key: { %s }",
					strings.Join(fields, "_1_"), strings.Join(keys, ", ")),
			}}}
		}
	}
	return nil
}

func encode(v any) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memory encode: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("memory encode: %w", err)
	}
	return out, nil
}

func decode[T any](doc bson.M) (T, error) {
	var out T
	data, err := bson.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("memory decode: %w", err)
	}
	if err := bson.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("memory decode: %w", err)
	}
	return out, nil
}

func applyUpdate(doc bson.M, update bson.M) (bson.M, error) {
	next := make(bson.M, len(doc))
	for k, v := range doc {
		next[k] = v
	}

	hasOperator := false
	for op, arg := range update {
		if !strings.HasPrefix(op, "$") {
			continue
		}
		hasOperator = true
		fields, ok := arg.(bson.M)
		if !ok {
			return nil, fmt.Errorf("memory update: %s expects a document", op)
		}
		switch op {
		case "$set":
			for k, v := range fields {
				next[k] = v
			}
		case "$unset":
			for k := range fields {
				delete(next, k)
			}
		case "$inc":
			for k, v := range fields {
				cur, _ := toFloat(next[k])
				delta, ok := toFloat(v)
				if !ok {
					return nil, fmt.Errorf("memory update: $inc %s by non-number", k)
				}
				next[k] = cur + delta
			}
		default:
			return nil, fmt.Errorf("memory update: unsupported operator %s", op)
		}
	}
	if !hasOperator {
		for k, v := range update {
			next[k] = v
		}
	}
	// round trip so stored values carry the same BSON types a real server would return
	return encode(next)
}

func matches(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		val, present := lookup(doc, key)
		if !matchCond(val, present, cond) {
			return false
		}
	}
	return true
}

func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(bson.M)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func matchCond(val any, present bool, cond any) bool {
	ops, ok := cond.(bson.M)
	if !ok || !isOperatorDoc(ops) {
		return present && equalAny(val, cond) || !present && cond == nil
	}
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !present || !equalAny(val, arg) {
				return false
			}
		case "$ne":
			if present && equalAny(val, arg) {
				return false
			}
		case "$in":
			if !present || !inAny(val, arg) {
				return false
			}
		case "$nin":
			if present && inAny(val, arg) {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !present || !compareAny(val, arg, op) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isOperatorDoc(m bson.M) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func equalAny(val, arg any) bool {
	if arr, ok := val.(primitive.A); ok {
		for _, el := range arr {
			if equal(el, arg) {
				return true
			}
		}
	}
	return equal(val, arg)
}

func inAny(val, arg any) bool {
	rv := reflect.ValueOf(arg)
	if rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equalAny(val, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

func compareAny(val, arg any, op string) bool {
	check := func(v any) bool {
		c, ok := compare(v, arg)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		default:
			return c <= 0
		}
	}
	if arr, ok := val.(primitive.A); ok {
		for _, el := range arr {
			if check(el) {
				return true
			}
		}
		return false
	}
	return check(val)
}

func normalize(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	switch t := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(t)
	case []any:
		return primitive.A(t)
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// compare orders two values of the same BSON type.
func compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case primitive.DateTime:
		y, ok := b.(primitive.DateTime)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x[:], y[:]), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// typeRank follows the BSON comparison order for mixed types.
func typeRank(v any) int {
	switch normalize(v).(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bson.M:
		return 3
	case primitive.A:
		return 4
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime:
		return 9
	}
	return 10
}

func sortDocs(docs []bson.M, keys bson.D) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			dir := 1
			if d, ok := toFloat(key.Value); ok && d < 0 {
				dir = -1
			}
			a, _ := lookup(docs[i], key.Key)
			b, _ := lookup(docs[j], key.Key)
			c, ok := compare(a, b)
			if !ok {
				c = typeRank(a) - typeRank(b)
			}
			if c != 0 {
				return c*dir < 0
			}
		}
		return false
	})
}

func project(doc bson.M, projection bson.D) bson.M {
	if len(projection) == 0 {
		return doc
	}
	include := false
	for _, e := range projection {
		if v, _ := toFloat(e.Value); v == 1 && e.Key != "_id" {
			include = true
		}
	}

	if include {
		out := bson.M{"_id": doc["_id"]}
		for _, e := range projection {
			v, _ := toFloat(e.Value)
			if e.Key == "_id" && v == 0 {
				delete(out, "_id")
				continue
			}
			if val, ok := doc[e.Key]; ok && v == 1 {
				out[e.Key] = val
			}
		}
		return out
	}

	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, e := range projection {
		delete(out, e.Key)
	}
	return out
}
