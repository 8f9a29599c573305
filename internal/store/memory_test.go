package store

import (
	"context"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type item struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Price     float64            `bson:"price"`
	Active    bool               `bson:"active"`
	Secret    string             `bson:"secret,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	Version   int                `bson:"__v"`
}

var itemSchema = query.Schema{
	"name":      {Kind: query.String, Repeatable: true},
	"price":     {Kind: query.Number},
	"createdAt": {Kind: query.Date},
}

func seedItems(t *testing.T, repo Repository[item], prices ...float64) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		_, err := repo.Create(context.Background(), item{
			Name:      "item-" + string(rune('a'+i)),
			Price:     p,
			Active:    true,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
}

func build(t *testing.T, raw string) query.Query {
	t.Helper()
	params, err := url.ParseQuery(raw)
	require.NoError(t, err)
	q, err := query.NewBuilder(itemSchema, query.Options{DefaultLimit: 2, MaxLimit: 100}).Build(params)
	require.NoError(t, err)
	return q
}

func TestMemory_FilterSortPaginate(t *testing.T) {
	repo := NewMemory[item]()
	seedItems(t, repo, 50, 120, 300, 100, 250, 99, 500)

	all, err := repo.Find(context.Background(), build(t, "price[gte]=100&sort=-price"))
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, it := range all {
		assert.GreaterOrEqual(t, it.Price, 100.0)
		if i > 0 {
			assert.LessOrEqual(t, it.Price, all[i-1].Price)
		}
	}

	page, err := repo.Find(context.Background(), build(t, "price[gte]=100&sort=-price&page=2&limit=2"))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].Price, page[0].Price)
	assert.Equal(t, all[3].Price, page[1].Price)

	last, err := repo.Find(context.Background(), build(t, "price[gte]=100&sort=-price&page=3&limit=2"))
	require.NoError(t, err)
	assert.Len(t, last, 1)

	beyond, err := repo.Find(context.Background(), build(t, "price[gte]=100&page=9&limit=2"))
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestMemory_HugePageIsEmpty(t *testing.T) {
	repo := NewMemory[item]()
	seedItems(t, repo, 10, 20, 30)

	got, err := repo.Find(context.Background(), build(t, "page=9223372036854775807&limit=100"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWindow(t *testing.T) {
	docs := []bson.M{{"i": 0}, {"i": 1}, {"i": 2}}
	assert.Len(t, window(docs, 0, 2), 2)
	assert.Len(t, window(docs, 2, 100), 1)
	assert.Empty(t, window(docs, 3, 1))
	assert.Empty(t, window(docs, math.MaxInt64, math.MaxInt64))
	assert.Len(t, window(docs, -5, 10), 3)
}

func TestMemory_DefaultSortNewestFirstAndVersionHidden(t *testing.T) {
	repo := NewMemory[item]()
	seedItems(t, repo, 1, 2, 3)
	_, err := repo.UpdateOne(context.Background(), bson.M{"price": 1.0}, bson.M{"$set": bson.M{"__v": 4}})
	require.NoError(t, err)

	got, err := repo.Find(context.Background(), build(t, ""))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3.0, got[0].Price)
	assert.Equal(t, 1.0, got[2].Price)
	assert.Zero(t, got[2].Version)
}

func TestMemory_RepeatableFieldUsesIn(t *testing.T) {
	repo := NewMemory[item]()
	seedItems(t, repo, 10, 20, 30)

	got, err := repo.Find(context.Background(), build(t, "name=item-a&name=item-c"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemory_SelectFields(t *testing.T) {
	repo := NewMemory[item]()
	seedItems(t, repo, 10)

	got, err := repo.Find(context.Background(), build(t, "fields=name"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "item-a", got[0].Name)
	assert.Zero(t, got[0].Price)
	assert.False(t, got[0].ID.IsZero())
}

func TestMemory_ScopeHidesDocuments(t *testing.T) {
	repo := NewMemory[item](WithScope(bson.M{"active": bson.M{"$ne": false}}))
	seedItems(t, repo, 10, 20)

	first, err := repo.FindOne(context.Background(), bson.M{"price": 10.0})
	require.NoError(t, err)

	_, err = repo.UpdateByID(context.Background(), first.ID, bson.M{"$set": bson.M{"active": false}})
	require.NoError(t, err)

	_, err = repo.FindByID(context.Background(), first.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = repo.FindOne(context.Background(), bson.M{"name": "item-a"})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	rest, err := repo.Find(context.Background(), build(t, ""))
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestMemory_UniqueAndUnset(t *testing.T) {
	repo := NewMemory[item](WithUnique("name"))
	ctx := context.Background()

	created, err := repo.Create(ctx, item{Name: "dup", Secret: "s"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, item{Name: "dup"})
	require.Error(t, err)
	assert.True(t, mongo.IsDuplicateKeyError(err))

	updated, err := repo.UpdateByID(ctx, created.ID, bson.M{"$unset": bson.M{"secret": ""}})
	require.NoError(t, err)
	assert.Empty(t, updated.Secret)

	deleted, err := repo.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "dup", deleted.Name)

	_, err = repo.DeleteByID(ctx, created.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestParseID(t *testing.T) {
	_, err := ParseID("not-an-id")
	var castErr *apperror.CastError
	require.ErrorAs(t, err, &castErr)
	assert.Equal(t, "not-an-id", castErr.Value)

	id := primitive.NewObjectID()
	got, err := ParseID(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
