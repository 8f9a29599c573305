package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arzan03/tourbook/internal/auth"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	forestID = "5c88fa8cf4afda39709c2951"
	seaID    = "5c88fa8cf4afda39709c295a"
	userID   = "5c8a1dfa2f8fb814b56fa181"
	guideID  = "5c8a21d02f8fb814b56fa189"
)

func writeSeed(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func memoryRepos() repositories {
	return repositories{
		users:    store.NewMemory[models.User](store.WithScope(models.ActiveScope), store.WithUnique("email")),
		tours:    store.NewMemory[models.Tour](store.WithScope(models.PublicScope), store.WithUnique("name")),
		reviews:  store.NewMemory[models.Review](store.WithUnique("tour,user")),
		bookings: store.NewMemory[models.Booking](),
	}
}

var seedFiles = map[string]string{
	"tours.json": `[
		{"_id": "` + forestID + `", "name": "The Forest Hiker", "duration": 5, "maxGroupSize": 25,
		 "difficulty": "easy", "price": 397, "summary": "Breathtaking hike", "imageCover": "tour-1-cover.jpg",
		 "ratingsAverage": 4.7, "guides": ["` + guideID + `"]},
		{"_id": "` + seaID + `", "name": "The Sea Explorer", "duration": 7, "maxGroupSize": 15,
		 "difficulty": "medium", "price": 497, "summary": "Exploring the jaw-dropping US east coast",
		 "imageCover": "tour-2-cover.jpg", "ratingsAverage": 4.8}
	]`,
	"users.json": `[
		{"_id": "` + userID + `", "name": "Jonas Doe", "email": "Admin@Example.io", "role": "admin", "password": "test1234"},
		{"_id": "` + guideID + `", "name": "Lourdes Browning", "email": "lourdes@example.io", "role": "guide",
		 "password": "$2a$12$Q0grHjH9PXc6SxivC8m12.2mZJ9BbKcgFpwSG4Y1ZEII8HJVzWeyS"}
	]`,
	"reviews.json": `[
		{"_id": "5c8a34ed14eb5c17645c9108", "review": "Cras mollis nisi", "rating": 5, "tour": "` + forestID + `", "user": "` + userID + `"},
		{"_id": "5c8a355b14eb5c17645c9109", "review": "Tempus curabitur", "rating": 4, "tour": "` + forestID + `", "user": "` + guideID + `"}
	]`,
}

func TestLoadSeed(t *testing.T) {
	data, err := loadSeed(writeSeed(t, seedFiles), bcrypt.MinCost, time.Now())
	require.NoError(t, err)

	require.Len(t, data.tours, 2)
	assert.Equal(t, forestID, data.tours[0].ID.Hex())
	assert.Equal(t, "the-forest-hiker", data.tours[0].Slug)
	require.Len(t, data.tours[0].Guides, 1)
	assert.Equal(t, guideID, data.tours[0].Guides[0].Hex())

	require.Len(t, data.users, 2)
	assert.Equal(t, "admin@example.io", data.users[0].Email)
	assert.True(t, data.users[0].Active)
	assert.True(t, auth.CheckPassword("test1234", data.users[0].Password))
	assert.Equal(t, "$2a$12$Q0grHjH9PXc6SxivC8m12.2mZJ9BbKcgFpwSG4Y1ZEII8HJVzWeyS", data.users[1].Password)
	assert.Equal(t, models.DefaultPhoto, data.users[1].Photo)

	require.Len(t, data.reviews, 2)
	assert.Equal(t, forestID, data.reviews[0].Tour.Hex())
}

func TestLoadSeed_MissingFilesAreSkipped(t *testing.T) {
	data, err := loadSeed(writeSeed(t, map[string]string{"tours.json": seedFiles["tours.json"]}), bcrypt.MinCost, time.Now())
	require.NoError(t, err)
	assert.Len(t, data.tours, 2)
	assert.Empty(t, data.users)
	assert.Empty(t, data.reviews)
}

func TestLoadSeed_RejectsInvalidRecords(t *testing.T) {
	for name, content := range map[string]string{
		"tours.json":   `[{"name": "Too short"}]`,
		"users.json":   `[{"email": "x@example.io", "password": "test1234", "role": "pilot"}]`,
		"reviews.json": `[{"review": "no rating", "tour": "` + forestID + `", "user": "` + userID + `"}]`,
	} {
		_, err := loadSeed(writeSeed(t, map[string]string{name: content}), bcrypt.MinCost, time.Now())
		assert.Errorf(t, err, name)
	}

	_, err := loadSeed(writeSeed(t, map[string]string{"users.json": `{not json`}), bcrypt.MinCost, time.Now())
	assert.Error(t, err)
}

func TestImportSeed(t *testing.T) {
	ctx := context.Background()
	data, err := loadSeed(writeSeed(t, seedFiles), bcrypt.MinCost, time.Now())
	require.NoError(t, err)

	repos := memoryRepos()
	require.NoError(t, importSeed(ctx, repos, data, 4, logging.Discard()))

	forest, err := repos.tours.FindByID(ctx, data.tours[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, forest.RatingsQuantity)
	assert.Equal(t, 4.5, forest.RatingsAverage)

	// Tours without reviews keep the ratings from the file.
	sea, err := repos.tours.FindByID(ctx, data.tours[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 4.8, sea.RatingsAverage)

	admin, err := repos.users.FindByID(ctx, data.users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	// A second import collides on the unique fields and reports it.
	assert.Error(t, importSeed(ctx, repos, data, 4, logging.Discard()))
}
