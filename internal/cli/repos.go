package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/arzan03/tourbook/internal/config"
	"github.com/arzan03/tourbook/internal/db"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
)

type repositories struct {
	users    store.Repository[models.User]
	tours    store.Repository[models.Tour]
	reviews  store.Repository[models.Review]
	bookings store.Repository[models.Booking]
}

func newRepositories(database *mongo.Database, timeout time.Duration) repositories {
	return repositories{
		users: store.NewCollection[models.User](database.Collection(db.Users),
			store.WithScope(models.ActiveScope), store.WithTimeout(timeout)),
		tours: store.NewCollection[models.Tour](database.Collection(db.Tours),
			store.WithScope(models.PublicScope), store.WithTimeout(timeout)),
		reviews:  store.NewCollection[models.Review](database.Collection(db.Reviews), store.WithTimeout(timeout)),
		bookings: store.NewCollection[models.Booking](database.Collection(db.Bookings), store.WithTimeout(timeout)),
	}
}

// openDatabase connects, makes sure indexes exist and returns the app database. The caller
// disconnects the client.
func openDatabase(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	client, err := db.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
	if err != nil {
		return nil, nil, err
	}
	database := client.Database(cfg.Mongo.Name)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return client, database, nil
}
