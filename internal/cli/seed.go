package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arzan03/tourbook/internal/auth"
	"github.com/arzan03/tourbook/internal/config"
	"github.com/arzan03/tourbook/internal/db"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/arzan03/tourbook/internal/utils"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	seedDir     string
	seedWorkers int
)

type tourRecord struct {
	ID string `json:"_id"`
	services.TourInput
}

type userRecord struct {
	ID       string      `json:"_id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	Photo    string      `json:"photo"`
	Password string      `json:"password"`
	Active   *bool       `json:"active"`
}

type reviewRecord struct {
	ID string `json:"_id"`
	services.ReviewInput
}

// seedData is the content of a dev-data directory, ready to insert.
type seedData struct {
	tours   []models.Tour
	users   []models.User
	reviews []models.Review
}

// loadSeed reads tours.json, users.json and reviews.json from dir. Missing files are skipped.
// Plain-text passwords are hashed with cost; bcrypt hashes are kept.
func loadSeed(dir string, cost int, now time.Time) (seedData, error) {
	var out seedData

	var tours []tourRecord
	if err := readJSON(filepath.Join(dir, "tours.json"), &tours); err != nil {
		return out, err
	}
	for i, r := range tours {
		if err := r.Check(true); err != nil {
			return out, fmt.Errorf("tours.json[%d]: %w", i, err)
		}
		t, err := r.NewTour(now)
		if err != nil {
			return out, fmt.Errorf("tours.json[%d]: %w", i, err)
		}
		if t.ID, err = recordID(r.ID); err != nil {
			return out, fmt.Errorf("tours.json[%d]: %w", i, err)
		}
		out.tours = append(out.tours, t)
	}

	var users []userRecord
	if err := readJSON(filepath.Join(dir, "users.json"), &users); err != nil {
		return out, err
	}
	for i, r := range users {
		u, err := r.user(cost, now)
		if err != nil {
			return out, fmt.Errorf("users.json[%d]: %w", i, err)
		}
		out.users = append(out.users, u)
	}

	var reviews []reviewRecord
	if err := readJSON(filepath.Join(dir, "reviews.json"), &reviews); err != nil {
		return out, err
	}
	for i, r := range reviews {
		rv, err := r.NewReview(primitive.NilObjectID, primitive.NilObjectID, now)
		if err != nil {
			return out, fmt.Errorf("reviews.json[%d]: %w", i, err)
		}
		if rv.ID, err = recordID(r.ID); err != nil {
			return out, fmt.Errorf("reviews.json[%d]: %w", i, err)
		}
		out.reviews = append(out.reviews, rv)
	}
	return out, nil
}

func (r userRecord) user(cost int, now time.Time) (models.User, error) {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return models.User{}, errors.New("email and password are required")
	}
	role := r.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return models.User{}, fmt.Errorf("unknown role %q", role)
	}
	hash := r.Password
	if !strings.HasPrefix(hash, "$2") {
		var err error
		if hash, err = auth.HashPassword(r.Password, cost); err != nil {
			return models.User{}, err
		}
	}
	photo := r.Photo
	if photo == "" {
		photo = models.DefaultPhoto
	}
	id, err := recordID(r.ID)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:        id,
		Name:      strings.TrimSpace(r.Name),
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		Role:      role,
		Photo:     photo,
		Password:  hash,
		Active:    r.Active == nil || *r.Active,
		CreatedAt: now.UTC(),
	}, nil
}

// recordID keeps the id from the file so references between files still resolve.
func recordID(raw string) (primitive.ObjectID, error) {
	if raw == "" {
		return primitive.NewObjectID(), nil
	}
	return store.ParseID(raw)
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// insertAll writes docs through a pool of workers and reports every failure.
func insertAll[T any](ctx context.Context, repo store.Repository[T], docs []T, workers int) error {
	pool := utils.NewWorkerPool(workers)
	for _, doc := range docs {
		pool.Submit(func() error {
			_, err := repo.Create(ctx, doc)
			return err
		})
	}
	return errors.Join(pool.Wait()...)
}

// importSeed inserts the three collections concurrently, then refreshes the rating summary of
// every reviewed tour.
func importSeed(ctx context.Context, repos repositories, data seedData, workers int, log logging.Logger) error {
	err := utils.RunParallel(ctx,
		func(ctx context.Context) error { return insertAll(ctx, repos.tours, data.tours, workers) },
		func(ctx context.Context) error { return insertAll(ctx, repos.users, data.users, workers) },
		func(ctx context.Context) error { return insertAll(ctx, repos.reviews, data.reviews, workers) },
	)
	if err != nil {
		return err
	}

	ratings := services.NewReviewService(repos.reviews, repos.tours, log)
	seen := make(map[primitive.ObjectID]bool)
	for _, r := range data.reviews {
		if seen[r.Tour] {
			continue
		}
		seen[r.Tour] = true
		if err := ratings.RecalculateRatings(ctx, r.Tour); err != nil {
			return err
		}
	}
	return nil
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load or remove development data",
}

var seedImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tours, users and reviews from JSON files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logging.New(os.Stdout, cfg.IsProduction())
		data, err := loadSeed(seedDir, cfg.Security.BcryptCost, time.Now())
		if err != nil {
			return err
		}

		client, database, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		if err := importSeed(cmd.Context(), newRepositories(database, cfg.Mongo.Timeout), data, seedWorkers, log); err != nil {
			return err
		}
		log.Info(cmd.Context(), "data successfully loaded",
			"tours", len(data.tours), "users", len(data.users), "reviews", len(data.reviews))
		return nil
	},
}

var seedDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every tour, user, review and booking",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logging.New(os.Stdout, cfg.IsProduction())

		client, database, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		var tasks []utils.Task
		for _, name := range []string{db.Tours, db.Users, db.Reviews, db.Bookings} {
			coll := database.Collection(name)
			tasks = append(tasks, func(ctx context.Context) error {
				res, err := coll.DeleteMany(ctx, bson.M{})
				if err != nil {
					return fmt.Errorf("delete %s: %w", coll.Name(), err)
				}
				log.Info(ctx, "collection cleared", "collection", coll.Name(), "deleted", res.DeletedCount)
				return nil
			})
		}
		return utils.RunParallel(cmd.Context(), tasks...)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedImportCmd, seedDeleteCmd)
	seedCmd.PersistentFlags().StringVar(&seedDir, "dir", "dev-data", "directory holding tours.json, users.json and reviews.json")
	seedCmd.PersistentFlags().IntVar(&seedWorkers, "workers", 8, "concurrent inserts per collection")
}
