// Package server assembles the Fiber application: middleware, routes and error rendering.
package server

import (
	"time"

	"github.com/arzan03/tourbook/internal/auth"
	"github.com/arzan03/tourbook/internal/config"
	"github.com/arzan03/tourbook/internal/handlers"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/middleware"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/payment"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/arzan03/tourbook/internal/storage"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/arzan03/tourbook/internal/views"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// Deps are the collaborators the app is built from.
type Deps struct {
	Config   *config.Config
	Log      logging.Logger
	Users    store.Repository[models.User]
	Tours    store.Repository[models.Tour]
	Reviews  store.Repository[models.Review]
	Bookings store.Repository[models.Booking]
	Mailer   services.Notifier
	Payments payment.Gateway
	// Photos is optional; without it photo uploads are rejected.
	Photos PhotoBucket
	// RateStorage is optional; without it rate limits are per process.
	RateStorage fiber.Storage
	// StaticDir serves css, js and images. Empty disables static files.
	StaticDir string
}

// PhotoBucket stores and serves user photos.
type PhotoBucket interface {
	storage.PhotoStore
	handlers.PhotoSource
}

// New builds the application.
func New(d Deps) *fiber.App {
	cfg := d.Config
	verbose := !cfg.IsProduction()

	app := fiber.New(fiber.Config{
		AppName:      "tourbook",
		ErrorHandler: handlers.NewErrorHandler(verbose, d.Log),
		Views:        views.New(false),
		BodyLimit:    cfg.Security.UploadLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// Behind a load balancer the client address comes from this header.
		ProxyHeader: cfg.Security.ProxyHeader,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: verbose}))
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if verbose {
		app.Use(logger.New(logger.Config{
			Format: "${time} | ${status} | ${latency} | ${method} ${path} | ${locals:requestid}\n",
		}))
	}
	app.Use(cors.New())
	app.Use(middleware.SecurityHeaders())
	app.Use("/api", middleware.RateLimit(cfg.Security.RateLimitMax, cfg.Security.RateLimitSpan, d.RateStorage))
	app.Use(middleware.BodyCap(cfg.Security.BodyLimit))
	app.Use(middleware.Sanitize())

	var photos storage.PhotoStore
	var photoSource handlers.PhotoSource
	if d.Photos != nil {
		photos, photoSource = d.Photos, d.Photos
	}

	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	authSvc := services.NewAuthService(d.Users, tokens, d.Mailer, photos, services.AuthConfig{
		BcryptCost:         cfg.Security.BcryptCost,
		ResetTokenTTL:      cfg.Security.ResetTokenTTL,
		RevealUnknownEmail: cfg.Security.RevealUnknownEmail,
	}, d.Log)
	tourSvc := services.NewTourService(d.Tours)
	reviewSvc := services.NewReviewService(d.Reviews, d.Tours, d.Log)
	bookingSvc := services.NewBookingService(d.Tours, d.Bookings, d.Payments)
	directory := services.NewDirectory(d.Users)

	qopts := query.Options{DefaultLimit: cfg.Query.DefaultLimit, MaxLimit: cfg.Query.MaxLimit}
	guard := middleware.NewGuard(authSvc)

	bookings := handlers.NewBookingHandler(d.Bookings, bookingSvc, qopts, cfg.PublicURL)
	reviews := handlers.NewReviewResource(d.Reviews, reviewSvc, qopts)

	api := app.Group("/api/v1")
	registerUsers(api, guard, handlers.NewAuthHandler(authSvc, cfg.CookieTTL(), cfg.IsProduction(), cfg.PublicURL),
		handlers.NewUserResource(d.Users, qopts), bookings)
	registerTours(api, guard, handlers.NewTourHandler(d.Tours, tourSvc, qopts), reviews)
	registerReviews(api, guard, reviews)
	registerBookings(api, guard, bookings)

	registerViews(app, guard, handlers.NewViewHandler(tourSvc, reviewSvc, bookingSvc, directory, cfg.MapboxKey, d.Log))
	app.Get("/img/users/:key", handlers.UserPhoto(photoSource))
	if d.StaticDir != "" {
		app.Static("/", d.StaticDir)
	}

	app.All("*", handlers.NotFound)
	return app
}
