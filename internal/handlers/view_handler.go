package handlers

import (
	"context"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/middleware"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/arzan03/tourbook/internal/utils"
	"github.com/arzan03/tourbook/internal/views"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type reviewView struct {
	Review models.Review
	Author models.User
}

// ViewHandler renders the website pages.
type ViewHandler struct {
	tours     *services.TourService
	reviews   *services.ReviewService
	bookings  *services.BookingService
	directory *services.Directory
	mapboxKey string
	log       logging.Logger
}

func NewViewHandler(tours *services.TourService, reviews *services.ReviewService, bookings *services.BookingService,
	directory *services.Directory, mapboxKey string, log logging.Logger) *ViewHandler {
	return &ViewHandler{
		tours:     tours,
		reviews:   reviews,
		bookings:  bookings,
		directory: directory,
		mapboxKey: mapboxKey,
		log:       log,
	}
}

func (h *ViewHandler) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if user, ok := middleware.CurrentUser(c); ok {
		data["User"] = &user
	}
	return c.Status(fiber.StatusOK).Render(name, data, views.Layout)
}

// BookingCheckout records the booking when the payment provider redirects back with ?tour= and
// ?session_id=. Anonymous callers are ignored.
func (h *ViewHandler) BookingCheckout(c *fiber.Ctx) error {
	raw := c.Query("tour")
	user, ok := middleware.CurrentUser(c)
	if raw == "" || !ok {
		return c.Next()
	}
	tourID, err := store.ParseID(raw)
	if err != nil {
		return err
	}
	if _, err := h.bookings.CreateFromCheckout(c.UserContext(), c.Query("session_id"), tourID, user); err != nil {
		return err
	}
	h.log.Info(c.UserContext(), "booking created", "tour", tourID.Hex(), "user", user.ID.Hex())
	return c.Redirect("/my-tours")
}

func (h *ViewHandler) Overview(c *fiber.Ctx) error {
	tours, err := h.tours.All(c.UserContext())
	if err != nil {
		return err
	}
	return h.render(c, "overview", fiber.Map{"Title": "All Tours", "Tours": tours})
}

// Tour shows one tour with its reviews and guides, loaded concurrently.
func (h *ViewHandler) Tour(c *fiber.Ctx) error {
	tour, err := h.tours.BySlug(c.UserContext(), c.Params("slug"))
	if apperror.IsKind(err, apperror.KindNotFound) {
		return apperror.NotFound("There is no tour with that name.")
	}
	if err != nil {
		return err
	}

	var (
		reviews []reviewView
		guides  []models.User
	)
	err = utils.RunParallel(c.UserContext(),
		func(ctx context.Context) error {
			list, err := h.reviews.ForTour(ctx, tour.ID)
			if err != nil {
				return err
			}
			ids := make([]primitive.ObjectID, 0, len(list))
			for _, r := range list {
				ids = append(ids, r.User)
			}
			authors, err := h.directory.ByIDs(ctx, ids)
			if err != nil {
				return err
			}
			for _, r := range list {
				reviews = append(reviews, reviewView{Review: r, Author: authors[r.User]})
			}
			return nil
		},
		func(ctx context.Context) error {
			byID, err := h.directory.ByIDs(ctx, tour.Guides)
			if err != nil {
				return err
			}
			for _, id := range tour.Guides {
				if g, ok := byID[id]; ok {
					guides = append(guides, g)
				}
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	locations, err := json.Marshal(tour.Locations)
	if err != nil {
		return apperror.Internal(err)
	}
	return h.render(c, "tour", fiber.Map{
		"Title":     tour.Name + " Tour",
		"Tour":      tour,
		"Reviews":   reviews,
		"Guides":    guides,
		"Locations": string(locations),
		"MapboxKey": h.mapboxKey,
	})
}

func (h *ViewHandler) Login(c *fiber.Ctx) error {
	return h.render(c, "login", fiber.Map{"Title": "Log into your account"})
}

func (h *ViewHandler) Account(c *fiber.Ctx) error {
	return h.render(c, "account", fiber.Map{"Title": "Your account"})
}

func (h *ViewHandler) MyTours(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	tours, err := h.bookings.MyTours(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return h.render(c, "overview", fiber.Map{"Title": "My Tours", "Tours": tours})
}
