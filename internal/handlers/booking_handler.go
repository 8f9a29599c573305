package handlers

import (
	"time"

	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type bookingInput struct {
	Tour  string   `json:"tour" validate:"required,mongodb"`
	User  string   `json:"user" validate:"required,mongodb"`
	Price *float64 `json:"price" validate:"required,gt=0"`
	Paid  *bool    `json:"paid"`
}

type bookingPatch struct {
	Price *float64 `json:"price" validate:"omitempty,gt=0"`
	Paid  *bool    `json:"paid"`
}

type BookingHandler struct {
	Resource[models.Booking]
	svc       *services.BookingService
	publicURL string
}

func NewBookingHandler(repo store.Repository[models.Booking], svc *services.BookingService, opts query.Options, publicURL string) *BookingHandler {
	h := &BookingHandler{svc: svc, publicURL: publicURL}
	h.Resource = Resource[models.Booking]{
		Repo:    repo,
		Builder: query.NewBuilder(models.BookingSchema, opts),
		Parents: map[string]string{"userId": "user", "tourId": "tour"},
		Create: func(c *fiber.Ctx) (models.Booking, error) {
			var in bookingInput
			if err := parseBody(c, &in); err != nil {
				return models.Booking{}, err
			}
			if err := services.Validate(in); err != nil {
				return models.Booking{}, err
			}
			tourID, _ := primitive.ObjectIDFromHex(in.Tour)
			userID, _ := primitive.ObjectIDFromHex(in.User)
			b := models.Booking{Tour: tourID, User: userID, Price: *in.Price, Paid: true, CreatedAt: time.Now().UTC()}
			if in.Paid != nil {
				b.Paid = *in.Paid
			}
			return b, nil
		},
		Update: func(c *fiber.Ctx, _ primitive.ObjectID) (bson.M, error) {
			var in bookingPatch
			if err := parseBody(c, &in); err != nil {
				return nil, err
			}
			if err := services.Validate(in); err != nil {
				return nil, err
			}
			set := bson.M{}
			if in.Price != nil {
				set["price"] = *in.Price
			}
			if in.Paid != nil {
				set["paid"] = *in.Paid
			}
			return set, nil
		},
	}
	return h
}

// CheckoutSession starts a hosted payment for the tour in the path.
func (h *BookingHandler) CheckoutSession(c *fiber.Ctx) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	tourID, err := store.ParseID(c.Params("tourId"))
	if err != nil {
		return err
	}
	session, err := h.svc.CheckoutSession(c.UserContext(), tourID, me, h.publicURL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "session": session})
}
