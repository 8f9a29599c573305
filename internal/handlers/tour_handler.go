package handlers

import (
	"strconv"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/query"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TourHandler struct {
	Resource[models.Tour]
	svc *services.TourService
}

func NewTourHandler(repo store.Repository[models.Tour], svc *services.TourService, opts query.Options) *TourHandler {
	h := &TourHandler{svc: svc}
	h.Resource = Resource[models.Tour]{
		Repo:    repo,
		Builder: query.NewBuilder(models.TourSchema, opts),
		Create: func(c *fiber.Ctx) (models.Tour, error) {
			var in services.TourInput
			if err := parseBody(c, &in); err != nil {
				return models.Tour{}, err
			}
			if err := in.Check(true); err != nil {
				return models.Tour{}, err
			}
			return in.NewTour(time.Now())
		},
		Update: func(c *fiber.Ctx, id primitive.ObjectID) (bson.M, error) {
			var in services.TourInput
			if err := parseBody(c, &in); err != nil {
				return nil, err
			}
			if err := in.Check(false); err != nil {
				return nil, err
			}
			if in.Price != nil || in.PriceDiscount != nil {
				current, err := repo.FindByID(c.UserContext(), id)
				if err != nil {
					return nil, err
				}
				if err := in.CheckDiscount(current); err != nil {
					return nil, err
				}
			}
			return in.Fields()
		},
	}
	return h
}

// AliasTopTours rewrites the query to the five best rated, cheapest tours.
func AliasTopTours(c *fiber.Ctx) error {
	args := c.Request().URI().QueryArgs()
	args.Set("limit", "5")
	args.Set("sort", "-ratingsAverage,price")
	args.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	return c.Next()
}

func (h *TourHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.svc.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": fiber.Map{"stats": stats}})
}

func (h *TourHandler) MonthlyPlan(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year < 1970 || year > 9999 {
		return apperror.Validation("Invalid year: " + c.Params("year") + ".")
	}
	plan, err := h.svc.MonthlyPlan(c.UserContext(), year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "results": len(plan), "data": fiber.Map{"plan": plan}})
}
