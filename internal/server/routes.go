package server

import (
	"github.com/arzan03/tourbook/internal/handlers"
	"github.com/arzan03/tourbook/internal/middleware"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/gofiber/fiber/v2"
)

func registerViews(app *fiber.App, g *middleware.Guard, h *handlers.ViewHandler) {
	app.Get("/", g.IsLoggedIn, h.BookingCheckout, h.Overview)
	app.Get("/tour/:slug", g.IsLoggedIn, h.Tour)
	app.Get("/login", g.IsLoggedIn, h.Login)
	app.Get("/me", g.Protect, h.Account)
	app.Get("/my-tours", g.Protect, h.MyTours)
}

func registerUsers(api fiber.Router, g *middleware.Guard, a *handlers.AuthHandler,
	users handlers.Resource[models.User], bookings *handlers.BookingHandler) {
	r := api.Group("/users")

	r.Post("/signup", a.Signup)
	r.Post("/login", a.Login)
	r.Get("/logout", a.Logout)
	r.Post("/forgotPassword", a.ForgotPassword)
	r.Patch("/resetPassword/:token", a.ResetPassword)

	r.Patch("/updateMyPassword", g.Protect, a.UpdatePassword)
	r.Get("/me", g.Protect, a.GetMe)
	r.Patch("/updateMe", g.Protect, a.UpdateMe)
	r.Delete("/deleteMe", g.Protect, a.DeleteMe)

	admin := g.RestrictTo(models.RoleAdmin)
	r.Get("/:userId/bookings", admin, bookings.GetAll)
	r.Get("/", admin, users.GetAll)
	r.Post("/", admin, users.CreateOne)
	r.Get("/:id", admin, users.GetOne)
	r.Patch("/:id", admin, users.UpdateOne)
	r.Delete("/:id", admin, users.DeleteOne)
}

func registerTours(api fiber.Router, g *middleware.Guard, t *handlers.TourHandler, reviews handlers.Resource[models.Review]) {
	r := api.Group("/tours")
	editors := g.RestrictTo(models.RoleAdmin, models.RoleLeadGuide)

	r.Get("/top-5-cheap", handlers.AliasTopTours, t.GetAll)
	r.Get("/tour-stats", t.Stats)
	r.Get("/monthly-plan/:year", g.RestrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide), t.MonthlyPlan)

	r.Get("/", t.GetAll)
	r.Post("/", editors, t.CreateOne)
	r.Get("/:id", t.GetOne)
	r.Patch("/:id", editors, t.UpdateOne)
	r.Delete("/:id", editors, t.DeleteOne)

	r.Get("/:tourId/reviews", g.Protect, reviews.GetAll)
	r.Post("/:tourId/reviews", g.RestrictTo(models.RoleUser), reviews.CreateOne)
}

func registerReviews(api fiber.Router, g *middleware.Guard, reviews handlers.Resource[models.Review]) {
	r := api.Group("/reviews", g.Protect)
	writers := g.RestrictTo(models.RoleUser, models.RoleAdmin)

	r.Get("/", reviews.GetAll)
	r.Post("/", g.RestrictTo(models.RoleUser), reviews.CreateOne)
	r.Get("/:id", reviews.GetOne)
	r.Patch("/:id", writers, reviews.UpdateOne)
	r.Delete("/:id", writers, reviews.DeleteOne)
}

func registerBookings(api fiber.Router, g *middleware.Guard, b *handlers.BookingHandler) {
	r := api.Group("/bookings", g.Protect)
	r.Get("/checkout-session/:tourId", b.CheckoutSession)

	staff := g.RestrictTo(models.RoleAdmin, models.RoleLeadGuide)
	r.Get("/", staff, b.GetAll)
	r.Post("/", staff, b.CreateOne)
	r.Get("/:id", staff, b.GetOne)
	r.Patch("/:id", staff, b.UpdateOne)
	r.Delete("/:id", staff, b.DeleteOne)
}
