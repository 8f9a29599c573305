package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/payment"
	"github.com/arzan03/tourbook/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingService struct {
	tours    store.Repository[models.Tour]
	bookings store.Repository[models.Booking]
	payments payment.Gateway
	now      func() time.Time
}

func NewBookingService(tours store.Repository[models.Tour], bookings store.Repository[models.Booking], payments payment.Gateway) *BookingService {
	return &BookingService{tours: tours, bookings: bookings, payments: payments, now: time.Now}
}

// CheckoutSession opens a hosted payment page for one seat on a tour. baseURL is the public
// origin the provider redirects back to.
func (s *BookingService) CheckoutSession(ctx context.Context, tourID primitive.ObjectID, user models.User, baseURL string) (payment.Session, error) {
	tour, err := s.tours.FindByID(ctx, tourID)
	if err != nil {
		return payment.Session{}, err
	}
	return s.payments.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		CustomerEmail:     user.Email,
		ClientReferenceID: tourID.Hex(),
		SuccessURL:        fmt.Sprintf("%s/?tour=%s&session_id={CHECKOUT_SESSION_ID}", baseURL, tourID.Hex()),
		CancelURL:         fmt.Sprintf("%s/tour/%s", baseURL, tour.Slug),
		Item: payment.Item{
			Name:        tour.Name + " Tour",
			Description: tour.Summary,
			Image:       fmt.Sprintf("%s/img/tours/%s", baseURL, tour.ImageCover),
			Amount:      tour.Price,
			Quantity:    1,
		},
	})
}

// CreateFromCheckout records a paid booking for the logged-in user once the provider redirected
// back. The session must be paid, for this tour and this user's e-mail. The price comes from the
// stored tour, never from the URL. Repeating the redirect returns the booking already made.
func (s *BookingService) CreateFromCheckout(ctx context.Context, sessionID string, tourID primitive.ObjectID, user models.User) (models.Booking, error) {
	if sessionID == "" {
		return models.Booking{}, apperror.Validation("Missing checkout session.")
	}
	existing, err := s.bookings.FindOne(ctx, bson.M{"checkoutSession": sessionID})
	if err == nil {
		if existing.User != user.ID || existing.Tour != tourID {
			return models.Booking{}, errPaymentUnconfirmed()
		}
		return existing, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return models.Booking{}, err
	}

	checkout, err := s.payments.GetCheckout(ctx, sessionID)
	if err != nil {
		return models.Booking{}, err
	}
	if !checkout.Paid || checkout.ClientReferenceID != tourID.Hex() ||
		!strings.EqualFold(checkout.CustomerEmail, user.Email) {
		return models.Booking{}, errPaymentUnconfirmed()
	}

	tour, err := s.tours.FindByID(ctx, tourID)
	if err != nil {
		return models.Booking{}, err
	}
	return s.bookings.Create(ctx, models.Booking{
		Tour:            tour.ID,
		User:            user.ID,
		Price:           tour.Price,
		Paid:            true,
		CheckoutSession: sessionID,
		CreatedAt:       s.now().UTC(),
	})
}

func errPaymentUnconfirmed() error {
	return apperror.Validation("Payment could not be confirmed.")
}

// MyTours returns the tours the user has booked.
func (s *BookingService) MyTours(ctx context.Context, userID primitive.ObjectID) ([]models.Tour, error) {
	bookings, err := s.bookings.Find(ctx, unpaged(models.BookingSchema).Where("user", userID))
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return []models.Tour{}, nil
	}
	ids := make(bson.A, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.Tour)
	}
	return s.tours.Find(ctx, unpaged(models.TourSchema).Where("_id", bson.M{"$in": ids}))
}
