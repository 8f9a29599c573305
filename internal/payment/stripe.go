// Package payment creates hosted checkout sessions with Stripe.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// Config holds the Stripe credentials and limits.
type Config struct {
	SecretKey string
	Currency  string
	BaseURL   string
	Timeout   time.Duration
}

// Item is the single line item of a checkout.
type Item struct {
	Name        string
	Description string
	Image       string
	// Amount is in the currency's major unit.
	Amount   float64
	Quantity int
}

// CheckoutRequest describes a session to create.
type CheckoutRequest struct {
	CustomerEmail     string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Item              Item
}

// Session is the subset of the Stripe checkout session the app uses.
type Session struct {
	ID  string
	URL string
}

// Checkout is the provider's view of a finished session.
type Checkout struct {
	ID                string
	ClientReferenceID string
	CustomerEmail     string
	Paid              bool
}

// Gateway creates checkout sessions and reports their outcome.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
	GetCheckout(ctx context.Context, sessionID string) (Checkout, error)
}

type Stripe struct {
	cfg      Config
	sessions session.Client
}

func NewStripe(cfg Config) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = stripe.APIURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		URL:               stripe.String(strings.TrimRight(cfg.BaseURL, "/")),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &Stripe{cfg: cfg, sessions: session.Client{B: backend, Key: cfg.SecretKey}}
}

// Enabled reports whether a secret key was configured.
func (s *Stripe) Enabled() bool {
	return strings.TrimSpace(s.cfg.SecretKey) != ""
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	if !s.Enabled() {
		return Session{}, apperror.Unavailable("Payments are not configured.")
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	params := s.checkoutParams(req)
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())

	sess, err := s.sessions.New(params)
	if err != nil {
		return Session{}, providerError(err, "Could not create checkout session.")
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// GetCheckout fetches a session to confirm its payment. Unknown ids are a NotFound error.
func (s *Stripe) GetCheckout(ctx context.Context, sessionID string) (Checkout, error) {
	if !s.Enabled() {
		return Checkout{}, apperror.Unavailable("Payments are not configured.")
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.sessions.Get(sessionID, params)
	if err != nil {
		var apiErr *stripe.Error
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
			return Checkout{}, apperror.Wrap(err, apperror.KindNotFound, http.StatusNotFound,
				"No checkout session found with that ID")
		}
		return Checkout{}, providerError(err, "Could not confirm the payment.")
	}
	email := sess.CustomerEmail
	if email == "" && sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	return Checkout{
		ID:                sess.ID,
		ClientReferenceID: sess.ClientReferenceID,
		CustomerEmail:     email,
		Paid:              sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}, nil
}

func providerError(err error, msg string) error {
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) {
		return apperror.Wrap(fmt.Errorf("stripe status %d: %s", apiErr.HTTPStatusCode, apiErr.Msg),
			apperror.KindUnavailable, http.StatusBadGateway, msg)
	}
	return apperror.Wrap(err, apperror.KindUnavailable, http.StatusBadGateway,
		"Payment provider is unreachable. Please try again later.")
}

func (s *Stripe) checkoutParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	qty := req.Item.Quantity
	if qty <= 0 {
		qty = 1
	}
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Item.Name),
	}
	if req.Item.Description != "" {
		product.Description = stripe.String(req.Item.Description)
	}
	if req.Item.Image != "" {
		product.Images = stripe.StringSlice([]string{req.Item.Image})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(int64(qty)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.cfg.Currency),
				UnitAmount:  stripe.Int64(int64(req.Item.Amount*100 + 0.5)),
				ProductData: product,
			},
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	return params
}
