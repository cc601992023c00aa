// Package payments talks to Stripe: hosted checkout sessions and signed webhook events.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/checkout"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

// MetadataUserID is the checkout session metadata key carrying the buyer's user id.
const MetadataUserID = "userId"

var (
	ErrNotConfigured    = errors.New("stripe is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type Config struct {
	SecretKey         string
	WebhookSecret     string
	Currency          string
	SuccessURL        string
	CancelURL         string
	ShippingCountries []string
}

type Stripe struct {
	cfg      Config
	sessions *session.Client
}

func NewStripe(cfg Config) *Stripe {
	s := &Stripe{cfg: cfg}
	if cfg.SecretKey != "" {
		s.sessions = &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	}
	return s
}

// Session is the part of a created checkout session the storefront keeps.
type Session struct {
	ID          string
	URL         string
	AmountTotal int64
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// SessionParams maps a quote onto Stripe checkout session parameters.
func (s *Stripe) SessionParams(userID int64, q checkout.Quote) *stripe.CheckoutSessionParams {
	currency := stripe.String(s.cfg.Currency)

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(q.Lines))
	for _, l := range q.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(l.Name),
			Metadata: map[string]string{"color": l.Color, "size": l.Size},
		}
		if l.Description != "" {
			product.Description = stripe.String(l.Description)
		}
		if isAbsoluteURL(l.ImgSrc) {
			product.Images = stripe.StringSlice([]string{l.ImgSrc})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    currency,
				ProductData: product,
				UnitAmount:  stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		LineItems:                lineItems,
		BillingAddressCollection: stripe.String("required"),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(s.cfg.ShippingCountries),
		},
		ShippingOptions: []*stripe.CheckoutSessionShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
					Type:        stripe.String("fixed_amount"),
					DisplayName: stripe.String("Free shipping"),
					FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(0),
						Currency: currency,
					},
				},
			},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	params.AddMetadata(MetadataUserID, strconv.FormatInt(userID, 10))
	return params
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, userID int64, q checkout.Quote) (Session, error) {
	if s.sessions == nil {
		return Session{}, ErrNotConfigured
	}
	params := s.SessionParams(userID, q)
	params.Context = ctx

	cs, err := s.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}
	return Session{ID: cs.ID, URL: cs.URL, AmountTotal: cs.AmountTotal}, nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw payload.
func (s *Stripe) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.cfg.WebhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return event, nil
}
