package payments

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
)

// Event types that mean a checkout session has been paid.
const (
	EventSessionCompleted             = "checkout.session.completed"
	EventSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

func IsPaidEvent(t stripe.EventType) bool {
	return t == EventSessionCompleted || t == EventSessionAsyncPaymentSucceeded
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type ShippingDetails struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

// CompletedSession is what the webhook needs from a paid checkout session.
type CompletedSession struct {
	ID            string
	UserID        int64
	PaymentStatus string
	Email         string
	Shipping      ShippingDetails
}

// rawSession decodes both the legacy top-level shipping_details and the
// collected_information block used by newer API versions.
type rawSession struct {
	ID              string            `json:"id"`
	Metadata        map[string]string `json:"metadata"`
	PaymentStatus   string            `json:"payment_status"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	ShippingDetails      *ShippingDetails `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *ShippingDetails `json:"shipping_details"`
	} `json:"collected_information"`
}

// ParseCompletedSession decodes the checkout session inside a paid event.
// A missing or malformed userId metadata value leaves UserID at zero.
func ParseCompletedSession(event stripe.Event) (CompletedSession, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return CompletedSession{}, fmt.Errorf("event %s has no data", event.ID)
	}

	var raw rawSession
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return CompletedSession{}, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	if raw.ID == "" {
		return CompletedSession{}, fmt.Errorf("event %s carries a session without id", event.ID)
	}

	cs := CompletedSession{
		ID:            raw.ID,
		PaymentStatus: raw.PaymentStatus,
		Email:         raw.CustomerEmail,
	}
	if id, err := strconv.ParseInt(raw.Metadata[MetadataUserID], 10, 64); err == nil && id > 0 {
		cs.UserID = id
	}

	if raw.CustomerDetails != nil {
		if raw.CustomerDetails.Email != "" {
			cs.Email = raw.CustomerDetails.Email
		}
		cs.Shipping.Name = raw.CustomerDetails.Name
	}

	switch {
	case raw.CollectedInformation != nil && raw.CollectedInformation.ShippingDetails != nil:
		cs.Shipping = *raw.CollectedInformation.ShippingDetails
	case raw.ShippingDetails != nil:
		cs.Shipping = *raw.ShippingDetails
	}
	return cs, nil
}
