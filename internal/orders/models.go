package orders

import "time"

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

type Shipping struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is created pending when a checkout session starts and becomes paid from the webhook.
type Order struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	StripeSessionID string    `json:"stripe_session_id"`
	TotalCents      int64     `json:"total_cents"`
	Status          string    `json:"status"`
	Email           string    `json:"email,omitempty"`
	Shipping        *Shipping `json:"shipping,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Payment is the buyer data captured by the payment provider.
type Payment struct {
	Email    string
	Shipping Shipping
}
