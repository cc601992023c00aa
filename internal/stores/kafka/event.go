package kafka

import "time"

const (
	TopicAccountCreated = `storefront.account-created`
	TopicOrderPaid      = `storefront.order-paid`
)

// AccountCreatedEvent is produced after a successful signup, keyed by user id.
type AccountCreatedEvent struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderPaidEvent is produced once the payment webhook marked an order paid, keyed by session id.
type OrderPaidEvent struct {
	OrderID         int64     `json:"order_id"`
	UserID          int64     `json:"user_id"`
	StripeSessionID string    `json:"stripe_session_id"`
	TotalCents      int64     `json:"total_cents"`
	Email           string    `json:"email"`
	PaidAt          time.Time `json:"paid_at"`
}
