package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"storefront/internal/orders"
	"storefront/internal/stores/kafka"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

func TestCheckoutEmptyBasket(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, request{method: http.MethodPost, path: "/create-checkout-session", token: env.tokenFor(t, 7, false)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Basket empty"}`, rec.Body.String())
	assert.Zero(t, env.gateway.created)
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, 7, false)
	env.do(t, request{method: http.MethodPost, path: "/products/1/basket", token: token})
	env.do(t, request{method: http.MethodPost, path: "/products/1/basket", token: token})
	env.do(t, request{method: http.MethodPost, path: "/products/2/basket", token: token})

	rec := env.do(t, request{method: http.MethodPost, path: "/create-checkout-session", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "cs_test_1", resp["checkoutSessionId"])
	assert.Contains(t, resp["url"], "cs_test_1")

	assert.Equal(t, int64(7), env.gateway.lastUser)
	require.Len(t, env.gateway.lastQ.Lines, 2)
	assert.Equal(t, int64(1999), env.gateway.lastQ.Lines[0].UnitAmount)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/shirts/basic", env.gateway.lastQ.Lines[0].ImgSrc)

	order := env.orders.get("cs_test_1")
	assert.Equal(t, orders.StatusPending, order.Status)
	assert.Equal(t, int64(2*1999+4950), order.TotalCents)
	assert.Equal(t, int64(7), order.UserID)
}

func TestCheckoutGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, 7, false)
	env.do(t, request{method: http.MethodPost, path: "/products/1/basket", token: token})
	env.gateway.fail = errors.New("card_declined")

	rec := env.do(t, request{method: http.MethodPost, path: "/create-checkout-session", token: token})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = env.do(t, request{method: http.MethodGet, path: "/orders", token: token})
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func signedWebhook(t *testing.T, payload string) request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return request{
		method: http.MethodPost,
		path:   "/stripe/webhook",
		body:   []byte(payload),
		header: map[string]string{"Stripe-Signature": signed.Header},
	}
}

func sessionEvent(eventType, sessionID string, userID int64, paymentStatus string) string {
	return fmt.Sprintf(`{
  "id": "evt_%[2]s",
  "object": "event",
  "type": %[1]q,
  "data": {"object": {
    "id": %[2]q,
    "object": "checkout.session",
    "payment_status": %[4]q,
    "metadata": {"userId": "%[3]d"},
    "customer_details": {"email": "buyer@example.com", "name": "Buyer"},
    "collected_information": {"shipping_details": {
      "name": "Buyer",
      "address": {"line1": "1 Main St", "city": "Springfield", "postal_code": "12345", "country": "US"}
    }}
  }}
}`, eventType, sessionID, userID, paymentStatus)
}

// checkedOut fills user 7's basket and opens a checkout session for it.
func checkedOut(t *testing.T, env *testEnv) (string, string) {
	t.Helper()
	token := env.tokenFor(t, 7, false)
	env.do(t, request{method: http.MethodPost, path: "/products/1/basket", token: token})
	rec := env.do(t, request{method: http.MethodPost, path: "/create-checkout-session", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	return token, decode[map[string]string](t, rec)["checkoutSessionId"]
}

func TestWebhookMarksPaidAndClearsBasket(t *testing.T) {
	env := newTestEnv(t)
	token, sessionID := checkedOut(t, env)

	rec := env.do(t, signedWebhook(t, sessionEvent("checkout.session.completed", sessionID, 7, "paid")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	order := env.orders.get(sessionID)
	assert.Equal(t, orders.StatusPaid, order.Status)
	assert.Equal(t, "buyer@example.com", order.Email)
	require.NotNil(t, order.Shipping)
	assert.Equal(t, "Springfield", order.Shipping.City)

	rec = env.do(t, request{method: http.MethodGet, path: "/basketItems", token: token})
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Eventually(t, func() bool { return env.events.count(kafka.TopicOrderPaid) == 1 }, time.Second, 10*time.Millisecond)

	// replayed delivery
	rec = env.do(t, signedWebhook(t, sessionEvent("checkout.session.completed", sessionID, 7, "paid")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusPaid, env.orders.get(sessionID).Status)
	assert.Never(t, func() bool { return env.events.count(kafka.TopicOrderPaid) > 1 }, 200*time.Millisecond, 10*time.Millisecond)

	rec = env.do(t, request{method: http.MethodGet, path: "/orders/session/" + sessionID, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode[gin.H](t, rec)["status"])

	rec = env.do(t, request{method: http.MethodGet, path: "/orders/session/" + sessionID, token: env.tokenFor(t, 8, false)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, request{method: http.MethodGet, path: "/orders", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]gin.H](t, rec), 1)
}

func TestWebhookAsyncPayment(t *testing.T) {
	env := newTestEnv(t)
	_, sessionID := checkedOut(t, env)

	rec := env.do(t, signedWebhook(t, sessionEvent("checkout.session.completed", sessionID, 7, "unpaid")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusPending, env.orders.get(sessionID).Status)

	rec = env.do(t, signedWebhook(t, sessionEvent("checkout.session.async_payment_succeeded", sessionID, 7, "paid")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusPaid, env.orders.get(sessionID).Status)
}

func TestWebhookRejectsAndIgnores(t *testing.T) {
	env := newTestEnv(t)
	_, sessionID := checkedOut(t, env)

	payload := sessionEvent("checkout.session.completed", sessionID, 7, "paid")
	rec := env.do(t, request{method: http.MethodPost, path: "/stripe/webhook", body: []byte(payload),
		header: map[string]string{"Stripe-Signature": "t=1,v1=bad"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, orders.StatusPending, env.orders.get(sessionID).Status)

	rec = env.do(t, request{method: http.MethodPost, path: "/stripe/webhook", body: []byte(payload)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, signedWebhook(t, `{"id":"evt_x","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = env.do(t, signedWebhook(t, sessionEvent("checkout.session.completed", "cs_unknown", 7, "paid")))
	assert.Equal(t, http.StatusOK, rec.Code)

	env.orders.failDB = true
	rec = env.do(t, signedWebhook(t, payload))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
