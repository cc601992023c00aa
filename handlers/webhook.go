package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/stores/kafka"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = int64(65536)

// Webhook applies signed payment events. Only paid checkout sessions change state.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Webhook Error"})
		return
	}

	event, err := h.pay.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		slog.Error("webhook signature error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Webhook Error"})
		return
	}
	eventType := string(event.Type)

	if !payments.IsPaidEvent(event.Type) {
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("event_type", eventType))
		metrics.WebhookEvents.WithLabelValues(eventType, "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	cs, err := payments.ParseCompletedSession(event)
	if err != nil {
		slog.Error("failed to decode checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		metrics.WebhookEvents.WithLabelValues(eventType, "rejected").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Webhook Error"})
		return
	}

	// Delayed payment methods complete the session unpaid; async_payment_succeeded follows.
	if event.Type == payments.EventSessionCompleted && cs.PaymentStatus == "unpaid" {
		slog.Info("checkout session completed without payment", slog.String(logkey.TraceID, traceId), slog.String(logkey.SessionID, cs.ID))
		metrics.WebhookEvents.WithLabelValues(eventType, "unpaid").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	payment := orders.Payment{
		Email: cs.Email,
		Shipping: orders.Shipping{
			Name:       cs.Shipping.Name,
			Line1:      cs.Shipping.Address.Line1,
			Line2:      cs.Shipping.Address.Line2,
			City:       cs.Shipping.Address.City,
			PostalCode: cs.Shipping.Address.PostalCode,
			Country:    cs.Shipping.Address.Country,
		},
	}

	order, flipped, err := h.o.MarkPaid(c.Request.Context(), cs.ID, cs.UserID, payment)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			slog.Warn("no order for paid checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.SessionID, cs.ID))
			metrics.WebhookEvents.WithLabelValues(eventType, "unknown_order").Inc()
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		slog.Error("failed to update order", slog.String(logkey.TraceID, traceId), slog.String(logkey.SessionID, cs.ID),
			slog.String(logkey.ERROR, err.Error()))
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	if flipped {
		metrics.WebhookEvents.WithLabelValues(eventType, "paid").Inc()
		go h.publishOrderPaid(traceId, order)
	} else {
		metrics.WebhookEvents.WithLabelValues(eventType, "replayed").Inc()
	}

	slog.Info("order paid", slog.String(logkey.TraceID, traceId), slog.String(logkey.SessionID, cs.ID),
		slog.Int64("order_id", order.ID), slog.Bool("replayed", !flipped))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) publishOrderPaid(traceId string, order orders.Order) {
	data, err := json.Marshal(kafka.OrderPaidEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		StripeSessionID: order.StripeSessionID,
		TotalCents:      order.TotalCents,
		Email:           order.Email,
		PaidAt:          order.UpdatedAt.UTC(),
	})
	if err != nil {
		slog.Error("failed to marshal OrderPaidEvent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.k.ProduceMessage(ctx, kafka.TopicOrderPaid, []byte(order.StripeSessionID), data); err != nil {
		slog.Error("failed to produce message", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		return
	}
	slog.Info("message produced", slog.String(logkey.TraceID, traceId), slog.String("topic", kafka.TopicOrderPaid))
}
