package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront/internal/checkout"
	"storefront/internal/metrics"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	lines, err := h.b.CheckoutLines(ctx, claims.UserID)
	if err != nil {
		slog.Error("failed to fetch basket", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch basket"})
		return
	}

	q, err := checkout.NewQuote(lines)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyBasket) {
			metrics.CheckoutSessions.WithLabelValues("empty").Inc()
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Basket empty"})
			return
		}
		slog.Error("failed to price basket", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to price basket"})
		return
	}
	for i := range q.Lines {
		q.Lines[i].ImgSrc = h.img.URL(q.Lines[i].ImgSrc)
	}

	sess, err := h.pay.CreateCheckoutSession(ctx, claims.UserID, q)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("error").Inc()
		slog.Error("error creating Stripe checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Stripe checkout session"})
		return
	}

	order, err := h.o.CreateOrder(ctx, claims.UserID, sess.ID, q.TotalCents)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("error").Inc()
		slog.Error("error creating order", slog.String(logkey.TraceID, traceId), slog.String(logkey.SessionID, sess.ID),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	metrics.CheckoutSessions.WithLabelValues("created").Inc()

	slog.Info("checkout session created", slog.String(logkey.TraceID, traceId), slog.Int64(logkey.UserID, claims.UserID),
		slog.String(logkey.SessionID, sess.ID), slog.Int64("order_id", order.ID), slog.Int64("total_cents", q.TotalCents))
	c.JSON(http.StatusOK, gin.H{"checkoutSessionId": sess.ID, "url": sess.URL})
}
