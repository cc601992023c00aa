package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront/internal/orders"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	list, err := h.o.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		slog.Error("error fetching orders", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error fetching orders"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetOrderBySession lets the success page poll until the webhook has marked the order paid.
func (h *Handler) GetOrderBySession(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	sessionID := c.Param("sessionId")
	order, err := h.o.GetBySession(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		slog.Error("error fetching order", slog.String(logkey.TraceID, traceId), slog.String(logkey.SessionID, sessionID),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error fetching order"})
		return
	}
	c.JSON(http.StatusOK, order)
}
