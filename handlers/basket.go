package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"storefront/internal/basket"
	"storefront/internal/checkout"
	"storefront/internal/metrics"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"

	"github.com/gin-gonic/gin"
)

type basketLineProduct struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImgSrc      string  `json:"imgSrc"`
}

type basketLineResponse struct {
	ID        int64             `json:"id"`
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Color     string            `json:"color"`
	Size      string            `json:"size"`
	Product   basketLineProduct `json:"product"`
}

type checkoutLineResponse struct {
	ProductID   int64   `json:"product_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImgSrc      string  `json:"img_src"`
	Price       float64 `json:"price"`
	Color       string  `json:"color"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
}

type basketIDRequest struct {
	BasketID int64 `json:"basketId" binding:"required"`
}

type updateQuantityRequest struct {
	BasketID int64 `json:"basketId" binding:"required"`
	Quantity int   `json:"quantity"`
}

// basketError maps store errors onto responses and logs anything unexpected.
func basketError(c *gin.Context, traceId string, err error, msg string) {
	switch {
	case errors.Is(err, basket.ErrItemNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Basket item not found"})
	case errors.Is(err, basket.ErrProductNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, basket.ErrInvalidQuantity):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Quantity must be at least 1"})
	default:
		slog.Error(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func (h *Handler) AddToBasket(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	productID, ok := parseID(c, "number")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid product id"})
		return
	}

	var request struct {
		Color string `json:"color"`
		Size  string `json:"size"`
	}
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, created, err := h.b.AddItem(c.Request.Context(), claims.UserID, productID, request.Color, request.Size)
	if err != nil {
		basketError(c, traceId, err, "Error inserting values")
		return
	}
	metrics.BasketMutations.WithLabelValues("add").Inc()
	slog.Info("basket item added", slog.String(logkey.TraceID, traceId), slog.Int64(logkey.UserID, claims.UserID),
		slog.Int64(logkey.BasketID, item.ID), slog.Int("quantity", item.Quantity))

	if created {
		c.JSON(http.StatusOK, gin.H{"message": "Added new item to basket", "item": item})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quantity updated", "item": item})
}

func (h *Handler) BasketItems(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	lines, err := h.b.ListItems(c.Request.Context(), claims.UserID)
	if err != nil {
		basketError(c, traceId, err, "Error fetching basket items")
		return
	}

	resp := make([]basketLineResponse, 0, len(lines))
	for _, l := range lines {
		resp = append(resp, basketLineResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Color:     l.Color,
			Size:      l.Size,
			Product: basketLineProduct{
				Name:        l.Product.Name,
				Description: l.Product.Description,
				Price:       l.Product.Price.InexactFloat64(),
				ImgSrc:      h.img.URL(l.Product.ImgSrc),
			},
		})
	}
	c.JSON(http.StatusOK, resp)
}

func bindBasketID(c *gin.Context, traceId string) (int64, bool) {
	var request basketIDRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.BasketID <= 0 {
		if err != nil {
			slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "basketId is required"})
		return 0, false
	}
	return request.BasketID, true
}

func (h *Handler) IncreaseQuantity(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	basketID, ok := bindBasketID(c, traceId)
	if !ok {
		return
	}

	if _, err := h.b.Increase(c.Request.Context(), claims.UserID, basketID); err != nil {
		basketError(c, traceId, err, "Increase failed")
		return
	}
	metrics.BasketMutations.WithLabelValues("increase").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Increased quantity"})
}

func (h *Handler) DecreaseQuantity(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	basketID, ok := bindBasketID(c, traceId)
	if !ok {
		return
	}

	removed, err := h.b.Decrease(c.Request.Context(), claims.UserID, basketID)
	if err != nil {
		basketError(c, traceId, err, "Decrease failed")
		return
	}
	metrics.BasketMutations.WithLabelValues("decrease").Inc()
	if removed {
		c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Decreased quantity"})
}

func (h *Handler) RemoveItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	basketID, ok := bindBasketID(c, traceId)
	if !ok {
		return
	}

	if err := h.b.Remove(c.Request.Context(), claims.UserID, basketID); err != nil {
		basketError(c, traceId, err, "Delete failed")
		return
	}
	metrics.BasketMutations.WithLabelValues("remove").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Item removed completely"})
}

func (h *Handler) UpdateQuantity(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	var request updateQuantityRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.BasketID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "basketId and quantity are required"})
		return
	}

	if _, err := h.b.UpdateQuantity(c.Request.Context(), claims.UserID, request.BasketID, request.Quantity); err != nil {
		basketError(c, traceId, err, "Update failed")
		return
	}
	metrics.BasketMutations.WithLabelValues("update").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Quantity updated"})
}

func (h *Handler) CheckoutItems(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	lines, err := h.b.CheckoutLines(c.Request.Context(), claims.UserID)
	if err != nil {
		basketError(c, traceId, err, "Error fetching checkout items")
		return
	}

	resp := make([]checkoutLineResponse, 0, len(lines))
	for _, l := range lines {
		resp = append(resp, checkoutLineResponse{
			ProductID:   l.ProductID,
			Name:        l.Name,
			Description: l.Description,
			ImgSrc:      h.img.URL(l.ImgSrc),
			Price:       l.Price.InexactFloat64(),
			Color:       l.Color,
			Size:        l.Size,
			Quantity:    l.Quantity,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) BasketSummary(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOf(c)
	if !ok {
		return
	}

	lines, err := h.b.CheckoutLines(c.Request.Context(), claims.UserID)
	if err != nil {
		basketError(c, traceId, err, "Error fetching basket summary")
		return
	}

	q := checkout.Price(lines)
	c.JSON(http.StatusOK, gin.H{
		"item_count":     q.ItemCount,
		"subtotal_cents": q.TotalCents,
		"currency":       h.currency,
	})
}
