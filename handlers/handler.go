package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"storefront/api"
	"storefront/internal/auth"
	"storefront/internal/basket"
	"storefront/internal/checkout"
	"storefront/internal/metrics"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/products"
	"storefront/internal/users"
	"storefront/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v81"
	"gopkg.in/yaml.v3"
)

type userStore interface {
	InsertUser(ctx context.Context, nu users.NewUser) (users.User, error)
	Authenticate(ctx context.Context, cred users.Credentials) (users.User, error)
	ListUsers(ctx context.Context) ([]users.User, error)
}

type productStore interface {
	ListProducts(ctx context.Context) ([]products.Product, error)
	GetProductByID(ctx context.Context, id int64) (products.Product, error)
}

type basketStore interface {
	AddItem(ctx context.Context, userID, productID int64, color, size string) (basket.Item, bool, error)
	ListItems(ctx context.Context, userID int64) ([]basket.Line, error)
	Increase(ctx context.Context, userID, basketID int64) (basket.Item, error)
	Decrease(ctx context.Context, userID, basketID int64) (bool, error)
	Remove(ctx context.Context, userID, basketID int64) error
	UpdateQuantity(ctx context.Context, userID, basketID int64, quantity int) (basket.Item, error)
	CheckoutLines(ctx context.Context, userID int64) ([]basket.CheckoutLine, error)
}

type orderStore interface {
	CreateOrder(ctx context.Context, userID int64, sessionID string, totalCents int64) (orders.Order, error)
	MarkPaid(ctx context.Context, sessionID string, basketUserID int64, p orders.Payment) (orders.Order, bool, error)
	ListByUser(ctx context.Context, userID int64) ([]orders.Order, error)
	GetBySession(ctx context.Context, userID int64, sessionID string) (orders.Order, error)
}

type paymentGateway interface {
	CreateCheckoutSession(ctx context.Context, userID int64, q checkout.Quote) (payments.Session, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type eventPublisher interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte) error
}

type imageResolver interface {
	URL(ref string) string
}

// Deps is everything the HTTP API needs. Images and Events may be nil.
type Deps struct {
	Users    userStore
	Products productStore
	Basket   basketStore
	Orders   orderStore
	Payments paymentGateway
	Events   eventPublisher
	Images   imageResolver

	Keys     *auth.Keys
	Sessions auth.SessionStore

	Currency     string
	CORSOrigin   string
	SessionTTL   time.Duration
	SecureCookie bool
}

type Handler struct {
	u   userStore
	p   productStore
	b   basketStore
	o   orderStore
	pay paymentGateway
	k   eventPublisher
	img imageResolver

	keys     *auth.Keys
	sessions auth.SessionStore
	validate *validator.Validate

	currency     string
	sessionTTL   time.Duration
	secureCookie bool

	openAPIJSON []byte
}

type passThrough struct{}

func (passThrough) URL(ref string) string { return ref }

type dropEvents struct{}

func (dropEvents) ProduceMessage(context.Context, string, []byte, []byte) error { return nil }

func NewHandler(d Deps) (*Handler, error) {
	if d.Users == nil || d.Products == nil || d.Basket == nil || d.Orders == nil || d.Payments == nil {
		return nil, errors.New("handler stores and payment gateway must be set")
	}
	if d.Keys == nil || d.Sessions == nil {
		return nil, errors.New("auth keys and session store must be set")
	}

	openAPIJSON, err := openAPIToJSON(api.OpenAPI)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		u:            d.Users,
		p:            d.Products,
		b:            d.Basket,
		o:            d.Orders,
		pay:          d.Payments,
		k:            d.Events,
		img:          d.Images,
		keys:         d.Keys,
		sessions:     d.Sessions,
		validate:     validator.New(),
		currency:     d.Currency,
		sessionTTL:   d.SessionTTL,
		secureCookie: d.SecureCookie,
		openAPIJSON:  openAPIJSON,
	}
	if h.img == nil {
		h.img = passThrough{}
	}
	if h.k == nil {
		h.k = dropEvents{}
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = d.Keys.TTL()
	}
	return h, nil
}

func API(d Deps) (*gin.Engine, error) {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if mode == gin.TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	m, err := middleware.NewMid(d.Keys, d.Sessions)
	if err != nil {
		return nil, err
	}
	h, err := NewHandler(d)
	if err != nil {
		return nil, err
	}

	r.Use(middleware.Logger(), gin.Recovery(), middleware.CORS(d.CORSOrigin), middleware.Metrics())

	r.GET("/ping", healthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/api-docs/openapi.yaml", h.OpenAPIYAML)
	r.GET("/api-docs/openapi.json", h.OpenAPIJSON)

	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.POST("/stripe/webhook", h.Webhook)

	r.GET("/products", h.ListProducts)
	r.GET("/products/:number", h.GetProduct)

	v1 := r.Group("")
	{
		v1.Use(m.Authentication())
		v1.GET("/auth/verify", m.Authorize(h.Verify, auth.RoleUser))
		v1.GET("/users", m.Authorize(h.ListUsers, auth.RoleAdmin))

		v1.POST("/products/:number/basket", m.Authorize(h.AddToBasket, auth.RoleUser))
		v1.GET("/basketItems", m.Authorize(h.BasketItems, auth.RoleUser))
		v1.PUT("/basket/increase", m.Authorize(h.IncreaseQuantity, auth.RoleUser))
		v1.PUT("/basket/decrease", m.Authorize(h.DecreaseQuantity, auth.RoleUser))
		v1.DELETE("/basket/remove", m.Authorize(h.RemoveItem, auth.RoleUser))
		v1.PUT("/basket/updateQuantity", m.Authorize(h.UpdateQuantity, auth.RoleUser))
		v1.GET("/basket/summary", m.Authorize(h.BasketSummary, auth.RoleUser))
		v1.GET("/checkout", m.Authorize(h.CheckoutItems, auth.RoleUser))

		v1.POST("/create-checkout-session", m.Authorize(h.CreateCheckoutSession, auth.RoleUser))
		v1.GET("/orders", m.Authorize(h.ListOrders, auth.RoleUser))
		v1.GET("/orders/session/:sessionId", m.Authorize(h.GetOrderBySession, auth.RoleUser))
	}

	return r, nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) OpenAPIYAML(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", api.OpenAPI)
}

func (h *Handler) OpenAPIJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", h.openAPIJSON)
}

func openAPIToJSON(doc []byte) ([]byte, error) {
	var v map[string]any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("failed to parse openapi document: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode openapi document: %w", err)
	}
	return b, nil
}

// claimsOf returns the authenticated caller, or aborts with 401.
func claimsOf(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return auth.Claims{}, false
	}
	return claims, true
}
