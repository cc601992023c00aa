package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/auth"
	"storefront/internal/basket"
	"storefront/internal/checkout"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/products"
	"storefront/internal/users"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byMail map[string]users.User
	pw     map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byMail: map[string]users.User{}, pw: map[string]string{}}
}

func (f *fakeUsers) InsertUser(_ context.Context, nu users.NewUser) (users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	if _, ok := f.byMail[email]; ok {
		return users.User{}, users.ErrEmailTaken
	}
	f.nextID++
	u := users.User{ID: f.nextID, Name: nu.Name, Surname: nu.Surname, Email: email, IsAdmin: nu.IsAdmin, CreatedAt: time.Now()}
	f.byMail[email] = u
	f.pw[email] = nu.Password
	return u, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, cred users.Credentials) (users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(cred.Email))
	u, ok := f.byMail[email]
	if !ok || f.pw[email] != cred.Password {
		return users.User{}, users.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) ListUsers(context.Context) ([]users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]users.User, 0, len(f.byMail))
	for _, u := range f.byMail {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byMail)
}

type fakeProducts struct {
	list []products.Product
}

func (f *fakeProducts) ListProducts(context.Context) ([]products.Product, error) {
	return f.list, nil
}

func (f *fakeProducts) GetProductByID(_ context.Context, id int64) (products.Product, error) {
	for _, p := range f.list {
		if p.ID == id {
			return p, nil
		}
	}
	return products.Product{}, products.ErrNotFound
}

// fakeBasket mirrors the unique (user, product, color, size) line of the real store.
type fakeBasket struct {
	mu       sync.Mutex
	nextID   int64
	items    map[int64]*basket.Item
	products *fakeProducts
}

func newFakeBasket(p *fakeProducts) *fakeBasket {
	return &fakeBasket{items: map[int64]*basket.Item{}, products: p}
}

func (f *fakeBasket) AddItem(ctx context.Context, userID, productID int64, color, size string) (basket.Item, bool, error) {
	if _, err := f.products.GetProductByID(ctx, productID); err != nil {
		return basket.Item{}, false, basket.ErrProductNotFound
	}
	if color == "" {
		color = basket.DefaultColor
	}
	if size == "" {
		size = basket.DefaultSize
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.UserID == userID && it.ProductID == productID && it.Color == color && it.Size == size {
			it.Quantity++
			return *it, false, nil
		}
	}
	f.nextID++
	it := &basket.Item{ID: f.nextID, UserID: userID, ProductID: productID, Quantity: 1, Color: color, Size: size}
	f.items[it.ID] = it
	return *it, true, nil
}

func (f *fakeBasket) owned(userID, basketID int64) (*basket.Item, error) {
	it, ok := f.items[basketID]
	if !ok || it.UserID != userID {
		return nil, basket.ErrItemNotFound
	}
	return it, nil
}

func (f *fakeBasket) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeBasket) ListItems(ctx context.Context, userID int64) ([]basket.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := []basket.Line{}
	for _, id := range f.sortedIDs() {
		it := f.items[id]
		if it.UserID != userID {
			continue
		}
		p, _ := f.products.GetProductByID(ctx, it.ProductID)
		lines = append(lines, basket.Line{
			Item:    *it,
			Product: basket.LineProduct{Name: p.Name, Description: p.Description, Price: p.Price, ImgSrc: p.ImgSrc},
		})
	}
	return lines, nil
}

func (f *fakeBasket) Increase(_ context.Context, userID, basketID int64) (basket.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.owned(userID, basketID)
	if err != nil {
		return basket.Item{}, err
	}
	it.Quantity++
	return *it, nil
}

func (f *fakeBasket) Decrease(_ context.Context, userID, basketID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.owned(userID, basketID)
	if err != nil {
		return false, err
	}
	if it.Quantity <= 1 {
		delete(f.items, basketID)
		return true, nil
	}
	it.Quantity--
	return false, nil
}

func (f *fakeBasket) Remove(_ context.Context, userID, basketID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.owned(userID, basketID); err != nil {
		return err
	}
	delete(f.items, basketID)
	return nil
}

func (f *fakeBasket) UpdateQuantity(_ context.Context, userID, basketID int64, quantity int) (basket.Item, error) {
	if quantity < 1 {
		return basket.Item{}, basket.ErrInvalidQuantity
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, err := f.owned(userID, basketID)
	if err != nil {
		return basket.Item{}, err
	}
	it.Quantity = quantity
	return *it, nil
}

func (f *fakeBasket) CheckoutLines(ctx context.Context, userID int64) ([]basket.CheckoutLine, error) {
	lines, _ := f.ListItems(ctx, userID)
	out := []basket.CheckoutLine{}
	for _, l := range lines {
		out = append(out, basket.CheckoutLine{
			ProductID:   l.ProductID,
			Name:        l.Product.Name,
			Description: l.Product.Description,
			ImgSrc:      l.Product.ImgSrc,
			Price:       l.Product.Price,
			Color:       l.Color,
			Size:        l.Size,
			Quantity:    l.Quantity,
		})
	}
	return out, nil
}

func (f *fakeBasket) clear(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, it := range f.items {
		if it.UserID == userID {
			delete(f.items, id)
		}
	}
}

type fakeOrders struct {
	mu     sync.Mutex
	nextID int64
	bySess map[string]*orders.Order
	basket *fakeBasket
	failDB bool
}

func newFakeOrders(b *fakeBasket) *fakeOrders {
	return &fakeOrders{bySess: map[string]*orders.Order{}, basket: b}
}

func (f *fakeOrders) CreateOrder(_ context.Context, userID int64, sessionID string, totalCents int64) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Now()
	o := &orders.Order{ID: f.nextID, UserID: userID, StripeSessionID: sessionID, TotalCents: totalCents,
		Status: orders.StatusPending, CreatedAt: now, UpdatedAt: now}
	f.bySess[sessionID] = o
	return *o, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, sessionID string, basketUserID int64, p orders.Payment) (orders.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDB {
		return orders.Order{}, false, errors.New("connection refused")
	}
	o, ok := f.bySess[sessionID]
	if !ok {
		return orders.Order{}, false, orders.ErrOrderNotFound
	}
	flipped := o.Status != orders.StatusPaid
	o.Status = orders.StatusPaid
	o.Email = p.Email
	s := p.Shipping
	o.Shipping = &s
	o.UpdatedAt = time.Now()

	owner := basketUserID
	if owner == 0 {
		owner = o.UserID
	}
	f.basket.clear(owner)
	return *o, flipped, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID int64) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []orders.Order{}
	for _, o := range f.bySess {
		if o.UserID == userID {
			list = append(list, *o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (f *fakeOrders) GetBySession(_ context.Context, userID int64, sessionID string) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.bySess[sessionID]
	if !ok || o.UserID != userID {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return *o, nil
}

func (f *fakeOrders) get(sessionID string) orders.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.bySess[sessionID]
}

const testWebhookSecret = "whsec_test"

// fakeGateway creates sessions locally and verifies webhooks with the real Stripe code.
type fakeGateway struct {
	mu       sync.Mutex
	created  int
	lastUser int64
	lastQ    checkout.Quote
	fail     error
	verifier *payments.Stripe
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verifier: payments.NewStripe(payments.Config{WebhookSecret: testWebhookSecret})}
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, userID int64, q checkout.Quote) (payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return payments.Session{}, f.fail
	}
	f.created++
	f.lastUser = userID
	f.lastQ = q
	id := fmt.Sprintf("cs_test_%d", f.created)
	return payments.Session{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id, AmountTotal: q.TotalCents}, nil
}

func (f *fakeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return f.verifier.ConstructEvent(payload, signature)
}

type fakeEvents struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakeEvents) ProduceMessage(_ context.Context, topic string, _, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeEvents) has(topic string) bool {
	return f.count(topic) > 0
}

func (f *fakeEvents) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type prefixImages struct{}

func (prefixImages) URL(ref string) string {
	if strings.HasPrefix(ref, "https://") || ref == "" {
		return ref
	}
	return "https://res.cloudinary.com/demo/image/upload/" + ref
}

func testCatalog() *fakeProducts {
	return &fakeProducts{list: []products.Product{
		{ID: 1, Name: "Basic Tee", Description: "Cotton t-shirt", Price: decimal.RequireFromString("19.99"), ImgSrc: "shirts/basic"},
		{ID: 2, Name: "Hoodie", Description: "Heavy hoodie", Price: decimal.RequireFromString("49.50"), ImgSrc: "https://cdn.example.com/hoodie.png"},
	}}
}

// flakySessions wraps the memory store and fails every call while down is set.
type flakySessions struct {
	*auth.MemorySessionStore
	down bool
}

var errSessionsDown = errors.New("session store unreachable")

func (f *flakySessions) CreateSession(ctx context.Context, s auth.Session, ttl time.Duration) (string, error) {
	if f.down {
		return "", errSessionsDown
	}
	return f.MemorySessionStore.CreateSession(ctx, s, ttl)
}

func (f *flakySessions) GetSession(ctx context.Context, id string) (auth.Session, error) {
	if f.down {
		return auth.Session{}, errSessionsDown
	}
	return f.MemorySessionStore.GetSession(ctx, id)
}

func (f *flakySessions) DeleteSession(ctx context.Context, id string) error {
	if f.down {
		return errSessionsDown
	}
	return f.MemorySessionStore.DeleteSession(ctx, id)
}

func (f *flakySessions) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if f.down {
		return errSessionsDown
	}
	return f.MemorySessionStore.RevokeToken(ctx, tokenID, ttl)
}

func (f *flakySessions) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if f.down {
		return false, errSessionsDown
	}
	return f.MemorySessionStore.IsTokenRevoked(ctx, tokenID)
}
