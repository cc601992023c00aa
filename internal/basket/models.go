package basket

import "github.com/shopspring/decimal"

const (
	DefaultColor = "white"
	DefaultSize  = "m"
)

// Item is one basket row: a product in a given color and size.
type Item struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"-"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type LineProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImgSrc      string
}

// Line is a basket row joined with its product.
type Line struct {
	Item
	Product LineProduct
}

// CheckoutLine is the basket grouped by product, color and size.
type CheckoutLine struct {
	ProductID   int64
	Name        string
	Description string
	ImgSrc      string
	Price       decimal.Decimal
	Color       string
	Size        string
	Quantity    int
}
