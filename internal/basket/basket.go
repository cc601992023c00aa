package basket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/stores/postgres"
)

var (
	ErrItemNotFound    = errors.New("basket item not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func normalize(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

// AddItem puts one unit of the product into the user's basket. An existing
// (product, color, size) line is incremented instead; created reports which happened.
func (c *Conf) AddItem(ctx context.Context, userID, productID int64, color, size string) (Item, bool, error) {
	item := Item{
		UserID:    userID,
		ProductID: productID,
		Color:     normalize(color, DefaultColor),
		Size:      normalize(size, DefaultSize),
	}

	query := `
		INSERT INTO basket_items (user_id, product_id, quantity, color, size)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT ON CONSTRAINT basket_items_unique_line
		DO UPDATE SET quantity = basket_items.quantity + 1
		RETURNING id, quantity, (xmax = 0)
	`
	var created bool
	err := c.db.QueryRowContext(ctx, query, userID, productID, item.Color, item.Size).
		Scan(&item.ID, &item.Quantity, &created)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return Item{}, false, ErrProductNotFound
		}
		return Item{}, false, fmt.Errorf("failed to add product to basket: %w", err)
	}
	return item, created, nil
}

func (c *Conf) ListItems(ctx context.Context, userID int64) ([]Line, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT b.id, b.product_id, b.quantity, b.color, b.size,
			p.name, p.description, p.price, p.img_src
		FROM basket_items b
		JOIN products p ON p.id = b.product_id
		WHERE b.user_id = $1
		ORDER BY b.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query basket items: %w", err)
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		l := Line{Item: Item{UserID: userID}}
		err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.Color, &l.Size,
			&l.Product.Name, &l.Product.Description, &l.Product.Price, &l.Product.ImgSrc)
		if err != nil {
			return nil, fmt.Errorf("failed to scan basket item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating basket items: %w", err)
	}
	return lines, nil
}

func (c *Conf) updateReturning(ctx context.Context, query string, args ...any) (Item, error) {
	var item Item
	err := c.db.QueryRowContext(ctx, query, args...).
		Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.Color, &item.Size)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("failed to update basket item: %w", err)
	}
	return item, nil
}

func (c *Conf) Increase(ctx context.Context, userID, basketID int64) (Item, error) {
	return c.updateReturning(ctx, `
		UPDATE basket_items
		SET quantity = quantity + 1
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, product_id, quantity, color, size
	`, basketID, userID)
}

func (c *Conf) UpdateQuantity(ctx context.Context, userID, basketID int64, quantity int) (Item, error) {
	if quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	return c.updateReturning(ctx, `
		UPDATE basket_items
		SET quantity = $3
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, product_id, quantity, color, size
	`, basketID, userID, quantity)
}

// Decrease takes one unit off a line. A line at quantity 1 is deleted and removed is true.
func (c *Conf) Decrease(ctx context.Context, userID, basketID int64) (removed bool, err error) {
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		var quantity int
		err := tx.QueryRowContext(ctx, `
			SELECT quantity
			FROM basket_items
			WHERE id = $1 AND user_id = $2
			FOR UPDATE
		`, basketID, userID).Scan(&quantity)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to query basket item: %w", err)
		}

		if quantity <= 1 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM basket_items WHERE id = $1`, basketID); err != nil {
				return fmt.Errorf("failed to delete basket item: %w", err)
			}
			removed = true
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE basket_items SET quantity = quantity - 1 WHERE id = $1`, basketID); err != nil {
			return fmt.Errorf("failed to decrease basket item: %w", err)
		}
		return nil
	})
	return removed, err
}

func (c *Conf) Remove(ctx context.Context, userID, basketID int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM basket_items WHERE id = $1 AND user_id = $2`, basketID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove basket item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// CheckoutLines returns the user's basket grouped by (product, color, size) with prices.
func (c *Conf) CheckoutLines(ctx context.Context, userID int64) ([]CheckoutLine, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.img_src, p.price, b.color, b.size, SUM(b.quantity)
		FROM basket_items b
		JOIN products p ON p.id = b.product_id
		WHERE b.user_id = $1
		GROUP BY p.id, p.name, p.description, p.img_src, p.price, b.color, b.size
		ORDER BY MIN(b.id) ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout lines: %w", err)
	}
	defer rows.Close()

	lines := []CheckoutLine{}
	for rows.Next() {
		var l CheckoutLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Description, &l.ImgSrc, &l.Price, &l.Color, &l.Size, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan checkout line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkout lines: %w", err)
	}
	return lines, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", er)
		}
		return fmt.Errorf("failed to execute withTx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
