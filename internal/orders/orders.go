package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrOrderNotFound = errors.New("order not found")

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

const orderColumns = `id, user_id, stripe_session_id, total_cents, status, email,
	shipping_name, shipping_line1, shipping_line2, shipping_city, shipping_postal_code, shipping_country,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (Order, error) {
	var (
		o                         Order
		email, name, line1, line2 sql.NullString
		city, postalCode, country sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &o.StripeSessionID, &o.TotalCents, &o.Status, &email,
		&name, &line1, &line2, &city, &postalCode, &country, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Email = email.String
	if line1.Valid || name.Valid {
		o.Shipping = &Shipping{
			Name:       name.String,
			Line1:      line1.String,
			Line2:      line2.String,
			City:       city.String,
			PostalCode: postalCode.String,
			Country:    country.String,
		}
	}
	return o, nil
}

// CreateOrder records a pending order for a freshly created checkout session.
func (c *Conf) CreateOrder(ctx context.Context, userID int64, sessionID string, totalCents int64) (Order, error) {
	query := `
		INSERT INTO orders (user_id, stripe_session_id, total_cents, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + orderColumns
	o, err := scanOrder(c.db.QueryRowContext(ctx, query, userID, sessionID, totalCents, StatusPending))
	if err != nil {
		return Order{}, fmt.Errorf("failed to create order: %w", err)
	}
	return o, nil
}

// MarkPaid flips the session's order to paid, stores the buyer snapshot and empties the
// basket of basketUserID (the order owner when zero), all in one transaction.
// flipped is false when the order was already paid.
func (c *Conf) MarkPaid(ctx context.Context, sessionID string, basketUserID int64, p Payment) (o Order, flipped bool, err error) {
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT status
			FROM orders
			WHERE stripe_session_id = $1
			FOR UPDATE
		`, sessionID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to query order: %w", err)
		}
		flipped = status != StatusPaid

		query := `
			UPDATE orders
			SET status = $2,
				email = NULLIF($3, ''),
				shipping_name = NULLIF($4, ''),
				shipping_line1 = NULLIF($5, ''),
				shipping_line2 = NULLIF($6, ''),
				shipping_city = NULLIF($7, ''),
				shipping_postal_code = NULLIF($8, ''),
				shipping_country = NULLIF($9, ''),
				updated_at = NOW()
			WHERE stripe_session_id = $1
			RETURNING ` + orderColumns
		s := p.Shipping
		o, err = scanOrder(tx.QueryRowContext(ctx, query, sessionID, StatusPaid, p.Email,
			s.Name, s.Line1, s.Line2, s.City, s.PostalCode, s.Country))
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}

		owner := basketUserID
		if owner == 0 {
			owner = o.UserID
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM basket_items WHERE user_id = $1`, owner); err != nil {
			return fmt.Errorf("failed to clear basket: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, false, err
	}
	return o, flipped, nil
}

func (c *Conf) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	list := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return list, nil
}

// GetBySession returns the caller's order for a checkout session.
func (c *Conf) GetBySession(ctx context.Context, userID int64, sessionID string) (Order, error) {
	o, err := scanOrder(c.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE stripe_session_id = $1 AND user_id = $2
	`, sessionID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("failed to query order: %w", err)
	}
	return o, nil
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
