package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopkart/storefront/internal/domain/order"
	"github.com/shopkart/storefront/internal/domain/product"
)

const (
	reserveStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	stockForUpdateSQL = `SELECT name, stock FROM products WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (
			id, user_id, lines, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	selectOrderSQL = `SELECT id, user_id, lines, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price,
			status, is_paid, paid_at, payment_result,
			is_delivered, delivered_at, created_at
		FROM orders`

	getOrderByIDSQL = selectOrderSQL + ` WHERE id = $1`

	listOrdersByUserSQL = selectOrderSQL + ` WHERE user_id = $1
		ORDER BY created_at DESC OFFSET $2 LIMIT $3`

	listOrdersSQL = selectOrderSQL + `
		ORDER BY created_at DESC OFFSET $1 LIMIT $2`

	countOrdersByUserSQL = `SELECT count(*) FROM orders WHERE user_id = $1`

	countOrdersSQL = `SELECT count(*) FROM orders`

	setOrderPaidSQL = `UPDATE orders
		SET is_paid = TRUE, paid_at = $2, payment_result = $3
		WHERE id = $1`

	setOrderStatusSQL = `UPDATE orders
		SET status = $2, is_delivered = $3, delivered_at = $4
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and reserves its stock in one transaction.
// Each line's decrement is conditional (stock must stay non-negative), so
// concurrent checkouts against the same product serialize on the row and
// never oversell. If any line fails, the transaction rolls back and neither
// stock nor order storage is touched.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := reserveStock(ctx, tx, o.Lines); err != nil {
		return err
	}

	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, linesJSON, addressJSON, string(o.PaymentMethod),
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order %q: %w", o.ID, err)
	}
	return nil
}

// reserveStock decrements stock for every line inside tx. A decrement that
// matches no row means the product is either missing or short; the follow-up
// select distinguishes the two so callers get a correctable error.
//
// Lines are locked in product ID order so two concurrent checkouts touching
// the same products cannot deadlock on opposite acquisition orders.
func reserveStock(ctx context.Context, tx pgx.Tx, lines []order.Line) error {
	ordered := slices.Clone(lines)
	slices.SortFunc(ordered, func(a, b order.Line) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	for _, l := range ordered {
		ct, err := tx.Exec(ctx, reserveStockSQL, l.ProductID, l.Quantity)
		if err != nil {
			return fmt.Errorf("reserving stock for %q: %w", l.ProductID, err)
		}
		if ct.RowsAffected() > 0 {
			continue
		}

		var (
			name  string
			stock int
		)
		err = tx.QueryRow(ctx, stockForUpdateSQL, l.ProductID).Scan(&name, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return &product.NotFoundError{ProductID: l.ProductID}
		}
		if err != nil {
			return fmt.Errorf("checking stock for %q: %w", l.ProductID, err)
		}
		return &product.InsufficientStockError{
			ProductID: l.ProductID,
			Name:      name,
			Requested: l.Quantity,
			Available: stock,
		}
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns one page of a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// CountByUser returns the total number of a user's orders.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders for %q: %w", userID, err)
	}
	return n, nil
}

// List returns one page across all orders, newest first.
func (r *OrderRepository) List(ctx context.Context, offset, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Count returns the total number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// SetPaid flips the payment axis and stores the opaque payment result.
func (r *OrderRepository) SetPaid(ctx context.Context, id string, paidAt time.Time, paymentResult json.RawMessage) error {
	ct, err := r.pool.Exec(ctx, setOrderPaidSQL, id, paidAt, []byte(paymentResult))
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// SetStatus writes the fulfillment status and delivery flags.
func (r *OrderRepository) SetStatus(ctx context.Context, id string, status order.Status, isDelivered bool, deliveredAt *time.Time) error {
	ct, err := r.pool.Exec(ctx, setOrderStatusSQL, id, string(status), isDelivered, deliveredAt)
	if err != nil {
		return fmt.Errorf("setting status for order %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		linesJSON     []byte
		addressJSON   []byte
		paymentResult []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &linesJSON, &addressJSON, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.Status, &o.IsPaid, &o.PaidAt, &paymentResult,
		&o.IsDelivered, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return o, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if paymentResult != nil {
		o.PaymentResult = json.RawMessage(paymentResult)
	}
	return o, nil
}
