package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdora/order-backend/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
	(id, user_id, items, total, shipping_fee, refunded_amount, payment_method, status, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getOrderSQL = `SELECT id, user_id, items, total, shipping_fee, refunded_amount, payment_method, status, version, created_at, updated_at
	FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, items, total, shipping_fee, refunded_amount, payment_method, status, version, created_at, updated_at
	FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	updateOrderSQL = `UPDATE orders
	SET items = $2, refunded_amount = $3, status = $4, version = version + 1, updated_at = $5
	WHERE id = $1 AND version = $6`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// version column enforces optimistic concurrency: an update that matches no
// row lost a race and is rejected with order.ErrVersionConflict.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Line items are serialized to JSON for the
// JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling line items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, o.Total, o.ShippingFee, o.RefundedAmount,
		o.PaymentMethod, string(o.Status), o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get loads one order by id, returning order.NotFoundError when absent.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, getOrderSQL, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Kind: "order", ID: id}
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// ListByUser loads all orders of a user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}
	return out, nil
}

// Update saves the whole aggregate in one statement guarded by the version
// the caller loaded. Zero matched rows means a concurrent writer got there
// first.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling line items: %w", err)
	}

	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, itemsJSON, o.RefundedAmount, string(o.Status), o.UpdatedAt, o.Version,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(order.ErrVersionConflict, "order %q version %d", o.ID, o.Version)
	}
	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		status    string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &o.Total, &o.ShippingFee, &o.RefundedAmount,
		&o.PaymentMethod, &status, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling line items: %w", err)
	}
	o.Status = order.Status(status)
	return &o, nil
}
