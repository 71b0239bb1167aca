package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orders-service/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

const (
	insertOrderSQL = `INSERT INTO orders (id, total_amount, total_items, status, paid)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at, updated_at`

	insertItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, price)
	VALUES ($1, $2, $3, $4)`

	countOrdersSQL = `SELECT count(*) FROM orders
	WHERE ($1::text IS NULL OR status = $1)`

	listOrdersSQL = `SELECT id, total_amount, total_items, status, paid, created_at, updated_at
	FROM orders
	WHERE ($1::text IS NULL OR status = $1)
	ORDER BY created_at DESC, id
	OFFSET $2 LIMIT $3`

	getOrderSQL = `SELECT id, total_amount, total_items, status, paid, created_at, updated_at
	FROM orders
	WHERE id = $1`

	getItemsSQL = `SELECT product_id, quantity, price
	FROM order_items
	WHERE order_id = $1
	ORDER BY id`

	updateStatusSQL = `UPDATE orders
	SET status = $2, updated_at = now()
	WHERE id = $1
	RETURNING id, total_amount, total_items, status, paid, created_at, updated_at`
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and all its items in a single transaction.
// Either every row becomes visible or none do.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.TotalAmount, o.TotalItems, string(o.Status), o.Paid,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(insertItemSQL, o.ID, item.ProductID, item.Quantity, item.Price)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting items for order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Count returns the number of orders matching the filter.
func (r *OrderRepository) Count(ctx context.Context, f order.Filter) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, countOrdersSQL, statusParam(f)).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return total, nil
}

// List returns a window of matching orders, newest first, without items.
func (r *OrderRepository) List(ctx context.Context, f order.Filter, offset, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, statusParam(f), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// GetByID returns the order with its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, getItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item order.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scanning item for order %q: %w", id, err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus persists a new status and returns the updated order without
// items, or order.ErrNotFound.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, updateStatusSQL, id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return &o, nil
}

// statusParam converts the optional status filter to a nullable SQL parameter.
func statusParam(f order.Filter) *string {
	if f.Status == nil {
		return nil
	}
	s := string(*f.Status)
	return &s
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.TotalAmount, &o.TotalItems, &status, &o.Paid, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	o.Status = order.Status(status)
	return o, nil
}
