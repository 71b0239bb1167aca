package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a persisted customer purchase with server-computed totals.
type Order struct {
	ID          string
	TotalAmount decimal.Decimal
	TotalItems  int
	Status      Status
	Paid        bool
	Items       []OrderItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem is a single line item in an order. Price is a snapshot taken at
// creation time from the validated catalog record; later catalog changes
// never alter it.
type OrderItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Filter narrows order listing and counting.
type Filter struct {
	Status *Status
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order together with all its items atomically.
	Create(ctx context.Context, o *Order) error
	// Count returns the number of orders matching the filter.
	Count(ctx context.Context, f Filter) (int64, error)
	// List returns a window of orders matching the filter, newest first.
	// Items are not hydrated.
	List(ctx context.Context, f Filter, offset, limit int) ([]Order, error)
	// GetByID returns the order with its items, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus persists a new status and returns the updated order
	// without items, or ErrNotFound.
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
}
