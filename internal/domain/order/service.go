package order

import (
	"context"
	"fmt"
	"math"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orders-service/internal/domain/product"
)

// Sentinel errors for order operations.
var (
	ErrEmptyItems = errors.New("items required")
	ErrNotFound   = errors.New("order not found")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// UnknownProductError indicates a requested product identifier that the
// validator did not resolve. Creation fails closed: no order is persisted
// with an unverified price.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %s could not be validated", e.ProductID)
}

// NotFoundError indicates the referenced order does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order with id %s not found", e.ID)
}

// NewItem is a requested line item: a product reference and a quantity.
// Prices are never accepted from callers.
type NewItem struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	Items []NewItem
}

// ListRequest holds pagination input. Page is 1-indexed.
type ListRequest struct {
	Page   int
	Limit  int
	Status *Status
}

// Result is an order together with the catalog records resolved for its
// items, so the transport layer can annotate items with product names.
type Result struct {
	Order    *Order
	Products []product.Product
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page  int
	Limit int
	Total int64
	Pages int64
}

// PageResult is one page of orders plus pagination metadata.
type PageResult struct {
	Data []Order
	Meta PageMeta
}

// Service implements the order business rules on top of a Repository and
// the external product Validator. It holds no cross-request state.
type Service struct {
	products product.Validator
	orders   Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(products product.Validator, orders Repository) *Service {
	return &Service{
		products: products,
		orders:   orders,
	}
}

// Create validates the requested items against the product catalog, computes
// totals from the resolved prices, and persists the order with all items in
// a single atomic write. The result carries the resolved products.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect the distinct product IDs.
	seen := make(map[string]struct{}, len(req.Items))
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.products.Validate(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "validate products")
	}

	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// Every requested product must be resolvable; unresolved IDs abort the
	// whole creation.
	items := make([]OrderItem, len(req.Items))
	totalAmount := decimal.Zero
	totalItems := 0
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &UnknownProductError{ProductID: item.ProductID}
		}

		items[i] = OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     p.Price,
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		totalAmount = totalAmount.Add(p.Price.Mul(qty))
		totalItems += item.Quantity
	}

	o := &Order{
		ID:          uuid.New().String(),
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
		Status:      StatusPending,
		Items:       items,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return &Result{Order: o, Products: products}, nil
}

// List returns one page of orders with pagination metadata. A page beyond
// the available range yields empty data with correct metadata.
func (s *Service) List(ctx context.Context, req ListRequest) (*PageResult, error) {
	f := Filter{Status: req.Status}

	total, err := s.orders.Count(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}

	offset := (req.Page - 1) * req.Limit
	data, err := s.orders.List(ctx, f, offset, req.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	return &PageResult{
		Data: data,
		Meta: PageMeta{
			Page:  req.Page,
			Limit: req.Limit,
			Total: total,
			Pages: int64(math.Ceil(float64(total) / float64(req.Limit))),
		},
	}, nil
}

// Get returns the order with its items, annotated with product records from
// a fresh validator lookup.
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}

	ids := make([]string, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.ProductID
	}

	products, err := s.products.Validate(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "validate products")
	}

	// Enrichment is fail-closed too: an item whose product the validator no
	// longer resolves surfaces as an error, never as a nameless item.
	resolved := make(map[string]struct{}, len(products))
	for _, p := range products {
		resolved[p.ID] = struct{}{}
	}
	for _, item := range o.Items {
		if _, ok := resolved[item.ProductID]; !ok {
			return nil, &UnknownProductError{ProductID: item.ProductID}
		}
	}

	return &Result{Order: o, Products: products}, nil
}

// ChangeStatus looks up the order with Get semantics and persists the target
// status. When the order already has the target status no write is issued
// and the order is returned unchanged.
func (s *Service) ChangeStatus(ctx context.Context, id string, status Status) (*Result, error) {
	res, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Order.Status == status {
		return res, nil
	}

	updated, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, errors.Wrapf(err, "update order %s status", id)
	}

	res.Order.Status = updated.Status
	res.Order.UpdatedAt = updated.UpdatedAt
	return res, nil
}
