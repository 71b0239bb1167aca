package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orders-service/internal/domain/product"
)

// --- Mock implementations ---

type mockValidator struct {
	byID     map[string]product.Product
	err      error
	lastIDs  []string
	validate int
}

func (m *mockValidator) Validate(_ context.Context, ids []string) ([]product.Product, error) {
	m.validate++
	m.lastIDs = ids
	if m.err != nil {
		return nil, m.err
	}
	resolved := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			resolved = append(resolved, p)
		}
	}
	return resolved, nil
}

type mockOrderRepo struct {
	stored    *Order
	orders    map[string]*Order
	total     int64
	listed    []Order
	createErr error
	updateErr error

	creates int
	updates int
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	m.stored = o
	return nil
}

func (m *mockOrderRepo) Count(_ context.Context, _ Filter) (int64, error) {
	return m.total, nil
}

func (m *mockOrderRepo) List(_ context.Context, _ Filter, offset, limit int) ([]Order, error) {
	if offset >= len(m.listed) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.listed) {
		end = len(m.listed)
	}
	return m.listed[offset:end], nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) (*Order, error) {
	m.updates++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

// --- Helpers ---

func newTestProduct(id, name string, price string) product.Product {
	return product.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
	}
}

func newValidator(products ...product.Product) *mockValidator {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockValidator{byID: byID}
}

// --- Create ---

func TestCreate_EmptyItems(t *testing.T) {
	svc := NewService(newValidator(), &mockOrderRepo{})

	_, err := svc.Create(context.Background(), CreateRequest{})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreate_InvalidQuantity(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "10.00")
	repo := &mockOrderRepo{}
	svc := NewService(newValidator(p1), repo)

	_, err := svc.Create(context.Background(), CreateRequest{
		Items: []NewItem{{ProductID: "p1", Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
	assert.Zero(t, repo.creates)
}

func TestCreate_TotalsComputedFromCatalogPrices(t *testing.T) {
	p1 := newTestProduct("A", "Widget", "10")
	repo := &mockOrderRepo{}
	svc := NewService(newValidator(p1), repo)

	res, err := svc.Create(context.Background(), CreateRequest{
		Items: []NewItem{{ProductID: "A", Quantity: 2}},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20").Equal(res.Order.TotalAmount))
	assert.Equal(t, 2, res.Order.TotalItems)
	assert.Equal(t, StatusPending, res.Order.Status)
	assert.False(t, res.Order.Paid)
	require.NotNil(t, repo.stored)
	assert.True(t, res.Order.TotalAmount.Equal(repo.stored.TotalAmount))
}

func TestCreate_MultipleItems(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "10.50")
	p2 := newTestProduct("p2", "Gadget", "20.00")
	repo := &mockOrderRepo{}
	svc := NewService(newValidator(p1, p2), repo)

	res, err := svc.Create(context.Background(), CreateRequest{
		Items: []NewItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 3},
		},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("81.00").Equal(res.Order.TotalAmount))
	assert.Equal(t, 5, res.Order.TotalItems)
	require.Len(t, res.Order.Items, 2)
	assert.True(t, decimal.RequireFromString("10.50").Equal(res.Order.Items[0].Price))
	assert.Len(t, res.Products, 2)
}

func TestCreate_DuplicateProductIDsValidatedOnce(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "5")
	v := newValidator(p1)
	svc := NewService(v, &mockOrderRepo{})

	res, err := svc.Create(context.Background(), CreateRequest{
		Items: []NewItem{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p1", Quantity: 2},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, v.lastIDs)
	assert.True(t, decimal.RequireFromString("15").Equal(res.Order.TotalAmount))
	assert.Equal(t, 3, res.Order.TotalItems)
}

func TestCreate_UnknownProduct(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := NewService(newValidator(), repo)

	_, err := svc.Create(context.Background(), CreateRequest{
		Items: []NewItem{{ProductID: "missing", Quantity: 1}},
	})

	var upErr *UnknownProductError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "missing", upErr.ProductID)
	assert.Zero(t, repo.creates, "no order must be persisted for unresolved products")
}

func TestCreate_ValidatorUnavailable(t *testing.T) {
	repo := &mockOrderRepo{}
	v := &mockValidator{err: &product.UnavailableError{Err: errors.New("timeout")}}
	svc := NewService(v, repo)

	_, err := svc.Create(context.Background(), CreateRequest{
		Items: []NewItem{{ProductID: "p1", Quantity: 1}},
	})

	var uaErr *product.UnavailableError
	require.ErrorAs(t, err, &uaErr)
	assert.Zero(t, repo.creates)
}

func TestCreate_RepositoryError(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "10")
	svc := NewService(newValidator(p1), &mockOrderRepo{createErr: errors.New("db write failed")})

	_, err := svc.Create(context.Background(), CreateRequest{
		Items: []NewItem{{ProductID: "p1", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

// --- List ---

func TestList_EmptyTotal(t *testing.T) {
	svc := NewService(newValidator(), &mockOrderRepo{total: 0})

	res, err := svc.List(context.Background(), ListRequest{Page: 3, Limit: 10})

	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Equal(t, int64(0), res.Meta.Total)
	assert.Equal(t, int64(0), res.Meta.Pages)
	assert.Equal(t, 3, res.Meta.Page)
	assert.Equal(t, 10, res.Meta.Limit)
}

func TestList_PageMath(t *testing.T) {
	orders := make([]Order, 17)
	for i := range orders {
		orders[i] = Order{ID: string(rune('a' + i)), Status: StatusPending}
	}
	repo := &mockOrderRepo{total: 17, listed: orders}
	svc := NewService(newValidator(), repo)

	res, err := svc.List(context.Background(), ListRequest{Page: 4, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Meta.Pages)
	assert.Len(t, res.Data, 2)

	res, err = svc.List(context.Background(), ListRequest{Page: 5, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Equal(t, int64(17), res.Meta.Total)
	assert.Equal(t, int64(4), res.Meta.Pages)
	assert.Equal(t, 5, res.Meta.Page)
}

// --- Get ---

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newValidator(), &mockOrderRepo{orders: map[string]*Order{}})

	_, err := svc.Get(context.Background(), "missing-id")

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "missing-id", nfErr.ID)
}

func TestGet_EnrichesItems(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", "10")
	v := newValidator(p1)
	repo := &mockOrderRepo{orders: map[string]*Order{
		"o1": {
			ID:     "o1",
			Status: StatusPending,
			Items:  []OrderItem{{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10")}},
		},
	}}
	svc := NewService(v, repo)

	res, err := svc.Get(context.Background(), "o1")

	require.NoError(t, err)
	assert.Equal(t, 1, v.validate, "items are enriched via a fresh validator lookup")
	assert.Equal(t, []string{"p1"}, v.lastIDs)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Widget", res.Products[0].Name)
}

func TestGet_UnresolvedItemFailsClosed(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]*Order{
		"o1": {
			ID:    "o1",
			Items: []OrderItem{{ProductID: "gone", Quantity: 1, Price: decimal.RequireFromString("4")}},
		},
	}}
	svc := NewService(newValidator(), repo)

	_, err := svc.Get(context.Background(), "o1")

	var upErr *UnknownProductError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "gone", upErr.ProductID)
}

func TestGet_ValidatorFailureSurfaces(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]*Order{
		"o1": {ID: "o1", Items: []OrderItem{{ProductID: "p1", Quantity: 1}}},
	}}
	v := &mockValidator{err: &product.UnavailableError{Err: errors.New("nats: timeout")}}
	svc := NewService(v, repo)

	_, err := svc.Get(context.Background(), "o1")

	var uaErr *product.UnavailableError
	require.ErrorAs(t, err, &uaErr)
}

// --- ChangeStatus ---

func TestChangeStatus_NotFound(t *testing.T) {
	svc := NewService(newValidator(), &mockOrderRepo{orders: map[string]*Order{}})

	_, err := svc.ChangeStatus(context.Background(), "missing-id", StatusPaid)

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestChangeStatus_NoopOnSameStatus(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]*Order{
		"o1": {ID: "o1", Status: StatusPaid},
	}}
	svc := NewService(newValidator(), repo)

	res, err := svc.ChangeStatus(context.Background(), "o1", StatusPaid)

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, res.Order.Status)
	assert.Zero(t, repo.updates, "unchanged status must not issue a write")
}

func TestChangeStatus_PersistsNewStatus(t *testing.T) {
	repo := &mockOrderRepo{orders: map[string]*Order{
		"o1": {ID: "o1", Status: StatusPending},
	}}
	svc := NewService(newValidator(), repo)

	res, err := svc.ChangeStatus(context.Background(), "o1", StatusDelivered)

	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, res.Order.Status)
	assert.Equal(t, 1, repo.updates)
	assert.Equal(t, StatusDelivered, repo.orders["o1"].Status)
}
