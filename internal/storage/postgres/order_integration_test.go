//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"orders-service/internal/domain/order"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("orders"),
		tcpostgres.WithPassword("orders"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	testPool, err = NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

func newOrder(status order.Status, items ...order.OrderItem) *order.Order {
	total := decimal.Zero
	count := 0
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	return &order.Order{
		ID:          uuid.New().String(),
		TotalAmount: total,
		TotalItems:  count,
		Status:      status,
		Items:       items,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	o := newOrder(order.StatusPending,
		order.OrderItem{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.50")},
		order.OrderItem{ProductID: "p2", Quantity: 1, Price: decimal.RequireFromString("3.00")},
	)
	require.NoError(t, repo.Create(ctx, o))
	assert.False(t, o.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("24.00").Equal(got.TotalAmount))
	assert.Equal(t, 3, got.TotalItems)
	assert.Equal(t, order.StatusPending, got.Status)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "p1", got.Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("10.50").Equal(got.Items[0].Price))
}

func TestOrderRepository_CreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	// The second item violates the quantity CHECK constraint, so the item
	// batch fails after the order row was inserted. Nothing may remain.
	o := newOrder(order.StatusPending,
		order.OrderItem{ProductID: "p1", Quantity: 1, Price: decimal.RequireFromString("5.00")},
		order.OrderItem{ProductID: "p2", Quantity: 0, Price: decimal.RequireFromString("1.00")},
	)
	require.Error(t, repo.Create(ctx, o))

	_, err := repo.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)

	var items int
	require.NoError(t, testPool.QueryRow(ctx,
		`SELECT count(*) FROM order_items WHERE order_id = $1`, o.ID).Scan(&items))
	assert.Zero(t, items)
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo := NewOrderRepository(testPool)

	_, err := repo.GetByID(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_CountAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	paid := newOrder(order.StatusPaid,
		order.OrderItem{ProductID: "p1", Quantity: 1, Price: decimal.RequireFromString("7.00")})
	require.NoError(t, repo.Create(ctx, paid))

	st := order.StatusPaid
	filter := order.Filter{Status: &st}

	total, err := repo.Count(ctx, filter)
	require.NoError(t, err)
	require.GreaterOrEqual(t, total, int64(1))

	listed, err := repo.List(ctx, filter, 0, int(total))
	require.NoError(t, err)
	require.Len(t, listed, int(total))
	for _, o := range listed {
		assert.Equal(t, order.StatusPaid, o.Status)
		assert.Empty(t, o.Items, "listing does not hydrate items")
	}

	beyond, err := repo.List(ctx, filter, int(total), 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	o := newOrder(order.StatusPending,
		order.OrderItem{ProductID: "p1", Quantity: 1, Price: decimal.RequireFromString("2.00")})
	require.NoError(t, repo.Create(ctx, o))

	updated, err := repo.UpdateStatus(ctx, o.ID, order.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))

	_, err = repo.UpdateStatus(ctx, uuid.New().String(), order.StatusPaid)
	assert.ErrorIs(t, err, order.ErrNotFound)
}
