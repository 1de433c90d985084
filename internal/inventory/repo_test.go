package inventory_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
)

func TestRepoRecordSales(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := t.Context()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := postgres.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))

	repo := &inventory.Repo{DB: pool}
	sales := []inventory.Sale{
		{OrderID: "o1", UserID: "u1", ProductID: "p1", Qty: -2, Description: "sold to Basir on order o1"},
		{OrderID: "o1", UserID: "u1", ProductID: "p2", Qty: -1, Description: "sold to Basir on order o1"},
	}

	n, err := repo.RecordSales(ctx, sales)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.RecordSales(ctx, sales)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, -3, sumQty(ctx, t, pool, "o1"))
}

func sumQty(ctx context.Context, t *testing.T, pool *pgxpool.Pool, orderID string) int {
	t.Helper()
	var sum int
	err := pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(qty), 0) FROM product_transactions WHERE order_id = $1 AND transaction_type = 'SOLD'`,
		orderID).Scan(&sum)
	require.NoError(t, err)
	return sum
}
