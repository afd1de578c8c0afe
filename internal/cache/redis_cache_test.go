package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/xid"
)

func TestNoopSaleCacheAlwaysMisses(t *testing.T) {
	var c SaleCache = NoopSaleCache{}
	require.NoError(t, c.Set(context.Background(), &domain.Sale{ID: "sal-1"}, time.Minute))

	got, ok, err := c.Get(context.Background(), "sal-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.Delete(context.Background(), "sal-1"))
}

func TestRedisSaleCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("POSLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POSLEDGER_TEST_REDIS_ADDR is not set")
	}

	ctx := context.Background()
	c := NewRedisSaleCache(addr, os.Getenv("POSLEDGER_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	sale := &domain.Sale{
		ID:            xid.New("sal"),
		InvoiceNumber: "INV-TEST",
		TotalAmount:   decimal.NewFromInt(200),
		Status:        domain.SaleStatusCompleted,
		Items:         []domain.SaleItem{{ProductID: "prd-1", Quantity: 2, Price: decimal.NewFromInt(100)}},
	}
	require.NoError(t, c.Set(ctx, sale, time.Minute))

	got, ok, err := c.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sale.InvoiceNumber, got.InvoiceNumber)
	assert.True(t, got.TotalAmount.Equal(sale.TotalAmount))
	require.Len(t, got.Items, 1)

	require.NoError(t, c.Delete(ctx, sale.ID))
	_, ok, err = c.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
