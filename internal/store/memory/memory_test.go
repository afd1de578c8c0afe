package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/memory"
	"posledger/backend/internal/store/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		return memory.New()
	})
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	p, err := repo.CreateProduct(ctx, domain.Product{SKU: "A-1", Name: "A", StockQuantity: 3})
	require.NoError(t, err)

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddStock(ctx, p.ID, 2))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
}

func TestSeededStoreHasDemoCatalog(t *testing.T) {
	repo := memory.NewSeeded(zaptest.NewLogger(t))
	ctx := context.Background()

	admin, err := repo.GetUserByUsername(ctx, "Admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}

func TestSeededStoreWarnsAboutDefaultCredentials(t *testing.T) {
	for _, key := range []string{"SEED_ADMIN_PASSWORD", "SEED_MANAGER_PASSWORD", "SEED_CASHIER_PASSWORD", "SEED_STOCK_PASSWORD"} {
		t.Setenv(key, "")
	}
	core, logs := observer.New(zap.WarnLevel)

	memory.NewSeeded(zap.New(core))

	assert.Equal(t, 1, logs.FilterMessageSnippet("default seed credentials").Len())
}
