package gormstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	s, err := OpenSQLite(dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		return openTestStore(t)
	})
}

func TestAuditInsertFailureKeepsTransactionUsable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{ID: "aud-fixed", Action: "X", EntityType: "Sale"}))
	p, err := s.CreateProduct(ctx, domain.Product{SKU: "A-1", Name: "A", StockQuantity: 1})
	require.NoError(t, err)

	err = store.WithinTx(ctx, s, func(tx store.Tx) error {
		if err := tx.AddStock(ctx, p.ID, 4); err != nil {
			return err
		}
		assert.Error(t, tx.CreateAuditLog(ctx, domain.AuditLog{ID: "aud-fixed", Action: "X", EntityType: "Sale"}))
		return tx.AddStock(ctx, p.ID, 1)
	})
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.StockQuantity)
}

func TestAddStockUnknownProduct(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, s, func(tx store.Tx) error {
		return tx.AddStock(ctx, "prd-missing", 1)
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}
