// Package inventory owns stock-quantity changes. Every adjustment runs inside
// the caller's transaction so that the read, the sufficiency check and the
// write happen under the same row lock.
package inventory

import (
	"context"
	"math"

	"posledger/backend/internal/store"
)

// MaxStock is the largest quantity a product can hold. It matches the
// INTEGER stock column of the SQL backends.
const MaxStock = math.MaxInt32

// StockTx is the slice of store.Tx the ledger needs.
type StockTx interface {
	LockStock(ctx context.Context, productID string) (int, error)
	AddStock(ctx context.Context, productID string, delta int) error
}

// Adjust applies delta to the product's stock and returns the new quantity.
// A negative delta that would take stock below zero fails with
// *store.InsufficientStockError and leaves the row untouched. A positive
// delta that would push stock past MaxStock fails with an input error.
func Adjust(ctx context.Context, tx StockTx, productID string, delta int) (int, error) {
	current, err := tx.LockStock(ctx, productID)
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return current, nil
	}
	if delta < 0 && current+delta < 0 {
		return current, &store.InsufficientStockError{
			ProductID: productID,
			Available: current,
			Requested: -delta,
		}
	}
	if delta > 0 && current > MaxStock-delta {
		return current, store.Invalid("stock for product %s would exceed %d (current %d, adding %d)", productID, MaxStock, current, delta)
	}
	if err := tx.AddStock(ctx, productID, delta); err != nil {
		return current, err
	}
	return current + delta, nil
}
