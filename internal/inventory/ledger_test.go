package inventory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/store"
)

type stockStub struct {
	qty    map[string]int
	writes int
}

func (s *stockStub) LockStock(_ context.Context, productID string) (int, error) {
	q, ok := s.qty[productID]
	if !ok {
		return 0, store.NotFound("product", productID)
	}
	return q, nil
}

func (s *stockStub) AddStock(_ context.Context, productID string, delta int) error {
	s.writes++
	s.qty[productID] += delta
	return nil
}

func TestAdjustDecrementsWithinStock(t *testing.T) {
	tx := &stockStub{qty: map[string]int{"p1": 10}}

	after, err := Adjust(context.Background(), tx, "p1", -4)

	require.NoError(t, err)
	assert.Equal(t, 6, after)
	assert.Equal(t, 6, tx.qty["p1"])
}

func TestAdjustRejectsOversell(t *testing.T) {
	tx := &stockStub{qty: map[string]int{"p1": 10}}

	_, err := Adjust(context.Background(), tx, "p1", -20)

	var stockErr *store.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 20, stockErr.Requested)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 10, tx.qty["p1"])
	assert.Zero(t, tx.writes)
}

func TestAdjustAllowsDrainToZero(t *testing.T) {
	tx := &stockStub{qty: map[string]int{"p1": 3}}

	after, err := Adjust(context.Background(), tx, "p1", -3)

	require.NoError(t, err)
	assert.Zero(t, after)
}

func TestAdjustUnknownProduct(t *testing.T) {
	tx := &stockStub{qty: map[string]int{}}

	_, err := Adjust(context.Background(), tx, "missing", 5)

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjustRejectsStockOverflow(t *testing.T) {
	tx := &stockStub{qty: map[string]int{"p1": 10}}

	_, err := Adjust(context.Background(), tx, "p1", math.MaxInt)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = Adjust(context.Background(), tx, "p1", MaxStock-9)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 10, tx.qty["p1"])
	assert.Zero(t, tx.writes)

	after, err := Adjust(context.Background(), tx, "p1", MaxStock-10)
	require.NoError(t, err)
	assert.Equal(t, MaxStock, after)
}
