package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTx struct {
	Tx
	committed  bool
	rolledBack bool
}

func (t *recordingTx) Commit() error {
	t.committed = true
	return nil
}

func (t *recordingTx) Rollback() error {
	t.rolledBack = true
	return nil
}

type beginnerFunc func(ctx context.Context) (Tx, error)

func (f beginnerFunc) Begin(ctx context.Context) (Tx, error) { return f(ctx) }

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	tx := &recordingTx{}
	err := WithinTx(context.Background(), beginnerFunc(func(context.Context) (Tx, error) { return tx, nil }), func(Tx) error {
		return nil
	})

	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	tx := &recordingTx{}
	boom := errors.New("boom")
	err := WithinTx(context.Background(), beginnerFunc(func(context.Context) (Tx, error) { return tx, nil }), func(Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	tx := &recordingTx{}
	assert.Panics(t, func() {
		_ = WithinTx(context.Background(), beginnerFunc(func(context.Context) (Tx, error) { return tx, nil }), func(Tx) error {
			panic("kaboom")
		})
	})
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestErrorTaxonomyUnwraps(t *testing.T) {
	cases := []struct {
		err    error
		target error
	}{
		{NotFound("sale", "s1"), ErrNotFound},
		{&InsufficientStockError{ProductID: "p", Available: 1, Requested: 2}, ErrInsufficientStock},
		{&InsufficientPointsError{Available: 5, Requested: 10}, ErrInsufficientPoints},
		{&AlreadyRefundedError{SaleID: "s1"}, ErrAlreadyRefunded},
		{&DuplicateIdentifierError{Field: "phone", Value: "0800"}, ErrDuplicate},
		{&ForeignKeyError{Entity: "store", ID: "st1"}, ErrForeignKey},
		{Invalid("quantity must be positive"), ErrInvalidInput},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, tc.err, tc.target)
		assert.True(t, IsClientError(tc.err), tc.err.Error())
	}
	assert.False(t, IsClientError(errors.New("connection reset")))
}

func TestInsufficientPointsMessage(t *testing.T) {
	err := &InsufficientPointsError{Available: 5, Requested: 10}
	assert.Equal(t, "insufficient points. Available: 5, trying to redeem: 10", err.Error())
}
