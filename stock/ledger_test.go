package stock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/products"
	"github.com/warp/retail-ledger/stock"
	"github.com/warp/retail-ledger/store/sqlstore"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedProduct(t *testing.T, store *sqlstore.Store, qty int64) string {
	t.Helper()
	now := time.Now().UTC()
	p := &products.Product{
		ID:            uuid.NewString(),
		ShopID:        "shop-1",
		Name:          "Widget",
		PurchasePrice: decimal.RequireFromString("5.00"),
		Quantity:      qty,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.InsertProduct(context.Background(), p))
	return p.ID
}

func TestDecrement_Success(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)

	// GIVEN: A product with 5 units
	id := seedProduct(t, store, 5)

	// WHEN: Decrementing 2
	left, err := l.Decrement(ctx, id, 2)

	// THEN: 3 remain
	require.NoError(t, err)
	assert.Equal(t, int64(3), left)

	qty, err := l.Quantity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), qty)
}

func TestDecrement_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)

	// GIVEN: A product with 1 unit
	id := seedProduct(t, store, 1)

	// WHEN: Decrementing 2
	_, err := l.Decrement(ctx, id, 2)

	// THEN: Rejected with the available quantity, stock untouched
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientStock))

	var ise *ledger.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(2), ise.Requested)
	assert.Equal(t, int64(1), ise.Available)

	qty, err := l.Quantity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), qty)
}

func TestDecrement_ExactlyToZero(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)

	id := seedProduct(t, store, 3)

	left, err := l.Decrement(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), left)
}

func TestDecrement_UnknownProduct(t *testing.T) {
	l := stock.NewLedger(newStore(t))

	_, err := l.Decrement(context.Background(), "missing", 1)

	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestDecrement_RemovedProductIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)

	// GIVEN: A soft-deleted product that still holds stock
	id := seedProduct(t, store, 5)
	ok, err := store.SoftDeleteProduct(ctx, id, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	// WHEN: Selling from it
	_, err = l.Decrement(ctx, id, 1)

	// THEN: It is invisible
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestMutations_RejectNonPositiveQuantities(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)
	id := seedProduct(t, store, 5)

	_, err := l.Decrement(ctx, id, 0)
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))

	_, err = l.Increment(ctx, id, -1)
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))

	err = l.Overwrite(ctx, id, -1)
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))
}

func TestIncrement_RestocksRemovedProduct(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)

	// GIVEN: A product removed after some units were sold
	id := seedProduct(t, store, 2)
	_, err := store.SoftDeleteProduct(ctx, id, time.Now().UTC())
	require.NoError(t, err)

	// WHEN: Returning units (compensating a sale delete)
	qty, err := l.Increment(ctx, id, 3)

	// THEN: The tombstoned row is restocked
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)
}

func TestIncrement_UnknownProduct(t *testing.T) {
	l := stock.NewLedger(newStore(t))

	_, err := l.Increment(context.Background(), "missing", 1)

	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestOverwrite(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)
	id := seedProduct(t, store, 10)

	require.NoError(t, l.Overwrite(ctx, id, 8))

	qty, err := l.Quantity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(8), qty)

	// Zero is a legal count
	require.NoError(t, l.Overwrite(ctx, id, 0))

	// Removed products are not overwritten
	_, err = store.SoftDeleteProduct(ctx, id, time.Now().UTC())
	require.NoError(t, err)
	err = l.Overwrite(ctx, id, 4)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestDecrement_RollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	l := stock.NewLedger(store)
	id := seedProduct(t, store, 5)

	// WHEN: A decrement is followed by a failure in the same transaction
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := l.Decrement(ctx, id, 4); err != nil {
			return err
		}
		return boom
	})

	// THEN: Nothing was applied
	assert.ErrorIs(t, err, boom)
	qty, err := l.Quantity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)
}
