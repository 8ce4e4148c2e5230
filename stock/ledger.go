/*
ledger.go - Stock Ledger: the only writer of product quantities

PURPOSE:
  Owns every change to products.quantity. Sales decrement and restock
  through it, inventory completion overwrites through it. Nothing else in
  the codebase writes the quantity column.

INVARIANT:
  quantity >= 0 for every product, at every commit.

HOW IT HOLDS UNDER CONCURRENCY:
  Decrement is a single conditional UPDATE:

    UPDATE products SET quantity = quantity - ?
    WHERE id = ? AND deleted_at IS NULL AND quantity >= ?

  The database evaluates the guard and the write atomically, so two
  concurrent sales of the last unit cannot both succeed. There is no
  read-then-write window to lose an update in.

  When the UPDATE matches no row, the ledger re-reads the quantity only to
  build a useful error (InsufficientStock with the available amount, or
  NotFound).

TRANSACTIONS:
  The Ledger does not open transactions. Callers pass a context carrying
  one (see ledger.Transactor) so a multi-item sale commits or rolls back
  as a unit.

SEE ALSO:
  - sales/processor.go: Decrement on create, Increment on delete
  - inventory/service.go: Overwrite on completion
  - store/sqlstore/stock.go: Store implementation
*/
package stock

import (
	"context"
	"errors"

	"github.com/warp/retail-ledger/ledger"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence the Ledger needs.
type Store interface {
	// DecrementQuantity subtracts qty when the active product holds at least qty.
	// ok is false when the guard rejected the write.
	DecrementQuantity(ctx context.Context, productID string, qty int64) (newQty int64, ok bool, err error)

	// IncrementQuantity adds qty. Applies to tombstoned rows too, so that
	// compensating a past decrement never fails. Returns NotFound for unknown ids.
	IncrementQuantity(ctx context.Context, productID string, qty int64) (newQty int64, err error)

	// OverwriteQuantity replaces the quantity of an active product.
	OverwriteQuantity(ctx context.Context, productID string, qty int64) (ok bool, err error)

	// ProductQuantity reads the quantity of an active product (NotFound otherwise).
	ProductQuantity(ctx context.Context, productID string) (int64, error)
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger applies validated quantity mutations.
type Ledger struct {
	store Store
}

// NewLedger creates a stock ledger over store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Decrement removes qty units of productID. Returns the new quantity.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, ledger.Invalid("decrement quantity must be positive, got %d", qty)
	}

	newQty, ok, err := l.store.DecrementQuantity(ctx, productID, qty)
	if err != nil {
		return 0, err
	}
	if ok {
		return newQty, nil
	}

	// Guard rejected: find out why.
	available, err := l.store.ProductQuantity(ctx, productID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return 0, &ledger.NotFoundError{Kind: "product", ID: productID}
		}
		return 0, err
	}
	return 0, &ledger.InsufficientStockError{
		ProductID: productID,
		Requested: qty,
		Available: available,
	}
}

// Increment returns qty units of productID to stock.
func (l *Ledger) Increment(ctx context.Context, productID string, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, ledger.Invalid("increment quantity must be positive, got %d", qty)
	}
	return l.store.IncrementQuantity(ctx, productID, qty)
}

// Overwrite sets the quantity of productID to qty (stocktake result).
func (l *Ledger) Overwrite(ctx context.Context, productID string, qty int64) error {
	if qty < 0 {
		return ledger.Invalid("quantity cannot be negative, got %d", qty)
	}

	ok, err := l.store.OverwriteQuantity(ctx, productID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return &ledger.NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

// Quantity reads the current quantity of productID.
func (l *Ledger) Quantity(ctx context.Context, productID string) (int64, error) {
	return l.store.ProductQuantity(ctx, productID)
}
