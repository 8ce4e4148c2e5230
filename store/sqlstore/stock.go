package sqlstore

import (
	"context"
	"time"

	"github.com/warp/retail-ledger/ledger"
)

// =============================================================================
// STOCK (stock.Store)
// =============================================================================

// DecrementQuantity subtracts qty in one guarded statement.
func (s *Store) DecrementQuantity(ctx context.Context, productID string, qty int64) (int64, bool, error) {
	n, err := s.exec(ctx, "decrement quantity", `
		UPDATE products
		SET quantity = quantity - ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND quantity >= ?
	`, qty, time.Now().UTC(), productID, qty)
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}

	var newQty int64
	if err := s.get(ctx, "product", productID, &newQty, `SELECT quantity FROM products WHERE id = ?`, productID); err != nil {
		return 0, false, err
	}
	return newQty, true, nil
}

// IncrementQuantity adds qty. Tombstoned rows are restocked too.
func (s *Store) IncrementQuantity(ctx context.Context, productID string, qty int64) (int64, error) {
	n, err := s.exec(ctx, "increment quantity", `
		UPDATE products
		SET quantity = quantity + ?, updated_at = ?
		WHERE id = ?
	`, qty, time.Now().UTC(), productID)
	if err != nil {
		return 0, err
	}

	if n == 0 {
		return 0, &ledger.NotFoundError{Kind: "product", ID: productID}
	}

	var newQty int64
	if err := s.get(ctx, "product", productID, &newQty, `SELECT quantity FROM products WHERE id = ?`, productID); err != nil {
		return 0, err
	}
	return newQty, nil
}

// OverwriteQuantity replaces the quantity of an active product.
func (s *Store) OverwriteQuantity(ctx context.Context, productID string, qty int64) (bool, error) {
	n, err := s.exec(ctx, "overwrite quantity", `
		UPDATE products
		SET quantity = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, qty, time.Now().UTC(), productID)
	return n > 0, err
}

// ProductQuantity reads the quantity of an active product.
func (s *Store) ProductQuantity(ctx context.Context, productID string) (int64, error) {
	var qty int64
	err := s.get(ctx, "product", productID, &qty, `SELECT quantity FROM active_products WHERE id = ?`, productID)
	return qty, err
}
