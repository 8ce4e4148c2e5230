package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/retail-ledger/products"
)

// =============================================================================
// PRODUCTS (products.Store)
// =============================================================================

const productColumns = `id, shop_id, name, barcode, category, size, weight,
	purchase_price, quantity, created_at, updated_at, deleted_at`

// InsertProduct persists a new product.
func (s *Store) InsertProduct(ctx context.Context, p *products.Product) error {
	_, err := s.namedExec(ctx, "insert product", `
		INSERT INTO products (id, shop_id, name, barcode, category, size, weight,
			purchase_price, quantity, created_at, updated_at)
		VALUES (:id, :shop_id, :name, :barcode, :category, :size, :weight,
			:purchase_price, :quantity, :created_at, :updated_at)
	`, p)
	return err
}

// ActiveProduct loads a product from the active view.
func (s *Store) ActiveProduct(ctx context.Context, id string) (*products.Product, error) {
	var p products.Product
	if err := s.get(ctx, "product", id, &p, `SELECT `+productColumns+` FROM active_products WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts pages through active products matching f.
func (s *Store) ListProducts(ctx context.Context, f products.Filter) ([]products.Product, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.ShopID != "" {
		conds = append(conds, "shop_id = ?")
		args = append(args, f.ShopID)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Search != "" {
		conds = append(conds, "(LOWER(name) LIKE ? OR barcode LIKE ?)")
		like := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, like, like)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	total, err := s.count(ctx, "count products", "SELECT COUNT(*) FROM active_products"+where, args...)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + productColumns + " FROM active_products" + where + " ORDER BY name, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, (max(f.Page, 1)-1)*f.Limit)
	}

	list := []products.Product{}
	if err := s.selectInto(ctx, "list products", &list, query, args...); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ProductsByBarcode returns every active size variant with barcode.
func (s *Store) ProductsByBarcode(ctx context.Context, shopID, barcode string) ([]products.Product, error) {
	list := []products.Product{}
	err := s.selectInto(ctx, "products by barcode", &list,
		`SELECT `+productColumns+` FROM active_products WHERE shop_id = ? AND barcode = ? ORDER BY size`,
		shopID, barcode)
	return list, err
}

// LowStockProducts returns active products with quantity <= threshold.
func (s *Store) LowStockProducts(ctx context.Context, shopID string, threshold int64) ([]products.Product, error) {
	list := []products.Product{}
	err := s.selectInto(ctx, "low stock products", &list,
		`SELECT `+productColumns+` FROM active_products WHERE shop_id = ? AND quantity <= ? ORDER BY quantity, name`,
		shopID, threshold)
	return list, err
}

// ProductCategories lists the distinct categories of a shop's active products.
func (s *Store) ProductCategories(ctx context.Context, shopID string) ([]string, error) {
	cats := []string{}
	err := s.selectInto(ctx, "product categories", &cats,
		`SELECT DISTINCT category FROM active_products WHERE shop_id = ? AND category IS NOT NULL ORDER BY category`,
		shopID)
	return cats, err
}

// BarcodeTaken reports whether another active product uses barcode+size.
func (s *Store) BarcodeTaken(ctx context.Context, shopID, barcode string, size *string, exceptID string) (bool, error) {
	sz := ""
	if size != nil {
		sz = *size
	}
	n, err := s.count(ctx, "check barcode", `
		SELECT COUNT(*) FROM active_products
		WHERE shop_id = ? AND barcode = ? AND COALESCE(size, '') = ? AND id <> ?
	`, shopID, barcode, sz, exceptID)
	return n > 0, err
}

// UpdateProduct writes metadata of an active product. Quantity is untouched.
func (s *Store) UpdateProduct(ctx context.Context, p *products.Product) (bool, error) {
	n, err := s.namedExec(ctx, "update product", `
		UPDATE products SET
			name = :name, barcode = :barcode, category = :category, size = :size,
			weight = :weight, purchase_price = :purchase_price, updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL
	`, p)
	return n > 0, err
}

// SoftDeleteProduct tombstones an active product.
func (s *Store) SoftDeleteProduct(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := s.exec(ctx, "delete product",
		`UPDATE products SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, at, at, id)
	return n > 0, err
}
