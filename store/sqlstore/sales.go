package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warp/retail-ledger/sales"
)

// =============================================================================
// SALES (sales.Store)
// =============================================================================

const (
	saleColumns     = `id, shop_id, seller_id, total_amount, created_at, deleted_at`
	saleItemColumns = `id, sale_id, product_id, quantity, unit_price, total_price, position`
)

// InsertSale persists a sale and its items. Call inside WithTx.
func (s *Store) InsertSale(ctx context.Context, sale *sales.Sale) error {
	if _, err := s.namedExec(ctx, "insert sale", `
		INSERT INTO sales (id, shop_id, seller_id, total_amount, created_at)
		VALUES (:id, :shop_id, :seller_id, :total_amount, :created_at)
	`, sale); err != nil {
		return err
	}

	for i := range sale.Items {
		if _, err := s.namedExec(ctx, "insert sale item", `
			INSERT INTO sale_items (`+saleItemColumns+`)
			VALUES (:id, :sale_id, :product_id, :quantity, :unit_price, :total_price, :position)
		`, &sale.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

// ActiveSale loads a non-deleted sale with its items.
func (s *Store) ActiveSale(ctx context.Context, id string) (*sales.Sale, error) {
	var sale sales.Sale
	if err := s.get(ctx, "sale", id, &sale, `SELECT `+saleColumns+` FROM active_sales WHERE id = ?`, id); err != nil {
		return nil, err
	}

	sale.Items = []sales.Item{}
	if err := s.selectInto(ctx, "load sale items", &sale.Items,
		`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id = ? ORDER BY position`, id); err != nil {
		return nil, err
	}
	return &sale, nil
}

// SoftDeleteSale tombstones a sale. false when it was already deleted.
func (s *Store) SoftDeleteSale(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := s.exec(ctx, "delete sale",
		`UPDATE sales SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, at, id)
	return n > 0, err
}

// ListSales returns active sales matching f, newest first, with items.
func (s *Store) ListSales(ctx context.Context, f sales.ListFilter) ([]sales.Sale, error) {
	var (
		conds []string
		args  []any
	)
	if f.ShopID != "" {
		conds = append(conds, "shop_id = ?")
		args = append(args, f.ShopID)
	}
	if f.SellerID != "" {
		conds = append(conds, "seller_id = ?")
		args = append(args, f.SellerID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To.UTC())
	}

	query := `SELECT ` + saleColumns + ` FROM active_sales`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	list := []sales.Sale{}
	if err := s.selectInto(ctx, "list sales", &list, query, args...); err != nil {
		return nil, err
	}
	if err := s.attachSaleItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeletedSales returns a shop's soft-deleted sales (without items).
func (s *Store) DeletedSales(ctx context.Context, shopID string) ([]sales.Sale, error) {
	list := []sales.Sale{}
	err := s.selectInto(ctx, "deleted sales", &list,
		`SELECT `+saleColumns+` FROM sales WHERE shop_id = ? AND deleted_at IS NOT NULL ORDER BY deleted_at DESC`,
		shopID)
	return list, err
}

func (s *Store) attachSaleItems(ctx context.Context, list []sales.Sale) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]string, len(list))
	byID := make(map[string]*sales.Sale, len(list))
	for i := range list {
		ids[i] = list[i].ID
		list[i].Items = []sales.Item{}
		byID[list[i].ID] = &list[i]
	}

	query, args, err := sqlx.In(`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, position`, ids)
	if err != nil {
		return s.translate("list sale items", err)
	}

	var items []sales.Item
	if err := s.selectInto(ctx, "list sale items", &items, s.ext(ctx).Rebind(query), args...); err != nil {
		return err
	}
	for _, it := range items {
		if sale, ok := byID[it.SaleID]; ok {
			sale.Items = append(sale.Items, it)
		}
	}
	return nil
}
