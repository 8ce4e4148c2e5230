package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warp/retail-ledger/inventory"
)

// =============================================================================
// INVENTORY (inventory.Store)
// =============================================================================

const inventoryColumns = `id, shop_id, user_id, notes, status, completed_at, created_at`

// Items join the base products table so removed products still report a name.
const inventoryItemQuery = `
	SELECT ii.id, ii.inventory_id, ii.product_id, ii.expected_quantity, ii.actual_quantity,
		ii.difference, p.name AS product_name, p.barcode AS barcode
	FROM inventory_items ii
	JOIN products p ON p.id = ii.product_id`

// InsertInventory persists a session and its items. Call inside WithTx.
func (s *Store) InsertInventory(ctx context.Context, inv *inventory.Inventory) error {
	if _, err := s.namedExec(ctx, "insert inventory", `
		INSERT INTO inventories (`+inventoryColumns+`)
		VALUES (:id, :shop_id, :user_id, :notes, :status, :completed_at, :created_at)
	`, inv); err != nil {
		return err
	}

	for i, it := range inv.Items {
		if _, err := s.exec(ctx, "insert inventory item", `
			INSERT INTO inventory_items (id, inventory_id, product_id, expected_quantity, actual_quantity, difference, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, it.ID, inv.ID, it.ProductID, it.ExpectedQuantity, it.ActualQuantity, it.Difference, i); err != nil {
			return err
		}
	}
	return nil
}

// GetInventory loads a session with its items.
func (s *Store) GetInventory(ctx context.Context, id string) (*inventory.Inventory, error) {
	var inv inventory.Inventory
	if err := s.get(ctx, "inventory", id, &inv, `SELECT `+inventoryColumns+` FROM inventories WHERE id = ?`, id); err != nil {
		return nil, err
	}

	inv.Items = []inventory.Item{}
	if err := s.selectInto(ctx, "load inventory items", &inv.Items,
		inventoryItemQuery+` WHERE ii.inventory_id = ? ORDER BY ii.position`, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInventories returns a shop's sessions with items, newest first.
func (s *Store) ListInventories(ctx context.Context, shopID string) ([]inventory.Inventory, error) {
	list := []inventory.Inventory{}
	if err := s.selectInto(ctx, "list inventories", &list,
		`SELECT `+inventoryColumns+` FROM inventories WHERE shop_id = ? ORDER BY created_at DESC, id`, shopID); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, len(list))
	byID := make(map[string]*inventory.Inventory, len(list))
	for i := range list {
		ids[i] = list[i].ID
		list[i].Items = []inventory.Item{}
		byID[list[i].ID] = &list[i]
	}

	query, args, err := sqlx.In(inventoryItemQuery+` WHERE ii.inventory_id IN (?) ORDER BY ii.inventory_id, ii.position`, ids)
	if err != nil {
		return nil, s.translate("list inventory items", err)
	}
	var items []inventory.Item
	if err := s.selectInto(ctx, "list inventory items", &items, s.ext(ctx).Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, it := range items {
		if inv, ok := byID[it.InventoryID]; ok {
			inv.Items = append(inv.Items, it)
		}
	}
	return list, nil
}

// MarkInventoryCompleted moves a draft to completed. false if it was not a draft.
func (s *Store) MarkInventoryCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := s.exec(ctx, "complete inventory", `
		UPDATE inventories SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, inventory.StatusCompleted, at, id, inventory.StatusDraft)
	return n > 0, err
}
