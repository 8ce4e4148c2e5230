package inventory

import (
	"context"
	"time"

	"github.com/warp/retail-ledger/products"
)

// Status is the stocktake lifecycle state. Draft -> Completed is the only transition.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
)

// Inventory is one stocktake session.
type Inventory struct {
	ID          string     `db:"id" json:"id"`
	ShopID      string     `db:"shop_id" json:"shop_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	Status      Status     `db:"status" json:"status"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	Items       []Item     `db:"-" json:"items"`
}

// Item is one counted product. Difference = ActualQuantity - ExpectedQuantity.
type Item struct {
	ID               string  `db:"id" json:"id"`
	InventoryID      string  `db:"inventory_id" json:"inventory_id"`
	ProductID        string  `db:"product_id" json:"product_id"`
	ExpectedQuantity int64   `db:"expected_quantity" json:"expected_quantity"`
	ActualQuantity   int64   `db:"actual_quantity" json:"actual_quantity"`
	Difference       int64   `db:"difference" json:"difference"`
	ProductName      string  `db:"product_name" json:"product_name"`
	Barcode          *string `db:"barcode" json:"barcode,omitempty"`
}

// CreateInput drafts a stocktake.
type CreateInput struct {
	ShopID string
	Notes  *string
	Items  []ItemInput
}

// ItemInput is one counted line.
type ItemInput struct {
	ProductID        string
	ExpectedQuantity int64
	ActualQuantity   int64
}

// Report summarises the discrepancies of a session.
type Report struct {
	Inventory           *Inventory `json:"inventory"`
	TotalItems          int        `json:"total_items"`
	ItemsWithDifference int        `json:"items_with_difference"`
	TotalDifference     int64      `json:"total_difference"`
	Discrepancies       []Item     `json:"discrepancies"`
	Items               []Item     `json:"items"`
}

// Store is the persistence the service needs.
type Store interface {
	ActiveProduct(ctx context.Context, id string) (*products.Product, error)
	InsertInventory(ctx context.Context, inv *Inventory) error
	GetInventory(ctx context.Context, id string) (*Inventory, error)
	ListInventories(ctx context.Context, shopID string) ([]Inventory, error)
	// MarkInventoryCompleted transitions a draft; false if it was not a draft.
	MarkInventoryCompleted(ctx context.Context, id string, at time.Time) (bool, error)
}

// Locker serialises completion of one session across processes. Obtain
// returns an error wrapping ledger.ErrConcurrentModification when another
// holder owns key; any other error means the lock backend is unavailable.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}
