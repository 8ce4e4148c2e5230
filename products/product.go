// Package products is the shop catalogue. It owns product metadata; the
// quantity column belongs to the stock ledger and is only set here at creation.
package products

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold is used when a low-stock query gives none.
const DefaultLowStockThreshold int64 = 10

// Product is a stock-keeping unit of one shop.
type Product struct {
	ID            string              `db:"id" json:"id"`
	ShopID        string              `db:"shop_id" json:"shop_id"`
	Name          string              `db:"name" json:"name"`
	Barcode       *string             `db:"barcode" json:"barcode,omitempty"`
	Category      *string             `db:"category" json:"category,omitempty"`
	Size          *string             `db:"size" json:"size,omitempty"`
	Weight        decimal.NullDecimal `db:"weight" json:"weight"`
	PurchasePrice decimal.Decimal     `db:"purchase_price" json:"purchase_price"`
	Quantity      int64               `db:"quantity" json:"quantity"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time          `db:"deleted_at" json:"deleted_at,omitempty"`
}

// CreateInput carries a new product.
type CreateInput struct {
	ShopID        string
	Name          string
	Barcode       *string
	Category      *string
	Size          *string
	Weight        *decimal.Decimal
	PurchasePrice decimal.Decimal
	Quantity      int64
}

// UpdateInput carries metadata changes. Quantity is deliberately absent.
type UpdateInput struct {
	Name          *string
	Barcode       *string
	Category      *string
	Size          *string
	Weight        *decimal.Decimal
	PurchasePrice *decimal.Decimal
}

// Filter narrows List.
type Filter struct {
	ShopID   string
	Category string
	Search   string // name or barcode substring
	Page     int
	Limit    int
}

// Store is the persistence the catalogue needs.
type Store interface {
	InsertProduct(ctx context.Context, p *Product) error
	ActiveProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, f Filter) ([]Product, int, error)
	ProductsByBarcode(ctx context.Context, shopID, barcode string) ([]Product, error)
	LowStockProducts(ctx context.Context, shopID string, threshold int64) ([]Product, error)
	ProductCategories(ctx context.Context, shopID string) ([]string, error)
	BarcodeTaken(ctx context.Context, shopID, barcode string, size *string, exceptID string) (bool, error)
	UpdateProduct(ctx context.Context, p *Product) (bool, error)
	SoftDeleteProduct(ctx context.Context, id string, at time.Time) (bool, error)
}
