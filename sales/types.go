package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/retail-ledger/products"
)

// =============================================================================
// SALE
// =============================================================================

// Sale is one point-of-sale transaction. TotalAmount always equals the sum
// of its items' TotalPrice. After creation a sale is only ever soft-deleted.
type Sale struct {
	ID          string          `db:"id" json:"id"`
	ShopID      string          `db:"shop_id" json:"shop_id"`
	SellerID    string          `db:"seller_id" json:"seller_id"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	DeletedAt   *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	Items       []Item          `db:"-" json:"items"`
}

// Item is an immutable sale line.
type Item struct {
	ID         string          `db:"id" json:"id"`
	SaleID     string          `db:"sale_id" json:"sale_id"`
	ProductID  string          `db:"product_id" json:"product_id"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	Position   int             `db:"position" json:"-"`
}

// CreateInput is a sale request.
type CreateInput struct {
	ShopID string
	Items  []ItemInput
}

// ItemInput is one requested line. TotalPrice is optional and only honoured
// under LineTotalSupplied.
type ItemInput struct {
	ProductID  string
	Quantity   int64
	UnitPrice  decimal.Decimal
	TotalPrice *decimal.Decimal
}

// ListFilter narrows List. Zero times are open bounds.
type ListFilter struct {
	ShopID   string
	SellerID string
	From     time.Time
	To       time.Time
}

// DailySummary aggregates one UTC day of active sales.
type DailySummary struct {
	ShopID      string          `json:"shop_id"`
	Date        string          `json:"date"`
	TotalSales  int             `json:"total_sales"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// SellerDailyReport is one seller's day of active sales, items included.
type SellerDailyReport struct {
	SellerID    string          `json:"seller_id"`
	Date        string          `json:"date"`
	TotalSales  int             `json:"total_sales"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Sales       []Sale          `json:"sales"`
}

// DeletedStatistics aggregates soft-deleted sales of a shop.
type DeletedStatistics struct {
	ShopID      string          `json:"shop_id"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// =============================================================================
// LINE TOTAL POLICY
// =============================================================================

// LineTotalPolicy decides where an item's total price comes from.
type LineTotalPolicy string

const (
	// LineTotalSupplied trusts a caller-supplied total (weighed goods) and
	// falls back to unit price times quantity.
	LineTotalSupplied LineTotalPolicy = "supplied"

	// LineTotalDerived always computes unit price times quantity.
	LineTotalDerived LineTotalPolicy = "derived"
)

// ParseLineTotalPolicy parses a configured policy name.
func ParseLineTotalPolicy(s string) (LineTotalPolicy, error) {
	switch LineTotalPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LineTotalSupplied:
		return LineTotalSupplied, nil
	case LineTotalDerived:
		return LineTotalDerived, nil
	}
	return "", fmt.Errorf("unknown line total policy %q", s)
}

func (p LineTotalPolicy) lineTotal(in ItemInput) decimal.Decimal {
	if p != LineTotalDerived && in.TotalPrice != nil {
		return *in.TotalPrice
	}
	return in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence the processor needs.
type Store interface {
	ActiveProduct(ctx context.Context, id string) (*products.Product, error)
	InsertSale(ctx context.Context, s *Sale) error
	ActiveSale(ctx context.Context, id string) (*Sale, error)
	SoftDeleteSale(ctx context.Context, id string, at time.Time) (bool, error)
	ListSales(ctx context.Context, f ListFilter) ([]Sale, error)
	DeletedSales(ctx context.Context, shopID string) ([]Sale, error)
}

// DailyKey is the cache key of a shop's daily summary.
func DailyKey(shopID string, day time.Time) string {
	return fmt.Sprintf("sales:%s:daily:%s", shopID, day.UTC().Format(time.DateOnly))
}

// SellerDailyKey is the cache key of one seller's view of a daily summary.
func SellerDailyKey(shopID string, day time.Time, sellerID string) string {
	return DailyKey(shopID, day) + ":seller:" + sellerID
}

// DeletedKey is the cache key of a shop's deleted-sales statistics.
func DeletedKey(shopID string) string {
	return fmt.Sprintf("sales:%s:deleted", shopID)
}
