/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract: field names follow the
  snake_case contract clients already use (sale_price, customer_name, ...).

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers that are not a domain type

  Domain types (products.Product, sales.Sale, debts.Debt, inventory.Inventory)
  carry their own json tags and are returned as-is.

VALIDATION:
  Shape checks live in `validate` struct tags and run at decode time.
  Business rules (stock, debt bounds, shop scope) stay in the domain
  packages. Amounts are pointers so "missing" differs from "zero".

SEE ALSO:
  - handlers.go: decode + validate
  - errors.go: ErrorResponse codes
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/retail-ledger/debts"
	"github.com/warp/retail-ledger/inventory"
	"github.com/warp/retail-ledger/products"
	"github.com/warp/retail-ledger/sales"
)

// =============================================================================
// PRODUCTS
// =============================================================================

// CreateProductRequest is the request to add a product to a shop.
type CreateProductRequest struct {
	ShopID        string           `json:"shop_id"`
	Name          string           `json:"name" validate:"required,max=255"`
	Barcode       *string          `json:"barcode" validate:"omitempty,max=64"`
	Category      *string          `json:"category" validate:"omitempty,max=100"`
	Size          *string          `json:"size" validate:"omitempty,max=32"`
	Weight        *decimal.Decimal `json:"weight"`
	PurchasePrice *decimal.Decimal `json:"purchase_price" validate:"required"`
	Quantity      int64            `json:"quantity" validate:"gte=0"`
}

func (r CreateProductRequest) toInput(shopID string) products.CreateInput {
	return products.CreateInput{
		ShopID:        shopID,
		Name:          r.Name,
		Barcode:       r.Barcode,
		Category:      r.Category,
		Size:          r.Size,
		Weight:        r.Weight,
		PurchasePrice: *r.PurchasePrice,
		Quantity:      r.Quantity,
	}
}

// UpdateProductRequest changes product metadata. Quantity is not accepted.
type UpdateProductRequest struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Barcode       *string          `json:"barcode" validate:"omitempty,max=64"`
	Category      *string          `json:"category" validate:"omitempty,max=100"`
	Size          *string          `json:"size" validate:"omitempty,max=32"`
	Weight        *decimal.Decimal `json:"weight"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
}

func (r UpdateProductRequest) toInput() products.UpdateInput {
	return products.UpdateInput{
		Name:          r.Name,
		Barcode:       r.Barcode,
		Category:      r.Category,
		Size:          r.Size,
		Weight:        r.Weight,
		PurchasePrice: r.PurchasePrice,
	}
}

// ProductPageResponse is one page of List.
type ProductPageResponse struct {
	Items []products.Product `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// =============================================================================
// SALES
// =============================================================================

// CreateSaleRequest records a sale. An empty items list is rejected by the
// processor as EmptySale, not by validation.
type CreateSaleRequest struct {
	ShopID string            `json:"shop_id"`
	Items  []SaleItemRequest `json:"items" validate:"dive"`
}

// SaleItemRequest is one line of a sale.
type SaleItemRequest struct {
	ProductID  string           `json:"product_id" validate:"required"`
	Quantity   int64            `json:"quantity" validate:"gt=0"`
	SalePrice  *decimal.Decimal `json:"sale_price" validate:"required"`
	TotalPrice *decimal.Decimal `json:"total_price"`
}

func (r CreateSaleRequest) toInput(shopID string) sales.CreateInput {
	in := sales.CreateInput{ShopID: shopID, Items: make([]sales.ItemInput, len(r.Items))}
	for i, it := range r.Items {
		in.Items[i] = sales.ItemInput{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  *it.SalePrice,
			TotalPrice: it.TotalPrice,
		}
	}
	return in
}

// DeleteResponse confirms a soft delete.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// =============================================================================
// DEBTS
// =============================================================================

// CreateCustomerDebtRequest opens a customer debt. Customers start unpaid.
type CreateCustomerDebtRequest struct {
	ShopID       string           `json:"shop_id"`
	CustomerName string           `json:"customer_name" validate:"required,max=255"`
	Amount       *decimal.Decimal `json:"amount" validate:"required"`
	DebtDate     string           `json:"debt_date"`
	Phone        *string          `json:"phone" validate:"omitempty,max=32"`
	Description  *string          `json:"description"`
}

// CreateSupplierDebtRequest opens a supplier debt, optionally part paid.
type CreateSupplierDebtRequest struct {
	ShopID       string           `json:"shop_id"`
	SupplierName string           `json:"supplier_name" validate:"required,max=255"`
	TotalDebt    *decimal.Decimal `json:"total_debt" validate:"required"`
	PaidAmount   *decimal.Decimal `json:"paid_amount"`
	Description  *string          `json:"description"`
	DebtDate     string           `json:"debt_date"`
}

// UpdateDebtRequest corrects a debt of either kind. Names and totals are
// accepted under both the customer and the supplier field names.
type UpdateDebtRequest struct {
	CustomerName *string          `json:"customer_name" validate:"omitempty,min=1,max=255"`
	SupplierName *string          `json:"supplier_name" validate:"omitempty,min=1,max=255"`
	Amount       *decimal.Decimal `json:"amount"`
	TotalDebt    *decimal.Decimal `json:"total_debt"`
	PaidAmount   *decimal.Decimal `json:"paid_amount"`
	Phone        *string          `json:"phone" validate:"omitempty,max=32"`
	Description  *string          `json:"description"`
	DebtDate     *string          `json:"debt_date"`
}

// AddPaymentRequest records a payment against a debt.
type AddPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// OutstandingResponse is the cached outstanding total of a shop.
type OutstandingResponse struct {
	ShopID string          `json:"shop_id"`
	Kind   debts.Kind      `json:"kind"`
	Total  decimal.Decimal `json:"total"`
}

// =============================================================================
// INVENTORY
// =============================================================================

// CreateInventoryRequest drafts a stocktake.
type CreateInventoryRequest struct {
	ShopID string                 `json:"shop_id"`
	Notes  *string                `json:"notes"`
	Items  []InventoryItemRequest `json:"items" validate:"required,min=1,dive"`
}

// InventoryItemRequest is one counted product.
type InventoryItemRequest struct {
	ProductID        string `json:"product_id" validate:"required"`
	ExpectedQuantity int64  `json:"expected_quantity" validate:"gte=0"`
	ActualQuantity   int64  `json:"actual_quantity" validate:"gte=0"`
}

func (r CreateInventoryRequest) toInput(shopID string) inventory.CreateInput {
	in := inventory.CreateInput{ShopID: shopID, Notes: r.Notes, Items: make([]inventory.ItemInput, len(r.Items))}
	for i, it := range r.Items {
		in.Items[i] = inventory.ItemInput{
			ProductID:        it.ProductID,
			ExpectedQuantity: it.ExpectedQuantity,
			ActualQuantity:   it.ActualQuantity,
		}
	}
	return in
}

// =============================================================================
// MISC
// =============================================================================

// HealthResponse reports dependency reachability.
type HealthResponse struct {
	Status string            `json:"status"` // ok | degraded
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

// SeedRequest loads a demo catalogue into a shop.
type SeedRequest struct {
	Scenario string `json:"scenario" validate:"required"`
	ShopID   string `json:"shop_id"`
}

// ScenarioDTO describes a seedable demo catalogue.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
