/*
scenarios.go - Demo catalogue seeding for development

PURPOSE:

	Populates a shop with a realistic catalogue so the sales, debt and
	inventory flows can be exercised by hand. Every product goes through
	products.Service, so the normal barcode and access rules apply.

AVAILABLE SCENARIOS:

	clothing: Sized garments sharing barcodes across sizes
	grocery:  Weighed and counted food items, a few below the low-stock line

USAGE VIA API (APP_ENV=development only):

	POST /api/dev/seed
	{"scenario": "clothing", "shop_id": "shop-1"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' with ID, name, description
 2. Add its products to 'scenarioProducts'

NOTE:

	Seeding is additive. Running it twice on the same shop hits the
	barcode uniqueness rule and stops at the first duplicate.

SEE ALSO:
  - server.go: Dev route mounting
  - products/service.go: Create rules
*/
package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/products"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "clothing",
		Name:        "Clothing Shop",
		Description: "Garments in several sizes; barcode shared across sizes",
	},
	{
		ID:          "grocery",
		Name:        "Grocery Shop",
		Description: "Weighed and counted items, some below the low-stock threshold",
	},
}

var scenarioProducts = map[string][]products.CreateInput{
	"clothing": {
		seedProduct("T-shirt basic", "4600000000011", "tops", "S", "", "450.00", 12),
		seedProduct("T-shirt basic", "4600000000011", "tops", "M", "", "450.00", 20),
		seedProduct("T-shirt basic", "4600000000011", "tops", "L", "", "450.00", 8),
		seedProduct("Jeans slim", "4600000000028", "bottoms", "32", "", "1900.00", 6),
		seedProduct("Jeans slim", "4600000000028", "bottoms", "34", "", "1900.00", 4),
		seedProduct("Winter jacket", "4600000000035", "outerwear", "XL", "", "5200.00", 3),
	},
	"grocery": {
		seedProduct("Milk 1L", "4600000001018", "dairy", "", "1.030", "62.50", 40),
		seedProduct("Bread rye", "4600000001025", "bakery", "", "0.500", "38.00", 15),
		seedProduct("Apples", "4600000001032", "produce", "", "1.000", "95.00", 7),
		seedProduct("Buckwheat 900g", "4600000001049", "grocery", "", "0.900", "74.90", 25),
		seedProduct("Eggs C1 x10", "4600000001056", "dairy", "", "", "88.00", 5),
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// Seed loads a scenario's products into the caller's (or the named) shop.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req SeedRequest
	if !h.decode(w, r, &req) {
		return
	}

	items, ok := scenarioProducts[req.Scenario]
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown scenario: " + req.Scenario, Code: CodeInvalidInput})
		return
	}

	created, err := h.seedProducts(r.Context(), p, ledger.ScopeShop(p, req.ShopID), items)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.log.Info("scenario seeded",
		zap.String("scenario", req.Scenario),
		zap.String("user_id", p.UserID),
		zap.Int("products", len(created)))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) seedProducts(ctx context.Context, p ledger.Principal, shopID string, items []products.CreateInput) ([]products.Product, error) {
	created := make([]products.Product, 0, len(items))
	for _, in := range items {
		in.ShopID = shopID
		prod, err := h.svc.Products.Create(ctx, p, in)
		if err != nil {
			return created, err
		}
		created = append(created, *prod)
	}
	return created, nil
}

func seedProduct(name, barcode, category, size, weight, price string, qty int64) products.CreateInput {
	in := products.CreateInput{
		Name:          name,
		PurchasePrice: decimal.RequireFromString(price),
		Quantity:      qty,
	}
	if barcode != "" {
		in.Barcode = &barcode
	}
	if category != "" {
		in.Category = &category
	}
	if size != "" {
		in.Size = &size
	}
	if weight != "" {
		w := decimal.RequireFromString(weight)
		in.Weight = &w
	}
	return in
}
