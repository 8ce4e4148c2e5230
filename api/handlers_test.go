/*
handlers_test.go - HTTP tests for the API surface

Tests for:
- Bearer authentication
- Sale create/delete and stock error mapping
- Seller daily report access
- Debt duplicate and overpayment mapping
- Inventory completion lifecycle
- Health reporting
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/api"
	"github.com/warp/retail-ledger/cache"
	"github.com/warp/retail-ledger/debts"
	"github.com/warp/retail-ledger/inventory"
	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/products"
	"github.com/warp/retail-ledger/sales"
	"github.com/warp/retail-ledger/stock"
	"github.com/warp/retail-ledger/store/sqlstore"
)

const secret = "test-secret"

var (
	owner  = ledger.Principal{UserID: "owner-1", Role: ledger.RoleShopOwner, ShopID: "shop-1"}
	seller = ledger.Principal{UserID: "seller-1", Role: ledger.RoleSeller, ShopID: "shop-1"}
)

type testServer struct {
	t       *testing.T
	router  http.Handler
	auth    *api.Authenticator
	catalog *products.Service
	stock   *stock.Ledger
}

func newTestServer(t *testing.T, checks ...api.HealthCheck) *testServer {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zap.NewNop()
	mem := cache.NewMemory()
	stockLedger := stock.NewLedger(store)
	svc := api.Services{
		Products:      products.NewService(store, store, log),
		Sales:         sales.NewProcessor(store, store, stockLedger, log, sales.WithCache(mem, time.Minute)),
		CustomerDebts: debts.NewLedger(debts.KindCustomer, store, store, log, debts.WithCache(mem, time.Minute)),
		SupplierDebts: debts.NewLedger(debts.KindSupplier, store, store, log, debts.WithCache(mem, time.Minute)),
		Inventory:     inventory.NewService(store, store, stockLedger, nil, log),
	}

	auth := api.NewAuthenticator(secret)
	checks = append([]api.HealthCheck{{Name: "database", Ping: store.Ping}}, checks...)
	router := api.NewRouter(api.NewHandler(svc, log, checks...), auth, api.RouterOptions{
		AllowedOrigins:  []string{"http://localhost:5173"},
		EnableDevRoutes: true,
	})

	return &testServer{t: t, router: router, auth: auth, catalog: svc.Products, stock: stockLedger}
}

func (s *testServer) token(p ledger.Principal) string {
	s.t.Helper()
	tok, err := s.auth.Sign(p, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(p *ledger.Principal, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*p))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) product(qty int64) string {
	s.t.Helper()
	prod, err := s.catalog.Create(context.Background(), owner, products.CreateInput{
		ShopID:        "shop-1",
		Name:          "Tee",
		PurchasePrice: decimal.RequireFromString("3"),
		Quantity:      qty,
	})
	require.NoError(s.t, err)
	return prod.ID
}

func (s *testServer) quantity(id string) int64 {
	s.t.Helper()
	q, err := s.stock.Quantity(context.Background(), id)
	require.NoError(s.t, err)
	return q
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuth_MissingOrBadToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(nil, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, api.CodeUnauthorized, decodeError(t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A token signed with another key
	other, err := api.NewAuthenticator("other").Sign(owner, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticator_RoundTrip(t *testing.T) {
	auth := api.NewAuthenticator(secret)

	tok, err := auth.Sign(seller, time.Hour)
	require.NoError(t, err)

	p, err := auth.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, seller, p)

	// Shop-scoped roles need a shop
	tok, err = auth.Sign(ledger.Principal{UserID: "u", Role: ledger.RoleSeller}, time.Hour)
	require.NoError(t, err)
	_, err = auth.Parse(tok)
	assert.Error(t, err)

	// Expired
	tok, err = auth.Sign(owner, -time.Minute)
	require.NoError(t, err)
	_, err = auth.Parse(tok)
	assert.Error(t, err)
}

func TestSales_CreateAndDelete(t *testing.T) {
	s := newTestServer(t)
	id := s.product(5)

	// WHEN: Selling 2 of 5
	rec := s.do(&seller, http.MethodPost, "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 2, "sale_price": "10"}},
	})

	// THEN: Created with total 20
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sale sales.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	assert.Equal(t, "20.00", sale.TotalAmount.StringFixed(2))
	assert.Equal(t, int64(3), s.quantity(id))

	// WHEN: Deleting it twice
	rec = s.do(&owner, http.MethodDelete, "/api/sales/"+sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var del api.DeleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &del))
	assert.True(t, del.Deleted)
	assert.Equal(t, int64(5), s.quantity(id))

	rec = s.do(&owner, http.MethodDelete, "/api/sales/"+sale.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int64(5), s.quantity(id))
}

func TestSales_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	id := s.product(1)

	rec := s.do(&seller, http.MethodPost, "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 2, "sale_price": 10}},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, api.CodeInsufficientStock, resp.Code)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, id, details["product_id"])
	assert.EqualValues(t, 1, details["available"])
	assert.EqualValues(t, 2, details["requested"])
	assert.Equal(t, int64(1), s.quantity(id))
}

func TestSales_UnknownProductAndEmptySale(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&seller, http.MethodPost, "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": "missing", "quantity": 1, "sale_price": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, api.CodeProductNotFound, decodeError(t, rec).Code)

	rec = s.do(&seller, http.MethodPost, "/api/sales", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeEmptySale, decodeError(t, rec).Code)

	// Missing sale_price fails validation
	rec = s.do(&seller, http.MethodPost, "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": "x", "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeInvalidInput, decodeError(t, rec).Code)
}

func TestCustomerDebts_DuplicateAndOverpayment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&seller, http.MethodPost, "/api/customer-debts", map[string]any{
		"customer_name": "Ivan",
		"amount":        "100",
		"debt_date":     "2026-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d debts.Debt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))

	// Same name, different case
	rec = s.do(&seller, http.MethodPost, "/api/customer-debts", map[string]any{
		"customer_name": "IVAN",
		"amount":        "5",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, api.CodeDuplicateCounterparty, decodeError(t, rec).Code)

	// Pay 90 then 20
	rec = s.do(&seller, http.MethodPost, "/api/customer-debts/"+d.ID+"/payment", map[string]any{"amount": "90"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(&seller, http.MethodPost, "/api/customer-debts/"+d.ID+"/payment", map[string]any{"amount": "20"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, api.CodePaymentExceedsDebt, resp.Code)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "10.00", details["remaining"])

	// Outstanding total reflects the accepted payment only
	rec = s.do(&seller, http.MethodGet, "/api/customer-debts/total", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var total api.OutstandingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &total))
	assert.Equal(t, "10.00", total.Total.StringFixed(2))
	assert.Equal(t, debts.KindCustomer, total.Kind)

	// Bad date
	rec = s.do(&seller, http.MethodPost, "/api/customer-debts", map[string]any{
		"customer_name": "Olga",
		"amount":        "1",
		"debt_date":     "yesterday",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSupplierDebts_InitialPaid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&owner, http.MethodPost, "/api/supplier-debts", map[string]any{
		"supplier_name": "Acme",
		"total_debt":    "500",
		"paid_amount":   "200",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d debts.Debt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "300.00", d.Remaining.StringFixed(2))

	// Supplier ids are not visible through the customer ledger
	rec = s.do(&owner, http.MethodGet, "/api/customer-debts/"+d.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSupplierDebts_PatchCorrectsPaid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&owner, http.MethodPost, "/api/supplier-debts", map[string]any{
		"supplier_name": "Acme",
		"total_debt":    "500",
		"paid_amount":   "200",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d debts.Debt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))

	// WHEN: Correcting the paid amount
	rec = s.do(&owner, http.MethodPatch, "/api/supplier-debts/"+d.ID, map[string]any{"paid_amount": "450"})

	// THEN: Remaining is recomputed
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "50.00", d.Remaining.StringFixed(2))

	// PUT is not routed
	rec = s.do(&owner, http.MethodPut, "/api/supplier-debts/"+d.ID, map[string]any{"paid_amount": "400"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// Sub-cent payments are refused
	rec = s.do(&owner, http.MethodPost, "/api/supplier-debts/"+d.ID+"/payment", map[string]any{"amount": "0.005"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeInvalidInput, decodeError(t, rec).Code)
}

func TestSales_SellerDailyReport(t *testing.T) {
	s := newTestServer(t)
	id := s.product(5)

	rec := s.do(&seller, http.MethodPost, "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 1, "sale_price": "7.25"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: The seller asks for their own day
	rec = s.do(&seller, http.MethodGet, "/api/sales/seller/seller-1/daily", nil)

	// THEN: The sale is listed with its items
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report sales.SellerDailyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "seller-1", report.SellerID)
	assert.Equal(t, 1, report.TotalSales)
	assert.Equal(t, "7.25", report.TotalAmount.StringFixed(2))
	require.Len(t, report.Sales, 1)
	assert.Len(t, report.Sales[0].Items, 1)

	// Another seller's report is forbidden to a seller, open to the owner
	rec = s.do(&seller, http.MethodGet, "/api/sales/seller/seller-2/daily", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(&owner, http.MethodGet, "/api/sales/seller/seller-1/daily", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(&owner, http.MethodGet, "/api/sales/seller/seller-1/daily?date=03-01-2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSales_AdminWithoutShop(t *testing.T) {
	s := newTestServer(t)
	id := s.product(5)
	admin := ledger.Principal{UserID: "admin", Role: ledger.RoleAdmin}

	rec := s.do(&admin, http.MethodPost, "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 1, "sale_price": "1"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeInvalidInput, decodeError(t, rec).Code)
	assert.Equal(t, int64(5), s.quantity(id))
}

func TestInventory_CompleteLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.product(10)

	rec := s.do(&owner, http.MethodPost, "/api/inventory", map[string]any{
		"items": []map[string]any{{"product_id": id, "expected_quantity": 10, "actual_quantity": 8}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv inventory.Inventory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))

	rec = s.do(&owner, http.MethodGet, "/api/inventory/"+inv.ID+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report inventory.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.ItemsWithDifference)
	assert.Equal(t, int64(-2), report.TotalDifference)

	// Sellers may not complete
	rec = s.do(&seller, http.MethodPatch, "/api/inventory/"+inv.ID+"/complete", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(&owner, http.MethodPatch, "/api/inventory/"+inv.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(8), s.quantity(id))

	rec = s.do(&owner, http.MethodPatch, "/api/inventory/"+inv.ID+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeAlreadyCompleted, decodeError(t, rec).Code)

	// Empty stocktakes fail validation
	rec = s.do(&owner, http.MethodPost, "/api/inventory", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts_CreateAndDuplicateBarcode(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"name": "Cap", "barcode": "777", "purchase_price": "4.5", "quantity": 2}

	rec := s.do(&owner, http.MethodPost, "/api/products", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(&owner, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, api.CodeDuplicateBarcode, decodeError(t, rec).Code)

	rec = s.do(&seller, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(&seller, http.MethodGet, "/api/products/barcode/777", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []products.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Cap", found[0].Name)
}

func TestDevSeed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&owner, http.MethodGet, "/api/dev/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []api.ScenarioDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.NotEmpty(t, list)

	rec = s.do(&owner, http.MethodPost, "/api/dev/seed", map[string]any{"scenario": "clothing"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(&owner, http.MethodGet, "/api/products/barcode/4600000000011", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sizes []products.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sizes))
	assert.Len(t, sizes, 3)

	rec = s.do(&owner, http.MethodPost, "/api/dev/seed", map[string]any{"scenario": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(nil, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.WithinDuration(t, time.Now(), resp.Time, time.Minute)

	degraded := newTestServer(t, api.HealthCheck{Name: "redis", Ping: func(context.Context) error {
		return errors.New("connection refused")
	}})
	rec = degraded.do(nil, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
