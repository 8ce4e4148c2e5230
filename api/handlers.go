/*
handlers.go - HTTP API handlers for the retail core

PURPOSE:
  Exposes the stock ledger, sales processor, debt ledgers and inventory
  reconciliation via REST. Handlers decode + validate, resolve the caller's
  principal, delegate to a domain service and serialize the result.

ENDPOINTS:
  Products:
    GET    /api/products                     List (shop_id, category, search, page, limit)
    POST   /api/products                     Create
    GET    /api/products/low-stock           At or below threshold
    GET    /api/products/categories          Distinct categories
    GET    /api/products/barcode/{barcode}   All size variants
    GET    /api/products/{id}                Get
    PUT    /api/products/{id}                Update metadata
    DELETE /api/products/{id}                Soft delete

  Sales (sales.go), Debts (debts.go), Inventory (inventory.go).

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate shape (validator tags)
  3. Call domain service with the principal from the JWT
  4. Serialize response
  5. Map errors through classify (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Principal extraction
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/debts"
	"github.com/warp/retail-ledger/inventory"
	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/products"
	"github.com/warp/retail-ledger/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Services are the domain entry points the handlers delegate to.
type Services struct {
	Products      *products.Service
	Sales         *sales.Processor
	CustomerDebts *debts.Ledger
	SupplierDebts *debts.Ledger
	Inventory     *inventory.Service
}

// HealthCheck is one dependency probed by GET /api/health.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc      Services
	checks   []HealthCheck
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

// NewHandler creates a handler over the given services.
func NewHandler(svc Services, log *zap.Logger, checks ...HealthCheck) *Handler {
	v := validator.New()
	// Report JSON field names in validation errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		svc:      svc,
		checks:   checks,
		validate: v,
		log:      log.Named("api"),
		now:      time.Now,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings every registered dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks)), Time: h.now().UTC()}
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[c.Name] = err.Error()
			h.log.Warn("health check failed", zap.String("check", c.Name), zap.Error(err))
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts pages through a shop's catalogue.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q := r.URL.Query()

	f := products.Filter{
		ShopID:   q.Get("shop_id"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Page:     queryInt(q.Get("page"), 1),
		Limit:    queryInt(q.Get("limit"), 50),
	}
	items, total, err := h.svc.Products.List(r.Context(), p, f)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []products.Product{}
	}
	writeJSON(w, http.StatusOK, ProductPageResponse{Items: items, Total: total, Page: f.Page, Limit: f.Limit})
}

// CreateProduct adds a product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	prod, err := h.svc.Products.Create(r.Context(), p, req.toInput(ledger.ScopeShop(p, req.ShopID)))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, prod)
}

// GetProduct returns one active product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	prod, err := h.svc.Products.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prod)
}

// FindProductsByBarcode returns every size variant carrying a barcode.
func (h *Handler) FindProductsByBarcode(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Products.FindByBarcode(r.Context(), principal(r),
		r.URL.Query().Get("shop_id"), chi.URLParam(r, "barcode"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// LowStockProducts lists products at or below ?threshold (default 10).
func (h *Handler) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threshold := int64(queryInt(q.Get("threshold"), int(products.DefaultLowStockThreshold)))

	found, err := h.svc.Products.LowStock(r.Context(), principal(r), q.Get("shop_id"), threshold)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if found == nil {
		found = []products.Product{}
	}
	writeJSON(w, http.StatusOK, found)
}

// ProductCategories lists the categories in use.
func (h *Handler) ProductCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Products.Categories(r.Context(), principal(r), r.URL.Query().Get("shop_id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// UpdateProduct changes product metadata.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	prod, err := h.svc.Products.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prod)
}

// DeleteProduct soft-deletes a product.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Products.Remove(r.Context(), principal(r), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, ID: id})
}

// =============================================================================
// HELPERS
// =============================================================================

// principal returns the authenticated caller. Routes are mounted behind
// Authenticator.Middleware, so a missing principal only happens in tests
// that bypass it and yields a zero principal that CanAccess denies.
func principal(r *http.Request) ledger.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// decode reads a JSON body into dst and validates it. On failure it writes
// a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidInput, Details: err.Error()})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Code: CodeInvalidInput, Details: fieldErrors(fields)})
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidInput})
		return false
	}
	return true
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		out[fe.Namespace()] = msg
	}
	return out
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty yields nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, ledger.Invalid("date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	t = t.UTC()
	return &t, nil
}

func queryInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
