package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/retail-ledger/inventory"
	"github.com/warp/retail-ledger/ledger"
)

// =============================================================================
// INVENTORY HANDLERS
//
//   GET   /api/inventory               List (shop_id)
//   POST  /api/inventory               Draft a stocktake
//   GET   /api/inventory/{id}          Get
//   GET   /api/inventory/{id}/report   Discrepancy report
//   PATCH /api/inventory/{id}/complete Apply counts to stock
// =============================================================================

// CreateInventory drafts a stocktake.
func (h *Handler) CreateInventory(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req CreateInventoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Inventory.Create(r.Context(), p, req.toInput(ledger.ScopeShop(p, req.ShopID)))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// CompleteInventory overwrites stock with the counted quantities.
func (h *Handler) CompleteInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Inventory.Complete(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// InventoryReport summarises discrepancies.
func (h *Handler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Inventory.Report(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetInventory returns one stocktake.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Inventory.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// ListInventories returns a shop's stocktakes.
func (h *Handler) ListInventories(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Inventory.List(r.Context(), principal(r), r.URL.Query().Get("shop_id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []inventory.Inventory{}
	}
	writeJSON(w, http.StatusOK, list)
}
