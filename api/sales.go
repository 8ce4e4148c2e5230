package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/sales"
)

// =============================================================================
// SALE HANDLERS
//
//   POST   /api/sales                    Create (decrements stock)
//   GET    /api/sales                    List (shop_id, from, to)
//   GET    /api/sales/daily              Daily summary (shop_id, date)
//   GET    /api/sales/seller/{id}/daily  One seller's sales of a day (date)
//   GET    /api/sales/deleted/statistics Soft-deleted totals
//   GET    /api/sales/{id}               Get
//   DELETE /api/sales/{id}               Soft delete (restores stock)
// =============================================================================

// CreateSale records a sale.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req CreateSaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	sale, err := h.svc.Sales.Create(r.Context(), p, req.toInput(ledger.ScopeShop(p, req.ShopID)))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// DeleteSale soft-deletes a sale. Repeating it on a deleted sale is a 404.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Sales.Remove(r.Context(), principal(r), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, ID: id})
}

// GetSale returns one active sale.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.Sales.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// ListSales returns active sales in an optional [from, to] date range.
// Both bounds are whole UTC days; to is inclusive.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := sales.ListFilter{ShopID: q.Get("shop_id")}

	from, err := parseDate(q.Get("from"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if from != nil {
		f.From = *from
	}
	if to != nil {
		f.To = to.Add(24 * time.Hour)
	}

	list, err := h.svc.Sales.List(r.Context(), principal(r), f)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []sales.Sale{}
	}
	writeJSON(w, http.StatusOK, list)
}

// DailySales summarises ?date (default today, UTC).
func (h *Handler) DailySales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day := h.now().UTC()
	d, err := parseDate(q.Get("date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if d != nil {
		day = *d
	}

	summary, err := h.svc.Sales.DailySummary(r.Context(), principal(r), q.Get("shop_id"), day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SellerDailySales reports one seller's sales of ?date (default today, UTC).
func (h *Handler) SellerDailySales(w http.ResponseWriter, r *http.Request) {
	day := h.now().UTC()
	d, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if d != nil {
		day = *d
	}

	report, err := h.svc.Sales.SellerDailyReport(r.Context(), principal(r), chi.URLParam(r, "sellerID"), day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// DeletedSalesStatistics totals soft-deleted sales.
func (h *Handler) DeletedSalesStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Sales.DeletedStatistics(r.Context(), principal(r), r.URL.Query().Get("shop_id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
