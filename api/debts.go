package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/retail-ledger/debts"
	"github.com/warp/retail-ledger/ledger"
)

// =============================================================================
// DEBT HANDLERS
//
// Customer and supplier debts share one route table, mounted twice:
//
//   GET    /api/{customer,supplier}-debts               List (shop_id)
//   POST   /api/{customer,supplier}-debts               Create
//   GET    /api/{customer,supplier}-debts/total         Outstanding total
//   GET    /api/{customer,supplier}-debts/summary       Totals
//   GET    /api/{customer,supplier}-debts/{id}          Get
//   PATCH  /api/{customer,supplier}-debts/{id}          Update
//   DELETE /api/{customer,supplier}-debts/{id}          Soft delete
//   POST   /api/{customer,supplier}-debts/{id}/payment  Add payment
//   GET    /api/{customer,supplier}-debts/{id}/payments Payment history
// =============================================================================

type debtHandlers struct {
	h *Handler
	l *debts.Ledger
}

func (h *Handler) debtRoutes(l *debts.Ledger) func(chi.Router) {
	d := debtHandlers{h: h, l: l}
	return func(r chi.Router) {
		r.Get("/", d.list)
		r.Post("/", d.create)
		r.Get("/total", d.total)
		r.Get("/summary", d.summary)
		r.Get("/{id}", d.get)
		r.Patch("/{id}", d.update)
		r.Delete("/{id}", d.remove)
		r.Post("/{id}/payment", d.addPayment)
		r.Get("/{id}/payments", d.payments)
	}
}

func (d debtHandlers) create(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var in debts.CreateInput
	switch d.l.Kind() {
	case debts.KindCustomer:
		var req CreateCustomerDebtRequest
		if !d.h.decode(w, r, &req) {
			return
		}
		date, err := parseDate(req.DebtDate)
		if err != nil {
			d.h.writeDomainError(w, r, err)
			return
		}
		in = debts.CreateInput{
			ShopID:       ledger.ScopeShop(p, req.ShopID),
			Counterparty: req.CustomerName,
			Total:        *req.Amount,
			InitialPaid:  decimal.Zero,
			Phone:        req.Phone,
			Description:  req.Description,
			DebtDate:     date,
		}
	default:
		var req CreateSupplierDebtRequest
		if !d.h.decode(w, r, &req) {
			return
		}
		date, err := parseDate(req.DebtDate)
		if err != nil {
			d.h.writeDomainError(w, r, err)
			return
		}
		paid := decimal.Zero
		if req.PaidAmount != nil {
			paid = *req.PaidAmount
		}
		in = debts.CreateInput{
			ShopID:       ledger.ScopeShop(p, req.ShopID),
			Counterparty: req.SupplierName,
			Total:        *req.TotalDebt,
			InitialPaid:  paid,
			Description:  req.Description,
			DebtDate:     date,
		}
	}

	debt, err := d.l.Create(r.Context(), p, in)
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, debt)
}

func (d debtHandlers) addPayment(w http.ResponseWriter, r *http.Request) {
	var req AddPaymentRequest
	if !d.h.decode(w, r, &req) {
		return
	}
	debt, err := d.l.AddPayment(r.Context(), principal(r), chi.URLParam(r, "id"), *req.Amount)
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (d debtHandlers) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateDebtRequest
	if !d.h.decode(w, r, &req) {
		return
	}

	in := debts.UpdateInput{
		Counterparty: firstNonNil(req.CustomerName, req.SupplierName),
		Total:        firstNonNil(req.Amount, req.TotalDebt),
		Paid:         req.PaidAmount,
		Phone:        req.Phone,
		Description:  req.Description,
	}
	if req.DebtDate != nil {
		date, err := parseDate(*req.DebtDate)
		if err != nil {
			d.h.writeDomainError(w, r, err)
			return
		}
		in.DebtDate = date
	}

	debt, err := d.l.Update(r.Context(), principal(r), chi.URLParam(r, "id"), in)
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (d debtHandlers) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := d.l.Remove(r.Context(), principal(r), id); err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, ID: id})
}

func (d debtHandlers) get(w http.ResponseWriter, r *http.Request) {
	debt, err := d.l.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (d debtHandlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := d.l.List(r.Context(), principal(r), r.URL.Query().Get("shop_id"))
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []debts.Debt{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (d debtHandlers) total(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	shopID := ledger.ScopeShop(p, r.URL.Query().Get("shop_id"))

	total, err := d.l.OutstandingTotal(r.Context(), p, shopID)
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OutstandingResponse{ShopID: shopID, Kind: d.l.Kind(), Total: total})
}

func (d debtHandlers) summary(w http.ResponseWriter, r *http.Request) {
	s, err := d.l.Summary(r.Context(), principal(r), r.URL.Query().Get("shop_id"))
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (d debtHandlers) payments(w http.ResponseWriter, r *http.Request) {
	list, err := d.l.Payments(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		d.h.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []debts.Payment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
