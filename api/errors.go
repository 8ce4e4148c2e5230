package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/retail-ledger/ledger"
)

// =============================================================================
// ERROR MAPPING
// =============================================================================

// Stable error codes returned in ErrorResponse.Code.
const (
	CodeInsufficientStock      = "InsufficientStock"
	CodeEmptySale              = "EmptySale"
	CodeCrossShopViolation     = "CrossShopViolation"
	CodeInvalidInput           = "InvalidInput"
	CodeProductNotFound        = "ProductNotFound"
	CodeNotFound               = "NotFound"
	CodeForbidden              = "Forbidden"
	CodeUnauthorized           = "Unauthorized"
	CodeDuplicateCounterparty  = "DuplicateCounterparty"
	CodeDuplicateBarcode       = "DuplicateBarcode"
	CodeConflict               = "Conflict"
	CodePaymentExceedsDebt     = "PaymentExceedsDebt"
	CodeAlreadyCompleted       = "AlreadyCompleted"
	CodeConcurrentModification = "ConcurrentModification"
	CodeInternal               = "Internal"
)

// classify maps a domain error to status, code and optional context fields.
// Order matters: specific conflicts before the generic class.
func classify(err error) (int, string, map[string]any) {
	var (
		stock    *ledger.InsufficientStockError
		payment  *ledger.PaymentExceedsDebtError
		cross    *ledger.CrossShopError
		notFound *ledger.NotFoundError
		dup      *ledger.DuplicateCounterpartyError
	)

	switch {
	case errors.As(err, &stock):
		return http.StatusBadRequest, CodeInsufficientStock, map[string]any{
			"product_id": stock.ProductID,
			"requested":  stock.Requested,
			"available":  stock.Available,
		}
	case errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusBadRequest, CodeInsufficientStock, nil
	case errors.As(err, &payment):
		return http.StatusBadRequest, CodePaymentExceedsDebt, map[string]any{
			"debt_id":   payment.DebtID,
			"attempted": payment.Attempted.StringFixed(2),
			"remaining": payment.Remaining.StringFixed(2),
			"total":     payment.Total.StringFixed(2),
			"paid":      payment.Paid.StringFixed(2),
		}
	case errors.Is(err, ledger.ErrPaymentExceedsDebt):
		return http.StatusBadRequest, CodePaymentExceedsDebt, nil
	case errors.Is(err, ledger.ErrEmptySale):
		return http.StatusBadRequest, CodeEmptySale, nil
	case errors.As(err, &cross):
		return http.StatusBadRequest, CodeCrossShopViolation, map[string]any{
			"product_id": cross.ProductID,
			"shop_id":    cross.ShopID,
		}
	case errors.Is(err, ledger.ErrCrossShopViolation):
		return http.StatusBadRequest, CodeCrossShopViolation, nil
	case errors.Is(err, ledger.ErrAlreadyCompleted):
		return http.StatusBadRequest, CodeAlreadyCompleted, nil
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput, nil
	case errors.As(err, &notFound):
		code := CodeNotFound
		if notFound.Kind == "product" {
			code = CodeProductNotFound
		}
		return http.StatusNotFound, code, map[string]any{"kind": notFound.Kind, "id": notFound.ID}
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, nil
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden, CodeForbidden, nil
	case errors.As(err, &dup):
		return http.StatusConflict, CodeDuplicateCounterparty, map[string]any{
			"shop_id":      dup.ShopID,
			"counterparty": dup.Counterparty,
		}
	case errors.Is(err, ledger.ErrDuplicateCounterparty):
		return http.StatusConflict, CodeDuplicateCounterparty, nil
	case errors.Is(err, ledger.ErrDuplicateBarcode):
		return http.StatusConflict, CodeDuplicateBarcode, nil
	case errors.Is(err, ledger.ErrConcurrentModification):
		return http.StatusConflict, CodeConcurrentModification, nil
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, CodeConflict, nil
	}
	return http.StatusInternalServerError, CodeInternal, nil
}

// writeDomainError renders err. Internal failures are logged and their
// message is not echoed to the client.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := classify(err)

	resp := ErrorResponse{Error: err.Error(), Code: code}
	if details != nil {
		resp.Details = details
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		resp.Error = "internal error"
	} else {
		h.log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err))
	}
	writeJSON(w, status, resp)
}
