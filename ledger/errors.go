/*
errors.go - Centralized error taxonomy for the retail core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or wrap them with context); the API layer
  maps them to HTTP status codes and stable error codes.

ERROR CATEGORIES:
  1. Rule violations   - InsufficientStock, PaymentExceedsDebt, EmptySale, ...
  2. Access violations - Forbidden, CrossShopViolation
  3. Lookup failures   - NotFound
  4. Storage failures  - StorageError (Is ErrInternal)

RETRIES:
  Nothing in the core retries automatically. ErrConcurrentModification is the
  only retryable class; callers decide.

USAGE:
    if errors.Is(err, ledger.ErrInsufficientStock) {
        var ise *ledger.InsufficientStockError
        errors.As(err, &ise) // ise.Available, ise.Requested
    }

SEE ALSO:
  - api/errors.go: HTTP mapping
  - store/sqlstore/sqlstore.go: driver error translation
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist or is tombstoned.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the principal may not act on the resource's shop.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a uniqueness rule would be violated.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateCounterparty is a Conflict on an active debt with the same counterparty name.
	ErrDuplicateCounterparty = fmt.Errorf("duplicate counterparty: %w", ErrConflict)

	// ErrDuplicateBarcode is a Conflict on an active product with the same barcode and size.
	ErrDuplicateBarcode = fmt.Errorf("duplicate barcode: %w", ErrConflict)

	// ErrInsufficientStock is returned when a decrement would drive quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPaymentExceedsDebt is returned when paid + amount would exceed total.
	ErrPaymentExceedsDebt = errors.New("payment exceeds debt")

	// ErrEmptySale is returned when a sale carries no items.
	ErrEmptySale = errors.New("sale has no items")

	// ErrAlreadyCompleted is returned when completing a completed stocktake.
	ErrAlreadyCompleted = errors.New("inventory already completed")

	// ErrCrossShopViolation is returned when a product outside the sale's shop is referenced.
	ErrCrossShopViolation = errors.New("product belongs to another shop")

	// ErrInvalidInput is returned for malformed quantities, amounts or fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentModification is returned when a guarded write lost a race.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInternal is the class of storage and infrastructure failures.
	ErrInternal = errors.New("internal error")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// PaymentExceedsDebtError provides details about an overpayment attempt.
type PaymentExceedsDebtError struct {
	DebtID    string
	Attempted decimal.Decimal
	Remaining decimal.Decimal
	Total     decimal.Decimal
	Paid      decimal.Decimal
}

func (e *PaymentExceedsDebtError) Error() string {
	return fmt.Sprintf("payment %s exceeds remaining debt %s (total %s, paid %s)",
		e.Attempted.StringFixed(2), e.Remaining.StringFixed(2), e.Total.StringFixed(2), e.Paid.StringFixed(2))
}

func (e *PaymentExceedsDebtError) Unwrap() error {
	return ErrPaymentExceedsDebt
}

// DuplicateCounterpartyError names the shop and counterparty that collided.
type DuplicateCounterpartyError struct {
	ShopID       string
	Counterparty string
}

func (e *DuplicateCounterpartyError) Error() string {
	return fmt.Sprintf("an active debt for %q already exists in shop %s", e.Counterparty, e.ShopID)
}

func (e *DuplicateCounterpartyError) Unwrap() error {
	return ErrDuplicateCounterparty
}

// CrossShopError names the product that does not belong to the requested shop.
type CrossShopError struct {
	ProductID     string
	ProductShopID string
	ShopID        string
}

func (e *CrossShopError) Error() string {
	return fmt.Sprintf("product %s belongs to shop %s, not %s", e.ProductID, e.ProductShopID, e.ShopID)
}

func (e *CrossShopError) Unwrap() error {
	return ErrCrossShopViolation
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // product, sale, debt, inventory
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StorageError wraps a driver failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrInternal.
func (e *StorageError) Is(target error) bool {
	return target == ErrInternal
}

// Invalid builds an ErrInvalidInput with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrPaymentExceedsDebt) ||
		errors.Is(err, ErrEmptySale) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrCrossShopViolation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
