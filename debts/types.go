package debts

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind selects the customer or supplier ledger. Both share one shape.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
)

func (k Kind) Valid() bool { return k == KindCustomer || k == KindSupplier }

// Debt is an amount owed between a shop and a counterparty.
// Paid + Remaining == Total and 0 <= Paid <= Total after every commit.
type Debt struct {
	ID              string          `db:"id" json:"id"`
	Kind            Kind            `db:"-" json:"kind"`
	ShopID          string          `db:"shop_id" json:"shop_id"`
	UserID          string          `db:"user_id" json:"user_id"`
	Counterparty    string          `db:"counterparty" json:"counterparty"`
	CounterpartyKey string          `db:"counterparty_key" json:"-"`
	Phone           *string         `db:"phone" json:"phone,omitempty"`
	Description     *string         `db:"description" json:"description,omitempty"`
	DebtDate        *time.Time      `db:"debt_date" json:"debt_date,omitempty"`
	Total           decimal.Decimal `db:"total" json:"total"`
	Paid            decimal.Decimal `db:"paid" json:"paid"`
	Remaining       decimal.Decimal `db:"remaining" json:"remaining"`
	Version         int64           `db:"version" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Payment is an append-only record of one AddPayment.
type Payment struct {
	ID         string          `db:"id" json:"id"`
	DebtID     string          `db:"debt_id" json:"debt_id"`
	DebtKind   Kind            `db:"debt_kind" json:"debt_kind"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	PaidBefore decimal.Decimal `db:"paid_before" json:"paid_before"`
	PaidAfter  decimal.Decimal `db:"paid_after" json:"paid_after"`
	CreatedBy  string          `db:"created_by" json:"created_by"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// CreateInput opens a debt. InitialPaid is only accepted on supplier debts.
type CreateInput struct {
	ShopID       string
	Counterparty string
	Total        decimal.Decimal
	InitialPaid  decimal.Decimal
	Phone        *string
	Description  *string
	DebtDate     *time.Time
}

// UpdateInput corrects a debt. Paid is only accepted on supplier debts.
type UpdateInput struct {
	Counterparty *string
	Total        *decimal.Decimal
	Paid         *decimal.Decimal
	Phone        *string
	Description  *string
	DebtDate     *time.Time
}

// Summary totals a shop's active debts.
type Summary struct {
	ShopID         string          `json:"shop_id"`
	Count          int             `json:"count"`
	TotalDebt      decimal.Decimal `json:"total_debt"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
}

// Store is the persistence a Ledger needs. Every method is scoped by kind.
type Store interface {
	InsertDebt(ctx context.Context, d *Debt) error
	ActiveDebt(ctx context.Context, kind Kind, id string) (*Debt, error)
	ActiveDebts(ctx context.Context, kind Kind, shopID string) ([]Debt, error)
	CounterpartyTaken(ctx context.Context, kind Kind, shopID, key, exceptID string) (bool, error)
	// UpdateDebt writes d when the stored version still equals expectedVersion.
	UpdateDebt(ctx context.Context, d *Debt, expectedVersion int64) (bool, error)
	SoftDeleteDebt(ctx context.Context, kind Kind, id string, at time.Time) (bool, error)
	InsertPayment(ctx context.Context, p *Payment) error
	Payments(ctx context.Context, kind Kind, debtID string) ([]Payment, error)
}

// =============================================================================
// CACHE KEYS
// =============================================================================

func listKey(kind Kind, shopID string) string {
	return fmt.Sprintf("%s_debts_shop_%s", kind, shopID)
}

func totalKey(kind Kind, shopID string) string {
	return fmt.Sprintf("%s_debts_total_shop_%s", kind, shopID)
}

func summaryKey(kind Kind, shopID string) string {
	return fmt.Sprintf("%s_debts_summary_shop_%s", kind, shopID)
}

// CacheKeys lists every key a mutation in shopID invalidates.
func CacheKeys(kind Kind, shopID string) []string {
	return []string{listKey(kind, shopID), totalKey(kind, shopID), summaryKey(kind, shopID)}
}
