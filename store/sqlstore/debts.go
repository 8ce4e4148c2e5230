package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/warp/retail-ledger/debts"
)

// =============================================================================
// DEBTS (debts.Store)
// =============================================================================

const debtColumns = `id, shop_id, user_id, counterparty, counterparty_key, phone, description,
	debt_date, total, paid, remaining, version, created_at, updated_at, deleted_at`

// debtTable returns the base table and active view for kind.
func debtTable(kind debts.Kind) (table, view string) {
	switch kind {
	case debts.KindCustomer:
		return "customer_debts", "active_customer_debts"
	case debts.KindSupplier:
		return "supplier_debts", "active_supplier_debts"
	}
	panic(fmt.Sprintf("sqlstore: unknown debt kind %q", kind))
}

// InsertDebt persists a new debt in the table of d.Kind.
func (s *Store) InsertDebt(ctx context.Context, d *debts.Debt) error {
	table, _ := debtTable(d.Kind)
	_, err := s.namedExec(ctx, "insert debt", `
		INSERT INTO `+table+` (id, shop_id, user_id, counterparty, counterparty_key, phone,
			description, debt_date, total, paid, remaining, version, created_at, updated_at)
		VALUES (:id, :shop_id, :user_id, :counterparty, :counterparty_key, :phone,
			:description, :debt_date, :total, :paid, :remaining, :version, :created_at, :updated_at)
	`, d)
	return err
}

// ActiveDebt loads a non-deleted debt.
func (s *Store) ActiveDebt(ctx context.Context, kind debts.Kind, id string) (*debts.Debt, error) {
	_, view := debtTable(kind)
	var d debts.Debt
	if err := s.get(ctx, "debt", id, &d, `SELECT `+debtColumns+` FROM `+view+` WHERE id = ?`, id); err != nil {
		return nil, err
	}
	d.Kind = kind
	return &d, nil
}

// ActiveDebts lists a shop's non-deleted debts, newest first.
func (s *Store) ActiveDebts(ctx context.Context, kind debts.Kind, shopID string) ([]debts.Debt, error) {
	_, view := debtTable(kind)
	list := []debts.Debt{}
	if err := s.selectInto(ctx, "list debts", &list,
		`SELECT `+debtColumns+` FROM `+view+` WHERE shop_id = ? ORDER BY created_at DESC, id`, shopID); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Kind = kind
	}
	return list, nil
}

// CounterpartyTaken reports whether another active debt of the shop has key.
func (s *Store) CounterpartyTaken(ctx context.Context, kind debts.Kind, shopID, key, exceptID string) (bool, error) {
	_, view := debtTable(kind)
	n, err := s.count(ctx, "check counterparty",
		`SELECT COUNT(*) FROM `+view+` WHERE shop_id = ? AND counterparty_key = ? AND id <> ?`,
		shopID, key, exceptID)
	return n > 0, err
}

// UpdateDebt writes d if the stored version still equals expectedVersion.
func (s *Store) UpdateDebt(ctx context.Context, d *debts.Debt, expectedVersion int64) (bool, error) {
	table, _ := debtTable(d.Kind)
	n, err := s.exec(ctx, "update debt", `
		UPDATE `+table+` SET
			counterparty = ?, counterparty_key = ?, phone = ?, description = ?, debt_date = ?,
			total = ?, paid = ?, remaining = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`,
		d.Counterparty, d.CounterpartyKey, d.Phone, d.Description, d.DebtDate,
		d.Total, d.Paid, d.Remaining, d.Version, d.UpdatedAt,
		d.ID, expectedVersion,
	)
	return n > 0, err
}

// SoftDeleteDebt tombstones an active debt.
func (s *Store) SoftDeleteDebt(ctx context.Context, kind debts.Kind, id string, at time.Time) (bool, error) {
	table, _ := debtTable(kind)
	n, err := s.exec(ctx, "delete debt",
		`UPDATE `+table+` SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, at, at, id)
	return n > 0, err
}

// InsertPayment appends a payment record.
func (s *Store) InsertPayment(ctx context.Context, p *debts.Payment) error {
	_, err := s.namedExec(ctx, "insert payment", `
		INSERT INTO debt_payments (id, debt_id, debt_kind, amount, paid_before, paid_after, created_by, created_at)
		VALUES (:id, :debt_id, :debt_kind, :amount, :paid_before, :paid_after, :created_by, :created_at)
	`, p)
	return err
}

// Payments lists a debt's payments, oldest first.
func (s *Store) Payments(ctx context.Context, kind debts.Kind, debtID string) ([]debts.Payment, error) {
	list := []debts.Payment{}
	if err := s.selectInto(ctx, "list payments", &list, `
		SELECT id, debt_id, debt_kind, amount, paid_before, paid_after, created_by, created_at
		FROM debt_payments WHERE debt_kind = ? AND debt_id = ?
	`, kind, debtID); err != nil {
		return nil, err
	}
	// Money is TEXT on SQLite, so order in Go rather than by a lexical ORDER BY.
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].PaidAfter.LessThan(list[j].PaidAfter)
	})
	return list, nil
}
