/*
ledger.go - Debt Payment Ledger (customer and supplier variants)

PURPOSE:
  Tracks what customers owe the shop and what the shop owes suppliers.
  One Ledger per Kind; both share this code and differ only in the rules
  listed below.

INVARIANT:
  paid + remaining == total, 0 <= paid <= total, after every commit.
  remaining is always recomputed from total and paid, never accepted.

PAYMENTS:
  AddPayment runs in one transaction:
    1. load the active debt
    2. reject if paid + amount > total (PaymentExceedsDebt)
    3. compare-and-swap on the row version
    4. append a Payment record
  A concurrent payment that bumped the version first makes step 3 match
  zero rows; the loser gets ErrConcurrentModification and nothing changes.

KIND DIFFERENCES:
  customer: name unique (case-insensitive, trimmed) among active debts of
            the shop; phone normalised to E.164; paid moves only through
            payments.
  supplier: may open with a nonzero paid amount; paid is correctable via
            Update.

CACHING:
  Lists, outstanding totals and summaries are cached per shop and dropped
  after every successful mutation, before the caller sees success.

SEE ALSO:
  - store/sqlstore/debts.go: Store implementation
  - ledger/errors.go: PaymentExceedsDebtError, DuplicateCounterpartyError
*/
package debts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/ledger"
)

var tracer = otel.Tracer("github.com/warp/retail-ledger/debts")

// Ledger manages debts of one Kind.
type Ledger struct {
	kind   Kind
	store  Store
	tx     ledger.Transactor
	cache  ledger.Cache
	ttl    time.Duration
	region string
	log    *zap.Logger
	now    func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithCache enables read-through caching of lists and totals.
func WithCache(c ledger.Cache, ttl time.Duration) Option {
	return func(l *Ledger) {
		l.cache = c
		l.ttl = ttl
	}
}

// WithPhoneRegion sets the default region for phones without a + prefix.
func WithPhoneRegion(region string) Option {
	return func(l *Ledger) { l.region = region }
}

// NewLedger wires a debt ledger for kind.
func NewLedger(kind Kind, store Store, tx ledger.Transactor, log *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		kind:   kind,
		store:  store,
		tx:     tx,
		ttl:    5 * time.Minute,
		region: "RU",
		log:    log.Named(string(kind) + "_debts"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Kind reports which ledger this is.
func (l *Ledger) Kind() Kind { return l.kind }

// =============================================================================
// CREATE
// =============================================================================

// Create opens a debt.
func (l *Ledger) Create(ctx context.Context, p ledger.Principal, in CreateInput) (d *Debt, err error) {
	shopID := ledger.ScopeShop(p, in.ShopID)

	ctx, span := tracer.Start(ctx, "debts.Create")
	span.SetAttributes(attribute.String("kind", string(l.kind)), attribute.String("shop_id", shopID))
	defer func() { ledger.EndSpan(span, err) }()

	if err := ledger.RequireShop(shopID); err != nil {
		return nil, err
	}
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Counterparty)
	if name == "" {
		return nil, ledger.Invalid("%s name is required", l.kind)
	}
	total := ledger.Money(in.Total)
	paid := ledger.Money(in.InitialPaid)
	if total.IsNegative() {
		return nil, ledger.Invalid("debt amount cannot be negative")
	}
	if l.kind == KindCustomer && !paid.IsZero() {
		return nil, ledger.Invalid("customer debts open unpaid; record payments instead")
	}
	if paid.IsNegative() || paid.GreaterThan(total) {
		return nil, ledger.Invalid("paid amount must be between 0 and the debt amount")
	}

	phone, err := l.phone(in.Phone)
	if err != nil {
		return nil, err
	}

	now := l.now()
	d = &Debt{
		ID:              uuid.NewString(),
		Kind:            l.kind,
		ShopID:          shopID,
		UserID:          p.UserID,
		Counterparty:    name,
		CounterpartyKey: counterpartyKey(name),
		Phone:           phone,
		Description:     in.Description,
		DebtDate:        in.DebtDate,
		Total:           total,
		Paid:            paid,
		Remaining:       total.Sub(paid),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if d.DebtDate == nil {
		d.DebtDate = &now
	}

	err = l.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := l.checkDuplicate(ctx, d, ""); err != nil {
			return err
		}
		return l.conflictAsDuplicate(l.store.InsertDebt(ctx, d), d)
	})
	if err != nil {
		return nil, err
	}

	ledger.Invalidate(ctx, l.cache, l.log, CacheKeys(l.kind, shopID)...)
	l.log.Info("debt created",
		zap.String("shop_id", shopID),
		zap.String("debt_id", d.ID),
		zap.String("total", d.Total.StringFixed(2)),
	)
	return d, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// AddPayment applies amount to the debt. Never lets paid exceed total.
func (l *Ledger) AddPayment(ctx context.Context, p ledger.Principal, debtID string, amount decimal.Decimal) (d *Debt, err error) {
	ctx, span := tracer.Start(ctx, "debts.AddPayment")
	span.SetAttributes(attribute.String("kind", string(l.kind)), attribute.String("debt_id", debtID))
	defer func() { ledger.EndSpan(span, err) }()

	amount, err = ledger.ExactMoney(amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ledger.Invalid("payment amount must be positive")
	}

	err = l.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = l.store.ActiveDebt(ctx, l.kind, debtID)
		if err != nil {
			return err
		}
		if err := ledger.Authorize(p, d.ShopID); err != nil {
			return err
		}

		before := d.Paid
		after := before.Add(amount)
		if after.GreaterThan(d.Total) {
			return &ledger.PaymentExceedsDebtError{
				DebtID:    d.ID,
				Attempted: amount,
				Remaining: d.Remaining,
				Total:     d.Total,
				Paid:      d.Paid,
			}
		}

		expected := d.Version
		d.Paid = after
		d.Remaining = d.Total.Sub(after)
		d.Version++
		d.UpdatedAt = l.now()

		ok, err := l.store.UpdateDebt(ctx, d, expected)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrConcurrentModification
		}

		return l.store.InsertPayment(ctx, &Payment{
			ID:         uuid.NewString(),
			DebtID:     d.ID,
			DebtKind:   l.kind,
			Amount:     amount,
			PaidBefore: before,
			PaidAfter:  after,
			CreatedBy:  p.UserID,
			CreatedAt:  d.UpdatedAt,
		})
	})
	if err != nil {
		l.log.Debug("payment rejected", zap.String("debt_id", debtID), zap.Error(err))
		return nil, err
	}

	ledger.Invalidate(ctx, l.cache, l.log, CacheKeys(l.kind, d.ShopID)...)
	l.log.Info("payment recorded",
		zap.String("shop_id", d.ShopID),
		zap.String("debt_id", d.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("remaining", d.Remaining.StringFixed(2)),
	)
	return d, nil
}

// Payments returns the payment history of a debt, oldest first.
func (l *Ledger) Payments(ctx context.Context, p ledger.Principal, debtID string) ([]Payment, error) {
	if _, err := l.Get(ctx, p, debtID); err != nil {
		return nil, err
	}
	return l.store.Payments(ctx, l.kind, debtID)
}

// =============================================================================
// UPDATE / REMOVE
// =============================================================================

// Update corrects a debt and recomputes remaining.
func (l *Ledger) Update(ctx context.Context, p ledger.Principal, debtID string, in UpdateInput) (d *Debt, err error) {
	ctx, span := tracer.Start(ctx, "debts.Update")
	span.SetAttributes(attribute.String("kind", string(l.kind)), attribute.String("debt_id", debtID))
	defer func() { ledger.EndSpan(span, err) }()

	if in.Paid != nil && l.kind == KindCustomer {
		return nil, ledger.Invalid("customer paid amounts change only through payments")
	}

	err = l.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = l.store.ActiveDebt(ctx, l.kind, debtID)
		if err != nil {
			return err
		}
		if err := ledger.Authorize(p, d.ShopID); err != nil {
			return err
		}

		renamed := false
		if in.Counterparty != nil {
			name := strings.TrimSpace(*in.Counterparty)
			if name == "" {
				return ledger.Invalid("%s name is required", l.kind)
			}
			renamed = counterpartyKey(name) != d.CounterpartyKey
			d.Counterparty, d.CounterpartyKey = name, counterpartyKey(name)
		}
		if in.Total != nil {
			d.Total = ledger.Money(*in.Total)
		}
		if in.Paid != nil {
			d.Paid = ledger.Money(*in.Paid)
		}
		if d.Total.IsNegative() || d.Paid.IsNegative() || d.Paid.GreaterThan(d.Total) {
			return ledger.Invalid("paid amount must be between 0 and the debt amount")
		}
		d.Remaining = d.Total.Sub(d.Paid)

		if in.Phone != nil {
			if d.Phone, err = l.phone(in.Phone); err != nil {
				return err
			}
		}
		if in.Description != nil {
			d.Description = in.Description
		}
		if in.DebtDate != nil {
			d.DebtDate = in.DebtDate
		}

		if renamed {
			if err := l.checkDuplicate(ctx, d, d.ID); err != nil {
				return err
			}
		}

		expected := d.Version
		d.Version++
		d.UpdatedAt = l.now()
		ok, err := l.store.UpdateDebt(ctx, d, expected)
		if err != nil {
			return l.conflictAsDuplicate(err, d)
		}
		if !ok {
			return ledger.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ledger.Invalidate(ctx, l.cache, l.log, CacheKeys(l.kind, d.ShopID)...)
	l.log.Info("debt updated", zap.String("shop_id", d.ShopID), zap.String("debt_id", d.ID))
	return d, nil
}

// Remove soft-deletes a debt. A second call returns NotFound.
func (l *Ledger) Remove(ctx context.Context, p ledger.Principal, debtID string) (err error) {
	ctx, span := tracer.Start(ctx, "debts.Remove")
	span.SetAttributes(attribute.String("kind", string(l.kind)), attribute.String("debt_id", debtID))
	defer func() { ledger.EndSpan(span, err) }()

	var shopID string
	err = l.tx.WithTx(ctx, func(ctx context.Context) error {
		d, err := l.store.ActiveDebt(ctx, l.kind, debtID)
		if err != nil {
			return err
		}
		if err := ledger.Authorize(p, d.ShopID); err != nil {
			return err
		}
		shopID = d.ShopID

		ok, err := l.store.SoftDeleteDebt(ctx, l.kind, debtID, l.now())
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: "debt", ID: debtID}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ledger.Invalidate(ctx, l.cache, l.log, CacheKeys(l.kind, shopID)...)
	l.log.Info("debt removed", zap.String("shop_id", shopID), zap.String("debt_id", debtID))
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns an active debt.
func (l *Ledger) Get(ctx context.Context, p ledger.Principal, debtID string) (*Debt, error) {
	d, err := l.store.ActiveDebt(ctx, l.kind, debtID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Authorize(p, d.ShopID); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns a shop's active debts, newest first.
func (l *Ledger) List(ctx context.Context, p ledger.Principal, shopID string) ([]Debt, error) {
	shopID = ledger.ScopeShop(p, shopID)
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	return ledger.Cached(ctx, l.cache, l.log, listKey(l.kind, shopID), l.ttl,
		func(ctx context.Context) ([]Debt, error) {
			return l.store.ActiveDebts(ctx, l.kind, shopID)
		})
}

// OutstandingTotal sums remaining over active debts that still have a balance.
func (l *Ledger) OutstandingTotal(ctx context.Context, p ledger.Principal, shopID string) (decimal.Decimal, error) {
	shopID = ledger.ScopeShop(p, shopID)
	if err := ledger.Authorize(p, shopID); err != nil {
		return decimal.Zero, err
	}
	return ledger.Cached(ctx, l.cache, l.log, totalKey(l.kind, shopID), l.ttl,
		func(ctx context.Context) (decimal.Decimal, error) {
			debts, err := l.store.ActiveDebts(ctx, l.kind, shopID)
			if err != nil {
				return decimal.Zero, err
			}
			var outstanding []decimal.Decimal
			for _, d := range debts {
				if d.Remaining.IsPositive() {
					outstanding = append(outstanding, d.Remaining)
				}
			}
			return ledger.SumMoney(outstanding...), nil
		})
}

// Summary totals amount, paid and remaining over a shop's active debts.
func (l *Ledger) Summary(ctx context.Context, p ledger.Principal, shopID string) (*Summary, error) {
	shopID = ledger.ScopeShop(p, shopID)
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	s, err := ledger.Cached(ctx, l.cache, l.log, summaryKey(l.kind, shopID), l.ttl,
		func(ctx context.Context) (Summary, error) {
			debts, err := l.store.ActiveDebts(ctx, l.kind, shopID)
			if err != nil {
				return Summary{}, err
			}
			s := Summary{ShopID: shopID, Count: len(debts), TotalDebt: decimal.Zero, TotalPaid: decimal.Zero, TotalRemaining: decimal.Zero}
			for _, d := range debts {
				s.TotalDebt = s.TotalDebt.Add(d.Total)
				s.TotalPaid = s.TotalPaid.Add(d.Paid)
				s.TotalRemaining = s.TotalRemaining.Add(d.Remaining)
			}
			return s, nil
		})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Ledger) checkDuplicate(ctx context.Context, d *Debt, exceptID string) error {
	if l.kind != KindCustomer {
		return nil
	}
	taken, err := l.store.CounterpartyTaken(ctx, l.kind, d.ShopID, d.CounterpartyKey, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return &ledger.DuplicateCounterpartyError{ShopID: d.ShopID, Counterparty: d.Counterparty}
	}
	return nil
}

// conflictAsDuplicate maps a unique-index violation to the domain error.
func (l *Ledger) conflictAsDuplicate(err error, d *Debt) error {
	if err != nil && errors.Is(err, ledger.ErrConflict) && !errors.Is(err, ledger.ErrDuplicateCounterparty) {
		return &ledger.DuplicateCounterpartyError{ShopID: d.ShopID, Counterparty: d.Counterparty}
	}
	return err
}

func (l *Ledger) phone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	if l.kind != KindCustomer {
		v := strings.TrimSpace(*raw)
		if v == "" {
			return nil, nil
		}
		return &v, nil
	}
	normalized, err := NormalizePhone(*raw, l.region)
	if err != nil || normalized == "" {
		return nil, err
	}
	return &normalized, nil
}

func counterpartyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
