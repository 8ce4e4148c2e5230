/*
processor.go - Sale Transaction Processor

PURPOSE:
  Records point-of-sale transactions. A sale and all of its stock
  decrements commit together or not at all; deleting a sale restocks
  every line exactly once.

CREATE FLOW:
  1. Authorize the caller against the target shop (ledger.CanAccess)
  2. Reject empty sales and malformed lines before touching storage
  3. In one transaction:
       a. load each product from the active view, reject other shops
       b. compute line totals under the configured LineTotalPolicy
       c. decrement stock, ordered by product id
       d. insert the sale and its items
  4. After commit, invalidate the shop's and the seller's cached summaries

  Decrements run in product-id order so concurrent multi-line sales lock
  rows in the same order. Items keep the order the caller sent.

REMOVE FLOW:
  The conditional soft-delete (WHERE deleted_at IS NULL) runs first. Only
  the caller whose UPDATE matched a row restocks; a repeated or concurrent
  delete sees zero rows and returns NotFound.

EXAMPLE:
  Product qty 5. Create sale {2 @ 10.00} -> total 20.00, qty 3.
  Remove the sale -> qty 5. Remove again -> NotFound, qty 5.

SEE ALSO:
  - stock/ledger.go: the conditional decrement
  - sales/queries.go: read side (get, list, summaries)
*/
package sales

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/stock"
)

var tracer = otel.Tracer("github.com/warp/retail-ledger/sales")

// Processor creates and removes sales.
type Processor struct {
	store  Store
	tx     ledger.Transactor
	stock  *stock.Ledger
	cache  ledger.Cache
	policy LineTotalPolicy
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// Option customises a Processor.
type Option func(*Processor)

// WithLineTotalPolicy selects how line totals are computed.
func WithLineTotalPolicy(p LineTotalPolicy) Option {
	return func(pr *Processor) { pr.policy = p }
}

// WithCache enables read-through caching of summaries.
func WithCache(c ledger.Cache, ttl time.Duration) Option {
	return func(pr *Processor) {
		pr.cache = c
		pr.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(pr *Processor) { pr.now = now }
}

// NewProcessor wires a sale processor.
func NewProcessor(store Store, tx ledger.Transactor, stockLedger *stock.Ledger, log *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:  store,
		tx:     tx,
		stock:  stockLedger,
		policy: LineTotalSupplied,
		ttl:    5 * time.Minute,
		log:    log.Named("sales"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// =============================================================================
// CREATE
// =============================================================================

// Create records a sale and decrements stock for every line atomically.
func (p *Processor) Create(ctx context.Context, principal ledger.Principal, in CreateInput) (sale *Sale, err error) {
	shopID := ledger.ScopeShop(principal, in.ShopID)

	ctx, span := tracer.Start(ctx, "sales.Create")
	span.SetAttributes(attribute.String("shop_id", shopID), attribute.Int("items", len(in.Items)))
	defer func() { ledger.EndSpan(span, err) }()

	if err := ledger.RequireShop(shopID); err != nil {
		return nil, err
	}
	if err := ledger.Authorize(principal, shopID); err != nil {
		return nil, err
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	sale = &Sale{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		SellerID:  principal.UserID,
		CreatedAt: p.now(),
		Items:     make([]Item, 0, len(in.Items)),
	}

	err = p.tx.WithTx(ctx, func(ctx context.Context) error {
		totals := make([]decimal.Decimal, 0, len(in.Items))
		for i, it := range in.Items {
			prod, err := p.store.ActiveProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if prod.ShopID != shopID {
				return &ledger.CrossShopError{ProductID: prod.ID, ProductShopID: prod.ShopID, ShopID: shopID}
			}

			line := ledger.Money(p.policy.lineTotal(it))
			totals = append(totals, line)
			sale.Items = append(sale.Items, Item{
				ID:         uuid.NewString(),
				SaleID:     sale.ID,
				ProductID:  it.ProductID,
				Quantity:   it.Quantity,
				UnitPrice:  ledger.Money(it.UnitPrice),
				TotalPrice: line,
				Position:   i,
			})
		}
		sale.TotalAmount = ledger.SumMoney(totals...)

		for _, it := range lockOrder(sale.Items) {
			if _, err := p.stock.Decrement(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		return p.store.InsertSale(ctx, sale)
	})
	if err != nil {
		p.log.Debug("sale rejected", zap.String("shop_id", shopID), zap.Error(err))
		return nil, err
	}

	ledger.Invalidate(ctx, p.cache, p.log,
		DailyKey(shopID, sale.CreatedAt),
		SellerDailyKey(shopID, sale.CreatedAt, sale.SellerID),
	)
	p.log.Info("sale created",
		zap.String("shop_id", shopID),
		zap.String("sale_id", sale.ID),
		zap.String("seller_id", sale.SellerID),
		zap.String("total", sale.TotalAmount.StringFixed(2)),
	)
	return sale, nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return ledger.ErrEmptySale
	}
	for i, it := range items {
		if it.ProductID == "" {
			return ledger.Invalid("item %d: product id is required", i)
		}
		if it.Quantity <= 0 {
			return ledger.Invalid("item %d: quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() {
			return ledger.Invalid("item %d: sale price cannot be negative", i)
		}
		if it.TotalPrice != nil && it.TotalPrice.IsNegative() {
			return ledger.Invalid("item %d: total price cannot be negative", i)
		}
	}
	return nil
}

// lockOrder returns items sorted by product id without reordering the sale.
func lockOrder(items []Item) []Item {
	ordered := make([]Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ProductID < ordered[j].ProductID
	})
	return ordered
}

// =============================================================================
// REMOVE
// =============================================================================

// Remove soft-deletes a sale and returns its quantities to stock.
func (p *Processor) Remove(ctx context.Context, principal ledger.Principal, saleID string) (err error) {
	ctx, span := tracer.Start(ctx, "sales.Remove")
	span.SetAttributes(attribute.String("sale_id", saleID))
	defer func() { ledger.EndSpan(span, err) }()

	var sale *Sale
	err = p.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sale, err = p.store.ActiveSale(ctx, saleID)
		if err != nil {
			return err
		}
		if err := ledger.Authorize(principal, sale.ShopID); err != nil {
			return err
		}

		ok, err := p.store.SoftDeleteSale(ctx, saleID, p.now())
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: "sale", ID: saleID}
		}

		for _, it := range lockOrder(sale.Items) {
			if _, err := p.stock.Increment(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ledger.Invalidate(ctx, p.cache, p.log,
		DailyKey(sale.ShopID, sale.CreatedAt),
		SellerDailyKey(sale.ShopID, sale.CreatedAt, sale.SellerID),
		DeletedKey(sale.ShopID),
	)
	p.log.Info("sale removed", zap.String("shop_id", sale.ShopID), zap.String("sale_id", saleID))
	return nil
}
