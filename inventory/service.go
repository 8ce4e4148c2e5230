/*
service.go - Inventory Reconciliation (stocktakes)

PURPOSE:
  Compares counted quantities against the books and, on completion,
  overwrites stock with what was counted.

LIFECYCLE:
  Create   -> Draft. Items carry expected, actual and difference.
  Complete -> Completed. Every item's actual quantity is written through
              stock.Ledger.Overwrite in the same transaction as the status
              change. Completed is terminal.

LAST WRITE WINS:
  Overwrite is unconditional. Sales recorded between drafting and
  completion are discarded by the count: completing {expected 10,
  actual 8} leaves quantity 8 whatever happened in between.

DOUBLE COMPLETION:
  The status change is conditional (WHERE status = 'draft'). Two
  concurrent completions cannot both apply overwrites; the loser gets
  AlreadyCompleted. A Redis lock around the whole operation is taken when
  a locker is configured. A lock held elsewhere rejects the call with
  ConcurrentModification; an unreachable lock backend is logged and the
  conditional status change alone guards the transition.

REMOVED PRODUCTS:
  Products tombstoned after drafting are skipped at completion (logged).

ACCESS:
  Create, Complete and Report are for shop owners and admins.
*/
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/stock"
)

var tracer = otel.Tracer("github.com/warp/retail-ledger/inventory")

// Service runs stocktakes.
type Service struct {
	store  Store
	tx     ledger.Transactor
	stock  *stock.Ledger
	locker Locker
	log    *zap.Logger
	now    func() time.Time
}

// NewService wires the reconciliation service. locker may be nil.
func NewService(store Store, tx ledger.Transactor, stockLedger *stock.Ledger, locker Locker, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		tx:     tx,
		stock:  stockLedger,
		locker: locker,
		log:    log.Named("inventory"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create drafts a stocktake.
func (s *Service) Create(ctx context.Context, p ledger.Principal, in CreateInput) (inv *Inventory, err error) {
	shopID := ledger.ScopeShop(p, in.ShopID)

	ctx, span := tracer.Start(ctx, "inventory.Create")
	span.SetAttributes(attribute.String("shop_id", shopID), attribute.Int("items", len(in.Items)))
	defer func() { ledger.EndSpan(span, err) }()

	if err := ledger.RequireRole(p, ledger.RoleShopOwner, ledger.RoleAdmin); err != nil {
		return nil, err
	}
	if err := ledger.RequireShop(shopID); err != nil {
		return nil, err
	}
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, ledger.Invalid("inventory must contain at least one item")
	}

	inv = &Inventory{
		ID:        uuid.NewString(),
		ShopID:    shopID,
		UserID:    p.UserID,
		Notes:     in.Notes,
		Status:    StatusDraft,
		CreatedAt: s.now(),
		Items:     make([]Item, 0, len(in.Items)),
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for i, it := range in.Items {
			if it.ExpectedQuantity < 0 || it.ActualQuantity < 0 {
				return ledger.Invalid("item %d: quantities cannot be negative", i)
			}
			prod, err := s.store.ActiveProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if prod.ShopID != shopID {
				return &ledger.CrossShopError{ProductID: prod.ID, ProductShopID: prod.ShopID, ShopID: shopID}
			}
			inv.Items = append(inv.Items, Item{
				ID:               uuid.NewString(),
				InventoryID:      inv.ID,
				ProductID:        it.ProductID,
				ExpectedQuantity: it.ExpectedQuantity,
				ActualQuantity:   it.ActualQuantity,
				Difference:       it.ActualQuantity - it.ExpectedQuantity,
				ProductName:      prod.Name,
				Barcode:          prod.Barcode,
			})
		}
		return s.store.InsertInventory(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("inventory drafted", zap.String("shop_id", shopID), zap.String("inventory_id", inv.ID), zap.Int("items", len(inv.Items)))
	return inv, nil
}

// Complete applies the counted quantities and closes the session.
func (s *Service) Complete(ctx context.Context, p ledger.Principal, inventoryID string) (inv *Inventory, err error) {
	ctx, span := tracer.Start(ctx, "inventory.Complete")
	span.SetAttributes(attribute.String("inventory_id", inventoryID))
	defer func() { ledger.EndSpan(span, err) }()

	if err := ledger.RequireRole(p, ledger.RoleShopOwner, ledger.RoleAdmin); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	defer release()

	var skipped int
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.store.GetInventory(ctx, inventoryID)
		if err != nil {
			return err
		}
		if err := ledger.Authorize(p, inv.ShopID); err != nil {
			return err
		}
		if inv.Status == StatusCompleted {
			return ledger.ErrAlreadyCompleted
		}

		at := s.now()
		ok, err := s.store.MarkInventoryCompleted(ctx, inventoryID, at)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrAlreadyCompleted
		}

		for _, it := range inv.Items {
			err := s.stock.Overwrite(ctx, it.ProductID, it.ActualQuantity)
			if errors.Is(err, ledger.ErrNotFound) {
				skipped++
				s.log.Warn("product removed since stocktake was drafted; skipping",
					zap.String("inventory_id", inventoryID), zap.String("product_id", it.ProductID))
				continue
			}
			if err != nil {
				return err
			}
		}

		inv.Status = StatusCompleted
		inv.CompletedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("inventory completed",
		zap.String("shop_id", inv.ShopID),
		zap.String("inventory_id", inventoryID),
		zap.Int("applied", len(inv.Items)-skipped),
		zap.Int("skipped", skipped),
	)
	return inv, nil
}

func (s *Service) lock(ctx context.Context, inventoryID string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	release, err := s.locker.Obtain(ctx, "lock:inventory:"+inventoryID)
	switch {
	case errors.Is(err, ledger.ErrConcurrentModification):
		s.log.Info("inventory completion already in progress", zap.String("inventory_id", inventoryID))
		return nil, err
	case err != nil:
		s.log.Warn("inventory lock unavailable; proceeding without it",
			zap.String("inventory_id", inventoryID), zap.Error(err))
		return noop, nil
	}
	return release, nil
}

// Report summarises differences for a session.
func (s *Service) Report(ctx context.Context, p ledger.Principal, inventoryID string) (*Report, error) {
	if err := ledger.RequireRole(p, ledger.RoleShopOwner, ledger.RoleAdmin); err != nil {
		return nil, err
	}
	inv, err := s.Get(ctx, p, inventoryID)
	if err != nil {
		return nil, err
	}
	return BuildReport(inv), nil
}

// BuildReport derives the discrepancy report of inv.
func BuildReport(inv *Inventory) *Report {
	r := &Report{
		Inventory:     inv,
		TotalItems:    len(inv.Items),
		Items:         inv.Items,
		Discrepancies: []Item{},
	}
	for _, it := range inv.Items {
		if it.Difference != 0 {
			r.ItemsWithDifference++
			r.TotalDifference += it.Difference
			r.Discrepancies = append(r.Discrepancies, it)
		}
	}
	return r
}

// Get returns a session with its items.
func (s *Service) Get(ctx context.Context, p ledger.Principal, inventoryID string) (*Inventory, error) {
	inv, err := s.store.GetInventory(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Authorize(p, inv.ShopID); err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns a shop's sessions, newest first.
func (s *Service) List(ctx context.Context, p ledger.Principal, shopID string) ([]Inventory, error) {
	shopID = ledger.ScopeShop(p, shopID)
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	return s.store.ListInventories(ctx, shopID)
}
