package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/retail-ledger/ledger"
)

// Get returns an active sale. Sellers only see their own sales.
func (p *Processor) Get(ctx context.Context, principal ledger.Principal, saleID string) (*Sale, error) {
	sale, err := p.store.ActiveSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Authorize(principal, sale.ShopID); err != nil {
		return nil, err
	}
	if principal.Role == ledger.RoleSeller && sale.SellerID != principal.UserID {
		return nil, &ledger.NotFoundError{Kind: "sale", ID: saleID}
	}
	return sale, nil
}

// List returns active sales, newest first. Sellers are narrowed to their own.
func (p *Processor) List(ctx context.Context, principal ledger.Principal, f ListFilter) ([]Sale, error) {
	f.ShopID = ledger.ScopeShop(principal, f.ShopID)
	if principal.Role != ledger.RoleAdmin || f.ShopID != "" {
		if err := ledger.Authorize(principal, f.ShopID); err != nil {
			return nil, err
		}
	}
	if principal.Role == ledger.RoleSeller {
		f.SellerID = principal.UserID
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, ledger.Invalid("date range end before start")
	}
	return p.store.ListSales(ctx, f)
}

// DailySummary totals a shop's active sales for the UTC day containing day.
// A seller's summary covers only the sales they recorded.
func (p *Processor) DailySummary(ctx context.Context, principal ledger.Principal, shopID string, day time.Time) (*DailySummary, error) {
	shopID = ledger.ScopeShop(principal, shopID)
	if err := ledger.RequireShop(shopID); err != nil {
		return nil, err
	}
	if err := ledger.Authorize(principal, shopID); err != nil {
		return nil, err
	}

	start := startOfDay(day)
	f := ListFilter{ShopID: shopID, From: start, To: start.Add(24 * time.Hour)}
	key := DailyKey(shopID, start)
	if principal.Role == ledger.RoleSeller {
		f.SellerID = principal.UserID
		key = SellerDailyKey(shopID, start, principal.UserID)
	}

	summary, err := ledger.Cached(ctx, p.cache, p.log, key, p.ttl,
		func(ctx context.Context) (DailySummary, error) {
			sales, err := p.store.ListSales(ctx, f)
			if err != nil {
				return DailySummary{}, err
			}
			return DailySummary{
				ShopID:      shopID,
				Date:        start.Format(time.DateOnly),
				TotalSales:  len(sales),
				TotalAmount: sumTotals(sales),
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// SellerDailyReport lists one seller's active sales of a UTC day with their
// items. Sellers may only ask for themselves; owners are held to their shop.
func (p *Processor) SellerDailyReport(ctx context.Context, principal ledger.Principal, sellerID string, day time.Time) (*SellerDailyReport, error) {
	if sellerID == "" {
		return nil, ledger.Invalid("seller id is required")
	}
	if principal.Role == ledger.RoleSeller && sellerID != principal.UserID {
		return nil, fmt.Errorf("%w: report of another seller", ledger.ErrForbidden)
	}

	start := startOfDay(day)
	f := ListFilter{SellerID: sellerID, From: start, To: start.Add(24 * time.Hour)}
	if principal.Role != ledger.RoleAdmin {
		if err := ledger.Authorize(principal, principal.ShopID); err != nil {
			return nil, err
		}
		f.ShopID = principal.ShopID
	}

	list, err := p.store.ListSales(ctx, f)
	if err != nil {
		return nil, err
	}
	return &SellerDailyReport{
		SellerID:    sellerID,
		Date:        start.Format(time.DateOnly),
		TotalSales:  len(list),
		TotalAmount: sumTotals(list),
		Sales:       list,
	}, nil
}

// DeletedStatistics counts and totals soft-deleted sales. Owners and admins only.
func (p *Processor) DeletedStatistics(ctx context.Context, principal ledger.Principal, shopID string) (*DeletedStatistics, error) {
	shopID = ledger.ScopeShop(principal, shopID)
	if err := ledger.RequireRole(principal, ledger.RoleShopOwner, ledger.RoleAdmin); err != nil {
		return nil, err
	}
	if err := ledger.Authorize(principal, shopID); err != nil {
		return nil, err
	}

	stats, err := ledger.Cached(ctx, p.cache, p.log, DeletedKey(shopID), p.ttl,
		func(ctx context.Context) (DeletedStatistics, error) {
			sales, err := p.store.DeletedSales(ctx, shopID)
			if err != nil {
				return DeletedStatistics{}, err
			}
			return DeletedStatistics{ShopID: shopID, Count: len(sales), TotalAmount: sumTotals(sales)}, nil
		})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sumTotals(sales []Sale) decimal.Decimal {
	totals := make([]decimal.Decimal, len(sales))
	for i, s := range sales {
		totals[i] = s.TotalAmount
	}
	return ledger.SumMoney(totals...)
}
