package sales_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/cache"
	"github.com/warp/retail-ledger/ledger"
	"github.com/warp/retail-ledger/products"
	"github.com/warp/retail-ledger/sales"
	"github.com/warp/retail-ledger/stock"
	"github.com/warp/retail-ledger/store/sqlstore"
)

var (
	owner   = ledger.Principal{UserID: "owner-1", Role: ledger.RoleShopOwner, ShopID: "shop-1"}
	seller  = ledger.Principal{UserID: "seller-1", Role: ledger.RoleSeller, ShopID: "shop-1"}
	seller2 = ledger.Principal{UserID: "seller-2", Role: ledger.RoleSeller, ShopID: "shop-1"}
	admin   = ledger.Principal{UserID: "admin", Role: ledger.RoleAdmin}
	outside = ledger.Principal{UserID: "seller-9", Role: ledger.RoleSeller, ShopID: "shop-2"}
)

type fixture struct {
	store     *sqlstore.Store
	catalogue *products.Service
	stock     *stock.Ledger
	cache     *cache.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &fixture{
		store:     store,
		catalogue: products.NewService(store, store, zap.NewNop()),
		stock:     stock.NewLedger(store),
		cache:     cache.NewMemory(),
	}
}

func (f *fixture) processor(opts ...sales.Option) *sales.Processor {
	opts = append([]sales.Option{sales.WithCache(f.cache, time.Minute)}, opts...)
	return sales.NewProcessor(f.store, f.store, f.stock, zap.NewNop(), opts...)
}

func (f *fixture) product(t *testing.T, shopID string, qty int64) string {
	t.Helper()
	p := owner
	if shopID != owner.ShopID {
		p = admin
	}
	prod, err := f.catalogue.Create(context.Background(), p, products.CreateInput{
		ShopID:        shopID,
		Name:          "Item",
		PurchasePrice: decimal.RequireFromString("4.00"),
		Quantity:      qty,
	})
	require.NoError(t, err)
	return prod.ID
}

func (f *fixture) quantity(t *testing.T, id string) int64 {
	t.Helper()
	q, err := f.stock.Quantity(context.Background(), id)
	require.NoError(t, err)
	return q
}

func (f *fixture) cached(t *testing.T, key string) bool {
	t.Helper()
	var v sales.DailySummary
	ok, err := f.cache.GetJSON(context.Background(), key, &v)
	require.NoError(t, err)
	return ok
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(productID string, qty int64, price string) sales.ItemInput {
	return sales.ItemInput{ProductID: productID, Quantity: qty, UnitPrice: money(price)}
}

func TestCreateAndRemove_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()

	// GIVEN: A product with 5 units
	id := f.product(t, "shop-1", 5)

	// WHEN: Selling 2 at 10
	sale, err := proc.Create(ctx, seller, sales.CreateInput{ShopID: "shop-1", Items: []sales.ItemInput{line(id, 2, "10")}})

	// THEN: Total is 20 and 3 remain
	require.NoError(t, err)
	assert.Equal(t, "20.00", sale.TotalAmount.StringFixed(2))
	assert.Equal(t, "seller-1", sale.SellerID)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "20.00", sale.Items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, int64(3), f.quantity(t, id))

	// WHEN: Deleting the sale
	require.NoError(t, proc.Remove(ctx, owner, sale.ID))

	// THEN: Stock is back to 5 and the sale is gone
	assert.Equal(t, int64(5), f.quantity(t, id))
	_, err = proc.Get(ctx, owner, sale.ID)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestRemove_IsNotRepeatable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()
	id := f.product(t, "shop-1", 5)

	sale, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 2, "1")}})
	require.NoError(t, err)
	require.NoError(t, proc.Remove(ctx, seller, sale.ID))

	// WHEN: Deleting again
	err = proc.Remove(ctx, seller, sale.ID)

	// THEN: NotFound, and stock was restored only once
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
	assert.Equal(t, int64(5), f.quantity(t, id))
}

func TestRemove_RestocksRemovedProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()
	id := f.product(t, "shop-1", 5)

	sale, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 2, "1")}})
	require.NoError(t, err)

	// GIVEN: The product was removed after the sale
	require.NoError(t, f.catalogue.Remove(ctx, owner, id))

	// WHEN/THEN: Deleting the sale still succeeds
	require.NoError(t, proc.Remove(ctx, owner, sale.ID))
}

func TestCreate_EmptySale(t *testing.T) {
	_, err := newFixture(t).processor().Create(context.Background(), seller, sales.CreateInput{ShopID: "shop-1"})
	assert.True(t, errors.Is(err, ledger.ErrEmptySale))
}

func TestCreate_InvalidItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()
	id := f.product(t, "shop-1", 5)

	_, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 0, "1")}})
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))

	_, err = proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "-1")}})
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))

	assert.Equal(t, int64(5), f.quantity(t, id))
}

func TestCreate_InsufficientStockRollsBackEveryLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()

	// GIVEN: Two products, the second short of stock
	a := f.product(t, "shop-1", 5)
	b := f.product(t, "shop-1", 1)

	// WHEN: Selling both in one sale
	_, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{
		line(a, 3, "2"),
		line(b, 2, "2"),
	}})

	// THEN: Rejected with context, nothing applied
	var ise *ledger.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, b, ise.ProductID)
	assert.Equal(t, int64(1), ise.Available)
	assert.Equal(t, int64(5), f.quantity(t, a))
	assert.Equal(t, int64(1), f.quantity(t, b))

	list, err := proc.List(ctx, owner, sales.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_CrossShopProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()

	foreign := f.product(t, "shop-2", 5)

	_, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(foreign, 1, "1")}})

	assert.True(t, errors.Is(err, ledger.ErrCrossShopViolation))
	assert.Equal(t, int64(5), f.quantity(t, foreign))
}

func TestCreate_UnknownProduct(t *testing.T) {
	_, err := newFixture(t).processor().Create(context.Background(), seller,
		sales.CreateInput{Items: []sales.ItemInput{line("missing", 1, "1")}})

	var nf *ledger.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "product", nf.Kind)
}

func TestCreate_ForbiddenShop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.product(t, "shop-1", 5)

	_, err := f.processor().Create(ctx, outside, sales.CreateInput{ShopID: "shop-1", Items: []sales.ItemInput{line(id, 1, "1")}})

	assert.True(t, errors.Is(err, ledger.ErrForbidden))
	assert.Equal(t, int64(5), f.quantity(t, id))
}

func TestCreate_ConcurrentSalesOfLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()

	// GIVEN: One unit left
	id := f.product(t, "shop-1", 1)

	// WHEN: Two sellers sell it at once
	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, p := range []ledger.Principal{seller, seller2} {
		wg.Add(1)
		go func(i int, p ledger.Principal) {
			defer wg.Done()
			_, errs[i] = proc.Create(ctx, p, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "3")}})
		}(i, p)
	}
	wg.Wait()

	// THEN: Exactly one succeeds and stock ends at zero
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ledger.ErrInsufficientStock), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(0), f.quantity(t, id))
}

func TestLineTotalPolicies(t *testing.T) {
	ctx := context.Background()
	supplied := money("7.49")

	t.Run("supplied total wins", func(t *testing.T) {
		f := newFixture(t)
		id := f.product(t, "shop-1", 10)
		item := line(id, 3, "2.50")
		item.TotalPrice = &supplied

		sale, err := f.processor().Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{item}})

		require.NoError(t, err)
		assert.Equal(t, "7.49", sale.TotalAmount.StringFixed(2))
	})

	t.Run("supplied falls back to unit times quantity", func(t *testing.T) {
		f := newFixture(t)
		id := f.product(t, "shop-1", 10)

		sale, err := f.processor().Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 3, "2.50")}})

		require.NoError(t, err)
		assert.Equal(t, "7.50", sale.TotalAmount.StringFixed(2))
	})

	t.Run("derived ignores the caller", func(t *testing.T) {
		f := newFixture(t)
		id := f.product(t, "shop-1", 10)
		item := line(id, 3, "2.50")
		item.TotalPrice = &supplied

		sale, err := f.processor(sales.WithLineTotalPolicy(sales.LineTotalDerived)).
			Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{item}})

		require.NoError(t, err)
		assert.Equal(t, "7.50", sale.TotalAmount.StringFixed(2))
	})
}

func TestParseLineTotalPolicy(t *testing.T) {
	p, err := sales.ParseLineTotalPolicy(" Derived ")
	require.NoError(t, err)
	assert.Equal(t, sales.LineTotalDerived, p)

	p, err = sales.ParseLineTotalPolicy("")
	require.NoError(t, err)
	assert.Equal(t, sales.LineTotalSupplied, p)

	_, err = sales.ParseLineTotalPolicy("guess")
	assert.Error(t, err)
}

func TestTotal_EqualsSumOfLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.product(t, "shop-1", 10)
	b := f.product(t, "shop-1", 10)

	sale, err := f.processor().Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{
		line(a, 3, "0.10"),
		line(b, 1, "0.20"),
	}})
	require.NoError(t, err)

	stored, err := f.processor().Get(ctx, owner, sale.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, it := range stored.Items {
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, sum.Equal(stored.TotalAmount))
	assert.Equal(t, "0.50", stored.TotalAmount.StringFixed(2))
	assert.Equal(t, a, stored.Items[0].ProductID)
}

func TestVisibility_SellerSeesOwnSales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	proc := f.processor()
	id := f.product(t, "shop-1", 10)

	mine, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "1")}})
	require.NoError(t, err)
	theirs, err := proc.Create(ctx, seller2, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "1")}})
	require.NoError(t, err)

	// Seller: only own
	list, err := proc.List(ctx, seller, sales.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = proc.Get(ctx, seller, theirs.ID)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))

	// Owner: whole shop
	list, err = proc.List(ctx, owner, sales.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Other shop: forbidden
	_, err = proc.Get(ctx, outside, mine.ID)
	assert.True(t, errors.Is(err, ledger.ErrForbidden))
}

func TestList_DateRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.product(t, "shop-1", 10)

	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	_, err := f.processor(sales.WithClock(func() time.Time { return day1 })).
		Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "1")}})
	require.NoError(t, err)
	_, err = f.processor(sales.WithClock(func() time.Time { return day2 })).
		Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "1")}})
	require.NoError(t, err)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	list, err := f.processor().List(ctx, owner, sales.ListFilter{From: from, To: from.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.WithinDuration(t, day2, list[0].CreatedAt, time.Second)

	_, err = f.processor().List(ctx, owner, sales.ListFilter{From: from, To: day1})
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))
}

func TestDailySummary_InvalidatedByMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.product(t, "shop-1", 10)

	today := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	proc := f.processor(sales.WithClock(func() time.Time { return today }))

	// GIVEN: A cached empty summary
	summary, err := proc.DailySummary(ctx, owner, "", today)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalSales)
	assert.Equal(t, 1, f.cache.Len())

	// WHEN: A sale is recorded
	sale, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 2, "4.25")}})
	require.NoError(t, err)

	// THEN: The next read reflects it
	summary, err = proc.DailySummary(ctx, owner, "", today)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", summary.Date)
	assert.Equal(t, 1, summary.TotalSales)
	assert.Equal(t, "8.50", summary.TotalAmount.StringFixed(2))

	// WHEN: It is deleted
	require.NoError(t, proc.Remove(ctx, owner, sale.ID))

	// THEN: Daily drops it and deleted statistics count it
	summary, err = proc.DailySummary(ctx, owner, "", today)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalSales)

	stats, err := proc.DeletedStatistics(ctx, owner, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, "8.50", stats.TotalAmount.StringFixed(2))

	_, err = proc.DeletedStatistics(ctx, seller, "")
	assert.True(t, errors.Is(err, ledger.ErrForbidden))
}

func TestDailySummary_SellerSeesOwnSales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.product(t, "shop-1", 10)

	today := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	proc := f.processor(sales.WithClock(func() time.Time { return today }))

	// GIVEN: Two sellers of one shop sell once each
	_, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "10")}})
	require.NoError(t, err)
	_, err = proc.Create(ctx, seller2, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "20")}})
	require.NoError(t, err)

	// WHEN: Each asks for the day
	mine, err := proc.DailySummary(ctx, seller, "", today)
	require.NoError(t, err)
	theirs, err := proc.DailySummary(ctx, seller2, "", today)
	require.NoError(t, err)
	shop, err := proc.DailySummary(ctx, owner, "", today)
	require.NoError(t, err)

	// THEN: Sellers see only their own totals, the owner sees both
	assert.Equal(t, 1, mine.TotalSales)
	assert.Equal(t, "10.00", mine.TotalAmount.StringFixed(2))
	assert.Equal(t, 1, theirs.TotalSales)
	assert.Equal(t, "20.00", theirs.TotalAmount.StringFixed(2))
	assert.Equal(t, 2, shop.TotalSales)
	assert.Equal(t, "30.00", shop.TotalAmount.StringFixed(2))

	// AND: Each view has its own cache entry
	ok := f.cached(t, sales.SellerDailyKey("shop-1", today, "seller-1"))
	assert.True(t, ok)
	ok = f.cached(t, sales.DailyKey("shop-1", today))
	assert.True(t, ok)

	// WHEN: seller-1 sells again
	_, err = proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "5")}})
	require.NoError(t, err)

	// THEN: Their cached summary is dropped, seller-2's is kept
	ok = f.cached(t, sales.SellerDailyKey("shop-1", today, "seller-1"))
	assert.False(t, ok)
	ok = f.cached(t, sales.SellerDailyKey("shop-1", today, "seller-2"))
	assert.True(t, ok)

	mine, err = proc.DailySummary(ctx, seller, "", today)
	require.NoError(t, err)
	assert.Equal(t, 2, mine.TotalSales)
	assert.Equal(t, "15.00", mine.TotalAmount.StringFixed(2))
}

func TestSellerDailyReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.product(t, "shop-1", 10)
	foreign := f.product(t, "shop-2", 10)

	today := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	proc := f.processor(sales.WithClock(func() time.Time { return today }))

	// GIVEN: seller-1 sells twice, seller-2 once
	_, err := proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 2, "3.50")}})
	require.NoError(t, err)
	_, err = proc.Create(ctx, seller, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "1.25")}})
	require.NoError(t, err)
	_, err = proc.Create(ctx, seller2, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "9")}})
	require.NoError(t, err)

	// WHEN: seller-1 asks for their own day
	report, err := proc.SellerDailyReport(ctx, seller, "seller-1", today)

	// THEN: Only their sales, with items
	require.NoError(t, err)
	assert.Equal(t, "seller-1", report.SellerID)
	assert.Equal(t, "2026-03-03", report.Date)
	assert.Equal(t, 2, report.TotalSales)
	assert.Equal(t, "8.25", report.TotalAmount.StringFixed(2))
	require.Len(t, report.Sales, 2)
	for _, s := range report.Sales {
		assert.Equal(t, "seller-1", s.SellerID)
		assert.Len(t, s.Items, 1)
	}

	// Another day is empty
	other, err := proc.SellerDailyReport(ctx, owner, "seller-1", today.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, other.TotalSales)
	assert.Empty(t, other.Sales)

	// Sellers may not read each other's reports
	_, err = proc.SellerDailyReport(ctx, seller, "seller-2", today)
	assert.True(t, errors.Is(err, ledger.ErrForbidden))

	// The owner reads any seller of the shop
	report, err = proc.SellerDailyReport(ctx, owner, "seller-2", today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalSales)

	// An owner elsewhere sees nothing of this shop
	stranger := ledger.Principal{UserID: "owner-2", Role: ledger.RoleShopOwner, ShopID: "shop-2"}
	report, err = proc.SellerDailyReport(ctx, stranger, "seller-1", today)
	require.NoError(t, err)
	assert.Zero(t, report.TotalSales)

	// Admins see across shops
	_, err = proc.Create(ctx, admin, sales.CreateInput{ShopID: "shop-2", Items: []sales.ItemInput{line(foreign, 1, "2")}})
	require.NoError(t, err)
	report, err = proc.SellerDailyReport(ctx, admin, "admin", today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalSales)

	_, err = proc.SellerDailyReport(ctx, owner, "", today)
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))
}

func TestCreate_AdminMustNameShop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.product(t, "shop-1", 5)
	proc := f.processor()

	// WHEN: An admin omits the shop
	_, err := proc.Create(ctx, admin, sales.CreateInput{Items: []sales.ItemInput{line(id, 1, "1")}})

	// THEN: The request is rejected as invalid, not as a cross-shop sale
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))
	assert.False(t, errors.Is(err, ledger.ErrCrossShopViolation))
	assert.Equal(t, int64(5), f.quantity(t, id))

	_, err = proc.DailySummary(ctx, admin, "", time.Now())
	assert.True(t, errors.Is(err, ledger.ErrInvalidInput))
}
