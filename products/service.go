package products

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/retail-ledger/ledger"
)

// Service is the catalogue API used by the transport layer.
type Service struct {
	store Store
	tx    ledger.Transactor
	log   *zap.Logger
	now   func() time.Time
}

// NewService wires a catalogue service.
func NewService(store Store, tx ledger.Transactor, log *zap.Logger) *Service {
	return &Service{store: store, tx: tx, log: log.Named("products"), now: func() time.Time { return time.Now().UTC() }}
}

// Create adds a product. Barcode+size must be unique among the shop's active products.
func (s *Service) Create(ctx context.Context, p ledger.Principal, in CreateInput) (*Product, error) {
	shopID := ledger.ScopeShop(p, in.ShopID)
	if err := ledger.RequireShop(shopID); err != nil {
		return nil, err
	}
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	if err := ledger.RequireRole(p, ledger.RoleShopOwner, ledger.RoleAdmin); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ledger.Invalid("product name is required")
	}
	if in.Quantity < 0 {
		return nil, ledger.Invalid("quantity cannot be negative")
	}
	if in.PurchasePrice.IsNegative() {
		return nil, ledger.Invalid("purchase price cannot be negative")
	}

	now := s.now()
	prod := &Product{
		ID:            uuid.NewString(),
		ShopID:        shopID,
		Name:          name,
		Barcode:       trimmed(in.Barcode),
		Category:      trimmed(in.Category),
		Size:          trimmed(in.Size),
		PurchasePrice: ledger.Money(in.PurchasePrice),
		Quantity:      in.Quantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Weight != nil {
		prod.Weight.Decimal, prod.Weight.Valid = *in.Weight, true
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.checkBarcode(ctx, prod, ""); err != nil {
			return err
		}
		return s.store.InsertProduct(ctx, prod)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product created", zap.String("shop_id", shopID), zap.String("product_id", prod.ID))
	return prod, nil
}

// Get returns an active product visible to p.
func (s *Service) Get(ctx context.Context, p ledger.Principal, id string) (*Product, error) {
	prod, err := s.store.ActiveProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ledger.Authorize(p, prod.ShopID); err != nil {
		return nil, err
	}
	return prod, nil
}

// List pages through a shop's active products.
func (s *Service) List(ctx context.Context, p ledger.Principal, f Filter) ([]Product, int, error) {
	f.ShopID = ledger.ScopeShop(p, f.ShopID)
	if p.Role != ledger.RoleAdmin || f.ShopID != "" {
		if err := ledger.Authorize(p, f.ShopID); err != nil {
			return nil, 0, err
		}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.store.ListProducts(ctx, f)
}

// FindByBarcode returns every active size variant with the barcode.
func (s *Service) FindByBarcode(ctx context.Context, p ledger.Principal, shopID, barcode string) ([]Product, error) {
	shopID = ledger.ScopeShop(p, shopID)
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	found, err := s.store.ProductsByBarcode(ctx, shopID, strings.TrimSpace(barcode))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &ledger.NotFoundError{Kind: "product", ID: barcode}
	}
	return found, nil
}

// LowStock lists active products at or below threshold (default 10).
func (s *Service) LowStock(ctx context.Context, p ledger.Principal, shopID string, threshold int64) ([]Product, error) {
	shopID = ledger.ScopeShop(p, shopID)
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.store.LowStockProducts(ctx, shopID, threshold)
}

// Categories lists distinct categories in use by the shop.
func (s *Service) Categories(ctx context.Context, p ledger.Principal, shopID string) ([]string, error) {
	shopID = ledger.ScopeShop(p, shopID)
	if err := ledger.Authorize(p, shopID); err != nil {
		return nil, err
	}
	return s.store.ProductCategories(ctx, shopID)
}

// Update changes product metadata. Quantity only moves through the stock ledger.
func (s *Service) Update(ctx context.Context, p ledger.Principal, id string, in UpdateInput) (*Product, error) {
	if err := ledger.RequireRole(p, ledger.RoleShopOwner, ledger.RoleAdmin); err != nil {
		return nil, err
	}

	var prod *Product
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		prod, err = s.store.ActiveProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := ledger.Authorize(p, prod.ShopID); err != nil {
			return err
		}

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ledger.Invalid("product name is required")
			}
			prod.Name = name
		}
		if in.Barcode != nil {
			prod.Barcode = trimmed(in.Barcode)
		}
		if in.Category != nil {
			prod.Category = trimmed(in.Category)
		}
		if in.Size != nil {
			prod.Size = trimmed(in.Size)
		}
		if in.Weight != nil {
			prod.Weight.Decimal, prod.Weight.Valid = *in.Weight, true
		}
		if in.PurchasePrice != nil {
			if in.PurchasePrice.IsNegative() {
				return ledger.Invalid("purchase price cannot be negative")
			}
			prod.PurchasePrice = ledger.Money(*in.PurchasePrice)
		}
		prod.UpdatedAt = s.now()

		if in.Barcode != nil || in.Size != nil {
			if err := s.checkBarcode(ctx, prod, prod.ID); err != nil {
				return err
			}
		}

		ok, err := s.store.UpdateProduct(ctx, prod)
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: "product", ID: id}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prod, nil
}

// Remove tombstones a product. Past sales keep referencing it.
func (s *Service) Remove(ctx context.Context, p ledger.Principal, id string) error {
	if err := ledger.RequireRole(p, ledger.RoleShopOwner, ledger.RoleAdmin); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		prod, err := s.store.ActiveProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := ledger.Authorize(p, prod.ShopID); err != nil {
			return err
		}
		ok, err := s.store.SoftDeleteProduct(ctx, id, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: "product", ID: id}
		}
		s.log.Info("product removed", zap.String("shop_id", prod.ShopID), zap.String("product_id", id))
		return nil
	})
}

func (s *Service) checkBarcode(ctx context.Context, prod *Product, exceptID string) error {
	if prod.Barcode == nil {
		return nil
	}
	taken, err := s.store.BarcodeTaken(ctx, prod.ShopID, *prod.Barcode, prod.Size, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return ledger.ErrDuplicateBarcode
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
