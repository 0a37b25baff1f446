package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
	"github.com/shopflow/checkout-core/internal/pricing"
)

type Store interface {
	Get(ctx context.Context, shopperID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
}

type CatalogReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type CouponValidator interface {
	Validate(ctx context.Context, code string) (*domain.Coupon, error)
}

// saveAttempts bounds the optimistic retry loop that serializes concurrent
// mutations of the same shopper's cart.
const saveAttempts = 5

// Service owns the single active cart per shopper. Every mutation recomputes
// the derived totals before saving, so they are never observably stale.
type Service struct {
	store   Store
	catalog CatalogReader
	coupons CouponValidator
	now     func() time.Time
}

func NewService(store Store, catalog CatalogReader, coupons CouponValidator) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		coupons: coupons,
		now:     time.Now,
	}
}

func (s *Service) AddOrUpdateItem(ctx context.Context, shopperID, productID string, quantity int, variant string) (*domain.Cart, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id is required: %w", domain.ErrInvalidArgument)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("count must be positive: %w", domain.ErrInvalidArgument)
	}
	variant = strings.TrimSpace(variant)
	if variant == "" {
		return nil, fmt.Errorf("variant is required: %w", domain.ErrInvalidArgument)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("look up product %s: %w", productID, err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	return s.mutate(ctx, shopperID, func(cart *domain.Cart) error {
		if item := cart.Item(productID); item != nil {
			// Merge by product identity; the price snapshot from the first
			// add stays in place.
			item.Quantity = quantity
			item.Variant = variant
			return nil
		}
		cart.Items = append(cart.Items, domain.LineItem{
			ProductID: productID,
			Quantity:  quantity,
			Variant:   variant,
			UnitPrice: product.Price,
		})
		return nil
	})
}

// UpdateItem changes count/variant of a line item that must already exist.
func (s *Service) UpdateItem(ctx context.Context, shopperID, productID string, quantity int, variant string) (*domain.Cart, error) {
	if productID == "" {
		return nil, fmt.Errorf("product id is required: %w", domain.ErrInvalidArgument)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("count must be positive: %w", domain.ErrInvalidArgument)
	}
	variant = strings.TrimSpace(variant)
	if variant == "" {
		return nil, fmt.Errorf("variant is required: %w", domain.ErrInvalidArgument)
	}

	return s.mutate(ctx, shopperID, func(cart *domain.Cart) error {
		item := cart.Item(productID)
		if item == nil {
			return fmt.Errorf("product %s is not in the cart: %w", productID, domain.ErrNotFound)
		}
		item.Quantity = quantity
		item.Variant = variant
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, shopperID, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, shopperID, func(cart *domain.Cart) error {
		if cart.Item(productID) == nil {
			return fmt.Errorf("product %s is not in the cart: %w", productID, domain.ErrNotFound)
		}
		items := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ProductID != productID {
				items = append(items, item)
			}
		}
		cart.Items = items
		return nil
	})
}

func (s *Service) ApplyCoupon(ctx context.Context, shopperID, code string) (*domain.Cart, error) {
	coupon, err := s.coupons.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, shopperID, func(cart *domain.Cart) error {
		if cart.Empty() {
			return fmt.Errorf("cart for shopper: %w", domain.ErrNotFound)
		}
		cart.CouponCode = coupon.Code
		return nil
	})
}

func (s *Service) RemoveCoupon(ctx context.Context, shopperID string) (*domain.Cart, error) {
	return s.mutate(ctx, shopperID, func(cart *domain.Cart) error {
		cart.CouponCode = ""
		return nil
	})
}

// Get returns the raw cart, nil when the shopper has none.
func (s *Service) Get(ctx context.Context, shopperID string) (*domain.Cart, error) {
	return s.store.Get(ctx, shopperID)
}

// Clear empties line items, coupon, and totals in one atomic save. Used by a
// successful checkout or an explicit shopper request.
func (s *Service) Clear(ctx context.Context, shopperID string) (*domain.Cart, error) {
	return s.mutate(ctx, shopperID, func(cart *domain.Cart) error {
		cart.Items = nil
		cart.CouponCode = ""
		return nil
	})
}

// mutate loads (or lazily creates) the shopper's cart, applies fn, recomputes
// the derived totals, and saves under optimistic versioning. A stale save
// reloads and retries, so concurrent mutations of the same cart serialize
// instead of overwriting each other.
func (s *Service) mutate(ctx context.Context, shopperID string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		cart, err := s.store.Get(ctx, shopperID)
		if err != nil {
			return nil, err
		}
		if cart == nil {
			cart = &domain.Cart{ShopperID: shopperID}
		}

		if err := fn(cart); err != nil {
			return nil, err
		}

		coupon, err := s.resolveCoupon(ctx, cart)
		if err != nil {
			return nil, err
		}
		pricing.Apply(cart, coupon, s.now())

		if err := s.store.Save(ctx, cart); err != nil {
			if errors.Is(err, ErrStaleCart) {
				continue
			}
			return nil, err
		}
		return cart, nil
	}
	return nil, fmt.Errorf("cart for shopper kept changing under concurrent writes: %w", domain.ErrConflict)
}

// resolveCoupon re-validates the applied coupon on every recompute. A coupon
// that no longer resolves (deleted, expired, or the cart emptied out from
// under it) is dropped rather than left applying a stale discount.
func (s *Service) resolveCoupon(ctx context.Context, cart *domain.Cart) (*domain.Coupon, error) {
	if cart.CouponCode == "" {
		return nil, nil
	}
	if cart.Empty() {
		cart.CouponCode = ""
		return nil, nil
	}

	coupon, err := s.coupons.Validate(ctx, cart.CouponCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCouponExpired) {
			cart.CouponCode = ""
			return nil, nil
		}
		return nil, err
	}
	return coupon, nil
}

type ViewItem struct {
	domain.LineItem
	Title string `json:"title"`
	Brand string `json:"brand"`
}

type View struct {
	ShopperID          string     `json:"shopper_id"`
	Items              []ViewItem `json:"items"`
	CouponCode         string     `json:"coupon_code,omitempty"`
	CartTotal          int64      `json:"cart_total"`
	TotalAfterDiscount *int64     `json:"total_after_discount,omitempty"`
}

// View joins the cart's line items with current catalog display fields.
// Pricing still comes from the stored snapshots, not the live catalog.
func (s *Service) View(ctx context.Context, shopperID string) (*View, error) {
	cart, err := s.store.Get(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &View{ShopperID: shopperID, Items: []ViewItem{}}, nil
	}

	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("join cart with catalog: %w", err)
	}

	view := &View{
		ShopperID:          cart.ShopperID,
		Items:              make([]ViewItem, 0, len(cart.Items)),
		CouponCode:         cart.CouponCode,
		CartTotal:          cart.CartTotal,
		TotalAfterDiscount: cart.TotalAfterDiscount,
	}
	for _, item := range cart.Items {
		viewItem := ViewItem{LineItem: item}
		if product, ok := products[item.ProductID]; ok {
			viewItem.Title = product.Title
			viewItem.Brand = product.Brand
		}
		view.Items = append(view.Items, viewItem)
	}
	return view, nil
}
