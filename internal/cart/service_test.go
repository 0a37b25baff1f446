package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
)

type memStore struct {
	carts      map[string]*domain.Cart
	staleSaves int
	saves      int
}

func newMemStore() *memStore {
	return &memStore{carts: map[string]*domain.Cart{}}
}

func (s *memStore) Get(_ context.Context, shopperID string) (*domain.Cart, error) {
	cart, ok := s.carts[shopperID]
	if !ok {
		return nil, nil
	}
	clone := *cart
	clone.Items = append([]domain.LineItem(nil), cart.Items...)
	if cart.TotalAfterDiscount != nil {
		v := *cart.TotalAfterDiscount
		clone.TotalAfterDiscount = &v
	}
	return &clone, nil
}

func (s *memStore) Save(_ context.Context, cart *domain.Cart) error {
	s.saves++
	if s.staleSaves > 0 {
		s.staleSaves--
		return ErrStaleCart
	}
	stored := s.carts[cart.ShopperID]
	if stored == nil {
		if cart.Version != 0 {
			return ErrStaleCart
		}
	} else if stored.Version != cart.Version {
		return ErrStaleCart
	}
	cart.Version++
	clone := *cart
	clone.Items = append([]domain.LineItem(nil), cart.Items...)
	s.carts[cart.ShopperID] = &clone
	return nil
}

type fakeCatalog struct {
	products map[string]*domain.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	return f.products[id], nil
}

func (f *fakeCatalog) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	result := map[string]domain.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			result[id] = *p
		}
	}
	return result, nil
}

type fakeValidator struct {
	coupons map[string]*domain.Coupon
	now     time.Time
}

func (f *fakeValidator) Validate(_ context.Context, code string) (*domain.Coupon, error) {
	coupon, ok := f.coupons[domain.NormalizeCouponCode(code)]
	if !ok {
		return nil, fmt.Errorf("coupon %s: %w", code, domain.ErrNotFound)
	}
	if coupon.Expired(f.now) {
		return nil, fmt.Errorf("coupon %s: %w", code, domain.ErrCouponExpired)
	}
	return coupon, nil
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeCatalog, *fakeValidator) {
	t.Helper()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	catalog := &fakeCatalog{products: map[string]*domain.Product{
		"p1": {ID: "p1", Title: "Keyboard", Brand: "Acme", Price: 2500, Quantity: 10},
		"p2": {ID: "p2", Title: "Mouse", Brand: "Acme", Price: 700, Quantity: 5},
	}}
	validator := &fakeValidator{
		coupons: map[string]*domain.Coupon{
			"SAVE20": {Code: "SAVE20", DiscountPercent: 20, ExpiresOn: now.AddDate(0, 1, 0)},
			"OLD":    {Code: "OLD", DiscountPercent: 20, ExpiresOn: now.AddDate(0, 0, -1)},
		},
		now: now,
	}
	service := NewService(store, catalog, validator)
	service.now = func() time.Time { return now }
	return service, store, catalog, validator
}

func TestAddOrUpdateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the cart lazily and snapshots the price", func(t *testing.T) {
		service, _, catalog, _ := newTestService(t)

		cart, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 2, "black")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cart.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(cart.Items))
		}
		if cart.Items[0].UnitPrice != 2500 {
			t.Errorf("expected snapshotted price 2500, got %d", cart.Items[0].UnitPrice)
		}
		if cart.CartTotal != 5000 {
			t.Errorf("expected cart total 5000, got %d", cart.CartTotal)
		}

		// A later catalog price change must not move the snapshot.
		catalog.products["p1"].Price = 9999
		cart, err = service.AddOrUpdateItem(ctx, "shopper-1", "p1", 3, "black")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cart.Items[0].UnitPrice != 2500 {
			t.Errorf("expected original snapshot 2500 after merge, got %d", cart.Items[0].UnitPrice)
		}
		if cart.CartTotal != 7500 {
			t.Errorf("expected cart total 7500, got %d", cart.CartTotal)
		}
	})

	t.Run("merges by product identity instead of duplicating", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 1, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cart, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 4, "white")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cart.Items) != 1 {
			t.Fatalf("expected 1 merged item, got %d", len(cart.Items))
		}
		if cart.Items[0].Quantity != 4 || cart.Items[0].Variant != "white" {
			t.Errorf("expected merged item count 4 variant white, got %+v", cart.Items[0])
		}
	})

	t.Run("rejects unknown products", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		_, err := service.AddOrUpdateItem(ctx, "shopper-1", "missing", 1, "black")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 0, "black"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero count, got %v", err)
		}
		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 1, "  "); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for blank variant, got %v", err)
		}
	})

	t.Run("total always equals the sum over line items", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		steps := []struct {
			productID string
			count     int
		}{
			{"p1", 2}, {"p2", 3}, {"p1", 1}, {"p2", 5},
		}
		for _, step := range steps {
			cart, err := service.AddOrUpdateItem(ctx, "shopper-1", step.productID, step.count, "black")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var want int64
			for _, item := range cart.Items {
				want += item.UnitPrice * int64(item.Quantity)
			}
			if cart.CartTotal != want {
				t.Fatalf("cart total %d does not match line items sum %d", cart.CartTotal, want)
			}
		}
	})
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	service, _, _, _ := newTestService(t)

	_, err := service.UpdateItem(ctx, "shopper-1", "p1", 2, "black")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent line item, got %v", err)
	}

	if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 1, "black"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cart, err := service.UpdateItem(ctx, "shopper-1", "p1", 3, "red")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Items[0].Quantity != 3 || cart.Items[0].Variant != "red" {
		t.Errorf("expected updated item, got %+v", cart.Items[0])
	}
	if cart.CartTotal != 7500 {
		t.Errorf("expected cart total 7500, got %d", cart.CartTotal)
	}
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()

	t.Run("removes and recomputes", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 2, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p2", 1, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cart, err := service.RemoveItem(ctx, "shopper-1", "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cart.Items) != 1 || cart.Items[0].ProductID != "p2" {
			t.Fatalf("expected only p2 to remain, got %+v", cart.Items)
		}
		if cart.CartTotal != 700 {
			t.Errorf("expected cart total 700, got %d", cart.CartTotal)
		}
	})

	t.Run("absent cart or item is NotFound", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		if _, err := service.RemoveItem(ctx, "shopper-1", "p1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for absent cart, got %v", err)
		}
	})

	t.Run("emptying the cart drops the coupon", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 4, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := service.ApplyCoupon(ctx, "shopper-1", "SAVE20"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cart, err := service.RemoveItem(ctx, "shopper-1", "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cart.CouponCode != "" {
			t.Errorf("expected coupon dropped on empty cart, got %s", cart.CouponCode)
		}
		if cart.TotalAfterDiscount != nil {
			t.Errorf("expected discount cleared, got %d", *cart.TotalAfterDiscount)
		}
		if cart.CartTotal != 0 {
			t.Errorf("expected zero total, got %d", cart.CartTotal)
		}
	})
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the discount", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 4, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cart, err := service.ApplyCoupon(ctx, "shopper-1", "save20")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cart.CouponCode != "SAVE20" {
			t.Errorf("expected normalized code SAVE20, got %s", cart.CouponCode)
		}
		if cart.TotalAfterDiscount == nil || *cart.TotalAfterDiscount != 8000 {
			t.Errorf("expected total after discount 8000, got %v", cart.TotalAfterDiscount)
		}
	})

	t.Run("expired coupon leaves totals unchanged", func(t *testing.T) {
		service, store, _, _ := newTestService(t)

		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 4, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := service.ApplyCoupon(ctx, "shopper-1", "OLD")
		if !errors.Is(err, domain.ErrCouponExpired) {
			t.Fatalf("expected ErrCouponExpired, got %v", err)
		}

		cart := store.carts["shopper-1"]
		if cart.TotalAfterDiscount != nil || cart.CouponCode != "" {
			t.Errorf("expected cart untouched by expired coupon, got %+v", cart)
		}
		if cart.CartTotal != 10000 {
			t.Errorf("expected cart total 10000, got %d", cart.CartTotal)
		}
	})

	t.Run("unknown coupon is NotFound", func(t *testing.T) {
		service, _, _, _ := newTestService(t)

		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 1, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := service.ApplyCoupon(ctx, "shopper-1", "NOPE"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRemoveCoupon(t *testing.T) {
	ctx := context.Background()
	service, _, _, _ := newTestService(t)

	if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 4, "black"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.ApplyCoupon(ctx, "shopper-1", "SAVE20"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cart, err := service.RemoveCoupon(ctx, "shopper-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.CouponCode != "" {
		t.Errorf("expected coupon removed, got %s", cart.CouponCode)
	}
	if cart.TotalAfterDiscount != nil {
		t.Errorf("expected total after discount cleared, got %d", *cart.TotalAfterDiscount)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	service, _, _, _ := newTestService(t)

	if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 4, "black"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.ApplyCoupon(ctx, "shopper-1", "SAVE20"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cart, err := service.Clear(ctx, "shopper-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cart.Empty() || cart.CouponCode != "" || cart.CartTotal != 0 || cart.TotalAfterDiscount != nil {
		t.Errorf("expected emptied cart, got %+v", cart)
	}
}

func TestMutateRetriesStaleSaves(t *testing.T) {
	ctx := context.Background()

	t.Run("retries until the save lands", func(t *testing.T) {
		service, store, _, _ := newTestService(t)
		store.staleSaves = 2

		cart, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 1, "black")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cart.CartTotal != 2500 {
			t.Errorf("expected cart total 2500, got %d", cart.CartTotal)
		}
		if store.saves != 3 {
			t.Errorf("expected 3 save attempts, got %d", store.saves)
		}
	})

	t.Run("gives up with Conflict after exhausting retries", func(t *testing.T) {
		service, store, _, _ := newTestService(t)
		store.staleSaves = saveAttempts

		_, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 1, "black")
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestView(t *testing.T) {
	ctx := context.Background()
	service, _, catalog, _ := newTestService(t)

	t.Run("absent cart views as empty", func(t *testing.T) {
		view, err := service.View(ctx, "shopper-9")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(view.Items) != 0 || view.CartTotal != 0 {
			t.Errorf("expected empty view, got %+v", view)
		}
	})

	t.Run("joins display fields while pricing stays snapshotted", func(t *testing.T) {
		if _, err := service.AddOrUpdateItem(ctx, "shopper-1", "p1", 2, "black"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		catalog.products["p1"].Title = "Keyboard v2"
		catalog.products["p1"].Price = 9999

		view, err := service.View(ctx, "shopper-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if view.Items[0].Title != "Keyboard v2" || view.Items[0].Brand != "Acme" {
			t.Errorf("expected live display fields, got %+v", view.Items[0])
		}
		if view.Items[0].UnitPrice != 2500 || view.CartTotal != 5000 {
			t.Errorf("expected snapshotted pricing, got %+v", view)
		}
	})
}
