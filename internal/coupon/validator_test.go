package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
)

type fakeSource struct {
	coupons map[string]*domain.Coupon
	lastGet string
}

func (f *fakeSource) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	f.lastGet = code
	return f.coupons[code], nil
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	newValidator := func(coupons ...*domain.Coupon) (*Validator, *fakeSource) {
		source := &fakeSource{coupons: map[string]*domain.Coupon{}}
		for _, c := range coupons {
			source.coupons[c.Code] = c
		}
		v := NewValidator(source)
		v.now = func() time.Time { return now }
		return v, source
	}

	t.Run("returns the coupon for a valid code", func(t *testing.T) {
		v, _ := newValidator(&domain.Coupon{Code: "SAVE20", DiscountPercent: 20, ExpiresOn: now.AddDate(0, 1, 0)})

		coupon, err := v.Validate(context.Background(), "SAVE20")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if coupon.DiscountPercent != 20 {
			t.Errorf("expected discount 20, got %d", coupon.DiscountPercent)
		}
	})

	t.Run("normalizes the code before lookup", func(t *testing.T) {
		v, source := newValidator(&domain.Coupon{Code: "SAVE20", DiscountPercent: 20, ExpiresOn: now.AddDate(0, 1, 0)})

		if _, err := v.Validate(context.Background(), "  save20 "); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if source.lastGet != "SAVE20" {
			t.Errorf("expected lookup with SAVE20, got %s", source.lastGet)
		}
	})

	t.Run("unknown code is NotFound", func(t *testing.T) {
		v, _ := newValidator()

		_, err := v.Validate(context.Background(), "NOPE")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("past expiry is Expired", func(t *testing.T) {
		v, _ := newValidator(&domain.Coupon{Code: "OLD", DiscountPercent: 20, ExpiresOn: now.AddDate(0, 0, -2)})

		_, err := v.Validate(context.Background(), "OLD")
		if !errors.Is(err, domain.ErrCouponExpired) {
			t.Errorf("expected ErrCouponExpired, got %v", err)
		}
	})

	t.Run("coupon expiring today is accepted", func(t *testing.T) {
		v, _ := newValidator(&domain.Coupon{Code: "TODAY", DiscountPercent: 20, ExpiresOn: now.Truncate(24 * time.Hour)})

		if _, err := v.Validate(context.Background(), "TODAY"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("blank code is InvalidArgument", func(t *testing.T) {
		v, _ := newValidator()

		_, err := v.Validate(context.Background(), "   ")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
