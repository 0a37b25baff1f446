package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
)

type Source interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

// Validator checks a coupon code against a reference clock. It never mutates
// coupon state.
type Validator struct {
	source Source
	now    func() time.Time
}

func NewValidator(source Source) *Validator {
	return &Validator{source: source, now: time.Now}
}

func (v *Validator) Validate(ctx context.Context, code string) (*domain.Coupon, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" {
		return nil, fmt.Errorf("coupon code is required: %w", domain.ErrInvalidArgument)
	}

	coupon, err := v.source.GetByCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("look up coupon %s: %w", normalized, err)
	}
	if coupon == nil {
		return nil, fmt.Errorf("coupon %s: %w", normalized, domain.ErrNotFound)
	}

	if coupon.Expired(v.now()) {
		return nil, fmt.Errorf("coupon %s: %w", normalized, domain.ErrCouponExpired)
	}

	return coupon, nil
}
