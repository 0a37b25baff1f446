// Package pricing computes cart totals. It is pure: totals are always derived
// from the snapshotted unit prices on the line items, never from live catalog
// prices.
package pricing

import (
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
)

// Recompute returns the cart subtotal and, when an unexpired coupon is
// attached, the discounted total. A nil or expired coupon yields a nil
// discounted total.
func Recompute(items []domain.LineItem, coupon *domain.Coupon, now time.Time) (int64, *int64) {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	if coupon == nil || coupon.Expired(now) {
		return subtotal, nil
	}

	discounted := subtotal - subtotal*int64(coupon.DiscountPercent)/100
	return subtotal, &discounted
}

// Apply recomputes both derived totals on the cart in place.
func Apply(cart *domain.Cart, coupon *domain.Coupon, now time.Time) {
	cart.CartTotal, cart.TotalAfterDiscount = Recompute(cart.Items, coupon, now)
}
