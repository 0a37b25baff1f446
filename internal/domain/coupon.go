package domain

import (
	"strings"
	"time"
)

type Coupon struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	ExpiresOn       time.Time `json:"expires_on"`
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the coupon is past its validity. Expiry is
// end-of-day inclusive: a coupon expiring "on" a date is accepted through the
// last instant of that date.
func (c Coupon) Expired(now time.Time) bool {
	y, m, d := c.ExpiresOn.Date()
	endOfDay := time.Date(y, m, d, 0, 0, 0, 0, c.ExpiresOn.Location()).AddDate(0, 0, 1)
	return !now.Before(endOfDay)
}
