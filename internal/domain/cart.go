package domain

import "time"

// LineItem is one product entry in a cart. UnitPrice is the catalog price
// snapshotted when the item was added; later catalog edits do not move it.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant"`
	UnitPrice int64  `json:"unit_price"`
}

// Cart is the single active cart of a shopper. CartTotal and
// TotalAfterDiscount are derived values, recomputed after every mutation.
// Version backs optimistic concurrency on writes.
type Cart struct {
	ShopperID          string     `json:"shopper_id"`
	Items              []LineItem `json:"items"`
	CouponCode         string     `json:"coupon_code,omitempty"`
	CartTotal          int64      `json:"cart_total"`
	TotalAfterDiscount *int64     `json:"total_after_discount,omitempty"`
	Version            int64      `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *Cart) Item(productID string) *LineItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }
