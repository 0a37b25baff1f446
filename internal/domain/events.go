package domain

import "time"

type OrderPlacedEvent struct {
	OrderID   string      `json:"order_id"`
	ShopperID string      `json:"shopper_id"`
	Items     []OrderItem `json:"items"`
	Total     int64       `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderCancelledEvent struct {
	OrderID   string    `json:"order_id"`
	ShopperID string    `json:"shopper_id"`
	Timestamp time.Time `json:"timestamp"`
}
