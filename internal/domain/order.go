package domain

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderStatusNotProcessed OrderStatus = "Not-Processed"
	OrderStatusProcessed    OrderStatus = "Processed"
	OrderStatusDispatched   OrderStatus = "Dispatched"
	OrderStatusDelivered    OrderStatus = "Delivered"
	OrderStatusCancelled    OrderStatus = "Cancelled"
)

// orderTransitions is the full status state machine: forward progression one
// step at a time, cancellation only before dispatch.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNotProcessed: {OrderStatusProcessed, OrderStatusCancelled},
	OrderStatusProcessed:    {OrderStatusDispatched, OrderStatusCancelled},
	OrderStatusDispatched:   {OrderStatusDelivered},
	OrderStatusDelivered:    {},
	OrderStatusCancelled:    {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "Card"
	PaymentMethodCOD  PaymentMethod = "COD"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodCOD
}

// RequiresConfirmation reports whether the method needs an upfront payment
// confirmation at order creation.
func (m PaymentMethod) RequiresConfirmation() bool {
	return m == PaymentMethodCard
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// OrderItem is a line item copied by value out of the cart at commit time.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant"`
	UnitPrice int64  `json:"unit_price"`
}

// Order is immutable after creation except for OrderStatus and PaymentStatus.
type Order struct {
	ID                 string          `json:"id"`
	ShopperID          string          `json:"shopper_id"`
	Items              []OrderItem     `json:"items"`
	Total              int64           `json:"total"`
	TotalAfterDiscount *int64          `json:"total_after_discount,omitempty"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	PaymentIntent      json.RawMessage `json:"payment_intent,omitempty"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	OrderStatus        OrderStatus     `json:"order_status"`
	TrackingNumber     string          `json:"tracking_number"`
	CreatedAt          time.Time       `json:"created_at"`
}

// SnapshotLineItems copies cart line items into order items. The snapshot is
// detached from the cart: later cart or catalog changes cannot reach it.
func SnapshotLineItems(items []LineItem) []OrderItem {
	snapshot := make([]OrderItem, len(items))
	for i, item := range items {
		snapshot[i] = OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Variant:   item.Variant,
			UnitPrice: item.UnitPrice,
		}
	}
	return snapshot
}
