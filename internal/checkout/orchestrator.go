// Package checkout composes the cart store, coupon validator, inventory
// ledger, and order ledger into a single all-or-nothing checkout operation.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
	"github.com/shopflow/checkout-core/internal/inventory"
	"github.com/shopflow/checkout-core/internal/orders"
)

type CartSource interface {
	Get(ctx context.Context, shopperID string) (*domain.Cart, error)
	Clear(ctx context.Context, shopperID string) (*domain.Cart, error)
}

type InventoryLedger interface {
	ReserveAndDecrement(ctx context.Context, items []domain.OrderItem) (*inventory.Reservation, error)
	Release(ctx context.Context, reservation *inventory.Reservation) error
}

type OrderLedger interface {
	Create(ctx context.Context, order *domain.Order, token, requestHash string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	LookupToken(ctx context.Context, token string) (orderID, requestHash string, err error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Request struct {
	ShopperID           string
	PaymentMethod       domain.PaymentMethod
	PaymentConfirmation json.RawMessage
	IdempotencyToken    string
}

type Orchestrator struct {
	carts  CartSource
	stock  InventoryLedger
	orders OrderLedger
	placed EventPublisher
	logger *slog.Logger
}

// NewOrchestrator wires the checkout flow. placed may be nil when the service
// runs without Kafka.
func NewOrchestrator(carts CartSource, stock InventoryLedger, orderLedger OrderLedger, placed EventPublisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		carts:  carts,
		stock:  stock,
		orders: orderLedger,
		placed: placed,
		logger: logger,
	}
}

// Checkout commits the shopper's cart into an immutable order. Inventory is
// decremented before the order is written; if order creation then fails, the
// reservation is released so the checkout is all-or-nothing. A repeated
// idempotency token with the same payload returns the order the first attempt
// created instead of running the flow again.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*domain.Order, error) {
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("unrecognized payment method %q: %w", req.PaymentMethod, domain.ErrInvalidArgument)
	}
	if req.PaymentMethod.RequiresConfirmation() && len(req.PaymentConfirmation) == 0 {
		return nil, fmt.Errorf("payment method %s requires a payment confirmation: %w", req.PaymentMethod, domain.ErrInvalidArgument)
	}

	hash := requestHash(req)
	if req.IdempotencyToken != "" {
		if order, err := o.replay(ctx, req.IdempotencyToken, hash); order != nil || err != nil {
			return order, err
		}
	}

	cart, err := o.carts.Get(ctx, req.ShopperID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil || cart.Empty() {
		return nil, domain.ErrEmptyCart
	}

	// The order's record is this snapshot, not the live cart: the cart is
	// about to be cleared and must not reach into the placed order.
	snapshot := domain.SnapshotLineItems(cart.Items)

	reservation, err := o.stock.ReserveAndDecrement(ctx, snapshot)
	if err != nil {
		return nil, o.classify(fmt.Errorf("reserve inventory: %w", err))
	}

	order := &domain.Order{
		ShopperID:          req.ShopperID,
		Items:              snapshot,
		Total:              cart.CartTotal,
		TotalAfterDiscount: cart.TotalAfterDiscount,
		PaymentMethod:      req.PaymentMethod,
		PaymentIntent:      req.PaymentConfirmation,
		PaymentStatus:      domain.PaymentStatusPending,
		OrderStatus:        domain.OrderStatusNotProcessed,
	}
	if req.PaymentMethod == domain.PaymentMethodCard {
		order.PaymentStatus = domain.PaymentStatusCompleted
	}

	if err := o.orders.Create(ctx, order, req.IdempotencyToken, hash); err != nil {
		if releaseErr := o.stock.Release(ctx, reservation); releaseErr != nil {
			o.logger.Error("failed to release reservation after order creation failure",
				"error", releaseErr, "shopper_id", req.ShopperID)
		}

		if errors.Is(err, orders.ErrDuplicateToken) {
			// Lost a race against a retry carrying the same token. The
			// winner's order is the checkout's outcome.
			return o.replay(ctx, req.IdempotencyToken, hash)
		}
		return nil, o.classify(fmt.Errorf("create order: %w", err))
	}

	if _, err := o.carts.Clear(ctx, req.ShopperID); err != nil {
		// The order stands; a cart left behind is recoverable, a lost order
		// is not.
		o.logger.Error("failed to clear cart after checkout", "error", err, "shopper_id", req.ShopperID, "order_id", order.ID)
	}

	if o.placed != nil {
		event := domain.OrderPlacedEvent{
			OrderID:   order.ID,
			ShopperID: order.ShopperID,
			Items:     order.Items,
			Total:     order.Total,
			Timestamp: time.Now().UTC(),
		}
		if err := o.placed.Publish(ctx, order.ID, event); err != nil {
			o.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	o.logger.Info("checkout complete", "shopper_id", req.ShopperID, "order_id", order.ID, "total", order.Total)
	return order, nil
}

// replay resolves an idempotency token to its prior order. Returns (nil, nil)
// when the token is unused.
func (o *Orchestrator) replay(ctx context.Context, token, hash string) (*domain.Order, error) {
	orderID, storedHash, err := o.orders.LookupToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("look up idempotency token: %w", err)
	}
	if orderID == "" {
		return nil, nil
	}
	if storedHash != hash {
		return nil, fmt.Errorf("idempotency token %s was already used with a different payload: %w", token, domain.ErrConflict)
	}

	order, err := o.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load prior order for token: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order for idempotency token %s: %w", token, domain.ErrNotFound)
	}

	o.logger.Info("checkout replayed from idempotency token", "order_id", order.ID, "token", token)
	return order, nil
}

// classify separates ambiguous outcomes from plain failures: a timed-out step
// may have half-happened and needs reconciliation, not a blind retry.
func (o *Orchestrator) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%v: %w", err, domain.ErrUnknownOutcome)
	}
	return err
}

func requestHash(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.ShopperID))
	h.Write([]byte{0})
	h.Write([]byte(req.PaymentMethod))
	h.Write([]byte{0})
	h.Write(req.PaymentConfirmation)
	return hex.EncodeToString(h.Sum(nil))
}
