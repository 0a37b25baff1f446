// Package worker reacts to order lifecycle events. It sends shopper
// notifications and advances freshly placed orders into processing; it never
// touches inventory, which checkout settles synchronously.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopflow/checkout-core/internal/domain"
	"github.com/shopflow/checkout-core/internal/identity"
)

type NotificationHandler struct {
	emailServiceURL    string
	checkoutServiceURL string
	httpClient         *http.Client
	logger             *slog.Logger
}

func NewNotificationHandler(emailServiceURL, checkoutServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL:    emailServiceURL,
		checkoutServiceURL: checkoutServiceURL,
		httpClient:         client,
		logger:             logger,
	}
}

// HandlePlaced confirms a placed order: the shopper gets a confirmation email
// and the order moves from Not-Processed into Processed.
func (h *NotificationHandler) HandlePlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "shopper_id", event.ShopperID)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if err := h.updateOrderStatus(ctx, event.OrderID, domain.OrderStatusProcessed); err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("update order status: %w", err)
	}

	h.logger.Info("order confirmed", "order_id", event.OrderID)
	return nil
}

// HandleCancelled notifies the shopper that their order was cancelled. The
// status change already happened on the order ledger before the event was
// published.
func (h *NotificationHandler) HandleCancelled(ctx context.Context, payload []byte) error {
	var event domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order cancelled event: %w", err)
	}

	h.logger.Info("processing order cancelled event", "order_id", event.OrderID, "shopper_id", event.ShopperID)

	if err := h.sendCancellationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send cancellation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send cancellation email: %w", err)
	}

	return nil
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderPlacedEvent) error {
	body := map[string]string{
		"to":       event.ShopperID + "@example.com",
		"subject":  "Order Confirmation: " + event.OrderID,
		"body":     fmt.Sprintf("Your order %s with %d items has been placed.", event.OrderID, len(event.Items)),
		"order_id": event.OrderID,
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendCancellationEmail(ctx context.Context, event domain.OrderCancelledEvent) error {
	body := map[string]string{
		"to":       event.ShopperID + "@example.com",
		"subject":  "Order Cancelled: " + event.OrderID,
		"body":     fmt.Sprintf("Your order %s has been cancelled. Any completed payment will be reimbursed.", event.OrderID),
		"order_id": event.OrderID,
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

func (h *NotificationHandler) updateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body := map[string]string{
		"status": string(status),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", h.checkoutServiceURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderShopperID, "notification-worker")
	req.Header.Set(identity.HeaderShopperRole, identity.RoleOperator)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("checkout service returned status %d", resp.StatusCode)
	}

	return nil
}
