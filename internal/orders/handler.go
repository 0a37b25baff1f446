package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopflow/checkout-core/internal/domain"
	"github.com/shopflow/checkout-core/internal/identity"
	"github.com/shopflow/checkout-core/internal/messaging"
)

type Handler struct {
	repo      *Repository
	cancelled *messaging.Producer
	logger    *slog.Logger
}

// NewHandler wires the order ledger's HTTP surface. cancelled may be nil when
// the service runs without Kafka.
func NewHandler(repo *Repository, cancelled *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		cancelled: cancelled,
		logger:    logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	id := r.PathValue("id")
	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if order.ShopperID != shopper.ID && !shopper.Operator() {
		h.writeError(w, http.StatusForbidden, "you are not allowed to view this order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	orders, err := h.repo.ListByShopper(r.Context(), shopper.ID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "shopper_id", shopper.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}
	if !shopper.Operator() {
		h.writeError(w, http.StatusForbidden, "operator role required")
		return
	}

	id := r.PathValue("id")
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeDomainError(w, err, "failed to update order status", "id", id, "status", req.Status)
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.OrderStatus)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	id := r.PathValue("id")
	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if order.ShopperID != shopper.ID && !shopper.Operator() {
		h.writeError(w, http.StatusForbidden, "you are not allowed to cancel this order")
		return
	}

	order, err = h.repo.UpdateStatus(r.Context(), id, domain.OrderStatusCancelled)
	if err != nil {
		h.writeDomainError(w, err, "failed to cancel order", "id", id)
		return
	}

	if h.cancelled != nil {
		event := domain.OrderCancelledEvent{
			OrderID:   order.ID,
			ShopperID: order.ShopperID,
			Timestamp: time.Now().UTC(),
		}
		if err := h.cancelled.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order cancelled event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order cancelled", "order_id", order.ID, "requested_by", shopper.ID)
	h.writeJSON(w, http.StatusOK, order)
}

type updatePaymentRequest struct {
	Status domain.PaymentStatus `json:"status"`
}

func (h *Handler) HandleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}
	if !shopper.Operator() {
		h.writeError(w, http.StatusForbidden, "operator role required")
		return
	}

	id := r.PathValue("id")
	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.repo.UpdatePaymentStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeDomainError(w, err, "failed to update payment status", "id", id, "status", req.Status)
		return
	}

	h.logger.Info("payment status updated", "order_id", order.ID, "payment_status", order.PaymentStatus)
	h.writeJSON(w, http.StatusOK, order)
}

type trackingResponse struct {
	TrackingNumber string             `json:"tracking_number"`
	OrderStatus    domain.OrderStatus `json:"order_status"`
}

func (h *Handler) HandleTracking(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	id := r.PathValue("id")
	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if order.ShopperID != shopper.ID && !shopper.Operator() {
		h.writeError(w, http.StatusForbidden, "you are not allowed to track this order")
		return
	}

	h.writeJSON(w, http.StatusOK, trackingResponse{
		TrackingNumber: order.TrackingNumber,
		OrderStatus:    order.OrderStatus,
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}
	if !shopper.Operator() {
		h.writeError(w, http.StatusForbidden, "operator role required")
		return
	}

	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "failed to delete order", "id", id)
		return
	}

	h.logger.Info("order deleted", "order_id", id, "deleted_by", shopper.ID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
