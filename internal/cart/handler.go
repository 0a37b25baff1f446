package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopflow/checkout-core/internal/domain"
	"github.com/shopflow/checkout-core/internal/identity"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Count     int    `json:"count"`
	Variant   string `json:"variant"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.service.AddOrUpdateItem(r.Context(), shopper.ID, req.ProductID, req.Count, req.Variant)
	if err != nil {
		h.writeDomainError(w, err, "failed to add item", "shopper_id", shopper.ID, "product_id", req.ProductID)
		return
	}

	h.logger.Info("item added to cart", "shopper_id", shopper.ID, "product_id", req.ProductID, "count", req.Count)
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), shopper.ID, req.ProductID, req.Count, req.Variant)
	if err != nil {
		h.writeDomainError(w, err, "failed to update item", "shopper_id", shopper.ID, "product_id", req.ProductID)
		return
	}

	h.logger.Info("cart item updated", "shopper_id", shopper.ID, "product_id", req.ProductID, "count", req.Count)
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), shopper.ID, productID)
	if err != nil {
		h.writeDomainError(w, err, "failed to remove item", "shopper_id", shopper.ID, "product_id", productID)
		return
	}

	h.logger.Info("item removed from cart", "shopper_id", shopper.ID, "product_id", productID)
	h.writeJSON(w, http.StatusOK, cart)
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) HandleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.service.ApplyCoupon(r.Context(), shopper.ID, req.Code)
	if err != nil {
		h.writeDomainError(w, err, "failed to apply coupon", "shopper_id", shopper.ID, "code", req.Code)
		return
	}

	h.logger.Info("coupon applied", "shopper_id", shopper.ID, "code", cart.CouponCode)
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	cart, err := h.service.RemoveCoupon(r.Context(), shopper.ID)
	if err != nil {
		h.writeDomainError(w, err, "failed to remove coupon", "shopper_id", shopper.ID)
		return
	}

	h.logger.Info("coupon removed", "shopper_id", shopper.ID)
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	cart, err := h.service.Clear(r.Context(), shopper.ID)
	if err != nil {
		h.writeDomainError(w, err, "failed to clear cart", "shopper_id", shopper.ID)
		return
	}

	h.logger.Info("cart cleared", "shopper_id", shopper.ID)
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	view, err := h.service.View(r.Context(), shopper.ID)
	if err != nil {
		h.writeDomainError(w, err, "failed to load cart", "shopper_id", shopper.ID)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrCouponExpired):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err.Error())
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
