package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopflow/checkout-core/internal/domain"
	"github.com/shopflow/checkout-core/internal/identity"
)

type Handler struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
}

func NewHandler(orchestrator *Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

type checkoutRequest struct {
	PaymentMethod       domain.PaymentMethod `json:"payment_method"`
	PaymentConfirmation json.RawMessage      `json:"payment_confirmation,omitempty"`
	IdempotencyToken    string               `json:"idempotency_token,omitempty"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	shopper, ok := identity.FromRequest(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing shopper identity")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orchestrator.Checkout(r.Context(), Request{
		ShopperID:           shopper.ID,
		PaymentMethod:       req.PaymentMethod,
		PaymentConfirmation: req.PaymentConfirmation,
		IdempotencyToken:    req.IdempotencyToken,
	})
	if err != nil {
		h.writeCheckoutError(w, err, shopper.ID)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error, shopperID string) {
	var shortfall *domain.StockShortfallError
	if errors.As(err, &shortfall) {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "insufficient stock",
			"products": shortfall.ProductIDs,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownOutcome):
		h.writeError(w, http.StatusGatewayTimeout, "checkout outcome unknown, retry with the same idempotency token")
	default:
		h.logger.Error("checkout failed", "error", err, "shopper_id", shopperID)
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
