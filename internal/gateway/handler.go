// Package gateway is the public edge: it terminates shopper authentication
// and forwards traffic to the checkout and catalog services. Inbound identity
// headers are discarded; only the gateway's own resolution crosses the trust
// boundary.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopflow/checkout-core/internal/identity"
)

type Handler struct {
	checkoutProxy *ServiceProxy
	catalogProxy  *ServiceProxy
	auth          *Authenticator
	logger        *slog.Logger
}

func NewHandler(checkoutProxy, catalogProxy *ServiceProxy, auth *Authenticator, logger *slog.Logger) *Handler {
	return &Handler{
		checkoutProxy: checkoutProxy,
		catalogProxy:  catalogProxy,
		auth:          auth,
		logger:        logger,
	}
}

// HandleCheckout fronts the cart and order routes. Paths map 1:1 onto the
// checkout service.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	shopper, ok := h.auth.Resolve(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}

	h.proxyRequest(w, r, h.checkoutProxy, r.URL.Path, &shopper)
}

// HandleCatalog serves product browsing. No authentication required.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	path := strings.Replace(r.URL.Path, "/catalog", "/products", 1)
	h.proxyRequest(w, r, h.catalogProxy, path, nil)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string, shopper *identity.Shopper) {
	r.Header.Del(identity.HeaderShopperID)
	r.Header.Del(identity.HeaderShopperRole)
	if shopper != nil {
		r.Header.Set(identity.HeaderShopperID, shopper.ID)
		if shopper.Role != "" {
			r.Header.Set(identity.HeaderShopperRole, shopper.Role)
		}
	}

	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
