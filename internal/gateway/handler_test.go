package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopflow/checkout-core/internal/identity"
)

func testAuth() *Authenticator {
	return NewAuthenticator(map[string]identity.Shopper{
		"shopper-token":  {ID: "shopper-1"},
		"operator-token": {ID: "ops-1", Role: identity.RoleOperator},
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_HandleCheckout(t *testing.T) {
	t.Run("proxies an authenticated cart request with identity headers set", func(t *testing.T) {
		checkoutServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/cart" {
				t.Errorf("expected /cart, got %s", r.URL.Path)
			}
			if got := r.Header.Get(identity.HeaderShopperID); got != "shopper-1" {
				t.Errorf("expected shopper-1 identity, got %q", got)
			}
			if got := r.Header.Get(identity.HeaderShopperRole); got != "" {
				t.Errorf("expected no role header for a plain shopper, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"items":[]}`))
		}))
		defer checkoutServer.Close()

		handler := NewHandler(
			NewServiceProxy(checkoutServer.URL, checkoutServer.Client()),
			NewServiceProxy("http://unused", http.DefaultClient),
			testAuth(),
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer shopper-token")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if rec.Body.String() != `{"items":[]}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("discards spoofed identity headers", func(t *testing.T) {
		checkoutServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get(identity.HeaderShopperID); got != "shopper-1" {
				t.Errorf("expected the resolved identity, got %q", got)
			}
			if got := r.Header.Get(identity.HeaderShopperRole); got != "" {
				t.Errorf("expected the spoofed role to be stripped, got %q", got)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer checkoutServer.Close()

		handler := NewHandler(
			NewServiceProxy(checkoutServer.URL, checkoutServer.Client()),
			NewServiceProxy("http://unused", http.DefaultClient),
			testAuth(),
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer shopper-token")
		req.Header.Set(identity.HeaderShopperID, "someone-else")
		req.Header.Set(identity.HeaderShopperRole, identity.RoleOperator)
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("forwards the operator role", func(t *testing.T) {
		checkoutServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get(identity.HeaderShopperRole); got != identity.RoleOperator {
				t.Errorf("expected operator role, got %q", got)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer checkoutServer.Close()

		handler := NewHandler(
			NewServiceProxy(checkoutServer.URL, checkoutServer.Client()),
			NewServiceProxy("http://unused", http.DefaultClient),
			testAuth(),
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodPatch, "/orders/abc/status", strings.NewReader(`{"status":"Dispatched"}`))
		req.Header.Set("Authorization", "Bearer operator-token")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("rejects a missing or unknown token", func(t *testing.T) {
		handler := NewHandler(
			NewServiceProxy("http://unused", http.DefaultClient),
			NewServiceProxy("http://unused", http.DefaultClient),
			testAuth(),
			testLogger(),
		)

		for _, header := range []string{"", "Bearer nope", "Basic abc"} {
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()

			handler.HandleCheckout(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("header %q: expected status 401, got %d", header, rec.Code)
			}
		}
	})

	t.Run("returns 502 when the checkout service is unavailable", func(t *testing.T) {
		handler := NewHandler(
			NewServiceProxy("http://localhost:99999", &http.Client{}),
			NewServiceProxy("http://unused", http.DefaultClient),
			testAuth(),
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer shopper-token")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}

func TestHandler_HandleCatalog(t *testing.T) {
	t.Run("rewrites /catalog onto the catalog service without auth", func(t *testing.T) {
		catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/products/p1" {
				t.Errorf("expected /products/p1, got %s", r.URL.Path)
			}
			if r.Header.Get(identity.HeaderShopperID) != "" {
				t.Error("expected no identity header on catalog traffic")
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id":"p1","price":2500}`))
		}))
		defer catalogServer.Close()

		handler := NewHandler(
			NewServiceProxy("http://unused", http.DefaultClient),
			NewServiceProxy(catalogServer.URL, catalogServer.Client()),
			testAuth(),
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/catalog/p1", nil)
		rec := httptest.NewRecorder()

		handler.HandleCatalog(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("preserves downstream error status", func(t *testing.T) {
		catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"product not found"}`))
		}))
		defer catalogServer.Close()

		handler := NewHandler(
			NewServiceProxy("http://unused", http.DefaultClient),
			NewServiceProxy(catalogServer.URL, catalogServer.Client()),
			testAuth(),
			testLogger(),
		)

		req := httptest.NewRequest(http.MethodGet, "/catalog/unknown", nil)
		rec := httptest.NewRecorder()

		handler.HandleCatalog(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestParseTokenTable(t *testing.T) {
	tokens := ParseTokenTable("t1:shopper-1, t2:ops-1:operator ,,bad,t3:")
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d: %v", len(tokens), tokens)
	}
	if tokens["t1"] != (identity.Shopper{ID: "shopper-1"}) {
		t.Errorf("unexpected shopper for t1: %+v", tokens["t1"])
	}
	if tokens["t2"] != (identity.Shopper{ID: "ops-1", Role: "operator"}) {
		t.Errorf("unexpected shopper for t2: %+v", tokens["t2"])
	}
}
