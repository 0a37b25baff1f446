package gateway

import (
	"context"
	"net/http"

	"github.com/shopflow/checkout-core/internal/identity"
)

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// ForwardRequest replays the request against the backing service. Only
// Content-Type and the identity headers cross; everything else the shopper
// sent stays at the edge.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, p.baseURL+path, r.Body)
	if err != nil {
		return nil, err
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := r.Header.Get(identity.HeaderShopperID); id != "" {
		req.Header.Set(identity.HeaderShopperID, id)
	}
	if role := r.Header.Get(identity.HeaderShopperRole); role != "" {
		req.Header.Set(identity.HeaderShopperRole, role)
	}

	return p.client.Do(req)
}
