// Package identity reads the caller identity established by the external auth
// collaborator. The gateway strips and re-sets these headers, so inside the
// trust boundary they are authoritative.
package identity

import "net/http"

const (
	HeaderShopperID   = "X-Shopper-ID"
	HeaderShopperRole = "X-Shopper-Role"

	RoleOperator = "operator"
)

type Shopper struct {
	ID   string
	Role string
}

func (s Shopper) Operator() bool { return s.Role == RoleOperator }

func FromRequest(r *http.Request) (Shopper, bool) {
	id := r.Header.Get(HeaderShopperID)
	if id == "" {
		return Shopper{}, false
	}
	return Shopper{ID: id, Role: r.Header.Get(HeaderShopperRole)}, true
}
