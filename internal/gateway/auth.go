package gateway

import (
	"net/http"
	"strings"

	"github.com/shopflow/checkout-core/internal/identity"
)

// Authenticator resolves bearer tokens to shoppers. The token table is static
// configuration; session issuance lives outside this system.
type Authenticator struct {
	tokens map[string]identity.Shopper
}

func NewAuthenticator(tokens map[string]identity.Shopper) *Authenticator {
	return &Authenticator{tokens: tokens}
}

func (a *Authenticator) Resolve(r *http.Request) (identity.Shopper, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return identity.Shopper{}, false
	}
	shopper, ok := a.tokens[token]
	return shopper, ok
}

// ParseTokenTable parses "token:shopper-id[:role]" entries separated by
// commas, the format of the AUTH_TOKENS environment variable.
func ParseTokenTable(raw string) map[string]identity.Shopper {
	tokens := map[string]identity.Shopper{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		shopper := identity.Shopper{ID: parts[1]}
		if len(parts) == 3 {
			shopper.Role = parts[2]
		}
		tokens[parts[0]] = shopper
	}
	return tokens
}
