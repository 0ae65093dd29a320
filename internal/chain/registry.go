package chain

import (
	"strings"

	"rwa-portfolio/internal/domain"
)

// Registry resolves contract and payment-token addresses for assets.
// Configured overrides win over the catalog's token address.
type Registry struct {
	contracts     map[string]string // asset ID -> pool contract
	paymentTokens map[string]string // asset ID -> ERC-20
}

// NewRegistry creates a registry from configured bindings. Either map may be nil.
func NewRegistry(contracts, paymentTokens map[string]string) *Registry {
	r := &Registry{
		contracts:     make(map[string]string, len(contracts)),
		paymentTokens: make(map[string]string, len(paymentTokens)),
	}
	for k, v := range contracts {
		r.contracts[k] = strings.TrimSpace(v)
	}
	for k, v := range paymentTokens {
		r.paymentTokens[k] = strings.TrimSpace(v)
	}
	return r
}

// ContractAddress returns the pool contract for asset, or false if none is bound.
func (r *Registry) ContractAddress(asset *domain.Asset) (string, bool) {
	if asset == nil {
		return "", false
	}
	if r != nil {
		if addr := r.contracts[asset.ID]; addr != "" {
			return addr, true
		}
	}
	if addr := strings.TrimSpace(asset.TokenAddress); addr != "" {
		return addr, true
	}
	return "", false
}

// PaymentToken returns the configured payment token for an asset.
func (r *Registry) PaymentToken(assetID string) (string, bool) {
	if r == nil {
		return "", false
	}
	addr := r.paymentTokens[assetID]
	return addr, addr != ""
}
