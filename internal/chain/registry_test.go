package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rwa-portfolio/internal/domain"
)

func TestRegistry_ContractAddress(t *testing.T) {
	r := NewRegistry(map[string]string{"tbill": " 0xoverride "}, nil)

	addr, ok := r.ContractAddress(&domain.Asset{ID: "tbill", TokenAddress: "0xcatalog"})
	assert.True(t, ok)
	assert.Equal(t, "0xoverride", addr)

	addr, ok = r.ContractAddress(&domain.Asset{ID: "estate", TokenAddress: "0xcatalog"})
	assert.True(t, ok)
	assert.Equal(t, "0xcatalog", addr)

	_, ok = r.ContractAddress(&domain.Asset{ID: "estate"})
	assert.False(t, ok)

	_, ok = r.ContractAddress(nil)
	assert.False(t, ok)
}

func TestRegistry_PaymentToken(t *testing.T) {
	r := NewRegistry(nil, map[string]string{"tbill": "0xusdc"})

	token, ok := r.PaymentToken("tbill")
	assert.True(t, ok)
	assert.Equal(t, "0xusdc", token)

	_, ok = r.PaymentToken("estate")
	assert.False(t, ok)

	var nilRegistry *Registry
	_, ok = nilRegistry.PaymentToken("tbill")
	assert.False(t, ok)
}
