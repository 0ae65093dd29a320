package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0x00000000000000000000000000000000000000aa"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int32(18), cfg.TokenDecimals)
	assert.Equal(t, 30*time.Second, cfg.RPCTimeout)
	assert.Zero(t, cfg.ConfirmTimeout)
	assert.Equal(t, "@every 5m", cfg.ReconcileSchedule)
	assert.Empty(t, cfg.ContractAddresses)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("WALLET_ADDRESS", wallet)
	t.Setenv("PORT", "9090")
	t.Setenv("CONFIRM_TIMEOUT", "90s")
	t.Setenv("CONTRACT_ADDRESSES", "tbill=0x00000000000000000000000000000000000000c1, reit=0x00000000000000000000000000000000000000c2")
	t.Setenv("PAYMENT_TOKENS", "tbill=0x00000000000000000000000000000000000000d1")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, map[string]string{
		"tbill": "0x00000000000000000000000000000000000000c1",
		"reit":  "0x00000000000000000000000000000000000000c2",
	}, cfg.ContractAddresses)
	assert.Equal(t, "0x00000000000000000000000000000000000000d1", cfg.PaymentTokens["tbill"])
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_RequiresChainUnlessDryRun(t *testing.T) {
	t.Setenv("DRY_RUN", "false")
	t.Setenv("RPC_URL", "")
	t.Setenv("WALLET_ADDRESS", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC_URL")
	assert.Contains(t, err.Error(), "WALLET_ADDRESS")
}

func TestLoad_InvalidBindings(t *testing.T) {
	t.Setenv("DRY_RUN", "true")

	t.Setenv("CONTRACT_ADDRESSES", "tbill")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CONTRACT_ADDRESSES", "tbill=0x1,tbill=0x2")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CONTRACT_ADDRESSES", "tbill=not-an-address")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CONTRACT_ADDRESSES", "")
	t.Setenv("PAYMENT_TOKENS", "tbill=0x0000000000000000000000000000000000000000")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseBindings(t *testing.T) {
	got, err := parseBindings(" a = 0x1 ,, b=0x2 ")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "0x1", "b": "0x2"}, got)

	got, err = parseBindings("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
