package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-portfolio/internal/evm"
)

const (
	testAccount  = "0x00000000000000000000000000000000000000a1"
	testContract = "0x00000000000000000000000000000000000000c1"
	testToken    = "0x00000000000000000000000000000000000000d1"
)

// fakeRPC answers eth_call by selector and serves receipts after a number of polls.
type fakeRPC struct {
	mu           sync.Mutex
	callResults  map[string][]byte // hex selector -> return data
	sent         []evm.CallMsg
	receipt      *evm.Receipt
	pendingPolls int
	polls        int
}

func (f *fakeRPC) Call(_ context.Context, msg evm.CallMsg) ([]byte, error) {
	out, ok := f.callResults[evm.EncodeHex(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, msg evm.CallMsg) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return "0xhash", nil
}

func (f *fakeRPC) TransactionReceipt(_ context.Context, _ string) (*evm.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.polls <= f.pendingPolls {
		return nil, nil
	}
	return f.receipt, nil
}

func (f *fakeRPC) BlockNumber(context.Context) (uint64, error) { return 1, nil }
func (f *fakeRPC) ChainID(context.Context) (uint64, error)     { return 1, nil }

func words(values ...*big.Int) []byte {
	var out []byte
	for _, v := range values {
		w, _ := evm.Uint256Word(v)
		out = append(out, w[:]...)
	}
	return out
}

func selectorHex(sig string) string {
	return evm.EncodeHex(evm.Selector(sig))
}

func newTestClient(t *testing.T, rpc evm.RPCClient, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(rpc, testAccount, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidAccount(t *testing.T) {
	_, err := NewClient(&fakeRPC{}, "0x123", zerolog.Nop())
	assert.Error(t, err)
}

func TestClient_ReadUserInvestment(t *testing.T) {
	rpc := &fakeRPC{callResults: map[string][]byte{
		selectorHex(sigGetUserInvestment): words(big.NewInt(500), big.NewInt(1700000000), big.NewInt(450), big.NewInt(1)),
	}}
	c := newTestClient(t, rpc)

	inv, err := c.ReadUserInvestment(context.Background(), testContract, testAccount)
	require.NoError(t, err)

	assert.Equal(t, int64(500), inv.Balance.Int64())
	assert.Equal(t, int64(1700000000), inv.InvestmentTime)
	assert.Equal(t, int64(450), inv.InvestmentAmount.Int64())
	assert.True(t, inv.CanRedeem)
}

func TestClient_ReadUserInvestment_ShortData(t *testing.T) {
	rpc := &fakeRPC{callResults: map[string][]byte{
		selectorHex(sigGetUserInvestment): words(big.NewInt(500)),
	}}
	c := newTestClient(t, rpc)

	_, err := c.ReadUserInvestment(context.Background(), testContract, testAccount)
	assert.Error(t, err)
}

func TestClient_ReadsAndPaymentToken(t *testing.T) {
	tokenWord, _ := evm.AddressWord(testToken)
	rpc := &fakeRPC{callResults: map[string][]byte{
		selectorHex(sigBalanceOf):         words(big.NewInt(42)),
		selectorHex(sigMinimumInvestment): words(big.NewInt(100)),
		selectorHex(sigAllowance):         words(big.NewInt(7)),
		selectorHex(sigPaymentToken):      tokenWord[:],
	}}
	c := newTestClient(t, rpc)
	ctx := context.Background()

	bal, err := c.ReadBalance(ctx, testContract, testAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())

	minimum, err := c.ReadMinimumInvestment(ctx, testContract)
	require.NoError(t, err)
	assert.Equal(t, int64(100), minimum.Int64())

	allowance, err := c.ReadAllowance(ctx, testToken, testAccount, testContract)
	require.NoError(t, err)
	assert.Equal(t, int64(7), allowance.Int64())

	token, err := c.ReadPaymentToken(ctx, testContract)
	require.NoError(t, err)
	assert.Equal(t, testToken, token)
}

func TestClient_SubmitInvest(t *testing.T) {
	rpc := &fakeRPC{}
	c := newTestClient(t, rpc)

	hash, err := c.SubmitInvest(context.Background(), testContract, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)

	require.Len(t, rpc.sent, 1)
	msg := rpc.sent[0]
	assert.Equal(t, testAccount, msg.From)
	assert.Equal(t, testContract, msg.To)
	assert.True(t, bytes.Equal(evm.Selector(sigInvest), msg.Data[:4]))
	assert.Len(t, msg.Data, 4+evm.WordSize)
}

func TestClient_SubmitApprove_NegativeAmount(t *testing.T) {
	c := newTestClient(t, &fakeRPC{})
	_, err := c.SubmitApprove(context.Background(), testToken, testContract, big.NewInt(-1))
	assert.Error(t, err)
}

func TestClient_WaitForReceipt_Interval(t *testing.T) {
	rpc := &fakeRPC{
		receipt:      &evm.Receipt{TxHash: "0xhash", Status: evm.ReceiptStatusSuccess},
		pendingPolls: 2,
	}
	c := newTestClient(t, rpc, WithPollInterval(5*time.Millisecond))

	receipt, err := c.WaitForReceipt(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, 3, rpc.polls)
}

// fakeHeads emits heads on demand.
type fakeHeads struct {
	ch chan evm.Head
}

func (f *fakeHeads) SubscribeNewHeads(context.Context) (<-chan evm.Head, error) {
	return f.ch, nil
}

func (f *fakeHeads) Close() error { return nil }

func TestClient_WaitForReceipt_Heads(t *testing.T) {
	rpc := &fakeRPC{
		receipt:      &evm.Receipt{TxHash: "0xhash", Status: evm.ReceiptStatusSuccess},
		pendingPolls: 1,
	}
	heads := &fakeHeads{ch: make(chan evm.Head, 1)}
	c := newTestClient(t, rpc, WithHeadSubscriber(heads), WithPollInterval(time.Hour))

	heads.ch <- evm.Head{Number: 10}

	receipt, err := c.WaitForReceipt(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.NotNil(t, receipt)
	assert.Equal(t, 2, rpc.polls)
}

func TestClient_WaitForReceipt_Cancelled(t *testing.T) {
	rpc := &fakeRPC{pendingPolls: 1 << 30}
	c := newTestClient(t, rpc, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.WaitForReceipt(ctx, "0xhash")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
