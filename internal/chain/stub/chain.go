// Package stub provides an in-memory chain for tests and dry runs.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"rwa-portfolio/internal/chain"
	"rwa-portfolio/internal/evm"
)

// ErrNotFound is returned when a receipt is not known.
var ErrNotFound = errors.New("not found")

// Chain implements chain.Gateway in memory. Invest mints shares 1:1 with
// the amount, redeem burns them, and approve sets the allowance.
// Every method call is recorded by name.
type Chain struct {
	mu      sync.Mutex
	account string

	balances      map[string]*big.Int // contract|owner
	minimums      map[string]*big.Int // contract
	allowances    map[string]*big.Int // token|owner|spender
	paymentTokens map[string]string   // contract
	investments   map[string]chain.UserInvestment
	receipts      map[string]*evm.Receipt

	failures map[string]error
	txCount  int
	calls    []string

	omitEvents  bool
	revert      bool
	confirmGate chan struct{}
}

// New creates an empty stub chain sending from account.
func New(account string) *Chain {
	return &Chain{
		account:       account,
		balances:      make(map[string]*big.Int),
		minimums:      make(map[string]*big.Int),
		allowances:    make(map[string]*big.Int),
		paymentTokens: make(map[string]string),
		investments:   make(map[string]chain.UserInvestment),
		receipts:      make(map[string]*evm.Receipt),
		failures:      make(map[string]error),
	}
}

var _ chain.Gateway = (*Chain)(nil)

func key(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "|"))
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// SetBalance sets the share balance of owner in contract.
func (c *Chain) SetBalance(contract, owner string, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[key(contract, owner)] = clone(v)
}

// SetMinimum sets the minimum investment of contract.
func (c *Chain) SetMinimum(contract string, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minimums[key(contract)] = clone(v)
}

// SetAllowance sets the allowance of spender over owner's token balance.
func (c *Chain) SetAllowance(token, owner, spender string, v *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowances[key(token, owner, spender)] = clone(v)
}

// SetPaymentToken sets the paymentToken() result of contract.
func (c *Chain) SetPaymentToken(contract, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentTokens[key(contract)] = token
}

// SetUserInvestment overrides getUserInvestment(owner) of contract.
func (c *Chain) SetUserInvestment(contract, owner string, inv chain.UserInvestment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.investments[key(contract, owner)] = inv
}

// FailOn makes the named method return err. A nil err clears it.
func (c *Chain) FailOn(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, method)
		return
	}
	c.failures[method] = err
}

// OmitEvents makes mined receipts carry no logs.
func (c *Chain) OmitEvents(omit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.omitEvents = omit
}

// RevertTransactions makes mined receipts report a failed status.
func (c *Chain) RevertTransactions(revert bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revert = revert
}

// HoldConfirmations blocks WaitForReceipt until the returned function is called.
func (c *Chain) HoldConfirmations() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.confirmGate = gate
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns the recorded method names in call order.
func (c *Chain) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how often method was called.
func (c *Chain) CallCount(method string) int {
	n := 0
	for _, m := range c.Calls() {
		if m == method {
			n++
		}
	}
	return n
}

// record notes a call and returns the injected failure, if any.
// Caller must hold mu.
func (c *Chain) record(method string) error {
	c.calls = append(c.calls, method)
	return c.failures[method]
}

// Account returns the wallet address.
func (c *Chain) Account() string {
	return c.account
}

// ReadBalance returns the stored share balance.
func (c *Chain) ReadBalance(_ context.Context, contract, owner string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ReadBalance"); err != nil {
		return nil, err
	}
	return clone(c.balances[key(contract, owner)]), nil
}

// ReadMinimumInvestment returns the stored minimum.
func (c *Chain) ReadMinimumInvestment(_ context.Context, contract string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ReadMinimumInvestment"); err != nil {
		return nil, err
	}
	return clone(c.minimums[key(contract)]), nil
}

// ReadAllowance returns the stored allowance.
func (c *Chain) ReadAllowance(_ context.Context, token, owner, spender string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ReadAllowance"); err != nil {
		return nil, err
	}
	return clone(c.allowances[key(token, owner, spender)]), nil
}

// ReadUserInvestment returns the stored record, defaulting to the current
// balance with redemption allowed.
func (c *Chain) ReadUserInvestment(_ context.Context, contract, owner string) (chain.UserInvestment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ReadUserInvestment"); err != nil {
		return chain.UserInvestment{}, err
	}
	if inv, ok := c.investments[key(contract, owner)]; ok {
		return inv, nil
	}
	return chain.UserInvestment{
		Balance:          clone(c.balances[key(contract, owner)]),
		InvestmentAmount: new(big.Int),
		CanRedeem:        true,
	}, nil
}

// ReadPaymentToken returns the stored payment token or the zero address.
func (c *Chain) ReadPaymentToken(_ context.Context, contract string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ReadPaymentToken"); err != nil {
		return "", err
	}
	if token, ok := c.paymentTokens[key(contract)]; ok {
		return token, nil
	}
	return evm.ZeroAddress, nil
}

// SubmitApprove sets the allowance and mines a receipt.
func (c *Chain) SubmitApprove(_ context.Context, token, spender string, amount *big.Int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SubmitApprove"); err != nil {
		return "", err
	}
	if !c.revert {
		c.allowances[key(token, c.account, spender)] = clone(amount)
	}
	return c.mine(nil), nil
}

// SubmitInvest mints shares 1:1 and emits Invested.
func (c *Chain) SubmitInvest(_ context.Context, contract string, amount *big.Int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SubmitInvest"); err != nil {
		return "", err
	}

	var logs []evm.Log
	if !c.revert {
		k := key(contract, c.account)
		c.balances[k] = new(big.Int).Add(clone(c.balances[k]), amount)
		l, err := chain.EncodeEventLog(contract, chain.EventInvested, c.account, amount, amount)
		if err != nil {
			return "", err
		}
		logs = append(logs, l)
	}
	return c.mine(logs), nil
}

// SubmitRedeem burns shares and emits Redeemed. Burning more than the
// balance fails like a reverted estimate.
func (c *Chain) SubmitRedeem(_ context.Context, contract string, shares *big.Int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("SubmitRedeem"); err != nil {
		return "", err
	}

	k := key(contract, c.account)
	balance := clone(c.balances[k])
	if balance.Cmp(shares) < 0 {
		return "", &evm.RPCError{
			Code:    3,
			Message: "execution reverted",
			Data:    []byte(fmt.Sprintf("%q", evm.EncodeHex(evm.EncodeRevertReason("insufficient shares")))),
		}
	}

	var logs []evm.Log
	if !c.revert {
		c.balances[k] = balance.Sub(balance, shares)
		l, err := chain.EncodeEventLog(contract, chain.EventRedeemed, c.account, shares, shares)
		if err != nil {
			return "", err
		}
		logs = append(logs, l)
	}
	return c.mine(logs), nil
}

// mine stores a receipt for a new transaction. Caller must hold mu.
func (c *Chain) mine(logs []evm.Log) string {
	c.txCount++
	hash := fmt.Sprintf("0x%064x", c.txCount)

	status := evm.ReceiptStatusSuccess
	if c.revert {
		status = evm.ReceiptStatusFailed
	}
	if c.omitEvents {
		logs = nil
	}
	c.receipts[hash] = &evm.Receipt{
		TxHash:      hash,
		BlockNumber: uint64(c.txCount),
		Status:      status,
		Logs:        logs,
	}
	return hash
}

// WaitForReceipt returns the mined receipt, after any held confirmation is released.
func (c *Chain) WaitForReceipt(ctx context.Context, txHash string) (*evm.Receipt, error) {
	c.mu.Lock()
	err := c.record("WaitForReceipt")
	gate := c.confirmGate
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ErrNotFound
	}
	return receipt, nil
}
