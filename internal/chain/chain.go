// Package chain exposes the RWA pool and ERC-20 contract operations used by
// the transaction lifecycle and reconciliation, on top of the evm transport.
package chain

import (
	"context"
	"math/big"

	"rwa-portfolio/internal/evm"
)

// Reader performs read-only contract calls.
type Reader interface {
	ReadBalance(ctx context.Context, contract, owner string) (*big.Int, error)
	ReadMinimumInvestment(ctx context.Context, contract string) (*big.Int, error)
	ReadAllowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
	ReadUserInvestment(ctx context.Context, contract, owner string) (UserInvestment, error)
	ReadPaymentToken(ctx context.Context, contract string) (string, error)
}

// Writer submits transactions from the wallet account and waits for them.
type Writer interface {
	SubmitApprove(ctx context.Context, token, spender string, amount *big.Int) (string, error)
	SubmitInvest(ctx context.Context, contract string, amount *big.Int) (string, error)
	SubmitRedeem(ctx context.Context, contract string, shares *big.Int) (string, error)

	// WaitForReceipt blocks until the transaction is mined or ctx is done.
	// A mined but reverted transaction is returned with a failed status,
	// not as an error.
	WaitForReceipt(ctx context.Context, txHash string) (*evm.Receipt, error)
}

// Gateway is the full chain surface bound to one wallet account.
type Gateway interface {
	Reader
	Writer

	// Account returns the wallet address transactions are sent from.
	Account() string
}

// UserInvestment is the per-investor record of an RWA pool.
type UserInvestment struct {
	Balance          *big.Int
	InvestmentTime   int64 // unix seconds
	InvestmentAmount *big.Int
	CanRedeem        bool
}

// Contract function signatures.
const (
	sigBalanceOf         = "balanceOf(address)"
	sigMinimumInvestment = "minimumInvestment()"
	sigPaymentToken      = "paymentToken()"
	sigGetUserInvestment = "getUserInvestment(address)"
	sigInvest            = "invest(uint256)"
	sigRedeem            = "redeem(uint256)"
	sigAllowance         = "allowance(address,address)"
	sigApprove           = "approve(address,uint256)"
)
