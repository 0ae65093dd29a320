package lifecycle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"rwa-portfolio/internal/chain"
	"rwa-portfolio/internal/evm"
)

// AllowanceCheck is the result of EnsureAllowance.
type AllowanceCheck struct {
	NeedsApproval bool
	Allowance     *big.Int
}

// ApprovalCoordinator makes sure a pool contract may pull the payment token
// before an investment. Approval and invest are separate transactions.
type ApprovalCoordinator struct {
	chain    chain.Gateway
	registry *chain.Registry
	log      zerolog.Logger
}

// NewApprovalCoordinator creates a coordinator. registry may be nil.
func NewApprovalCoordinator(gw chain.Gateway, registry *chain.Registry, log zerolog.Logger) *ApprovalCoordinator {
	return &ApprovalCoordinator{
		chain:    gw,
		registry: registry,
		log:      log.With().Str("component", "approval").Logger(),
	}
}

// EnsureAllowance reads the current allowance of spender on token.
// NeedsApproval is true iff the allowance is below required.
func (a *ApprovalCoordinator) EnsureAllowance(ctx context.Context, owner, spender, token string, required *big.Int) (AllowanceCheck, error) {
	allowance, err := a.chain.ReadAllowance(ctx, token, owner, spender)
	if err != nil {
		return AllowanceCheck{}, fmt.Errorf("read allowance: %w", err)
	}
	return AllowanceCheck{
		NeedsApproval: allowance.Cmp(required) < 0,
		Allowance:     allowance,
	}, nil
}

// Approve submits an approval of amount for spender and returns its hash.
// The caller waits for the receipt.
func (a *ApprovalCoordinator) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	txHash, err := a.chain.SubmitApprove(ctx, token, spender, amount)
	if err != nil {
		return "", err
	}
	a.log.Info().
		Str("token", token).
		Str("spender", spender).
		Str("amount", amount.String()).
		Str("tx_hash", txHash).
		Msg("approval submitted")
	return txHash, nil
}

// ResolvePaymentToken returns the ERC-20 an asset's pool is paid in: the
// configured binding if any, else the pool's paymentToken().
func (a *ApprovalCoordinator) ResolvePaymentToken(ctx context.Context, assetID, contract string) (string, error) {
	if token, ok := a.registry.PaymentToken(assetID); ok {
		if !evm.IsHexAddress(token) || evm.IsZeroAddress(token) {
			return "", newError(KindConfiguration, fmt.Sprintf("invalid payment token %q configured for %s", token, assetID), nil)
		}
		return token, nil
	}

	token, err := a.chain.ReadPaymentToken(ctx, contract)
	if err != nil {
		return "", classifyReadError(err, "payment token")
	}
	if !evm.IsHexAddress(token) || evm.IsZeroAddress(token) {
		return "", newError(KindConfiguration, "no payment token bound for "+assetID, nil)
	}
	return token, nil
}
