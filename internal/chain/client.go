package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"rwa-portfolio/internal/evm"
)

// DefaultPollInterval is the receipt polling interval without a head subscription.
const DefaultPollInterval = 2 * time.Second

// Client implements Gateway over JSON-RPC. Transactions are sent with
// eth_sendTransaction, so the node or wallet behind the endpoint signs them.
type Client struct {
	rpc          evm.RPCClient
	heads        evm.HeadSubscriber
	account      string
	pollInterval time.Duration
	log          zerolog.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHeadSubscriber drives receipt polling from newHeads notifications.
func WithHeadSubscriber(h evm.HeadSubscriber) ClientOption {
	return func(c *Client) {
		c.heads = h
	}
}

// WithPollInterval sets the fallback receipt polling interval.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient creates a chain client sending from account.
func NewClient(rpc evm.RPCClient, account string, log zerolog.Logger, opts ...ClientOption) (*Client, error) {
	if !evm.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid wallet account %q", account)
	}
	c := &Client{
		rpc:          rpc,
		account:      account,
		pollInterval: DefaultPollInterval,
		log:          log.With().Str("component", "chain").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Gateway = (*Client)(nil)

// Account returns the wallet address.
func (c *Client) Account() string {
	return c.account
}

// callWords runs eth_call and returns at least n result words.
func (c *Client) callWords(ctx context.Context, contract string, n int, signature string, args ...evm.Word) ([]evm.Word, error) {
	out, err := c.rpc.Call(ctx, evm.CallMsg{
		From: c.account,
		To:   contract,
		Data: evm.PackCall(signature, args...),
	})
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", signature, contract, err)
	}
	words, err := evm.Words(out)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", signature, err)
	}
	if len(words) < n {
		return nil, fmt.Errorf("decode %s: expected %d words, got %d", signature, n, len(words))
	}
	return words, nil
}

// ReadBalance returns the pool share balance of owner in base units.
func (c *Client) ReadBalance(ctx context.Context, contract, owner string) (*big.Int, error) {
	ownerWord, err := evm.AddressWord(owner)
	if err != nil {
		return nil, err
	}
	words, err := c.callWords(ctx, contract, 1, sigBalanceOf, ownerWord)
	if err != nil {
		return nil, err
	}
	return words[0].Big(), nil
}

// ReadMinimumInvestment returns the pool minimum in payment-token base units.
func (c *Client) ReadMinimumInvestment(ctx context.Context, contract string) (*big.Int, error) {
	words, err := c.callWords(ctx, contract, 1, sigMinimumInvestment)
	if err != nil {
		return nil, err
	}
	return words[0].Big(), nil
}

// ReadAllowance returns the ERC-20 allowance of spender over owner's tokens.
func (c *Client) ReadAllowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	ownerWord, err := evm.AddressWord(owner)
	if err != nil {
		return nil, err
	}
	spenderWord, err := evm.AddressWord(spender)
	if err != nil {
		return nil, err
	}
	words, err := c.callWords(ctx, token, 1, sigAllowance, ownerWord, spenderWord)
	if err != nil {
		return nil, err
	}
	return words[0].Big(), nil
}

// ReadUserInvestment returns (balance, investmentTime, investmentAmount, canRedeem).
func (c *Client) ReadUserInvestment(ctx context.Context, contract, owner string) (UserInvestment, error) {
	ownerWord, err := evm.AddressWord(owner)
	if err != nil {
		return UserInvestment{}, err
	}
	words, err := c.callWords(ctx, contract, 4, sigGetUserInvestment, ownerWord)
	if err != nil {
		return UserInvestment{}, err
	}
	invested := words[1].Big()
	if !invested.IsInt64() {
		return UserInvestment{}, fmt.Errorf("decode %s: investment time overflows int64", sigGetUserInvestment)
	}
	return UserInvestment{
		Balance:          words[0].Big(),
		InvestmentTime:   invested.Int64(),
		InvestmentAmount: words[2].Big(),
		CanRedeem:        words[3].Bool(),
	}, nil
}

// ReadPaymentToken returns the ERC-20 the pool accepts.
func (c *Client) ReadPaymentToken(ctx context.Context, contract string) (string, error) {
	words, err := c.callWords(ctx, contract, 1, sigPaymentToken)
	if err != nil {
		return "", err
	}
	return words[0].Address(), nil
}

func (c *Client) send(ctx context.Context, to, signature string, args ...evm.Word) (string, error) {
	hash, err := c.rpc.SendTransaction(ctx, evm.CallMsg{
		From: c.account,
		To:   to,
		Data: evm.PackCall(signature, args...),
	})
	if err != nil {
		return "", err
	}
	c.log.Info().Str("to", to).Str("fn", signature).Str("tx", hash).Msg("transaction submitted")
	return hash, nil
}

// SubmitApprove approves spender for amount of token.
func (c *Client) SubmitApprove(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	spenderWord, err := evm.AddressWord(spender)
	if err != nil {
		return "", err
	}
	amountWord, err := evm.Uint256Word(amount)
	if err != nil {
		return "", err
	}
	return c.send(ctx, token, sigApprove, spenderWord, amountWord)
}

// SubmitInvest calls invest(amount) on the pool.
func (c *Client) SubmitInvest(ctx context.Context, contract string, amount *big.Int) (string, error) {
	amountWord, err := evm.Uint256Word(amount)
	if err != nil {
		return "", err
	}
	return c.send(ctx, contract, sigInvest, amountWord)
}

// SubmitRedeem calls redeem(shares) on the pool.
func (c *Client) SubmitRedeem(ctx context.Context, contract string, shares *big.Int) (string, error) {
	sharesWord, err := evm.Uint256Word(shares)
	if err != nil {
		return "", err
	}
	return c.send(ctx, contract, sigRedeem, sharesWord)
}

// WaitForReceipt polls for the receipt on every new head, or on an interval
// when no head subscription is available. Transient read errors are logged
// and polling continues until ctx is done.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*evm.Receipt, error) {
	if receipt := c.pollReceipt(ctx, txHash); receipt != nil {
		return receipt, nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var heads <-chan evm.Head
	if c.heads != nil {
		ch, err := c.heads.SubscribeNewHeads(subCtx)
		if err != nil {
			c.log.Warn().Err(err).Msg("head subscription unavailable, polling on interval")
		} else {
			heads = ch
		}
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case _, ok := <-heads:
			if !ok {
				heads = nil
				continue
			}
		case <-ticker.C:
			if heads != nil {
				// Heads drive polling while the subscription is live.
				continue
			}
		}

		if receipt := c.pollReceipt(ctx, txHash); receipt != nil {
			return receipt, nil
		}
	}
}

func (c *Client) pollReceipt(ctx context.Context, txHash string) *evm.Receipt {
	receipt, err := c.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Debug().Err(err).Str("tx", txHash).Msg("receipt poll failed")
		}
		return nil
	}
	return receipt
}
