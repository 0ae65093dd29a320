package evm

import "context"

// RPCClient defines the EVM JSON-RPC HTTP interface.
type RPCClient interface {
	// Call executes a read-only contract call at the latest block.
	Call(ctx context.Context, msg CallMsg) ([]byte, error)

	// SendTransaction asks the node-managed account in msg.From to sign and
	// broadcast a transaction. Returns the transaction hash.
	SendTransaction(ctx context.Context, msg CallMsg) (string, error)

	// TransactionReceipt returns the receipt of a mined transaction,
	// or nil if the transaction is still pending.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// ChainID returns the chain ID of the connected network.
	ChainID(ctx context.Context) (uint64, error)
}
