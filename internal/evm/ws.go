package evm

import "context"

// HeadSubscriber defines the EVM WebSocket subscription interface.
type HeadSubscriber interface {
	// SubscribeNewHeads streams new block headers.
	SubscribeNewHeads(ctx context.Context) (<-chan Head, error)

	// Close closes the WebSocket connection.
	Close() error
}

// Head is a newHeads notification.
type Head struct {
	Number uint64
	Hash   string
}
