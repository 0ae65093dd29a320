package main

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog"

	"rwa-portfolio/internal/chain"
	"rwa-portfolio/internal/chain/stub"
	"rwa-portfolio/internal/config"
	"rwa-portfolio/internal/evm"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/storage"
)

//go:embed demo_assets.json
var demoAssets []byte

// Dry-run defaults.
const (
	demoWallet       = "0x00000000000000000000000000000000000000de"
	demoPaymentToken = "0x000000000000000000000000000000000000dead"
)

// createGateway returns the chain the service transacts on and a func
// releasing its connections.
func createGateway(ctx context.Context, cfg *config.Config, catalog storage.AssetCatalog, log zerolog.Logger) (chain.Gateway, func(), error) {
	if cfg.DryRun {
		gw, err := dryRunChain(ctx, cfg, catalog)
		if err != nil {
			return nil, nil, err
		}
		log.Warn().Str("wallet", gw.Account()).Msg("dry run: transactions go to an in-memory chain")
		return gw, func() {}, nil
	}

	rpc := evm.NewHTTPClient(cfg.RPCURL,
		evm.WithTimeout(cfg.RPCTimeout),
		evm.WithMaxRetries(cfg.RPCMaxRetries),
		evm.WithObserver(observability.RecordRPCCall),
	)
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("eth_chainId: %w", err)
	}

	opts := []chain.ClientOption{chain.WithPollInterval(cfg.PollInterval)}
	closeFn := func() {}
	if cfg.WSURL != "" {
		ws, err := evm.NewWSClient(ctx, cfg.WSURL, nil, log)
		if err != nil {
			// Receipts are still found by polling.
			log.Warn().Err(err).Str("ws_url", cfg.WSURL).Msg("websocket unavailable, polling for receipts")
		} else {
			opts = append(opts, chain.WithHeadSubscriber(ws))
			closeFn = func() {
				if err := ws.Close(); err != nil {
					log.Warn().Err(err).Msg("close websocket")
				}
			}
		}
	}

	client, err := chain.NewClient(rpc, cfg.WalletAddress, log, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	log.Info().
		Uint64("chain_id", chainID).
		Str("wallet", client.Account()).
		Bool("websocket", cfg.WSURL != "").
		Msg("connected to chain")
	return client, closeFn, nil
}

// dryRunChain builds an in-memory chain where every catalog asset with a
// contract accepts a demo payment token.
func dryRunChain(ctx context.Context, cfg *config.Config, catalog storage.AssetCatalog) (*stub.Chain, error) {
	wallet := cfg.WalletAddress
	if wallet == "" {
		wallet = demoWallet
	}
	c := stub.New(wallet)

	assets, err := catalog.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	registry := chain.NewRegistry(cfg.ContractAddresses, cfg.PaymentTokens)
	for _, a := range assets {
		contract, ok := registry.ContractAddress(a)
		if !ok {
			continue
		}
		token, ok := registry.PaymentToken(a.ID)
		if !ok {
			token = demoPaymentToken
		}
		c.SetPaymentToken(contract, token)
	}
	return c, nil
}
