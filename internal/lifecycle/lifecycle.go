// Package lifecycle drives invest and redeem transactions from intent to
// settlement: validation, optional token approval, submission, confirmation,
// event decoding, ledger persistence and a holdings refresh.
//
// A run never returns an error to its caller. Every outcome, including
// validation and configuration problems, is a terminal transition.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rwa-portfolio/internal/chain"
	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/evm"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/reconcile"
	"rwa-portfolio/internal/storage"
)

// Recorder persists confirmed transactions, idempotent on tx hash.
type Recorder interface {
	Record(ctx context.Context, rec domain.TransactionRecord) (*domain.TransactionRecord, bool, error)
}

// Holdings is the authoritative view of an owner's holdings.
type Holdings interface {
	Holding(ctx context.Context, owner, assetID string) (float64, error)
	Refresh(ctx context.Context, owner string) (*reconcile.Report, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Chain    chain.Gateway
	Registry *chain.Registry
	Catalog  storage.AssetCatalog
	Recorder Recorder
	Holdings Holdings
}

// Config configures an Engine.
type Config struct {
	// Decimals of the payment token and pool shares.
	Decimals int32

	// ConfirmTimeout bounds the wait for each receipt. Zero waits until
	// the run is cancelled.
	ConfirmTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{Decimals: evm.DefaultDecimals}
}

// Engine starts lifecycle runs. It is safe for concurrent use; runs on
// different assets proceed independently.
type Engine struct {
	deps      Deps
	cfg       Config
	approvals *ApprovalCoordinator
	tracker   *intentTracker
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine creates an engine.
func NewEngine(deps Deps, cfg Config, log zerolog.Logger) (*Engine, error) {
	if deps.Chain == nil || deps.Catalog == nil || deps.Recorder == nil || deps.Holdings == nil {
		return nil, errors.New("lifecycle: chain, catalog, recorder and holdings are required")
	}
	if cfg.Decimals <= 0 {
		cfg.Decimals = evm.DefaultDecimals
	}
	return &Engine{
		deps:      deps,
		cfg:       cfg,
		approvals: NewApprovalCoordinator(deps.Chain, deps.Registry, log),
		tracker:   newIntentTracker(),
		log:       log.With().Str("component", "lifecycle").Logger(),
		now:       time.Now,
	}, nil
}

// Approvals returns the engine's approval coordinator.
func (e *Engine) Approvals() *ApprovalCoordinator { return e.approvals }

// InFlight returns the number of runs not yet terminal.
func (e *Engine) InFlight() int { return e.tracker.active() }

// StartInvest starts investing amount currency units into an asset.
func (e *Engine) StartInvest(ctx context.Context, assetID string, amount float64) *Run {
	return e.start(ctx, domain.IntentInvest, assetID, amount)
}

// StartRedeem starts redeeming shares of an asset.
func (e *Engine) StartRedeem(ctx context.Context, assetID string, shares float64) *Run {
	return e.start(ctx, domain.IntentRedeem, assetID, shares)
}

func (e *Engine) start(ctx context.Context, kind domain.IntentKind, assetID string, amount float64) *Run {
	ctx, cancel := context.WithCancel(ctx)
	intent := domain.TransactionIntent{
		ID:      uuid.NewString(),
		Kind:    kind,
		AssetID: assetID,
		Amount:  amount,
	}
	r := newRun(intent, cancel)

	if prev := e.tracker.begin(r); prev != nil {
		e.log.Info().
			Str("intent_id", prev.ID()).
			Str("superseded_by", r.ID()).
			Str("asset_id", assetID).
			Msg("intent superseded")
		prev.supersede()
	}

	observability.RecordIntentStarted()
	go e.execute(ctx, r)
	return r
}

func (e *Engine) execute(ctx context.Context, r *Run) {
	defer r.cancel()
	defer e.tracker.end(r)

	started := e.now()
	e.emit(r, Transition{State: StateValidating})

	final := e.drive(ctx, r)
	final.IntentID = r.ID()
	final.At = e.now()
	observability.RecordTransition(string(final.State))

	ev := e.log.Info()
	outcome := "succeeded"
	if final.State == StateFailed {
		ev = e.log.Warn().Str("error_kind", string(final.ErrorKind)).Str("reason", final.Message)
		outcome = string(final.ErrorKind)
	}
	ev.Str("intent_id", r.ID()).
		Str("kind", string(r.intent.Kind)).
		Str("asset_id", r.intent.AssetID).
		Float64("amount", r.intent.Amount).
		Str("tx_hash", final.TxHash).
		Dur("duration", final.At.Sub(started)).
		Msg("lifecycle finished")

	observability.RecordLifecycleRun(string(r.intent.Kind), outcome, final.At.Sub(started))
	r.finish(final)
}

func (e *Engine) emit(r *Run, t Transition) {
	t.IntentID = r.ID()
	t.At = e.now()
	observability.RecordTransition(string(t.State))
	r.emit(t)
}

// target is a validated intent ready for submission.
type target struct {
	asset    *domain.Asset
	contract string
	wei      *big.Int
}

func (e *Engine) drive(ctx context.Context, r *Run) Transition {
	var (
		tgt  target
		lerr *Error
	)
	switch r.intent.Kind {
	case domain.IntentInvest:
		tgt, lerr = e.prepareInvest(ctx, r)
	case domain.IntentRedeem:
		tgt, lerr = e.prepareRedeem(ctx, r)
	default:
		lerr = newError(KindInvalidAmount, fmt.Sprintf("unknown intent kind %q", r.intent.Kind), nil)
	}
	if lerr != nil {
		return e.failed(r, lerr)
	}

	e.emit(r, Transition{State: StateSubmitting})
	txHash, err := e.submit(ctx, r.intent.Kind, tgt)
	if err != nil {
		return e.failed(r, classifyWriteError(err, KindChainRevert, string(r.intent.Kind)))
	}

	e.emit(r, Transition{State: StateConfirming, TxHash: txHash})
	receipt, lerr := e.waitReceipt(ctx, txHash, string(r.intent.Kind))
	if lerr != nil {
		lerr.TxHash = txHash
		return e.failed(r, lerr)
	}
	if !receipt.Succeeded() {
		return e.failed(r, &Error{Kind: KindChainRevert, Message: "transaction reverted", TxHash: txHash})
	}

	if reason, stale := e.stale(ctx, r); stale {
		observability.RecordDiscardedResult(reason)
		e.log.Warn().
			Str("intent_id", r.ID()).
			Str("tx_hash", txHash).
			Str("reason", reason).
			Msg("discarding confirmed result of abandoned intent")
		return e.failed(r, &Error{
			Kind:    KindCancelled,
			Message: "intent " + reason + " before confirmation; transaction " + txHash + " was mined",
			TxHash:  txHash,
		})
	}

	settled, fallback := e.settledAmount(r, tgt, receipt)

	// From here on the chain has settled; bookkeeping must not be cut short
	// by the caller going away.
	bg := context.WithoutCancel(ctx)
	e.persist(bg, r, txHash, settled)

	if reason, stale := e.stale(ctx, r); stale {
		observability.RecordDiscardedResult("refresh_" + reason)
		e.log.Info().Str("intent_id", r.ID()).Str("reason", reason).Msg("skipping holdings refresh")
	} else if _, err := e.deps.Holdings.Refresh(bg, e.deps.Chain.Account()); err != nil {
		e.log.Error().Err(err).Str("intent_id", r.ID()).Msg("holdings refresh failed")
	}

	return Transition{
		State:         StateSucceeded,
		TxHash:        txHash,
		SettledAmount: settled,
		Fallback:      fallback,
	}
}

// stale reports whether r was cancelled or superseded.
func (e *Engine) stale(ctx context.Context, r *Run) (string, bool) {
	if r.superseded.Load() || !e.tracker.isCurrent(r) {
		return "superseded", true
	}
	if ctx.Err() != nil {
		return "cancelled", true
	}
	return "", false
}

func (e *Engine) failed(r *Run, lerr *Error) Transition {
	if lerr.Kind == KindCancelled && r.superseded.Load() {
		lerr.Message = "superseded by a newer intent: " + lerr.Message
	}
	return Transition{
		State:     StateFailed,
		TxHash:    lerr.TxHash,
		ErrorKind: lerr.Kind,
		Message:   lerr.Message,
	}
}

func (e *Engine) resolveAsset(ctx context.Context, assetID string) (*domain.Asset, string, *Error) {
	asset, err := e.deps.Catalog.GetAsset(ctx, assetID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", newError(KindAssetResolution, "unknown asset "+assetID, err)
	}
	if err != nil {
		return nil, "", classifyReadError(err, "asset "+assetID)
	}
	contract, ok := e.deps.Registry.ContractAddress(asset)
	if !ok {
		return nil, "", newError(KindAssetResolution, "no contract bound for asset "+assetID, nil)
	}
	if !evm.IsHexAddress(contract) {
		return nil, "", newError(KindConfiguration, fmt.Sprintf("invalid contract address %q for asset %s", contract, assetID), nil)
	}
	return asset, contract, nil
}

func (e *Engine) toWei(amount float64) (*big.Int, *Error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, newError(KindInvalidAmount, fmt.Sprintf("amount must be positive, got %v", amount), nil)
	}
	wei, err := evm.ToWei(amount, e.cfg.Decimals)
	if err != nil {
		return nil, newError(KindInvalidAmount, "amount out of range", err)
	}
	if wei.Sign() <= 0 {
		return nil, newError(KindInvalidAmount, fmt.Sprintf("amount %v is below token precision", amount), nil)
	}
	return wei, nil
}

func (e *Engine) prepareInvest(ctx context.Context, r *Run) (target, *Error) {
	asset, contract, lerr := e.resolveAsset(ctx, r.intent.AssetID)
	if lerr != nil {
		return target{}, lerr
	}
	wei, lerr := e.toWei(r.intent.Amount)
	if lerr != nil {
		return target{}, lerr
	}

	minimum, err := e.deps.Chain.ReadMinimumInvestment(ctx, contract)
	if err != nil {
		return target{}, classifyReadError(err, "minimum investment")
	}
	if minimum.Sign() > 0 && wei.Cmp(minimum) < 0 {
		return target{}, newError(KindBelowMinimum, fmt.Sprintf("minimum investment is %s",
			evm.DecimalFromWei(minimum, e.cfg.Decimals).String()), nil)
	}

	token, err := e.approvals.ResolvePaymentToken(ctx, asset.ID, contract)
	if err != nil {
		return target{}, asLifecycleError(err, KindConfiguration)
	}

	owner := e.deps.Chain.Account()
	check, err := e.approvals.EnsureAllowance(ctx, owner, contract, token, wei)
	if err != nil {
		return target{}, classifyReadError(err, "allowance")
	}
	if check.NeedsApproval {
		if lerr := e.approve(ctx, r, token, contract, wei); lerr != nil {
			return target{}, lerr
		}
	}
	return target{asset: asset, contract: contract, wei: wei}, nil
}

func (e *Engine) approve(ctx context.Context, r *Run, token, spender string, amount *big.Int) *Error {
	e.emit(r, Transition{State: StateApproving})

	txHash, err := e.approvals.Approve(ctx, token, spender, amount)
	if err != nil {
		return classifyApprovalError(err)
	}
	receipt, lerr := e.waitReceipt(ctx, txHash, "approval")
	if lerr != nil {
		if lerr.Kind == KindChainRead {
			lerr.Kind = KindApprovalFailed
		}
		lerr.TxHash = txHash
		return lerr
	}
	if !receipt.Succeeded() {
		return &Error{Kind: KindApprovalFailed, Message: "approval transaction reverted", TxHash: txHash}
	}
	return nil
}

func (e *Engine) prepareRedeem(ctx context.Context, r *Run) (target, *Error) {
	asset, contract, lerr := e.resolveAsset(ctx, r.intent.AssetID)
	if lerr != nil {
		return target{}, lerr
	}
	amount := r.intent.Amount
	wei, lerr := e.toWei(amount)
	if lerr != nil {
		return target{}, lerr
	}

	owner := e.deps.Chain.Account()
	known, err := e.deps.Holdings.Holding(ctx, owner, asset.ID)
	if err != nil {
		return target{}, classifyReadError(err, "holdings")
	}
	knownWei, err := evm.ToWei(known, e.cfg.Decimals)
	if err != nil {
		return target{}, classifyReadError(err, "holdings")
	}
	if wei.Cmp(knownWei) > 0 {
		// A full-balance request may land one float step above the holding.
		if amount > math.Nextafter(known, math.Inf(1)) {
			return target{}, newError(KindInvalidAmount, fmt.Sprintf("cannot redeem %v shares, holding %v", amount, known), nil)
		}
		wei = knownWei
	}

	inv, err := e.deps.Chain.ReadUserInvestment(ctx, contract, owner)
	if err != nil {
		return target{}, classifyReadError(err, "investment record")
	}
	if !inv.CanRedeem {
		return target{}, newError(KindRedemptionNotAllowed, "redemption is not allowed yet for "+asset.ID, nil)
	}
	return target{asset: asset, contract: contract, wei: wei}, nil
}

func (e *Engine) submit(ctx context.Context, kind domain.IntentKind, tgt target) (string, error) {
	if kind == domain.IntentRedeem {
		return e.deps.Chain.SubmitRedeem(ctx, tgt.contract, tgt.wei)
	}
	return e.deps.Chain.SubmitInvest(ctx, tgt.contract, tgt.wei)
}

// waitReceipt waits for a receipt, bounded by ConfirmTimeout if set.
// Expiry is a TimeoutError: the transaction may still be mined later.
func (e *Engine) waitReceipt(ctx context.Context, txHash, action string) (*evm.Receipt, *Error) {
	wctx := ctx
	if e.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
		defer cancel()
	}

	receipt, err := e.deps.Chain.WaitForReceipt(wctx, txHash)
	switch {
	case err == nil && receipt != nil:
		return receipt, nil
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, newError(KindCancelled, action+" abandoned while confirming", ctx.Err())
	case errors.Is(err, context.DeadlineExceeded) || wctx.Err() != nil:
		return nil, newError(KindTimeout, action+" not confirmed in time; it may still be mined", context.DeadlineExceeded)
	case err == nil:
		return nil, newError(KindChainRead, "no receipt for "+txHash, nil)
	default:
		return nil, newError(KindChainRead, "waiting for "+action+" receipt", err)
	}
}

// settledAmount decodes the pool event for the settled amount. When the
// event is missing the requested amount is used and fallback is true.
func (e *Engine) settledAmount(r *Run, tgt target, receipt *evm.Receipt) (amount float64, fallback bool) {
	event := chain.EventInvested
	if r.intent.Kind == domain.IntentRedeem {
		event = chain.EventRedeemed
	}
	fields, ok := chain.DecodeEvent(receipt, tgt.contract, event)
	if ok && fields.Settled != nil {
		return evm.FromWei(fields.Settled, e.cfg.Decimals), false
	}

	observability.RecordEventDecodeFailure(event)
	e.log.Warn().
		Str("intent_id", r.ID()).
		Str("tx_hash", receipt.TxHash).
		Str("event", event).
		Float64("requested", r.intent.Amount).
		Msg("event decode failed, using requested amount")
	return r.intent.Amount, true
}

func (e *Engine) persist(ctx context.Context, r *Run, txHash string, amount float64) {
	rec := domain.TransactionRecord{
		TxHash:      txHash,
		AssetID:     r.intent.AssetID,
		Type:        r.intent.Kind.LedgerType(),
		Amount:      amount,
		UserAddress: e.deps.Chain.Account(),
		Status:      domain.TransactionStatusCompleted,
		Timestamp:   e.now().UTC(),
	}
	stored, created, err := e.deps.Recorder.Record(ctx, rec)
	if err != nil {
		e.log.Error().Err(err).
			Str("intent_id", r.ID()).
			Str("tx_hash", txHash).
			Msg("ledger write failed after confirmation")
		return
	}
	if !created {
		e.log.Info().Str("tx_hash", txHash).Str("record_id", stored.ID).Msg("ledger record already present")
	}
}

func asLifecycleError(err error, fallback ErrorKind) *Error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}
	return newError(fallback, err.Error(), err)
}
