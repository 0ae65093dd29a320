package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/portfolio"
	"rwa-portfolio/internal/storage"
)

// PortfolioReader computes the current portfolio summary of an owner.
type PortfolioReader interface {
	Summary(ctx context.Context, owner string) (*portfolio.Summary, error)
}

// Generator produces reports from stored data.
type Generator struct {
	portfolios PortfolioReader
	ledger     storage.LedgerStore
	snapshots  storage.SnapshotStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(portfolios PortfolioReader, ledger storage.LedgerStore, snapshots storage.SnapshotStore) *Generator {
	return &Generator{
		portfolios: portfolios,
		ledger:     ledger,
		snapshots:  snapshots,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the statement of owner for [start, end].
func (g *Generator) Generate(ctx context.Context, owner string, start, end time.Time) (*Report, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: period end %s before start %s", storage.ErrInvalidInput, end, start)
	}

	sum, err := g.portfolios.Summary(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("portfolio summary: %w", err)
	}

	txs, err := g.transactions(ctx, owner, start, end)
	if err != nil {
		return nil, err
	}

	snaps, err := g.snapshots.GetByOwnerTimeRange(ctx, owner, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	r := &Report{
		Owner:         owner,
		GeneratedAt:   g.now(),
		PeriodStart:   start.UTC(),
		PeriodEnd:     end.UTC(),
		Summary:       summarize(sum),
		Allocation:    sum.Metrics.Allocation,
		Positions:     sum.Valuation.Positions(),
		Transactions:  txs,
		Flows:         flows(txs),
		History:       history(snaps),
		MissingAssets: sum.Valuation.Missing,
	}
	return r, nil
}

// transactions returns the owner's records within the period, newest first.
func (g *Generator) transactions(ctx context.Context, owner string, start, end time.Time) ([]*domain.TransactionRecord, error) {
	all, err := g.ledger.List(ctx, storage.LedgerFilter{UserAddress: owner})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]*domain.TransactionRecord, 0, len(all))
	for _, rec := range all {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func summarize(sum *portfolio.Summary) SummarySection {
	s := SummarySection{
		TotalAUM:    sum.Metrics.TotalAUM,
		CashUSD:     sum.Portfolio.CashUSD,
		WeightedAPY: sum.Metrics.WeightedAPY,
		RiskScore:   sum.Metrics.RiskScore,
		RiskLevel:   sum.Metrics.RiskLevel,
	}
	if !sum.NextPayout.IsZero() {
		s.NextPayoutDate = sum.NextPayout.Format(time.DateOnly)
	}
	return s
}

// flows totals completed records with exact decimal sums.
func flows(txs []*domain.TransactionRecord) FlowSection {
	var f FlowSection
	deposits, withdrawals, payouts := decimal.Zero, decimal.Zero, decimal.Zero
	for _, rec := range txs {
		switch rec.Status {
		case domain.TransactionStatusPending:
			f.Pending++
			continue
		case domain.TransactionStatusFailed:
			f.Failed++
			continue
		}
		amount := decimal.NewFromFloat(rec.Amount)
		switch rec.Type {
		case domain.TransactionTypeDeposit:
			deposits = deposits.Add(amount)
		case domain.TransactionTypeWithdraw:
			withdrawals = withdrawals.Add(amount)
		case domain.TransactionTypePayout:
			payouts = payouts.Add(amount)
		}
	}
	f.Deposits = deposits.InexactFloat64()
	f.Withdrawals = withdrawals.InexactFloat64()
	f.Payouts = payouts.InexactFloat64()
	return f
}

// history summarizes snapshots ordered by time ascending.
func history(snaps []*domain.MetricsSnapshot) HistorySection {
	if len(snaps) == 0 {
		return HistorySection{}
	}
	first, last := snaps[0], snaps[len(snaps)-1]
	h := HistorySection{
		Snapshots:   len(snaps),
		StartAUM:    first.TotalAUM,
		EndAUM:      last.TotalAUM,
		StartAPY:    first.WeightedAPY,
		EndAPY:      last.WeightedAPY,
		MinRisk:     first.RiskScore,
		MaxRisk:     first.RiskScore,
		FirstSample: time.UnixMilli(first.TimestampMs).UTC(),
		LastSample:  time.UnixMilli(last.TimestampMs).UTC(),
	}
	for _, s := range snaps[1:] {
		h.MinRisk = min(h.MinRisk, s.RiskScore)
		h.MaxRisk = max(h.MaxRisk, s.RiskScore)
	}

	change := decimal.NewFromFloat(last.TotalAUM).Sub(decimal.NewFromFloat(first.TotalAUM))
	h.ChangeAUM = change.InexactFloat64()
	if first.TotalAUM != 0 {
		h.ChangePct = change.Div(decimal.NewFromFloat(first.TotalAUM)).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
	}
	return h
}
