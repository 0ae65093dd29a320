package reporting

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/portfolio"
	"rwa-portfolio/internal/storage"
	"rwa-portfolio/internal/storage/memory"
)

const owner = "0x00000000000000000000000000000000000000aa"

var (
	periodStart = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	fixedNow    = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
)

func setupGenerator(t *testing.T) (*Generator, *memory.LedgerStore, *memory.SnapshotStore) {
	ctx := context.Background()

	catalog := memory.NewAssetCatalog(
		&domain.Asset{ID: "tbill", Name: "T-Bill", Type: domain.AssetTypeTreasury, APY: 5, RiskScore: 10, Price: 1, NextPayoutDate: "2026-11-01"},
		&domain.Asset{ID: "estate", Name: "Estate", Type: domain.AssetTypeRealEstate, APY: 8, RiskScore: 40, Price: 2},
	)
	portfolios := memory.NewPortfolioStore()
	if err := portfolios.ReplaceHoldings(ctx, owner, map[string]float64{"tbill": 100, "estate": 25, "gone": 3}, periodEnd); err != nil {
		t.Fatalf("ReplaceHoldings failed: %v", err)
	}
	if err := portfolios.SetCash(ctx, owner, 50, periodEnd); err != nil {
		t.Fatalf("SetCash failed: %v", err)
	}

	ledger := memory.NewLedgerStore()
	records := []*domain.TransactionRecord{
		{ID: "1", TxHash: "0x01", AssetID: "tbill", Type: domain.TransactionTypeDeposit, Amount: 100.1, UserAddress: owner, Status: domain.TransactionStatusCompleted, Timestamp: periodStart.Add(time.Hour)},
		{ID: "2", TxHash: "0x02", AssetID: "estate", Type: domain.TransactionTypeDeposit, Amount: 50.2, UserAddress: owner, Status: domain.TransactionStatusCompleted, Timestamp: periodStart.Add(2 * time.Hour)},
		{ID: "3", TxHash: "0x03", AssetID: "tbill", Type: domain.TransactionTypeWithdraw, Amount: 0.3, UserAddress: owner, Status: domain.TransactionStatusCompleted, Timestamp: periodStart.Add(3 * time.Hour)},
		{ID: "4", TxHash: "0x04", AssetID: "tbill", Type: domain.TransactionTypePayout, Amount: 1.5, UserAddress: owner, Status: domain.TransactionStatusCompleted, Timestamp: periodStart.Add(4 * time.Hour)},
		{ID: "5", TxHash: "0x05", AssetID: "tbill", Type: domain.TransactionTypeDeposit, Amount: 999, UserAddress: owner, Status: domain.TransactionStatusPending, Timestamp: periodStart.Add(5 * time.Hour)},
		{ID: "6", TxHash: "0x06", AssetID: "tbill", Type: domain.TransactionTypeDeposit, Amount: 999, UserAddress: owner, Status: domain.TransactionStatusFailed, Timestamp: periodStart.Add(6 * time.Hour)},
		// outside the period
		{ID: "7", TxHash: "0x07", AssetID: "tbill", Type: domain.TransactionTypeDeposit, Amount: 7, UserAddress: owner, Status: domain.TransactionStatusCompleted, Timestamp: periodStart.Add(-time.Hour)},
		// other owner
		{ID: "8", TxHash: "0x08", AssetID: "tbill", Type: domain.TransactionTypeDeposit, Amount: 8, UserAddress: "0xbb", Status: domain.TransactionStatusCompleted, Timestamp: periodStart.Add(time.Hour)},
	}
	for _, r := range records {
		if err := ledger.Insert(ctx, r); err != nil {
			t.Fatalf("Insert record failed: %v", err)
		}
	}

	snapshots := memory.NewSnapshotStore()
	err := snapshots.InsertBulk(ctx, []*domain.MetricsSnapshot{
		{Owner: owner, TimestampMs: periodStart.Add(time.Hour).UnixMilli(), TotalAUM: 200, WeightedAPY: 5, RiskScore: 10},
		{Owner: owner, TimestampMs: periodStart.Add(48 * time.Hour).UnixMilli(), TotalAUM: 180, WeightedAPY: 6, RiskScore: 30},
		{Owner: owner, TimestampMs: periodEnd.Add(-time.Hour).UnixMilli(), TotalAUM: 250, WeightedAPY: 6.2, RiskScore: 20},
	})
	if err != nil {
		t.Fatalf("InsertBulk snapshots failed: %v", err)
	}

	gen := NewGenerator(portfolio.NewService(catalog, portfolios), ledger, snapshots).
		WithClock(func() time.Time { return fixedNow })
	return gen, ledger, snapshots
}

func TestGenerate(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	r, err := gen.Generate(context.Background(), owner, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, fixedNow)
	}

	// Summary: 50 cash + 100 tbill + 50 estate
	if r.Summary.TotalAUM != 200 {
		t.Errorf("TotalAUM = %v, want 200", r.Summary.TotalAUM)
	}
	if r.Summary.CashUSD != 50 {
		t.Errorf("CashUSD = %v, want 50", r.Summary.CashUSD)
	}
	if r.Summary.NextPayoutDate != "2026-11-01" {
		t.Errorf("NextPayoutDate = %q, want 2026-11-01", r.Summary.NextPayoutDate)
	}

	if len(r.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(r.Positions))
	}
	if len(r.MissingAssets) != 1 || r.MissingAssets[0] != "gone" {
		t.Errorf("MissingAssets = %v, want [gone]", r.MissingAssets)
	}

	// Transactions: 6 of the owner's within the period, newest first
	if len(r.Transactions) != 6 {
		t.Fatalf("expected 6 transactions, got %d", len(r.Transactions))
	}
	if r.Transactions[0].TxHash != "0x06" {
		t.Errorf("first transaction = %s, want 0x06", r.Transactions[0].TxHash)
	}
}

func TestGenerate_Flows(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	r, err := gen.Generate(context.Background(), owner, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	f := r.Flows
	// Decimal sums keep 100.1 + 50.2 exact.
	if f.Deposits != 150.3 {
		t.Errorf("Deposits = %v, want 150.3", f.Deposits)
	}
	if f.Withdrawals != 0.3 {
		t.Errorf("Withdrawals = %v, want 0.3", f.Withdrawals)
	}
	if f.Payouts != 1.5 {
		t.Errorf("Payouts = %v, want 1.5", f.Payouts)
	}
	if f.Pending != 1 || f.Failed != 1 {
		t.Errorf("Pending/Failed = %d/%d, want 1/1", f.Pending, f.Failed)
	}
	if f.Net() != 150 {
		t.Errorf("Net = %v, want 150", f.Net())
	}
}

func TestGenerate_History(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	r, err := gen.Generate(context.Background(), owner, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	h := r.History
	if h.Snapshots != 3 {
		t.Fatalf("Snapshots = %d, want 3", h.Snapshots)
	}
	if h.StartAUM != 200 || h.EndAUM != 250 {
		t.Errorf("AUM = %v..%v, want 200..250", h.StartAUM, h.EndAUM)
	}
	if h.ChangeAUM != 50 {
		t.Errorf("ChangeAUM = %v, want 50", h.ChangeAUM)
	}
	if h.ChangePct != 25 {
		t.Errorf("ChangePct = %v, want 25", h.ChangePct)
	}
	if h.MinRisk != 10 || h.MaxRisk != 30 {
		t.Errorf("Risk range = %d..%d, want 10..30", h.MinRisk, h.MaxRisk)
	}
}

func TestGenerate_EmptyOwner(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	r, err := gen.Generate(context.Background(), "0x00000000000000000000000000000000000000cc", periodStart, periodEnd)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.Summary.TotalAUM != 0 || len(r.Positions) != 0 || len(r.Transactions) != 0 {
		t.Errorf("expected empty report, got %+v", r.Summary)
	}
	if r.History.Snapshots != 0 || r.History.ChangePct != 0 {
		t.Errorf("expected empty history, got %+v", r.History)
	}
}

func TestGenerate_InvalidPeriod(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	_, err := gen.Generate(context.Background(), owner, periodEnd, periodStart)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	r, err := gen.Generate(context.Background(), owner, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(r)
	for _, want := range []string{
		"# Portfolio Statement",
		owner,
		"| Total AUM | $200.00 |",
		"| Next Payout | 2026-11-01 |",
		"| Treasury |",
		"| tbill | treasury |",
		"| Net | $150.00 |",
		"Excluded: 1 pending, 1 failed.",
		"AUM change: $50.00 (+25.00%) over 3 snapshots.",
		"## Data Quality",
		"- gone",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Deterministic output
	if md != RenderMarkdown(r) {
		t.Error("RenderMarkdown is not deterministic")
	}
}

func TestUSD(t *testing.T) {
	cases := map[float64]string{
		0:       "$0.00",
		1234.5:  "$1,234.50",
		0.005:   "$0.01",
		-42.1:   "-$42.10",
		1000000: "$1,000,000.00",
	}
	for in, want := range cases {
		if got := usd(in); got != want {
			t.Errorf("usd(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{Owner: owner})
	for _, want := range []string{"Nothing allocated.", "No positions.", "No snapshots in period.", "| Next Payout | n/a |"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "## Data Quality") {
		t.Error("unexpected data quality section")
	}
}

func TestRenderHTML(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	r, err := gen.Generate(context.Background(), owner, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	page, err := RenderHTML(r)
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	for _, want := range []string{"<!DOCTYPE html>", "<h1>Portfolio Statement</h1>", "<table>", "<td>$200.00</td>", "<li>gone</li>"} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	gen, _, _ := setupGenerator(t)

	r, err := gen.Generate(context.Background(), owner, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	positions, err := RenderPositionsCSV(r)
	if err != nil {
		t.Fatalf("RenderPositionsCSV failed: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(positions)).ReadAll()
	if err != nil {
		t.Fatalf("parse positions CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "asset_id" {
		t.Errorf("unexpected header %v", rows[0])
	}

	txs, err := RenderTransactionsCSV(r)
	if err != nil {
		t.Fatalf("RenderTransactionsCSV failed: %v", err)
	}
	rows, err = csv.NewReader(strings.NewReader(txs)).ReadAll()
	if err != nil {
		t.Fatalf("parse transactions CSV: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("expected header + 6 rows, got %d", len(rows))
	}
	if rows[1][1] != "0x06" || rows[1][5] != "Failed" {
		t.Errorf("unexpected first row %v", rows[1])
	}
}
