package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// reportCurrency is the currency all amounts are valued in.
const reportCurrency = money.USD

// usd formats v in minor units of reportCurrency, e.g. "$1,234.50".
func usd(v float64) string {
	cur := money.GetCurrency(reportCurrency)
	minor := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Portfolio Statement\n\n")
	sb.WriteString(fmt.Sprintf("Owner: `%s`\n\n", r.Owner))
	sb.WriteString(fmt.Sprintf("Period: %s to %s\n\n", r.PeriodStart.Format(time.RFC3339), r.PeriodEnd.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total AUM | %s |\n", usd(r.Summary.TotalAUM)))
	sb.WriteString(fmt.Sprintf("| Cash | %s |\n", usd(r.Summary.CashUSD)))
	sb.WriteString(fmt.Sprintf("| Weighted APY | %.2f%% |\n", r.Summary.WeightedAPY))
	sb.WriteString(fmt.Sprintf("| Risk Score | %d (%s) |\n", r.Summary.RiskScore, r.Summary.RiskLevel))
	nextPayout := r.Summary.NextPayoutDate
	if nextPayout == "" {
		nextPayout = "n/a"
	}
	sb.WriteString(fmt.Sprintf("| Next Payout | %s |\n", nextPayout))
	sb.WriteString("\n")

	// Allocation
	sb.WriteString("## Allocation\n\n")
	if len(r.Allocation) > 0 {
		sb.WriteString("| Group | Value | Share |\n")
		sb.WriteString("|-------|-------|-------|\n")
		for _, a := range r.Allocation {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f%% |\n", a.Type, usd(a.Value), a.Percentage))
		}
	} else {
		sb.WriteString("Nothing allocated.\n")
	}
	sb.WriteString("\n")

	// Positions
	sb.WriteString("## Positions\n\n")
	if len(r.Positions) > 0 {
		sb.WriteString("| Asset | Type | Shares | Value | APY | Risk |\n")
		sb.WriteString("|-------|------|--------|-------|-----|------|\n")
		for _, p := range r.Positions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.6f | %s | %.2f%% | %d |\n",
				p.AssetID, p.Type, p.Shares, usd(p.Value), p.APY, p.RiskScore))
		}
	} else {
		sb.WriteString("No positions.\n")
	}
	sb.WriteString("\n")

	// Activity
	sb.WriteString("## Activity\n\n")
	sb.WriteString("| Flow | Amount |\n")
	sb.WriteString("|------|--------|\n")
	sb.WriteString(fmt.Sprintf("| Deposits | %s |\n", usd(r.Flows.Deposits)))
	sb.WriteString(fmt.Sprintf("| Withdrawals | %s |\n", usd(r.Flows.Withdrawals)))
	sb.WriteString(fmt.Sprintf("| Payouts | %s |\n", usd(r.Flows.Payouts)))
	sb.WriteString(fmt.Sprintf("| Net | %s |\n", usd(r.Flows.Net())))
	sb.WriteString("\n")
	if r.Flows.Pending > 0 || r.Flows.Failed > 0 {
		sb.WriteString(fmt.Sprintf("Excluded: %d pending, %d failed.\n\n", r.Flows.Pending, r.Flows.Failed))
	}
	sb.WriteString(fmt.Sprintf("%d transactions in period (see TRANSACTIONS.csv).\n\n", len(r.Transactions)))

	// History
	sb.WriteString("## History\n\n")
	if r.History.Snapshots > 0 {
		h := r.History
		sb.WriteString("| Metric | Start | End |\n")
		sb.WriteString("|--------|-------|-----|\n")
		sb.WriteString(fmt.Sprintf("| Sample | %s | %s |\n", h.FirstSample.Format(time.RFC3339), h.LastSample.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| AUM | %s | %s |\n", usd(h.StartAUM), usd(h.EndAUM)))
		sb.WriteString(fmt.Sprintf("| Weighted APY | %.2f%% | %.2f%% |\n", h.StartAPY, h.EndAPY))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("AUM change: %s (%+.2f%%) over %d snapshots. Risk score ranged %d to %d.\n\n",
			usd(h.ChangeAUM), h.ChangePct, h.Snapshots, h.MinRisk, h.MaxRisk))
	} else {
		sb.WriteString("No snapshots in period.\n\n")
	}

	// Data quality
	if len(r.MissingAssets) > 0 {
		sb.WriteString("## Data Quality\n\n")
		sb.WriteString("Holdings excluded from valuation because the asset is not in the catalog:\n\n")
		for _, id := range r.MissingAssets {
			sb.WriteString(fmt.Sprintf("- %s\n", id))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
