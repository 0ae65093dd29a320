package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"
)

// RenderPositionsCSV renders positions as CSV string.
func RenderPositionsCSV(r *Report) (string, error) {
	rows := [][]string{{"asset_id", "type", "shares", "value", "apy", "risk_score"}}
	for _, p := range r.Positions {
		rows = append(rows, []string{
			p.AssetID,
			string(p.Type),
			formatFloat(p.Shares),
			formatFloat(p.Value),
			formatFloat(p.APY),
			strconv.Itoa(p.RiskScore),
		})
	}
	return writeCSV(rows)
}

// RenderTransactionsCSV renders the period's transactions as CSV string,
// newest first.
func RenderTransactionsCSV(r *Report) (string, error) {
	rows := [][]string{{"timestamp", "tx_hash", "asset_id", "type", "amount", "status", "user_address"}}
	for _, t := range r.Transactions {
		rows = append(rows, []string{
			t.Timestamp.UTC().Format(time.RFC3339),
			t.TxHash,
			t.AssetID,
			string(t.Type),
			formatFloat(t.Amount),
			string(t.Status),
			t.UserAddress,
		})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
