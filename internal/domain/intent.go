package domain

// IntentKind is the direction of a user transaction.
type IntentKind string

const (
	IntentInvest IntentKind = "invest"
	IntentRedeem IntentKind = "redeem"
)

// TransactionIntent is a one-shot request to invest or redeem.
// Amount is currency units for invest and share count for redeem.
type TransactionIntent struct {
	ID      string
	Kind    IntentKind
	AssetID string
	Amount  float64
}

// LedgerType maps the intent kind to the ledger record type.
func (k IntentKind) LedgerType() TransactionType {
	if k == IntentRedeem {
		return TransactionTypeWithdraw
	}
	return TransactionTypeDeposit
}
