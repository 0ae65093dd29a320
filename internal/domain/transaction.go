package domain

import "time"

// TransactionType is the ledger category of a record.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "Deposit"
	TransactionTypeWithdraw TransactionType = "Withdraw"
	TransactionTypePayout   TransactionType = "Payout"
)

// TransactionStatus is the ledger status of a record.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "Completed"
	TransactionStatusPending   TransactionStatus = "Pending"
	TransactionStatusFailed    TransactionStatus = "Failed"
)

// TransactionRecord is a persisted ledger entry. TxHash is the natural key.
type TransactionRecord struct {
	ID          string            `json:"id"`
	TxHash      string            `json:"txHash"`
	AssetID     string            `json:"assetId"`
	Type        TransactionType   `json:"type"`
	Amount      float64           `json:"amount"`
	UserAddress string            `json:"userAddress"`
	Status      TransactionStatus `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
}

// ValidTransactionType reports whether t is a known ledger type.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypePayout:
		return true
	}
	return false
}

// ValidTransactionStatus reports whether s is a known ledger status.
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusPending, TransactionStatusFailed:
		return true
	}
	return false
}
