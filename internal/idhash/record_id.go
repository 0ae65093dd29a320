package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeRecordID computes a deterministic ledger record ID using SHA256.
// Formula: SHA256(lower(tx_hash)|asset_id|type)
// Returns hex-encoded hash (64 characters).
func ComputeRecordID(txHash, assetID, recordType string) string {
	data := fmt.Sprintf("%s|%s|%s",
		strings.ToLower(txHash),
		assetID,
		recordType,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
