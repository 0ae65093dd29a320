package idhash

import (
	"testing"
)

func TestComputeRecordID(t *testing.T) {
	tests := []struct {
		name       string
		txHash     string
		assetID    string
		recordType string
	}{
		{"deposit", "0xabc123", "tbill-2026", "Deposit"},
		{"withdraw", "0xdef456", "reit-sunbelt", "Withdraw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRecordID(tt.txHash, tt.assetID, tt.recordType)
			if len(got) != 64 {
				t.Errorf("ComputeRecordID() length = %d, want 64", len(got))
			}
			if again := ComputeRecordID(tt.txHash, tt.assetID, tt.recordType); again != got {
				t.Errorf("ComputeRecordID() not deterministic: %s vs %s", got, again)
			}
		})
	}
}

func TestComputeRecordID_CaseInsensitiveHash(t *testing.T) {
	a := ComputeRecordID("0xABCDEF", "tbill", "Deposit")
	b := ComputeRecordID("0xabcdef", "tbill", "Deposit")
	if a != b {
		t.Errorf("tx hash case changed the ID: %s vs %s", a, b)
	}
}

func TestComputeRecordID_FieldsMatter(t *testing.T) {
	base := ComputeRecordID("0xabc", "tbill", "Deposit")
	if base == ComputeRecordID("0xabc", "tbill", "Withdraw") {
		t.Error("type should change the ID")
	}
	if base == ComputeRecordID("0xabc", "reit", "Deposit") {
		t.Error("asset should change the ID")
	}
}
