package evm

import (
	"encoding/hex"
	"math/big"
	"testing"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		signature string
		want      string
	}{
		{"balanceOf(address)", "70a08231"},
		{"approve(address,uint256)", "095ea7b3"},
		{"allowance(address,address)", "dd62ed3e"},
		{"transfer(address,uint256)", "a9059cbb"},
		{"Error(string)", "08c379a0"},
	}
	for _, tt := range tests {
		if got := hex.EncodeToString(Selector(tt.signature)); got != tt.want {
			t.Errorf("Selector(%s) = %s, want %s", tt.signature, got, tt.want)
		}
	}
}

func TestEventTopic(t *testing.T) {
	want := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if got := EventTopic("Transfer(address,address,uint256)"); got != want {
		t.Errorf("EventTopic = %s, want %s", got, want)
	}
}

func TestPackCall(t *testing.T) {
	owner, err := AddressWord("0x00000000000000000000000000000000000000aA")
	if err != nil {
		t.Fatalf("AddressWord: %v", err)
	}
	data := PackCall("balanceOf(address)", owner)

	if len(data) != 4+WordSize {
		t.Fatalf("expected %d bytes, got %d", 4+WordSize, len(data))
	}
	if data[len(data)-1] != 0xaa {
		t.Errorf("address not right-aligned: %x", data)
	}
}

func TestAddressWord_Invalid(t *testing.T) {
	for _, addr := range []string{"", "0x1234", "not-an-address", "1111111111111111111111111111111111111111"} {
		if _, err := AddressWord(addr); err == nil {
			t.Errorf("expected error for %q", addr)
		}
	}
}

func TestUint256Word(t *testing.T) {
	w, err := Uint256Word(big.NewInt(1000))
	if err != nil {
		t.Fatalf("Uint256Word: %v", err)
	}
	if w.Big().Int64() != 1000 {
		t.Errorf("round trip: got %s", w.Big())
	}
	if _, err := Uint256Word(big.NewInt(-1)); err == nil {
		t.Error("expected error for negative value")
	}
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := Uint256Word(tooBig); err == nil {
		t.Error("expected overflow error")
	}
}

func TestWord_AddressAndBool(t *testing.T) {
	w, _ := AddressWord("0x1111111111111111111111111111111111111111")
	if got := w.Address(); got != "0x1111111111111111111111111111111111111111" {
		t.Errorf("Address = %s", got)
	}
	var f Word
	if f.Bool() {
		t.Error("zero word should be false")
	}
	f[WordSize-1] = 1
	if !f.Bool() {
		t.Error("one word should be true")
	}
}

func TestWords_BadLength(t *testing.T) {
	if _, err := Words(make([]byte, 33)); err == nil {
		t.Error("expected error for unaligned data")
	}
}

func TestDecodeRevertReason(t *testing.T) {
	data := EncodeRevertReason("Redemption locked")
	reason, ok := DecodeRevertReason(data)
	if !ok {
		t.Fatal("expected revert reason")
	}
	if reason != "Redemption locked" {
		t.Errorf("got %q", reason)
	}

	if _, ok := DecodeRevertReason([]byte{0x01, 0x02}); ok {
		t.Error("expected no reason for short data")
	}
	if _, ok := DecodeRevertReason(data[:40]); ok {
		t.Error("expected no reason for truncated data")
	}
}

func TestIsZeroAddress(t *testing.T) {
	if !IsZeroAddress("") || !IsZeroAddress(ZeroAddress) {
		t.Error("expected zero address")
	}
	if IsZeroAddress("0x1111111111111111111111111111111111111111") {
		t.Error("expected non-zero address")
	}
}
