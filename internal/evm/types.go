package evm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Receipt status values.
const (
	ReceiptStatusFailed  uint64 = 0
	ReceiptStatusSuccess uint64 = 1
)

// CallMsg is the argument of eth_call and eth_sendTransaction.
type CallMsg struct {
	From  string
	To    string
	Data  []byte
	Value *big.Int
}

// Receipt is a mined transaction receipt.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Status      uint64
	Logs        []Log
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}

// Log is a contract event emitted in a receipt.
type Log struct {
	Address string
	Topics  []string
	Data    []byte
}

// RPCError is a JSON-RPC 2.0 error object. Data carries revert payloads
// when the node returns them.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// RevertData returns the hex-decoded data field, if it is a hex string.
func (e *RPCError) RevertData() ([]byte, bool) {
	if len(e.Data) == 0 {
		return nil, false
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return nil, false
	}
	b, err := DecodeHex(s)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

// EncodeHex returns 0x-prefixed lowercase hex.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex decodes an optionally 0x-prefixed hex string.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// ParseQuantity decodes a JSON-RPC hex quantity such as "0x1b4".
func ParseQuantity(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return n, nil
}

// EncodeQuantity encodes a big integer as a JSON-RPC hex quantity.
func EncodeQuantity(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}
