package evm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// WordSize is the ABI slot width in bytes.
const WordSize = 32

// revertSelector is the selector of Error(string).
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ZeroAddress is the all-zero account.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Word is one 32-byte ABI slot.
type Word [WordSize]byte

// Keccak256 hashes data with the legacy Keccak-256 used by Ethereum.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Selector returns the 4-byte function selector of a canonical signature
// such as "balanceOf(address)".
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// EventTopic returns topic0 of a canonical event signature.
func EventTopic(signature string) string {
	return EncodeHex(Keccak256([]byte(signature)))
}

// IsHexAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsHexAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsZeroAddress reports whether s is empty or the zero address.
func IsZeroAddress(s string) bool {
	return s == "" || strings.EqualFold(s, ZeroAddress)
}

// AddressWord left-pads an address into a word.
func AddressWord(addr string) (Word, error) {
	var w Word
	if !IsHexAddress(addr) {
		return w, fmt.Errorf("invalid address %q", addr)
	}
	b, err := DecodeHex(addr)
	if err != nil {
		return w, fmt.Errorf("decode address %q: %w", addr, err)
	}
	copy(w[WordSize-len(b):], b)
	return w, nil
}

// Uint256Word encodes a non-negative integer into a word.
func Uint256Word(v *big.Int) (Word, error) {
	var w Word
	if v == nil {
		return w, nil
	}
	if v.Sign() < 0 {
		return w, fmt.Errorf("negative uint256 %s", v)
	}
	if v.BitLen() > 256 {
		return w, fmt.Errorf("uint256 overflow: %s", v)
	}
	v.FillBytes(w[:])
	return w, nil
}

// Big decodes the word as an unsigned integer.
func (w Word) Big() *big.Int {
	return new(big.Int).SetBytes(w[:])
}

// Bool decodes the word as a bool.
func (w Word) Bool() bool {
	return w.Big().Sign() != 0
}

// Address decodes the low 20 bytes as a lowercase address.
func (w Word) Address() string {
	return EncodeHex(w[WordSize-20:])
}

// PackCall builds calldata: selector followed by static words.
func PackCall(signature string, args ...Word) []byte {
	out := make([]byte, 0, 4+len(args)*WordSize)
	out = append(out, Selector(signature)...)
	for _, a := range args {
		out = append(out, a[:]...)
	}
	return out
}

// Words splits return data or event data into words.
func Words(data []byte) ([]Word, error) {
	if len(data)%WordSize != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of %d", len(data), WordSize)
	}
	out := make([]Word, len(data)/WordSize)
	for i := range out {
		copy(out[i][:], data[i*WordSize:(i+1)*WordSize])
	}
	return out, nil
}

// DecodeRevertReason extracts the message from Error(string) revert data.
func DecodeRevertReason(data []byte) (string, bool) {
	if len(data) < 4+2*WordSize || !bytes.Equal(data[:4], revertSelector) {
		return "", false
	}
	body := data[4:]

	offset := new(big.Int).SetBytes(body[:WordSize])
	if !offset.IsUint64() || offset.Uint64()+WordSize > uint64(len(body)) {
		return "", false
	}
	start := offset.Uint64()

	length := new(big.Int).SetBytes(body[start : start+WordSize])
	if !length.IsUint64() {
		return "", false
	}
	end := start + WordSize + length.Uint64()
	if end > uint64(len(body)) {
		return "", false
	}
	return string(body[start+WordSize : end]), true
}

// EncodeRevertReason builds Error(string) revert data. Used by stubs and tests.
func EncodeRevertReason(reason string) []byte {
	out := append([]byte{}, revertSelector...)

	var offset, length Word
	offset[WordSize-1] = WordSize
	binary.BigEndian.PutUint64(length[WordSize-8:], uint64(len(reason)))
	out = append(out, offset[:]...)
	out = append(out, length[:]...)

	padded := make([]byte, (len(reason)+WordSize-1)/WordSize*WordSize)
	copy(padded, reason)
	return append(out, padded...)
}
