package chain

import (
	"math/big"
	"strings"

	"rwa-portfolio/internal/evm"
)

// Pool event names.
const (
	EventInvested = "Invested"
	EventRedeemed = "Redeemed"
)

type eventABI struct {
	topic  string
	fields []string // non-indexed uint256 fields, in data order
}

var poolEvents = map[string]eventABI{
	EventInvested: {
		topic:  evm.EventTopic("Invested(address,uint256,uint256)"),
		fields: []string{"amount", "shares"},
	},
	EventRedeemed: {
		topic:  evm.EventTopic("Redeemed(address,uint256,uint256)"),
		fields: []string{"shares", "payout"},
	},
}

// EventTopic returns topic0 for a pool event name.
func EventTopic(name string) (string, bool) {
	abi, ok := poolEvents[name]
	return abi.topic, ok
}

// EventFields is a decoded pool event.
type EventFields struct {
	Name     string
	Investor string
	Fields   map[string]*big.Int

	// Settled is the first data field: the amount for Invested and the
	// shares for Redeemed, matching what the caller requested.
	Settled *big.Int
}

// DecodeEvent returns the first log in receipt emitted by contract that
// decodes as eventName.
func DecodeEvent(receipt *evm.Receipt, contract, eventName string) (EventFields, bool) {
	abi, ok := poolEvents[eventName]
	if receipt == nil || !ok {
		return EventFields{}, false
	}
	for _, l := range receipt.Logs {
		if fields, ok := decodeLog(l, contract, eventName, abi); ok {
			return fields, true
		}
	}
	return EventFields{}, false
}

func decodeLog(l evm.Log, contract, name string, abi eventABI) (EventFields, bool) {
	if !strings.EqualFold(l.Address, contract) {
		return EventFields{}, false
	}
	if len(l.Topics) < 2 || !strings.EqualFold(l.Topics[0], abi.topic) {
		return EventFields{}, false
	}
	words, err := evm.Words(l.Data)
	if err != nil || len(words) < len(abi.fields) {
		return EventFields{}, false
	}
	investorTopic, err := evm.DecodeHex(l.Topics[1])
	if err != nil || len(investorTopic) != evm.WordSize {
		return EventFields{}, false
	}
	var investor evm.Word
	copy(investor[:], investorTopic)

	fields := make(map[string]*big.Int, len(abi.fields))
	for i, f := range abi.fields {
		fields[f] = words[i].Big()
	}
	return EventFields{
		Name:     name,
		Investor: investor.Address(),
		Fields:   fields,
		Settled:  words[0].Big(),
	}, true
}

// EncodeEventLog builds a pool event log. Used by the stub chain and tests.
func EncodeEventLog(contract, eventName, investor string, values ...*big.Int) (evm.Log, error) {
	abi := poolEvents[eventName]
	investorWord, err := evm.AddressWord(investor)
	if err != nil {
		return evm.Log{}, err
	}
	var data []byte
	for _, v := range values {
		w, err := evm.Uint256Word(v)
		if err != nil {
			return evm.Log{}, err
		}
		data = append(data, w[:]...)
	}
	return evm.Log{
		Address: contract,
		Topics:  []string{abi.topic, evm.EncodeHex(investorWord[:])},
		Data:    data,
	}, nil
}
