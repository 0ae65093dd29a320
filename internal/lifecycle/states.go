package lifecycle

import "time"

// State is a lifecycle state.
type State string

const (
	StateIdle       State = "Idle"
	StateValidating State = "Validating"
	StateApproving  State = "Approving"
	StateSubmitting State = "Submitting"
	StateConfirming State = "Confirming"
	StateSucceeded  State = "Succeeded"
	StateFailed     State = "Failed"
)

// Terminal reports whether no transition can follow s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Transition is one step of a run, as streamed to callers.
type Transition struct {
	IntentID string    `json:"intentId"`
	State    State     `json:"state"`
	At       time.Time `json:"at"`

	// TxHash is the approval hash while Approving, then the invest or
	// redeem hash from Confirming on.
	TxHash string `json:"txHash,omitempty"`

	// Succeeded only.
	SettledAmount float64 `json:"settledAmount,omitempty"`
	Fallback      bool    `json:"settledFromRequest,omitempty"`

	// Failed only.
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Err returns the failure of a Failed transition as an *Error.
func (t Transition) Err() error {
	if t.State != StateFailed {
		return nil
	}
	return &Error{Kind: t.ErrorKind, Message: t.Message, TxHash: t.TxHash}
}
