package lifecycle

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a terminal lifecycle failure.
type ErrorKind string

const (
	KindConfiguration        ErrorKind = "ConfigurationError"
	KindAssetResolution      ErrorKind = "AssetResolutionError"
	KindBelowMinimum         ErrorKind = "BelowMinimumError"
	KindInvalidAmount        ErrorKind = "InvalidAmountError"
	KindRedemptionNotAllowed ErrorKind = "RedemptionNotAllowedError"
	KindApprovalFailed       ErrorKind = "ApprovalFailedError"
	KindUserRejected         ErrorKind = "UserRejectedError"
	KindInsufficientFunds    ErrorKind = "InsufficientFundsError"
	KindChainRevert          ErrorKind = "ChainRevertError"
	KindChainRead            ErrorKind = "ChainReadError"
	KindTimeout              ErrorKind = "TimeoutError"
	KindCancelled            ErrorKind = "CancelledError"
)

// Error is a classified lifecycle failure. TxHash is set when a
// transaction was already broadcast; it may still land.
type Error struct {
	Kind    ErrorKind
	Message string
	TxHash  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of a lifecycle error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
