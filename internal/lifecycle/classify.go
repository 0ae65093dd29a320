package lifecycle

import (
	"context"
	"errors"
	"strings"

	"rwa-portfolio/internal/evm"
)

// codeUserRejected is the EIP-1193 "user rejected request" code.
const codeUserRejected = 4001

// classifyWriteError maps a submission error to a lifecycle error.
// Wallet rejections and missing gas funds are recognised by code or
// message; anything else becomes fallback, carrying the revert reason
// when the node returned one.
func classifyWriteError(err error, fallback ErrorKind, action string) *Error {
	if errors.Is(err, context.Canceled) {
		return newError(KindCancelled, action+" cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, action+" timed out", err)
	}

	msg := strings.ToLower(err.Error())

	var rpcErr *evm.RPCError
	isRPC := errors.As(err, &rpcErr)

	if (isRPC && rpcErr.Code == codeUserRejected) ||
		strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied") {
		return newError(KindUserRejected, "transaction rejected in wallet", err)
	}

	if strings.Contains(msg, "insufficient funds") {
		return newError(KindInsufficientFunds, "insufficient funds for "+action, err)
	}

	if isRPC {
		if data, ok := rpcErr.RevertData(); ok {
			if reason, ok := evm.DecodeRevertReason(data); ok {
				return newError(fallback, reason, err)
			}
		}
	}

	return newError(fallback, action+" failed", err)
}

// classifyApprovalError is classifyWriteError for the approval step, where
// every failure other than cancellation or timeout is an approval failure.
func classifyApprovalError(err error) *Error {
	e := classifyWriteError(err, KindApprovalFailed, "approval")
	if e.Kind != KindCancelled && e.Kind != KindTimeout {
		e.Kind = KindApprovalFailed
	}
	return e
}

// classifyReadError maps a chain read error during validation.
func classifyReadError(err error, what string) *Error {
	if errors.Is(err, context.Canceled) {
		return newError(KindCancelled, "cancelled while reading "+what, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, "timed out reading "+what, err)
	}
	return newError(KindChainRead, "failed to read "+what, err)
}
