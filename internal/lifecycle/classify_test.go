package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"rwa-portfolio/internal/evm"
)

func TestClassifyWriteError(t *testing.T) {
	revertData, _ := json.Marshal(evm.EncodeHex(evm.EncodeRevertReason("pool paused")))

	tests := []struct {
		name    string
		err     error
		want    ErrorKind
		message string
	}{
		{"cancelled", fmt.Errorf("send: %w", context.Canceled), KindCancelled, ""},
		{"deadline", context.DeadlineExceeded, KindTimeout, ""},
		{"eip-1193 code", &evm.RPCError{Code: 4001, Message: "rejected"}, KindUserRejected, ""},
		{"user rejected text", errors.New("User rejected the request."), KindUserRejected, ""},
		{"user denied text", errors.New("MetaMask Tx Signature: User denied transaction signature."), KindUserRejected, ""},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), KindInsufficientFunds, ""},
		{"revert reason", &evm.RPCError{Code: 3, Message: "execution reverted", Data: revertData}, KindChainRevert, "pool paused"},
		{"generic revert", &evm.RPCError{Code: 3, Message: "execution reverted"}, KindChainRevert, "invest failed"},
		{"other", errors.New("boom"), KindChainRevert, "invest failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyWriteError(tt.err, KindChainRevert, "invest")
			assert.Equal(t, tt.want, got.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, got.Message)
			}
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyApprovalError(t *testing.T) {
	assert.Equal(t, KindApprovalFailed, classifyApprovalError(errors.New("User rejected the request.")).Kind)
	assert.Equal(t, KindApprovalFailed, classifyApprovalError(errors.New("insufficient funds")).Kind)
	assert.Equal(t, KindCancelled, classifyApprovalError(context.Canceled).Kind)
}

func TestClassifyReadError(t *testing.T) {
	assert.Equal(t, KindChainRead, classifyReadError(errors.New("eof"), "allowance").Kind)
	assert.Equal(t, KindCancelled, classifyReadError(context.Canceled, "allowance").Kind)
	assert.Equal(t, KindTimeout, classifyReadError(context.DeadlineExceeded, "allowance").Kind)
}

func TestError(t *testing.T) {
	inner := errors.New("root")
	err := &Error{Kind: KindChainRead, Message: "failed to read x", Err: inner}
	assert.Equal(t, "ChainReadError: failed to read x: root", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, KindChainRead, KindOf(fmt.Errorf("wrap: %w", err)))
	assert.Equal(t, ErrorKind(""), KindOf(inner))
}
