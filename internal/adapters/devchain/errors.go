package devchain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	codeServerError = -32000
	codeReverted    = 3
)

// RPCError mirrors the JSON-RPC error object a geth node returns, so that
// callers handle the dev chain exactly like a remote node.
type RPCError struct {
	Code    int
	Message string
	Data    string
}

func (e *RPCError) Error() string { return e.Message }

// ErrorCode returns the JSON-RPC error code
func (e *RPCError) ErrorCode() int { return e.Code }

// ErrorData returns the hex encoded revert data, if any
func (e *RPCError) ErrorData() interface{} {
	if e.Data == "" {
		return nil
	}
	return e.Data
}

var (
	_ rpc.Error     = (*RPCError)(nil)
	_ rpc.DataError = (*RPCError)(nil)
)

func rejectf(format string, args ...any) error {
	return &RPCError{Code: codeServerError, Message: fmt.Sprintf(format, args...)}
}

func revertError(ret []byte) error {
	msg := "execution reverted"
	if reason, err := abi.UnpackRevert(ret); err == nil {
		msg += ": " + reason
	}
	return &RPCError{Code: codeReverted, Message: msg, Data: hexutil.Encode(ret)}
}
