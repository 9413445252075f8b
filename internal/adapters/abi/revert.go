package abi

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/trebuchet-org/sling/internal/usecase"
)

var (
	errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	panicSelector = crypto.Keccak256([]byte("Panic(uint256)"))[:4]
)

// RevertDecoder renders revert payloads as Error(string) reasons, Panic
// codes or custom errors of the contract ABI.
type RevertDecoder struct{}

// NewRevertDecoder creates a new revert decoder
func NewRevertDecoder() *RevertDecoder {
	return &RevertDecoder{}
}

// DecodeRevert returns a readable reason for data, or "" when the revert
// carried no data at all.
func (d *RevertDecoder) DecodeRevert(contract *abi.ABI, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) < 4 {
		return fmt.Sprintf("malformed revert data %s", hexutil.Encode(data))
	}

	selector := data[:4]
	switch {
	case bytes.Equal(selector, errorSelector):
		if reason, err := abi.UnpackRevert(data); err == nil {
			return reason
		}
	case bytes.Equal(selector, panicSelector):
		if reason, err := abi.UnpackRevert(data); err == nil {
			return "panic: " + reason
		}
	}

	if contract != nil {
		if decoded, ok := decodeCustomError(contract, data); ok {
			return decoded
		}
	}
	return fmt.Sprintf("custom error %s (data %s)", hexutil.Encode(selector), hexutil.Encode(data))
}

// RevertData extracts the revert payload a node attached to a call error.
func (d *RevertDecoder) RevertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		b, decodeErr := hexutil.Decode(v)
		if decodeErr != nil {
			return nil, false
		}
		return b, true
	case []byte:
		return v, true
	}
	return nil, false
}

func decodeCustomError(contract *abi.ABI, data []byte) (string, bool) {
	var id [4]byte
	copy(id[:], data[:4])
	customErr, err := contract.ErrorByID(id)
	if err != nil {
		return "", false
	}
	values, err := customErr.Inputs.Unpack(data[4:])
	if err != nil {
		return "", false
	}
	args := make([]string, len(values))
	for i, v := range values {
		args[i] = usecase.FormatValue(v)
		if name := customErr.Inputs[i].Name; name != "" {
			args[i] = name + "=" + args[i]
		}
	}
	return fmt.Sprintf("%s(%s)", customErr.Name, strings.Join(args, ", ")), true
}

var _ usecase.RevertDecoder = (*RevertDecoder)(nil)
