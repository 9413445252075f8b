package abi

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/adapters/devchain"
	"github.com/trebuchet-org/sling/internal/testutil"
)

func encodeWithSelector(t *testing.T, selector []byte, types []string, values ...any) []byte {
	t.Helper()
	var args abi.Arguments
	for _, typ := range types {
		args = append(args, abi.Argument{Type: mustType(t, typ)})
	}
	packed, err := args.Pack(values...)
	require.NoError(t, err)
	return append(append([]byte{}, selector...), packed...)
}

func TestRevertDecoder_DecodeRevert(t *testing.T) {
	token, err := abi.JSON(strings.NewReader(testutil.TokenABI))
	require.NoError(t, err)
	decoder := NewRevertDecoder()

	insufficientErr := token.Errors["InsufficientBalance"]
	insufficient := insufficientErr.ID[:4]

	tests := []struct {
		name     string
		contract *abi.ABI
		data     []byte
		want     string
	}{
		{
			name: "no data",
			data: nil,
			want: "",
		},
		{
			name: "error string",
			data: encodeWithSelector(t, errorSelector, []string{"string"}, "zero value"),
			want: "zero value",
		},
		{
			name: "panic code",
			data: encodeWithSelector(t, panicSelector, []string{"uint256"}, big.NewInt(0x11)),
			want: "panic: arithmetic underflow or overflow",
		},
		{
			name:     "custom error from the contract abi",
			contract: &token,
			data:     encodeWithSelector(t, insufficient, []string{"uint256", "uint256"}, big.NewInt(5), big.NewInt(10)),
			want:     "InsufficientBalance(available=5, required=10)",
		},
		{
			name: "custom error without abi",
			data: hexutil.MustDecode("0xcf479181"),
			want: "custom error 0xcf479181 (data 0xcf479181)",
		},
		{
			name: "truncated selector",
			data: []byte{0x08, 0xc3},
			want: "malformed revert data 0x08c3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decoder.DecodeRevert(tt.contract, tt.data))
		})
	}
}

func TestRevertDecoder_RevertData(t *testing.T) {
	decoder := NewRevertDecoder()

	t.Run("rpc data error", func(t *testing.T) {
		err := fmt.Errorf("call failed: %w", &devchain.RPCError{Code: 3, Message: "execution reverted", Data: "0x08c379a0"})
		data, ok := decoder.RevertData(err)
		require.True(t, ok)
		assert.Equal(t, hexutil.MustDecode("0x08c379a0"), data)
	})

	t.Run("rpc error without data", func(t *testing.T) {
		_, ok := decoder.RevertData(&devchain.RPCError{Code: -32000, Message: "nonce too low"})
		assert.False(t, ok)
	})

	t.Run("plain error", func(t *testing.T) {
		_, ok := decoder.RevertData(errors.New("connection refused"))
		assert.False(t, ok)
	})
}
