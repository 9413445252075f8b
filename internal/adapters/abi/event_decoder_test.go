package abi

import (
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/testutil"
)

func TestEventDecoder_DecodeLogs(t *testing.T) {
	storage, err := abi.JSON(strings.NewReader(testutil.StorageABI))
	require.NoError(t, err)

	transferABI, _, err := ParseHumanReadable([]byte("event Transfer(address indexed from, address indexed to, uint256 value)"))
	require.NoError(t, err)

	emitter := testutil.Address(2)
	value := common.BigToHash(big.NewInt(7))

	tests := []struct {
		name       string
		contract   *abi.ABI
		log        *types.Log
		wantName   string
		wantParams [][]string
	}{
		{
			name:     "non indexed parameter",
			contract: &storage,
			log: &types.Log{
				Address: emitter,
				Topics:  []common.Hash{common.HexToHash(testutil.NumberChangedTopic)},
				Data:    value.Bytes(),
			},
			wantName:   "NumberChanged",
			wantParams: [][]string{{"value", "7"}},
		},
		{
			name:     "indexed parameters",
			contract: &transferABI,
			log: &types.Log{
				Address: emitter,
				Topics: []common.Hash{
					transferABI.Events["Transfer"].ID,
					common.BytesToHash(testutil.Address(0).Bytes()),
					common.BytesToHash(testutil.Address(1).Bytes()),
				},
				Data: value.Bytes(),
			},
			wantName: "Transfer",
			wantParams: [][]string{
				{"from", testutil.Address(0).Hex()},
				{"to", testutil.Address(1).Hex()},
				{"value", "7"},
			},
		},
		{
			name:     "unknown event",
			contract: &storage,
			log: &types.Log{
				Address: emitter,
				Topics:  []common.Hash{common.HexToHash("0x01")},
			},
		},
		{
			name:     "no abi",
			contract: nil,
			log:      &types.Log{Address: emitter, Topics: []common.Hash{common.HexToHash(testutil.NumberChangedTopic)}},
		},
	}

	decoder := NewEventDecoder(slog.New(slog.DiscardHandler))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := decoder.DecodeLogs(tt.contract, []*types.Log{tt.log})
			require.Len(t, events, 1)
			assert.Equal(t, emitter, events[0].Address)
			assert.Equal(t, tt.wantName, events[0].Name)
			assert.Equal(t, tt.wantName != "", events[0].Decoded())
			assert.Equal(t, tt.wantParams, events[0].Params)
		})
	}
}

func TestEventDecoder_MalformedData(t *testing.T) {
	storage, err := abi.JSON(strings.NewReader(testutil.StorageABI))
	require.NoError(t, err)

	decoder := NewEventDecoder(slog.New(slog.DiscardHandler))
	_, err = decoder.DecodeLog(&storage, &types.Log{
		Topics: []common.Hash{common.HexToHash(testutil.NumberChangedTopic)},
		Data:   []byte{0x01},
	})
	assert.ErrorContains(t, err, "failed to unpack event data")
}
