package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassify_Kinds(t *testing.T) {
	hash := common.HexToHash("0xabc")
	addr := common.HexToAddress("0x1234")

	tests := []struct {
		name      string
		err       error
		kind      FailureKind
		stage     Stage
		retryable bool
	}{
		{
			name:  "compile error",
			err:   &CompileError{Contract: "Storage", Messages: []string{"ParserError: Expected ';'"}},
			kind:  CompileFailure,
			stage: StageCompile,
		},
		{
			name:  "encoding error",
			err:   &EncodingError{Target: "constructor", Err: errors.New("argument count mismatch: got 0 for 1")},
			kind:  EncodingFailure,
			stage: StageBuild,
		},
		{
			name:  "invalid request",
			err:   fmt.Errorf("%w: gas limit must be greater than zero", ErrInvalidRequest),
			kind:  EncodingFailure,
			stage: StageBuild,
		},
		{
			name:  "chain id mismatch in preflight",
			err:   AtStage(StagePreflight, "", fmt.Errorf("%w: expected 1337, got 1", ErrChainIDMismatch)),
			kind:  EncodingFailure,
			stage: StagePreflight,
		},
		{
			name:      "nonce too low",
			err:       &SubmissionError{Kind: SubmissionKindRejected, Reason: RejectNonceTooLow, Message: "nonce too low"},
			kind:      SubmissionRejected,
			stage:     StageSubmit,
			retryable: true,
		},
		{
			name:  "underpriced",
			err:   &SubmissionError{Kind: SubmissionKindRejected, Reason: RejectUnderpriced, Message: "transaction underpriced"},
			kind:  SubmissionRejected,
			stage: StageSubmit,
		},
		{
			name:      "timeout",
			err:       &SubmissionError{Kind: SubmissionKindTimeout, TxHash: hash},
			kind:      SubmissionTimeout,
			stage:     StageConfirm,
			retryable: true,
		},
		{
			name:  "revert",
			err:   &RevertError{Reason: "zero value", TxHash: hash, Receipt: &Receipt{TxHash: hash, Status: ReceiptFailed, BlockNumber: 7}},
			kind:  OnChainRevert,
			stage: StageInvoke,
		},
		{
			name:  "inconsistent deployment",
			err:   &InconsistentDeploymentError{Contract: "Storage", Address: addr, MinCodeSize: 1},
			kind:  DeploymentInconsistent,
			stage: StageVerify,
		},
		{
			name:      "transport",
			err:       &TransportError{Op: "eth_chainId", Attempts: 4, Err: errors.New("connection refused")},
			kind:      TransportFailure,
			stage:     StagePreflight,
			retryable: true,
		},
		{
			name:      "deadline",
			err:       fmt.Errorf("fetch code: %w", context.DeadlineExceeded),
			kind:      TransportFailure,
			stage:     StagePreflight,
			retryable: true,
		},
		{
			name:      "untyped",
			err:       errors.New("EOF"),
			kind:      TransportFailure,
			stage:     StagePreflight,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.err)
			require.NotNil(t, d)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.stage, d.Stage)
			assert.Equal(t, tt.retryable, d.Retryable)
			assert.NotEmpty(t, d.Remedy)
			assert.Equal(t, tt.err.Error(), d.Message)
		})
	}
}

func TestClassify_PipelineStageWins(t *testing.T) {
	err := AtStage(StageVerify, "Storage", &TransportError{Op: "eth_getCode", Err: errors.New("reset")})

	d := Classify(err)
	assert.Equal(t, TransportFailure, d.Kind)
	assert.Equal(t, StageVerify, d.Stage)
	assert.Equal(t, "Storage", d.Contract)
}

func TestClassify_TransportAfterBroadcast(t *testing.T) {
	hash := common.HexToHash("0xabc")
	nonce := uint64(7)
	from := common.HexToAddress("0x01")
	err := &TransportError{
		Op:       "eth_getTransactionReceipt",
		Attempts: 3,
		Err:      errors.New("connection reset"),
		TxHash:   hash,
		Tx:       TxContext{From: from, Nonce: &nonce, GasLimit: 100_000},
	}

	d := Classify(err)
	assert.Equal(t, TransportFailure, d.Kind)
	assert.Equal(t, StageConfirm, d.Stage)
	require.NotNil(t, d.TxHash)
	assert.Equal(t, hash, *d.TxHash)
	require.NotNil(t, d.Nonce)
	assert.Equal(t, nonce, *d.Nonce)
	assert.Equal(t, from, *d.From)
	assert.False(t, d.Retryable, "resubmitting could send the transaction twice")
	assert.Contains(t, d.Remedy, "sling tx")
}

func TestClassify_AtStageKeepsInnermostStage(t *testing.T) {
	inner := AtStage(StageSubmit, "", &SubmissionError{Kind: SubmissionKindRejected, Reason: RejectInsufficientFunds})
	outer := AtStage(StageInvoke, "", inner)

	assert.Same(t, inner, outer)
	assert.Equal(t, StageSubmit, Classify(outer).Stage)
}

func TestClassify_RevertCarriesReceiptAndTx(t *testing.T) {
	hash := common.HexToHash("0xfeed")
	from := common.HexToAddress("0xaaaa")
	to := common.HexToAddress("0xbbbb")
	nonce := uint64(3)
	data := make([]byte, 80)
	for i := range data {
		data[i] = 0xab
	}

	d := Classify(&RevertError{
		Method: "store",
		Reason: "zero value",
		TxHash: hash,
		Receipt: &Receipt{
			TxHash:      hash,
			Status:      ReceiptFailed,
			BlockNumber: 12,
			GasUsed:     23000,
		},
		Tx: TxContext{From: from, To: &to, Data: data, Nonce: &nonce, GasLimit: 100000, GasPrice: big.NewInt(0)},
	})

	assert.Equal(t, OnChainRevert, d.Kind)
	assert.Equal(t, "zero value", d.Reason)
	assert.Equal(t, ReceiptFailed, d.ReceiptStatus)
	assert.Equal(t, uint64(12), d.BlockNumber)
	assert.Equal(t, uint64(23000), d.GasUsed)
	require.NotNil(t, d.TxHash)
	assert.Equal(t, hash, *d.TxHash)
	assert.Equal(t, from, *d.From)
	assert.Equal(t, to, *d.To)
	assert.Equal(t, uint64(3), *d.Nonce)
	assert.Len(t, d.DataPreview, DataPreviewLength+3)
	assert.True(t, strings.HasSuffix(d.DataPreview, "..."))
}

func TestClassify_ExitCodesAreDistinct(t *testing.T) {
	kinds := []FailureKind{
		CompileFailure, EncodingFailure, SubmissionRejected, SubmissionTimeout,
		OnChainRevert, DeploymentInconsistent, TransportFailure,
	}
	seen := map[int]FailureKind{}
	for _, k := range kinds {
		code := k.ExitCode()
		assert.NotZero(t, code)
		if prev, ok := seen[code]; ok {
			t.Fatalf("%s and %s share exit code %d", prev, k, code)
		}
		seen[code] = k
	}
}

func TestPreviewData(t *testing.T) {
	assert.Equal(t, "", PreviewData(nil))
	assert.Equal(t, "0x6057361d", PreviewData(common.FromHex("0x6057361d")))

	long := PreviewData(make([]byte, 64))
	assert.Equal(t, "0x"+strings.Repeat("0", DataPreviewLength-2)+"...", long)
}

func TestParseRejectReason(t *testing.T) {
	tests := map[string]RejectReason{
		"nonce too low: next nonce 5, tx nonce 4":              RejectNonceTooLow,
		"transaction underpriced":                              RejectUnderpriced,
		"insufficient funds for gas * price + value":           RejectInsufficientFunds,
		"intrinsic gas too low: have 1, want 53000":            RejectIntrinsicGas,
		"invalid chain id for signer":                          RejectChainID,
		"already known":                                        RejectAlreadyKnown,
		"only replay-protected (EIP-155) transactions allowed": RejectUnprotected,
		"something unexpected":                                 RejectOther,
	}
	for msg, want := range tests {
		assert.Equal(t, want, ParseRejectReason(msg), msg)
	}
}
