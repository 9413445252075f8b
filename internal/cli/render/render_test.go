package render

import (
	"bytes"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/trebuchet-org/sling/internal/domain"
)

func init() {
	color.NoColor = true
}

func TestSplitCamel(t *testing.T) {
	assert.Equal(t, "On Chain Revert", splitCamel("OnChainRevert"))
	assert.Equal(t, "Compile Failure", splitCamel("CompileFailure"))
	assert.Equal(t, "", splitCamel(""))
}

func TestFormatWei(t *testing.T) {
	tests := []struct {
		wei  *big.Int
		want string
	}{
		{nil, "-"},
		{new(big.Int), "0 wei"},
		{big.NewInt(500), "500 wei"},
		{big.NewInt(1_000_000_000), "1 gwei"},
		{new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)), "1.5 ether"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatWei(tt.wei))
	}
	assert.Equal(t, "1,234,567", formatGas(1234567))
}

func TestRenderDiagnostic(t *testing.T) {
	hash := common.HexToHash("0xabc")
	nonce := uint64(4)
	err := domain.AtStage(domain.StageConfirm, "Storage", &domain.RevertError{
		Reason:  "zero value",
		TxHash:  hash,
		Receipt: &domain.Receipt{TxHash: hash, Status: domain.ReceiptFailed, BlockNumber: 12, GasUsed: 23456},
	})
	d := domain.Classify(err)
	d.Nonce = &nonce

	var buf bytes.Buffer
	NewDiagnosticRenderer(&buf).RenderDiagnostic(d)
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.Equal(t, "❌ On Chain Revert during Confirm of Storage", lines[0])
	assert.Contains(t, out, "Reason:    zero value")
	assert.Contains(t, out, "Tx Hash:   "+hash.Hex())
	assert.Contains(t, out, "Nonce:     4")
	assert.Contains(t, out, "Block:     12")
	assert.Contains(t, out, "Gas Used:  23,456")
	assert.Contains(t, out, "→ check the arguments")
	assert.NotContains(t, out, "safe to retry")
}

func TestRenderDiagnostic_Retryable(t *testing.T) {
	var buf bytes.Buffer
	NewDiagnosticRenderer(&buf).RenderDiagnostic(domain.Classify(&domain.TransportError{Op: "eth_chainId", Attempts: 2, Err: errors.New("refused")}))
	assert.True(t, strings.HasPrefix(buf.String(), "❌ Transport Failure during Preflight"))
	assert.Contains(t, buf.String(), "safe to retry")

	buf.Reset()
	NewDiagnosticRenderer(&buf).RenderDiagnostic(nil)
	assert.Empty(t, buf.String())
}
