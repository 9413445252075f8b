package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// NetworkRenderer renders what the node reports against the active profile
type NetworkRenderer struct {
	out   io.Writer
	color bool
}

// NewNetworkRenderer creates a new network renderer
func NewNetworkRenderer(out io.Writer, color bool) *NetworkRenderer {
	return &NetworkRenderer{
		out:   out,
		color: color,
	}
}

// RenderNetworkReport renders `sling network`
func (r *NetworkRenderer) RenderNetworkReport(report *usecase.NetworkReport) error {
	p := report.Profile
	fmt.Fprintf(r.out, "🌐 %s\n", color.New(color.Bold).Sprint(p.Name))
	fmt.Fprintf(r.out, "  RPC:          %s\n", p.RPCURL)

	chain := fmt.Sprintf("%s (profile %d)", report.ChainID, p.ChainID)
	if report.ChainIDMatches {
		chain = color.New(color.FgGreen).Sprintf("✓ %s", report.ChainID)
	} else {
		chain = color.New(color.FgRed).Sprintf("✗ %s", chain)
	}
	fmt.Fprintf(r.out, "  Chain ID:     %s\n", chain)
	fmt.Fprintf(r.out, "  Block:        %d\n", report.BlockNumber)
	fmt.Fprintf(r.out, "  EVM:          %s\n", p.EVMVersion)
	fmt.Fprintf(r.out, "  Fee Policy:   %s\n", p.FeePolicy)
	fmt.Fprintf(r.out, "  Gas Price:    %s (node suggests %s)\n", formatWei(report.EffectivePrice), formatWei(report.SuggestedPrice))
	fmt.Fprintf(r.out, "  Block Time:   %s\n", p.BlockTime)

	if report.Signer != nil {
		fmt.Fprintf(r.out, "  Signer:       %s\n", report.Signer.Hex())
		fmt.Fprintf(r.out, "  Balance:      %s\n", formatWei(report.SignerBalance))
		fmt.Fprintf(r.out, "  Next Nonce:   %d\n", report.PendingNonce)
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintln(r.out)
		for _, w := range report.Warnings {
			fmt.Fprintln(r.out, FormatWarning(w))
		}
	}
	return nil
}

// RenderProbe renders the result of `sling probe`
func (r *NetworkRenderer) RenderProbe(result *usecase.ProbeResult) error {
	if result.Healthy {
		fmt.Fprintln(r.out, FormatSuccess("Node executes contract code"))
	} else {
		fmt.Fprintln(r.out, FormatError(fmt.Sprintf("probe answered %s, expected 42", result.Answer)))
	}
	fmt.Fprintf(r.out, "  Probe:    %s\n", result.Deployment.Address.Hex())
	fmt.Fprintf(r.out, "  Tx Hash:  %s\n", result.Deployment.TxHash.Hex())
	if rc := result.Deployment.Receipt; rc != nil && rc.Terminal() {
		fmt.Fprintf(r.out, "  Block:    %d\n", rc.BlockNumber)
		fmt.Fprintf(r.out, "  Gas Used: %s\n", formatGas(rc.GasUsed))
	}
	return nil
}
