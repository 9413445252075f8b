package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// DeploymentRenderer renders a single deployment, either fresh from a
// deploy or loaded from the registry
type DeploymentRenderer struct {
	out   io.Writer
	color bool
}

// NewDeploymentRenderer creates a new deployment renderer
func NewDeploymentRenderer(out io.Writer, color bool) *DeploymentRenderer {
	return &DeploymentRenderer{
		out:   out,
		color: color,
	}
}

// RenderDeployResult prints the outcome of `sling deploy`
func (r *DeploymentRenderer) RenderDeployResult(result *usecase.DeployResult) error {
	d := result.Deployment
	if d == nil {
		return nil
	}

	if d.Usable() {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Deployed %s", d.ContractName)))
	} else {
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%s is not usable", d.ContractName)))
	}
	fmt.Fprintf(r.out, "  Address:  %s\n", color.New(color.FgYellow).Sprint(d.Address.Hex()))
	fmt.Fprintf(r.out, "  Tx Hash:  %s\n", d.TxHash.Hex())
	if d.Receipt != nil {
		fmt.Fprintf(r.out, "  Status:   %s\n", formatStatus(d.Receipt.Status))
		if d.Receipt.Terminal() {
			fmt.Fprintf(r.out, "  Block:    %d\n", d.Receipt.BlockNumber)
			fmt.Fprintf(r.out, "  Gas Used: %s\n", formatGas(d.Receipt.GasUsed))
		}
	}
	fmt.Fprintf(r.out, "  Code:     %s\n", formatCode(d.CodeVerified))
	if result.Signed != nil {
		fmt.Fprintf(r.out, "  Deployer: %s (nonce %d)\n", result.Signed.From.Hex(), result.Signed.Nonce)
	}
	if result.Record != nil {
		fmt.Fprintf(r.out, "  Registry: %s\n", color.New(color.FgCyan).Sprint(result.Record.ID))
	}
	return nil
}

// RenderDeployment renders a registry entry
func (r *DeploymentRenderer) RenderDeployment(d *domain.DeploymentRecord) error {
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Deployment: %s\n", d.ID)
	fmt.Fprintln(r.out, strings.Repeat("=", 80))

	fmt.Fprintln(r.out, "\nBasic Information:")
	fmt.Fprintf(r.out, "  Contract: %s\n", color.New(color.FgYellow).Sprint(d.ContractName))
	fmt.Fprintf(r.out, "  Address: %s\n", d.Address.Hex())
	fmt.Fprintf(r.out, "  Network: %s (chain %d)\n", d.Network, d.ChainID)
	if d.Label != "" {
		fmt.Fprintf(r.out, "  Label: %s\n", color.New(color.FgMagenta).Sprint(d.Label))
	}
	if d.EVMVersion != "" {
		fmt.Fprintf(r.out, "  EVM Version: %s\n", d.EVMVersion)
	}
	fmt.Fprintf(r.out, "  Code: %s\n", formatCode(d.CodeVerified))

	fmt.Fprintln(r.out, "\nTransaction Information:")
	fmt.Fprintf(r.out, "  Hash: %s\n", d.TxHash.Hex())
	fmt.Fprintf(r.out, "  Deployer: %s\n", d.Deployer.Hex())
	if d.BlockNumber > 0 {
		fmt.Fprintf(r.out, "  Block: %d\n", d.BlockNumber)
	}
	if d.GasUsed > 0 {
		fmt.Fprintf(r.out, "  Gas Used: %s\n", formatGas(d.GasUsed))
	}

	fmt.Fprintln(r.out, "\nTimestamps:")
	fmt.Fprintf(r.out, "  Created: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func formatCode(verified bool) string {
	if verified {
		return color.New(color.FgGreen).Sprint("✓ present")
	}
	return color.New(color.FgRed).Sprint("✗ missing")
}

func formatStatus(s domain.ReceiptStatus) string {
	switch s {
	case domain.ReceiptSuccess:
		return color.New(color.FgGreen).Sprint(s)
	case domain.ReceiptFailed:
		return color.New(color.FgRed).Sprint(s)
	default:
		return color.New(color.FgYellow).Sprint(s)
	}
}
