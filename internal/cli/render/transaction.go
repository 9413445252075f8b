package render

import (
	"fmt"
	"io"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/adapters/abi"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// TransactionRenderer prints method invocations and receipts, decoding
// emitted events against the target ABI
type TransactionRenderer struct {
	out          io.Writer
	eventDecoder *abi.EventDecoder
}

// NewTransactionRenderer creates a new transaction renderer
func NewTransactionRenderer(out io.Writer, eventDecoder *abi.EventDecoder) *TransactionRenderer {
	return &TransactionRenderer{
		out:          out,
		eventDecoder: eventDecoder,
	}
}

// RenderInvocation prints returned values for calls and the receipt for
// sends. contract may be nil, in which case events stay undecoded.
func (r *TransactionRenderer) RenderInvocation(result *domain.InvocationResult, contract *ethabi.ABI) error {
	if result.ReadOnly {
		switch len(result.Values) {
		case 0:
			fmt.Fprintln(r.out, color.New(color.Faint).Sprint("(no return values)"))
		case 1:
			fmt.Fprintln(r.out, usecase.FormatValue(result.Values[0]))
		default:
			for i, v := range result.Values {
				fmt.Fprintf(r.out, "[%d] %s\n", i, usecase.FormatValue(v))
			}
		}
		return nil
	}

	fmt.Fprintf(r.out, "%s %s at %s\n",
		color.New(color.Bold).Sprint("→"),
		color.New(color.FgCyan).Sprint(result.Method),
		result.Address.Hex())
	r.renderReceipt(result.TxHash.Hex(), result.Receipt, contract)
	return nil
}

// RenderTrack prints the latest observation of a re-polled transaction
func (r *TransactionRenderer) RenderTrack(result *usecase.TrackResult) error {
	fmt.Fprintf(r.out, "%s %s\n", color.New(color.Bold).Sprint("Transaction"), result.Hash.Hex())
	if rec := result.Record; rec != nil {
		target := "contract creation"
		if rec.To != nil {
			target = rec.To.Hex()
		}
		what := rec.Contract
		if rec.Method != "" {
			what = strings.TrimSpace(what + " " + rec.Method)
		}
		fmt.Fprintf(r.out, "  Kind:     %s %s\n", rec.Kind, what)
		fmt.Fprintf(r.out, "  From:     %s (nonce %d)\n", rec.From.Hex(), rec.Nonce)
		fmt.Fprintf(r.out, "  To:       %s\n", target)
		fmt.Fprintf(r.out, "  Sent:     %s\n", rec.SubmittedAt.Format("2006-01-02 15:04:05"))
	}
	r.renderReceipt("", result.Receipt, nil)
	if dep := result.Deployment; dep != nil {
		fmt.Fprintf(r.out, "  Deployed: %s at %s (%s)\n", dep.ContractName, dep.Address.Hex(), dep.ID)
	}
	return nil
}

func (r *TransactionRenderer) renderReceipt(hash string, receipt *domain.Receipt, contract *ethabi.ABI) {
	if hash != "" {
		fmt.Fprintf(r.out, "  Tx Hash:  %s\n", hash)
	}
	if receipt == nil {
		return
	}
	fmt.Fprintf(r.out, "  Status:   %s\n", formatStatus(receipt.Status))
	if !receipt.Terminal() {
		return
	}
	fmt.Fprintf(r.out, "  Block:    %d\n", receipt.BlockNumber)
	fmt.Fprintf(r.out, "  Gas Used: %s\n", formatGas(receipt.GasUsed))
	if receipt.ContractAddress != nil {
		fmt.Fprintf(r.out, "  Created:  %s\n", receipt.ContractAddress.Hex())
	}
	if len(receipt.Logs) == 0 {
		return
	}

	if contract == nil {
		contract = &ethabi.ABI{}
	}
	fmt.Fprintln(r.out, "  Events:")
	for _, ev := range r.eventDecoder.DecodeLogs(contract, receipt.Logs) {
		fmt.Fprintf(r.out, "    %s\n", formatEvent(ev))
	}
}

func formatEvent(ev *abi.DecodedEvent) string {
	if !ev.Decoded() {
		topic := "anonymous"
		if len(ev.Topics) > 0 {
			topic = ev.Topics[0].Hex()[:10]
		}
		return color.New(color.Faint).Sprintf("%s from %s (%d bytes)", topic, ev.Address.Hex(), len(ev.Data))
	}
	params := make([]string, 0, len(ev.Params))
	for _, p := range ev.Params {
		params = append(params, fmt.Sprintf("%s: %s", p[0], p[1]))
	}
	return fmt.Sprintf("%s(%s)", color.New(color.FgMagenta).Sprint(ev.Name), strings.Join(params, ", "))
}
