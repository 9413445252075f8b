package render

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	diagKindStyle  = color.New(color.FgRed, color.Bold)
	diagKeyStyle   = color.New(color.Faint)
	diagRemedy     = color.New(color.FgYellow)
	diagRetryStyle = color.New(color.FgGreen)
)

// DiagnosticRenderer prints classified failures for operators
type DiagnosticRenderer struct {
	out io.Writer
}

// NewDiagnosticRenderer creates a new diagnostic renderer
func NewDiagnosticRenderer(out io.Writer) *DiagnosticRenderer {
	return &DiagnosticRenderer{out: out}
}

// RenderDiagnostic prints d as a headline followed by the transaction
// context that is known
func (r *DiagnosticRenderer) RenderDiagnostic(d *domain.Diagnostic) {
	if d == nil {
		return
	}

	title := splitCamel(string(d.Kind))
	where := ""
	if d.Stage != "" {
		where = " during " + cases.Title(language.English).String(string(d.Stage))
	}
	if d.Contract != "" {
		where += " of " + d.Contract
	}
	fmt.Fprintf(r.out, "%s%s\n", diagKindStyle.Sprintf("❌ %s", title), where)
	fmt.Fprintf(r.out, "   %s\n", d.Message)

	field := func(key, value string) {
		if value != "" {
			fmt.Fprintf(r.out, "   %s %s\n", diagKeyStyle.Sprintf("%-10s", key+":"), value)
		}
	}
	field("Reason", d.Reason)
	if d.TxHash != nil {
		field("Tx Hash", d.TxHash.Hex())
	}
	if d.From != nil {
		field("From", d.From.Hex())
	}
	if d.To != nil {
		field("To", d.To.Hex())
	}
	if d.Address != nil {
		field("Address", d.Address.Hex())
	}
	if d.Nonce != nil {
		field("Nonce", fmt.Sprint(*d.Nonce))
	}
	if d.GasLimit > 0 {
		field("Gas Limit", formatGas(d.GasLimit))
	}
	if d.GasPrice != nil {
		field("Gas Price", formatWei(d.GasPrice))
	}
	field("Data", d.DataPreview)
	if d.ReceiptStatus != "" {
		field("Receipt", string(d.ReceiptStatus))
	}
	if d.BlockNumber > 0 {
		field("Block", fmt.Sprint(d.BlockNumber))
	}
	if d.GasUsed > 0 {
		field("Gas Used", formatGas(d.GasUsed))
	}

	if d.Remedy != "" {
		fmt.Fprintf(r.out, "   %s %s\n", diagRemedy.Sprint("→"), d.Remedy)
	}
	if d.Retryable {
		fmt.Fprintf(r.out, "   %s\n", diagRetryStyle.Sprint("safe to retry"))
	}
}

// splitCamel turns "OnChainRevert" into "On Chain Revert"
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
