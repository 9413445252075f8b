package render

import (
	"encoding/json"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numbers = message.NewPrinter(language.English)

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	if len(message) > 0 {
		message = strings.ToUpper(message[:1]) + message[1:]
	}
	return color.New(color.FgRed).Sprintf("❌ %s", message)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// formatGas groups digits: 1234567 -> 1,234,567
func formatGas(gas uint64) string {
	return numbers.Sprintf("%d", gas)
}

// formatWei shows small amounts in wei and larger ones in gwei or ether
func formatWei(wei *big.Int) string {
	if wei == nil {
		return "-"
	}
	switch {
	case wei.Sign() == 0:
		return "0 wei"
	case wei.Cmp(big.NewInt(params.GWei/1000)) < 0:
		return numbers.Sprintf("%d wei", wei.Int64())
	case wei.Cmp(big.NewInt(params.Ether/1000)) < 0:
		f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.GWei)).Float64()
		return numbers.Sprintf("%.4g gwei", f)
	default:
		f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
		return numbers.Sprintf("%.6g ether", f)
	}
}

// RenderJSON writes v as indented JSON, the --json form of every command
func RenderJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
