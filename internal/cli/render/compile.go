package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/domain"
)

// ArtifactRenderer summarizes a compiled contract
type ArtifactRenderer struct {
	out io.Writer
}

// NewArtifactRenderer creates a new artifact renderer
func NewArtifactRenderer(out io.Writer) *ArtifactRenderer {
	return &ArtifactRenderer{out: out}
}

// RenderArtifact prints name, compiler, size and the ABI surface
func (r *ArtifactRenderer) RenderArtifact(a *domain.CompiledArtifact) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Compiled %s", a.ContractName)))
	if a.SourceName != "" {
		fmt.Fprintf(r.out, "  Source:        %s\n", a.SourceName)
	}
	if a.CompilerVersion != "" {
		fmt.Fprintf(r.out, "  Compiler:      %s\n", a.CompilerVersion)
	}
	fmt.Fprintf(r.out, "  EVM Version:   %s\n", a.EVMVersion)
	fmt.Fprintf(r.out, "  Init Code:     %s bytes\n", formatGas(uint64(len(a.Bytecode))))
	fmt.Fprintf(r.out, "  Init Code Hash: %s\n", crypto.Keccak256Hash(a.Bytecode).Hex())

	if len(a.ABI.Constructor.Inputs) > 0 {
		fmt.Fprintf(r.out, "  Constructor:   %s\n", a.ABI.Constructor.String())
	}

	names := make([]string, 0, len(a.ABI.Methods))
	for name := range a.ABI.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		fmt.Fprintln(r.out, "  Methods:")
		for _, name := range names {
			m := a.ABI.Methods[name]
			mutability := ""
			if m.IsConstant() {
				mutability = color.New(color.Faint).Sprint(" (read)")
			}
			fmt.Fprintf(r.out, "    %s %s%s\n", color.New(color.Faint).Sprintf("0x%x", m.ID), m.Sig, mutability)
		}
	}
	return nil
}
