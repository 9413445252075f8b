package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// artifactJSON is the Foundry-style artifact written by `compile --out`.
// `deploy --artifact` reads it back.
type artifactJSON struct {
	ContractName    string          `json:"contractName"`
	SourceName      string          `json:"sourceName,omitempty"`
	ABI             json.RawMessage `json:"abi"`
	Bytecode        bytecodeJSON    `json:"bytecode"`
	EVMVersion      string          `json:"evmVersion,omitempty"`
	CompilerVersion string          `json:"compilerVersion,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
}

type bytecodeJSON struct {
	Object string `json:"object"`
}

func newArtifactJSON(a *domain.CompiledArtifact) artifactJSON {
	rawABI := a.RawABI
	if len(rawABI) == 0 {
		rawABI = []byte("[]")
	}
	return artifactJSON{
		ContractName:    a.ContractName,
		SourceName:      a.SourceName,
		ABI:             rawABI,
		Bytecode:        bytecodeJSON{Object: hexutil.Encode(a.Bytecode)},
		EVMVersion:      string(a.EVMVersion),
		CompilerVersion: a.CompilerVersion,
		Warnings:        a.Warnings,
	}
}

// compileFlags are shared by compile and deploy
type compileFlags struct {
	contract   string
	evmVersion string
	noOptimize bool
	runs       int
}

func (f *compileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.contract, "contract", "c", "", "Contract to pick from the source or artifact")
	cmd.Flags().StringVar(&f.evmVersion, "evm-version", "", "EVM version passed to solc (defaults to the network's)")
	cmd.Flags().BoolVar(&f.noOptimize, "no-optimize", false, "Disable the solc optimizer")
	cmd.Flags().IntVar(&f.runs, "runs", 0, "Optimizer runs (defaults to sling.toml [compiler])")
}

func (f *compileFlags) evm() (domain.EVMVersion, error) {
	if f.evmVersion == "" {
		return "", nil
	}
	v, err := domain.ParseEVMVersion(f.evmVersion)
	if err != nil {
		return "", &usageError{err: err}
	}
	return v, nil
}

func (f *compileFlags) optimizer(cmd *cobra.Command, defaults *usecase.OptimizerSettings) *usecase.OptimizerSettings {
	if !f.noOptimize && !cmd.Flags().Changed("runs") {
		return defaults
	}
	o := *defaults
	if f.noOptimize {
		o.Enabled = false
	}
	if f.runs > 0 {
		o.Runs = f.runs
	}
	return &o
}

// NewCompileCmd creates the compile command
func NewCompileCmd() *cobra.Command {
	var (
		flags compileFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "compile <source.sol>",
		Short: "Compile a Solidity source with solc",
		Long: `Compile a Solidity file through solc's standard-JSON interface and print the
resulting contract. Compiler errors fail the command; warnings are printed.

When the source holds several contracts, --contract picks one. Without it
an interactive prompt is shown, or the command fails in non-interactive mode.`,
		Example: `  # Compile and inspect
  sling compile contracts/SimpleStorage.sol

  # Write a Foundry-style artifact for later deploys
  sling compile contracts/Token.sol -c SimpleToken --out out/SimpleToken.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			evm, err := flags.evm()
			if err != nil {
				return err
			}

			defaults := &usecase.OptimizerSettings{Enabled: app.Config.Compiler.Optimizer, Runs: app.Config.Compiler.Runs}
			artifact, err := app.CompileContract.Compile(cmd.Context(), usecase.CompileParams{
				SourcePath:   args[0],
				ContractName: flags.contract,
				EVMVersion:   evm,
				Optimizer:    flags.optimizer(cmd, defaults),
			})
			if err != nil {
				return err
			}

			if out != "" {
				if err := writeArtifact(out, artifact); err != nil {
					return usageErrorf("failed to write artifact: %w", err)
				}
			}

			return renderOrJSON(cmd, app, newArtifactJSON(artifact), func(w io.Writer) error {
				for _, warning := range artifact.Warnings {
					fmt.Fprintln(cmd.ErrOrStderr(), render.FormatWarning(warning))
				}
				if err := render.NewArtifactRenderer(w).RenderArtifact(artifact); err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(w, "  Artifact:      %s\n", out)
				}
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the artifact as JSON to this path")

	return cmd
}

func writeArtifact(path string, artifact *domain.CompiledArtifact) error {
	data, err := json.MarshalIndent(newArtifactJSON(artifact), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
