package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// OptimizerSettings mirrors solc's optimizer block.
type OptimizerSettings struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// CompileParams contains parameters for compiling one contract
type CompileParams struct {
	// SourcePath is read when Source is empty
	SourcePath string
	Source     string
	// SourceName is the unit name given to solc; defaults to the file base name
	SourceName   string
	ContractName string
	EVMVersion   domain.EVMVersion
	Optimizer    *OptimizerSettings
}

// CompileContract turns Solidity source into a CompiledArtifact.
type CompileContract struct {
	compiler Compiler
	selector ContractSelector
	cfg      *config.RuntimeConfig
	sink     ProgressSink
	log      *slog.Logger
}

// NewCompileContract creates a new CompileContract use case
func NewCompileContract(compiler Compiler, selector ContractSelector, cfg *config.RuntimeConfig, sink ProgressSink, log *slog.Logger) *CompileContract {
	return &CompileContract{
		compiler: compiler,
		selector: selector,
		cfg:      cfg,
		sink:     sink,
		log:      log.With("component", "compiler"),
	}
}

type standardInput struct {
	Language string                    `json:"language"`
	Sources  map[string]standardSource `json:"sources"`
	Settings standardSettings          `json:"settings"`
}

type standardSource struct {
	Content string `json:"content"`
}

type standardSettings struct {
	EVMVersion      string                         `json:"evmVersion"`
	Optimizer       *OptimizerSettings             `json:"optimizer,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type standardOutput struct {
	Errors    []compilerMessage                      `json:"errors"`
	Contracts map[string]map[string]standardContract `json:"contracts"`
}

type compilerMessage struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

func (m compilerMessage) text() string {
	if m.FormattedMessage != "" {
		return m.FormattedMessage
	}
	return fmt.Sprintf("%s: %s", m.Type, m.Message)
}

type standardContract struct {
	ABI json.RawMessage `json:"abi"`
	EVM struct {
		Bytecode struct {
			Object string `json:"object"`
		} `json:"bytecode"`
	} `json:"evm"`
}

// BuildStandardInput renders the solc standard-JSON request. The output is
// deterministic for identical arguments.
func BuildStandardInput(sourceName, source string, evm domain.EVMVersion, optimizer *OptimizerSettings) ([]byte, error) {
	in := standardInput{
		Language: "Solidity",
		Sources:  map[string]standardSource{sourceName: {Content: source}},
		Settings: standardSettings{
			EVMVersion: string(evm),
			Optimizer:  optimizer,
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"abi", "evm.bytecode.object"}},
			},
		},
	}
	return json.Marshal(in)
}

// Compile compiles params.ContractName out of the given source.
func (uc *CompileContract) Compile(ctx context.Context, params CompileParams) (*domain.CompiledArtifact, error) {
	source, sourceName, err := uc.readSource(params)
	if err != nil {
		return nil, domain.AtStage(domain.StageCompile, params.ContractName, &domain.CompileError{Contract: params.ContractName, Err: err})
	}

	evm := params.EVMVersion
	if evm == "" {
		evm = uc.cfg.Compiler.EVMVersion
	}
	if evm == "" {
		evm = uc.cfg.Network.EVMVersion
	}
	if evm.NewerThan(uc.cfg.Network.EVMVersion) {
		uc.log.Warn("compiling for a newer EVM than the network runs; the node may accept bytecode it cannot execute",
			"evmVersion", evm, "network", uc.cfg.Network.Name, "networkEVM", uc.cfg.Network.EVMVersion)
		uc.sink.Info(fmt.Sprintf("Warning: targeting %s but %s runs %s", evm, uc.cfg.Network.Name, uc.cfg.Network.EVMVersion))
	}

	optimizer := params.Optimizer
	if optimizer == nil && uc.cfg.Compiler.Optimizer {
		optimizer = &OptimizerSettings{Enabled: true, Runs: uc.cfg.Compiler.Runs}
	}

	input, err := BuildStandardInput(sourceName, source, evm, optimizer)
	if err != nil {
		return nil, domain.AtStage(domain.StageCompile, params.ContractName, &domain.CompileError{Contract: params.ContractName, Err: err})
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StageCompile), Message: "Compiling " + sourceName, Spinner: true})
	uc.log.Debug("invoking compiler", "source", sourceName, "evmVersion", evm, "optimizer", optimizer != nil)

	raw, err := uc.compiler.CompileStandardJSON(ctx, input)
	if err != nil {
		return nil, domain.AtStage(domain.StageCompile, params.ContractName, &domain.CompileError{Contract: params.ContractName, Err: err})
	}

	var out standardOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.AtStage(domain.StageCompile, params.ContractName,
			&domain.CompileError{Contract: params.ContractName, Err: fmt.Errorf("parse compiler output: %w", err)})
	}

	var errs, warnings []string
	for _, m := range out.Errors {
		if strings.EqualFold(m.Severity, "error") {
			errs = append(errs, m.text())
		} else {
			warnings = append(warnings, m.text())
		}
	}
	if len(errs) > 0 {
		return nil, domain.AtStage(domain.StageCompile, params.ContractName, &domain.CompileError{Contract: params.ContractName, Messages: errs})
	}
	for _, w := range warnings {
		uc.log.Debug("compiler warning", "message", strings.TrimSpace(w))
	}

	unit, name, contract, err := uc.pickContract(ctx, out, sourceName, params.ContractName)
	if err != nil {
		return nil, domain.AtStage(domain.StageCompile, params.ContractName, err)
	}

	bytecode, err := hexutil.Decode(ensureHexPrefix(contract.EVM.Bytecode.Object))
	if err != nil {
		return nil, domain.AtStage(domain.StageCompile, name,
			&domain.CompileError{Contract: name, Err: fmt.Errorf("decode bytecode: %w", err)})
	}
	parsed, err := abi.JSON(bytes.NewReader(contract.ABI))
	if err != nil {
		return nil, domain.AtStage(domain.StageCompile, name,
			&domain.CompileError{Contract: name, Err: fmt.Errorf("parse ABI: %w", err)})
	}

	version, err := uc.compiler.Version(ctx)
	if err != nil {
		uc.log.Debug("compiler version unavailable", "error", err)
	}

	return &domain.CompiledArtifact{
		ContractName:    name,
		SourceName:      unit,
		Bytecode:        bytecode,
		ABI:             parsed,
		RawABI:          []byte(contract.ABI),
		Warnings:        warnings,
		EVMVersion:      evm,
		CompilerVersion: version,
	}, nil
}

func (uc *CompileContract) readSource(params CompileParams) (string, string, error) {
	source := params.Source
	sourceName := params.SourceName
	if source == "" {
		if params.SourcePath == "" {
			return "", "", fmt.Errorf("no source given")
		}
		data, err := os.ReadFile(params.SourcePath)
		if err != nil {
			return "", "", fmt.Errorf("read source: %w", err)
		}
		source = string(data)
		if sourceName == "" {
			sourceName = filepath.Base(params.SourcePath)
		}
	}
	if sourceName == "" {
		sourceName = "Contract.sol"
		if params.ContractName != "" {
			sourceName = params.ContractName + ".sol"
		}
	}
	return source, sourceName, nil
}

// pickContract resolves which contract of the output to return. Without a
// name, a single deployable contract is taken; otherwise the selector asks.
func (uc *CompileContract) pickContract(ctx context.Context, out standardOutput, sourceName, name string) (string, string, standardContract, error) {
	if name != "" {
		if c, ok := out.Contracts[sourceName][name]; ok {
			return sourceName, name, c, nil
		}
		for _, unit := range sortedKeys(out.Contracts) {
			if c, ok := out.Contracts[unit][name]; ok {
				return unit, name, c, nil
			}
		}
		return "", "", standardContract{}, &domain.CompileError{
			Contract: name,
			Err:      fmt.Errorf("%w: %s not in compiler output (have %s)", domain.ErrContractNotFound, name, strings.Join(contractNames(out), ", ")),
		}
	}

	var candidates []string
	for _, unit := range sortedKeys(out.Contracts) {
		for _, n := range sortedKeys(out.Contracts[unit]) {
			if strings.TrimPrefix(out.Contracts[unit][n].EVM.Bytecode.Object, "0x") != "" {
				candidates = append(candidates, unit+":"+n)
			}
		}
	}

	var chosen string
	switch {
	case len(candidates) == 0:
		return "", "", standardContract{}, &domain.CompileError{Err: fmt.Errorf("%w: no deployable contract in output", domain.ErrContractNotFound)}
	case len(candidates) == 1:
		chosen = candidates[0]
	case uc.selector == nil || uc.cfg.NonInteractive:
		return "", "", standardContract{}, &domain.CompileError{
			Err: fmt.Errorf("%w: several contracts compiled, pick one with --contract: %s", domain.ErrContractNotFound, strings.Join(candidates, ", ")),
		}
	default:
		var err error
		chosen, err = uc.selector.SelectContract(ctx, candidates, "Select contract to deploy")
		if err != nil {
			return "", "", standardContract{}, &domain.CompileError{Err: err}
		}
	}

	unit, n, _ := strings.Cut(chosen, ":")
	return unit, n, out.Contracts[unit][n], nil
}

func contractNames(out standardOutput) []string {
	var names []string
	for _, unit := range sortedKeys(out.Contracts) {
		names = append(names, sortedKeys(out.Contracts[unit])...)
	}
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
