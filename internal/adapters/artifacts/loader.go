// Package artifacts loads precompiled contracts produced by other
// toolchains: Foundry and Hardhat artifacts, solc standard or combined JSON
// output, and raw .bin files paired with an ABI.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	slingabi "github.com/trebuchet-org/sling/internal/adapters/abi"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// Format names the layout an artifact file was recognized as
type Format string

const (
	FormatFoundry  Format = "foundry"
	FormatHardhat  Format = "hardhat"
	FormatStandard Format = "solc-standard-json"
	FormatCombined Format = "solc-combined-json"
	FormatBinary   Format = "bin"
)

var (
	// ErrUnknownFormat is returned when a file matches none of the known layouts
	ErrUnknownFormat = errors.New("unrecognized artifact format")
	// ErrUnlinked is returned for bytecode with unresolved library placeholders
	ErrUnlinked = errors.New("bytecode has unlinked library references")
)

// Loader reads artifacts from disk. Relative paths resolve against root.
type Loader struct {
	root       string
	defaultEVM domain.EVMVersion
	log        *slog.Logger
}

// NewLoader creates a new artifact loader
func NewLoader(root string, defaultEVM domain.EVMVersion, log *slog.Logger) *Loader {
	return &Loader{
		root:       root,
		defaultEVM: defaultEVM,
		log:        log.With("component", "ArtifactLoader"),
	}
}

// LoadArtifact loads contractName from path. contractName may be empty when
// the file holds a single contract.
func (l *Loader) LoadArtifact(ctx context.Context, path, contractName string) (*domain.CompiledArtifact, error) {
	path = l.resolve(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var artifact *domain.CompiledArtifact
	var format Format
	if gjson.ValidBytes(data) && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		artifact, format, err = l.parseJSON(data, path, contractName)
	} else {
		artifact, err = l.parseBinary(ctx, data, path, contractName)
		format = FormatBinary
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if artifact.EVMVersion == "" {
		artifact.EVMVersion = l.defaultEVM
	}
	l.log.Debug("loaded artifact", "path", path, "format", format, "contract", artifact.ContractName, "bytes", len(artifact.Bytecode))
	return artifact, nil
}

// LoadABI reads a JSON ABI, an artifact carrying an "abi" field, or a
// human-readable signature list.
func (l *Loader) LoadABI(ctx context.Context, path string) (abi.ABI, []byte, error) {
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("failed to read ABI: %w", err)
	}
	return parseABI(data)
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) || l.root == "" {
		return path
	}
	return filepath.Join(l.root, path)
}

func (l *Loader) parseJSON(data []byte, path, contractName string) (*domain.CompiledArtifact, Format, error) {
	doc := gjson.ParseBytes(data)

	switch {
	case doc.Get("contracts").IsObject() && strings.Contains(firstKey(doc.Get("contracts")), ":"):
		a, err := parseCombined(doc, contractName)
		return a, FormatCombined, err

	case doc.Get("contracts").IsObject():
		a, err := parseStandard(doc, contractName)
		return a, FormatStandard, err

	case doc.Get("bytecode.object").Exists():
		name := contractName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		a, err := newArtifact(name, doc.Get("bytecode.object").String(), doc.Get("abi"))
		if err != nil {
			return nil, FormatFoundry, err
		}
		// Foundry embeds solc metadata as an object, Hardhat's build info as a string
		meta := doc.Get("metadata")
		if meta.Type == gjson.String {
			meta = gjson.Parse(meta.String())
		}
		a.EVMVersion = domain.EVMVersion(meta.Get("settings.evmVersion").String())
		a.CompilerVersion = meta.Get("compiler.version").String()
		for target := range meta.Get("settings.compilationTarget").Map() {
			a.SourceName = target
		}
		return a, FormatFoundry, nil

	case doc.Get("bytecode").Type == gjson.String:
		name := doc.Get("contractName").String()
		if contractName != "" && name != "" && name != contractName {
			return nil, FormatHardhat, fmt.Errorf("%w: artifact holds %s, not %s", domain.ErrContractNotFound, name, contractName)
		}
		if name == "" {
			name = contractName
		}
		a, err := newArtifact(name, doc.Get("bytecode").String(), doc.Get("abi"))
		if err != nil {
			return nil, FormatHardhat, err
		}
		a.SourceName = doc.Get("sourceName").String()
		return a, FormatHardhat, nil
	}
	return nil, "", ErrUnknownFormat
}

// parseStandard picks a contract out of `solc --standard-json` output
func parseStandard(doc gjson.Result, contractName string) (*domain.CompiledArtifact, error) {
	type candidate struct {
		unit, name string
		body       gjson.Result
	}
	var candidates []candidate
	doc.Get("contracts").ForEach(func(unit, contracts gjson.Result) bool {
		contracts.ForEach(func(name, body gjson.Result) bool {
			candidates = append(candidates, candidate{unit.String(), name.String(), body})
			return true
		})
		return true
	})

	var chosen *candidate
	for i, c := range candidates {
		if contractName == "" && len(candidates) == 1 || c.name == contractName || c.unit+":"+c.name == contractName {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.unit + ":" + c.name
		}
		return nil, notFound(contractName, names)
	}

	a, err := newArtifact(chosen.name, chosen.body.Get("evm.bytecode.object").String(), chosen.body.Get("abi"))
	if err != nil {
		return nil, err
	}
	a.SourceName = chosen.unit
	meta := gjson.Parse(chosen.body.Get("metadata").String())
	a.EVMVersion = domain.EVMVersion(meta.Get("settings.evmVersion").String())
	a.CompilerVersion = meta.Get("compiler.version").String()
	return a, nil
}

// parseCombined picks a contract out of `solc --combined-json abi,bin`
func parseCombined(doc gjson.Result, contractName string) (*domain.CompiledArtifact, error) {
	var keys []string
	doc.Get("contracts").ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})

	chosen := ""
	for _, key := range keys {
		_, name, _ := strings.Cut(key, ":")
		if contractName == "" && len(keys) == 1 || name == contractName || key == contractName {
			chosen = key
			break
		}
	}
	if chosen == "" {
		return nil, notFound(contractName, keys)
	}

	var body gjson.Result
	doc.Get("contracts").ForEach(func(key, value gjson.Result) bool {
		if key.String() == chosen {
			body = value
			return false
		}
		return true
	})

	// older solc releases emit the abi as an embedded JSON string
	abiField := body.Get("abi")
	if abiField.Type == gjson.String {
		abiField = gjson.Parse(abiField.String())
	}
	unit, name, _ := strings.Cut(chosen, ":")
	a, err := newArtifact(name, body.Get("bin").String(), abiField)
	if err != nil {
		return nil, err
	}
	a.SourceName = unit
	a.CompilerVersion = doc.Get("version").String()
	return a, nil
}

// parseBinary reads a hex .bin file and the ABI next to it: X.abi,
// X.abi.json or X.json
func (l *Loader) parseBinary(ctx context.Context, data []byte, path, contractName string) (*domain.CompiledArtifact, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	name := contractName
	if name == "" {
		name = filepath.Base(base)
	}

	code, err := decodeBytecode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}

	for _, candidate := range []string{base + ".abi", base + ".abi.json", base + ".json"} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		parsed, raw, err := l.LoadABI(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("abi %s: %w", candidate, err)
		}
		return &domain.CompiledArtifact{
			ContractName: name,
			SourceName:   filepath.Base(path),
			Bytecode:     code,
			ABI:          parsed,
			RawABI:       raw,
		}, nil
	}

	l.log.Warn("no ABI found next to bytecode; only constructor-less deployment is possible", "path", path)
	return &domain.CompiledArtifact{
		ContractName: name,
		SourceName:   filepath.Base(path),
		Bytecode:     code,
		RawABI:       []byte("[]"),
	}, nil
}

func newArtifact(name, bytecode string, abiField gjson.Result) (*domain.CompiledArtifact, error) {
	code, err := decodeBytecode(bytecode)
	if err != nil {
		return nil, err
	}
	raw := []byte("[]")
	if abiField.Exists() {
		raw = []byte(abiField.Raw)
	}
	parsed, _, err := parseABI(raw)
	if err != nil {
		return nil, err
	}
	return &domain.CompiledArtifact{
		ContractName: name,
		Bytecode:     code,
		ABI:          parsed,
		RawABI:       raw,
	}, nil
}

func decodeBytecode(s string) ([]byte, error) {
	if strings.Contains(s, "__") {
		return nil, ErrUnlinked
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	if s == "0x" {
		return nil, fmt.Errorf("empty bytecode (abstract contract or interface?)")
	}
	code, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}
	return code, nil
}

func parseABI(data []byte) (abi.ABI, []byte, error) {
	var (
		parsed abi.ABI
		raw    = data
		err    error
	)
	if slingabi.IsHumanReadable(data) {
		parsed, raw, err = slingabi.ParseHumanReadable(data)
		if err != nil {
			return abi.ABI{}, nil, err
		}
	} else {
		if doc := gjson.ParseBytes(data); doc.IsObject() {
			if !doc.Get("abi").Exists() {
				return abi.ABI{}, nil, errors.New("invalid abi: no abi field")
			}
			raw = []byte(doc.Get("abi").Raw)
		}
		parsed, err = abi.JSON(strings.NewReader(string(raw)))
		if err != nil {
			return abi.ABI{}, nil, fmt.Errorf("invalid abi: %w", err)
		}
	}
	if err := checkTypes(parsed); err != nil {
		return abi.ABI{}, nil, fmt.Errorf("invalid abi: %w", err)
	}
	return parsed, raw, nil
}

// checkTypes rejects integer widths abi.JSON lets through; they would encode
// to words no contract can decode.
func checkTypes(parsed abi.ABI) error {
	check := func(owner string, args abi.Arguments) error {
		for _, arg := range args {
			if err := checkType(arg.Type); err != nil {
				return fmt.Errorf("%s: %w", owner, err)
			}
		}
		return nil
	}
	if err := check("constructor", parsed.Constructor.Inputs); err != nil {
		return err
	}
	for _, name := range sortedKeys(parsed.Methods) {
		m := parsed.Methods[name]
		if err := check(m.Sig, m.Inputs); err != nil {
			return err
		}
		if err := check(m.Sig, m.Outputs); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(parsed.Events) {
		if err := check("event "+name, parsed.Events[name].Inputs); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(parsed.Errors) {
		if err := check("error "+name, parsed.Errors[name].Inputs); err != nil {
			return err
		}
	}
	return nil
}

func checkType(t abi.Type) error {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		if t.Size < 8 || t.Size > 256 || t.Size%8 != 0 {
			return fmt.Errorf("unsupported integer type %s", t.String())
		}
	case abi.SliceTy, abi.ArrayTy:
		return checkType(*t.Elem)
	case abi.TupleTy:
		for _, elem := range t.TupleElems {
			if err := checkType(*elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func firstKey(obj gjson.Result) string {
	key := ""
	obj.ForEach(func(k, _ gjson.Result) bool {
		key = k.String()
		return false
	})
	return key
}

func notFound(contractName string, names []string) error {
	sort.Strings(names)
	if contractName == "" {
		return fmt.Errorf("%w: several contracts in file, pick one of %s", domain.ErrContractNotFound, strings.Join(names, ", "))
	}
	return fmt.Errorf("%w: %s not in %s", domain.ErrContractNotFound, contractName, strings.Join(names, ", "))
}

var _ usecase.ArtifactLoader = (*Loader)(nil)
