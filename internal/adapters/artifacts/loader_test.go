package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/testutil"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newLoader(root string) *Loader {
	return NewLoader(root, domain.EVMLondon, slog.New(slog.DiscardHandler))
}

func TestLoader_LoadArtifact(t *testing.T) {
	dir := t.TempDir()
	code := testutil.StorageCode

	foundry := fmt.Sprintf(`{
		"abi": %s,
		"bytecode": {"object": %q, "linkReferences": {}},
		"deployedBytecode": {"object": "0x00"},
		"metadata": {"compiler": {"version": "0.8.19+commit.7dd6d404"}, "settings": {"evmVersion": "london", "compilationTarget": {"src/Storage.sol": "Storage"}}}
	}`, testutil.StorageABI, code)

	hardhat := fmt.Sprintf(`{
		"_format": "hh-sol-artifact-1",
		"contractName": "Storage",
		"sourceName": "contracts/Storage.sol",
		"abi": %s,
		"bytecode": %q,
		"deployedBytecode": "0x00"
	}`, testutil.StorageABI, code)

	standard := fmt.Sprintf(`{
		"contracts": {
			"Storage.sol": {
				"Storage": {"abi": %s, "evm": {"bytecode": {"object": %q}}},
				"Token": {"abi": %s, "evm": {"bytecode": {"object": "6001"}}}
			}
		},
		"sources": {}
	}`, testutil.StorageABI, code[2:], testutil.TokenABI)

	combined := fmt.Sprintf(`{
		"contracts": {"Storage.sol:Storage": {"abi": %q, "bin": %q}},
		"version": "0.8.19+commit.7dd6d404.Linux.g++"
	}`, testutil.StorageABI, code[2:])

	tests := []struct {
		name         string
		file         string
		content      string
		contract     string
		wantName     string
		wantSource   string
		wantCompiler string
		wantErr      error
	}{
		{name: "foundry", file: "out/Storage.sol/Storage.json", content: foundry, wantName: "Storage", wantSource: "src/Storage.sol", wantCompiler: "0.8.19+commit.7dd6d404"},
		{name: "hardhat", file: "artifacts/Storage.json", content: hardhat, wantName: "Storage", wantSource: "contracts/Storage.sol"},
		{name: "hardhat wrong name", file: "artifacts/Storage2.json", content: hardhat, contract: "Token", wantErr: domain.ErrContractNotFound},
		{name: "standard json by name", file: "std.json", content: standard, contract: "Storage", wantName: "Storage", wantSource: "Storage.sol"},
		{name: "standard json by qualified name", file: "std2.json", content: standard, contract: "Storage.sol:Storage", wantName: "Storage", wantSource: "Storage.sol"},
		{name: "standard json ambiguous", file: "std3.json", content: standard, wantErr: domain.ErrContractNotFound},
		{name: "combined json", file: "combined.json", content: combined, wantName: "Storage", wantSource: "Storage.sol", wantCompiler: "0.8.19+commit.7dd6d404.Linux.g++"},
		{name: "unknown json", file: "other.json", content: `{"hello": "world"}`, wantErr: ErrUnknownFormat},
		{name: "unlinked", file: "linked.json", content: `{"contractName": "L", "abi": [], "bytecode": "0x6000__$abc$__"}`, wantErr: ErrUnlinked},
	}

	loader := newLoader(dir)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeFile(t, dir, tt.file, tt.content)
			artifact, err := loader.LoadArtifact(context.Background(), tt.file, tt.contract)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, artifact.ContractName)
			assert.Equal(t, tt.wantSource, artifact.SourceName)
			assert.Equal(t, tt.wantCompiler, artifact.CompilerVersion)
			assert.Equal(t, hexutil.MustDecode(code), artifact.Bytecode)
			assert.Equal(t, domain.EVMLondon, artifact.EVMVersion)
			assert.Contains(t, artifact.ABI.Methods, "store")
		})
	}
}

func TestLoader_BinaryWithABI(t *testing.T) {
	dir := t.TempDir()

	t.Run("json abi", func(t *testing.T) {
		writeFile(t, dir, "Storage.bin", testutil.StorageCode[2:]+"\n")
		writeFile(t, dir, "Storage.abi", testutil.StorageABI)

		artifact, err := newLoader(dir).LoadArtifact(context.Background(), "Storage.bin", "")
		require.NoError(t, err)
		assert.Equal(t, "Storage", artifact.ContractName)
		assert.Equal(t, hexutil.MustDecode(testutil.StorageCode), artifact.Bytecode)
		assert.Contains(t, artifact.ABI.Methods, "retrieve")
	})

	t.Run("human readable abi", func(t *testing.T) {
		writeFile(t, dir, "Simple.bin", testutil.SeededStorageCode)
		writeFile(t, dir, "Simple.abi", "constructor(uint256 initial)\nfunction retrieve() view returns (uint256)\nfunction store(uint256 num)\n")

		artifact, err := newLoader(dir).LoadArtifact(context.Background(), filepath.Join(dir, "Simple.bin"), "SimpleStorage")
		require.NoError(t, err)
		assert.Equal(t, "SimpleStorage", artifact.ContractName)
		assert.True(t, artifact.HasConstructorInputs())
		assert.Equal(t, "initial", artifact.ABI.Constructor.Inputs[0].Name)
	})

	t.Run("no abi", func(t *testing.T) {
		writeFile(t, dir, "Probe.bin", "0x600a600c600039600a6000f3602a60005260206000f3")
		artifact, err := newLoader(dir).LoadArtifact(context.Background(), "Probe.bin", "")
		require.NoError(t, err)
		assert.Empty(t, artifact.ABI.Methods)
	})

	t.Run("bad hex", func(t *testing.T) {
		writeFile(t, dir, "Bad.bin", "0xzz")
		_, err := newLoader(dir).LoadArtifact(context.Background(), "Bad.bin", "")
		assert.ErrorContains(t, err, "invalid bytecode")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := newLoader(dir).LoadArtifact(context.Background(), "Missing.bin", "")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoader_LoadABI(t *testing.T) {
	dir := t.TempDir()
	loader := newLoader(dir)

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "json array", content: testutil.TokenABI},
		{name: "artifact object", content: fmt.Sprintf(`{"contractName":"Token","abi":%s}`, testutil.TokenABI)},
		{name: "human readable", content: "function transfer(address to, uint256 amount) returns (bool)\nfunction balanceOf(address owner) view returns (uint256)"},
		{name: "object without abi", content: `{"bytecode":"0x00"}`, wantErr: true},
		{name: "integer wider than a word", content: `[{"type":"function","name":"x","inputs":[{"type":"uint999"}]}]`, wantErr: true},
		{name: "integer not a whole byte", content: `[{"type":"function","name":"x","outputs":[{"type":"int12"}]}]`, wantErr: true},
		{name: "integer inside a tuple array", content: `[{"type":"event","name":"E","inputs":[{"name":"p","type":"tuple[]","components":[{"name":"a","type":"uint264"}]}]}]`, wantErr: true},
		{name: "not json", content: `[{"type":`, wantErr: true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := fmt.Sprintf("abi%d.json", i)
			writeFile(t, dir, file, tt.content)
			parsed, raw, err := loader.LoadABI(context.Background(), file)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid abi")
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, raw)
			assert.Contains(t, parsed.Methods, "transfer")
		})
	}
}
