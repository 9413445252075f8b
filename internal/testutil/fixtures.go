// Package testutil holds contract fixtures and chain helpers shared by tests.
package testutil

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/sling/internal/adapters/devchain"
	"github.com/trebuchet-org/sling/internal/domain"
)

// storageRuntime implements retrieve(), store(uint256) and increment().
// store(0) reverts with Error("zero value"); every write emits
// NumberChanged(uint256).
const storageRuntime = "60003560e01c80632e64cec11460285780636057361d146034578063d09de08a14607a57600080fd" +
	"5b60005460005260206000f35b600435806081576308c379a060e01b6000526020600452600a6024527f" +
	"7a65726f2076616c756500000000000000000000000000000000000000000000" +
	"60445260646000fd5b6000546001015b806000556000527f" +
	"2fd81fd19d3c5c4b396dd13f451dafc8bcac1b3094c49c5fa90e68456323f0e3" +
	"60206000a100"

const (
	// StorageCode deploys storageRuntime with slot 0 cleared.
	StorageCode = "0x60b080600b6000396000f3" + storageRuntime
	// SeededStorageCode takes a uint256 constructor argument as the initial value.
	SeededStorageCode = "0x602080380360003960005160005560b08060196000396000f3" + storageRuntime
	// Push0Code uses PUSH0, which a london chain cannot execute.
	Push0Code = "0x5f5ff3"
	// EmptyRuntimeCode succeeds but leaves no code behind.
	EmptyRuntimeCode = "0x60006000f3"

	// NumberChangedTopic is keccak256("NumberChanged(uint256)").
	NumberChangedTopic = "0x2fd81fd19d3c5c4b396dd13f451dafc8bcac1b3094c49c5fa90e68456323f0e3"
)

const storageMethodsABI = `
	{"type":"function","name":"retrieve","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"store","stateMutability":"nonpayable","inputs":[{"name":"num","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"increment","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"event","name":"NumberChanged","anonymous":false,"inputs":[{"name":"value","type":"uint256","indexed":false}]}`

// StorageABI is the JSON ABI of the Storage fixture.
const StorageABI = "[" + storageMethodsABI + "]"

// SeededStorageABI adds the constructor(uint256 initial) of the seeded variant.
const SeededStorageABI = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"initial","type":"uint256"}]},` + storageMethodsABI + "]"

// TokenABI describes an ERC-20 style token with a custom error, used for
// encoding and revert decoding tests.
const TokenABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"supply","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"error","name":"InsufficientBalance","inputs":[{"name":"available","type":"uint256"},{"name":"required","type":"uint256"}]}
]`

// Artifact builds a CompiledArtifact from hex bytecode and a JSON ABI.
func Artifact(t testing.TB, name, code, abiJSON string) *domain.CompiledArtifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	return &domain.CompiledArtifact{
		ContractName: name,
		SourceName:   name + ".sol",
		Bytecode:     hexutil.MustDecode(code),
		ABI:          parsed,
		RawABI:       []byte(abiJSON),
		EVMVersion:   domain.EVMLondon,
	}
}

// StorageArtifact is the Storage fixture without constructor arguments.
func StorageArtifact(t testing.TB) *domain.CompiledArtifact {
	return Artifact(t, "Storage", StorageCode, StorageABI)
}

// SeededStorageArtifact takes the initial value as constructor argument.
func SeededStorageArtifact(t testing.TB) *domain.CompiledArtifact {
	return Artifact(t, "SeededStorage", SeededStorageCode, SeededStorageABI)
}

// Key returns a deterministic private key for test account i.
func Key(i int) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte(fmt.Sprintf("sling-test-account-%d", i))))
	if err != nil {
		panic(err)
	}
	return key
}

// Address returns the address of Key(i).
func Address(i int) common.Address {
	return crypto.PubkeyToAddress(Key(i).PublicKey)
}

// Ether converts whole ether to wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// NewChain starts a dev chain with test accounts 0..2 funded.
func NewChain(t testing.TB, opts ...devchain.Option) *devchain.Chain {
	t.Helper()
	alloc := map[common.Address]*big.Int{
		Address(0): Ether(100),
		Address(1): Ether(100),
		Address(2): Ether(100),
	}
	chain, err := devchain.New(append([]devchain.Option{devchain.WithAlloc(alloc)}, opts...)...)
	require.NoError(t, err)
	return chain
}
