package usecase

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/sling/internal/domain"
)

// ChainClient is the subset of the JSON-RPC surface the pipeline consumes.
// *ethclient.Client satisfies it, so does the in-process dev chain.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Compiler runs a standard-JSON compilation and returns the raw output.
type Compiler interface {
	CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error)
	Version(ctx context.Context) (string, error)
}

// ArtifactLoader reads precompiled contracts from disk.
type ArtifactLoader interface {
	LoadArtifact(ctx context.Context, path, contractName string) (*domain.CompiledArtifact, error)
	LoadABI(ctx context.Context, path string) (abi.ABI, []byte, error)
}

// Signer holds a credential and signs transactions locally.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// ArgumentParser coerces command-line strings into ABI-typed values.
type ArgumentParser interface {
	ParseArgs(inputs abi.Arguments, raw []string) ([]any, error)
}

// RevertDecoder extracts a human-readable reason from revert data.
type RevertDecoder interface {
	DecodeRevert(contract *abi.ABI, data []byte) string
	RevertData(err error) ([]byte, bool)
}

// DeploymentFilter narrows registry listings.
type DeploymentFilter struct {
	Network      string
	ChainID      uint64
	ContractName string
}

// DeploymentRepository persists deployments and submitted transactions
type DeploymentRepository interface {
	SaveDeployment(ctx context.Context, record *domain.DeploymentRecord) error
	GetDeployment(ctx context.Context, id string) (*domain.DeploymentRecord, error)
	GetDeploymentByAddress(ctx context.Context, chainID uint64, address common.Address) (*domain.DeploymentRecord, error)
	ListDeployments(ctx context.Context, filter DeploymentFilter) ([]*domain.DeploymentRecord, error)
	SaveTransaction(ctx context.Context, record *domain.TransactionRecord) error
	GetTransaction(ctx context.Context, hash common.Hash) (*domain.TransactionRecord, error)
	ListTransactions(ctx context.Context) ([]*domain.TransactionRecord, error)
}

// ContractSelector picks one contract out of a compiler output
type ContractSelector interface {
	SelectContract(ctx context.Context, names []string, prompt string) (string, error)
}

// DeploymentSelector picks one deployment when a lookup is ambiguous
type DeploymentSelector interface {
	SelectDeployment(ctx context.Context, records []*domain.DeploymentRecord, prompt string) (*domain.DeploymentRecord, error)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}
