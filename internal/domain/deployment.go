package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DeploymentResult is what a deployment produced. Only a usable result may be
// handed on for method invocation.
type DeploymentResult struct {
	ContractName string
	Address      common.Address
	TxHash       common.Hash
	Receipt      *Receipt
	CodeVerified bool
	ABI          abi.ABI
	RawABI       []byte
}

// Usable holds iff the deployment was mined successfully and code was
// observed at the address afterwards.
func (d *DeploymentResult) Usable() bool {
	return d != nil && d.Receipt != nil && d.Receipt.Status == ReceiptSuccess && d.CodeVerified
}

// InvocationResult reports a method call. Read-only calls carry decoded
// values; state-changing calls carry a receipt.
type InvocationResult struct {
	Method   string
	Address  common.Address
	ReadOnly bool
	Values   []any
	Receipt  *Receipt
	TxHash   common.Hash
}

// DeploymentRecord is the persisted form of a deployment in the local registry.
type DeploymentRecord struct {
	ID           string         `json:"id"`
	Network      string         `json:"network"`
	ChainID      uint64         `json:"chainId"`
	ContractName string         `json:"contractName"`
	Address      common.Address `json:"address"`
	TxHash       common.Hash    `json:"txHash"`
	BlockNumber  uint64         `json:"blockNumber"`
	GasUsed      uint64         `json:"gasUsed"`
	Deployer     common.Address `json:"deployer"`
	CodeVerified bool           `json:"codeVerified"`
	ABI          []byte         `json:"abi,omitempty"`
	EVMVersion   EVMVersion     `json:"evmVersion,omitempty"`
	Label        string         `json:"label,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// TransactionRecord tracks a submitted transaction so that a timed-out
// submission can be re-polled later by hash.
type TransactionRecord struct {
	Hash        common.Hash     `json:"hash"`
	Network     string          `json:"network"`
	ChainID     uint64          `json:"chainId"`
	Kind        TxKind          `json:"kind"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to,omitempty"`
	Nonce       uint64          `json:"nonce"`
	Method      string          `json:"method,omitempty"`
	Contract    string          `json:"contract,omitempty"`
	Status      ReceiptStatus   `json:"status"`
	BlockNumber uint64          `json:"blockNumber,omitempty"`
	GasUsed     uint64          `json:"gasUsed,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	// Deployments keep what the registry entry needs when the receipt
	// only turns up on a later poll.
	Label      string     `json:"label,omitempty"`
	ABI        []byte     `json:"abi,omitempty"`
	EVMVersion EVMVersion `json:"evmVersion,omitempty"`
}
