package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxKind distinguishes contract creation from calls to an existing address.
type TxKind string

const (
	TxKindDeploy TxKind = "deploy"
	TxKindCall   TxKind = "call"
)

// DeploymentRequest asks for an artifact to be deployed.
type DeploymentRequest struct {
	Artifact         *CompiledArtifact
	ConstructorArgs  []any
	GasLimit         uint64
	GasPriceOverride *big.Int
}

// Validate enforces the request invariants before anything is built.
func (r DeploymentRequest) Validate() error {
	if r.Artifact == nil {
		return fmt.Errorf("%w: no artifact", ErrInvalidRequest)
	}
	if len(r.Artifact.Bytecode) == 0 {
		return fmt.Errorf("%w: artifact %s has empty bytecode", ErrInvalidRequest, r.Artifact.ContractName)
	}
	if r.GasLimit == 0 {
		return fmt.Errorf("%w: gas limit must be greater than zero", ErrInvalidRequest)
	}
	if r.GasPriceOverride != nil && r.GasPriceOverride.Sign() < 0 {
		return fmt.Errorf("%w: negative gas price", ErrInvalidRequest)
	}
	return nil
}

// UnsignedTransaction is a fully specified transaction minus nonce and
// signature. The nonce is assigned under the signer lease right before
// signing so that concurrent builders never race on it.
type UnsignedTransaction struct {
	Kind     TxKind
	ChainID  uint64
	To       *common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	// Method is informational and only set for calls.
	Method string
}

// WithNonce materializes the legacy transaction for signing.
func (u UnsignedTransaction) WithNonce(nonce uint64) *types.Transaction {
	value := u.Value
	if value == nil {
		value = new(big.Int)
	}
	gasPrice := u.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      u.GasLimit,
		To:       u.To,
		Value:    value,
		Data:     u.Data,
	})
}

// SignedTransaction is one submission attempt. A retry always produces a new
// value, never a mutated copy.
type SignedTransaction struct {
	Hash    common.Hash
	Raw     []byte
	Nonce   uint64
	ChainID uint64
	From    common.Address
	Tx      *types.Transaction
}

// ReceiptStatus is the lifecycle of a submitted transaction.
type ReceiptStatus string

const (
	ReceiptPending ReceiptStatus = "pending"
	ReceiptSuccess ReceiptStatus = "success"
	ReceiptFailed  ReceiptStatus = "failed"
)

// Receipt is the confirmation record for a submitted transaction.
// Pending receipts carry no block, gas or address information.
type Receipt struct {
	TxHash          common.Hash     `json:"txHash"`
	Status          ReceiptStatus   `json:"status"`
	BlockNumber     uint64          `json:"blockNumber,omitempty"`
	GasUsed         uint64          `json:"gasUsed,omitempty"`
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	Logs            []*types.Log    `json:"logs,omitempty"`
}

// PendingReceipt returns the receipt of a transaction nobody has mined yet.
func PendingReceipt(hash common.Hash) *Receipt {
	return &Receipt{TxHash: hash, Status: ReceiptPending}
}

// ReceiptFromTypes converts a go-ethereum receipt into a terminal Receipt.
func ReceiptFromTypes(r *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:  r.TxHash,
		GasUsed: r.GasUsed,
		Logs:    r.Logs,
		Status:  ReceiptFailed,
	}
	if r.Status == types.ReceiptStatusSuccessful {
		out.Status = ReceiptSuccess
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if r.ContractAddress != (common.Address{}) {
		addr := r.ContractAddress
		out.ContractAddress = &addr
	}
	return out
}

// Terminal reports whether the receipt has left the pending state.
func (r *Receipt) Terminal() bool {
	return r != nil && r.Status != ReceiptPending
}
