package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/sling/internal/domain"
)

// txRecorder writes submitted transactions and deployments to the registry.
// Registry failures are logged and never fail the pipeline.
type txRecorder struct {
	repo    DeploymentRepository
	profile domain.NetworkProfile
	enabled bool
	log     *slog.Logger
}

// txSubject is what a transaction acts on. Deployments fill in the rest so
// a late receipt can still be turned into a registry entry.
type txSubject struct {
	Contract   string
	Label      string
	ABI        []byte
	EVMVersion domain.EVMVersion
}

func (r txRecorder) transaction(ctx context.Context, utx *domain.UnsignedTransaction, signed *domain.SignedTransaction, receipt *domain.Receipt, subject txSubject) {
	if !r.enabled || r.repo == nil || signed == nil {
		return
	}
	now := time.Now().UTC()
	rec := &domain.TransactionRecord{
		Hash:        signed.Hash,
		Network:     r.profile.Name,
		ChainID:     signed.ChainID,
		Kind:        utx.Kind,
		From:        signed.From,
		To:          utx.To,
		Nonce:       signed.Nonce,
		Method:      utx.Method,
		Contract:    subject.Contract,
		Status:      domain.ReceiptPending,
		SubmittedAt: now,
		UpdatedAt:   now,
		Label:       subject.Label,
		ABI:         subject.ABI,
		EVMVersion:  subject.EVMVersion,
	}
	if receipt != nil {
		rec.Status = receipt.Status
		rec.BlockNumber = receipt.BlockNumber
		rec.GasUsed = receipt.GasUsed
	}
	if err := r.repo.SaveTransaction(ctx, rec); err != nil {
		r.log.Warn("failed to record transaction", "hash", signed.Hash.Hex(), "error", err)
	}
}

func (r txRecorder) deployment(ctx context.Context, result *domain.DeploymentResult, deployer common.Address, evm domain.EVMVersion, label string) *domain.DeploymentRecord {
	if !r.enabled || r.repo == nil {
		return nil
	}
	rec := &domain.DeploymentRecord{
		ID:           DeploymentID(r.profile.Name, result.ContractName, label),
		Network:      r.profile.Name,
		ChainID:      r.profile.ChainID,
		ContractName: result.ContractName,
		Address:      result.Address,
		TxHash:       result.TxHash,
		Deployer:     deployer,
		CodeVerified: result.CodeVerified,
		ABI:          result.RawABI,
		EVMVersion:   evm,
		Label:        label,
		CreatedAt:    time.Now().UTC(),
	}
	if result.Receipt != nil {
		rec.BlockNumber = result.Receipt.BlockNumber
		rec.GasUsed = result.Receipt.GasUsed
	}
	if err := r.repo.SaveDeployment(ctx, rec); err != nil {
		r.log.Warn("failed to record deployment", "id", rec.ID, "error", err)
		return nil
	}
	return rec
}

// DeploymentID is the registry key of a deployment: network/Contract[:label].
func DeploymentID(network, contract, label string) string {
	id := network + "/" + contract
	if label != "" {
		id += ":" + strings.ToLower(label)
	}
	return id
}
