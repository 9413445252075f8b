package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// TrackParams contains parameters for re-polling a transaction
type TrackParams struct {
	Hash common.Hash
	// Wait keeps polling for up to Timeout; otherwise a single poll is made
	Wait    bool
	Timeout time.Duration
}

// TrackResult is the latest observation of a transaction
type TrackResult struct {
	Hash    common.Hash
	Receipt *domain.Receipt
	Record  *domain.TransactionRecord
	// Deployment is the registry entry written when the polled
	// transaction turned out to be a successful contract creation.
	Deployment *domain.DeploymentRecord
}

// TrackTransaction re-polls a previously submitted transaction by hash. It
// never re-submits anything.
type TrackTransaction struct {
	submitter *Submitter
	verifier  *CodeVerifier
	repo      DeploymentRepository
	records   txRecorder
	dryRun    bool
	sink      ProgressSink
	log       *slog.Logger
}

// NewTrackTransaction creates a new TrackTransaction use case
func NewTrackTransaction(cfg *config.RuntimeConfig, submitter *Submitter, verifier *CodeVerifier, repo DeploymentRepository, sink ProgressSink, log *slog.Logger) *TrackTransaction {
	log = log.With("component", "track")
	return &TrackTransaction{
		submitter: submitter,
		verifier:  verifier,
		repo:      repo,
		records:   txRecorder{repo: repo, profile: cfg.Network, enabled: !cfg.DryRun, log: log},
		dryRun:    cfg.DryRun,
		sink:      sink,
		log:       log,
	}
}

// Run polls params.Hash and updates the registry entry when one exists. A
// recorded deployment that has since been mined is checked for code and
// registered like a deployment that confirmed in time.
func (uc *TrackTransaction) Run(ctx context.Context, params TrackParams) (*TrackResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StageConfirm), Message: "Polling " + params.Hash.Hex(), Spinner: true})

	var (
		receipt *domain.Receipt
		err     error
	)
	if params.Wait {
		receipt, err = uc.submitter.AwaitReceipt(ctx, params.Hash, params.Timeout)
	} else {
		receipt, err = uc.submitter.PollOnce(ctx, params.Hash)
		if err != nil {
			err = domain.AtStage(domain.StageConfirm, "", err)
		}
	}
	if err != nil {
		return nil, err
	}

	result := &TrackResult{Hash: params.Hash, Receipt: receipt}
	if uc.repo == nil {
		return result, nil
	}

	rec, err := uc.repo.GetTransaction(ctx, params.Hash)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("load transaction record: %w", err)
	}
	result.Record = rec

	if receipt.Status == rec.Status {
		return result, nil
	}

	if !uc.dryRun {
		updated := *rec
		updated.Status = receipt.Status
		updated.BlockNumber = receipt.BlockNumber
		updated.GasUsed = receipt.GasUsed
		updated.UpdatedAt = time.Now().UTC()
		if err := uc.repo.SaveTransaction(ctx, &updated); err != nil {
			uc.log.Warn("failed to update transaction record", "hash", params.Hash.Hex(), "error", err)
		}
		result.Record = &updated
	}

	if receipt.Status != domain.ReceiptSuccess || rec.Kind != domain.TxKindDeploy || rec.Contract == "" {
		return result, nil
	}
	return result, uc.registerDeployment(ctx, rec, receipt, result)
}

func (uc *TrackTransaction) registerDeployment(ctx context.Context, rec *domain.TransactionRecord, receipt *domain.Receipt, result *TrackResult) error {
	address := crypto.CreateAddress(rec.From, rec.Nonce)
	if receipt.ContractAddress != nil {
		address = *receipt.ContractAddress
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StageVerify), Message: "Checking code at " + address.Hex(), Spinner: true})
	check, err := uc.verifier.Check(ctx, address)
	if err != nil {
		return domain.AtStage(domain.StageVerify, rec.Contract, err)
	}
	if !check.Verified {
		return domain.AtStage(domain.StageVerify, rec.Contract, &domain.InconsistentDeploymentError{
			Contract:    rec.Contract,
			Address:     address,
			TxHash:      rec.Hash,
			Receipt:     receipt,
			CodeSize:    check.CodeSize,
			MinCodeSize: uc.verifier.MinCodeSize(),
		})
	}

	result.Deployment = uc.records.deployment(ctx, &domain.DeploymentResult{
		ContractName: rec.Contract,
		Address:      address,
		TxHash:       rec.Hash,
		Receipt:      receipt,
		CodeVerified: true,
		RawABI:       rec.ABI,
	}, rec.From, rec.EVMVersion, rec.Label)

	uc.log.Info("registered late deployment", "contract", rec.Contract, "address", address.Hex(), "hash", rec.Hash.Hex())
	return nil
}
