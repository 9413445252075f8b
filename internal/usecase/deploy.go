package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// DeployParams contains parameters for a deployment. Exactly one of
// Artifact, ArtifactPath or SourcePath provides the contract.
type DeployParams struct {
	Artifact     *domain.CompiledArtifact
	ArtifactPath string
	SourcePath   string
	ContractName string
	EVMVersion   domain.EVMVersion

	ConstructorArgs  []any
	RawArgs          []string
	GasLimit         uint64
	GasPriceOverride *big.Int
	Timeout          time.Duration

	// Label distinguishes several deployments of one contract in the registry
	Label string
	// SkipPreflight skips the chain id comparison against the node
	SkipPreflight bool
	// SkipRecord keeps the deployment out of the registry
	SkipRecord bool
}

// DeployResult contains the result of a deployment
type DeployResult struct {
	Deployment *domain.DeploymentResult
	Artifact   *domain.CompiledArtifact
	Signed     *domain.SignedTransaction
	Record     *domain.DeploymentRecord
}

// DeployContract runs compile, build, submit, confirm and verify.
type DeployContract struct {
	cfg       *config.RuntimeConfig
	client    ChainClient
	compile   *CompileContract
	loader    ArtifactLoader
	builder   *TransactionBuilder
	submitter *Submitter
	verifier  *CodeVerifier
	signer    Signer
	args      ArgumentParser
	revert    RevertDecoder
	repo      DeploymentRepository
	sink      ProgressSink
	log       *slog.Logger
}

// NewDeployContract creates a new DeployContract use case
func NewDeployContract(
	cfg *config.RuntimeConfig,
	client ChainClient,
	compile *CompileContract,
	loader ArtifactLoader,
	builder *TransactionBuilder,
	submitter *Submitter,
	verifier *CodeVerifier,
	signer Signer,
	args ArgumentParser,
	revert RevertDecoder,
	repo DeploymentRepository,
	sink ProgressSink,
	log *slog.Logger,
) *DeployContract {
	return &DeployContract{
		cfg:       cfg,
		client:    client,
		compile:   compile,
		loader:    loader,
		builder:   builder,
		submitter: submitter,
		verifier:  verifier,
		signer:    signer,
		args:      args,
		revert:    revert,
		repo:      repo,
		sink:      sink,
		log:       log.With("component", "deploy"),
	}
}

// Run deploys one contract. When the transaction was mined but the
// deployment is not usable, both the partial result and a classified error
// are returned.
func (uc *DeployContract) Run(ctx context.Context, params DeployParams) (*DeployResult, error) {
	if uc.signer == nil {
		return nil, domain.AtStage(domain.StageSign, params.ContractName, domain.ErrNoSigner)
	}

	if !params.SkipPreflight {
		if err := uc.preflight(ctx); err != nil {
			return nil, err
		}
	}

	artifact, err := uc.artifact(ctx, params)
	if err != nil {
		return nil, err
	}
	name := artifact.ContractName
	result := &DeployResult{Artifact: artifact}

	args := params.ConstructorArgs
	if args == nil && len(params.RawArgs) > 0 {
		args, err = uc.args.ParseArgs(artifact.ABI.Constructor.Inputs, params.RawArgs)
		if err != nil {
			return result, domain.AtStage(domain.StageBuild, name, &domain.EncodingError{Target: "constructor of " + name, Err: err})
		}
	}

	utx, err := uc.builder.BuildDeployment(ctx, domain.DeploymentRequest{
		Artifact:         artifact,
		ConstructorArgs:  args,
		GasLimit:         params.GasLimit,
		GasPriceOverride: params.GasPriceOverride,
	})
	if err != nil {
		return result, domain.AtStage(domain.StageBuild, name, err)
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StageSubmit), Message: "Deploying " + name, Spinner: true})
	signed, receipt, err := uc.submitter.SubmitAndConfirm(ctx, utx, uc.signer, params.Timeout)
	records := txRecorder{repo: uc.repo, profile: uc.cfg.Network, enabled: !uc.cfg.DryRun && !params.SkipRecord, log: uc.log}
	records.transaction(ctx, utx, signed, receipt, txSubject{
		Contract:   name,
		Label:      params.Label,
		ABI:        artifact.RawABI,
		EVMVersion: artifact.EVMVersion,
	})
	result.Signed = signed
	if err != nil {
		return result, domain.AtStage(domain.StageSubmit, name, err)
	}

	address := crypto.CreateAddress(signed.From, signed.Nonce)
	if receipt.ContractAddress != nil {
		address = *receipt.ContractAddress
	}
	deployment := &domain.DeploymentResult{
		ContractName: name,
		Address:      address,
		TxHash:       signed.Hash,
		Receipt:      receipt,
		ABI:          artifact.ABI,
		RawABI:       artifact.RawABI,
	}
	result.Deployment = deployment

	if receipt.Status != domain.ReceiptSuccess {
		reason, data := replayRevertReason(ctx, uc.client, uc.revert, &artifact.ABI, signed.From, utx, receipt)
		uc.log.Warn("deployment reverted", "contract", name, "hash", signed.Hash.Hex(), "reason", reason)
		return result, domain.AtStage(domain.StageConfirm, name, &domain.RevertError{
			Reason:  reason,
			Data:    data,
			TxHash:  signed.Hash,
			Receipt: receipt,
			Tx:      TxContextOf(utx, signed),
		})
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StageVerify), Message: "Checking code at " + address.Hex(), Spinner: true})
	check, err := uc.verifier.Check(ctx, address)
	if err != nil {
		return result, domain.AtStage(domain.StageVerify, name, err)
	}
	if !check.Verified {
		return result, domain.AtStage(domain.StageVerify, name, &domain.InconsistentDeploymentError{
			Contract:    name,
			Address:     address,
			TxHash:      signed.Hash,
			Receipt:     receipt,
			CodeSize:    check.CodeSize,
			MinCodeSize: uc.verifier.MinCodeSize(),
		})
	}
	deployment.CodeVerified = true

	result.Record = records.deployment(ctx, deployment, signed.From, artifact.EVMVersion, params.Label)

	uc.log.Info("deployed contract",
		"contract", name,
		"address", address.Hex(),
		"hash", signed.Hash.Hex(),
		"block", receipt.BlockNumber,
		"gasUsed", receipt.GasUsed)

	return result, nil
}

func (uc *DeployContract) preflight(ctx context.Context) error {
	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StagePreflight), Message: "Checking network", Spinner: true})
	chainID, err := uc.client.ChainID(ctx)
	if err != nil {
		return domain.AtStage(domain.StagePreflight, "", fmt.Errorf("fetch chain id: %w", err))
	}
	if chainID.Uint64() != uc.cfg.Network.ChainID {
		return domain.AtStage(domain.StagePreflight, "", fmt.Errorf("%w: profile %s expects %d, node reports %s",
			domain.ErrChainIDMismatch, uc.cfg.Network.Name, uc.cfg.Network.ChainID, chainID))
	}
	return nil
}

func (uc *DeployContract) artifact(ctx context.Context, params DeployParams) (*domain.CompiledArtifact, error) {
	switch {
	case params.Artifact != nil:
		return params.Artifact, nil
	case params.ArtifactPath != "":
		artifact, err := uc.loader.LoadArtifact(ctx, params.ArtifactPath, params.ContractName)
		if err != nil {
			return nil, domain.AtStage(domain.StageLoad, params.ContractName, &domain.CompileError{Contract: params.ContractName, Err: err})
		}
		return artifact, nil
	case params.SourcePath != "":
		return uc.compile.Compile(ctx, CompileParams{
			SourcePath:   params.SourcePath,
			ContractName: params.ContractName,
			EVMVersion:   params.EVMVersion,
		})
	default:
		return nil, domain.AtStage(domain.StageLoad, params.ContractName, fmt.Errorf("%w: no source or artifact given", domain.ErrInvalidRequest))
	}
}
