package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// InvokeMode chooses between eth_call and a signed transaction.
type InvokeMode string

const (
	// InvokeAuto reads for view/pure methods and writes otherwise
	InvokeAuto  InvokeMode = ""
	InvokeRead  InvokeMode = "read"
	InvokeWrite InvokeMode = "write"
)

// CallTarget is a deployed contract that may receive calls.
type CallTarget struct {
	Contract string
	Address  common.Address
	ABI      abi.ABI
}

// TargetFromDeployment refuses deployments that are not usable.
func TargetFromDeployment(d *domain.DeploymentResult) (*CallTarget, error) {
	if !d.Usable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeploymentUnusable, describeUnusable(d))
	}
	return &CallTarget{Contract: d.ContractName, Address: d.Address, ABI: d.ABI}, nil
}

// TargetFromRecord builds a target from a registry entry.
func TargetFromRecord(rec *domain.DeploymentRecord) (*CallTarget, error) {
	if !rec.CodeVerified {
		return nil, fmt.Errorf("%w: %s has no verified code", domain.ErrDeploymentUnusable, rec.ID)
	}
	parsed, err := abi.JSON(bytes.NewReader(rec.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse stored ABI of %s: %w", rec.ID, err)
	}
	return &CallTarget{Contract: rec.ContractName, Address: rec.Address, ABI: parsed}, nil
}

func describeUnusable(d *domain.DeploymentResult) string {
	switch {
	case d == nil:
		return "no deployment"
	case d.Receipt == nil:
		return d.ContractName + " was never confirmed"
	case d.Receipt.Status != domain.ReceiptSuccess:
		return fmt.Sprintf("%s deployment receipt is %s", d.ContractName, d.Receipt.Status)
	default:
		return fmt.Sprintf("%s has no code at %s", d.ContractName, d.Address.Hex())
	}
}

// InvokeParams contains parameters for a method invocation
type InvokeParams struct {
	Target           *CallTarget
	Method           string
	Args             []any
	RawArgs          []string
	Mode             InvokeMode
	Value            *big.Int
	GasLimit         uint64
	GasPriceOverride *big.Int
	Timeout          time.Duration
}

// InvokeMethod calls methods on deployed contracts
type InvokeMethod struct {
	client    ChainClient
	builder   *TransactionBuilder
	submitter *Submitter
	signer    Signer
	args      ArgumentParser
	revert    RevertDecoder
	records   txRecorder
	profile   domain.NetworkProfile
	sink      ProgressSink
	log       *slog.Logger
}

// NewInvokeMethod creates a new InvokeMethod use case
func NewInvokeMethod(
	cfg *config.RuntimeConfig,
	client ChainClient,
	builder *TransactionBuilder,
	submitter *Submitter,
	signer Signer,
	args ArgumentParser,
	revert RevertDecoder,
	repo DeploymentRepository,
	sink ProgressSink,
	log *slog.Logger,
) *InvokeMethod {
	log = log.With("component", "invoke")
	return &InvokeMethod{
		client:    client,
		builder:   builder,
		submitter: submitter,
		signer:    signer,
		args:      args,
		revert:    revert,
		records:   txRecorder{repo: repo, profile: cfg.Network, enabled: !cfg.DryRun, log: log},
		profile:   cfg.Network,
		sink:      sink,
		log:       log,
	}
}

// Run invokes params.Method on params.Target.
func (uc *InvokeMethod) Run(ctx context.Context, params InvokeParams) (*domain.InvocationResult, error) {
	if params.Target == nil {
		return nil, domain.AtStage(domain.StageInvoke, "", fmt.Errorf("%w: no call target", domain.ErrInvalidRequest))
	}
	target := params.Target

	method, err := ResolveMethod(&target.ABI, params.Method)
	if err != nil {
		return nil, domain.AtStage(domain.StageBuild, target.Contract, &domain.EncodingError{Target: params.Method, Err: err})
	}

	args := params.Args
	if args == nil && len(params.RawArgs) > 0 {
		args, err = uc.args.ParseArgs(method.Inputs, params.RawArgs)
		if err != nil {
			return nil, domain.AtStage(domain.StageBuild, target.Contract, &domain.EncodingError{Target: method.Sig, Err: err})
		}
	}

	readOnly := params.Mode == InvokeRead || (params.Mode == InvokeAuto && method.IsConstant())
	if readOnly {
		return uc.call(ctx, target, method, args)
	}
	return uc.send(ctx, target, method, args, params)
}

func (uc *InvokeMethod) call(ctx context.Context, target *CallTarget, method abi.Method, args []any) (*domain.InvocationResult, error) {
	data, _, err := PackMethod(&target.ABI, method.Sig, args)
	if err != nil {
		return nil, domain.AtStage(domain.StageBuild, target.Contract, err)
	}

	msg := ethereum.CallMsg{To: &target.Address, Data: data}
	if uc.signer != nil {
		msg.From = uc.signer.Address()
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StageInvoke), Message: "Calling " + method.Sig, Spinner: true})
	out, err := uc.client.CallContract(ctx, msg, nil)
	if err != nil {
		if rev, ok := revertFromCall(uc.revert, &target.ABI, method.Sig, err); ok {
			rev.Tx = domain.TxContext{From: msg.From, To: msg.To, Data: data}
			return nil, domain.AtStage(domain.StageInvoke, target.Contract, rev)
		}
		return nil, domain.AtStage(domain.StageInvoke, target.Contract, fmt.Errorf("call %s: %w", method.Sig, callFailure(err)))
	}

	values, err := method.Outputs.Unpack(out)
	if err != nil {
		return nil, domain.AtStage(domain.StageInvoke, target.Contract,
			&domain.EncodingError{Target: "return value of " + method.Sig, Err: err})
	}

	return &domain.InvocationResult{
		Method:   method.Sig,
		Address:  target.Address,
		ReadOnly: true,
		Values:   values,
	}, nil
}

func (uc *InvokeMethod) send(ctx context.Context, target *CallTarget, method abi.Method, args []any, params InvokeParams) (*domain.InvocationResult, error) {
	if uc.signer == nil {
		return nil, domain.AtStage(domain.StageSign, target.Contract, domain.ErrNoSigner)
	}

	utx, err := uc.builder.BuildCall(ctx, CallRequest{
		To:               target.Address,
		ABI:              &target.ABI,
		Method:           method.Sig,
		Args:             args,
		Value:            params.Value,
		GasLimit:         params.GasLimit,
		GasPriceOverride: params.GasPriceOverride,
	})
	if err != nil {
		return nil, domain.AtStage(domain.StageBuild, target.Contract, err)
	}

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StageSubmit), Message: "Sending " + method.Sig, Spinner: true})
	signed, receipt, err := uc.submitter.SubmitAndConfirm(ctx, utx, uc.signer, params.Timeout)
	uc.records.transaction(ctx, utx, signed, receipt, txSubject{Contract: target.Contract})
	if err != nil {
		return nil, domain.AtStage(domain.StageSubmit, target.Contract, err)
	}

	result := &domain.InvocationResult{
		Method:  method.Sig,
		Address: target.Address,
		Receipt: receipt,
		TxHash:  signed.Hash,
	}

	if receipt.Status != domain.ReceiptSuccess {
		reason, data := replayRevertReason(ctx, uc.client, uc.revert, &target.ABI, signed.From, utx, receipt)
		uc.log.Warn("transaction reverted", "hash", signed.Hash.Hex(), "method", method.Sig, "reason", reason)
		return result, domain.AtStage(domain.StageConfirm, target.Contract, &domain.RevertError{
			Method:  method.Sig,
			Reason:  reason,
			Data:    data,
			TxHash:  signed.Hash,
			Receipt: receipt,
			Tx:      TxContextOf(utx, signed),
		})
	}

	return result, nil
}
