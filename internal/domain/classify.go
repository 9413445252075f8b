package domain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FailureKind is the closed taxonomy every pipeline failure maps into.
type FailureKind string

const (
	CompileFailure         FailureKind = "CompileFailure"
	EncodingFailure        FailureKind = "EncodingFailure"
	SubmissionRejected     FailureKind = "SubmissionRejected"
	SubmissionTimeout      FailureKind = "SubmissionTimeout"
	OnChainRevert          FailureKind = "OnChainRevert"
	DeploymentInconsistent FailureKind = "DeploymentInconsistent"
	TransportFailure       FailureKind = "TransportFailure"
)

// ExitCode is the process exit status for a failure of this kind.
func (k FailureKind) ExitCode() int {
	switch k {
	case CompileFailure:
		return 2
	case EncodingFailure:
		return 3
	case SubmissionRejected:
		return 4
	case SubmissionTimeout:
		return 5
	case OnChainRevert:
		return 6
	case DeploymentInconsistent:
		return 7
	case TransportFailure:
		return 8
	default:
		return 1
	}
}

// Stage names a step of the deploy-and-invoke pipeline.
type Stage string

const (
	StageCompile   Stage = "compile"
	StageLoad      Stage = "load"
	StagePreflight Stage = "preflight"
	StageBuild     Stage = "build"
	StageSign      Stage = "sign"
	StageSubmit    Stage = "submit"
	StageConfirm   Stage = "confirm"
	StageVerify    Stage = "verify"
	StageInvoke    Stage = "invoke"
)

// DataPreviewLength is how many characters of hex calldata a diagnostic keeps.
const DataPreviewLength = 100

// Diagnostic is the operator-facing description of a failure.
type Diagnostic struct {
	Kind      FailureKind
	Stage     Stage
	Contract  string
	Message   string
	Reason    string
	Remedy    string
	Retryable bool

	TxHash        *common.Hash
	From          *common.Address
	To            *common.Address
	Address       *common.Address
	Nonce         *uint64
	GasLimit      uint64
	GasPrice      *big.Int
	DataPreview   string
	ReceiptStatus ReceiptStatus
	BlockNumber   uint64
	GasUsed       uint64
}

// Classify translates err into a Diagnostic. It is a pure function: it
// performs no I/O and never merges two kinds into one. A nil error yields nil.
func Classify(err error) *Diagnostic {
	if err == nil {
		return nil
	}
	d := &Diagnostic{Message: err.Error()}

	var pe *PipelineError
	if errors.As(err, &pe) {
		d.Stage = pe.Stage
		d.Contract = pe.Contract
	}

	var (
		compileErr  *CompileError
		encodingErr *EncodingError
		subErr      *SubmissionError
		revertErr   *RevertError
		inconsErr   *InconsistentDeploymentError
		transErr    *TransportError
	)

	switch {
	case errors.As(err, &compileErr):
		d.Kind = CompileFailure
		d.defaultStage(StageCompile)
		d.Remedy = "fix the compiler errors above; check the pragma matches the installed solc"
		if compileErr.Contract != "" && d.Contract == "" {
			d.Contract = compileErr.Contract
		}

	case errors.As(err, &subErr):
		d.applyTx(subErr.Tx)
		if subErr.TxHash != (common.Hash{}) {
			h := subErr.TxHash
			d.TxHash = &h
		}
		if subErr.Kind == SubmissionKindTimeout {
			d.Kind = SubmissionTimeout
			d.defaultStage(StageConfirm)
			d.ReceiptStatus = ReceiptPending
			d.Retryable = true
			d.Remedy = "the transaction may still be mined; re-poll it by hash with `sling tx`"
			break
		}
		d.Kind = SubmissionRejected
		d.defaultStage(StageSubmit)
		d.Reason = string(subErr.Reason)
		d.Remedy, d.Retryable = rejectRemedy(subErr.Reason)

	case errors.As(err, &revertErr):
		d.Kind = OnChainRevert
		d.defaultStage(StageInvoke)
		d.Reason = revertErr.Reason
		d.applyTx(revertErr.Tx)
		if revertErr.TxHash != (common.Hash{}) {
			h := revertErr.TxHash
			d.TxHash = &h
		}
		d.applyReceipt(revertErr.Receipt)
		d.Remedy = "check the arguments and that the bytecode targets the network's EVM version"

	case errors.As(err, &inconsErr):
		d.Kind = DeploymentInconsistent
		d.defaultStage(StageVerify)
		addr := inconsErr.Address
		d.Address = &addr
		if inconsErr.TxHash != (common.Hash{}) {
			h := inconsErr.TxHash
			d.TxHash = &h
		}
		d.applyReceipt(inconsErr.Receipt)
		if d.Contract == "" {
			d.Contract = inconsErr.Contract
		}
		d.Remedy = "the node accepted the deployment but kept no code; the init code may not return runtime code on this EVM version"

	case errors.As(err, &encodingErr),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidProfile),
		errors.Is(err, ErrChainIDMismatch),
		errors.Is(err, ErrDeploymentUnusable),
		errors.Is(err, ErrMethodNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNoSigner):
		d.Kind = EncodingFailure
		d.defaultStage(StageBuild)
		switch {
		case errors.Is(err, ErrChainIDMismatch):
			d.Remedy = "the node's chain id differs from the network profile; fix chain_id in sling.toml"
		case errors.Is(err, ErrDeploymentUnusable):
			d.Remedy = "redeploy the contract; only confirmed deployments with code can be called"
		case errors.Is(err, ErrNotFound):
			d.Remedy = "no such deployment in the registry; check `sling list`"
		case errors.Is(err, ErrNoSigner):
			d.Remedy = "configure a signer key (SLING_PRIVATE_KEY or [signers] in sling.toml)"
		default:
			d.Remedy = "check argument count and types against the ABI"
		}

	case errors.As(err, &transErr):
		d.Kind = TransportFailure
		if transErr.TxHash != (common.Hash{}) {
			h := transErr.TxHash
			d.TxHash = &h
			d.applyTx(transErr.Tx)
			d.defaultStage(StageConfirm)
			d.Remedy = "the transaction was broadcast and may still be mined; re-poll it by hash with `sling tx` instead of resubmitting"
			break
		}
		d.defaultStage(StagePreflight)
		d.Retryable = true
		d.Remedy = "check the RPC endpoint is reachable"

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		d.Kind = TransportFailure
		d.defaultStage(StagePreflight)
		d.Retryable = true
		d.Remedy = "the operation was interrupted before the node answered; raise --timeout"

	default:
		// Untyped errors only come from collaborator I/O.
		d.Kind = TransportFailure
		d.defaultStage(StagePreflight)
		d.Retryable = true
		d.Remedy = "check the RPC endpoint is reachable"
	}

	return d
}

// PreviewData renders calldata as hex truncated to DataPreviewLength characters.
func PreviewData(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	s := hexutil.Encode(data)
	if len(s) > DataPreviewLength {
		return s[:DataPreviewLength] + "..."
	}
	return s
}

func (d *Diagnostic) defaultStage(s Stage) {
	if d.Stage == "" {
		d.Stage = s
	}
}

func (d *Diagnostic) applyTx(tx TxContext) {
	if tx.From != (common.Address{}) {
		from := tx.From
		d.From = &from
	}
	d.To = tx.To
	d.Nonce = tx.Nonce
	d.GasLimit = tx.GasLimit
	d.GasPrice = tx.GasPrice
	d.DataPreview = PreviewData(tx.Data)
}

func (d *Diagnostic) applyReceipt(r *Receipt) {
	if r == nil {
		return
	}
	d.ReceiptStatus = r.Status
	d.BlockNumber = r.BlockNumber
	d.GasUsed = r.GasUsed
	if r.ContractAddress != nil && d.Address == nil {
		addr := *r.ContractAddress
		d.Address = &addr
	}
}

func rejectRemedy(reason RejectReason) (string, bool) {
	switch reason {
	case RejectNonceTooLow:
		return "another transaction used this nonce; resubmit to take a fresh nonce", true
	case RejectNonceTooHigh:
		return "an earlier nonce is missing; wait for pending transactions or resubmit", true
	case RejectUnderpriced:
		return "the node enforces a minimum gas price; use fee_policy = \"fixed\" with gas_price, or --gas-price", false
	case RejectInsufficientFunds:
		return "fund the signer account or lower the gas limit", false
	case RejectIntrinsicGas:
		return "raise --gas-limit above the intrinsic cost of the transaction", false
	case RejectGasLimitExceeded:
		return "lower --gas-limit below the block gas limit", false
	case RejectChainID:
		return "the transaction was signed for a different chain; check chain_id in sling.toml", false
	case RejectUnprotected:
		return "the node requires EIP-155 signatures", false
	default:
		return "inspect the node's message above", false
	}
}
