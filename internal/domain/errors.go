package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest is returned when a deployment or call request violates its invariants
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidProfile is returned when a network profile cannot be used
	ErrInvalidProfile = errors.New("invalid network profile")

	// ErrChainIDMismatch is returned when the node reports a chain id different from the profile
	ErrChainIDMismatch = errors.New("chain ID mismatch")

	// ErrDeploymentUnusable is returned when a deployment that failed or has no code is used as a call target
	ErrDeploymentUnusable = errors.New("deployment is not usable")

	// ErrNoSigner is returned when a state-changing operation has no credential configured
	ErrNoSigner = errors.New("no signer configured")

	// ErrContractNotFound is returned when a compiled output doesn't contain the requested contract
	ErrContractNotFound = errors.New("contract not found")

	// ErrMethodNotFound is returned when an ABI has no method with the requested name
	ErrMethodNotFound = errors.New("method not found")
)

// TxContext is the transaction detail attached to failures for diagnostics.
type TxContext struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	Nonce    *uint64
	GasLimit uint64
	GasPrice *big.Int
}

// CompileError is returned when the compiler reports errors or cannot be run.
type CompileError struct {
	Contract string
	Messages []string
	Err      error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("compilation failed")
	if e.Contract != "" {
		fmt.Fprintf(&b, " for %s", e.Contract)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, m := range e.Messages {
		b.WriteString("\n  ")
		b.WriteString(strings.TrimSpace(m))
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Err }

// EncodingError is returned when arguments don't fit the ABI or the
// transaction parameters are invalid before anything leaves the process.
type EncodingError struct {
	Target string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("encoding failed: %v", e.Err)
	}
	return fmt.Sprintf("encoding %s failed: %v", e.Target, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// RejectReason is the normalized admission failure reported by a node.
type RejectReason string

const (
	RejectNonceTooLow       RejectReason = "nonce-too-low"
	RejectNonceTooHigh      RejectReason = "nonce-too-high"
	RejectUnderpriced       RejectReason = "underpriced"
	RejectInsufficientFunds RejectReason = "insufficient-funds"
	RejectIntrinsicGas      RejectReason = "intrinsic-gas"
	RejectGasLimitExceeded  RejectReason = "gas-limit-exceeded"
	RejectChainID           RejectReason = "chain-id"
	RejectAlreadyKnown      RejectReason = "already-known"
	RejectUnprotected       RejectReason = "unprotected"
	RejectOther             RejectReason = "other"
)

var rejectPatterns = []struct {
	needle string
	reason RejectReason
}{
	{"nonce too low", RejectNonceTooLow},
	{"nonce too high", RejectNonceTooHigh},
	{"underpriced", RejectUnderpriced},
	{"gas price below minimum", RejectUnderpriced},
	{"max fee per gas less than block base fee", RejectUnderpriced},
	{"insufficient funds", RejectInsufficientFunds},
	{"intrinsic gas too low", RejectIntrinsicGas},
	{"exceeds block gas limit", RejectGasLimitExceeded},
	{"invalid chain id", RejectChainID},
	{"invalid sender", RejectChainID},
	{"already known", RejectAlreadyKnown},
	{"known transaction", RejectAlreadyKnown},
	{"replay-protected", RejectUnprotected},
}

// ParseRejectReason maps a node's admission error message to a RejectReason.
func ParseRejectReason(msg string) RejectReason {
	lower := strings.ToLower(msg)
	for _, p := range rejectPatterns {
		if strings.Contains(lower, p.needle) {
			return p.reason
		}
	}
	return RejectOther
}

// SubmissionErrorKind separates refusals from unknown outcomes.
type SubmissionErrorKind string

const (
	SubmissionKindRejected SubmissionErrorKind = "rejected"
	SubmissionKindTimeout  SubmissionErrorKind = "timeout"
)

// SubmissionError is returned when a transaction was refused at admission
// or its confirmation window elapsed. A timed-out transaction may still be
// mined; TxHash is retained for re-polling.
type SubmissionError struct {
	Kind    SubmissionErrorKind
	Reason  RejectReason
	TxHash  common.Hash
	Message string
	Tx      TxContext
	Err     error
}

func (e *SubmissionError) Error() string {
	switch e.Kind {
	case SubmissionKindTimeout:
		return fmt.Sprintf("transaction %s not confirmed before timeout (outcome unknown)", e.TxHash.Hex())
	default:
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		return fmt.Sprintf("transaction rejected (%s): %s", e.Reason, msg)
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// RevertError is returned when execution reverted, either in a mined
// transaction (Receipt set) or in a read-only call.
type RevertError struct {
	Method  string
	Reason  string
	Data    []byte
	TxHash  common.Hash
	Receipt *Receipt
	Tx      TxContext
	Err     error
}

func (e *RevertError) Error() string {
	var b strings.Builder
	if e.Receipt != nil {
		fmt.Fprintf(&b, "transaction %s reverted in block %d", e.TxHash.Hex(), e.Receipt.BlockNumber)
	} else {
		b.WriteString("execution reverted")
	}
	if e.Method != "" {
		fmt.Fprintf(&b, " calling %s", e.Method)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *RevertError) Unwrap() error { return e.Err }

// InconsistentDeploymentError is returned when a deployment receipt reports
// success but no (or trivially small) code is found at the address.
type InconsistentDeploymentError struct {
	Contract    string
	Address     common.Address
	TxHash      common.Hash
	Receipt     *Receipt
	CodeSize    int
	MinCodeSize int
	// Detail replaces the code size message when the code is present but
	// does not behave as deployed
	Detail string
}

func (e *InconsistentDeploymentError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("deployment of %s at %s is inconsistent: %s", e.Contract, e.Address.Hex(), e.Detail)
	}
	return fmt.Sprintf("deployment of %s reported success but %s holds %d bytes of code (minimum %d)",
		e.Contract, e.Address.Hex(), e.CodeSize, e.MinCodeSize)
}

// TransportError is returned when the RPC endpoint could not be reached or
// answered with something unusable after all retry attempts. TxHash is set
// once a signed transaction was handed to the node; its fate is then unknown.
type TransportError struct {
	Op       string
	Attempts int
	Err      error

	TxHash common.Hash
	Tx     TxContext
}

func (e *TransportError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("rpc %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("rpc %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PipelineError records which stage of the pipeline produced err.
type PipelineError struct {
	Stage    Stage
	Contract string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Contract != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Contract, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// AtStage wraps err with a stage unless it already carries one.
func AtStage(stage Stage, contract string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Stage: stage, Contract: contract, Err: err}
}
