package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/sling/internal/domain"
)

// probeInitCode deploys a runtime that returns the 32-byte word 42 for any
// call. It only uses opcodes available since frontier.
var probeInitCode = hexutil.MustDecode("0x600a600c600039600a6000f3602a60005260206000f3")

const probeAnswer = 42

// ProbeParams contains parameters for an EVM probe
type ProbeParams struct {
	GasLimit uint64
	Timeout  time.Duration
}

// ProbeResult reports whether the node executes contract code.
type ProbeResult struct {
	Deployment *domain.DeploymentResult
	Answer     *big.Int
	Healthy    bool
}

// ProbeEVM deploys a minimal contract and calls it, which separates
// "node accepts transactions" from "node runs the EVM as expected".
type ProbeEVM struct {
	deploy *DeployContract
	client ChainClient
	log    *slog.Logger
}

// NewProbeEVM creates a new ProbeEVM use case
func NewProbeEVM(deploy *DeployContract, client ChainClient, log *slog.Logger) *ProbeEVM {
	return &ProbeEVM{
		deploy: deploy,
		client: client,
		log:    log.With("component", "probe"),
	}
}

// Run executes the probe. Deployment failures are returned classified.
func (uc *ProbeEVM) Run(ctx context.Context, params ProbeParams) (*ProbeResult, error) {
	gasLimit := params.GasLimit
	if gasLimit == 0 {
		gasLimit = domain.DefaultCallGasLimit
	}

	res, err := uc.deploy.Run(ctx, DeployParams{
		Artifact: &domain.CompiledArtifact{
			ContractName: "Probe",
			Bytecode:     probeInitCode,
			ABI:          abi.ABI{},
			RawABI:       []byte("[]"),
		},
		GasLimit:   gasLimit,
		Timeout:    params.Timeout,
		SkipRecord: true,
	})
	if err != nil {
		return nil, err
	}

	addr := res.Deployment.Address
	out, err := uc.client.CallContract(ctx, ethereum.CallMsg{To: &addr}, nil)
	if err != nil {
		return nil, domain.AtStage(domain.StageInvoke, "Probe", fmt.Errorf("call probe at %s: %w", addr.Hex(), err))
	}

	answer := new(big.Int).SetBytes(common.TrimLeftZeroes(out))
	result := &ProbeResult{
		Deployment: res.Deployment,
		Answer:     answer,
		Healthy:    len(out) == 32 && answer.Cmp(big.NewInt(probeAnswer)) == 0,
	}
	uc.log.Info("probe finished", "address", addr.Hex(), "answer", answer, "healthy", result.Healthy)
	if !result.Healthy {
		return result, domain.AtStage(domain.StageVerify, "Probe", &domain.InconsistentDeploymentError{
			Contract: "Probe",
			Address:  addr,
			TxHash:   res.Deployment.TxHash,
			Receipt:  res.Deployment.Receipt,
			CodeSize: len(out),
			Detail:   fmt.Sprintf("probe answered %s, expected %d", answer, probeAnswer),
		})
	}
	return result, nil
}
