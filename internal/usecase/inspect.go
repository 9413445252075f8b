package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// NetworkReport describes what the node says next to what the profile expects.
type NetworkReport struct {
	Profile        domain.NetworkProfile
	ChainID        *big.Int
	ChainIDMatches bool
	BlockNumber    uint64
	SuggestedPrice *big.Int
	EffectivePrice *big.Int

	Signer        *common.Address
	SignerBalance *big.Int
	PendingNonce  uint64

	Warnings []string
}

// InspectNetwork compares the connected node against the active profile.
type InspectNetwork struct {
	client  ChainClient
	signer  Signer
	profile domain.NetworkProfile
	sink    ProgressSink
	log     *slog.Logger
}

// NewInspectNetwork creates a new InspectNetwork use case
func NewInspectNetwork(cfg *config.RuntimeConfig, client ChainClient, signer Signer, sink ProgressSink, log *slog.Logger) *InspectNetwork {
	return &InspectNetwork{
		client:  client,
		signer:  signer,
		profile: cfg.Network,
		sink:    sink,
		log:     log.With("component", "inspect"),
	}
}

// Run gathers the report. Only transport failures are returned as errors;
// anything odd about the node ends up in Warnings.
func (uc *InspectNetwork) Run(ctx context.Context) (*NetworkReport, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(domain.StagePreflight), Message: "Inspecting " + uc.profile.Name, Spinner: true})

	report := &NetworkReport{Profile: uc.profile}

	chainID, err := uc.client.ChainID(ctx)
	if err != nil {
		return nil, domain.AtStage(domain.StagePreflight, "", fmt.Errorf("fetch chain id: %w", err))
	}
	report.ChainID = chainID
	report.ChainIDMatches = chainID.Uint64() == uc.profile.ChainID
	if !report.ChainIDMatches {
		report.warn("node reports chain id %s but profile %s expects %d; every transaction would be rejected",
			chainID, uc.profile.Name, uc.profile.ChainID)
	}

	report.BlockNumber, err = uc.client.BlockNumber(ctx)
	if err != nil {
		return nil, domain.AtStage(domain.StagePreflight, "", fmt.Errorf("fetch block number: %w", err))
	}

	report.SuggestedPrice, err = uc.client.SuggestGasPrice(ctx)
	if err != nil {
		uc.log.Debug("gas price suggestion unavailable", "error", err)
	}
	report.EffectivePrice = uc.profile.DefaultGasPrice()
	if report.EffectivePrice == nil {
		report.EffectivePrice = report.SuggestedPrice
	}
	if uc.profile.FeePolicy == domain.FeePolicyZero && report.SuggestedPrice != nil && report.SuggestedPrice.Sign() > 0 {
		report.warn("node suggests a gas price of %s wei; the zero fee policy ignores it", report.SuggestedPrice)
	}

	if uc.signer == nil {
		report.warn("no signer configured; only read-only calls are possible")
		return report, nil
	}

	addr := uc.signer.Address()
	report.Signer = &addr
	report.SignerBalance, err = uc.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, domain.AtStage(domain.StagePreflight, "", fmt.Errorf("fetch balance: %w", err))
	}
	report.PendingNonce, err = uc.client.PendingNonceAt(ctx, addr)
	if err != nil {
		return nil, domain.AtStage(domain.StagePreflight, "", fmt.Errorf("fetch pending nonce: %w", err))
	}
	if report.SignerBalance.Sign() == 0 && report.EffectivePrice != nil && report.EffectivePrice.Sign() > 0 {
		report.warn("signer %s has no balance but transactions cost %s wei per gas", addr.Hex(), report.EffectivePrice)
	}

	return report, nil
}

func (r *NetworkReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
