package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// CodeVerifier confirms that a deployment left runtime code behind.
type CodeVerifier struct {
	client      ChainClient
	minCodeSize int
	log         *slog.Logger
}

// CodeCheck is the observation made at an address.
type CodeCheck struct {
	Address  common.Address
	CodeSize int
	Verified bool
}

// NewCodeVerifier creates a new CodeVerifier
func NewCodeVerifier(client ChainClient, cfg *config.RuntimeConfig, log *slog.Logger) *CodeVerifier {
	minCodeSize := cfg.Network.MinCodeSize
	if minCodeSize <= 0 {
		minCodeSize = domain.DefaultMinCodeSize
	}
	return &CodeVerifier{
		client:      client,
		minCodeSize: minCodeSize,
		log:         log.With("component", "verifier"),
	}
}

// MinCodeSize is the smallest code length accepted as a real deployment.
func (v *CodeVerifier) MinCodeSize() int {
	return v.minCodeSize
}

// Check reads the code at addr from the latest block.
func (v *CodeVerifier) Check(ctx context.Context, addr common.Address) (*CodeCheck, error) {
	code, err := v.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch code at %s: %w", addr.Hex(), err)
	}
	check := &CodeCheck{
		Address:  addr,
		CodeSize: len(code),
		Verified: len(code) >= v.minCodeSize,
	}
	v.log.Debug("checked code", "address", addr.Hex(), "size", check.CodeSize, "verified", check.Verified)
	return check, nil
}

// VerifyDeployed reports whether non-trivial code exists at addr.
func (v *CodeVerifier) VerifyDeployed(ctx context.Context, addr common.Address) (bool, error) {
	check, err := v.Check(ctx, addr)
	if err != nil {
		return false, err
	}
	return check.Verified, nil
}
