package domain

import (
	"fmt"
	"math/big"
	"time"
)

// FeePolicy controls how gas price is chosen for outgoing transactions.
type FeePolicy string

const (
	// FeePolicyZero always uses a gas price of 0 and never consults the node.
	FeePolicyZero FeePolicy = "zero"
	// FeePolicyFixed uses NetworkProfile.GasPrice.
	FeePolicyFixed FeePolicy = "fixed"
	// FeePolicyNetwork asks the node for a suggested price.
	FeePolicyNetwork FeePolicy = "network"
)

const (
	DefaultChainID         uint64 = 1337
	DefaultBlockTime              = 15 * time.Second
	DefaultDeployGasLimit  uint64 = 3_000_000
	DefaultCallGasLimit    uint64 = 100_000
	DefaultConfirmTimeout         = 2 * time.Minute
	DefaultMinCodeSize            = 1
	DefaultRPCURL                 = "http://localhost:8545"
	DefaultNetworkName            = "private"
)

// NetworkProfile captures the quirks of the target chain. One profile is used
// for every transaction of a session.
type NetworkProfile struct {
	Name           string
	RPCURL         string
	ChainID        uint64
	FeePolicy      FeePolicy
	GasPrice       *big.Int
	EVMVersion     EVMVersion
	BlockTime      time.Duration
	MinCodeSize    int
	DeployGasLimit uint64
	CallGasLimit   uint64
	ConfirmTimeout time.Duration
}

// DefaultNetworkProfile returns the profile of the reference private network:
// chain id 1337, free gas, london, roughly 15 second blocks.
func DefaultNetworkProfile() NetworkProfile {
	return NetworkProfile{
		Name:           DefaultNetworkName,
		RPCURL:         DefaultRPCURL,
		ChainID:        DefaultChainID,
		FeePolicy:      FeePolicyZero,
		GasPrice:       new(big.Int),
		EVMVersion:     EVMLondon,
		BlockTime:      DefaultBlockTime,
		MinCodeSize:    DefaultMinCodeSize,
		DeployGasLimit: DefaultDeployGasLimit,
		CallGasLimit:   DefaultCallGasLimit,
		ConfirmTimeout: DefaultConfirmTimeout,
	}
}

// ChainIDBig returns the chain id as used by go-ethereum signers.
func (p NetworkProfile) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(p.ChainID)
}

// DefaultGasPrice is the price used when no override is given and the policy
// does not require asking the node. It is nil for FeePolicyNetwork.
func (p NetworkProfile) DefaultGasPrice() *big.Int {
	switch p.FeePolicy {
	case FeePolicyZero:
		return new(big.Int)
	case FeePolicyFixed:
		if p.GasPrice == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(p.GasPrice)
	default:
		return nil
	}
}

// Validate checks the profile is usable for building transactions.
func (p NetworkProfile) Validate() error {
	if p.ChainID == 0 {
		return fmt.Errorf("%w: network %q has no chain id", ErrInvalidProfile, p.Name)
	}
	switch p.FeePolicy {
	case FeePolicyZero, FeePolicyNetwork:
	case FeePolicyFixed:
		if p.GasPrice == nil || p.GasPrice.Sign() < 0 {
			return fmt.Errorf("%w: network %q uses a fixed fee policy without a gas price", ErrInvalidProfile, p.Name)
		}
	default:
		return fmt.Errorf("%w: unknown fee policy %q", ErrInvalidProfile, p.FeePolicy)
	}
	if p.EVMVersion.Rank() < 0 {
		return fmt.Errorf("%w: unknown evm version %q", ErrInvalidProfile, p.EVMVersion)
	}
	if p.BlockTime < 0 || p.ConfirmTimeout < 0 {
		return fmt.Errorf("%w: negative durations", ErrInvalidProfile)
	}
	return nil
}
