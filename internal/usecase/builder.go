package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/domain/config"
)

// TransactionBuilder assembles unsigned transactions under the network
// profile. The chain id always comes from the profile and never from the
// transport.
type TransactionBuilder struct {
	client  ChainClient
	profile domain.NetworkProfile
	log     *slog.Logger
}

// NewTransactionBuilder creates a new TransactionBuilder
func NewTransactionBuilder(client ChainClient, cfg *config.RuntimeConfig, log *slog.Logger) *TransactionBuilder {
	return &TransactionBuilder{
		client:  client,
		profile: cfg.Network,
		log:     log.With("component", "builder"),
	}
}

// CallRequest describes a state-changing method call.
type CallRequest struct {
	To               common.Address
	ABI              *abi.ABI
	Method           string
	Args             []any
	Value            *big.Int
	GasLimit         uint64
	GasPriceOverride *big.Int
}

// BuildDeployment encodes constructor arguments after the bytecode.
func (b *TransactionBuilder) BuildDeployment(ctx context.Context, req domain.DeploymentRequest) (*domain.UnsignedTransaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	artifact := req.Artifact
	encoded, err := artifact.ABI.Pack("", req.ConstructorArgs...)
	if err != nil {
		return nil, &domain.EncodingError{Target: "constructor of " + artifact.ContractName, Err: err}
	}

	data := make([]byte, 0, len(artifact.Bytecode)+len(encoded))
	data = append(data, artifact.Bytecode...)
	data = append(data, encoded...)

	gasPrice, err := b.gasPrice(ctx, req.GasPriceOverride)
	if err != nil {
		return nil, err
	}

	b.log.Debug("built deployment",
		"contract", artifact.ContractName,
		"bytes", len(data),
		"gasLimit", req.GasLimit,
		"gasPrice", gasPrice)

	return &domain.UnsignedTransaction{
		Kind:     domain.TxKindDeploy,
		ChainID:  b.profile.ChainID,
		Data:     data,
		Value:    new(big.Int),
		GasLimit: req.GasLimit,
		GasPrice: gasPrice,
	}, nil
}

// BuildCall encodes a method call against the target ABI.
func (b *TransactionBuilder) BuildCall(ctx context.Context, req CallRequest) (*domain.UnsignedTransaction, error) {
	if req.GasLimit == 0 {
		return nil, fmt.Errorf("%w: gas limit must be greater than zero", domain.ErrInvalidRequest)
	}
	if req.ABI == nil {
		return nil, &domain.EncodingError{Target: req.Method, Err: fmt.Errorf("no ABI for %s", req.To.Hex())}
	}

	data, method, err := PackMethod(req.ABI, req.Method, req.Args)
	if err != nil {
		return nil, err
	}

	gasPrice, err := b.gasPrice(ctx, req.GasPriceOverride)
	if err != nil {
		return nil, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	return &domain.UnsignedTransaction{
		Kind:     domain.TxKindCall,
		ChainID:  b.profile.ChainID,
		To:       &to,
		Data:     data,
		Value:    value,
		GasLimit: req.GasLimit,
		GasPrice: gasPrice,
		Method:   method.Sig,
	}, nil
}

// gasPrice resolves the price for a new transaction. An explicit override
// wins, except that the zero policy only admits a zero override. The zero
// policy never consults the node.
func (b *TransactionBuilder) gasPrice(ctx context.Context, override *big.Int) (*big.Int, error) {
	if override != nil {
		if override.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative gas price", domain.ErrInvalidRequest)
		}
		if b.profile.FeePolicy == domain.FeePolicyZero && override.Sign() > 0 {
			return nil, fmt.Errorf("%w: gas price %s on network %q which uses the zero fee policy; set fee_policy = \"fixed\" to pay for gas",
				domain.ErrInvalidRequest, override, b.profile.Name)
		}
		return new(big.Int).Set(override), nil
	}

	if price := b.profile.DefaultGasPrice(); price != nil {
		return price, nil
	}

	price, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return price, nil
}

// ResolveMethod finds a method by name or full signature, e.g. "store" or
// "store(uint256)".
func ResolveMethod(contract *abi.ABI, name string) (abi.Method, error) {
	if m, ok := contract.Methods[name]; ok {
		return m, nil
	}
	for _, m := range contract.Methods {
		if m.Sig == name {
			return m, nil
		}
	}
	return abi.Method{}, fmt.Errorf("%w: %s", domain.ErrMethodNotFound, name)
}

// PackMethod encodes a call to name with args.
func PackMethod(contract *abi.ABI, name string, args []any) ([]byte, abi.Method, error) {
	method, err := ResolveMethod(contract, name)
	if err != nil {
		return nil, abi.Method{}, &domain.EncodingError{Target: name, Err: err}
	}
	encoded, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, method, &domain.EncodingError{Target: method.Sig, Err: err}
	}
	data := make([]byte, 0, 4+len(encoded))
	data = append(data, method.ID...)
	data = append(data, encoded...)
	return data, method, nil
}
