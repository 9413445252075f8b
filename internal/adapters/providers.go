package adapters

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/google/wire"
	"github.com/trebuchet-org/sling/internal/adapters/abi"
	"github.com/trebuchet-org/sling/internal/adapters/artifacts"
	"github.com/trebuchet-org/sling/internal/adapters/blockchain"
	"github.com/trebuchet-org/sling/internal/adapters/devchain"
	"github.com/trebuchet-org/sling/internal/adapters/interactive"
	"github.com/trebuchet-org/sling/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/sling/internal/adapters/signer"
	"github.com/trebuchet-org/sling/internal/adapters/solc"
	"github.com/trebuchet-org/sling/internal/domain/config"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// dryRunBalance funds the signer on the in-process chain
var dryRunBalance = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))

// ProvideChainClient connects to the configured RPC endpoint, or boots an
// in-process chain that mirrors the network profile under --dry-run.
func ProvideChainClient(cfg *config.RuntimeConfig, s usecase.Signer, log *slog.Logger) (usecase.ChainClient, error) {
	if cfg.DryRun {
		alloc := map[common.Address]*big.Int{}
		if s != nil {
			alloc[s.Address()] = dryRunBalance
		}
		chain, err := devchain.New(
			devchain.WithChainID(cfg.Network.ChainID),
			devchain.WithEVMVersion(cfg.Network.EVMVersion),
			devchain.WithAlloc(alloc),
			devchain.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		log.Info("dry run: using an in-process chain", "chainId", cfg.Network.ChainID, "evmVersion", cfg.Network.EVMVersion)
		return blockchain.NewClient(chain, cfg.RPC, log), nil
	}
	return blockchain.Dial(context.Background(), cfg.Network.RPCURL, cfg.RPC, log)
}

// ProvideArtifactLoader roots artifact paths at the project directory
func ProvideArtifactLoader(cfg *config.RuntimeConfig, log *slog.Logger) *artifacts.Loader {
	return artifacts.NewLoader(cfg.ProjectRoot, cfg.Compiler.EVMVersion, log)
}

// ProvideDeploymentRepository opens the registry under the data directory
func ProvideDeploymentRepository(cfg *config.RuntimeConfig) (*deployments.FileRepository, error) {
	return deployments.NewFileRepository(cfg.DataDir)
}

// BlockchainSet provides the RPC transport and the session signer
var BlockchainSet = wire.NewSet(
	ProvideChainClient,
	signer.ProvideSigner,
)

// CompilerSet provides solc and the precompiled artifact loader
var CompilerSet = wire.NewSet(
	solc.NewCompiler,
	wire.Bind(new(usecase.Compiler), new(*solc.Compiler)),

	ProvideArtifactLoader,
	wire.Bind(new(usecase.ArtifactLoader), new(*artifacts.Loader)),
)

// ABISet provides argument coercion and revert/event decoding
var ABISet = wire.NewSet(
	abi.NewArgParser,
	wire.Bind(new(usecase.ArgumentParser), new(*abi.ArgParser)),

	abi.NewRevertDecoder,
	wire.Bind(new(usecase.RevertDecoder), new(*abi.RevertDecoder)),

	abi.NewEventDecoder,
)

// RepositorySet provides the deployment registry
var RepositorySet = wire.NewSet(
	ProvideDeploymentRepository,
	wire.Bind(new(usecase.DeploymentRepository), new(*deployments.FileRepository)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.ContractSelector), new(*interactive.SelectorAdapter)),
	wire.Bind(new(usecase.DeploymentSelector), new(*interactive.SelectorAdapter)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	BlockchainSet,
	CompilerSet,
	ABISet,
	RepositorySet,
	InteractiveSet,
)
