package cli

import (
	"io"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/config"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// txFlags tune one outgoing transaction
type txFlags struct {
	gasLimit       uint64
	gasPrice       string
	confirmTimeout time.Duration
}

func (f *txFlags) register(cmd *cobra.Command, gasHelp string) {
	cmd.Flags().Uint64Var(&f.gasLimit, "gas-limit", 0, gasHelp)
	cmd.Flags().StringVar(&f.gasPrice, "gas-price", "", "Gas price override, e.g. 0, 1000 or \"2 gwei\"")
	cmd.Flags().DurationVar(&f.confirmTimeout, "confirm-timeout", 0, "How long to wait for inclusion (defaults to the profile's)")
}

// limit returns --gas-limit when given, def otherwise. An explicit zero is
// passed on so the builder can reject it.
func (f *txFlags) limit(cmd *cobra.Command, def uint64) uint64 {
	if cmd.Flags().Changed("gas-limit") {
		return f.gasLimit
	}
	return def
}

func (f *txFlags) price() (*big.Int, error) {
	if f.gasPrice == "" {
		return nil, nil
	}
	p, err := config.ParseWei(f.gasPrice)
	if err != nil {
		return nil, usageErrorf("--gas-price: %w", err)
	}
	return p, nil
}

// deploymentJSON is the --json form of a deployment
type deploymentJSON struct {
	Contract     string          `json:"contract"`
	Address      common.Address  `json:"address"`
	TxHash       common.Hash     `json:"txHash"`
	Receipt      *domain.Receipt `json:"receipt,omitempty"`
	CodeVerified bool            `json:"codeVerified"`
	Usable       bool            `json:"usable"`
	Deployer     *common.Address `json:"deployer,omitempty"`
	Nonce        *uint64         `json:"nonce,omitempty"`
	RegistryID   string          `json:"registryId,omitempty"`
}

func newDeploymentJSON(result *usecase.DeployResult) *deploymentJSON {
	d := result.Deployment
	if d == nil {
		return nil
	}
	out := &deploymentJSON{
		Contract:     d.ContractName,
		Address:      d.Address,
		TxHash:       d.TxHash,
		Receipt:      d.Receipt,
		CodeVerified: d.CodeVerified,
		Usable:       d.Usable(),
	}
	if result.Signed != nil {
		from, nonce := result.Signed.From, result.Signed.Nonce
		out.Deployer = &from
		out.Nonce = &nonce
	}
	if result.Record != nil {
		out.RegistryID = result.Record.ID
	}
	return out
}

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var (
		flags         compileFlags
		tx            txFlags
		label         string
		skipPreflight bool
		noRecord      bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <source.sol|artifact.json|code.bin> [constructor args...]",
		Short: "Compile or load a contract and deploy it",
		Long: `Deploy a contract and wait until it is mined. The target is a Solidity
source, which is compiled first, or a precompiled artifact: Foundry, Hardhat
or solc JSON output, or a .bin hex file next to a .abi file.

After inclusion the deployed code is read back. A transaction that was
mined successfully but left no code at the address is reported as an
inconsistent deployment and never recorded as usable.

Constructor arguments follow the target and are coerced to the ABI types.`,
		Example: `  # Deploy SimpleStorage with an initial value
  sling deploy contracts/SimpleStorage.sol 42

  # Deploy a prebuilt artifact under a label
  sling deploy out/SimpleToken.json "Token" TKN 1000000e18 --label v2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			evm, err := flags.evm()
			if err != nil {
				return err
			}
			price, err := tx.price()
			if err != nil {
				return err
			}

			params := usecase.DeployParams{
				ContractName:     flags.contract,
				EVMVersion:       evm,
				RawArgs:          args[1:],
				GasLimit:         tx.limit(cmd, app.Config.Network.DeployGasLimit),
				GasPriceOverride: price,
				Timeout:          tx.confirmTimeout,
				Label:            label,
				SkipPreflight:    skipPreflight,
				SkipRecord:       noRecord,
			}
			if isSolidity(args[0]) {
				params.SourcePath = args[0]
			} else {
				params.ArtifactPath = args[0]
			}

			result, runErr := app.DeployContract.Run(cmd.Context(), params)
			if result != nil && result.Deployment != nil {
				err := renderOrJSON(cmd, app, newDeploymentJSON(result), func(w io.Writer) error {
					return render.NewDeploymentRenderer(w, true).RenderDeployResult(result)
				})
				if err != nil && runErr == nil {
					return err
				}
			}
			return runErr
		},
	}

	flags.register(cmd)
	tx.register(cmd, "Gas limit for the deployment (defaults to the profile's)")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Label to tell deployments of the same contract apart")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not compare the node's chain id with the profile")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not write the deployment to the registry")

	return cmd
}

func isSolidity(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sol")
}
