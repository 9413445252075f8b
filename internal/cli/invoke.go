package cli

import (
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/app"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/config"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// invocationJSON is the --json form of a call or send
type invocationJSON struct {
	Method   string          `json:"method"`
	Address  common.Address  `json:"address"`
	ReadOnly bool            `json:"readOnly"`
	Values   []string        `json:"values,omitempty"`
	TxHash   *common.Hash    `json:"txHash,omitempty"`
	Receipt  *domain.Receipt `json:"receipt,omitempty"`
}

func newInvocationJSON(r *domain.InvocationResult) *invocationJSON {
	out := &invocationJSON{
		Method:   r.Method,
		Address:  r.Address,
		ReadOnly: r.ReadOnly,
		Receipt:  r.Receipt,
	}
	if r.ReadOnly {
		out.Values = lo.Map(r.Values, func(v any, _ int) string { return usecase.FormatValue(v) })
	} else {
		hash := r.TxHash
		out.TxHash = &hash
	}
	return out
}

// NewSendCmd creates the send command
func NewSendCmd() *cobra.Command {
	var (
		abiPath string
		value   string
		tx      txFlags
	)

	cmd := &cobra.Command{
		Use:   "send <deployment|address> <method> [args...]",
		Short: "Send a state-changing transaction to a contract",
		Long: `Build, sign and submit a method call, then wait for the receipt.

The target is a registry entry (id, contract name, name:label or address) or,
with --abi, any address. A transaction that is mined but reverts is still
reported with its receipt; the revert reason is recovered by replaying the
call at the receipt's block.`,
		Example: `  sling send SimpleStorage store 7
  sling send 0x5FbDB2315678afecb367f032d93F642f64180aa3 transfer 0xabc... 1e18 --abi Token.abi`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			price, err := tx.price()
			if err != nil {
				return err
			}
			var wei *big.Int
			if value != "" {
				if wei, err = config.ParseWei(value); err != nil {
					return usageErrorf("--value: %w", err)
				}
			}
			return runInvoke(cmd, app, args, abiPath, usecase.InvokeParams{
				Mode:             usecase.InvokeWrite,
				Value:            wei,
				GasLimit:         tx.limit(cmd, app.Config.Network.CallGasLimit),
				GasPriceOverride: price,
				Timeout:          tx.confirmTimeout,
			})
		},
	}

	cmd.Flags().StringVar(&abiPath, "abi", "", "ABI or artifact file for a target outside the registry")
	cmd.Flags().StringVar(&value, "value", "", "Value to send with the call, e.g. 1ether")
	tx.register(cmd, "Gas limit for the call (defaults to the profile's)")

	return cmd
}

// NewCallCmd creates the call command
func NewCallCmd() *cobra.Command {
	var abiPath string

	cmd := &cobra.Command{
		Use:   "call <deployment|address> <method> [args...]",
		Short: "Call a read-only method and decode the result",
		Long: `Execute a method with eth_call against the latest block and decode the
return values. Nothing is signed or submitted; reverts are decoded from
Error(string), Panic(uint256) or the contract's custom errors.`,
		Example: `  sling call SimpleStorage retrieve
  sling call private/SimpleToken:v2 balanceOf 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			return runInvoke(cmd, app, args, abiPath, usecase.InvokeParams{Mode: usecase.InvokeRead})
		},
	}

	cmd.Flags().StringVar(&abiPath, "abi", "", "ABI or artifact file for a target outside the registry")

	return cmd
}

func runInvoke(cmd *cobra.Command, a *app.App, args []string, abiPath string, params usecase.InvokeParams) error {
	target, err := resolveTarget(cmd, a, args[0], abiPath)
	if err != nil {
		return err
	}
	params.Target = target
	params.Method = args[1]
	params.RawArgs = args[2:]

	result, runErr := a.InvokeMethod.Run(cmd.Context(), params)
	if result != nil {
		err := renderOrJSON(cmd, a, newInvocationJSON(result), func(w io.Writer) error {
			return render.NewTransactionRenderer(w, a.EventDecoder).RenderInvocation(result, &target.ABI)
		})
		if err != nil && runErr == nil {
			return err
		}
	}
	return runErr
}

// resolveTarget finds the contract to talk to: a plain address with an ABI
// file, or an entry of the registry
func resolveTarget(cmd *cobra.Command, a *app.App, ref, abiPath string) (*usecase.CallTarget, error) {
	if abiPath != "" {
		if !common.IsHexAddress(ref) {
			return nil, usageErrorf("--abi needs an address target, got %q", ref)
		}
		parsed, _, err := a.ArtifactLoader.LoadABI(cmd.Context(), abiPath)
		if err != nil {
			return nil, err
		}
		return &usecase.CallTarget{
			Contract: strings.TrimSuffix(filepath.Base(abiPath), filepath.Ext(abiPath)),
			Address:  common.HexToAddress(ref),
			ABI:      parsed,
		}, nil
	}

	rec, err := a.ShowDeployment.Run(cmd.Context(), usecase.ShowDeploymentParams{Query: ref})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target: %w", err)
	}
	return usecase.TargetFromRecord(rec)
}
