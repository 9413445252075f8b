package cli

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// NewNetworkCmd creates the network command
func NewNetworkCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "network",
		Aliases: []string{"net"},
		Short:   "Show what the node reports against the active profile",
		Long: `Query the node for its chain id, head block and suggested gas price, and
the signer's balance and pending nonce. Differences from the network profile,
such as a chain id mismatch or a non-zero price under the zero fee policy,
are listed as warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			report, err := app.InspectNetwork.Run(cmd.Context())
			if err != nil {
				return err
			}

			return renderOrJSON(cmd, app, report, func(w io.Writer) error {
				return render.NewNetworkRenderer(w, true).RenderNetworkReport(report)
			})
		},
	}
}

// NewProbeCmd creates the probe command
func NewProbeCmd() *cobra.Command {
	var gasLimit uint64

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Deploy a minimal contract to check the node executes code",
		Long: `Deploy an 11-byte contract that returns 42, read its code back and call it.
A healthy node answers 42. This separates node problems from contract
problems before a real deployment, e.g. an EVM version the node does not
run. The probe is never written to the registry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, runErr := app.ProbeEVM.Run(cmd.Context(), usecase.ProbeParams{GasLimit: gasLimit})
			if result != nil {
				err := renderOrJSON(cmd, app, newProbeJSON(result), func(w io.Writer) error {
					return render.NewNetworkRenderer(w, true).RenderProbe(result)
				})
				if err != nil && runErr == nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "Gas limit for the probe deployment")

	return cmd
}

type probeJSON struct {
	Healthy bool            `json:"healthy"`
	Answer  *big.Int        `json:"answer"`
	Address common.Address  `json:"address"`
	TxHash  common.Hash     `json:"txHash"`
	Receipt *domain.Receipt `json:"receipt,omitempty"`
}

func newProbeJSON(r *usecase.ProbeResult) *probeJSON {
	return &probeJSON{
		Healthy: r.Healthy,
		Answer:  r.Answer,
		Address: r.Deployment.Address,
		TxHash:  r.Deployment.TxHash,
		Receipt: r.Deployment.Receipt,
	}
}
