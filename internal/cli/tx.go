package cli

import (
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// NewTxCmd creates the tx command
func NewTxCmd() *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tx <hash>",
		Short: "Re-poll a submitted transaction by hash",
		Long: `Look up the receipt of a transaction submitted earlier. A confirmation
timeout leaves the outcome unknown; the transaction may still be mined.
This command picks it up again and updates the registry.

With --wait the receipt is polled at the profile's pace until it arrives
or --confirm-timeout elapses.`,
		Example: `  sling tx 0x8f3c...e21a
  sling tx 0x8f3c...e21a --wait --confirm-timeout 5m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			if !isTxHash(args[0]) {
				return usageErrorf("invalid transaction hash %q", args[0])
			}

			result, err := app.TrackTransaction.Run(cmd.Context(), usecase.TrackParams{
				Hash:    common.HexToHash(args[0]),
				Wait:    wait,
				Timeout: timeout,
			})
			if err != nil {
				return err
			}

			return renderOrJSON(cmd, app, result, func(w io.Writer) error {
				return render.NewTransactionRenderer(w, app.EventDecoder).RenderTrack(result)
			})
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Keep polling until the transaction is mined")
	cmd.Flags().DurationVar(&timeout, "confirm-timeout", 0, "How long --wait polls (defaults to the profile's)")

	return cmd
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
