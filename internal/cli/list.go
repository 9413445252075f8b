package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		contractName string
		allNetworks  bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List deployments from the registry",
		Long: `List the deployments recorded in .sling/deployments.json for the active
network, grouped by network. Use --all to include every network.`,
		Example: `  # List all deployments on the active network
  sling list

  # List all SimpleStorage deployments everywhere
  sling list --contract SimpleStorage --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListDeployments.Run(cmd.Context(), usecase.ListDeploymentsParams{
				ContractName: contractName,
				AllNetworks:  allNetworks,
			})
			if err != nil {
				return err
			}

			return renderOrJSON(cmd, app, result, func(w io.Writer) error {
				return render.NewDeploymentsRenderer(w, true).RenderDeploymentList(result)
			})
		},
	}

	cmd.Flags().StringVar(&contractName, "contract", "", "Filter by contract name")
	cmd.Flags().BoolVarP(&allNetworks, "all", "a", false, "List deployments of every network")

	return cmd
}
