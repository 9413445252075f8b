package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <deployment>",
		Short: "Show detailed deployment information from the registry",
		Long: `Show detailed information about a specific deployment.

You can specify deployments using:
- Contract name: "SimpleStorage"
- Contract with label: "SimpleToken:v2"
- Full deployment ID: "private/SimpleToken:v2"
- Contract address: "0x1234..."

When a contract name matches several deployments, you are asked to pick one.`,
		Example: `  sling show SimpleStorage
  sling show SimpleToken:v2
  sling show 0x5FbDB2315678afecb367f032d93F642f64180aa3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			rec, err := app.ShowDeployment.Run(cmd.Context(), usecase.ShowDeploymentParams{Query: args[0]})
			if err != nil {
				return err
			}

			return renderOrJSON(cmd, app, rec, func(w io.Writer) error {
				return render.NewDeploymentRenderer(w, true).RenderDeployment(rec)
			})
		},
	}

	return cmd
}
