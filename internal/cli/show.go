package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/lend-deploy/internal/app"
	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [deployment]",
		Short: "Show detailed deployment information",
		Long: `Show the recorded details of a deployment on the active network:
constructor arguments, linked libraries, transaction, artifact, verification
status and the initializer calls made on it.

The deployment is named by its pipeline step. Without an argument an
interactive picker lists the recorded deployments.`,
		Example: `  lend-deploy show LendingPool --network bsctest
  lend-deploy show --network bsctest`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				name, err = pickDeployment(cmd, app, "Select a deployment")
				if err != nil {
					return err
				}
			}

			result, err := app.ShowDeployment.Run(cmd.Context(), usecase.ShowDeploymentParams{Name: name})
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return writeJSON(cmd, showOutput{
					Deployment:      result.Deployment,
					Initializations: result.Initializations,
				})
			}

			renderer := render.NewDeploymentRenderer(cmd.OutOrStdout(), !app.Config.NonInteractive)
			return renderer.RenderDeployment(result)
		},
	}

	return cmd
}

// pickDeployment asks the operator to choose one of the active network's
// deployments and returns its name
func pickDeployment(cmd *cobra.Command, app *app.App, prompt string) (string, error) {
	if app.Config.Network == nil {
		return "", domain.ErrNetworkRequired
	}
	if app.Config.NonInteractive {
		return "", fmt.Errorf("a deployment name is required in non-interactive mode")
	}

	deployments, err := app.Store.ListDeployments(cmd.Context(), domain.DeploymentFilter{Network: app.Config.Network.Name})
	if err != nil {
		return "", err
	}
	if len(deployments) == 0 {
		return "", fmt.Errorf("no deployments recorded on %s", app.Config.Network.Name)
	}

	selected, err := app.Selector.SelectDeployment(cmd.Context(), deployments, prompt)
	if err != nil {
		return "", err
	}
	return selected.Name, nil
}
