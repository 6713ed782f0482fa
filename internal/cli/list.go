package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		contractName string
		check        bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded deployments",
		Long: `List deployment records, grouped by network.

Without --network every network with records is listed. With --check, each
listed address is looked up on its network and addresses without code are
flagged.`,
		Example: `  # List all deployments
  lend-deploy list

  # List deployments on one network and check them on-chain
  lend-deploy list --network bsctest --check

  # List all LendingPool deployments
  lend-deploy list --contract LendingPool`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.ListDeploymentsParams{
				ContractName: contractName,
				CheckOnChain: check,
			}

			result, err := app.ListDeployments.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return writeJSON(cmd, result)
			}

			renderer := render.NewDeploymentsRenderer(cmd.OutOrStdout(), !app.Config.NonInteractive)
			return renderer.RenderDeploymentList(result)
		},
	}

	cmd.Flags().StringVar(&contractName, "contract", "", "Filter by contract name")
	cmd.Flags().BoolVar(&check, "check", false, "Check that every listed address holds code")

	return cmd
}
