package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// NewNetworksCmd creates the networks command
func NewNetworksCmd() *cobra.Command {
	var withAccounts bool

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List networks configured in deploy.toml",
		Long: `List all networks configured in the [networks] section of deploy.toml.

With --accounts, every named account is resolved for each network and the
addresses of the configured signer keys are shown. Accounts that have no
value for a network are listed as missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.ListNetworksParams{WithAccounts: withAccounts}
			result, err := app.ListNetworks.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return writeJSON(cmd, newNetworksOutput(result))
			}

			renderer := render.NewNetworksRenderer(cmd.OutOrStdout(), !app.Config.NonInteractive)
			return renderer.RenderNetworksList(result)
		},
	}

	cmd.Flags().BoolVar(&withAccounts, "accounts", false, "Resolve named accounts and signer keys for each network")

	return cmd
}
