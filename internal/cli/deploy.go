package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var (
		dryRun bool
		force  []string
		reset  bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <pipeline>",
		Short: "Run a deployment pipeline",
		Long: `Run a deployment pipeline on a network.

Steps run in the order they are written. Each deploy step creates a contract
and records it; each call step sends a transaction to a deployed contract
(usually its initializer) and records it. Recorded steps are skipped on the
next run, so a failed run resumes where it stopped.

The pipeline argument is a file path, or a name looked up in the pipelines
directory (pipelines/<name>.yaml).

Argument values may reference earlier steps and configured accounts:
  ${LendingPool}                   address deployed by step LendingPool
  ${accounts.treasuryAddress}      named account for the active network
  ${env.POOL_FEE}                  environment variable`,
		Example: `  # Preview the transactions and predicted addresses
  lend-deploy deploy lending-pool --network bsctest --dry-run

  # Deploy
  lend-deploy deploy pipelines/lending-pool.yaml --network bsctest

  # Redeploy one step even though it is recorded
  lend-deploy deploy lending-pool --network bsctest --force AToken`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.RunPipelineParams{
				PipelinePath: args[0],
				DryRun:       dryRun,
				Force:        force,
				Reset:        reset,
			}

			result, runErr := app.RunPipeline.Run(cmd.Context(), params)
			if result == nil {
				return runErr
			}

			if app.Config.JSON {
				if err := writeJSON(cmd, newPipelineOutput(result)); err != nil {
					return err
				}
				return runErr
			}

			renderer := render.NewPipelineRenderer(cmd.OutOrStdout())
			if err := renderer.RenderPipelineResult(result, runErr); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be sent and the predicted addresses without broadcasting")
	cmd.Flags().StringSliceVar(&force, "force", nil, "Execute these steps again even if they are recorded (comma separated)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Execute every step again, ignoring recorded deployments")
	cmd.MarkFlagsMutuallyExclusive("force", "reset")

	return cmd
}
