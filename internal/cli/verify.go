package cli

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var (
		allFlag      bool
		forceFlag    bool
		contractPath string
		dumpFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "verify [deployment]",
		Short: "Verify contracts on block explorers",
		Long: `Verify recorded deployments on the network's block explorer with
forge verify-contract, and record the outcome.

Constructor arguments, linked libraries and the compiler version are taken
from the deployment record. Local networks are skipped.`,
		Example: `  lend-deploy verify LendingPool --network bsctest   # Verify one contract
  lend-deploy verify --all --network bsctest          # Verify every unverified contract
  lend-deploy verify --all --force --network bscmain  # Re-verify everything
  lend-deploy verify AToken --contract-path src/tokens/AToken.sol --network bsctest
  lend-deploy verify --all --dump --network bsctest   # Print the forge commands only`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			options := usecase.VerifyOptions{
				Force:        forceFlag,
				ContractPath: contractPath,
				DryRun:       dumpFlag,
			}

			ctx := cmd.Context()
			renderer := render.NewVerifyRenderer(cmd.OutOrStdout())

			if allFlag {
				if len(args) > 0 {
					return fmt.Errorf("--all cannot be combined with a deployment name")
				}
				result, err := app.VerifyDeployment.VerifyAll(ctx, options)
				if err != nil {
					return fmt.Errorf("failed to verify contracts: %w", err)
				}

				if app.Config.JSON {
					return writeJSON(cmd, lo.Map(result.Results, func(r *usecase.VerifyResult, _ int) verifyOutput {
						return newVerifyOutput(r)
					}))
				}
				if err := renderer.RenderVerifyAllResult(result, options); err != nil {
					return err
				}
				if result.FailureCount > 0 {
					return fmt.Errorf("%d of %d verifications failed", result.FailureCount, len(result.Results))
				}
				return nil
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			} else {
				name, err = pickDeployment(cmd, app, "Select a deployment to verify")
				if err != nil {
					return fmt.Errorf("please provide a deployment name or use --all: %w", err)
				}
			}

			result, err := app.VerifyDeployment.VerifySpecific(ctx, name, options)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return writeJSON(cmd, newVerifyOutput(result))
			}
			if err := renderer.RenderVerifyResult(result, options); err != nil {
				return err
			}
			if !result.Success && !result.Skipped {
				return fmt.Errorf("verification of %s failed", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Verify every deployment recorded on the network")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Re-verify even if already verified")
	cmd.Flags().StringVar(&contractPath, "contract-path", "", "Source path to use instead of the recorded one (e.g., src/LendingPool.sol)")
	cmd.Flags().BoolVar(&dumpFlag, "dump", false, "Print the forge commands without running them")

	return cmd
}
