package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/progress"
	"github.com/trebuchet-org/lend-deploy/internal/app"
	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/config"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lend-deploy",
		Short: "Deployment pipelines for lending protocol contracts",
		Long: `lend-deploy runs declarative deployment pipelines against EVM networks.

Each pipeline deploys contracts and calls their initializers in order.
Confirmed steps are recorded under deployments/<network>/, so a pipeline
can be run again safely: recorded steps are reused and the run resumes at
the first step that has not been confirmed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for commands that do not need a project
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "init" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				return fmt.Errorf("%w (run 'lend-deploy init' to create one)", err)
			}

			v := config.SetupViper(projectRoot, cmd)
			bindGlobalFlags(v)

			sink := newProgressSink(cmd, v)

			appInstance, err := app.InitApp(v, sink)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)

			if appInstance.Config.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
				cmd.PostRun = func(cmd *cobra.Command, args []string) {
					cancel()
				}
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network to use (e.g., bscmain, bsctest, local)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "Disable interactive prompts")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Skip the broadcast confirmation on networks that require it")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Abort the command after this long (0 means no limit)")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands",
	})

	for _, c := range []*cobra.Command{NewDeployCmd(), NewVerifyCmd(), NewListCmd(), NewShowCmd()} {
		c.GroupID = "main"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{NewNetworksCmd(), NewInitCmd()} {
		c.GroupID = "management"
		rootCmd.AddCommand(c)
	}

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the root command and prints any error
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, render.FormatError(err.Error()))
		return err
	}
	return nil
}

// bindGlobalFlags applies settings that do not come from flags or LEND_* variables
func bindGlobalFlags(v *viper.Viper) {
	if !v.GetBool("non_interactive") && isNonInteractive() {
		v.Set("non_interactive", true)
	}
}

// newProgressSink picks the progress reporter for the command being run
func newProgressSink(cmd *cobra.Command, v *viper.Viper) usecase.ProgressSink {
	if v.GetBool("json") {
		return usecase.NopProgress{}
	}

	interactive := !v.GetBool("non_interactive")
	switch cmd.Name() {
	case "deploy":
		return progress.NewPipelineProgress(render.NewPipelineRenderer(cmd.OutOrStdout()))
	case "verify":
		return progress.NewVerifyProgress(cmd.ErrOrStderr(), interactive)
	default:
		if !interactive {
			return usecase.NopProgress{}
		}
		return progress.NewSpinnerProgressReporter(cmd.ErrOrStderr())
	}
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}

// isNonInteractive checks if the environment is non-interactive
func isNonInteractive() bool {
	return os.Getenv("CI") == "true" ||
		os.Getenv("NO_COLOR") != "" ||
		!isatty.IsTerminal(os.Stdin.Fd())
}
