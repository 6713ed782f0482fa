package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/lend-deploy/internal/adapters/fs"
	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create deploy.toml and a sample pipeline",
		Long: `Initialize a deployment project in the current directory.

Creates deploy.toml with network and named-account sections, an .env.example
listing the variables it references, a sample pipeline under pipelines/ and
the deployments/ directory records are written to. Existing files are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd)
		},
	}

	return cmd
}

// runInit executes the init command. It runs before a project exists, so it
// does not go through the app container.
func runInit(cmd *cobra.Command) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	uc := usecase.NewInitProject(fs.NewFileWriterAdapter(), usecase.NopProgress{})
	result, err := uc.Execute(cmd.Context(), root)

	var renderer render.Renderer[*usecase.InitProjectResult] = render.NewInitRenderer(cmd.OutOrStdout())
	if result != nil {
		if renderErr := renderer.Render(result); renderErr != nil && err == nil {
			err = renderErr
		}
	}
	return err
}
