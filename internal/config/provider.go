package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
)

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	// Get project root from viper
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		// Try to find project root
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	project, err := LoadProjectFile(projectRoot)
	if err != nil {
		return nil, err
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		ArtifactsDir:   resolveDir(projectRoot, project.Project.Artifacts, "out"),
		DeploymentsDir: resolveDir(projectRoot, project.Project.Deployments, "deployments"),
		PipelinesDir:   resolveDir(projectRoot, project.Project.Pipelines, "pipelines"),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		Yes:            v.GetBool("yes"),
		Timeout:        v.GetDuration("timeout"),
		Project:        project,
	}

	// Resolve network if specified
	if networkName := v.GetString("network"); networkName != "" {
		network, err := NewNetworkResolver(project).Resolve(networkName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve network %s: %w", networkName, err)
		}
		cfg.Network = network
	}

	return cfg, nil
}

// FindProjectRoot walks up from current directory to find deploy.toml
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ProjectFileName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a deployment project (%s not found)", ProjectFileName)
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance. Flags are bound under
// their name with dashes replaced by underscores, so --non-interactive and
// LEND_NON_INTERACTIVE both set "non_interactive".
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	// Set up environment variables
	v.SetEnvPrefix("LEND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Set defaults
	v.SetDefault("timeout", "0s")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("project_root", projectRoot)

	if cmd != nil {
		bind := func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil {
				panic(err)
			}
		}
		cmd.Flags().VisitAll(bind)
		cmd.InheritedFlags().VisitAll(bind)
	}

	return v
}

// ProvideNetworkResolver creates a NetworkResolver for Wire dependency injection
func ProvideNetworkResolver(cfg *config.RuntimeConfig) *NetworkResolver {
	return NewNetworkResolver(cfg.Project)
}
