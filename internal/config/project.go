package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
)

// ProjectFileName is the configuration file that marks a project root
const ProjectFileName = "deploy.toml"

// loadEnvFiles loads .env and .env.local from the project root. Variables
// already present in the process environment win.
func loadEnvFiles(projectRoot string) {
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
			}
		}
	}
}

// LoadProjectFile loads .env files and parses deploy.toml, expanding ${VAR}
// references in every string value.
func LoadProjectFile(projectRoot string) (*config.ProjectFile, error) {
	loadEnvFiles(projectRoot)

	path := filepath.Join(projectRoot, ProjectFileName)
	var raw config.ProjectFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ProjectFileName, err)
	}

	return expandProjectFile(&raw), nil
}

// expandProjectFile returns a copy of raw with environment references expanded
func expandProjectFile(raw *config.ProjectFile) *config.ProjectFile {
	pf := &config.ProjectFile{
		Project: config.ProjectSection{
			Artifacts:   os.ExpandEnv(raw.Project.Artifacts),
			Deployments: os.ExpandEnv(raw.Project.Deployments),
			Pipelines:   os.ExpandEnv(raw.Project.Pipelines),
			Accounts:    expandAll(raw.Project.Accounts),
		},
		Networks:      make(map[string]config.NetworkConfig, len(raw.Networks)),
		NamedAccounts: make(map[string]config.NamedAccount, len(raw.NamedAccounts)),
	}

	for name, nc := range raw.Networks {
		nc.RPCURL = os.ExpandEnv(nc.RPCURL)
		nc.GasPrice = os.ExpandEnv(nc.GasPrice)
		nc.ExplorerURL = os.ExpandEnv(nc.ExplorerURL)
		nc.VerifierURL = os.ExpandEnv(nc.VerifierURL)
		nc.APIKey = os.ExpandEnv(nc.APIKey)
		nc.TxTimeout = os.ExpandEnv(nc.TxTimeout)
		nc.Accounts = expandAll(nc.Accounts)
		pf.Networks[name] = nc
	}

	for role, entries := range raw.NamedAccounts {
		expanded := make(config.NamedAccount, len(entries))
		for network, value := range entries {
			if s, ok := value.(string); ok {
				value = os.ExpandEnv(s)
			}
			expanded[network] = value
		}
		pf.NamedAccounts[role] = expanded
	}

	return pf
}

func expandAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = os.ExpandEnv(v)
	}
	return out
}

// resolveDir returns dir relative to root, or fallback when dir is empty
func resolveDir(root, dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
