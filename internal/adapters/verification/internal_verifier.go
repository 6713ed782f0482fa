package verification

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
)

// Runner executes forge with args in dir and returns its combined output
type Runner func(ctx context.Context, dir string, args []string) ([]byte, error)

// ExecRunner runs the forge binary found on PATH
func ExecRunner(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "forge", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// ForgeVerifier submits source verification through forge verify-contract
type ForgeVerifier struct {
	projectRoot string
	run         Runner
}

// NewForgeVerifier creates a verifier that runs forge in projectRoot
func NewForgeVerifier(projectRoot string, run Runner) *ForgeVerifier {
	return &ForgeVerifier{projectRoot: projectRoot, run: run}
}

// buildVerifyArgs builds the forge verify-contract arguments for a deployment
func (v *ForgeVerifier) buildVerifyArgs(deployment *models.Deployment, network *config.Network) []string {
	args := []string{
		"verify-contract",
		deployment.Address,
		deployment.FullyQualifiedName(),
		"--chain-id", fmt.Sprintf("%d", network.ChainID),
		"--watch",
	}

	if network.Verifier != "" {
		args = append(args, "--verifier", network.Verifier)
	}
	if network.VerifierURL != "" {
		args = append(args, "--verifier-url", network.VerifierURL)
	}
	if network.APIKey != "" {
		args = append(args, "--etherscan-api-key", network.APIKey)
	}
	if deployment.Artifact.CompilerVersion != "" {
		args = append(args, "--compiler-version", deployment.Artifact.CompilerVersion)
	}
	if constructorArgs := strings.TrimPrefix(deployment.ConstructorArgs, "0x"); constructorArgs != "" {
		args = append(args, "--constructor-args", constructorArgs)
	}

	libs := make([]string, 0, len(deployment.Libraries))
	for name, addr := range deployment.Libraries {
		libs = append(libs, name+":"+addr)
	}
	sort.Strings(libs)
	for _, lib := range libs {
		args = append(args, "--libraries", lib)
	}

	return args
}

// Verify runs forge verify-contract. A contract the explorer already knows
// counts as verified.
func (v *ForgeVerifier) Verify(ctx context.Context, deployment *models.Deployment, network *config.Network) error {
	output, err := v.run(ctx, v.projectRoot, v.buildVerifyArgs(deployment, network))
	outputStr := strings.TrimSpace(string(output))

	if alreadyVerified(outputStr) {
		return nil
	}
	if err != nil {
		if outputStr == "" {
			outputStr = err.Error()
		}
		return fmt.Errorf("%w: %s", domain.ErrVerificationFailed, outputStr)
	}
	if strings.Contains(outputStr, "Contract successfully verified") || strings.Contains(outputStr, "Pass - Verified") {
		return nil
	}
	return fmt.Errorf("%w: status unclear: %s", domain.ErrVerificationFailed, outputStr)
}

// Command returns the forge invocation for a deployment with the API key masked
func (v *ForgeVerifier) Command(deployment *models.Deployment, network *config.Network) []string {
	args := v.buildVerifyArgs(deployment, network)
	for i := range args {
		if i > 0 && args[i-1] == "--etherscan-api-key" {
			args[i] = "***"
		}
	}
	return append([]string{"forge"}, args...)
}

func alreadyVerified(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "already verified")
}
