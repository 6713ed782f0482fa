package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// DeploymentRenderer renders detailed information about a single deployment
type DeploymentRenderer struct {
	out   io.Writer
	color bool
}

// NewDeploymentRenderer creates a new deployment renderer
func NewDeploymentRenderer(out io.Writer, color bool) *DeploymentRenderer {
	return &DeploymentRenderer{
		out:   out,
		color: color,
	}
}

// RenderDeployment renders a deployment record and the calls made on it
func (r *DeploymentRenderer) RenderDeployment(result *usecase.ShowDeploymentResult) error {
	deployment := result.Deployment

	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Deployment: %s/%s\n", deployment.Network, deployment.Name)
	fmt.Fprintln(r.out, strings.Repeat("=", 80))

	fmt.Fprintln(r.out, "\nBasic Information:")
	fmt.Fprintf(r.out, "  Contract: %s\n", color.New(color.FgYellow).Sprint(deployment.ContractName))
	fmt.Fprintf(r.out, "  Address: %s\n", deployment.Address)
	fmt.Fprintf(r.out, "  Network: %s (chain %d)\n", deployment.Network, deployment.ChainID)
	if deployment.Pipeline != "" {
		fmt.Fprintf(r.out, "  Pipeline: %s\n", deployment.Pipeline)
	}

	if len(deployment.Args) > 0 {
		fmt.Fprintln(r.out, "\nConstructor Arguments:")
		for i, arg := range deployment.Args {
			fmt.Fprintf(r.out, "  [%d] %v\n", i, arg)
		}
		if deployment.ConstructorArgs != "" {
			fmt.Fprintf(r.out, "  Encoded: %s\n", truncateHex(deployment.ConstructorArgs, 66))
		}
	}

	if len(deployment.Libraries) > 0 {
		fmt.Fprintln(r.out, "\nLinked Libraries:")
		for _, name := range sortedKeys(deployment.Libraries) {
			fmt.Fprintf(r.out, "  %s: %s\n", name, deployment.Libraries[name])
		}
	}

	fmt.Fprintln(r.out, "\nTransaction:")
	fmt.Fprintf(r.out, "  Hash: %s\n", deployment.TransactionHash)
	fmt.Fprintf(r.out, "  Block: %d\n", deployment.BlockNumber)
	if deployment.GasUsed > 0 {
		fmt.Fprintf(r.out, "  Gas Used: %d\n", deployment.GasUsed)
	}
	fmt.Fprintf(r.out, "  Deployer: %s\n", deployment.Deployer)

	fmt.Fprintln(r.out, "\nArtifact:")
	fmt.Fprintf(r.out, "  Source: %s\n", deployment.FullyQualifiedName())
	if deployment.Artifact.CompilerVersion != "" {
		fmt.Fprintf(r.out, "  Compiler: %s\n", deployment.Artifact.CompilerVersion)
	}
	if deployment.Artifact.BytecodeHash != "" {
		fmt.Fprintf(r.out, "  Bytecode Hash: %s\n", deployment.Artifact.BytecodeHash)
	}

	r.renderVerification(deployment)

	if len(result.Initializations) > 0 {
		fmt.Fprintln(r.out, "\nInitializer Calls:")
		for _, call := range result.Initializations {
			fmt.Fprintf(r.out, "  %s: %s(%s)\n", color.New(color.FgCyan).Sprint(call.Step), call.Method, formatArgs(call.Args))
			fmt.Fprintf(r.out, "    tx %s (block %d)\n", call.TransactionHash, call.BlockNumber)
		}
	}

	fmt.Fprintln(r.out, "\nTimestamps:")
	fmt.Fprintf(r.out, "  Created: %s\n", deployment.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if !deployment.UpdatedAt.Equal(deployment.CreatedAt) {
		fmt.Fprintf(r.out, "  Updated: %s\n", deployment.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}

	return nil
}

func (r *DeploymentRenderer) renderVerification(deployment *models.Deployment) {
	v := deployment.Verification
	fmt.Fprintln(r.out, "\nVerification:")

	status := titleCase(string(v.Status))
	if status == "" {
		status = "Unverified"
	}
	switch v.Status {
	case models.VerificationStatusVerified:
		fmt.Fprintf(r.out, "  Status: %s\n", verifiedStyle.Sprint(status))
	case models.VerificationStatusFailed:
		fmt.Fprintf(r.out, "  Status: %s\n", notVerifiedStyle.Sprint(status))
	default:
		fmt.Fprintf(r.out, "  Status: %s\n", pendingStyle.Sprint(status))
	}
	if v.URL != "" {
		fmt.Fprintf(r.out, "  URL: %s\n", v.URL)
	}
	if v.VerifiedAt != nil {
		fmt.Fprintf(r.out, "  Verified: %s\n", v.VerifiedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if v.Reason != "" {
		fmt.Fprintf(r.out, "  Reason: %s\n", v.Reason)
	}
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			parts[i] = s
			continue
		}
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, ", ")
}

func truncateHex(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
