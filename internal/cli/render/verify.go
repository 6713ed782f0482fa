package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// VerifyRenderer handles rendering of verification results
type VerifyRenderer struct {
	out io.Writer
}

// NewVerifyRenderer creates a new verify renderer
func NewVerifyRenderer(out io.Writer) *VerifyRenderer {
	return &VerifyRenderer{out: out}
}

// RenderVerifyAllResult renders the result of verifying all deployments
func (r *VerifyRenderer) RenderVerifyAllResult(result *usecase.VerifyAllResult, options usecase.VerifyOptions) error {
	if len(result.Results) == 0 {
		color.New(color.FgYellow).Fprintf(r.out, "No deployments recorded on %s.\n", result.Network)
		return nil
	}

	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Verifying %d deployments on %s:\n", len(result.Results), result.Network)

	for i, verifyResult := range result.Results {
		r.renderItem(verifyResult, options)
		if i < len(result.Results)-1 {
			fmt.Fprintln(r.out)
		}
	}

	fmt.Fprintf(r.out, "\nVerification complete: %d verified, %d failed, %d skipped\n",
		result.SuccessCount, result.FailureCount, result.SkippedCount)
	if result.SkippedCount > 0 && !options.Force && !options.DryRun {
		faintStyle.Fprintln(r.out, "Use --force to re-verify contracts that are already verified.")
	}
	return nil
}

// RenderVerifyResult renders the result of verifying a specific deployment
func (r *VerifyRenderer) RenderVerifyResult(result *usecase.VerifyResult, options usecase.VerifyOptions) error {
	deployment := result.Deployment

	if options.ContractPath != "" {
		color.New(color.FgYellow).Fprintf(r.out, "Using manual contract path: %s\n", options.ContractPath)
	}

	switch {
	case result.Skipped && options.DryRun:
		fmt.Fprintf(r.out, "Would run: %s\n", strings.Join(result.Command, " "))
	case result.Skipped && result.Success:
		color.New(color.FgYellow).Fprintf(r.out, "Contract %s is already verified. Use --force to re-verify.\n", deployment.DisplayName())
	case result.Skipped:
		color.New(color.FgYellow).Fprintf(r.out, "Skipped %s: %s\n", deployment.DisplayName(), result.Reason)
	case result.Success:
		color.New(color.FgGreen).Fprintln(r.out, "✓ Verification completed successfully!")
		r.showVerificationStatus(deployment)
	default:
		color.New(color.FgRed).Fprintf(r.out, "✗ Verification failed: %s\n", result.Reason)
	}

	return nil
}

func (r *VerifyRenderer) renderItem(result *usecase.VerifyResult, options usecase.VerifyOptions) {
	deployment := result.Deployment
	fmt.Fprintf(r.out, "  %s %s %s\n", r.getStatusIcon(result), deployment.DisplayName(), faintStyle.Sprint(deployment.Address))

	switch {
	case result.Skipped && options.DryRun:
		faintStyle.Fprintf(r.out, "    %s\n", strings.Join(result.Command, " "))
	case result.Skipped:
		faintStyle.Fprintf(r.out, "    skipped: %s\n", result.Reason)
	case result.Success:
		color.New(color.FgGreen).Fprintln(r.out, "    ✓ Verification completed")
		if deployment.Verification.URL != "" {
			faintStyle.Fprintf(r.out, "    %s\n", deployment.Verification.URL)
		}
	default:
		color.New(color.FgRed).Fprintf(r.out, "    ✗ %s\n", result.Reason)
	}
}

// getStatusIcon returns the icon for a verification outcome
func (r *VerifyRenderer) getStatusIcon(result *usecase.VerifyResult) string {
	switch {
	case result.Skipped:
		return "⏭️ "
	case result.Success:
		return "✅"
	default:
		return "⚠️ "
	}
}

// showVerificationStatus displays the verification status details
func (r *VerifyRenderer) showVerificationStatus(deployment *models.Deployment) {
	v := deployment.Verification
	fmt.Fprintln(r.out, "\nVerification Status:")
	fmt.Fprintf(r.out, "  Status: %s\n", titleCase(string(v.Status)))
	if v.URL != "" {
		fmt.Fprintf(r.out, "  URL: %s\n", v.URL)
	}
}
