package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

var (
	stepNameStyle = color.New(color.FgCyan)
	contractStyle = color.New(color.FgGreen)
	faintStyle    = color.New(color.FgHiBlack)
)

// PipelineRenderer renders pipeline plans, step outcomes and run summaries
type PipelineRenderer struct {
	out io.Writer
}

// NewPipelineRenderer creates a new pipeline renderer
func NewPipelineRenderer(out io.Writer) *PipelineRenderer {
	return &PipelineRenderer{out: out}
}

// GetWriter returns the io.Writer used by this renderer
func (r *PipelineRenderer) GetWriter() io.Writer {
	return r.out
}

// RenderPlan displays the pipeline header and its steps
func (r *PipelineRenderer) RenderPlan(result *usecase.PipelineResult) {
	network := result.Network
	fmt.Fprintf(r.out, "\n🎯 Running %s on %s (chain %d)\n", result.Pipeline.Name, network.Name, network.ChainID)
	fmt.Fprintf(r.out, "👤 Deployer: %s\n", result.Deployer.Hex())
	if result.DryRun {
		color.New(color.FgYellow).Fprintln(r.out, "🔍 Dry run: nothing will be broadcast or recorded")
	}
	fmt.Fprintln(r.out)

	color.New(color.Bold).Fprintf(r.out, "📋 Pipeline:\n")
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("─", 50))

	for i, step := range result.Pipeline.Steps {
		fmt.Fprintf(r.out, "%d. ", i+1)
		stepNameStyle.Fprintf(r.out, "%s", step.Name)
		fmt.Fprintf(r.out, " → ")
		switch step.Kind {
		case models.StepDeploy:
			contractStyle.Fprintf(r.out, "deploy %s", step.Contract)
			if len(step.Libraries) > 0 {
				faintStyle.Fprintf(r.out, " (links %s)", strings.Join(sortedKeys(step.Libraries), ", "))
			}
		case models.StepCall:
			contractStyle.Fprintf(r.out, "call %s.%s", step.Target, step.Method)
		}
		fmt.Fprintln(r.out)
	}

	fmt.Fprintln(r.out)
}

// RenderStepResult renders a single step outcome
func (r *PipelineRenderer) RenderStepResult(current, total int, result *usecase.StepResult) {
	prefix := fmt.Sprintf("[%d/%d] %s", current, total, result.Step.Name)

	switch result.Status {
	case usecase.StepStatusDeployed:
		color.New(color.FgGreen).Fprintf(r.out, "✓ %s deployed at %s\n", prefix, result.Address.Hex())
		if result.Deployment != nil {
			faintStyle.Fprintf(r.out, "    tx %s (block %d, gas %d)\n",
				result.Deployment.TransactionHash, result.Deployment.BlockNumber, result.Deployment.GasUsed)
		}
	case usecase.StepStatusReused:
		faintStyle.Fprintf(r.out, "↺ %s reusing %s\n", prefix, result.Address.Hex())
		if result.Warning != "" {
			fmt.Fprintf(r.out, "    %s\n", FormatWarning(result.Warning))
		}
	case usecase.StepStatusCalled:
		color.New(color.FgGreen).Fprintf(r.out, "✓ %s %s called on %s\n", prefix, result.Step.Method, result.Address.Hex())
		if result.Initialization != nil {
			faintStyle.Fprintf(r.out, "    tx %s (block %d)\n",
				result.Initialization.TransactionHash, result.Initialization.BlockNumber)
		}
	case usecase.StepStatusSkipped:
		faintStyle.Fprintf(r.out, "⊘ %s already called on %s\n", prefix, result.Address.Hex())
	case usecase.StepStatusPlanned:
		if result.Step.Kind == models.StepDeploy {
			color.New(color.FgYellow).Fprintf(r.out, "○ %s would deploy at %s\n", prefix, result.Address.Hex())
		} else {
			color.New(color.FgYellow).Fprintf(r.out, "○ %s would call %s on %s\n", prefix, result.Step.Method, result.Address.Hex())
		}
	case usecase.StepStatusFailed:
		color.New(color.FgRed).Fprintf(r.out, "❌ %s failed: %v\n", prefix, result.Error)
	}
}

// RenderPipelineResult renders the final summary of a run. runErr is the
// error Run returned, if any.
func (r *PipelineRenderer) RenderPipelineResult(result *usecase.PipelineResult, runErr error) error {
	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("═", 70))

	total := len(result.Pipeline.Steps)
	switch {
	case result.Success && result.DryRun:
		color.New(color.FgYellow, color.Bold).Fprintf(r.out, "🔍 Dry run of %s completed\n", result.Pipeline.Name)
	case result.Success:
		color.New(color.FgGreen, color.Bold).Fprintf(r.out, "🎉 %s is deployed on %s\n", result.Pipeline.Name, result.Network.Name)
	default:
		color.New(color.FgRed, color.Bold).Fprintf(r.out, "❌ %s failed on %s\n", result.Pipeline.Name, result.Network.Name)
	}

	fmt.Fprintf(r.out, "\n📊 Summary:\n")
	fmt.Fprintf(r.out, "  • Steps run: %d/%d\n", len(result.Steps), total)
	for _, line := range []struct {
		label  string
		status usecase.StepStatus
	}{
		{"Deployed", usecase.StepStatusDeployed},
		{"Reused", usecase.StepStatusReused},
		{"Called", usecase.StepStatusCalled},
		{"Already called", usecase.StepStatusSkipped},
		{"Planned", usecase.StepStatusPlanned},
	} {
		if n := result.Count(line.status); n > 0 {
			fmt.Fprintf(r.out, "  • %s: %d\n", line.label, n)
		}
	}

	if failed := result.FailedStep(); failed != nil {
		fmt.Fprintf(r.out, "  • Failed at step: %s\n", failed.Step.Name)
		fmt.Fprintf(r.out, "  • Error: %v\n", failed.Error)

		var revert *domain.RevertError
		if errors.As(runErr, &revert) && revert.Reason != "" {
			fmt.Fprintf(r.out, "  • Revert reason: %s\n", revert.Reason)
		}
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, FormatWarning("Confirmed steps are recorded. Run the same command again to resume from the failed step."))
	}

	return nil
}
