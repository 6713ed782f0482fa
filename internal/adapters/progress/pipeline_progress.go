package progress

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/lend-deploy/internal/cli/render"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// PipelineProgress renders a pipeline run as it happens: the plan once,
// a spinner per step, and each step's outcome
type PipelineProgress struct {
	renderer *render.PipelineRenderer
	spinner  *SpinnerProgressReporter

	planRendered bool
}

// NewPipelineProgress creates a new pipeline progress reporter
func NewPipelineProgress(renderer *render.PipelineRenderer) *PipelineProgress {
	return &PipelineProgress{
		renderer: renderer,
		spinner:  NewSpinnerProgressReporter(renderer.GetWriter()),
	}
}

// OnProgress handles progress events for pipeline runs
func (p *PipelineProgress) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	switch event.Stage {
	case "pipeline_planned":
		if result, ok := event.Metadata.(*usecase.PipelineResult); ok && !p.planRendered {
			p.renderer.RenderPlan(result)
			p.planRendered = true
		}

	case "step_starting":
		label := event.Message
		if step, ok := event.Metadata.(*models.Step); ok {
			label = describeStep(step)
		}
		p.spinner.OnProgress(ctx, usecase.ProgressEvent{
			Spinner: true,
			Message: fmt.Sprintf("[%d/%d] %s", event.Current, event.Total, label),
		})

	case "step_completed":
		p.spinner.Stop()
		if result, ok := event.Metadata.(*usecase.StepResult); ok {
			p.renderer.RenderStepResult(event.Current, event.Total, result)
		}

	case "awaiting_confirmation":
		// the prompt needs the terminal
		p.spinner.Stop()

	default:
		p.spinner.OnProgress(ctx, event)
	}
}

// Info forwards info messages to the spinner
func (p *PipelineProgress) Info(message string) {
	p.spinner.Info(message)
}

// Error forwards error messages to the spinner
func (p *PipelineProgress) Error(message string) {
	p.spinner.Error(message)
}

func describeStep(step *models.Step) string {
	if step.Kind == models.StepCall {
		return fmt.Sprintf("%s: calling %s", step.Name, step.Method)
	}
	return fmt.Sprintf("%s: deploying %s", step.Name, step.Contract)
}

// Ensure PipelineProgress implements ProgressSink
var _ usecase.ProgressSink = (*PipelineProgress)(nil)
