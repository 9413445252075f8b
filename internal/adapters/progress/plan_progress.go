package progress

import (
	"context"

	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// PlanProgress renders plan events as they happen. Steps of one level run
// concurrently, so everything goes through the renderer's lock.
type PlanProgress struct {
	renderer *render.PlanRenderer
	spinner  *SpinnerProgressReporter
}

// NewPlanProgress creates a new plan progress reporter
func NewPlanProgress(renderer *render.PlanRenderer) *PlanProgress {
	return &PlanProgress{
		renderer: renderer,
		spinner:  NewSpinnerProgressReporter(),
	}
}

// OnProgress handles progress events for plan runs
func (p *PlanProgress) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	switch event.Stage {
	case "plan_created":
		if plan, ok := event.Metadata.(*usecase.ExecutionPlan); ok {
			p.renderer.RenderExecutionPlan(plan)
		}

	case "step_starting":
		if step, ok := event.Metadata.(*usecase.ExecutionStep); ok {
			p.spinner.Stop()
			p.renderer.RenderStepStarting(step)
		}

	case "step_completed":
		if res, ok := event.Metadata.(*usecase.StepResult); ok {
			p.spinner.Stop()
			p.renderer.RenderStepResult(res, event.Current, event.Total)
		}

	case "plan_completed":
		p.spinner.Stop()

	default:
		p.spinner.OnProgress(ctx, event)
	}
}

// Stop halts the spinner
func (p *PlanProgress) Stop() {
	p.spinner.Stop()
}

// Info forwards info messages to the spinner
func (p *PlanProgress) Info(message string) {
	p.spinner.Info(message)
}

// Error forwards error messages to the spinner
func (p *PlanProgress) Error(message string) {
	p.spinner.Error(message)
}

var _ usecase.ProgressSink = (*PlanProgress)(nil)
