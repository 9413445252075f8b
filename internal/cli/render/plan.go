package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// PlanRenderer prints plan runs as they progress
type PlanRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlanRenderer creates a new plan renderer
func NewPlanRenderer(out io.Writer) *PlanRenderer {
	return &PlanRenderer{out: out}
}

// GetWriter returns the io.Writer used by this renderer
func (r *PlanRenderer) GetWriter() io.Writer {
	return r.out
}

// RenderExecutionPlan displays the levels of a plan before it runs
func (r *PlanRenderer) RenderExecutionPlan(plan *usecase.ExecutionPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "\n🎯 Running plan %s\n", plan.Name)
	fmt.Fprintf(r.out, "📋 %d steps in %d levels\n\n", len(plan.Steps()), len(plan.Levels))
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("─", 50))

	n := 0
	for i, level := range plan.Levels {
		color.New(color.Faint).Fprintf(r.out, "level %d\n", i)
		for _, step := range level {
			n++
			fmt.Fprintf(r.out, "%d. ", n)
			color.New(color.FgCyan).Fprint(r.out, step.Name)
			fmt.Fprintf(r.out, " → %s", DescribeStep(step.Config))
			if len(step.Dependencies) > 0 {
				color.New(color.FgHiBlack).Fprintf(r.out, " (depends on: %s)", strings.Join(step.Dependencies, ", "))
			}
			fmt.Fprintln(r.out)
		}
	}
	fmt.Fprintln(r.out)
}

// RenderStepStarting prints the header of a step
func (r *PlanRenderer) RenderStepStarting(step *usecase.ExecutionStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "▶ %s\n", color.New(color.Bold).Sprint(step.Name))
}

// RenderStepResult renders a finished step
func (r *PlanRenderer) RenderStepResult(res *usecase.StepResult, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := fmt.Sprintf("[%d/%d] %s", current, total, res.Step.Name)
	if res.Error != nil {
		color.New(color.FgRed).Fprintf(r.out, "❌ %s failed after %s: %v\n", prefix, res.Duration.Round(time.Millisecond), res.Error)
		return
	}
	color.New(color.FgGreen).Fprintf(r.out, "✓ %s", prefix)
	color.New(color.Faint).Fprintf(r.out, " (%s)\n", res.Duration.Round(time.Millisecond))

	switch {
	case res.Deployment != nil:
		fmt.Fprintf(r.out, "    • %s at %s\n", res.Deployment.ContractName, res.Deployment.Address.Hex())
	case res.Invocation != nil && res.Invocation.ReadOnly:
		values := make([]string, len(res.Invocation.Values))
		for i, v := range res.Invocation.Values {
			values[i] = usecase.FormatValue(v)
		}
		fmt.Fprintf(r.out, "    • %s → %s\n", res.Invocation.Method, strings.Join(values, ", "))
	case res.Invocation != nil:
		fmt.Fprintf(r.out, "    • %s mined in %s\n", res.Invocation.Method, res.Invocation.TxHash.Hex())
	}
}

// RenderPlanResult displays the final summary
func (r *PlanRenderer) RenderPlanResult(result *usecase.PlanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := len(result.Plan.Steps())
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("═", 70))
	if result.Success {
		color.New(color.FgGreen, color.Bold).Fprintf(r.out, "🎉 Plan %s completed\n", result.Plan.Name)
		fmt.Fprintf(r.out, "  • Steps executed: %d/%d\n", len(result.Steps), total)
		return nil
	}

	color.New(color.FgRed, color.Bold).Fprintln(r.out, "❌ Plan failed")
	completed := 0
	for _, s := range result.Steps {
		if s.Error == nil {
			completed++
		}
	}
	if result.FailedStep != nil {
		fmt.Fprintf(r.out, "  • Failed at step: %s\n", result.FailedStep.Step.Name)
	}
	fmt.Fprintf(r.out, "  • Steps completed: %d/%d\n", completed, total)
	return nil
}

// DescribeStep summarizes what a step does, e.g. "deploy SimpleStorage"
func DescribeStep(sc *usecase.StepConfig) string {
	switch sc.Action {
	case usecase.ActionDeploy:
		return color.New(color.FgGreen).Sprintf("deploy %s", sc.Contract)
	default:
		return color.New(color.FgGreen).Sprintf("%s %s.%s", sc.Action, sc.Target, sc.Method)
	}
}
