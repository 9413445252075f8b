package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// pipelineStages are the stages shown in the spinner trail, in order
var pipelineStages = []domain.Stage{
	domain.StageCompile,
	domain.StagePreflight,
	domain.StageSubmit,
	domain.StageConfirm,
	domain.StageVerify,
	domain.StageInvoke,
}

type stageInfo struct {
	Stage     domain.Stage
	StartTime time.Time
	EndTime   time.Time
}

// SpinnerProgressReporter shows the pipeline stages of a single operation
// as a spinner trail, e.g. "✓ preflight → ● submit (3s)"
type SpinnerProgressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *spinner.Spinner
	stages  []stageInfo
}

// NewSpinnerProgressReporter creates a new spinner-based progress reporter
func NewSpinnerProgressReporter() *SpinnerProgressReporter {
	return newSpinnerProgressReporter(os.Stderr)
}

func newSpinnerProgressReporter(out io.Writer) *SpinnerProgressReporter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false
	return &SpinnerProgressReporter{out: out, spinner: s}
}

// OnProgress handles progress events
func (r *SpinnerProgressReporter) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if isPipelineStage(event.Stage) {
		r.enterStage(domain.Stage(event.Stage))
	}

	if event.Spinner {
		r.spinner.Suffix = " " + r.trail() + "  " + event.Message
		if !r.spinner.Active() {
			r.spinner.Start()
		}
		return
	}
	if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// Info prints an info message
func (r *SpinnerProgressReporter) Info(message string) {
	r.println(color.New(color.FgCyan), message)
}

// Error prints an error message
func (r *SpinnerProgressReporter) Error(message string) {
	r.println(color.New(color.FgRed), message)
}

// Stop halts the spinner and marks the running stage done
func (r *SpinnerProgressReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeCurrentStage()
	r.spinner.Stop()
}

func (r *SpinnerProgressReporter) println(c *color.Color, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasActive := r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	c.Fprintln(r.out, message)
	if wasActive {
		r.spinner.Start()
	}
}

func (r *SpinnerProgressReporter) enterStage(stage domain.Stage) {
	if n := len(r.stages); n > 0 && r.stages[n-1].Stage == stage {
		return
	}
	r.completeCurrentStage()
	r.stages = append(r.stages, stageInfo{Stage: stage, StartTime: time.Now()})
}

func (r *SpinnerProgressReporter) completeCurrentStage() {
	if n := len(r.stages); n > 0 && r.stages[n-1].EndTime.IsZero() {
		r.stages[n-1].EndTime = time.Now()
	}
}

// trail renders the visited stages with their durations
func (r *SpinnerProgressReporter) trail() string {
	parts := make([]string, 0, len(r.stages))
	for _, stage := range r.stages {
		var icon string
		var stageColor *color.Color
		var duration time.Duration
		if stage.EndTime.IsZero() {
			icon = "●"
			stageColor = color.New(color.FgYellow)
			duration = time.Since(stage.StartTime).Round(time.Second)
		} else {
			icon = "✓"
			stageColor = color.New(color.FgGreen)
			duration = stage.EndTime.Sub(stage.StartTime).Round(time.Millisecond)
		}
		parts = append(parts, fmt.Sprintf("%s %s (%s)", icon, stageColor.Sprint(stage.Stage), duration))
	}
	return strings.Join(parts, " → ")
}

func isPipelineStage(stage string) bool {
	for _, s := range pipelineStages {
		if string(s) == stage {
			return true
		}
	}
	return false
}

var _ usecase.ProgressSink = (*SpinnerProgressReporter)(nil)
