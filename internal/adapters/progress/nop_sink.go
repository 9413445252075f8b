package progress

import (
	"context"
	"log/slog"

	"github.com/trebuchet-org/sling/internal/usecase"
)

// NopSink discards progress. Used for --json output and in tests.
type NopSink struct{}

// NewNopSink creates a new no-op progress sink
func NewNopSink() usecase.ProgressSink {
	return &NopSink{}
}

func (n *NopSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {}
func (n *NopSink) Info(message string)                                          {}
func (n *NopSink) Error(message string)                                         {}

// LogSink forwards progress to the structured log. Non-interactive runs
// use it so that CI output still shows what happened and when.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink writing progress at debug level and messages at
// info and error level
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log.With("component", "progress")}
}

func (s *LogSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	attrs := []any{"stage", event.Stage}
	if event.Total > 0 {
		attrs = append(attrs, "current", event.Current, "total", event.Total)
	}
	s.log.DebugContext(ctx, event.Message, attrs...)
}

func (s *LogSink) Info(message string) {
	s.log.Info(message)
}

func (s *LogSink) Error(message string) {
	s.log.Error(message)
}

var (
	_ usecase.ProgressSink = (*NopSink)(nil)
	_ usecase.ProgressSink = (*LogSink)(nil)
)
