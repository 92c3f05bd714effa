package simpleblob

import (
	"context"
	"errors"
	"log/slog"
)

// FailureEvent describes one failure the provider handled on behalf of the host
type FailureEvent struct {
	Op       string
	Key      string
	FilePath string
	Err      error
}

// NotFound reports whether the failure was a missing object
func (e FailureEvent) NotFound() bool {
	return errors.Is(e.Err, ErrObjectNotFound)
}

// Message renders the event the way it is written to logs
func (e FailureEvent) Message() string {
	if e.NotFound() {
		return "Object not found: " + e.Op + " failed"
	}
	return e.Op + " failed"
}

// FailureSink receives one event per handled failure
type FailureSink interface {
	ReportFailure(ctx context.Context, event FailureEvent)
}

// SlogFailureSink writes failure events as structured log records
type SlogFailureSink struct {
	logger *slog.Logger
}

// NewSlogFailureSink creates a sink writing to logger, or to slog.Default when nil
func NewSlogFailureSink(logger *slog.Logger) *SlogFailureSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogFailureSink{logger: logger}
}

// ReportFailure logs not-found events at warn level and everything else at error level
func (s *SlogFailureSink) ReportFailure(ctx context.Context, event FailureEvent) {
	level := slog.LevelError
	if event.NotFound() {
		level = slog.LevelWarn
	}

	var msg string
	if event.Err != nil {
		msg = event.Err.Error()
	}

	s.logger.LogAttrs(ctx, level, event.Message(),
		slog.String("op", event.Op),
		slog.String("key", event.Key),
		slog.String("file_path", event.FilePath),
		slog.String("error", msg),
		slog.Bool("not_found", event.NotFound()),
	)
}

// NoopFailureSink discards failure events
type NoopFailureSink struct{}

// NewNoopFailureSink creates a new no-operation failure sink
func NewNoopFailureSink() FailureSink {
	return &NoopFailureSink{}
}

// ReportFailure does nothing
func (n *NoopFailureSink) ReportFailure(ctx context.Context, event FailureEvent) {}
