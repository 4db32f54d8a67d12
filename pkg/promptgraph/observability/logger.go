// Package observability provides structured logging, metrics and tracing
// helpers for workflow runs.
//
// Logging uses slog; metrics and tracing use OpenTelemetry. Metrics and
// tracing are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds run and node context to a logger.
func EnrichLogger(logger *slog.Logger, runID, nodeID, kind string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.String("kind", kind),
	)
}

// LogRunStart logs the start of a workflow run.
func LogRunStart(logger *slog.Logger, runID string, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("workflow run starting",
		slog.String("run_id", runID),
		slog.Int("nodes", nodeCount),
	)
}

// LogRunComplete logs a run that reached a terminal status other than failed.
func LogRunComplete(logger *slog.Logger, runID, status string, durationMs float64, executed, errored int) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if errored > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "workflow run finished",
		slog.String("run_id", runID),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", executed),
		slog.Int("nodes_errored", errored),
	)
}

// LogRunError logs a run that failed structurally.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("workflow run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTick logs the ready set of one scheduler tick.
func LogTick(logger *slog.Logger, tick int, ready []string) {
	if logger == nil {
		return
	}
	logger.Debug("tick starting",
		slog.Int("tick", tick),
		slog.Any("ready", ready),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error. retryable marks failures the
// model service reported as transient.
func LogNodeError(logger *slog.Logger, nodeID string, err error, retryable bool) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
		slog.Bool("retryable", retryable),
	)
}

// LogStreamChunk logs one streamed delta fanned out to sinks.
func LogStreamChunk(logger *slog.Logger, nodeID string, cumulativeLen, sinks int) {
	if logger == nil {
		return
	}
	logger.Debug("stream chunk",
		slog.String("node_id", nodeID),
		slog.Int("content_len", cumulativeLen),
		slog.Int("sinks", sinks),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, tick int, sizeBytes int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.Int("tick", tick),
		slog.Int("size_bytes", sizeBytes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, tick int, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.Int("tick", tick),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
