package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records as JSON lines.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{buf: &bytes.Buffer{}, level: slog.LevelDebug}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &testHandler{buf: h.buf, level: h.level, attrs: merged}
}

func (h *testHandler) WithGroup(string) slog.Handler { return h }

func (h *testHandler) records() []map[string]any {
	var out []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (h *testHandler) last() map[string]any {
	recs := h.records()
	if len(recs) == 0 {
		return nil
	}
	return recs[len(recs)-1]
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds run, node and kind", func(t *testing.T) {
		h := newTestHandler()
		EnrichLogger(slog.New(h), "run-1", "llm-1", "llmInvocation").Info("hello")

		rec := h.last()
		require.NotNil(t, rec)
		assert.Equal(t, "run-1", rec["run_id"])
		assert.Equal(t, "llm-1", rec["node_id"])
		assert.Equal(t, "llmInvocation", rec["kind"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "run", "node", "start"))
	})
}

func TestLogRunLifecycle(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogRunStart(logger, "run-1", 4)
	LogRunComplete(logger, "run-1", "completed", 12.5, 4, 0)
	LogRunComplete(logger, "run-1", "completed_with_errors", 3, 2, 1)
	LogRunError(logger, "run-1", errors.New("cycle"), 1)

	recs := h.records()
	require.Len(t, recs, 4)

	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "workflow run starting", recs[0]["msg"])
	assert.Equal(t, float64(4), recs[0]["nodes"])

	assert.Equal(t, "INFO", recs[1]["level"])
	assert.Equal(t, "completed", recs[1]["status"])
	assert.Equal(t, 12.5, recs[1]["duration_ms"])

	assert.Equal(t, "WARN", recs[2]["level"], "errored nodes raise the level")
	assert.Equal(t, float64(1), recs[2]["nodes_errored"])

	assert.Equal(t, "ERROR", recs[3]["level"])
	assert.Equal(t, "cycle", recs[3]["error"])
}

func TestLogNodeAndStream(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogTick(logger, 2, []string{"a", "b"})
	LogNodeStart(logger, "a")
	LogNodeComplete(logger, "a", 5)
	LogNodeError(logger, "b", errors.New("bad"), true)
	LogStreamChunk(logger, "b", 42, 2)

	recs := h.records()
	require.Len(t, recs, 5)
	assert.Equal(t, "tick starting", recs[0]["msg"])
	assert.Equal(t, []any{"a", "b"}, recs[0]["ready"])
	assert.Equal(t, "node starting", recs[1]["msg"])
	assert.Equal(t, "node completed", recs[2]["msg"])
	assert.Equal(t, "ERROR", recs[3]["level"])
	assert.Equal(t, "bad", recs[3]["error"])
	assert.Equal(t, true, recs[3]["retryable"])
	assert.Equal(t, float64(42), recs[4]["content_len"])
	assert.Equal(t, float64(2), recs[4]["sinks"])
}

func TestLogCheckpoint(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogCheckpoint(logger, 3, 1024, 2.5)
	LogCheckpointError(logger, 4, "save", errors.New("disk full"))

	recs := h.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, float64(1024), recs[0]["size_bytes"])
	assert.Equal(t, 2.5, recs[0]["duration_ms"])
	assert.Equal(t, "WARN", recs[1]["level"])
	assert.Equal(t, "save", recs[1]["operation"])
}

func TestNilLoggerHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		LogRunStart(nil, "r", 1)
		LogRunComplete(nil, "r", "completed", 0, 0, 0)
		LogRunError(nil, "r", errors.New("x"), 0)
		LogTick(nil, 1, nil)
		LogNodeStart(nil, "n")
		LogNodeComplete(nil, "n", 0)
		LogNodeError(nil, "n", errors.New("x"), false)
		LogStreamChunk(nil, "n", 0, 0)
		LogCheckpoint(nil, 0, 0, 0)
		LogCheckpointError(nil, 0, "save", errors.New("x"))
	})
}

func TestTimedOperation(t *testing.T) {
	elapsed := TimedOperation()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, elapsed(), float64(10))
}
