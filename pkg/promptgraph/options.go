package promptgraph

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/checkpoint"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/event"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/observability"
)

// DefaultSettleDelay is the pause a start node takes before succeeding.
const DefaultSettleDelay = 300 * time.Millisecond

// LLMDefaults fill in LLM node parameters left unset.
type LLMDefaults struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultLLMDefaults returns temperature 0.7 and 150 max tokens with no
// model, leaving the choice to the client.
func DefaultLLMDefaults() LLMDefaults {
	return LLMDefaults{Temperature: 0.7, MaxTokens: 150}
}

// runConfig holds engine configuration.
type runConfig struct {
	logger         *slog.Logger
	settleDelay    time.Duration
	maxConcurrency int
	llmDefaults    LLMDefaults
	runID          string

	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool

	checkpointStore   checkpoint.Store
	checkpointFatal   bool
	bus               event.Bus
	executorOverrides map[Kind]Executor
}

func defaultRunConfig() runConfig {
	return runConfig{
		logger:      slog.Default(),
		settleDelay: DefaultSettleDelay,
		llmDefaults: DefaultLLMDefaults(),
		metrics:     observability.NoopMetrics{},
		spans:       observability.NoopSpanManager{},
	}
}

// Option configures an Engine.
type Option func(*runConfig)

// WithLogger sets the base logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSettleDelay sets the start node's settle delay. Default: 300ms.
func WithSettleDelay(d time.Duration) Option {
	return func(c *runConfig) {
		if d >= 0 {
			c.settleDelay = d
		}
	}
}

// WithMaxConcurrency caps how many ready nodes of one tick execute at once.
// Zero (the default) runs the whole ready set in parallel.
func WithMaxConcurrency(n int) Option {
	return func(c *runConfig) {
		if n >= 0 {
			c.maxConcurrency = n
		}
	}
}

// WithLLMDefaults sets the model used by LLM nodes that name none.
func WithLLMDefaults(d LLMDefaults) Option {
	return func(c *runConfig) {
		c.llmDefaults = d
	}
}

// WithRunID fixes the run ID instead of generating one per run.
func WithRunID(id string) Option {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) Option {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
func WithTracing(enabled bool) Option {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithCheckpointStore saves a snapshot of the graph after every tick.
func WithCheckpointStore(store checkpoint.Store) Option {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithCheckpointFailureFatal makes a failed checkpoint save fail the run.
// By default failures are logged and the run continues.
func WithCheckpointFailureFatal(fatal bool) Option {
	return func(c *runConfig) {
		c.checkpointFatal = fatal
	}
}

// WithEventBus publishes run and node events to bus.
func WithEventBus(bus event.Bus) Option {
	return func(c *runConfig) {
		c.bus = bus
	}
}

// WithExecutor replaces the executor for one node kind.
func WithExecutor(kind Kind, ex Executor) Option {
	return func(c *runConfig) {
		if c.executorOverrides == nil {
			c.executorOverrides = make(map[Kind]Executor)
		}
		c.executorOverrides[kind] = ex
	}
}
