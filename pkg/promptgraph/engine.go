package promptgraph

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/llm"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/registry"
)

// RunStatus is the terminal outcome of a run.
type RunStatus string

// Run outcomes.
const (
	// RunCompleted means every executed node succeeded.
	RunCompleted RunStatus = "completed"
	// RunErrored means the run finished but at least one node ended in Error.
	RunErrored RunStatus = "completed_with_errors"
	// RunAborted means the run was stopped or its context was cancelled.
	RunAborted RunStatus = "aborted"
	// RunFailed means a structural error (no start node, cycle or
	// disconnection) or a fatal checkpoint failure ended the run.
	RunFailed RunStatus = "failed"
)

// RunState is a point-in-time view of the engine's current or last run.
type RunState struct {
	RunID   string
	Running bool
	// Tick is the number of ticks started so far.
	Tick int
	// Completed are executed nodes that ended in Success, in graph order.
	Completed []string
	// Errored are nodes currently in Error, in graph order.
	Errored []string
}

// Result summarizes a finished run.
type Result struct {
	RunID  string
	Status RunStatus
	Ticks  int
	// Executed are the nodes the scheduler ran, in execution order.
	Executed []string
	// Errored are the nodes that ended in Error, in graph order. This
	// includes output sinks failed by their producer.
	Errored []string
	// Skipped are the nodes never executed because an input failed.
	Skipped  []string
	Duration time.Duration
}

// Engine runs a Graph. One engine drives one graph; at most one run is in
// progress at a time.
//
// Example:
//
//	engine := promptgraph.NewEngine(g, llm.NewClaudeCLI())
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    // structural failure or abort
//	}
//	fmt.Println(result.Status)
type Engine struct {
	graph       *Graph
	client      llm.Client
	cfg         runConfig
	executors   *registry.Registry[Kind, Executor]
	broadcaster *Broadcaster

	mu     sync.Mutex
	state  RunState
	cancel context.CancelFunc
}

// NewEngine creates an engine for g. client may be nil if the graph has no
// LLM nodes.
func NewEngine(g *Graph, client llm.Client, opts ...Option) *Engine {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := NewBroadcaster(g)
	b.metrics = cfg.metrics
	b.logger = cfg.logger

	return &Engine{
		graph:       g,
		client:      client,
		cfg:         cfg,
		executors:   defaultExecutors(&cfg),
		broadcaster: b,
	}
}

// Graph returns the graph this engine runs.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Run executes the graph until every node has run or can never run.
//
// Node statuses are reset to Idle first. Node-level failures are recorded on
// the nodes and reported through Result.Status; the returned error is
// reserved for structural failures (*NoStartNodeError, *CyclicGraphError),
// fatal checkpoint failures, and aborts (*CancellationError). Concurrent
// calls return ErrAlreadyRunning.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	runID := e.cfg.runID
	if runID == "" {
		runID = uuid.New().String()
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.state.Running {
		e.mu.Unlock()
		cancel()
		return nil, ErrAlreadyRunning
	}
	e.state = RunState{RunID: runID, Running: true}
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.state.Running = false
		e.cancel = nil
		e.mu.Unlock()
	}()

	r := &run{
		engine:   e,
		id:       runID,
		logger:   e.cfg.logger,
		executed: make(map[string]bool),
	}
	return r.execute(runCtx)
}

// Stop aborts the current run. In-flight executors observe cancellation and
// stop updating the graph; Run returns without waiting for them. Stop is
// idempotent and safe to call when nothing is running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// IsRunning reports whether a run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Running
}

// State returns a copy of the current or last run state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Completed = slices.Clone(s.Completed)
	s.Errored = slices.Clone(s.Errored)
	return s
}

func (e *Engine) updateState(fn func(*RunState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
}
