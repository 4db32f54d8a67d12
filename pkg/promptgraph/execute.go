package promptgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/checkpoint"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/event"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/llm"
	"github.com/randalmurphal/promptgraph/pkg/promptgraph/observability"
	"go.opentelemetry.io/otel/attribute"
)

// run is the state of one Engine.Run call.
type run struct {
	engine   *Engine
	id       string
	workflow string
	logger   *slog.Logger

	// executed and order are owned by the coordinator goroutine.
	executed map[string]bool
	order    []string
	tick     int
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	e := r.engine
	g := e.graph
	start := time.Now()

	g.ResetStatuses()
	snap := g.Snapshot()
	workflow, hasStart := workflowName(snap)
	r.workflow = workflow

	ctx, span := e.cfg.spans.StartRunSpan(ctx, workflow, r.id)
	observability.LogRunStart(r.logger, r.id, snap.Len())
	r.publish(ctx, event.New(event.TypeRunStarted, r.id, event.RunStarted{
		Workflow:  workflow,
		NodeCount: snap.Len(),
	}))

	var (
		status RunStatus
		err    error
	)
	if !hasStart {
		status, err = RunFailed, &NoStartNodeError{NodeCount: snap.Len()}
	} else {
		if e.cfg.bus != nil {
			stop := g.Observe(r.publishNode(ctx))
			defer stop()
		}
		status, err = r.loop(ctx)
	}

	result := r.result(status, time.Since(start))
	r.finish(ctx, result, err)
	e.cfg.spans.EndSpanWithError(span, err)
	return result, err
}

// loop runs ticks until nothing is ready.
func (r *run) loop(ctx context.Context) (RunStatus, error) {
	g := r.engine.graph
	for {
		if err := ctx.Err(); err != nil {
			return RunAborted, &CancellationError{Tick: r.tick, Cause: err}
		}

		// Readiness is recomputed from a fresh snapshot every tick.
		snap := g.Snapshot()
		ready := ReadySet(snap, r.executed)
		if len(ready) == 0 {
			return r.settle(snap)
		}

		r.tick++
		for _, id := range ready {
			r.executed[id] = true
			r.order = append(r.order, id)
		}
		tick := r.tick
		r.engine.updateState(func(s *RunState) { s.Tick = tick })

		if err := r.runTick(ctx, tick, ready); err != nil {
			return RunAborted, err
		}
		r.syncState()

		if err := r.checkpoint(ctx, tick); err != nil {
			return RunFailed, err
		}
	}
}

// settle decides the outcome once the ready set is empty. Every remaining
// node must be blocked by a failure and reachable from a start node; a node
// on a cycle or cut off from the start fails the run even when a failure
// also blocks it.
func (r *run) settle(snap *Snapshot) (RunStatus, error) {
	blocked := make(map[string]bool)
	for _, id := range Blocked(snap, r.executed) {
		blocked[id] = true
	}
	unreachable := structurallyStuck(snap)

	var stuck []string
	for _, id := range snap.NodeIDs() {
		if r.executed[id] {
			continue
		}
		if unreachable[id] || !blocked[id] {
			stuck = append(stuck, id)
		}
	}
	if len(stuck) > 0 {
		return RunFailed, &CyclicGraphError{Pending: stuck, Tick: r.tick + 1}
	}

	for _, n := range snap.Nodes() {
		if n.Status == StatusError {
			return RunErrored, nil
		}
	}
	return RunCompleted, nil
}

// runTick executes the ready set concurrently and waits for every node, or
// for cancellation. On cancellation it returns at once; in-flight executors
// observe the cancelled context and stop writing.
func (r *run) runTick(ctx context.Context, tick int, ready []string) (err error) {
	cfg := &r.engine.cfg
	ctx, span := cfg.spans.StartTickSpan(ctx, tick, len(ready))
	defer func() { cfg.spans.EndSpanWithError(span, err) }()

	cfg.metrics.RecordTick(ctx, len(ready))
	observability.LogTick(r.logger, tick, ready)

	var sem chan struct{}
	if cfg.maxConcurrency > 0 {
		sem = make(chan struct{}, cfg.maxConcurrency)
	}

	var wg sync.WaitGroup
	for _, id := range ready {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return
				}
			}
			_ = r.executeNode(ctx, tick, id)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return &CancellationError{Tick: tick, Cause: ctx.Err()}
	}
}

// executeNode runs one node's executor with panic recovery. A failure the
// executor did not record itself is written to the node, unless the run was
// cancelled.
func (r *run) executeNode(ctx context.Context, tick int, id string) (err error) {
	e := r.engine
	n, ok := e.graph.Node(id)
	if !ok {
		return &NodeError{NodeID: id, Op: "execute", Err: ErrNodeNotFound}
	}
	kind := string(n.Kind())
	logger := observability.EnrichLogger(r.logger, r.id, id, kind)

	ctx, span := e.cfg.spans.StartNodeSpan(ctx, id, kind)
	start := time.Now()
	observability.LogNodeStart(logger, id)

	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{NodeID: id, Value: p, Stack: string(debug.Stack())}
		}
		switch {
		case err == nil:
			observability.LogNodeComplete(logger, id, float64(time.Since(start).Milliseconds()))
		case isCancellation(err) || ctx.Err() != nil:
			logger.Debug("node stopped by cancellation")
		default:
			r.recordFailure(id, err)
			observability.LogNodeError(logger, id, err, llm.IsRetryable(err))
		}
		e.cfg.metrics.RecordNodeExecution(context.WithoutCancel(ctx), id, kind, time.Since(start), err)
		e.cfg.spans.EndSpanWithError(span, err)
	}()

	ex, ok := e.executors.Get(n.Kind())
	if !ok {
		return &NodeError{NodeID: id, Op: "execute", Err: fmt.Errorf("%w: %s", ErrNoExecutor, kind)}
	}

	xctx := &executionContext{
		Context:     ctx,
		logger:      logger,
		graph:       e.graph,
		broadcaster: e.broadcaster,
		client:      e.client,
		runID:       r.id,
		nodeID:      id,
		tick:        tick,
	}
	return ex.Execute(xctx, id)
}

func (r *run) recordFailure(id string, err error) {
	g := r.engine.graph
	n, ok := g.Node(id)
	if !ok || n.Status == StatusError {
		return
	}
	if werr := g.ApplyStatus(id, StatusError, err.Error()); werr != nil {
		r.logger.Warn("failed to record node error",
			slog.String("node_id", id),
			slog.String("error", werr.Error()),
		)
	}
}

// checkpoint saves the graph after a tick. Failures are logged and, unless
// configured as fatal, ignored.
func (r *run) checkpoint(ctx context.Context, tick int) error {
	cfg := &r.engine.cfg
	if cfg.checkpointStore == nil {
		return nil
	}
	elapsed := observability.TimedOperation()

	doc, err := json.Marshal(ToDocument(r.engine.graph.Snapshot(), r.workflow))
	if err != nil {
		return r.checkpointFailed(tick, "marshal", err)
	}
	data, err := checkpoint.New(r.id, tick, doc, slices.Clone(r.order)).Marshal()
	if err != nil {
		return r.checkpointFailed(tick, "marshal", err)
	}
	if err := cfg.checkpointStore.Save(r.id, tick, data); err != nil {
		return r.checkpointFailed(tick, "save", err)
	}

	cfg.metrics.RecordCheckpoint(ctx, int64(len(data)))
	cfg.spans.AddSpanEvent(ctx, "checkpoint.saved",
		attribute.Int("tick", tick),
		attribute.Int("size_bytes", len(data)),
	)
	observability.LogCheckpoint(r.logger, tick, len(data), elapsed())
	return nil
}

func (r *run) checkpointFailed(tick int, op string, err error) error {
	observability.LogCheckpointError(r.logger, tick, op, err)
	if !r.engine.cfg.checkpointFatal {
		return nil
	}
	return &CheckpointError{Tick: tick, Op: op, Err: err}
}

func (r *run) syncState() {
	snap := r.engine.graph.Snapshot()
	var completed, errored []string
	for _, n := range snap.Nodes() {
		switch {
		case n.Status == StatusError:
			errored = append(errored, n.ID)
		case n.Status == StatusSuccess && r.executed[n.ID]:
			completed = append(completed, n.ID)
		}
	}
	r.engine.updateState(func(s *RunState) {
		s.Completed = completed
		s.Errored = errored
	})
}

func (r *run) result(status RunStatus, d time.Duration) *Result {
	res := &Result{
		RunID:    r.id,
		Status:   status,
		Ticks:    r.tick,
		Executed: slices.Clone(r.order),
		Duration: d,
	}
	for _, n := range r.engine.graph.Nodes() {
		if n.Status == StatusError {
			res.Errored = append(res.Errored, n.ID)
		}
		if !r.executed[n.ID] {
			res.Skipped = append(res.Skipped, n.ID)
		}
	}
	return res
}

// finish reports the outcome. It runs after cancellation too, so it does not
// use the run context's cancellation.
func (r *run) finish(ctx context.Context, res *Result, err error) {
	ctx = context.WithoutCancel(ctx)
	r.syncState()

	r.engine.cfg.metrics.RecordRun(ctx, string(res.Status), res.Duration)
	ms := float64(res.Duration.Milliseconds())
	switch res.Status {
	case RunFailed:
		observability.LogRunError(r.logger, r.id, err, ms)
	case RunAborted:
		r.logger.Warn("workflow run aborted",
			slog.String("run_id", r.id),
			slog.Int("tick", res.Ticks),
			slog.Float64("duration_ms", ms),
		)
	default:
		observability.LogRunComplete(r.logger, r.id, string(res.Status), ms, len(res.Executed), len(res.Errored))
	}

	data := event.RunFinished{
		Status:   string(res.Status),
		Ticks:    res.Ticks,
		Executed: len(res.Executed),
		Errored:  len(res.Errored),
	}
	if err != nil {
		data.Error = err.Error()
	}
	r.publish(ctx, event.New(event.TypeRunFinished, r.id, data))
}

func (r *run) publish(ctx context.Context, evt event.Event) {
	bus := r.engine.cfg.bus
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, evt); err != nil {
		r.logger.Debug("event not published",
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
	}
}

// publishNode returns a graph observer that publishes node.updated events.
func (r *run) publishNode(ctx context.Context) func(Node) {
	return func(n Node) {
		data := event.NodeUpdated{
			Kind:   string(n.Kind()),
			Status: string(n.Status),
			Error:  n.Error,
			Text:   n.Text(),
		}
		if d := n.Output(); d != nil && d.IsStreaming {
			data.Text = d.StreamedContent
		}
		r.publish(ctx, event.New(event.TypeNodeUpdated, r.id, data).ForNode(n.ID))
	}
}

// workflowName returns the name of the first start node and whether the
// graph has one.
func workflowName(s *Snapshot) (string, bool) {
	for _, n := range s.Nodes() {
		if d := n.Start(); d != nil {
			return d.WorkflowName, true
		}
	}
	return "", false
}
