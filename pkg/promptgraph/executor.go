package promptgraph

import (
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/registry"
)

// Executor runs one node. Executors own their node's status transitions:
// they move it to Running and end in Success or Error.
//
// A returned error that is not a *CancellationError is recorded on the node
// by the engine unless the executor already put the node in Error.
type Executor interface {
	Execute(ctx Context, id string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx Context, id string) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx Context, id string) error {
	return f(ctx, id)
}

// inputSeparator joins the text of several inputs.
const inputSeparator = "\n\n"

// defaultExecutors builds the executor table for cfg.
func defaultExecutors(cfg *runConfig) *registry.Registry[Kind, Executor] {
	table := registry.New[Kind, Executor]()
	table.Register(KindStart, startExecutor{settle: cfg.settleDelay})
	table.Register(KindTextPrompt, textPromptExecutor{})
	table.Register(KindLLM, llmExecutor{defaults: cfg.llmDefaults})
	table.Register(KindOutput, outputExecutor{})
	for kind, ex := range cfg.executorOverrides {
		table.Register(kind, ex)
	}
	return table
}

// JoinInputs concatenates the text of the given nodes in order, separated
// by a blank line. Nodes without text, and blank texts, are skipped rather
// than concatenated, so a blank upstream prompt adds no empty separator.
func JoinInputs(inputs []Node) string {
	parts := make([]string, 0, len(inputs))
	for _, n := range inputs {
		if t := n.Text(); strings.TrimSpace(t) != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, inputSeparator)
}

// startExecutor succeeds after a short settle delay.
type startExecutor struct {
	settle time.Duration
}

func (e startExecutor) Execute(ctx Context, id string) error {
	g := ctx.Graph()
	if err := g.ApplyStatus(id, StatusRunning, ""); err != nil {
		return err
	}
	if e.settle > 0 {
		timer := time.NewTimer(e.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return &CancellationError{NodeID: id, Tick: ctx.Tick(), Cause: ctx.Err()}
		}
	}
	return g.ApplyStatus(id, StatusSuccess, "")
}

// textPromptExecutor resets downstream outputs and succeeds. Its text is
// authored input, not computed.
type textPromptExecutor struct{}

func (textPromptExecutor) Execute(ctx Context, id string) error {
	if err := ctx.Broadcaster().Reset(id); err != nil {
		return err
	}
	g := ctx.Graph()
	if err := g.ApplyStatus(id, StatusRunning, ""); err != nil {
		return err
	}
	return g.ApplyStatus(id, StatusSuccess, "")
}

// outputExecutor copies upstream text into a passive output. An output fed
// by an LLM node is driven by that node's stream and is left alone.
type outputExecutor struct{}

func (outputExecutor) Execute(ctx Context, id string) error {
	g := ctx.Graph()
	inputs := g.InputsOf(id)
	for _, in := range inputs {
		if in.Kind() == KindLLM {
			ctx.Logger().Debug("output driven by model stream, skipping")
			return nil
		}
	}

	if err := g.ApplyStatus(id, StatusRunning, ""); err != nil {
		return err
	}
	content := JoinInputs(inputs)
	return g.ApplyUpdate(id, func(n *Node) {
		d := n.Output()
		d.Content = content
		d.IsStreaming = false
		d.StreamedContent = ""
		n.Status = StatusSuccess
		n.Error = ""
	})
}

// mustKind returns the node or an error if it is missing or of another kind.
func mustKind(g *Graph, id string, kind Kind) (Node, error) {
	n, ok := g.Node(id)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Kind() != kind {
		return Node{}, fmt.Errorf("%w: node %s is %s, want %s", ErrInvalidPayload, id, n.Kind(), kind)
	}
	return n, nil
}
