package promptgraph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/promptgraph/pkg/promptgraph/llm"
)

// Context is handed to executors. It extends context.Context with the
// run's services and metadata.
//
// The engine derives one Context per node execution; Done fires when the run
// is stopped.
type Context interface {
	context.Context

	// Logger returns a logger enriched with run_id, node_id and kind.
	// Never nil.
	Logger() *slog.Logger

	// Graph returns the live graph shared by every executor of the run.
	Graph() *Graph

	// Broadcaster returns the streaming broadcaster bound to Graph.
	Broadcaster() *Broadcaster

	// LLM returns the model client, or nil if none was configured.
	LLM() llm.Client

	// RunID returns the identifier of the current run.
	RunID() string

	// NodeID returns the node being executed.
	NodeID() string

	// Tick returns the scheduler tick the node runs in, starting at 1.
	Tick() int
}

type executionContext struct {
	context.Context

	logger      *slog.Logger
	graph       *Graph
	broadcaster *Broadcaster
	client      llm.Client
	runID       string
	nodeID      string
	tick        int
}

func (c *executionContext) Logger() *slog.Logger      { return c.logger }
func (c *executionContext) Graph() *Graph             { return c.graph }
func (c *executionContext) Broadcaster() *Broadcaster { return c.broadcaster }
func (c *executionContext) LLM() llm.Client           { return c.client }
func (c *executionContext) RunID() string             { return c.runID }
func (c *executionContext) NodeID() string            { return c.nodeID }
func (c *executionContext) Tick() int                 { return c.tick }

// NewContext builds a Context outside the engine, for driving a single
// executor directly (tests, tools). The logger defaults to slog.Default().
func NewContext(ctx context.Context, g *Graph, client llm.Client, nodeID string) Context {
	return &executionContext{
		Context:     ctx,
		logger:      slog.Default(),
		graph:       g,
		broadcaster: NewBroadcaster(g),
		client:      client,
		nodeID:      nodeID,
	}
}
