package promptgraph

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Graph is the single source of truth for a workflow: nodes, edges and
// per-node status. It is shared by reference between the engine, executors
// and any external observer.
//
// Graph is safe for concurrent use. Every write is applied atomically under
// one lock, and every read returns copies, so a reader never observes a
// partially applied update.
//
// Example:
//
//	g := promptgraph.NewGraph()
//	_ = g.AddNode(promptgraph.NewStart("start", "demo"))
//	_ = g.AddNode(promptgraph.NewTextPrompt("prompt", "hello"))
//	_ = g.AddEdge(promptgraph.Edge{Source: "start", Target: "prompt"})
type Graph struct {
	mu sync.RWMutex
	v  view

	obsMu     sync.RWMutex
	observers map[int]func(Node)
	nextObs   int

	now func() time.Time
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithClock sets the clock used to timestamp history entries.
func WithClock(now func() time.Time) GraphOption {
	return func(g *Graph) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		v:         newView(),
		observers: make(map[int]func(Node)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode inserts a node. Nodes keep their insertion order.
// A node with an empty status is stored as StatusIdle.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrEmptyNodeID
	}
	if n.Data == nil {
		return fmt.Errorf("%w: %s", ErrNilPayload, n.ID)
	}
	if err := n.Data.validate(); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	if n.Status == "" {
		n.Status = StatusIdle
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.v.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	stored := n.Clone()
	g.v.nodes[n.ID] = &stored
	g.v.order = append(g.v.order, n.ID)
	return nil
}

// AddEdge inserts a directed edge. An empty edge ID is replaced by a
// generated one. Several edges may connect the same pair of nodes.
func (g *Graph) AddEdge(e Edge) error {
	if e.Source == e.Target {
		return fmt.Errorf("%w: %s", ErrSelfLoop, e.Source)
	}
	if e.ID == "" {
		e.ID = "edge-" + uuid.New().String()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.v.nodes[e.Source]; !ok {
		return fmt.Errorf("%w: edge source %q", ErrNodeNotFound, e.Source)
	}
	if _, ok := g.v.nodes[e.Target]; !ok {
		return fmt.Errorf("%w: edge target %q", ErrNodeNotFound, e.Target)
	}
	for _, existing := range g.v.edges {
		if existing.ID == e.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
		}
	}
	g.v.edges = append(g.v.edges, e)
	return nil
}

// Connect adds an edge from source to each target.
func (g *Graph) Connect(source string, targets ...string) error {
	for _, t := range targets {
		if err := g.AddEdge(Edge{Source: source, Target: t}); err != nil {
			return err
		}
	}
	return nil
}

// Node implements Reader.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v.node(id)
}

// Nodes implements Reader.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v.all()
}

// Edges implements Reader.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v.edgeList()
}

// InputsOf implements Reader.
func (g *Graph) InputsOf(id string) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v.inputs(id)
}

// OutputsOf implements Reader.
func (g *Graph) OutputsOf(id string) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v.outputs(id)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.v.order)
}

// Snapshot returns a deep, immutable copy of the current graph.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return &Snapshot{v: g.v.clone()}
}

// ApplyUpdate atomically modifies one node. The update function receives a
// copy; it is committed only if the node keeps its ID and kind and its
// payload remains valid.
func (g *Graph) ApplyUpdate(id string, update func(*Node)) error {
	return g.ApplyBatch([]string{id}, update)
}

// ApplyStatus atomically sets a node's status. The error message is kept
// only for StatusError and cleared otherwise.
func (g *Graph) ApplyStatus(id string, status Status, errMsg string) error {
	return g.ApplyUpdate(id, func(n *Node) {
		n.Status = status
		if status == StatusError {
			n.Error = errMsg
		} else {
			n.Error = ""
		}
	})
}

// ApplyBatch applies the same update to several nodes as one atomic write:
// either every node is updated or none is.
func (g *Graph) ApplyBatch(ids []string, update func(*Node)) error {
	if len(ids) == 0 {
		return nil
	}

	g.mu.Lock()
	updated := make([]Node, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		cur, ok := g.v.nodes[id]
		if !ok {
			g.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		next := cur.Clone()
		update(&next)
		if err := checkUpdate(*cur, next); err != nil {
			g.mu.Unlock()
			return err
		}
		updated = append(updated, next)
	}
	for i := range updated {
		n := updated[i]
		g.v.nodes[n.ID] = &n
	}
	g.mu.Unlock()

	g.notify(updated)
	return nil
}

// ResetStatuses sets every node to StatusIdle and clears error messages.
// Payloads are left untouched.
func (g *Graph) ResetStatuses() {
	g.mu.Lock()
	var changed []Node
	for _, id := range g.v.order {
		n := g.v.nodes[id]
		if n.Status == StatusIdle && n.Error == "" {
			continue
		}
		n.Status = StatusIdle
		n.Error = ""
		changed = append(changed, n.Clone())
	}
	g.mu.Unlock()

	g.notify(changed)
}

// Observe registers fn to be called with a copy of every node changed by a
// committed write. Calls happen outside the graph lock, on the writer's
// goroutine. The returned function removes the observer.
func (g *Graph) Observe(fn func(Node)) (cancel func()) {
	g.obsMu.Lock()
	id := g.nextObs
	g.nextObs++
	g.observers[id] = fn
	g.obsMu.Unlock()

	return func() {
		g.obsMu.Lock()
		delete(g.observers, id)
		g.obsMu.Unlock()
	}
}

func (g *Graph) notify(nodes []Node) {
	if len(nodes) == 0 {
		return
	}
	// Observers run without obsMu held so they may cancel or register.
	g.obsMu.RLock()
	fns := make([]func(Node), 0, len(g.observers))
	for _, fn := range g.observers {
		fns = append(fns, fn)
	}
	g.obsMu.RUnlock()

	for _, fn := range fns {
		for _, n := range nodes {
			fn(n.Clone())
		}
	}
}

func checkUpdate(before, after Node) error {
	if after.ID != before.ID {
		return fmt.Errorf("%w: node %s: update cannot change ID to %q", ErrInvalidPayload, before.ID, after.ID)
	}
	if after.Data == nil || after.Kind() != before.Kind() {
		return fmt.Errorf("%w: node %s: update cannot change kind", ErrInvalidPayload, before.ID)
	}
	if err := after.Data.validate(); err != nil {
		return fmt.Errorf("node %s: %w", before.ID, err)
	}
	return nil
}
