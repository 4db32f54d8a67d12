package promptgraph

// Reader is the read side of the graph model.
// Both *Graph (live) and *Snapshot (frozen) implement it.
type Reader interface {
	// Node returns a copy of the node with the given ID.
	Node(id string) (Node, bool)
	// Nodes returns copies of all nodes in insertion order.
	Nodes() []Node
	// Edges returns all edges in insertion order.
	Edges() []Edge
	// InputsOf returns the nodes with an edge targeting id.
	InputsOf(id string) []Node
	// OutputsOf returns the nodes targeted by an edge from id.
	OutputsOf(id string) []Node
}

// view holds graph structure. It has no locking of its own; Graph guards
// its view with a mutex and Snapshot owns a private copy.
type view struct {
	order []string
	nodes map[string]*Node
	edges []Edge
}

func newView() view {
	return view{nodes: make(map[string]*Node)}
}

func (v *view) node(id string) (Node, bool) {
	n, ok := v.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

func (v *view) all() []Node {
	out := make([]Node, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.nodes[id].Clone())
	}
	return out
}

func (v *view) edgeList() []Edge {
	out := make([]Edge, len(v.edges))
	copy(out, v.edges)
	return out
}

// inputs walks edges in insertion order. A source connected by several
// edges is listed once, at its first edge.
func (v *view) inputs(id string) []Node {
	var out []Node
	seen := make(map[string]bool)
	for _, e := range v.edges {
		if e.Target != id || seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		if n, ok := v.nodes[e.Source]; ok {
			out = append(out, n.Clone())
		}
	}
	return out
}

func (v *view) outputs(id string) []Node {
	var out []Node
	seen := make(map[string]bool)
	for _, e := range v.edges {
		if e.Source != id || seen[e.Target] {
			continue
		}
		seen[e.Target] = true
		if n, ok := v.nodes[e.Target]; ok {
			out = append(out, n.Clone())
		}
	}
	return out
}

func (v *view) clone() view {
	c := view{
		order: append([]string(nil), v.order...),
		nodes: make(map[string]*Node, len(v.nodes)),
		edges: append([]Edge(nil), v.edges...),
	}
	for id, n := range v.nodes {
		cn := n.Clone()
		c.nodes[id] = &cn
	}
	return c
}

// Snapshot is an immutable, point-in-time copy of a graph.
// It is safe for concurrent reads.
type Snapshot struct {
	v view
}

// Compile-time interface checks.
var (
	_ Reader = (*Snapshot)(nil)
	_ Reader = (*Graph)(nil)
)

// Node implements Reader.
func (s *Snapshot) Node(id string) (Node, bool) { return s.v.node(id) }

// Nodes implements Reader.
func (s *Snapshot) Nodes() []Node { return s.v.all() }

// Edges implements Reader.
func (s *Snapshot) Edges() []Edge { return s.v.edgeList() }

// InputsOf implements Reader.
func (s *Snapshot) InputsOf(id string) []Node { return s.v.inputs(id) }

// OutputsOf implements Reader.
func (s *Snapshot) OutputsOf(id string) []Node { return s.v.outputs(id) }

// Len returns the number of nodes.
func (s *Snapshot) Len() int { return len(s.v.order) }

// NodeIDs returns node IDs in insertion order.
func (s *Snapshot) NodeIDs() []string {
	return append([]string(nil), s.v.order...)
}

// status returns the status of a node without copying its payload.
func (s *Snapshot) status(id string) Status {
	if n, ok := s.v.nodes[id]; ok {
		return n.Status
	}
	return ""
}

// kind returns the kind of a node without copying its payload.
func (s *Snapshot) kind(id string) Kind {
	if n, ok := s.v.nodes[id]; ok {
		return n.Kind()
	}
	return ""
}

// inputIDs returns the distinct sources of edges targeting id.
func (s *Snapshot) inputIDs(id string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range s.v.edges {
		if e.Target == id && !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	return out
}
