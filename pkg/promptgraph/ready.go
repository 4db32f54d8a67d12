package promptgraph

// IsReady reports whether a node's dependencies are satisfied.
// Start nodes are always ready. Any other node is ready when every input
// node has StatusSuccess; a node without inputs is therefore ready.
//
// Readiness is never cached: callers evaluate it against a fresh snapshot
// each tick so that nodes finishing mid-tick unlock their dependents.
func IsReady(r Reader, id string) bool {
	n, ok := r.Node(id)
	if !ok {
		return false
	}
	if n.Kind() == KindStart {
		return true
	}
	for _, in := range r.InputsOf(id) {
		if in.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// ReadySet returns, in graph order, the nodes not yet executed that are ready.
func ReadySet(s *Snapshot, executed map[string]bool) []string {
	var ready []string
	for _, id := range s.v.order {
		if executed[id] {
			continue
		}
		if isReady(s, id) {
			ready = append(ready, id)
		}
	}
	return ready
}

// Blocked returns, in graph order, the unexecuted nodes that can never become
// ready because they already ended in StatusError or because one of their
// transitive inputs did. These are the dependents a failure propagates to.
func Blocked(s *Snapshot, executed map[string]bool) []string {
	blocked := make(map[string]bool)
	for _, id := range s.v.order {
		if s.status(id) == StatusError {
			blocked[id] = true
		}
	}

	// Propagate along edges until nothing changes. A cycle on its own never
	// marks anything blocked.
	for changed := true; changed; {
		changed = false
		for _, e := range s.v.edges {
			if blocked[e.Source] && !blocked[e.Target] {
				blocked[e.Target] = true
				changed = true
			}
		}
	}

	var out []string
	for _, id := range s.v.order {
		if !executed[id] && blocked[id] {
			out = append(out, id)
		}
	}
	return out
}

// isReady is IsReady without payload copies, for the scheduler's hot path.
func isReady(s *Snapshot, id string) bool {
	if s.kind(id) == KindStart {
		return true
	}
	for _, in := range s.inputIDs(id) {
		if s.status(in) != StatusSuccess {
			return false
		}
	}
	return true
}

// Validate checks that r can run to completion assuming every node succeeds:
// it needs a start node, and every node must be reachable through the
// readiness rule. Nodes that could never become ready are reported in a
// *CyclicGraphError with Tick 0.
func Validate(r Reader) error {
	nodes := r.Nodes()
	ids := make([]string, len(nodes))
	starts := make(map[string]bool)
	for i, n := range nodes {
		ids[i] = n.ID
		if n.Kind() == KindStart {
			starts[n.ID] = true
		}
	}
	if len(starts) == 0 {
		return &NoStartNodeError{NodeCount: len(nodes)}
	}

	inputs := func(id string) []string {
		in := r.InputsOf(id)
		out := make([]string, len(in))
		for i, n := range in {
			out[i] = n.ID
		}
		return out
	}
	if pending := unreachable(ids, starts, inputs); len(pending) > 0 {
		return &CyclicGraphError{Pending: pending}
	}
	return nil
}

// structurallyStuck returns the nodes of s that could never become ready even
// if every node succeeded, keyed by ID.
func structurallyStuck(s *Snapshot) map[string]bool {
	starts := make(map[string]bool)
	for _, id := range s.v.order {
		if s.kind(id) == KindStart {
			starts[id] = true
		}
	}
	stuck := make(map[string]bool)
	for _, id := range unreachable(s.v.order, starts, s.inputIDs) {
		stuck[id] = true
	}
	return stuck
}

// unreachable runs the readiness rule to a fixed point with every reached
// node counted as a success, and returns what is left in ids order.
func unreachable(ids []string, starts map[string]bool, inputs func(string) []string) []string {
	done := make(map[string]bool, len(ids))
	for progress := true; progress; {
		progress = false
		for _, id := range ids {
			if done[id] {
				continue
			}
			ready := true
			if !starts[id] {
				for _, in := range inputs(id) {
					if !done[in] {
						ready = false
						break
					}
				}
			}
			if ready {
				done[id] = true
				progress = true
			}
		}
	}

	var left []string
	for _, id := range ids {
		if !done[id] {
			left = append(left, id)
		}
	}
	return left
}
