// Package edge is the dependency graph's edge store: a compressed sparse
// row (CSR) adjacency structure for the common read-heavy case, fronted
// by a small delta slab that absorbs bursts of edge churn (structural
// edits, batch ingest) without forcing a CSR rebuild on every single
// edge. This generalizes the teacher's map-of-maps DependencyNode
// adjacency (graph.go's CellPrecedents/CellDependents) into a
// columnar layout sized for much larger sheets.
package edge

import "github.com/PSU3D0/formualizer-sub003/internal/vertex"

// CollapseThreshold is the number of pending delta-slab operations at
// which EndBatch folds the slab into a fresh CSR rebuild rather than
// leaving it as an overlay.
const CollapseThreshold = 1000

// deltaSlab accumulates edge additions/removals that have not yet been
// folded into the CSR arrays.
type deltaSlab struct {
	additions map[vertex.Id]map[vertex.Id]struct{} // from -> set of to
	removals  map[vertex.Id]map[vertex.Id]struct{}
	ops       int
}

func newDeltaSlab() *deltaSlab {
	return &deltaSlab{
		additions: make(map[vertex.Id]map[vertex.Id]struct{}),
		removals:  make(map[vertex.Id]map[vertex.Id]struct{}),
	}
}

func (d *deltaSlab) add(from, to vertex.Id) {
	if rem, ok := d.removals[from]; ok {
		if _, wasRemoved := rem[to]; wasRemoved {
			delete(rem, to)
			return
		}
	}
	set, ok := d.additions[from]
	if !ok {
		set = make(map[vertex.Id]struct{})
		d.additions[from] = set
	}
	if _, exists := set[to]; exists {
		return
	}
	set[to] = struct{}{}
	d.ops++
}

func (d *deltaSlab) remove(from, to vertex.Id) {
	if add, ok := d.additions[from]; ok {
		if _, wasAdded := add[to]; wasAdded {
			delete(add, to)
			return
		}
	}
	set, ok := d.removals[from]
	if !ok {
		set = make(map[vertex.Id]struct{})
		d.removals[from] = set
	}
	if _, exists := set[to]; exists {
		return
	}
	set[to] = struct{}{}
	d.ops++
}

// Store is the edge store: "from depends on to" (from is the formula
// cell, to is a precedent it reads). Dependents() is the reverse
// direction, used by the scheduler to propagate dirtiness forward.
type Store struct {
	// CSR forward adjacency: precedents[from] -> []to
	offsets []int32
	targets []vertex.Id

	// CSR reverse adjacency: dependents[to] -> []from
	revOffsets []int32
	revTargets []vertex.Id

	delta      *deltaSlab
	inBatch    bool
	maxVertex  vertex.Id
}

// New creates an empty edge store.
func New() *Store {
	return &Store{delta: newDeltaSlab()}
}

// BeginBatch starts accumulating edge mutations into the delta slab
// without touching the CSR arrays, used by ingest/editor operations that
// add or remove many edges at once.
func (s *Store) BeginBatch() { s.inBatch = true }

// EndBatch stops batch accumulation. If the slab has collected at least
// CollapseThreshold operations, or has grown to a meaningful fraction of
// the current CSR edge count, it folds the slab into a fresh CSR rebuild;
// otherwise it leaves the delta slab in place as a read-time overlay.
func (s *Store) EndBatch() {
	s.inBatch = false
	if s.delta.ops == 0 {
		return
	}
	if s.delta.ops >= CollapseThreshold || s.delta.ops*4 >= len(s.targets)+1 {
		s.rebuild()
	}
}

// AddEdge records that from depends on to. Self-loops are a no-op: a
// formula can reference its own cell only through an error path the
// scheduler already detects as a cycle, so there's nothing useful to
// encode as a self-edge.
func (s *Store) AddEdge(from, to vertex.Id) {
	if from == to {
		return
	}
	s.trackVertex(from)
	s.trackVertex(to)
	s.delta.add(from, to)
	if !s.inBatch && s.delta.ops >= CollapseThreshold {
		s.rebuild()
	}
}

// RemoveEdge removes the from-depends-on-to edge, if present.
func (s *Store) RemoveEdge(from, to vertex.Id) {
	if from == to {
		return
	}
	s.delta.remove(from, to)
	if !s.inBatch && s.delta.ops >= CollapseThreshold {
		s.rebuild()
	}
}

func (s *Store) trackVertex(id vertex.Id) {
	if id > s.maxVertex {
		s.maxVertex = id
	}
}

// ClearPrecedents removes every outgoing edge from `from` (used when a
// formula is replaced or cleared, before the new precedent set is added).
func (s *Store) ClearPrecedents(from vertex.Id) {
	for _, to := range s.Precedents(from) {
		s.RemoveEdge(from, to)
	}
}

// Precedents returns every vertex `from` depends on.
func (s *Store) Precedents(from vertex.Id) []vertex.Id {
	return s.merged(from, s.offsets, s.targets, true)
}

// Dependents returns every vertex that depends on `to`.
func (s *Store) Dependents(to vertex.Id) []vertex.Id {
	return s.merged(to, s.revOffsets, s.revTargets, false)
}

func (s *Store) merged(id vertex.Id, offsets []int32, targets []vertex.Id, forward bool) []vertex.Id {
	seen := make(map[vertex.Id]struct{})
	var out []vertex.Id
	if int(id) < len(offsets)-1 {
		start, end := offsets[id], offsets[id+1]
		for _, t := range targets[start:end] {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	if forward {
		if rem, ok := s.delta.removals[id]; ok {
			filtered := out[:0]
			for _, t := range out {
				if _, removed := rem[t]; !removed {
					filtered = append(filtered, t)
				}
			}
			out = filtered
		}
		if add, ok := s.delta.additions[id]; ok {
			for t := range add {
				if _, ok := seen[t]; !ok {
					seen[t] = struct{}{}
					out = append(out, t)
				}
			}
		}
		return out
	}

	// reverse direction: the delta slab is keyed by forward (from, to)
	// pairs, so scan it for entries whose `to` is id.
	for from, set := range s.delta.removals {
		if _, removed := set[id]; removed {
			filtered := out[:0]
			for _, t := range out {
				if t != from {
					filtered = append(filtered, t)
				}
			}
			out = filtered
		}
	}
	for from, set := range s.delta.additions {
		if _, ok := set[id]; ok {
			if _, already := seen[from]; !already {
				seen[from] = struct{}{}
				out = append(out, from)
			}
		}
	}
	return out
}

// rebuild folds the delta slab into fresh CSR forward/reverse arrays and
// clears the slab.
func (s *Store) rebuild() {
	adj := make(map[vertex.Id]map[vertex.Id]struct{})
	addPair := func(from, to vertex.Id) {
		set, ok := adj[from]
		if !ok {
			set = make(map[vertex.Id]struct{})
			adj[from] = set
		}
		set[to] = struct{}{}
	}

	for from := range s.offsets[:max0(len(s.offsets)-1)] {
		fid := vertex.Id(from)
		start, end := s.offsets[fid], s.offsets[fid+1]
		for _, to := range s.targets[start:end] {
			addPair(fid, to)
		}
	}
	for from, set := range s.delta.additions {
		for to := range set {
			addPair(from, to)
		}
	}
	for from, set := range s.delta.removals {
		if existing, ok := adj[from]; ok {
			for to := range set {
				delete(existing, to)
			}
		}
	}

	n := int(s.maxVertex) + 1
	offsets := make([]int32, n+1)
	var targets []vertex.Id
	for id := 0; id < n; id++ {
		offsets[id] = int32(len(targets))
		if set, ok := adj[vertex.Id(id)]; ok {
			for to := range set {
				targets = append(targets, to)
			}
		}
	}
	offsets[n] = int32(len(targets))

	revOffsets := make([]int32, n+1)
	revBuckets := make([][]vertex.Id, n)
	for id := 0; id < n; id++ {
		start, end := offsets[id], offsets[id+1]
		for _, to := range targets[start:end] {
			revBuckets[to] = append(revBuckets[to], vertex.Id(id))
		}
	}
	var revTargets []vertex.Id
	for id := 0; id < n; id++ {
		revOffsets[id] = int32(len(revTargets))
		revTargets = append(revTargets, revBuckets[id]...)
	}
	revOffsets[n] = int32(len(revTargets))

	s.offsets = offsets
	s.targets = targets
	s.revOffsets = revOffsets
	s.revTargets = revTargets
	s.delta = newDeltaSlab()
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// PendingOps returns the number of unfolded delta-slab operations, for
// diagnostics/tests.
func (s *Store) PendingOps() int { return s.delta.ops }
