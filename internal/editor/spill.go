package editor

import (
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

// SpillRegistry tracks, for every spill child vertex, which anchor vertex
// owns it, and the reverse mapping from an anchor to its children — per
// spec.md §4.10: "registry maps child -> anchor vertex.Id."
type SpillRegistry struct {
	childToAnchor map[vertex.Id]vertex.Id
	anchorToKids  map[vertex.Id][]vertex.Id
}

func newSpillRegistry() *SpillRegistry {
	return &SpillRegistry{
		childToAnchor: make(map[vertex.Id]vertex.Id),
		anchorToKids:  make(map[vertex.Id][]vertex.Id),
	}
}

func (sr *SpillRegistry) anchorFor(child vertex.Id) (vertex.Id, bool) {
	a, ok := sr.childToAnchor[child]
	return a, ok
}

func (sr *SpillRegistry) childrenFor(anchor vertex.Id) []vertex.Id {
	return sr.anchorToKids[anchor]
}

func (sr *SpillRegistry) set(child, anchor vertex.Id) {
	sr.childToAnchor[child] = anchor
	sr.anchorToKids[anchor] = append(sr.anchorToKids[anchor], child)
}

func (sr *SpillRegistry) clear(anchor vertex.Id) {
	for _, c := range sr.anchorToKids[anchor] {
		delete(sr.childToAnchor, c)
	}
	delete(sr.anchorToKids, anchor)
}

// ApplySpill implements scheduler.SpillApplier: called after a
// non-spill-child vertex's value is set, it reconciles the spill region
// around anchor against the just-computed result, per spec.md §4.10.
//
// A multi-cell array result (H,W with H*W>1) spills over the cells
// {(anchor_row+i, anchor_col+j)} excluding the anchor itself. If any
// target is occupied (a non-empty cell, or another spill's child), the
// anchor becomes Error(Spill) and no children are written. Otherwise each
// target is registered as a spill child holding its array element.
func (e *Editor) ApplySpill(anchor vertex.Id, result value.LiteralValue) {
	rows, cols := result.Dims()
	wantsSpill := result.IsArray() && rows*cols > 1
	hadRegion := len(e.spills.childrenFor(anchor)) > 0

	if !wantsSpill {
		if hadRegion {
			e.clearSpillChildren(anchor)
		}
		e.g.Vertices.ClearFlag(anchor, vertex.FlagSpillAnchor)
		return
	}

	anchorRef := e.g.Vertices.Coord(anchor)
	targets := spillTargets(anchorRef, rows, cols)

	for _, t := range targets {
		id, ok := e.g.Vertices.Lookup(t)
		if !ok {
			continue
		}
		owner, isChild := e.spills.anchorFor(id)
		if isChild && owner == anchor {
			continue // ours from a prior pass; will be overwritten below
		}
		if isChild || !e.g.Vertices.Value(id).IsEmpty() || e.g.Vertices.HasFlag(id, vertex.FlagHasFormula) {
			if hadRegion {
				e.clearSpillChildren(anchor)
			}
			e.g.Vertices.SetValue(anchor, value.ErrorOf(value.ErrSpill))
			e.g.Vertices.ClearFlag(anchor, vertex.FlagSpillAnchor)
			e.log.Debug().Uint32("anchor", uint32(anchor)).Msg("spill blocked: target occupied")
			return
		}
	}

	if hadRegion {
		e.clearSpillChildren(anchor)
	}
	e.g.Vertices.SetFlag(anchor, vertex.FlagSpillAnchor)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if i == 0 && j == 0 {
				continue
			}
			t := coord.CellRef{Sheet: anchorRef.Sheet, Coord: coord.Coord{Row: anchorRef.Coord.Row + uint32(i), Col: anchorRef.Coord.Col + uint32(j)}}
			id := e.g.EnsureVertex(t)
			e.g.Vertices.SetFlag(id, vertex.FlagSpillChild)
			e.g.Vertices.SetValue(id, result.Array[i][j])
			e.spills.set(id, anchor)
		}
	}
	e.log.Debug().Uint32("anchor", uint32(anchor)).Int("children", rows*cols-1).Msg("spill region committed")
}

func spillTargets(anchorRef coord.CellRef, rows, cols int) []coord.CellRef {
	targets := make([]coord.CellRef, 0, rows*cols-1)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if i == 0 && j == 0 {
				continue
			}
			targets = append(targets, coord.CellRef{
				Sheet: anchorRef.Sheet,
				Coord: coord.Coord{Row: anchorRef.Coord.Row + uint32(i), Col: anchorRef.Coord.Col + uint32(j)},
			})
		}
	}
	return targets
}

// clearSpillChildren restores every child of anchor to Empty and drops
// the registry entries, without touching the anchor itself.
func (e *Editor) clearSpillChildren(anchor vertex.Id) {
	for _, child := range e.spills.childrenFor(anchor) {
		ref := e.g.Vertices.Coord(child)
		e.g.Vertices.ClearFlag(child, vertex.FlagSpillChild)
		e.g.Vertices.SetValue(child, value.Empty)
		e.g.Arrow.SetCell(ref.Sheet, ref.Coord.Row, ref.Coord.Col, value.Empty)
	}
	e.spills.clear(anchor)
}

// ClearSpillRegion is the explicit commit_spill_region/clear_spill_region
// counterpart (spec.md §4.9): drops anchor's spill region and marks it
// dirty so the next evaluation pass re-derives (or re-spills) its result.
func (e *Editor) ClearSpillRegion(anchor vertex.Id) {
	top := e.beginIfNeeded("clear_spill_region")
	children := append([]vertex.Id(nil), e.spills.childrenFor(anchor)...)
	priorValues := make([]value.LiteralValue, len(children))
	childCoords := make([]coord.CellRef, len(children))
	for i, c := range children {
		priorValues[i] = e.g.Vertices.Value(c)
		childCoords[i] = e.g.Vertices.Coord(c)
	}
	e.clearSpillChildren(anchor)
	e.g.Vertices.ClearFlag(anchor, vertex.FlagSpillAnchor)
	e.g.MarkDirty(anchor)
	e.record(ChangeEvent{
		Kind:             EvSpillClear,
		SpillAnchor:      anchor,
		SpillChildren:    childCoords,
		PriorChildValues: priorValues,
		PriorAnchorValue: e.g.Vertices.Value(anchor),
	})
	if top {
		e.EndCompound()
	}
}

// CommitSpillRegion forces a reconciliation pass over anchor's current
// value, the same logic the scheduler triggers automatically after every
// evaluation — exposed for callers (ingest, tests) that write an array
// value directly without going through the scheduler.
func (e *Editor) CommitSpillRegion(anchor vertex.Id) {
	e.ApplySpill(anchor, e.g.Vertices.Value(anchor))
}

func (e *Editor) revertSpillCommit(ev ChangeEvent) {
	e.clearSpillChildren(ev.SpillAnchor)
	e.g.Vertices.ClearFlag(ev.SpillAnchor, vertex.FlagSpillAnchor)
}

func (e *Editor) reapplySpillCommit(ev ChangeEvent) {
	e.ApplySpill(ev.SpillAnchor, e.g.Vertices.Value(ev.SpillAnchor))
}

func (e *Editor) revertSpillClear(ev ChangeEvent) {
	e.g.Vertices.SetValue(ev.SpillAnchor, ev.PriorAnchorValue)
	e.g.Vertices.SetFlag(ev.SpillAnchor, vertex.FlagSpillAnchor)
	for i, c := range ev.SpillChildren {
		id := e.g.EnsureVertex(c)
		e.g.Vertices.SetFlag(id, vertex.FlagSpillChild)
		e.g.Vertices.SetValue(id, ev.PriorChildValues[i])
		e.spills.set(id, ev.SpillAnchor)
	}
}

func (e *Editor) reapplySpillClear(ev ChangeEvent) {
	e.clearSpillChildren(ev.SpillAnchor)
	e.g.Vertices.ClearFlag(ev.SpillAnchor, vertex.FlagSpillAnchor)
}
