package editor

import (
	"sort"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/formula"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

// Axis discriminates which dimension a structural edit shifts along.
type Axis uint8

const (
	AxisRow Axis = iota
	AxisCol
)

// StructuralResult summarizes one insert/delete rows/cols call.
type StructuralResult struct {
	Moved        int
	Removed      int
	ASTsRewritten int
}

// InsertRows shifts every row at or below `at` down by count and shifts
// every formula's references into this sheet accordingly, formulas on the
// same sheet included (spec.md §4.9).
func (e *Editor) InsertRows(sheet coord.SheetId, at, count uint32) *StructuralResult {
	return e.shiftBand(sheet, AxisRow, at, count, true)
}

// DeleteRows removes the count rows starting at `at`, shifting everything
// below up and rewriting references that fell inside the deleted band to
// #REF!.
func (e *Editor) DeleteRows(sheet coord.SheetId, at, count uint32) *StructuralResult {
	return e.shiftBand(sheet, AxisRow, at, count, false)
}

// InsertCols is InsertRows' column analogue.
func (e *Editor) InsertCols(sheet coord.SheetId, at, count uint32) *StructuralResult {
	return e.shiftBand(sheet, AxisCol, at, count, true)
}

// DeleteCols is DeleteRows' column analogue.
func (e *Editor) DeleteCols(sheet coord.SheetId, at, count uint32) *StructuralResult {
	return e.shiftBand(sheet, AxisCol, at, count, false)
}

func axisIndex(c coord.Coord, axis Axis) uint32 {
	if axis == AxisRow {
		return c.Row
	}
	return c.Col
}

func withAxisIndex(c coord.Coord, axis Axis, v uint32) coord.Coord {
	out := c
	if axis == AxisRow {
		out.Row = v
	} else {
		out.Col = v
	}
	return out
}

// shiftBand is the shared implementation behind InsertRows/DeleteRows and
// their column analogues. It is its own top-level compound so the whole
// operation (vertex moves + removals + AST rewrites) undoes atomically.
func (e *Editor) shiftBand(sheet coord.SheetId, axis Axis, at, count uint32, insert bool) *StructuralResult {
	top := e.beginIfNeeded(bandDesc(axis, insert))
	result := &StructuralResult{}

	e.moveVerticesForBand(sheet, axis, at, count, insert, result)
	e.rewriteFormulasForBand(sheet, axis, at, count, insert, result)

	if top {
		e.EndCompound()
	}
	return result
}

func bandDesc(axis Axis, insert bool) string {
	switch {
	case axis == AxisRow && insert:
		return "insert_rows"
	case axis == AxisRow && !insert:
		return "delete_rows"
	case axis == AxisCol && insert:
		return "insert_cols"
	default:
		return "delete_cols"
	}
}

// moveVerticesForBand relocates (or removes) every vertex on `sheet` whose
// coordinate falls at/after the edited band, per spec.md §4.9: "Cells at
// or below `at` shift by ±count; their coordinate is updated in place;
// their in_edges and out_edges are preserved."
func (e *Editor) moveVerticesForBand(sheet coord.SheetId, axis Axis, at, count uint32, insert bool, result *StructuralResult) {
	var candidates []vertex.Id
	for _, id := range e.g.AllVertexIDs() {
		ref := e.g.Vertices.Coord(id)
		if ref.Sheet != sheet {
			continue
		}
		if axisIndex(ref.Coord, axis) >= at {
			candidates = append(candidates, id)
		}
	}

	if insert {
		// shift forward: process highest index first so a move never
		// clobbers a slot another candidate is about to vacate.
		sort.Slice(candidates, func(i, j int) bool {
			return axisIndex(e.g.Vertices.Coord(candidates[i]), axis) > axisIndex(e.g.Vertices.Coord(candidates[j]), axis)
		})
		for _, id := range candidates {
			ref := e.g.Vertices.Coord(id)
			newCoord := withAxisIndex(ref.Coord, axis, axisIndex(ref.Coord, axis)+count)
			newRef := coord.CellRef{Sheet: sheet, Coord: newCoord}
			e.MoveVertex(ref, newRef)
			result.Moved++
		}
		return
	}

	// delete: vertices strictly inside [at, at+count) are removed outright;
	// everything past the band shifts back by count. Remove first (in any
	// order), then shift ascending so a move never lands on a still-occupied
	// slot.
	var toRemove, toShift []vertex.Id
	for _, id := range candidates {
		ref := e.g.Vertices.Coord(id)
		idx := axisIndex(ref.Coord, axis)
		if idx < at+count {
			toRemove = append(toRemove, id)
		} else {
			toShift = append(toShift, id)
		}
	}
	for _, id := range toRemove {
		ref := e.g.Vertices.Coord(id)
		e.RemoveVertex(ref)
		result.Removed++
	}
	sort.Slice(toShift, func(i, j int) bool {
		return axisIndex(e.g.Vertices.Coord(toShift[i]), axis) < axisIndex(e.g.Vertices.Coord(toShift[j]), axis)
	})
	for _, id := range toShift {
		ref := e.g.Vertices.Coord(id)
		newCoord := withAxisIndex(ref.Coord, axis, axisIndex(ref.Coord, axis)-count)
		newRef := coord.CellRef{Sheet: sheet, Coord: newCoord}
		e.MoveVertex(ref, newRef)
		result.Moved++
	}
}

// rewriteFormulasForBand walks every formula vertex's AST (on any sheet)
// and rewrites references that target `sheet`'s edited band, per spec.md
// §4.9's relative/absolute reference rules. Rewritten ASTs are cloned
// (never mutated in place), since the same node id may be shared by other
// formulas via the ingest builder's AST dedup cache.
func (e *Editor) rewriteFormulasForBand(sheet coord.SheetId, axis Axis, at, count uint32, insert bool, result *StructuralResult) {
	for _, id := range e.g.AllVertexIDs() {
		if !e.g.Vertices.HasFlag(id, vertex.FlagHasFormula) {
			continue
		}
		ref := e.g.Vertices.Coord(id)
		root := e.g.Vertices.ASTId(id)

		rw := &bandRewriter{arena: e.arena, home: ref.Sheet, target: sheet, axis: axis, at: at, count: count, insert: insert}
		newRoot, changed := rw.clone(root)
		if !changed {
			continue
		}

		refs, ranges := formula.CollectPrecedents(e.arena, newRoot, ref.Sheet)
		volatile := e.arena.Get(newRoot).ContainsVolatile
		prior := e.precedents[id]
		priorAST := e.g.Vertices.ASTId(id)

		_, err := e.g.SetCellFormula(ref, newRoot, refs, ranges, volatile)
		if err != nil {
			continue
		}
		e.precedents[id] = precedentInfo{refs: refs, ranges: ranges, volatile: volatile}

		ev := ChangeEvent{
			Kind:            EvSetFormula,
			Cell:            ref,
			PriorHadFormula: true,
			PriorAST:        priorAST,
			PriorPrecedents: prior,
			NewHadFormula:   true,
			NewPrecedents:   precedentInfo{refs: refs, ranges: ranges, volatile: volatile},
		}
		e.record(ev)
		result.ASTsRewritten++
	}
}

// bandRewriter clones an AST subtree, shifting or invalidating references
// that target `target`'s [at, at+count) band along `axis`.
type bandRewriter struct {
	arena  *ast.Arena
	home   coord.SheetId // the sheet the formula itself lives on
	target coord.SheetId
	axis   Axis
	at     uint32
	count  uint32
	insert bool
}

// clone returns a node equal in meaning to id but with affected refs
// rewritten, allocating new arena nodes only along the path that changed.
// The bool return reports whether anything in the subtree changed.
func (rw *bandRewriter) clone(id ast.Id) (ast.Id, bool) {
	n := *rw.arena.Get(id)
	switch n.Kind {
	case ast.KindRef:
		refSheet := rw.home
		if n.HasSheet {
			refSheet = n.Sheet
		}
		if refSheet != rw.target {
			return id, false
		}
		newCoord, dead := rw.shiftCoord(n.Ref)
		if dead {
			n.Ref = coord.Coord{}
			return rw.arena.Add(n), true
		}
		if newCoord == n.Ref {
			return id, false
		}
		n.Ref = newCoord
		return rw.arena.Add(n), true

	case ast.KindRange:
		refSheet := rw.home
		if n.HasSheet {
			refSheet = n.Sheet
		}
		if refSheet != rw.target {
			return id, false
		}
		newRange, collapsed := rw.shiftRange(n.Range)
		if collapsed {
			n.Range.Start = coord.Coord{}
			n.Range.End = coord.Coord{}
			return rw.arena.Add(n), true
		}
		if newRange == n.Range {
			return id, false
		}
		n.Range = newRange
		return rw.arena.Add(n), true

	case ast.KindUnaryOp:
		left, changed := rw.clone(n.Left)
		if !changed {
			return id, false
		}
		n.Left = left
		return rw.arena.Add(n), true

	case ast.KindBinaryOp:
		left, lc := rw.clone(n.Left)
		right, rc := rw.clone(n.Right)
		if !lc && !rc {
			return id, false
		}
		n.Left, n.Right = left, right
		return rw.arena.Add(n), true

	case ast.KindCall:
		any := false
		args := make([]ast.Id, len(n.Args))
		for i, a := range n.Args {
			na, changed := rw.clone(a)
			args[i] = na
			any = any || changed
		}
		if !any {
			return id, false
		}
		n.Args = args
		return rw.arena.Add(n), true

	case ast.KindArrayLit:
		any := false
		rows := make([][]ast.Id, len(n.Rows))
		for r, row := range n.Rows {
			newRow := make([]ast.Id, len(row))
			for c, cell := range row {
				nc, changed := rw.clone(cell)
				newRow[c] = nc
				any = any || changed
			}
			rows[r] = newRow
		}
		if !any {
			return id, false
		}
		n.Rows = rows
		return rw.arena.Add(n), true

	case ast.KindUnion:
		any := false
		parts := make([]ast.Id, len(n.Parts))
		for i, p := range n.Parts {
			np, changed := rw.clone(p)
			parts[i] = np
			any = any || changed
		}
		if !any {
			return id, false
		}
		n.Parts = parts
		return rw.arena.Add(n), true

	default: // KindLiteral, KindName
		return id, false
	}
}

// shiftCoord applies the insert/delete band to a single reference.
// Absolute refs ($A$1 on the edited axis) are never shifted per spec.md
// §4.9. Returns (_, true) when the ref falls strictly inside a deleted
// band and must become the dead-reference sentinel (#REF!).
func (rw *bandRewriter) shiftCoord(c coord.Coord) (coord.Coord, bool) {
	if axisAbs(c, rw.axis) {
		return c, false
	}
	idx := axisIndex(c, rw.axis)
	if rw.insert {
		if idx >= rw.at {
			return withAxisIndex(c, rw.axis, idx+rw.count), false
		}
		return c, false
	}
	if idx >= rw.at && idx < rw.at+rw.count {
		return coord.Coord{}, true
	}
	if idx >= rw.at+rw.count {
		return withAxisIndex(c, rw.axis, idx-rw.count), false
	}
	return c, false
}

func axisAbs(c coord.Coord, axis Axis) bool {
	if axis == AxisRow {
		return c.RowAbs
	}
	return c.ColAbs
}

// shiftRange shifts both endpoints of r, contracting when the deleted band
// lies strictly inside the range and collapsing to the dead sentinel when
// the band covers the range entirely, per spec.md §4.9.
func (rw *bandRewriter) shiftRange(r coord.RangeRef) (coord.RangeRef, bool) {
	startIdx, endIdx := axisIndex(r.Start, rw.axis), axisIndex(r.End, rw.axis)

	if rw.insert {
		out := r
		if !axisAbs(r.Start, rw.axis) && startIdx >= rw.at {
			out.Start = withAxisIndex(out.Start, rw.axis, startIdx+rw.count)
		}
		if !axisAbs(r.End, rw.axis) && endIdx >= rw.at {
			out.End = withAxisIndex(out.End, rw.axis, endIdx+rw.count)
		}
		return out, false
	}

	bandEnd := rw.at + rw.count - 1
	if startIdx >= rw.at && endIdx <= bandEnd {
		// the deleted band covers the whole range
		return coord.RangeRef{}, true
	}

	out := r
	if !axisAbs(r.Start, rw.axis) {
		switch {
		case startIdx >= rw.at && startIdx <= bandEnd:
			out.Start = withAxisIndex(out.Start, rw.axis, rw.at)
		case startIdx > bandEnd:
			out.Start = withAxisIndex(out.Start, rw.axis, startIdx-rw.count)
		}
	}
	if !axisAbs(r.End, rw.axis) {
		switch {
		case endIdx >= rw.at && endIdx <= bandEnd:
			out.End = withAxisIndex(out.End, rw.axis, rw.at-1)
		case endIdx > bandEnd:
			out.End = withAxisIndex(out.End, rw.axis, endIdx-rw.count)
		}
	}
	return out, false
}
