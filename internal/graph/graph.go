// Package graph is the dependency graph façade (spec.md §4.4): it wires
// together the vertex store, edge store, stripe index, Arrow columnar
// store, and name table into the single mutation/query surface the
// scheduler and structural editor drive. No package above this one
// should need to touch vertex/edge/stripe/arrowstore directly.
package graph

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/arrowstore"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/edge"
	"github.com/PSU3D0/formualizer-sub003/internal/names"
	"github.com/PSU3D0/formualizer-sub003/internal/stripe"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

// OperationSummary reports a mutation's observable effect.
type OperationSummary struct {
	AffectedVertices   []vertex.Id
	CreatedPlaceholders []coord.CellRef
}

// Graph is the dependency graph façade.
type Graph struct {
	Vertices *vertex.Store
	Edges    *edge.Store
	Stripes  *stripe.Index
	Arrow    *arrowstore.Store
	Names    *names.Table
	Sheets   *coord.SheetRegistry

	arena *ast.Arena
	log   zerolog.Logger

	dirty    map[vertex.Id]struct{}
	volatile map[vertex.Id]struct{}
}

// New creates an empty graph with the given stripe configuration and a
// shared AST arena (owned by the caller, typically the ingest builder or
// workbook façade, so formula ASTs outlive any single graph mutation).
// Logging is a no-op until SetLogger is called; the workbook façade wires
// in its own zerolog.Logger at construction time per SPEC_FULL.md §2.1.
func New(stripeCfg stripe.Config, arena *ast.Arena) *Graph {
	return &Graph{
		Vertices: vertex.New(),
		Edges:    edge.New(),
		Stripes:  stripe.New(stripeCfg),
		Arrow:    arrowstore.New(),
		Names:    names.New(),
		Sheets:   coord.NewSheetRegistry(),
		arena:    arena,
		log:      zerolog.Nop(),
		dirty:    make(map[vertex.Id]struct{}),
		volatile: make(map[vertex.Id]struct{}),
	}
}

// SetLogger installs the structured logger mutation paths report through.
func (g *Graph) SetLogger(logger zerolog.Logger) { g.log = logger.With().Str("component", "graph").Logger() }

// AddSheet registers a new sheet by name, returning (0, false) if the
// name is already taken.
func (g *Graph) AddSheet(name string) (coord.SheetId, bool) {
	return g.Sheets.Add(name)
}

// RemoveSheet drops a sheet from the registry, sets every cell of that
// sheet to #REF! and marks their dependents dirty, so formulas on other
// sheets that read those cells pick up #REF! through normal dirty
// propagation once they are re-evaluated (spec.md §4.9).
func (g *Graph) RemoveSheet(id coord.SheetId) *OperationSummary {
	affected := make([]vertex.Id, 0)
	for vid := vertex.Reserved; int(vid) < g.Vertices.Len(); vid++ {
		c := g.Vertices.Coord(vid)
		if c.Sheet != id {
			continue
		}
		g.Vertices.SetFlag(vid, vertex.FlagIsReference)
		g.Vertices.SetValue(vid, value.ErrorOf(value.ErrRef))
		g.markDirtyDependents(vid, &affected)
		affected = append(affected, vid)
	}
	g.Sheets.Remove(id)
	g.log.Info().Uint32("sheet", uint32(id)).Int("affected", len(affected)).Msg("sheet removed")
	return &OperationSummary{AffectedVertices: affected}
}

// RenameSheet changes a sheet's registered name; no AST mutation is
// structurally required, but the interpreter's textual round-trip
// (get_cell canonical text) depends on ast.Node storing the sheet as an
// id, not baked-in text, which is how this AST is designed — so rename
// is purely a registry operation here.
func (g *Graph) RenameSheet(id coord.SheetId, newName string) error {
	if !g.Sheets.Rename(id, newName) {
		return apperr.New(apperr.NotFound, "sheet %d not found or name %q already taken", id, newName)
	}
	return nil
}

// EnsureVertex returns (creating if needed) the vertex id for ref.
func (g *Graph) EnsureVertex(ref coord.CellRef) vertex.Id {
	return g.Vertices.EnsureVertex(ref)
}

// SetCellValue sets a literal value at ref, clearing any formula.
func (g *Graph) SetCellValue(ref coord.CellRef, v value.LiteralValue) *OperationSummary {
	id, existed := g.Vertices.Lookup(ref)
	if !existed {
		id = g.Vertices.EnsureVertex(ref)
	}
	if g.Vertices.HasFlag(id, vertex.FlagHasFormula) {
		g.clearFormulaEdges(id)
	}
	g.Vertices.ClearFormula(id)
	g.Vertices.SetValue(id, v)
	g.Arrow.SetCell(ref.Sheet, ref.Coord.Row, ref.Coord.Col, v)

	affected := []vertex.Id{id}
	g.markDirtyDependents(id, &affected)
	g.log.Debug().Uint32("vertex", uint32(id)).Int("affected", len(affected)).Msg("cell value set")
	return &OperationSummary{AffectedVertices: affected}
}

// SetCellFormula attaches a formula AST to ref. precedentRefs/precedentRanges
// are the direct cell refs and range refs the formula's walk discovered;
// the caller (ingest/editor) supplies them since only it has the parser
// context needed to resolve sheet-qualified names.
func (g *Graph) SetCellFormula(ref coord.CellRef, root ast.Id, precedentRefs []coord.CellRef, precedentRanges []coord.RangeRef, volatile bool) (*OperationSummary, error) {
	id, existed := g.Vertices.Lookup(ref)
	if !existed {
		id = g.Vertices.EnsureVertex(ref)
	}

	if g.Vertices.HasFlag(id, vertex.FlagHasFormula) {
		g.clearFormulaEdges(id)
	}

	createdPlaceholders := make([]coord.CellRef, 0)
	precedentIDs := make([]vertex.Id, 0, len(precedentRefs))
	for _, pref := range precedentRefs {
		pid, already := g.Vertices.Lookup(pref)
		if !already {
			createdPlaceholders = append(createdPlaceholders, pref)
		}
		pid = g.Vertices.EnsureVertex(pref)
		if pid == id {
			return nil, apperr.New(apperr.FailedPrecondition, "formula at %v references itself", ref)
		}
		precedentIDs = append(precedentIDs, pid)
	}
	for _, r := range precedentRanges {
		if !g.Stripes.IsDirect(r) {
			continue
		}
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				pid := g.Vertices.EnsureVertex(coord.CellRef{Sheet: r.Sheet, Coord: coord.Coord{Row: row, Col: col}})
				if pid == id {
					return nil, apperr.New(apperr.FailedPrecondition, "formula at %v references itself", ref)
				}
				precedentIDs = append(precedentIDs, pid)
			}
		}
	}

	g.Edges.BeginBatch()
	for _, pid := range precedentIDs {
		g.Edges.AddEdge(id, pid)
	}
	g.Edges.EndBatch()

	for _, r := range precedentRanges {
		g.Stripes.AddRange(stripe.VertexId(id), r)
	}

	g.Vertices.SetFormula(id, root)
	if volatile {
		g.Vertices.SetFlag(id, vertex.FlagVolatile)
		g.volatile[id] = struct{}{}
	} else {
		g.Vertices.ClearFlag(id, vertex.FlagVolatile)
		delete(g.volatile, id)
	}

	affected := []vertex.Id{id}
	g.markDirty(id, &affected)
	g.markDirtyDependents(id, &affected)
	g.log.Debug().Uint32("vertex", uint32(id)).Int("precedents", len(precedentIDs)).
		Int("placeholders", len(createdPlaceholders)).Bool("volatile", volatile).Msg("cell formula set")
	return &OperationSummary{AffectedVertices: affected, CreatedPlaceholders: createdPlaceholders}, nil
}

// clearFormulaEdges removes id's direct precedent edges and stripe
// entries, in preparation for either clearing or replacing its formula.
func (g *Graph) clearFormulaEdges(id vertex.Id) {
	g.Edges.ClearPrecedents(id)
	g.Stripes.RemoveRangeEdges(stripe.VertexId(id))
}

// GetCellValue returns ref's current value (Empty if never set).
func (g *Graph) GetCellValue(ref coord.CellRef) value.LiteralValue {
	id, ok := g.Vertices.Lookup(ref)
	if !ok {
		return value.Empty
	}
	return g.Vertices.Value(id)
}

// GetCell returns both the formula AST id (0 if none) and the current
// value for ref.
func (g *Graph) GetCell(ref coord.CellRef) (ast.Id, value.LiteralValue, bool) {
	id, ok := g.Vertices.Lookup(ref)
	if !ok {
		return 0, value.Empty, false
	}
	return g.Vertices.ASTId(id), g.Vertices.Value(id), true
}

// Arena returns the shared AST arena backing formula vertices.
func (g *Graph) Arena() *ast.Arena { return g.arena }

// DefineName defines e and returns its id.
func (g *Graph) DefineName(e names.Entry) names.Id { return g.Names.Define(e) }

// DeleteName removes a name definition.
func (g *Graph) DeleteName(scope names.Scope, sheet coord.SheetId, name string) bool {
	return g.Names.Delete(scope, sheet, name)
}

// ResolveNameEntry resolves name as visible from currentSheet.
func (g *Graph) ResolveNameEntry(currentSheet coord.SheetId, name string) (names.Id, *names.Entry, bool) {
	return g.Names.Resolve(currentSheet, name)
}

// markDirty marks id alone dirty (a no-op if it already is); propagation
// to dependents is markDirtyDependents' job. affected is left unchanged.
func (g *Graph) markDirty(id vertex.Id, affected *[]vertex.Id) {
	if _, already := g.dirty[id]; already {
		return
	}
	g.dirty[id] = struct{}{}
	g.Vertices.MarkDirty(id)
}

// markDirtyDependents propagates dirtiness from a changed cell to every
// formula that reads it directly (edge store) or via a stripe (range
// dependency), transitively.
func (g *Graph) markDirtyDependents(changed vertex.Id, affected *[]vertex.Id) {
	queue := []vertex.Id{changed}
	seen := map[vertex.Id]struct{}{changed: {}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, dep := range g.Edges.Dependents(cur) {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			g.markDirty(dep, affected)
			*affected = append(*affected, dep)
			queue = append(queue, dep)
		}

		c := g.Vertices.Coord(cur)
		for _, cand := range g.Stripes.CandidatesForCell(c.Sheet, c.Coord.Row, c.Coord.Col) {
			vid := vertex.Id(cand)
			if _, ok := seen[vid]; ok {
				continue
			}
			seen[vid] = struct{}{}
			g.markDirty(vid, affected)
			*affected = append(*affected, vid)
			queue = append(queue, vid)
		}
	}
}

// MarkDirty flags id for recomputation without changing its stored value,
// used by the structural editor when a vertex's inputs are disturbed
// indirectly (e.g. a spill anchor whose child cell was overwritten).
func (g *Graph) MarkDirty(id vertex.Id) {
	affected := []vertex.Id{}
	g.markDirty(id, &affected)
}

// EvaluationVertices returns the union of dirty and volatile vertices —
// the candidate set for evaluate_all.
func (g *Graph) EvaluationVertices() []vertex.Id {
	seen := make(map[vertex.Id]struct{}, len(g.dirty)+len(g.volatile))
	out := make([]vertex.Id, 0, len(g.dirty)+len(g.volatile))
	for id := range g.dirty {
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for id := range g.volatile {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// ClearDirty removes id from the dirty set after successful evaluation.
func (g *Graph) ClearDirty(id vertex.Id) { delete(g.dirty, id) }

// MarkAllVolatileDirty requeues every volatile vertex for the next pass.
func (g *Graph) MarkAllVolatileDirty() {
	for id := range g.volatile {
		g.dirty[id] = struct{}{}
		g.Vertices.MarkDirty(id)
	}
}

// MoveVertex rebinds an existing vertex to a new coordinate, used by the
// structural editor when insert/delete rows or columns shift a live cell
// in place without changing its identity or edges. Both the old and new
// coordinates are marked dirty-dependent, since formulas watching either
// position (directly or via a stripe) may need to re-evaluate.
func (g *Graph) MoveVertex(id vertex.Id, newRef coord.CellRef) *OperationSummary {
	old := g.Vertices.Coord(id)
	v := g.Vertices.Value(id)
	g.Vertices.Rebind(id, newRef)
	g.Arrow.SetCell(old.Sheet, old.Coord.Row, old.Coord.Col, value.Empty)
	if !v.IsArray() {
		g.Arrow.SetCell(newRef.Sheet, newRef.Coord.Row, newRef.Coord.Col, v)
	}

	affected := []vertex.Id{id}
	g.markDirtyDependents(id, &affected)
	for _, cand := range g.Stripes.CandidatesForCell(old.Sheet, old.Coord.Row, old.Coord.Col) {
		vid := vertex.Id(cand)
		g.markDirty(vid, &affected)
		affected = append(affected, vid)
		g.markDirtyDependents(vid, &affected)
	}
	g.log.Debug().Uint32("vertex", uint32(id)).Str("from", old.Coord.A1()).Str("to", newRef.Coord.A1()).Msg("vertex moved")
	return &OperationSummary{AffectedVertices: affected}
}

// RemoveVertexAt deletes the vertex at ref (if any), clearing its formula
// edges and stripe entries first. Returns the removed id, or (0, false) if
// ref had no vertex.
func (g *Graph) RemoveVertexAt(ref coord.CellRef) (vertex.Id, bool) {
	id, ok := g.Vertices.Lookup(ref)
	if !ok {
		return 0, false
	}
	if g.Vertices.HasFlag(id, vertex.FlagHasFormula) {
		g.clearFormulaEdges(id)
	}
	g.Edges.ClearPrecedents(id)
	g.Vertices.Remove(ref)
	g.Arrow.SetCell(ref.Sheet, ref.Coord.Row, ref.Coord.Col, value.Empty)
	g.log.Debug().Uint32("vertex", uint32(id)).Str("cell", ref.Coord.A1()).Msg("vertex removed")
	return id, true
}

// IsLive reports whether id still resolves from the vertex index at its
// own recorded coordinate — i.e. it hasn't been Remove()'d. Vertex ids are
// never recycled, so a removed id's coordinate slot may look populated
// without this check.
func (g *Graph) IsLive(id vertex.Id) bool {
	c := g.Vertices.Coord(id)
	got, ok := g.Vertices.Lookup(c)
	return ok && got == id
}

// AllVertexIDs returns every live (non-removed) vertex id, used by the
// structural editor to sweep a sheet for row/column shifts.
func (g *Graph) AllVertexIDs() []vertex.Id {
	out := make([]vertex.Id, 0, g.Vertices.Len())
	for vid := vertex.Reserved; int(vid) < g.Vertices.Len(); vid++ {
		if g.IsLive(vid) {
			out = append(out, vid)
		}
	}
	return out
}

// String implements fmt.Stringer for debugging/logging.
func (g *Graph) String() string {
	return fmt.Sprintf("graph{vertices=%d dirty=%d volatile=%d}", g.Vertices.Len(), len(g.dirty), len(g.volatile))
}
