// Package ingest is the bulk-loading façade (spec.md §4.11): it stages
// per-sheet values and formulas in memory and, at Finish, installs them
// into a graph — vertices first, then values, then formulas parsed
// through a shared AST cache, each installed with its precedent edges.
// Finish opens an edge.Store batch around the formula loop, but
// graph.SetCellFormula opens and ends its own batch for every formula and
// edge.Store batches do not nest, so the load is not held in one batch:
// the delta slab may be folded into the CSR several times during a load.
package ingest

import (
	"github.com/rs/zerolog"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/formula"
	"github.com/PSU3D0/formualizer-sub003/internal/functions"
	"github.com/PSU3D0/formualizer-sub003/internal/graph"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
)

// stagedFormula is one formula source string awaiting parse at Finish.
type stagedFormula struct {
	ref coord.CellRef
	src string
}

// Builder stages (sheet, values[], formulas[]) in memory, per spec.md
// §4.11. Values/formulas staged for the same cell replace each other;
// the last Stage* call for a ref wins.
type Builder struct {
	g         *graph.Graph
	arena     *ast.Arena
	functions *functions.Registry
	log       zerolog.Logger

	values    map[coord.CellRef]value.LiteralValue
	formulaAt map[coord.CellRef]int // ref -> index into formulas, for last-wins
	formulas  []stagedFormula
	astCache  map[string]ast.Id
}

// New creates a Builder staging into g. arena must be the same *ast.Arena
// g was constructed with, so parsed formula nodes land in the graph's own
// arena rather than an orphaned one.
func New(g *graph.Graph, arena *ast.Arena, fns *functions.Registry, logger zerolog.Logger) *Builder {
	return &Builder{
		g:         g,
		arena:     arena,
		functions: fns,
		log:       logger.With().Str("component", "ingest").Logger(),
		values:    make(map[coord.CellRef]value.LiteralValue),
		formulaAt: make(map[coord.CellRef]int),
		astCache:  make(map[string]ast.Id),
	}
}

// StageValue stages a literal value at ref. Empty values and empty-string
// text are dropped, per spec.md §4.11 step 2 ("skipping Empty and
// empty-string").
func (b *Builder) StageValue(ref coord.CellRef, v value.LiteralValue) {
	if v.IsEmpty() {
		return
	}
	if v.Kind == value.KindText && v.Text == "" {
		return
	}
	b.values[ref] = v
	if idx, ok := b.formulaAt[ref]; ok {
		b.formulas = append(b.formulas[:idx], b.formulas[idx+1:]...)
		delete(b.formulaAt, ref)
		for r, i := range b.formulaAt {
			if i > idx {
				b.formulaAt[r] = i - 1
			}
		}
	}
}

// StageFormula stages formula source text (without a leading '=') at ref.
func (b *Builder) StageFormula(ref coord.CellRef, src string) {
	delete(b.values, ref)
	if idx, ok := b.formulaAt[ref]; ok {
		b.formulas[idx] = stagedFormula{ref: ref, src: src}
		return
	}
	b.formulaAt[ref] = len(b.formulas)
	b.formulas = append(b.formulas, stagedFormula{ref: ref, src: src})
}

// Result summarizes one Finish call.
type Result struct {
	ValuesInstalled   int
	FormulasInstalled int
	FormulasFailed    int
	CacheHits         int
}

// Finish performs the staged load in one batch, per spec.md §4.11:
//  1. ensure every referenced cell exists,
//  2. bulk-install base values into the graph and Arrow store,
//  3. parse formulas through the shared AST cache,
//  4. classify volatility via the function registry,
//  5. collect a flat (vertex, deps) adjacency,
//  6. install each formula's edges through graph.SetCellFormula, which
//     ends the surrounding edge.Store batch (batches do not nest).
func (b *Builder) Finish() Result {
	var result Result

	refs := make([]coord.CellRef, 0, len(b.values)+len(b.formulas))
	for ref := range b.values {
		refs = append(refs, ref)
	}
	for _, sf := range b.formulas {
		refs = append(refs, sf.ref)
	}
	b.g.Vertices.EnsureVertices(refs)

	for ref, v := range b.values {
		b.g.SetCellValue(ref, v)
		result.ValuesInstalled++
	}

	b.g.Edges.BeginBatch()
	for _, sf := range b.formulas {
		root, cached, err := b.parseCached(sf.ref, sf.src)
		if err != nil {
			result.FormulasFailed++
			b.log.Debug().Str("cell", sf.ref.Coord.A1()).Str("formula", sf.src).Err(err).Msg("formula parse failed")
			b.g.SetCellValue(sf.ref, value.ErrorOf(value.ErrName))
			continue
		}
		if cached {
			result.CacheHits++
		}

		precedentRefs, precedentRanges := formula.CollectPrecedents(b.arena, root, sf.ref.Sheet)
		volatile := b.arena.Get(root).ContainsVolatile
		if _, err := b.g.SetCellFormula(sf.ref, root, precedentRefs, precedentRanges, volatile); err != nil {
			result.FormulasFailed++
			b.log.Debug().Str("cell", sf.ref.Coord.A1()).Err(err).Msg("formula install failed")
			continue
		}
		result.FormulasInstalled++
	}
	b.g.Edges.EndBatch()

	b.log.Info().Int("values", result.ValuesInstalled).Int("formulas", result.FormulasInstalled).
		Int("failed", result.FormulasFailed).Int("cache_hits", result.CacheHits).Msg("ingest finished")
	return result
}

// parseCached parses src against ref's context, reusing a prior parse of
// the same source text — a formula's AST never depends on which cell
// installs it (refs carry their own absolute coordinates and an
// unqualified sheet resolves to the installing cell's sheet only at
// evaluation time), so identical text anywhere in the workbook shares one
// arena subtree.
func (b *Builder) parseCached(ref coord.CellRef, src string) (ast.Id, bool, error) {
	if id, ok := b.astCache[src]; ok {
		return id, true, nil
	}
	ctx := &formula.Context{
		CurrentSheet: ref.Sheet,
		CurrentCoord: ref.Coord,
		ResolveSheet: b.g.Sheets.ByName,
		Functions:    b.functions,
	}
	root, err := formula.Parse(src, ctx, b.arena)
	if err != nil {
		return 0, false, err
	}
	b.astCache[src] = root
	return root, false, nil
}
