// Package editor is the structural editor (spec.md §4.9): the single
// mutation surface above internal/graph that adds nestable transactions,
// a change log of invertible events, an undo/redo engine, and the
// structural row/column insert-delete + AST reference rewriting that
// internal/graph alone does not attempt. Grounded on the teacher's
// Storage/DependencyGraph split (storage.go/graph.go) the same way
// internal/graph is, but generalized here into the one layer spec.md
// requires for reversible edits.
package editor

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/graph"
	"github.com/PSU3D0/formualizer-sub003/internal/names"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

// EventKind discriminates a ChangeEvent's payload.
type EventKind uint8

const (
	EvSetValue EventKind = iota
	EvSetFormula
	EvMoveVertex
	EvRemoveVertex
	EvAddSheet
	EvRemoveSheet
	EvRenameSheet
	EvDefineName
	EvDeleteName
	EvSpillCommit
	EvSpillClear
)

// precedentInfo is the precedent set a formula was installed with, kept
// alongside the graph so undo can reinstall a prior formula's edges —
// the graph itself discards precedent lists once they're folded into
// edges/stripes.
type precedentInfo struct {
	refs     []coord.CellRef
	ranges   []coord.RangeRef
	volatile bool
}

// ChangeEvent is one invertible mutation. Only the fields relevant to Kind
// are populated, following the same tagged-variant shape as ast.Node.
type ChangeEvent struct {
	Kind EventKind

	Cell coord.CellRef

	PriorHadFormula bool
	PriorValue      value.LiteralValue
	PriorAST        ast.Id
	PriorPrecedents precedentInfo

	NewValue      value.LiteralValue
	NewHadFormula bool
	NewPrecedents precedentInfo

	PriorCoord coord.CellRef // EvMoveVertex / EvRemoveVertex inverse target

	SheetID        coord.SheetId
	SheetName      string
	PriorSheetName string

	NameID    names.Id
	PriorName *names.Entry
	NewName   names.Entry

	SpillAnchor      vertex.Id
	SpillChildren    []coord.CellRef
	PriorChildValues []value.LiteralValue
	PriorAnchorValue value.LiteralValue
}

// Compound is a named, undoable group of ChangeEvents produced by one
// begin_compound/end_compound bracket (or a single top-level operation,
// auto-wrapped in its own one-event compound).
type Compound struct {
	ID          uuid.UUID
	Description string
	Events      []ChangeEvent
}

// Editor is the structural editing façade bound to one graph and its
// shared AST arena.
type Editor struct {
	g     *graph.Graph
	arena *ast.Arena
	log   zerolog.Logger

	retention int
	pending   *Compound

	undo []Compound
	redo []Compound

	precedents map[vertex.Id]precedentInfo

	spills *SpillRegistry
}

// New creates an Editor over g/arena with the given undo retention cap
// (config.Config.UndoRetention; 0 disables truncation).
func New(g *graph.Graph, arena *ast.Arena, retention int, logger zerolog.Logger) *Editor {
	return &Editor{
		g:          g,
		arena:      arena,
		log:        logger.With().Str("component", "editor").Logger(),
		retention:  retention,
		precedents: make(map[vertex.Id]precedentInfo),
		spills:     newSpillRegistry(),
	}
}

// beginIfNeeded opens a compound if none is pending, returning whether
// this call is the one that should close it again.
func (e *Editor) beginIfNeeded(desc string) bool {
	if e.pending == nil {
		e.pending = &Compound{ID: uuid.New(), Description: desc}
		return true
	}
	return false
}

// BeginCompound starts an explicit multi-operation undo group; every op
// method called before the matching EndCompound joins this one group.
func (e *Editor) BeginCompound(desc string) {
	if e.pending != nil {
		return // already inside a compound; nesting joins the outer one
	}
	e.pending = &Compound{ID: uuid.New(), Description: desc}
}

// EndCompound closes the current compound (if non-empty) onto the undo
// stack and clears the redo stack, per spec.md §4.9's linear-history rule.
func (e *Editor) EndCompound() {
	if e.pending == nil {
		return
	}
	c := *e.pending
	e.pending = nil
	if len(c.Events) == 0 {
		return
	}
	e.undo = append(e.undo, c)
	if e.retention > 0 && len(e.undo) > e.retention {
		e.undo = e.undo[len(e.undo)-e.retention:]
	}
	e.redo = nil
	e.log.Debug().Str("compound", c.ID.String()).Str("desc", c.Description).Int("events", len(c.Events)).Msg("compound committed")
}

// Begin starts a nested savepoint within the current (or a new, implicit)
// compound, returning a token Rollback consumes to discard everything
// recorded since.
func (e *Editor) Begin() int {
	e.beginIfNeeded("transaction")
	return len(e.pending.Events)
}

// Rollback undoes every event recorded since the matching Begin, without
// touching the undo/redo stacks.
func (e *Editor) Rollback(savepoint int) {
	if e.pending == nil {
		return
	}
	for i := len(e.pending.Events) - 1; i >= savepoint; i-- {
		e.applyInverse(e.pending.Events[i])
	}
	e.pending.Events = e.pending.Events[:savepoint]
}

func (e *Editor) record(ev ChangeEvent) {
	e.beginIfNeeded("edit")
	e.pending.Events = append(e.pending.Events, ev)
}

// Undo pops the most recent compound and applies its inverses in reverse
// order, pushing it onto the redo stack. Per spec.md §4.9's Open Question
// resolution, undo history is a linear stack of compounds (not a tree):
// there is no "non-tail" compound to undo out of order.
func (e *Editor) Undo() error {
	if len(e.undo) == 0 {
		return apperr.New(apperr.FailedPrecondition, "editor: nothing to undo")
	}
	c := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	for i := len(c.Events) - 1; i >= 0; i-- {
		e.applyInverse(c.Events[i])
	}
	e.redo = append(e.redo, c)
	e.log.Info().Str("compound", c.ID.String()).Str("desc", c.Description).Msg("undo applied")
	return nil
}

// Redo replays the most recently undone compound forward, in its
// original event order, pushing it back onto the undo stack.
func (e *Editor) Redo() error {
	if len(e.redo) == 0 {
		return apperr.New(apperr.FailedPrecondition, "editor: nothing to redo")
	}
	c := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	for _, ev := range c.Events {
		e.applyForward(ev)
	}
	e.undo = append(e.undo, c)
	e.log.Info().Str("compound", c.ID.String()).Str("desc", c.Description).Msg("redo applied")
	return nil
}

// CanUndo/CanRedo report whether the respective stack is non-empty.
func (e *Editor) CanUndo() bool { return len(e.undo) > 0 }
func (e *Editor) CanRedo() bool { return len(e.redo) > 0 }

// --- cell operations ---

// SetCellValue sets a literal value at ref, recording its inverse. Editing
// a spill child clears its whole spill region first, per spec.md §4.10.
func (e *Editor) SetCellValue(ref coord.CellRef, v value.LiteralValue) *graph.OperationSummary {
	top := e.beginIfNeeded("set_cell_value")
	e.clearSpillIfChild(ref)
	ev := e.snapshotPrior(ref)
	summary := e.g.SetCellValue(ref, v)
	e.forgetPrecedents(ref)
	ev.Cell = ref
	ev.Kind = EvSetValue
	ev.NewValue = v
	e.record(ev)
	if top {
		e.EndCompound()
	}
	return summary
}

// SetCellFormula attaches a formula to ref, recording its inverse.
// precedentRefs/precedentRanges are the direct/range dependencies the
// caller's parse discovered (ingest/workbook own the parser context).
func (e *Editor) SetCellFormula(ref coord.CellRef, root ast.Id, precedentRefs []coord.CellRef, precedentRanges []coord.RangeRef, volatile bool) (*graph.OperationSummary, error) {
	top := e.beginIfNeeded("set_cell_formula")
	e.clearSpillIfChild(ref)
	ev := e.snapshotPrior(ref)
	summary, err := e.g.SetCellFormula(ref, root, precedentRefs, precedentRanges, volatile)
	if err != nil {
		if top {
			e.pending = nil
		}
		return nil, err
	}
	id := e.g.EnsureVertex(ref)
	e.precedents[id] = precedentInfo{refs: precedentRefs, ranges: precedentRanges, volatile: volatile}
	ev.Cell = ref
	ev.Kind = EvSetFormula
	ev.NewHadFormula = true
	ev.NewPrecedents = precedentInfo{refs: precedentRefs, ranges: precedentRanges, volatile: volatile}
	e.record(ev)
	if top {
		e.EndCompound()
	}
	return summary, nil
}

// snapshotPrior captures ref's current value/formula/precedent state into
// a partially-filled ChangeEvent, before the caller overwrites it.
func (e *Editor) snapshotPrior(ref coord.CellRef) ChangeEvent {
	id, existed := e.g.Vertices.Lookup(ref)
	var ev ChangeEvent
	if !existed {
		return ev
	}
	ev.PriorValue = e.g.Vertices.Value(id)
	ev.PriorHadFormula = e.g.Vertices.HasFlag(id, vertex.FlagHasFormula)
	if ev.PriorHadFormula {
		ev.PriorAST = e.g.Vertices.ASTId(id)
		ev.PriorPrecedents = e.precedents[id]
	}
	return ev
}

func (e *Editor) forgetPrecedents(ref coord.CellRef) {
	if id, ok := e.g.Vertices.Lookup(ref); ok {
		delete(e.precedents, id)
	}
}

// clearSpillIfChild drops ref's whole spill region before it is
// overwritten, if ref is currently a spill child, and marks the anchor
// dirty so it retries its spill on the next evaluation pass.
func (e *Editor) clearSpillIfChild(ref coord.CellRef) {
	id, ok := e.g.Vertices.Lookup(ref)
	if !ok || !e.g.Vertices.HasFlag(id, vertex.FlagSpillChild) {
		return
	}
	anchor, ok := e.spills.anchorFor(id)
	if !ok {
		return
	}
	e.ClearSpillRegion(anchor)
}

// RemoveVertex deletes the vertex at ref entirely, recording its inverse.
func (e *Editor) RemoveVertex(ref coord.CellRef) {
	top := e.beginIfNeeded("remove_vertex")
	ev := e.snapshotPrior(ref)
	ev.Cell = ref
	ev.Kind = EvRemoveVertex
	e.g.RemoveVertexAt(ref)
	e.forgetPrecedents(ref)
	e.record(ev)
	if top {
		e.EndCompound()
	}
}

// MoveVertex rebinds the vertex at ref to newRef, recording its inverse.
func (e *Editor) MoveVertex(ref coord.CellRef, newRef coord.CellRef) (*graph.OperationSummary, error) {
	id, ok := e.g.Vertices.Lookup(ref)
	if !ok {
		return nil, apperr.New(apperr.NotFound, "editor: no vertex at %v", ref)
	}
	top := e.beginIfNeeded("move_vertex")
	summary := e.g.MoveVertex(id, newRef)
	e.record(ChangeEvent{Kind: EvMoveVertex, Cell: newRef, PriorCoord: ref})
	if top {
		e.EndCompound()
	}
	return summary, nil
}

// --- sheet operations ---

// AddSheet registers a new sheet, recording its inverse.
func (e *Editor) AddSheet(name string) (coord.SheetId, error) {
	top := e.beginIfNeeded("add_sheet")
	id, ok := e.g.AddSheet(name)
	if !ok {
		if top {
			e.pending = nil
		}
		return 0, apperr.New(apperr.AlreadyExists, "editor: sheet %q already exists", name)
	}
	e.record(ChangeEvent{Kind: EvAddSheet, SheetID: id, SheetName: name})
	if top {
		e.EndCompound()
	}
	return id, nil
}

// RemoveSheet drops a sheet; graph.RemoveSheet sets the sheet's cells to
// #REF! and dirties their dependents. Only the sheet's name is recorded:
// undo re-adds a sheet of that name under a new id and restores neither
// the removed sheet's cells (values, formulas, edges) nor the prior
// values of formulas that went #REF!.
func (e *Editor) RemoveSheet(id coord.SheetId) *graph.OperationSummary {
	top := e.beginIfNeeded("remove_sheet")
	name, _ := e.g.Sheets.Name(id)

	// graph.RemoveSheet sets the sheet's own cells to Error(Ref) and
	// dirties their dependents; no per-vertex snapshot is taken here.
	summary := e.g.RemoveSheet(id)
	e.record(ChangeEvent{Kind: EvRemoveSheet, SheetID: id, SheetName: name})
	if top {
		e.EndCompound()
	}
	return summary
}

// RenameSheet changes a sheet's registered name, recording its inverse.
func (e *Editor) RenameSheet(id coord.SheetId, newName string) error {
	top := e.beginIfNeeded("rename_sheet")
	priorName, _ := e.g.Sheets.Name(id)
	if err := e.g.RenameSheet(id, newName); err != nil {
		if top {
			e.pending = nil
		}
		return err
	}
	e.record(ChangeEvent{Kind: EvRenameSheet, SheetID: id, SheetName: newName, PriorSheetName: priorName})
	if top {
		e.EndCompound()
	}
	return nil
}

// --- named ranges ---

// DefineName defines (or redefines) a name, recording its inverse.
func (e *Editor) DefineName(entry names.Entry) names.Id {
	top := e.beginIfNeeded("define_name")
	_, prior, hadPrior := e.g.Names.Resolve(entry.Sheet, entry.Name)
	var priorCopy *names.Entry
	if hadPrior {
		p := *prior
		priorCopy = &p
	}
	id := e.g.DefineName(entry)
	e.record(ChangeEvent{Kind: EvDefineName, NameID: id, PriorName: priorCopy, NewName: entry})
	if top {
		e.EndCompound()
	}
	return id
}

// UpdateName is an alias for DefineName: redefining an existing key
// replaces its target in place, per names.Table.Define's semantics.
func (e *Editor) UpdateName(entry names.Entry) names.Id { return e.DefineName(entry) }

// DeleteName removes a name definition, recording its inverse.
func (e *Editor) DeleteName(scope names.Scope, sheet coord.SheetId, name string) bool {
	top := e.beginIfNeeded("delete_name")
	id, prior, ok := e.g.Names.Resolve(sheet, name)
	if !ok {
		if top {
			e.pending = nil
		}
		return false
	}
	priorCopy := *prior
	removed := e.g.DeleteName(scope, sheet, name)
	if removed {
		e.record(ChangeEvent{Kind: EvDeleteName, NameID: id, PriorName: &priorCopy})
	}
	if top {
		e.EndCompound()
	}
	return removed
}

// --- inverse application ---

func (e *Editor) applyInverse(ev ChangeEvent) {
	switch ev.Kind {
	case EvSetValue, EvSetFormula:
		e.restoreCell(ev.Cell, ev)
	case EvRemoveVertex:
		e.restoreCell(ev.Cell, ev)
	case EvMoveVertex:
		if id, ok := e.g.Vertices.Lookup(ev.Cell); ok {
			e.g.MoveVertex(id, ev.PriorCoord)
		}
	case EvAddSheet:
		e.g.RemoveSheet(ev.SheetID)
	case EvRemoveSheet:
		// re-adding a removed sheet under its old name gives it a *new*
		// id (ids are never reused); cells broken by the removal stay
		// Ref-broken, matching a real spreadsheet's "undo doesn't know
		// the old formulas" behavior once an id-bearing structure is
		// gone.
		e.g.AddSheet(ev.SheetName)
	case EvRenameSheet:
		e.g.RenameSheet(ev.SheetID, ev.PriorSheetName)
	case EvDefineName:
		if ev.PriorName != nil {
			e.g.DefineName(*ev.PriorName)
		} else {
			e.g.DeleteName(ev.NewName.Scope, ev.NewName.Sheet, ev.NewName.Name)
		}
	case EvDeleteName:
		if ev.PriorName != nil {
			e.g.DefineName(*ev.PriorName)
		}
	case EvSpillCommit:
		e.revertSpillCommit(ev)
	case EvSpillClear:
		e.revertSpillClear(ev)
	}
}

func (e *Editor) applyForward(ev ChangeEvent) {
	switch ev.Kind {
	case EvSetValue:
		e.g.SetCellValue(ev.Cell, ev.NewValue)
	case EvSetFormula:
		if ev.NewHadFormula {
			e.g.SetCellFormula(ev.Cell, ev.PriorAST, ev.NewPrecedents.refs, ev.NewPrecedents.ranges, ev.NewPrecedents.volatile)
		}
	case EvRemoveVertex:
		e.g.RemoveVertexAt(ev.Cell)
	case EvMoveVertex:
		if id, ok := e.g.Vertices.Lookup(ev.PriorCoord); ok {
			e.g.MoveVertex(id, ev.Cell)
		}
	case EvAddSheet:
		e.g.AddSheet(ev.SheetName)
	case EvRemoveSheet:
		if id, ok := e.g.Sheets.ByName(ev.SheetName); ok {
			e.g.RemoveSheet(id)
		}
	case EvRenameSheet:
		e.g.RenameSheet(ev.SheetID, ev.SheetName)
	case EvDefineName:
		e.g.DefineName(ev.NewName)
	case EvDeleteName:
		if ev.PriorName != nil {
			e.g.DeleteName(ev.PriorName.Scope, ev.PriorName.Sheet, ev.PriorName.Name)
		}
	case EvSpillCommit:
		e.reapplySpillCommit(ev)
	case EvSpillClear:
		e.reapplySpillClear(ev)
	}
}

// restoreCell reverts ref to whatever ev captured as "prior": either a
// formula (reinstalled via its saved precedent set) or a plain value.
func (e *Editor) restoreCell(ref coord.CellRef, ev ChangeEvent) {
	if ev.PriorHadFormula {
		e.g.SetCellFormula(ref, ev.PriorAST, ev.PriorPrecedents.refs, ev.PriorPrecedents.ranges, ev.PriorPrecedents.volatile)
		if id, ok := e.g.Vertices.Lookup(ref); ok {
			e.precedents[id] = ev.PriorPrecedents
		}
		return
	}
	e.g.SetCellValue(ref, ev.PriorValue)
	e.forgetPrecedents(ref)
}
