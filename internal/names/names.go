// Package names is the named-range/table resolver: workbook- and
// sheet-scoped named definitions (cell, range, or formula), interned by
// normalized text the way the teacher interns formulas by normalized AST
// (formula.go's FormulaTable.astIndex/InternFormula) and worksheets by
// name (worksheet.go's WorksheetTable).
package names

import (
	"strings"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
)

// Scope is where a name is visible from.
type Scope uint8

const (
	ScopeWorkbook Scope = iota
	ScopeSheet
)

// Kind discriminates what a name resolves to.
type Kind uint8

const (
	KindCell Kind = iota
	KindRange
	KindFormula
)

// Id identifies an interned name definition.
type Id uint32

// Entry is one named definition.
type Entry struct {
	Name  string
	Scope Scope
	Sheet coord.SheetId // meaningful only when Scope == ScopeSheet

	Kind    Kind
	Cell    coord.CellRef  // Kind == KindCell
	Range   coord.RangeRef // Kind == KindRange
	Formula ast.Id         // Kind == KindFormula (root node, arena owned by caller)

	refCount int
	deleted  bool
}

// key identifies a name within its scope: workbook-scoped names key on
// the bare upper-cased name; sheet-scoped names additionally key on
// sheet id, so "Total" on Sheet1 and "Total" on Sheet2 don't collide.
type key struct {
	sheet coord.SheetId
	name  string
}

// Table holds every named definition in a workbook, reference-counted
// the same way the teacher's WorksheetTable/FormulaTable are: a name
// stays defined while referenced, and is only pruned once its last
// reference is removed and it has also been explicitly undefined.
type Table struct {
	byKey  map[key]Id
	byId   map[Id]*Entry
	nextID Id
}

// New creates an empty name table.
func New() *Table {
	return &Table{byKey: make(map[key]Id), byId: make(map[Id]*Entry)}
}

func scopeKey(scope Scope, sheet coord.SheetId, name string) key {
	k := key{name: strings.ToUpper(name)}
	if scope == ScopeSheet {
		k.sheet = sheet
	}
	return k
}

// Define creates or replaces a name, returning its id. Replacing an
// existing name keeps its id and reference count, only updating the
// target — so formulas that already resolved to this name's id keep
// working after a redefinition.
func (t *Table) Define(e Entry) Id {
	k := scopeKey(e.Scope, e.Sheet, e.Name)
	if id, ok := t.byKey[k]; ok {
		existing := t.byId[id]
		e.refCount = existing.refCount
		t.byId[id] = &e
		return id
	}
	id := t.nextID + 1
	t.nextID = id
	e.refCount = 0
	t.byKey[k] = id
	t.byId[id] = &e
	return id
}

// Resolve looks up a name visible to a formula on sheet currentSheet:
// sheet-scoped names shadow workbook-scoped names of the same text.
func (t *Table) Resolve(currentSheet coord.SheetId, name string) (Id, *Entry, bool) {
	if id, ok := t.byKey[scopeKey(ScopeSheet, currentSheet, name)]; ok {
		return id, t.byId[id], true
	}
	if id, ok := t.byKey[scopeKey(ScopeWorkbook, 0, name)]; ok {
		return id, t.byId[id], true
	}
	return 0, nil, false
}

// Get returns the entry for id.
func (t *Table) Get(id Id) (*Entry, bool) {
	e, ok := t.byId[id]
	return e, ok
}

// AddReference increments id's reference count.
func (t *Table) AddReference(id Id) {
	if e, ok := t.byId[id]; ok {
		e.refCount++
	}
}

// RemoveReference decrements id's reference count; if it reaches zero
// and the name has already been Delete'd from lookup, it is pruned.
func (t *Table) RemoveReference(id Id) {
	e, ok := t.byId[id]
	if !ok {
		return
	}
	e.refCount--
	if e.refCount <= 0 && e.deleted {
		t.prune(id)
	}
}

// Delete removes name from lookup (Resolve will no longer find it). If it
// has no outstanding references, it's pruned immediately; otherwise it's
// kept until the last reference drops, mirroring WorksheetTable's
// undefined-but-referenced state.
func (t *Table) Delete(scope Scope, sheet coord.SheetId, name string) bool {
	k := scopeKey(scope, sheet, name)
	id, ok := t.byKey[k]
	if !ok {
		return false
	}
	delete(t.byKey, k)
	e := t.byId[id]
	e.deleted = true
	if e.refCount <= 0 {
		t.prune(id)
	}
	return true
}

func (t *Table) prune(id Id) {
	delete(t.byId, id)
}

// Names returns every currently-defined (non-deleted) name.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		out = append(out, k.name)
	}
	return out
}
