// Package vertex is the dependency graph's vertex store: one row per
// cell-like entity (cell, or a structural placeholder), held as parallel
// slices indexed by Id rather than a map of structs. This follows the
// teacher's Worksheet/Chunk structure-of-arrays layout (worksheet.go) —
// here flattened across the whole workbook instead of chunked per-sheet,
// since the vertex store only ever holds one row per *referenced* cell,
// not one row per spreadsheet cell.
package vertex

import (
	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
)

// Id identifies a vertex. Ids below Reserved are never allocated to real
// cells; they're set aside for sentinel/placeholder use by higher layers
// (e.g. a "root" vertex representing workbook-level volatility).
type Id uint32

// Reserved is the first allocatable, non-sentinel vertex id.
const Reserved Id = 1024

// Kind discriminates what a vertex represents.
type Kind uint8

const (
	KindCell Kind = iota
	KindRangeAnchor
)

// Flag is a bitmask of per-vertex state.
type Flag uint16

const (
	FlagDirty Flag = 1 << iota
	FlagVolatile
	FlagHasFormula
	FlagIsReference  // formula's root call returns a reference (OFFSET et al.)
	FlagDynamic      // reference set may change between evaluation passes
	FlagSpillAnchor  // top-left cell of an array-formula spill region
	FlagSpillChild   // cell occupied by someone else's spill
	FlagInCycle
)

// Store holds every vertex's data as parallel slices, indexed by Id.
type Store struct {
	coords []coord.CellRef
	kinds  []Kind
	flags  []Flag
	values []value.LiteralValue
	astIDs []ast.Id

	index map[coord.CellRef]Id

	nextID Id
}

// New creates an empty vertex store with the sentinel range pre-reserved.
func New() *Store {
	s := &Store{index: make(map[coord.CellRef]Id), nextID: Reserved}
	// pad slices so Id 0..Reserved-1 are valid-but-inert indices.
	s.coords = make([]coord.CellRef, Reserved)
	s.kinds = make([]Kind, Reserved)
	s.flags = make([]Flag, Reserved)
	s.values = make([]value.LiteralValue, Reserved)
	s.astIDs = make([]ast.Id, Reserved)
	return s
}

// Len returns the number of allocated vertex slots, including the
// reserved sentinel range.
func (s *Store) Len() int { return len(s.coords) }

// Lookup returns the existing vertex id for ref, if any.
func (s *Store) Lookup(ref coord.CellRef) (Id, bool) {
	id, ok := s.index[ref]
	return id, ok
}

// EnsureVertex returns ref's vertex id, allocating a new KindCell vertex
// if this is the first time ref has been referenced.
func (s *Store) EnsureVertex(ref coord.CellRef) Id {
	if id, ok := s.index[ref]; ok {
		return id
	}
	id := s.nextID
	s.nextID++
	s.coords = append(s.coords, ref)
	s.kinds = append(s.kinds, KindCell)
	s.flags = append(s.flags, 0)
	s.values = append(s.values, value.Empty)
	s.astIDs = append(s.astIDs, 0)
	s.index[ref] = id
	return id
}

// EnsureVertices batch-allocates vertices for every ref, preserving
// order. Pre-sizing the backing slices once avoids the repeated
// append-growth EnsureVertex would incur one ref at a time for the
// large batches ingest produces.
func (s *Store) EnsureVertices(refs []coord.CellRef) []Id {
	ids := make([]Id, len(refs))
	newCount := 0
	for _, ref := range refs {
		if _, ok := s.index[ref]; !ok {
			newCount++
		}
	}
	if newCount > 0 {
		grow := len(s.coords) + newCount
		if cap(s.coords) < grow {
			ncoords := make([]coord.CellRef, len(s.coords), grow)
			copy(ncoords, s.coords)
			s.coords = ncoords
			nkinds := make([]Kind, len(s.kinds), grow)
			copy(nkinds, s.kinds)
			s.kinds = nkinds
			nflags := make([]Flag, len(s.flags), grow)
			copy(nflags, s.flags)
			s.flags = nflags
			nvalues := make([]value.LiteralValue, len(s.values), grow)
			copy(nvalues, s.values)
			s.values = nvalues
			nast := make([]ast.Id, len(s.astIDs), grow)
			copy(nast, s.astIDs)
			s.astIDs = nast
		}
	}
	for i, ref := range refs {
		ids[i] = s.EnsureVertex(ref)
	}
	return ids
}

// Coord returns the cell reference a vertex represents.
func (s *Store) Coord(id Id) coord.CellRef { return s.coords[id] }

// Kind returns a vertex's kind.
func (s *Store) Kind(id Id) Kind { return s.kinds[id] }

// Flags returns a vertex's flag bitmask.
func (s *Store) Flags(id Id) Flag { return s.flags[id] }

// HasFlag reports whether id has every bit in f set.
func (s *Store) HasFlag(id Id, f Flag) bool { return s.flags[id]&f == f }

// SetFlag ORs f into id's flag bitmask.
func (s *Store) SetFlag(id Id, f Flag) { s.flags[id] |= f }

// ClearFlag ANDs out f from id's flag bitmask.
func (s *Store) ClearFlag(id Id, f Flag) { s.flags[id] &^= f }

// Value returns a vertex's last computed or literal value.
func (s *Store) Value(id Id) value.LiteralValue { return s.values[id] }

// SetValue stores v as id's current value and clears FlagDirty.
func (s *Store) SetValue(id Id, v value.LiteralValue) {
	s.values[id] = v
	s.flags[id] &^= FlagDirty
}

// ASTId returns the formula AST root for id, or 0 if id has no formula.
func (s *Store) ASTId(id Id) ast.Id { return s.astIDs[id] }

// SetFormula attaches a formula AST to id and marks it dirty.
func (s *Store) SetFormula(id Id, root ast.Id) {
	s.astIDs[id] = root
	s.flags[id] |= FlagHasFormula | FlagDirty
}

// ClearFormula detaches id's formula, reverting it to a literal vertex.
func (s *Store) ClearFormula(id Id) {
	s.astIDs[id] = 0
	s.flags[id] &^= (FlagHasFormula | FlagIsReference | FlagDynamic | FlagVolatile)
}

// MarkDirty flags id for recomputation.
func (s *Store) MarkDirty(id Id) { s.flags[id] |= FlagDirty }

// IsDirty reports whether id needs recomputation.
func (s *Store) IsDirty(id Id) bool { return s.flags[id]&FlagDirty != 0 }

// Remove drops ref's index entry and resets its row to a zero vertex.
// The slot itself is kept (ids are never recycled — the edge store keys
// on Id and recycling would corrupt stale edges), but the cell reverts to
// empty so it will not appear in any evaluation plan.
func (s *Store) Remove(ref coord.CellRef) (Id, bool) {
	id, ok := s.index[ref]
	if !ok {
		return 0, false
	}
	delete(s.index, ref)
	s.values[id] = value.Empty
	s.astIDs[id] = 0
	s.flags[id] = 0
	return id, true
}

// Rebind moves the vertex at id to point at a new cell reference, used
// when a structural edit (row/column insert-delete) shifts a cell in
// place without changing its identity.
func (s *Store) Rebind(id Id, newRef coord.CellRef) {
	old := s.coords[id]
	delete(s.index, old)
	s.coords[id] = newRef
	s.index[newRef] = id
}
