package names_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/names"
)

func TestDefineAndResolve_WorkbookScope(t *testing.T) {
	table := names.New()
	id := table.Define(names.Entry{
		Name: "Total", Scope: names.ScopeWorkbook, Kind: names.KindCell,
		Cell: coord.CellRef{Sheet: 1, Coord: coord.Coord{Row: 1, Col: 1}},
	})

	got, entry, ok := table.Resolve(2, "total")
	require.True(t, ok, "names must resolve case-insensitively")
	assert.Equal(t, id, got)
	assert.Equal(t, names.KindCell, entry.Kind)
}

func TestResolve_SheetScopeShadowsWorkbookScope(t *testing.T) {
	table := names.New()
	table.Define(names.Entry{
		Name: "Total", Scope: names.ScopeWorkbook, Kind: names.KindCell,
		Cell: coord.CellRef{Sheet: 1, Coord: coord.Coord{Row: 1, Col: 1}},
	})
	sheetID := table.Define(names.Entry{
		Name: "Total", Scope: names.ScopeSheet, Sheet: 2, Kind: names.KindCell,
		Cell: coord.CellRef{Sheet: 2, Coord: coord.Coord{Row: 9, Col: 9}},
	})

	got, entry, ok := table.Resolve(2, "Total")
	require.True(t, ok)
	assert.Equal(t, sheetID, got)
	assert.Equal(t, uint32(9), entry.Cell.Coord.Row)

	_, entry, ok = table.Resolve(1, "Total")
	require.True(t, ok)
	assert.Equal(t, uint32(1), entry.Cell.Coord.Row)
}

func TestDefine_RedefinitionKeepsIdAndRefCount(t *testing.T) {
	table := names.New()
	id := table.Define(names.Entry{Name: "X", Scope: names.ScopeWorkbook, Kind: names.KindCell})
	table.AddReference(id)

	id2 := table.Define(names.Entry{Name: "X", Scope: names.ScopeWorkbook, Kind: names.KindRange})
	assert.Equal(t, id, id2, "redefining a name must keep its id")

	entry, ok := table.Get(id)
	require.True(t, ok)
	assert.Equal(t, names.KindRange, entry.Kind)

	table.RemoveReference(id)
	_, ok = table.Get(id)
	assert.True(t, ok, "still-referenced-but-not-deleted name must survive a ref drop to zero")
}

func TestDelete_PrunesOnlyAfterLastReferenceDrops(t *testing.T) {
	table := names.New()
	id := table.Define(names.Entry{Name: "Y", Scope: names.ScopeWorkbook, Kind: names.KindCell})
	table.AddReference(id)

	assert.True(t, table.Delete(names.ScopeWorkbook, 0, "Y"))
	_, ok := table.Resolve(0, "Y")
	assert.False(t, ok, "deleted name must not resolve even while still referenced")

	_, ok = table.Get(id)
	assert.True(t, ok, "entry must survive until its last reference is dropped")

	table.RemoveReference(id)
	_, ok = table.Get(id)
	assert.False(t, ok, "entry must be pruned once deleted and unreferenced")
}

func TestDelete_UnknownNameReturnsFalse(t *testing.T) {
	table := names.New()
	assert.False(t, table.Delete(names.ScopeWorkbook, 0, "Nope"))
}

func TestNames_ListsDefinedNames(t *testing.T) {
	table := names.New()
	table.Define(names.Entry{Name: "A", Scope: names.ScopeWorkbook, Kind: names.KindCell})
	table.Define(names.Entry{Name: "B", Scope: names.ScopeWorkbook, Kind: names.KindCell})
	assert.ElementsMatch(t, []string{"A", "B"}, table.Names())
}
