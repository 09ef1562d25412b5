package editor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

func arr2x2(a, b, c, d float64) value.LiteralValue {
	return value.NewArray([][]value.LiteralValue{
		{value.Number(a), value.Number(b)},
		{value.Number(c), value.Number(d)},
	})
}

func TestApplySpill_CommitsRegionAroundAnchor(t *testing.T) {
	e, g := newEditor(t)
	sheet, _ := g.AddSheet("Sheet1")
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	anchor := g.EnsureVertex(a1)

	e.ApplySpill(anchor, arr2x2(1, 2, 3, 4))

	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}
	a2 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 2, Col: 1}}
	b2 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 2, Col: 2}}
	assert.Equal(t, value.Number(2), g.GetCellValue(b1))
	assert.Equal(t, value.Number(3), g.GetCellValue(a2))
	assert.Equal(t, value.Number(4), g.GetCellValue(b2))
}

func TestApplySpill_BlockedWhenTargetOccupied(t *testing.T) {
	e, g := newEditor(t)
	sheet, _ := g.AddSheet("Sheet1")
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}
	anchor := g.EnsureVertex(a1)
	g.SetCellValue(b1, value.Text("occupied"))

	e.ApplySpill(anchor, arr2x2(1, 2, 3, 4))

	got := g.GetCellValue(a1)
	require.True(t, got.IsError())
	assert.Equal(t, value.ErrSpill, got.Err.Kind)
	assert.Equal(t, value.Text("occupied"), g.GetCellValue(b1))
}

func TestApplySpill_ScalarResultClearsPriorRegion(t *testing.T) {
	e, g := newEditor(t)
	sheet, _ := g.AddSheet("Sheet1")
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	anchor := g.EnsureVertex(a1)

	e.ApplySpill(anchor, arr2x2(1, 2, 3, 4))
	e.ApplySpill(anchor, value.Number(9))

	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}
	assert.True(t, g.GetCellValue(b1).IsEmpty())
}

func TestClearSpillRegion_UndoRestoresChildren(t *testing.T) {
	e, g := newEditor(t)
	sheet, _ := g.AddSheet("Sheet1")
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	anchor := g.EnsureVertex(a1)
	g.SetCellValue(a1, arr2x2(1, 2, 3, 4))
	e.CommitSpillRegion(anchor)

	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}
	require.Equal(t, value.Number(2), g.GetCellValue(b1))

	e.ClearSpillRegion(anchor)
	assert.True(t, g.GetCellValue(b1).IsEmpty())

	require.NoError(t, e.Undo())
	assert.Equal(t, value.Number(2), g.GetCellValue(b1))
}

func TestSetCellValue_OnSpillChildClearsWholeRegionFirst(t *testing.T) {
	e, g := newEditor(t)
	sheet, _ := g.AddSheet("Sheet1")
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}
	b2 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 2, Col: 2}}
	anchor := g.EnsureVertex(a1)
	e.ApplySpill(anchor, arr2x2(1, 2, 3, 4))

	e.SetCellValue(b1, value.Number(100))
	assert.Equal(t, value.Number(100), g.GetCellValue(b1))
	assert.True(t, g.GetCellValue(b2).IsEmpty(), "editing one spill child clears the whole region")

	bID, ok := g.Vertices.Lookup(b1)
	require.True(t, ok)
	assert.False(t, g.Vertices.HasFlag(bID, vertex.FlagSpillChild))
}
