package workbook_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PSU3D0/formualizer-sub003/internal/config"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/workbook"
)

func newWorkbook(t *testing.T) (*workbook.Workbook, coord.SheetId) {
	t.Helper()
	w, err := workbook.New(config.Default())
	require.NoError(t, err)
	sheet, err := w.AddSheet("Sheet1")
	require.NoError(t, err)
	return w, sheet
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxThreads = 0
	_, err := workbook.New(cfg)
	assert.Error(t, err)
}

func TestSetCellFormula_ParsesAndEvaluatesAgainstDependencies(t *testing.T) {
	w, sheet := newWorkbook(t)
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	a2 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 2, Col: 1}}
	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}

	w.SetCellValue(a1, value.Number(1))
	w.SetCellValue(a2, value.Number(2))
	require.NoError(t, w.SetCellFormula(b1, "SUM(A1:A2)"))

	result, err := w.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ComputedVertices)
	assert.Equal(t, value.Number(3), w.GetCellValue(b1))
}

func TestSetCellFormula_InvalidSourceReturnsWrappedError(t *testing.T) {
	w, sheet := newWorkbook(t)
	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}
	err := w.SetCellFormula(b1, "A1 B2")
	assert.Error(t, err)
}

func TestEvaluateCells_OnlyTouchesRequestedClosure(t *testing.T) {
	w, sheet := newWorkbook(t)
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	b1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 2}}
	c1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 3}}

	w.SetCellValue(a1, value.Number(5))
	require.NoError(t, w.SetCellFormula(b1, "A1+1"))
	require.NoError(t, w.SetCellFormula(c1, "B1+1"))

	result, err := w.EvaluateCells(context.Background(), []coord.CellRef{b1})
	require.NoError(t, err)
	assert.Equal(t, value.Number(6), w.GetCellValue(b1))
	assert.Equal(t, 2, result.ComputedVertices, "closure includes b1's own precedent a1")
	assert.True(t, w.GetCellValue(c1).IsEmpty(), "c1 was never targeted or evaluated")
}

func TestCancelThenResume_ControlsWhetherEvaluateAllRuns(t *testing.T) {
	w, sheet := newWorkbook(t)
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}
	require.NoError(t, w.SetCellFormula(a1, "1+1"))

	w.Cancel()
	result, err := w.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Cancelled)

	w.Resume()
	result, err = w.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Cancelled)
	assert.Equal(t, value.Number(2), w.GetCellValue(a1))
}

func TestUndo_RevertsSetCellValueThroughTheFacade(t *testing.T) {
	w, sheet := newWorkbook(t)
	a1 := coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: 1, Col: 1}}

	w.SetCellValue(a1, value.Number(1))
	w.SetCellValue(a1, value.Number(2))
	require.NoError(t, w.Undo())
	assert.Equal(t, value.Number(1), w.GetCellValue(a1))
	require.NoError(t, w.Redo())
	assert.Equal(t, value.Number(2), w.GetCellValue(a1))
}

func TestEachWorkbook_HasAUniqueID(t *testing.T) {
	w1, err := workbook.New(config.Default())
	require.NoError(t, err)
	w2, err := workbook.New(config.Default())
	require.NoError(t, err)
	assert.NotEqual(t, w1.ID, w2.ID)
}
