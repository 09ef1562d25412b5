package xlio_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/xlio"
)

func buildFixtureXLSX(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 10))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 20))
	require.NoError(t, f.SetCellFormula("Sheet1", "A3", "=A1+A2"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "hello"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", true))

	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadXLSX_StagesValuesAndFormulas(t *testing.T) {
	path := buildFixtureXLSX(t)
	wb := newTestWorkbook(t)

	result, err := xlio.LoadXLSX(wb, path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sheets)
	assert.Equal(t, 1, result.FormulasInstalled)
	assert.GreaterOrEqual(t, result.ValuesInstalled, 3)

	_, err = wb.EvaluateAll(context.Background())
	require.NoError(t, err)

	sheetID, ok := wb.Graph.Sheets.ByName("Sheet1")
	require.True(t, ok)
	a3 := wb.GetCellValue(coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 3, Col: 1}})
	assert.Equal(t, value.Number(30), a3)

	b1 := wb.GetCellValue(coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 1, Col: 2}})
	assert.Equal(t, value.Text("hello"), b1)

	b2 := wb.GetCellValue(coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 2, Col: 2}})
	assert.Equal(t, value.Bool(true), b2)
}

func TestSaveXLSX_WritesComputedValues(t *testing.T) {
	wb := newTestWorkbook(t)
	sheetID, err := wb.AddSheet("Data")
	require.NoError(t, err)
	wb.SetCellValue(coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 1, Col: 1}}, value.Number(7))
	require.NoError(t, wb.SetCellFormula(
		coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 2, Col: 1}}, "A1*2"))
	_, err = wb.EvaluateAll(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, xlio.SaveXLSX(wb, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetCellValue("Data", "A2")
	require.NoError(t, err)
	assert.Equal(t, "14", got)
}
