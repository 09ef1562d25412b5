package xlio_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PSU3D0/formualizer-sub003/internal/config"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/xlio"
	"github.com/PSU3D0/formualizer-sub003/workbook"
)

func newTestWorkbook(t *testing.T) *workbook.Workbook {
	t.Helper()
	wb, err := workbook.New(config.Default())
	require.NoError(t, err)
	return wb
}

func TestSaveLoadIR_RoundTrip(t *testing.T) {
	wb := newTestWorkbook(t)
	sheetID, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)

	a1 := coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 1, Col: 1}}
	b1 := coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 1, Col: 2}}
	c1 := coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: 1, Col: 3}}
	wb.SetCellValue(a1, value.Number(2))
	wb.SetCellValue(b1, value.Number(3))
	require.NoError(t, wb.SetCellFormula(c1, "A1+B1"))

	path := filepath.Join(t.TempDir(), "book.json")
	require.NoError(t, xlio.SaveIR(wb, path))

	loaded := newTestWorkbook(t)
	result, err := xlio.LoadIR(loaded, path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sheets)
	assert.Equal(t, 1, result.FormulasInstalled)

	_, err = loaded.EvaluateAll(context.Background())
	require.NoError(t, err)

	sheetID2, ok := loaded.Graph.Sheets.ByName("Sheet1")
	require.True(t, ok)
	got := loaded.GetCellValue(coord.CellRef{Sheet: sheetID2, Coord: coord.Coord{Row: 1, Col: 3}})
	assert.Equal(t, value.Number(5), got)
}
