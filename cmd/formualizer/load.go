package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PSU3D0/formualizer-sub003/internal/config"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/xlio"
	"github.com/PSU3D0/formualizer-sub003/workbook"
)

// openWorkbook loads path into a fresh Workbook, dispatching on its
// extension: .xlsx/.xlsm go through xlio's excelize-backed reader, .json
// through the JSON IR reader. .xlsb only carries container validation
// here (full BIFF12 decoding lives in an external decoder step).
func openWorkbook(path string) (*workbook.Workbook, xlio.LoadResult, error) {
	wb, err := workbook.New(config.Default(), workbook.WithLogger(newLogger()))
	if err != nil {
		return nil, xlio.LoadResult{}, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		r, err := xlio.LoadXLSX(wb, path)
		return wb, r, err
	case ".json":
		r, err := xlio.LoadIR(wb, path)
		return wb, r, err
	case ".xlsb":
		if _, err := xlio.OpenXLSBContainer(path); err != nil {
			return nil, xlio.LoadResult{}, err
		}
		return wb, xlio.LoadResult{}, fmt.Errorf("formualizer: %s: xlsb cell decoding requires a pre-decoded cell source, see xlio.LoadXLSBCells", path)
	default:
		return nil, xlio.LoadResult{}, fmt.Errorf("formualizer: unrecognized file extension %q", ext)
	}
}

// parseCellRef parses "Sheet1!A1" (or bare "A1", resolved against the
// workbook's first sheet) into a coord.CellRef.
func parseCellRef(wb *workbook.Workbook, s string) (coord.CellRef, error) {
	sheetName, cellPart, hasSheet := strings.Cut(s, "!")
	if !hasSheet {
		cellPart = sheetName
		names := wb.Graph.Sheets.Names()
		if len(names) == 0 {
			return coord.CellRef{}, fmt.Errorf("formualizer: workbook has no sheets")
		}
		sheetName = names[0]
	}
	sheetID, ok := wb.Graph.Sheets.ByName(sheetName)
	if !ok {
		return coord.CellRef{}, fmt.Errorf("formualizer: unknown sheet %q", sheetName)
	}

	i := 0
	for i < len(cellPart) && (cellPart[i] == '$' || (cellPart[i] >= 'A' && cellPart[i] <= 'Z') || (cellPart[i] >= 'a' && cellPart[i] <= 'z')) {
		i++
	}
	colPart := strings.ToUpper(strings.ReplaceAll(cellPart[:i], "$", ""))
	rowPart := strings.ReplaceAll(cellPart[i:], "$", "")
	col := coord.ColumnIndex(colPart)
	row, err := strconv.Atoi(rowPart)
	if err != nil || col == 0 || row < 1 {
		return coord.CellRef{}, fmt.Errorf("formualizer: invalid cell reference %q", s)
	}
	return coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: uint32(row), Col: uint32(col)}}, nil
}
