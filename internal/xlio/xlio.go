// Package xlio adapts on-disk spreadsheet formats to and from a
// workbook.Workbook, per spec.md §4.11/§4.12: an xlsx backend that loads
// workbooks and saves computed values (formulas are not written back), an
// xlsb backend for read-only ingest, and a JSON
// IR backend for a portable, engine-native snapshot format.
package xlio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/workbook"
)

// errorKindByDisplay inverts value's error-kind display table, so a literal
// "#DIV/0!" read back from a workbook file becomes a first-class
// value.ExcelError instead of plain text.
var errorKindByDisplay = map[string]value.ErrorKind{
	"#DIV/0!":  value.ErrDiv,
	"#REF!":    value.ErrRef,
	"#NAME?":   value.ErrName,
	"#VALUE!":  value.ErrValue,
	"#NUM!":    value.ErrNum,
	"#NULL!":   value.ErrNull,
	"#N/A":     value.ErrNA,
	"#SPILL!":  value.ErrSpill,
	"#CALC!":   value.ErrCalc,
	"#CIRC!":   value.ErrCirc,
}

// LoadResult summarizes one xlsx/xlsb load.
type LoadResult struct {
	Sheets            int
	ValuesInstalled   int
	FormulasInstalled int
	FormulasFailed    int
}

// LoadXLSX opens path as an xlsx/xlsm workbook and stages every non-empty
// cell into wb via its ingest builder, per spec.md §4.11. Both values and
// formulas are staged; Finish installs them in one batch.
func LoadXLSX(wb *workbook.Workbook, path string) (LoadResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return LoadResult{}, apperr.Wrap(apperr.NotFound, err, "xlio: open %s", path)
	}
	defer f.Close()

	var result LoadResult
	builder := wb.NewIngestBuilder()

	for _, sheetName := range f.GetSheetList() {
		sheetID, _ := wb.AddSheet(sheetName)
		result.Sheets++

		rows, err := f.GetRows(sheetName)
		if err != nil {
			return result, apperr.Wrap(apperr.Internal, err, "xlio: read rows from %s", sheetName)
		}
		for rowIdx, row := range rows {
			for colIdx, raw := range row {
				axis, axisErr := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				if axisErr != nil {
					continue
				}
				ref := coord.CellRef{
					Sheet: sheetID,
					Coord: coord.Coord{Row: uint32(rowIdx + 1), Col: uint32(colIdx + 1)},
				}
				if src, ferr := f.GetCellFormula(sheetName, axis); ferr == nil && src != "" {
					builder.StageFormula(ref, src)
					continue
				}
				if raw == "" {
					continue
				}
				builder.StageValue(ref, parseCellText(raw))
			}
		}
	}

	r := builder.Finish()
	result.ValuesInstalled = r.ValuesInstalled
	result.FormulasInstalled = r.FormulasInstalled
	result.FormulasFailed = r.FormulasFailed
	return result, nil
}

// parseCellText classifies a formatted cell string the way excelize's
// GetRows returns it: an error display string becomes a first-class
// value.ExcelError, a parseable number becomes KindNumber, TRUE/FALSE
// becomes KindBoolean, everything else is KindText.
func parseCellText(raw string) value.LiteralValue {
	if kind, ok := errorKindByDisplay[raw]; ok {
		return value.ErrorOf(kind)
	}
	switch strings.ToUpper(raw) {
	case "TRUE":
		return value.Bool(true)
	case "FALSE":
		return value.Bool(false)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return value.Number(f)
	}
	return value.Text(raw)
}

// SaveXLSX writes every sheet in wb's graph to path, rendering each
// sheet's used region (per the Arrow columnar store's row/col high-water
// marks) as plain values — saved workbooks are a calculated snapshot, not
// a live-formula xlsx; re-loading one re-evaluates from scratch.
func SaveXLSX(wb *workbook.Workbook, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	names := wb.Graph.Sheets.Names()
	if len(names) == 0 {
		return apperr.New(apperr.FailedPrecondition, "xlio: workbook has no sheets to save")
	}

	for i, name := range names {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return apperr.Wrap(apperr.Internal, err, "xlio: rename default sheet to %s", name)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return apperr.Wrap(apperr.Internal, err, "xlio: create sheet %s", name)
		}

		sheetID, ok := wb.Graph.Sheets.ByName(name)
		if !ok {
			continue
		}
		maxRow, maxCol := wb.Graph.Arrow.UsedRegion(sheetID)
		for row := uint32(1); row <= maxRow; row++ {
			for col := uint32(1); col <= maxCol; col++ {
				ref := coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: row, Col: col}}
				ast, v, ok := wb.Graph.GetCell(ref)
				if !ok || (ast == 0 && v.IsEmpty()) {
					continue
				}
				axis, err := excelize.CoordinatesToCellName(int(col), int(row))
				if err != nil {
					continue
				}
				if err := writeCell(f, name, axis, v); err != nil {
					return err
				}
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperr.Wrap(apperr.Internal, err, "xlio: save %s", path)
	}
	return nil
}

func writeCell(f *excelize.File, sheet, axis string, v value.LiteralValue) error {
	switch v.Kind {
	case value.KindError:
		return f.SetCellStr(sheet, axis, v.Err.Kind.String())
	case value.KindBoolean:
		return f.SetCellBool(sheet, axis, v.Bool)
	case value.KindInt:
		return f.SetCellInt(sheet, axis, v.Int)
	case value.KindNumber, value.KindDuration:
		return f.SetCellFloat(sheet, axis, v.Num, -1, 64)
	case value.KindText:
		return f.SetCellStr(sheet, axis, v.Text)
	case value.KindDate, value.KindTime, value.KindDateTime:
		return f.SetCellValue(sheet, axis, v.Time)
	default:
		return nil
	}
}

func init() {
	// Guard against errorKindByDisplay silently drifting out of sync with
	// value's own display table if a new ErrorKind is ever added there.
	if len(errorKindByDisplay) != 10 {
		panic(fmt.Sprintf("xlio: errorKindByDisplay has %d entries, want 10", len(errorKindByDisplay)))
	}
}
