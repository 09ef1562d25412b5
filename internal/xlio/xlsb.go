package xlio

import (
	"archive/zip"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/workbook"
)

// RawCell is one already-decoded xlsb cell record: a (row, col) position,
// its raw value (float64, string, or bool — the three BIFF12 scalar cell
// record kinds), and its style index, used to look up the cell's number
// format for display rendering. A full BIFF12 record decoder (the binary
// layer TsubasaBE-go-xlsb's biff12/record packages implement) is out of
// scope here; xlio's xlsb backend is the engine-side half of that
// pipeline — it consumes already-decoded cell records, same as
// worksheet.Worksheet.Rows does for its own caller.
type RawCell struct {
	Row, Col uint32
	V        interface{}
	FmtCode  string
}

// OpenXLSBContainer validates that path is a well-formed xlsb package (an
// OOXML zip container carrying a binary workbook part, the same outer
// shape as xlsx) without decoding any BIFF12 records, and returns the
// names of its worksheet binary parts.
func OpenXLSBContainer(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, err, "xlio: open xlsb container %s", path)
	}
	defer r.Close()

	var parts []string
	hasWorkbookBin := false
	for _, f := range r.File {
		switch {
		case f.Name == "xl/workbook.bin":
			hasWorkbookBin = true
		case len(f.Name) > len("xl/worksheets/") && f.Name[:len("xl/worksheets/")] == "xl/worksheets/":
			parts = append(parts, f.Name)
		}
	}
	if !hasWorkbookBin {
		return nil, apperr.New(apperr.InvalidArgument, "xlio: %s is not an xlsb package (missing xl/workbook.bin)", path)
	}
	return parts, nil
}

// LoadXLSBCells stages a decoded xlsb worksheet's raw cells into wb,
// classifying each value the way cells.V arrives from a BIFF12 decoder
// (float64, string, bool, or nil for empty). FmtCode is not consulted:
// numbers are staged as numbers and no display text is rendered —
// mirroring TsubasaBE-go-xlsb's split between raw cell.V and
// Workbook.FormatCell.
func LoadXLSBCells(wb *workbook.Workbook, sheetName string, cells []RawCell) (LoadResult, error) {
	sheetID, _ := wb.AddSheet(sheetName)
	builder := wb.NewIngestBuilder()

	for _, cell := range cells {
		ref := coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: cell.Row, Col: cell.Col}}
		v, ok := classifyRawCell(cell)
		if !ok {
			continue
		}
		builder.StageValue(ref, v)
	}

	r := builder.Finish()
	return LoadResult{
		Sheets:          1,
		ValuesInstalled: r.ValuesInstalled,
	}, nil
}

// classifyRawCell maps a decoded BIFF12 scalar into a LiteralValue. The
// format code is deliberately NOT consulted here: Excel's number format is
// a display concern, not a value's type, so a formatted number stays
// KindNumber — callers that need the rendered display string call
// FormatNumber(val, cell.FmtCode) themselves.
func classifyRawCell(cell RawCell) (value.LiteralValue, bool) {
	switch raw := cell.V.(type) {
	case nil:
		return value.Empty, false
	case bool:
		return value.Bool(raw), true
	case string:
		return value.Text(raw), true
	case float64:
		return value.Number(raw), true
	default:
		return value.Empty, false
	}
}
