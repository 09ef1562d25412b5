package xlio

import (
	"encoding/json"
	"os"
	"time"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/workbook"
)

// irDocument is the JSON intermediate representation: an engine-native
// snapshot (sheet names plus sparse cell lists), used for round-tripping
// a workbook without going through a binary spreadsheet format at all —
// useful for fixtures and for diffing two evaluation runs.
type irDocument struct {
	Sheets []irSheet `json:"sheets"`
}

type irSheet struct {
	Name  string    `json:"name"`
	Cells []irCell  `json:"cells"`
}

type irCell struct {
	Row     uint32 `json:"row"`
	Col     uint32 `json:"col"`
	Formula string `json:"formula,omitempty"`
	Value   *irValue `json:"value,omitempty"`
}

// irValue mirrors value.LiteralValue's scalar kinds; arrays are not
// round-tripped through the IR (a spilled/array cell is re-derived by
// re-evaluating the owning formula after load).
type irValue struct {
	Kind  string  `json:"kind"`
	Bool  bool    `json:"bool,omitempty"`
	Num   float64 `json:"num,omitempty"`
	Text  string  `json:"text,omitempty"`
	Time  *time.Time `json:"time,omitempty"`
	Error string  `json:"error,omitempty"`
}

// SaveIR writes wb's current cell contents (formulas and literal values,
// not computed results) to path as JSON.
func SaveIR(wb *workbook.Workbook, path string) error {
	doc := irDocument{}
	for _, name := range wb.Graph.Sheets.Names() {
		sheetID, ok := wb.Graph.Sheets.ByName(name)
		if !ok {
			continue
		}
		sheet := irSheet{Name: name}
		maxRow, maxCol := wb.Graph.Arrow.UsedRegion(sheetID)
		for row := uint32(1); row <= maxRow; row++ {
			for col := uint32(1); col <= maxCol; col++ {
				ref := coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: row, Col: col}}
				astID, v, ok := wb.Graph.GetCell(ref)
				if !ok {
					continue
				}
				cell := irCell{Row: row, Col: col}
				switch {
				case astID != 0:
					cell.Formula = wb.Arena().Canonical(astID)
				case v.IsEmpty():
					continue
				default:
					iv := toIRValue(v)
					cell.Value = &iv
				}
				sheet.Cells = append(sheet.Cells, cell)
			}
		}
		doc.Sheets = append(doc.Sheets, sheet)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "xlio: marshal IR document")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.Internal, err, "xlio: write %s", path)
	}
	return nil
}

// LoadIR reads path as a JSON IR document and stages it into wb via the
// ingest builder.
func LoadIR(wb *workbook.Workbook, path string) (LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadResult{}, apperr.Wrap(apperr.NotFound, err, "xlio: read %s", path)
	}
	var doc irDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return LoadResult{}, apperr.Wrap(apperr.InvalidArgument, err, "xlio: parse IR document")
	}

	var result LoadResult
	builder := wb.NewIngestBuilder()
	for _, sheet := range doc.Sheets {
		sheetID, _ := wb.AddSheet(sheet.Name)
		result.Sheets++
		for _, cell := range sheet.Cells {
			ref := coord.CellRef{Sheet: sheetID, Coord: coord.Coord{Row: cell.Row, Col: cell.Col}}
			if cell.Formula != "" {
				builder.StageFormula(ref, cell.Formula)
				continue
			}
			if cell.Value != nil {
				builder.StageValue(ref, fromIRValue(*cell.Value))
			}
		}
	}
	r := builder.Finish()
	result.ValuesInstalled = r.ValuesInstalled
	result.FormulasInstalled = r.FormulasInstalled
	result.FormulasFailed = r.FormulasFailed
	return result, nil
}

func toIRValue(v value.LiteralValue) irValue {
	switch v.Kind {
	case value.KindBoolean:
		return irValue{Kind: "bool", Bool: v.Bool}
	case value.KindInt:
		return irValue{Kind: "num", Num: float64(v.Int)}
	case value.KindNumber, value.KindDuration:
		return irValue{Kind: "num", Num: v.Num}
	case value.KindText:
		return irValue{Kind: "text", Text: v.Text}
	case value.KindDate, value.KindTime, value.KindDateTime:
		t := v.Time
		return irValue{Kind: "time", Time: &t}
	case value.KindError:
		return irValue{Kind: "error", Error: v.Err.Kind.String()}
	default:
		return irValue{Kind: "empty"}
	}
}

func fromIRValue(iv irValue) value.LiteralValue {
	switch iv.Kind {
	case "bool":
		return value.Bool(iv.Bool)
	case "num":
		return value.Number(iv.Num)
	case "text":
		return value.Text(iv.Text)
	case "time":
		if iv.Time != nil {
			return value.DateTime(*iv.Time)
		}
		return value.Empty
	case "error":
		if kind, ok := errorKindByDisplay[iv.Error]; ok {
			return value.ErrorOf(kind)
		}
		return value.ErrorOf(value.ErrValue)
	default:
		return value.Empty
	}
}
