package formula

import (
	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
)

// CollectPrecedents walks the subtree rooted at root and gathers the
// direct cell/range references a formula depends on, resolving
// sheet-less refs (HasSheet == false) against homeSheet — the cell the
// formula is installed on. Shared by the ingest builder and the
// structural editor, both of which need this list to (re-)install
// graph.SetCellFormula's precedent edges.
func CollectPrecedents(arena *ast.Arena, root ast.Id, homeSheet coord.SheetId) ([]coord.CellRef, []coord.RangeRef) {
	var refs []coord.CellRef
	var ranges []coord.RangeRef
	var walk func(id ast.Id)
	walk = func(id ast.Id) {
		n := arena.Get(id)
		switch n.Kind {
		case ast.KindRef:
			sheet := homeSheet
			if n.HasSheet {
				sheet = n.Sheet
			}
			if n.Ref.Valid() {
				refs = append(refs, coord.CellRef{Sheet: sheet, Coord: n.Ref})
			}
		case ast.KindRange:
			sheet := homeSheet
			if n.HasSheet {
				sheet = n.Sheet
			}
			if n.Range.Start.Valid() && n.Range.End.Valid() {
				ranges = append(ranges, coord.RangeRef{Sheet: sheet, Start: n.Range.Start, End: n.Range.End,
					OpenEndRow: n.Range.OpenEndRow, OpenEndCol: n.Range.OpenEndCol,
					OpenStartRow: n.Range.OpenStartRow, OpenStartCol: n.Range.OpenStartCol})
			}
		case ast.KindUnaryOp:
			walk(n.Left)
		case ast.KindBinaryOp:
			walk(n.Left)
			walk(n.Right)
		case ast.KindCall:
			for _, a := range n.Args {
				walk(a)
			}
		case ast.KindArrayLit:
			for _, row := range n.Rows {
				for _, cell := range row {
					walk(cell)
				}
			}
		case ast.KindUnion:
			for _, p := range n.Parts {
				walk(p)
			}
		}
	}
	walk(root)
	return refs, ranges
}
