package workbook

import (
	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/formula"
)

// formulaContext parses one ad-hoc SetCellFormula call against the
// workbook's shared arena/registry/sheet resolver.
type formulaContext struct {
	w   *Workbook
	ref coord.CellRef
}

func (c *formulaContext) parse(src string) (ast.Id, []coord.CellRef, []coord.RangeRef, bool, error) {
	ctx := &formula.Context{
		CurrentSheet: c.ref.Sheet,
		CurrentCoord: c.ref.Coord,
		ResolveSheet: c.w.Graph.Sheets.ByName,
		Functions:    c.w.fns,
	}
	root, err := formula.Parse(src, ctx, c.w.arena)
	if err != nil {
		return 0, nil, nil, false, err
	}
	refs, ranges := formula.CollectPrecedents(c.w.arena, root, c.ref.Sheet)
	volatile := c.w.arena.Get(root).ContainsVolatile
	return root, refs, ranges, volatile, nil
}
