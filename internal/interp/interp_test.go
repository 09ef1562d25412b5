package interp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/functions"
	"github.com/PSU3D0/formualizer-sub003/internal/graph"
	"github.com/PSU3D0/formualizer-sub003/internal/interp"
	"github.com/PSU3D0/formualizer-sub003/internal/stripe"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
)

func newTestEnv(t *testing.T) (*graph.Graph, *ast.Arena, *interp.Interpreter, coord.SheetId) {
	t.Helper()
	arena := ast.NewArena()
	g := graph.New(stripe.DefaultConfig(), arena)
	sheetID, ok := g.AddSheet("Sheet1")
	require.True(t, ok)

	reg := functions.NewRegistry()
	functions.RegisterDefaults(reg, nil)
	reg.Seal()

	return g, arena, interp.New(g, reg), sheetID
}

func cellAt(sheet coord.SheetId, row, col uint32) coord.CellRef {
	return coord.CellRef{Sheet: sheet, Coord: coord.Coord{Row: row, Col: col}}
}

func TestEvaluateVertex_LiteralCellReturnsStoredValue(t *testing.T) {
	g, _, in, sheet := newTestEnv(t)
	ref := cellAt(sheet, 1, 1)
	g.SetCellValue(ref, value.Number(42))

	id, existed := g.Vertices.Lookup(ref)
	_ = existed
	got, err := in.EvaluateVertex(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Equal(t, value.Number(42), got)
}

func TestEvaluateVertex_SimpleArithmetic(t *testing.T) {
	g, arena, in, sheet := newTestEnv(t)
	a1 := cellAt(sheet, 1, 1)
	b1 := cellAt(sheet, 1, 2)
	c1 := cellAt(sheet, 1, 3)

	g.SetCellValue(a1, value.Number(2))
	g.SetCellValue(b1, value.Number(3))

	left := arena.Add(ast.Node{Kind: ast.KindRef, Sheet: sheet, Ref: a1.Coord})
	right := arena.Add(ast.Node{Kind: ast.KindRef, Sheet: sheet, Ref: b1.Coord})
	root := arena.Add(ast.Node{Kind: ast.KindBinaryOp, Op: "+", Left: left, Right: right})

	_, err := g.SetCellFormula(c1, root, []coord.CellRef{a1, b1}, nil, false)
	require.NoError(t, err)

	id, _ := g.Vertices.Lookup(c1)
	got, err := in.EvaluateVertex(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Equal(t, value.Number(5), got)
}

func TestEvaluateVertex_DivisionByZeroYieldsDivError(t *testing.T) {
	g, arena, in, sheet := newTestEnv(t)
	a1 := cellAt(sheet, 1, 1)
	g.SetCellValue(a1, value.Number(0))

	num := arena.Add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitNumber, Num: 10})
	denom := arena.Add(ast.Node{Kind: ast.KindRef, Sheet: sheet, Ref: a1.Coord})
	root := arena.Add(ast.Node{Kind: ast.KindBinaryOp, Op: "/", Left: num, Right: denom})

	b1 := cellAt(sheet, 1, 2)
	_, err := g.SetCellFormula(b1, root, []coord.CellRef{a1}, nil, false)
	require.NoError(t, err)

	id, _ := g.Vertices.Lookup(b1)
	got, err := in.EvaluateVertex(context.Background(), id, 0)
	require.NoError(t, err)
	require.True(t, got.IsError())
	assert.Equal(t, value.ErrDiv, got.Err.Kind)
}

func TestEvaluateVertex_ArrayBroadcastAgainstScalar(t *testing.T) {
	g, arena, in, sheet := newTestEnv(t)
	for i := uint32(1); i <= 2; i++ {
		for j := uint32(1); j <= 2; j++ {
			g.SetCellValue(cellAt(sheet, i, j), value.Number(float64(i*10+j)))
		}
	}

	rangeNode := arena.Add(ast.Node{
		Kind:  ast.KindRange,
		Sheet: sheet,
		Range: coord.RangeRef{
			Sheet: sheet,
			Start: coord.Coord{Row: 1, Col: 1},
			End:   coord.Coord{Row: 2, Col: 2},
		},
	})
	two := arena.Add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitNumber, Num: 2})
	root := arena.Add(ast.Node{Kind: ast.KindBinaryOp, Op: "*", Left: rangeNode, Right: two})

	out := cellAt(sheet, 3, 1)
	precedentRange := coord.RangeRef{Sheet: sheet, Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 2, Col: 2}}
	_, err := g.SetCellFormula(out, root, nil, []coord.RangeRef{precedentRange}, false)
	require.NoError(t, err)

	id, _ := g.Vertices.Lookup(out)
	got, err := in.EvaluateVertex(context.Background(), id, 0)
	require.NoError(t, err)
	require.True(t, got.IsArray())
	rows, cols := got.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, value.Number(22), got.Array[0][0])
	assert.Equal(t, value.Number(44), got.Array[1][1])
}

func TestEvaluateVertex_SelfReferenceRejectedAtFormulaSet(t *testing.T) {
	g, arena, _, sheet := newTestEnv(t)
	self := cellAt(sheet, 5, 5)
	ref := arena.Add(ast.Node{Kind: ast.KindRef, Sheet: sheet, Ref: self.Coord})
	root := arena.Add(ast.Node{Kind: ast.KindUnaryOp, Op: "-", Left: ref})

	_, err := g.SetCellFormula(self, root, []coord.CellRef{self}, nil, false)
	require.Error(t, err)
}

func TestEvaluateVertex_IfShortCircuitsUntakenBranch(t *testing.T) {
	g, arena, in, sheet := newTestEnv(t)
	cond := arena.Add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitBool, Bool: true})
	thenBranch := arena.Add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitNumber, Num: 1})

	// else branch divides by a zero cell; if IF were eager this would
	// propagate a #DIV/0! even though the condition selects thenBranch.
	zero := cellAt(sheet, 9, 9)
	g.SetCellValue(zero, value.Number(0))
	one := arena.Add(ast.Node{Kind: ast.KindLiteral, LitKind: ast.LitNumber, Num: 1})
	zeroRef := arena.Add(ast.Node{Kind: ast.KindRef, Sheet: sheet, Ref: zero.Coord})
	elseBranch := arena.Add(ast.Node{Kind: ast.KindBinaryOp, Op: "/", Left: one, Right: zeroRef})

	root := arena.Add(ast.Node{Kind: ast.KindCall, Func: "IF", Args: []ast.Id{cond, thenBranch, elseBranch}})

	out := cellAt(sheet, 9, 10)
	_, err := g.SetCellFormula(out, root, []coord.CellRef{zero}, nil, false)
	require.NoError(t, err)

	id, _ := g.Vertices.Lookup(out)
	got, err := in.EvaluateVertex(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Equal(t, value.Number(1), got)
}
