package formula_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/formula"
)

func TestCollectPrecedents_GathersRefsAndRangesAcrossCallArgs(t *testing.T) {
	arena := ast.NewArena()
	ctx := &formula.Context{CurrentSheet: 5}
	root, err := formula.Parse("SUM(A1,B2:C3)+D4", ctx, arena)
	assert := assert.New(t)
	assert.NoError(err)

	refs, ranges := formula.CollectPrecedents(arena, root, 5)
	assert.ElementsMatch([]coord.CellRef{
		{Sheet: 5, Coord: coord.Coord{Row: 1, Col: 1}},
		{Sheet: 5, Coord: coord.Coord{Row: 4, Col: 4}},
	}, refs)
	assert.Len(ranges, 1)
	assert.Equal(coord.SheetId(5), ranges[0].Sheet)
	assert.Equal(uint32(2), ranges[0].Start.Row)
	assert.Equal(uint32(3), ranges[0].End.Row)
}

func TestCollectPrecedents_SheetQualifiedRefKeepsItsOwnSheet(t *testing.T) {
	arena := ast.NewArena()
	ctx := &formula.Context{
		CurrentSheet: 1,
		ResolveSheet: func(name string) (coord.SheetId, bool) { return 9, true },
	}
	root, err := formula.Parse("Other!A1", ctx, arena)
	assert := assert.New(t)
	assert.NoError(err)

	refs, _ := formula.CollectPrecedents(arena, root, 1)
	assert.Equal([]coord.CellRef{{Sheet: 9, Coord: coord.Coord{Row: 1, Col: 1}}}, refs)
}

func TestCollectPrecedents_SkipsDeadSentinelReferences(t *testing.T) {
	arena := ast.NewArena()
	deadRef := arena.Add(ast.Node{Kind: ast.KindRef, Ref: coord.Coord{}})

	refs, ranges := formula.CollectPrecedents(arena, deadRef, 1)
	assert.Empty(t, refs)
	assert.Empty(t, ranges)
}

func TestCollectPrecedents_WalksArrayLiteralsAndUnions(t *testing.T) {
	arena := ast.NewArena()
	a1 := arena.Add(ast.Node{Kind: ast.KindRef, Ref: coord.Coord{Row: 1, Col: 1}})
	b1 := arena.Add(ast.Node{Kind: ast.KindRef, Ref: coord.Coord{Row: 1, Col: 2}})
	arr := arena.Add(ast.Node{Kind: ast.KindArrayLit, Rows: [][]ast.Id{{a1, b1}}})
	union := arena.Add(ast.Node{Kind: ast.KindUnion, Parts: []ast.Id{arr, a1}})

	refs, _ := formula.CollectPrecedents(arena, union, 1)
	assert.ElementsMatch(t, []coord.CellRef{
		{Sheet: 1, Coord: coord.Coord{Row: 1, Col: 1}},
		{Sheet: 1, Coord: coord.Coord{Row: 1, Col: 2}},
		{Sheet: 1, Coord: coord.Coord{Row: 1, Col: 1}},
	}, refs)
}
