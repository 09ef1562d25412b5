package vertex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

func ref(row, col uint32) coord.CellRef {
	return coord.CellRef{Sheet: 1, Coord: coord.Coord{Row: row, Col: col}}
}

func TestEnsureVertex_IsIdempotent(t *testing.T) {
	s := vertex.New()
	a1 := ref(1, 1)
	id1 := s.EnsureVertex(a1)
	id2 := s.EnsureVertex(a1)
	assert.Equal(t, id1, id2)
	assert.GreaterOrEqual(t, id1, vertex.Reserved)
}

func TestEnsureVertices_BatchMatchesSingle(t *testing.T) {
	s := vertex.New()
	refs := []coord.CellRef{ref(1, 1), ref(2, 1), ref(1, 1)}
	ids := s.EnsureVertices(refs)
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[2], "same ref must resolve to the same id")
	assert.NotEqual(t, ids[0], ids[1])
}

func TestFlags_SetHasClear(t *testing.T) {
	s := vertex.New()
	id := s.EnsureVertex(ref(1, 1))
	assert.False(t, s.HasFlag(id, vertex.FlagDirty))
	s.SetFlag(id, vertex.FlagDirty|vertex.FlagVolatile)
	assert.True(t, s.HasFlag(id, vertex.FlagDirty))
	assert.True(t, s.HasFlag(id, vertex.FlagVolatile))
	s.ClearFlag(id, vertex.FlagVolatile)
	assert.True(t, s.HasFlag(id, vertex.FlagDirty))
	assert.False(t, s.HasFlag(id, vertex.FlagVolatile))
}

func TestSetValue_ClearsDirty(t *testing.T) {
	s := vertex.New()
	id := s.EnsureVertex(ref(1, 1))
	s.MarkDirty(id)
	assert.True(t, s.IsDirty(id))
	s.SetValue(id, value.Number(42))
	assert.False(t, s.IsDirty(id))
	assert.Equal(t, value.Number(42), s.Value(id))
}

func TestFormula_SetAndClear(t *testing.T) {
	s := vertex.New()
	id := s.EnsureVertex(ref(1, 1))
	s.SetFormula(id, ast.Id(7))
	assert.Equal(t, ast.Id(7), s.ASTId(id))
	assert.True(t, s.HasFlag(id, vertex.FlagHasFormula))
	s.ClearFormula(id)
	assert.Equal(t, ast.Id(0), s.ASTId(id))
	assert.False(t, s.HasFlag(id, vertex.FlagHasFormula))
}

func TestRemove_RevertsToEmptyButKeepsSlot(t *testing.T) {
	s := vertex.New()
	a1 := ref(1, 1)
	id := s.EnsureVertex(a1)
	s.SetValue(id, value.Number(5))

	removedID, ok := s.Remove(a1)
	require.True(t, ok)
	assert.Equal(t, id, removedID)
	assert.True(t, s.Value(id).IsEmpty())

	_, ok = s.Lookup(a1)
	assert.False(t, ok)
}

func TestRebind_MovesIndexEntry(t *testing.T) {
	s := vertex.New()
	a1 := ref(1, 1)
	b2 := ref(2, 2)
	id := s.EnsureVertex(a1)

	s.Rebind(id, b2)
	_, ok := s.Lookup(a1)
	assert.False(t, ok)
	movedID, ok := s.Lookup(b2)
	require.True(t, ok)
	assert.Equal(t, id, movedID)
	assert.Equal(t, b2, s.Coord(id))
}
