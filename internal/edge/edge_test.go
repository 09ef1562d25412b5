package edge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PSU3D0/formualizer-sub003/internal/edge"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

func idSet(ids []vertex.Id) map[vertex.Id]bool {
	m := make(map[vertex.Id]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestAddEdge_PrecedentsAndDependents(t *testing.T) {
	s := edge.New()
	s.AddEdge(10, 20)
	s.AddEdge(10, 21)

	assert.Equal(t, map[vertex.Id]bool{20: true, 21: true}, idSet(s.Precedents(10)))
	assert.Equal(t, map[vertex.Id]bool{10: true}, idSet(s.Dependents(20)))
}

func TestAddEdge_SelfLoopIsNoOp(t *testing.T) {
	s := edge.New()
	s.AddEdge(5, 5)
	assert.Empty(t, s.Precedents(5))
}

func TestRemoveEdge(t *testing.T) {
	s := edge.New()
	s.AddEdge(1, 2)
	s.RemoveEdge(1, 2)
	assert.Empty(t, s.Precedents(1))
	assert.Empty(t, s.Dependents(2))
}

func TestClearPrecedents(t *testing.T) {
	s := edge.New()
	s.AddEdge(1, 2)
	s.AddEdge(1, 3)
	s.ClearPrecedents(1)
	assert.Empty(t, s.Precedents(1))
	assert.Empty(t, s.Dependents(2))
	assert.Empty(t, s.Dependents(3))
}

func TestBatch_SmallDeltaVisibleAfterEndBatch(t *testing.T) {
	s := edge.New()
	s.BeginBatch()
	s.AddEdge(1, 2)
	s.AddEdge(1, 3)
	s.EndBatch()
	assert.Equal(t, map[vertex.Id]bool{2: true, 3: true}, idSet(s.Precedents(1)))
}

func TestBatch_LargeDeltaForcesRebuild(t *testing.T) {
	s := edge.New()
	s.BeginBatch()
	for i := vertex.Id(1); i <= edge.CollapseThreshold+1; i++ {
		s.AddEdge(0, i)
	}
	s.EndBatch()
	assert.Equal(t, 0, s.PendingOps())
	assert.Len(t, s.Precedents(0), edge.CollapseThreshold+1)
}

func TestRebuild_PreservesAdjacencyAfterMixedOps(t *testing.T) {
	s := edge.New()
	s.AddEdge(1, 2)
	s.AddEdge(1, 3)
	s.AddEdge(4, 2)
	for i := vertex.Id(100); i < 100+edge.CollapseThreshold-3; i++ {
		s.AddEdge(1, i)
	}
	assert.Equal(t, 0, s.PendingOps())

	s.RemoveEdge(1, 3)
	assert.NotContains(t, idSet(s.Precedents(1)), vertex.Id(3))
	assert.Contains(t, idSet(s.Precedents(1)), vertex.Id(2))
	assert.Contains(t, idSet(s.Dependents(2)), vertex.Id(1))
	assert.Contains(t, idSet(s.Dependents(2)), vertex.Id(4))
}
