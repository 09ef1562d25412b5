package stripe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/stripe"
)

func TestIsDirect_SmallRangeVsOpenEnded(t *testing.T) {
	idx := stripe.New(stripe.DefaultConfig())
	small := coord.RangeRef{Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 4, Col: 4}}
	assert.True(t, idx.IsDirect(small))

	open := coord.RangeRef{Start: coord.Coord{Row: 1, Col: 1}, OpenEndRow: true}
	assert.False(t, idx.IsDirect(open))
}

func TestAddRange_WideShortUsesRowStripes(t *testing.T) {
	idx := stripe.New(stripe.DefaultConfig())
	r := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 2, Col: 10000}}
	idx.AddRange(1, r)

	candidates := idx.CandidatesForCell(1, 1, 5000)
	assert.Contains(t, candidates, stripe.VertexId(1))
}

func TestAddRange_TallNarrowUsesColumnStripes(t *testing.T) {
	idx := stripe.New(stripe.DefaultConfig())
	r := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 10000, Col: 2}}
	idx.AddRange(1, r)

	candidates := idx.CandidatesForCell(1, 5000, 1)
	assert.Contains(t, candidates, stripe.VertexId(1))
}

func TestAddRange_LargeSquareUsesBlockStripes(t *testing.T) {
	idx := stripe.New(stripe.DefaultConfig())
	r := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 200, Col: 200}}
	idx.AddRange(1, r)

	candidates := idx.CandidatesForCell(1, 100, 100)
	assert.Contains(t, candidates, stripe.VertexId(1))
}

func TestAddRange_OpenEndedUsesBoundedAxisOnly(t *testing.T) {
	idx := stripe.New(stripe.DefaultConfig())
	r := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 1, Col: 3}, OpenEndRow: true, End: coord.Coord{Col: 3}}
	idx.AddRange(1, r)

	candidates := idx.CandidatesForCell(1, 999, 3)
	assert.Contains(t, candidates, stripe.VertexId(1))
}

func TestRemoveRangeEdges_ClearsEmptyStripes(t *testing.T) {
	idx := stripe.New(stripe.DefaultConfig())
	r := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 1, Col: 10000}}
	idx.AddRange(1, r)
	assert.NotZero(t, idx.StripeCount())

	idx.RemoveRangeEdges(1)
	assert.Equal(t, 0, idx.StripeCount())
	assert.Empty(t, idx.Ranges(1))
}

func TestCandidatesForCell_DedupesAcrossStripeKinds(t *testing.T) {
	idx := stripe.New(stripe.DefaultConfig())
	row := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 7, Col: 1}, End: coord.Coord{Row: 7, Col: 9000}}
	col := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 1, Col: 3}, End: coord.Coord{Row: 9000, Col: 3}}
	idx.AddRange(42, row)
	idx.AddRange(42, col)

	candidates := idx.CandidatesForCell(1, 7, 3)
	count := 0
	for _, v := range candidates {
		if v == 42 {
			count++
		}
	}
	assert.Equal(t, 1, count, "the same vertex must not be returned twice even if multiple stripes match")
}
