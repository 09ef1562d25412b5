package coord_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PSU3D0/formualizer-sub003/internal/coord"
)

func TestColumnLettersAndIndex_RoundTrip(t *testing.T) {
	cases := map[uint32]string{
		1: "A", 26: "Z", 27: "AA", 52: "AZ", 702: "ZZ", 703: "AAA",
	}
	for col, letters := range cases {
		assert.Equal(t, letters, coord.ColumnLetters(col))
		assert.Equal(t, col, coord.ColumnIndex(letters))
	}
}

func TestColumnIndex_RejectsNonLetters(t *testing.T) {
	assert.Equal(t, uint32(0), coord.ColumnIndex("A1"))
}

func TestCoord_PackUnpack(t *testing.T) {
	c := coord.Coord{Row: 7, Col: 3}
	p := c.Pack()
	row, col := p.Unpack()
	assert.Equal(t, uint32(7), row)
	assert.Equal(t, uint32(3), col)
}

func TestCoord_Valid(t *testing.T) {
	assert.True(t, coord.Coord{Row: 1, Col: 1}.Valid())
	assert.False(t, coord.Coord{Row: 0, Col: 1}.Valid())
	assert.False(t, coord.Coord{Row: 1, Col: 0}.Valid())
}

func TestCoord_A1(t *testing.T) {
	assert.Equal(t, "B7", coord.Coord{Row: 7, Col: 2}.A1())
	assert.Equal(t, "$B$7", coord.Coord{Row: 7, Col: 2, RowAbs: true, ColAbs: true}.A1())
}

func TestRangeRef_NormalizedSwapsReversedBounds(t *testing.T) {
	r := coord.RangeRef{Start: coord.Coord{Row: 5, Col: 5}, End: coord.Coord{Row: 1, Col: 1}}
	norm := r.Normalized()
	assert.Equal(t, uint32(1), norm.Start.Row)
	assert.Equal(t, uint32(5), norm.End.Row)
}

func TestRangeRef_HeightWidthCellCount(t *testing.T) {
	r := coord.RangeRef{Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 3, Col: 4}}
	assert.Equal(t, uint32(3), r.Height())
	assert.Equal(t, uint32(4), r.Width())
	assert.Equal(t, uint64(12), r.CellCount())
}

func TestRangeRef_ContainsAndIntersects(t *testing.T) {
	r := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 1, Col: 1}, End: coord.Coord{Row: 5, Col: 5}}
	assert.True(t, r.Contains(coord.Coord{Row: 3, Col: 3}))
	assert.False(t, r.Contains(coord.Coord{Row: 6, Col: 3}))

	other := coord.RangeRef{Sheet: 1, Start: coord.Coord{Row: 4, Col: 4}, End: coord.Coord{Row: 8, Col: 8}}
	assert.True(t, r.Intersects(other))

	otherSheet := coord.RangeRef{Sheet: 2, Start: coord.Coord{Row: 4, Col: 4}, End: coord.Coord{Row: 8, Col: 8}}
	assert.False(t, r.Intersects(otherSheet))
}

func TestRangeRef_ResolveClampsOpenAxes(t *testing.T) {
	r := coord.RangeRef{Start: coord.Coord{Row: 1, Col: 1}, OpenEndRow: true, OpenEndCol: true}
	resolved := r.Resolve(10, 6)
	assert.Equal(t, uint32(10), resolved.End.Row)
	assert.Equal(t, uint32(6), resolved.End.Col)
}

func TestSheetRegistry_AddRenameRemove(t *testing.T) {
	reg := coord.NewSheetRegistry()

	id1, ok := reg.Add("Sheet1")
	assert.True(t, ok)
	assert.Equal(t, coord.SheetId(1), id1)

	_, ok = reg.Add("Sheet1")
	assert.False(t, ok, "duplicate name must be rejected")

	id2, ok := reg.Add("Sheet2")
	assert.True(t, ok)
	assert.Equal(t, coord.SheetId(2), id2)

	assert.True(t, reg.Rename(id1, "Renamed"))
	name, ok := reg.Name(id1)
	assert.True(t, ok)
	assert.Equal(t, "Renamed", name)

	byName, ok := reg.ByName("Renamed")
	assert.True(t, ok)
	assert.Equal(t, id1, byName)

	reg.Remove(id2)
	_, ok = reg.ByName("Sheet2")
	assert.False(t, ok)

	assert.Equal(t, []string{"Renamed"}, reg.Names())
}

func TestSheetRegistry_RenameRejectsTakenName(t *testing.T) {
	reg := coord.NewSheetRegistry()
	reg.Add("A")
	id2, _ := reg.Add("B")
	assert.False(t, reg.Rename(id2, "A"))
}
