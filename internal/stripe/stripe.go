// Package stripe implements the range-dependency compression layer: small
// ranges expand directly to cell edges (handled by the caller, internal/
// edge), while larger ranges are compressed into row/column/block
// "stripes" so that a single cell write can find every formula that
// might depend on it without walking every range in the workbook. This
// is new machinery the teacher's DependencyGraph doesn't have — its
// RangeAddress/rangeObservers map (graph.go) handles only exact-range
// reuse, not sub-linear lookup for huge ranges — so the reverse-index
// shape here follows the same "observer set per key" pattern generalized
// across three key spaces (row, column, block).
package stripe

import "github.com/PSU3D0/formualizer-sub003/internal/coord"

// Type discriminates which axis a stripe indexes.
type Type uint8

const (
	Row Type = iota
	Column
	Block
)

// Key identifies one stripe entry.
type Key struct {
	Sheet coord.SheetId
	Type  Type
	Index uint32
}

// Config controls stripe-selection thresholds.
type Config struct {
	RangeExpansionLimit uint64 // ranges with <= this many cells become direct edges
	BlockWidthThreshold uint32
	BlockHeightThreshold uint32
	BlockSize            uint32 // e.g. 32 for 32x32 blocks
	BlocksEnabled        bool
}

// DefaultConfig matches the values spec'd for the worked examples.
func DefaultConfig() Config {
	return Config{
		RangeExpansionLimit: 4096,
		BlockWidthThreshold: 64,
		BlockHeightThreshold: 64,
		BlockSize:            32,
		BlocksEnabled:        true,
	}
}

// VertexId is kept as a generic uint32 here (rather than importing
// internal/vertex) to avoid a needless import cycle risk; internal/graph
// converts to/from vertex.Id at the call boundary.
type VertexId uint32

// Index holds, per formula vertex, the list of ranges it depends on, and
// the reverse stripe maps used to find formulas affected by a cell edit.
type Index struct {
	cfg Config

	// per-formula range list — required by the invariant that every
	// stripe entry traces back to a recorded range on some vertex.
	ranges map[VertexId][]coord.RangeRef

	stripes map[Key]map[VertexId]struct{}
}

// New creates an empty stripe index using cfg.
func New(cfg Config) *Index {
	return &Index{
		cfg:     cfg,
		ranges:  make(map[VertexId][]coord.RangeRef),
		stripes: make(map[Key]map[VertexId]struct{}),
	}
}

// IsDirect reports whether r is small enough to become a direct cell edge
// instead of a stripe entry.
func (idx *Index) IsDirect(r coord.RangeRef) bool {
	if r.IsOpenEnded() {
		return false
	}
	return uint64(r.Height())*uint64(r.Width()) <= idx.cfg.RangeExpansionLimit
}

// AddRange records that v depends on r. If r is small, the caller should
// install direct cell edges instead and must not call AddRange; AddRange
// is for ranges that need stripe compression. It is a no-op (but still
// records r in the per-formula list) for direct-sized ranges, so that
// RemoveRangeEdges has a uniform place to look regardless of range size.
func (idx *Index) AddRange(v VertexId, r coord.RangeRef) {
	idx.ranges[v] = append(idx.ranges[v], r)
	if idx.IsDirect(r) {
		return
	}
	for _, key := range idx.keysFor(r) {
		set, ok := idx.stripes[key]
		if !ok {
			set = make(map[VertexId]struct{})
			idx.stripes[key] = set
		}
		set[v] = struct{}{}
	}
}

// keysFor computes the stripe keys a range maps to, per the selection
// rule: tall-narrow -> column stripes, short-wide -> row stripes (unless
// both dimensions clear the block thresholds and blocks are enabled, in
// which case -> block stripes). Open-ended ranges use only the bounded
// axis's stripe.
func (idx *Index) keysFor(r coord.RangeRef) []Key {
	r = r.Normalized()
	height, width := r.Height(), r.Width()

	if r.OpenEndRow || r.OpenEndCol || r.OpenStartRow || r.OpenStartCol {
		var keys []Key
		if !r.OpenEndCol && !r.OpenStartCol {
			for c := r.Start.Col; c <= r.End.Col; c++ {
				keys = append(keys, Key{Sheet: r.Sheet, Type: Column, Index: c})
			}
		}
		if !r.OpenEndRow && !r.OpenStartRow {
			for row := r.Start.Row; row <= r.End.Row; row++ {
				keys = append(keys, Key{Sheet: r.Sheet, Type: Row, Index: row})
			}
		}
		return keys
	}

	useBlocks := idx.cfg.BlocksEnabled &&
		width > idx.cfg.BlockWidthThreshold &&
		height > idx.cfg.BlockHeightThreshold

	if useBlocks {
		return idx.blockKeys(r)
	}
	if height <= width {
		keys := make([]Key, 0, height)
		for row := r.Start.Row; row <= r.End.Row; row++ {
			keys = append(keys, Key{Sheet: r.Sheet, Type: Row, Index: row})
		}
		return keys
	}
	keys := make([]Key, 0, width)
	for c := r.Start.Col; c <= r.End.Col; c++ {
		keys = append(keys, Key{Sheet: r.Sheet, Type: Column, Index: c})
	}
	return keys
}

func (idx *Index) blockKeys(r coord.RangeRef) []Key {
	size := idx.cfg.BlockSize
	if size == 0 {
		size = 32
	}
	startBI, endBI := r.Start.Row/size, r.End.Row/size
	startBJ, endBJ := r.Start.Col/size, r.End.Col/size
	var keys []Key
	for bi := startBI; bi <= endBI; bi++ {
		for bj := startBJ; bj <= endBJ; bj++ {
			keys = append(keys, Key{Sheet: r.Sheet, Type: Block, Index: blockIndex(bi, bj)})
		}
	}
	return keys
}

// blockIndex packs a (blockRow, blockCol) pair into a single stripe index.
func blockIndex(bi, bj uint32) uint32 {
	return bi<<16 | (bj & 0xFFFF)
}

// RemoveRangeEdges removes v from every stripe entry generated by its
// recorded ranges, dropping any entry that becomes empty, then clears v's
// range list.
func (idx *Index) RemoveRangeEdges(v VertexId) {
	for _, r := range idx.ranges[v] {
		if idx.IsDirect(r) {
			continue
		}
		for _, key := range idx.keysFor(r) {
			set, ok := idx.stripes[key]
			if !ok {
				continue
			}
			delete(set, v)
			if len(set) == 0 {
				delete(idx.stripes, key)
			}
		}
	}
	delete(idx.ranges, v)
}

// Ranges returns v's recorded range-dependency list.
func (idx *Index) Ranges(v VertexId) []coord.RangeRef { return idx.ranges[v] }

// CandidatesForCell returns every vertex whose stripe footprint covers
// the given sheet cell: its row stripe, column stripe, and (if enabled)
// block stripe.
func (idx *Index) CandidatesForCell(sheet coord.SheetId, row, col uint32) []VertexId {
	seen := make(map[VertexId]struct{})
	var out []VertexId
	add := func(key Key) {
		for v := range idx.stripes[key] {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	add(Key{Sheet: sheet, Type: Row, Index: row})
	add(Key{Sheet: sheet, Type: Column, Index: col})
	if idx.cfg.BlocksEnabled {
		size := idx.cfg.BlockSize
		if size == 0 {
			size = 32
		}
		add(Key{Sheet: sheet, Type: Block, Index: blockIndex(row/size, col/size)})
	}
	return out
}

// StripeCount returns the number of live (non-empty) stripe entries, used
// by tests asserting the "no stripe entry is empty" invariant.
func (idx *Index) StripeCount() int { return len(idx.stripes) }
