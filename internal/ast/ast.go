// Package ast defines the formula abstract syntax tree as a single
// tagged-variant struct (per spec.md §9: "The AST node itself is a tagged
// variant (Literal, Ref, UnaryOp, BinaryOp, Call, Array), not an
// inheritance tree"), plus the append-only arena that owns nodes for the
// lifetime of a workbook.
//
// The AST and the tokenizer/parser that produces it are, per spec.md §1,
// consumed boundaries rather than the redesigned core — but since no
// external parser is supplied to this module, internal/formula implements
// a minimal one against this AST shape.
package ast

import (
	"strconv"
	"strings"

	"github.com/PSU3D0/formualizer-sub003/internal/coord"
)

// Kind discriminates an AST node's variant.
type Kind uint8

const (
	KindLiteral Kind = iota
	KindRef         // a single cell reference
	KindRange       // a range reference
	KindName        // a named range/definition reference
	KindUnaryOp
	KindBinaryOp
	KindCall
	KindArrayLit // array literal, e.g. {1,2;3,4}
	KindUnion    // reference union operator
)

// LiteralKind mirrors value.Kind for the subset of literals a formula can
// spell directly (numbers, strings, booleans); kept separate from
// value.Kind to avoid a dependency from ast -> value for simple scalars.
type LiteralKind uint8

const (
	LitNumber LiteralKind = iota
	LitText
	LitBool
)

// Id indexes a Node within an Arena.
type Id uint32

// Node is the tagged-variant AST node. Exactly the fields relevant to Kind
// are populated; this trades a little memory for avoiding a Go interface
// (and its associated dynamic dispatch / allocation) per node.
type Node struct {
	Kind Kind

	// KindLiteral
	LitKind LiteralKind
	Num     float64
	Text    string
	Bool    bool

	// KindRef / KindRange: sheet is optional (0 = current sheet context)
	Sheet coord.SheetId
	HasSheet bool
	Ref      coord.Coord
	Range    coord.RangeRef

	// KindName
	Name string

	// KindUnaryOp / KindBinaryOp
	Op    string
	Left  Id
	Right Id // unused for unary

	// KindCall
	Func string
	Args []Id

	// KindArrayLit
	Rows [][]Id

	// KindUnion
	Parts []Id

	// ContainsVolatile is bubbled up by the parser: true iff this node or
	// any descendant is (or calls) a volatile function. Consumed by the
	// graph façade to set the Volatile vertex flag.
	ContainsVolatile bool

	// IsDynamic marks nodes whose reference set can change between
	// evaluations (OFFSET/INDIRECT/etc., per the function registry's
	// Dynamic capability) — consumed by the scheduler's virtual
	// dependency pass (spec.md §4.6).
	IsDynamic bool
}

// Arena is an append-only store of Nodes, shared by all formulas in a
// workbook. Nodes are never individually freed; an AST referenced by zero
// vertices is simply abandoned (never walked again) at the end of a
// mutation batch, per spec.md §3's lifecycle note — the arena itself does
// not compact.
type Arena struct {
	nodes []Node
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{nodes: make([]Node, 0, 64)}
}

// Add appends n and returns its Id.
func (a *Arena) Add(n Node) Id {
	id := Id(len(a.nodes))
	a.nodes = append(a.nodes, n)
	return id
}

// Get returns the node for id. Panics on an out-of-range id, which would
// indicate a corrupted arena reference (an internal invariant violation,
// per spec.md §7 category 3) rather than a recoverable API error.
func (a *Arena) Get(id Id) *Node {
	return &a.nodes[id]
}

// Len returns the number of nodes ever allocated (not the number of live
// formulas referencing them).
func (a *Arena) Len() int { return len(a.nodes) }

// Canonical renders a normalized textual form of the subtree rooted at id,
// used for display and as the formula text the JSON IR backend saves
// (the ingest builder's AST cache is keyed on source text, not on this
// form). Two formulas with the same
// structure (ignoring superficial whitespace already stripped by the
// parser) produce the same canonical text.
func (a *Arena) Canonical(id Id) string {
	var b strings.Builder
	a.writeCanonical(&b, id)
	return b.String()
}

func (a *Arena) writeCanonical(b *strings.Builder, id Id) {
	n := a.Get(id)
	switch n.Kind {
	case KindLiteral:
		switch n.LitKind {
		case LitNumber:
			b.WriteString(formatNum(n.Num))
		case LitText:
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(n.Text, `"`, `""`))
			b.WriteByte('"')
		case LitBool:
			if n.Bool {
				b.WriteString("TRUE")
			} else {
				b.WriteString("FALSE")
			}
		}
	case KindRef:
		if n.HasSheet {
			b.WriteString("SHEET")
		}
		b.WriteString(n.Ref.A1())
	case KindRange:
		if n.HasSheet {
			b.WriteString("SHEET")
		}
		b.WriteString(n.Range.Start.A1())
		b.WriteByte(':')
		b.WriteString(n.Range.End.A1())
	case KindName:
		b.WriteString(n.Name)
	case KindUnaryOp:
		b.WriteString(n.Op)
		a.writeCanonical(b, n.Left)
	case KindBinaryOp:
		b.WriteByte('(')
		a.writeCanonical(b, n.Left)
		b.WriteString(n.Op)
		a.writeCanonical(b, n.Right)
		b.WriteByte(')')
	case KindCall:
		b.WriteString(n.Func)
		b.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			a.writeCanonical(b, arg)
		}
		b.WriteByte(')')
	case KindArrayLit:
		b.WriteByte('{')
		for r, row := range n.Rows {
			if r > 0 {
				b.WriteByte(';')
			}
			for c, cell := range row {
				if c > 0 {
					b.WriteByte(',')
				}
				a.writeCanonical(b, cell)
			}
		}
		b.WriteByte('}')
	case KindUnion:
		for i, p := range n.Parts {
			if i > 0 {
				b.WriteByte(' ')
			}
			a.writeCanonical(b, p)
		}
	}
}

func formatNum(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
