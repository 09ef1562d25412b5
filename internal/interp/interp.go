// Package interp is the formula interpreter: it walks an ast.Node tree
// against a dependency graph and produces a value.LiteralValue (scalar or
// array). It supplies the concrete implementations of
// internal/functions' Context/ArgumentHandle/RangeView/Reference
// interfaces, which is why those interfaces live in internal/functions
// rather than here — this package depends on functions, not the reverse.
package interp

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/functions"
	"github.com/PSU3D0/formualizer-sub003/internal/graph"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

// Interpreter evaluates formula ASTs against a graph using a function
// registry. It implements scheduler.Interpreter.
type Interpreter struct {
	g   *graph.Graph
	reg *functions.Registry
	log zerolog.Logger
}

// New creates an Interpreter over g using reg (already Seal'd).
func New(g *graph.Graph, reg *functions.Registry) *Interpreter {
	return &Interpreter{g: g, reg: reg, log: zerolog.Nop()}
}

// SetLogger installs the structured logger per-vertex evaluation reports
// through, per SPEC_FULL.md §2.1.
func (in *Interpreter) SetLogger(logger zerolog.Logger) {
	in.log = logger.With().Str("component", "interp").Logger()
}

// evalCtx is per-evaluation state threaded through recursive eval calls:
// the sheet a bare reference resolves against, and the seed handed to
// Volatile functions.
type evalCtx struct {
	sheet coord.SheetId
	cell  coord.CellRef
	seed  uint64
}

// EvaluateVertex evaluates vertex id's formula AST and returns its
// result. Vertices with no formula (literal cells) simply return their
// stored value unchanged — the scheduler only calls this for dirty or
// volatile vertices, which are always formula vertices by construction.
func (in *Interpreter) EvaluateVertex(ctx context.Context, id vertex.Id, seed uint64) (value.LiteralValue, error) {
	root := in.g.Vertices.ASTId(id)
	if root == 0 && !in.g.Vertices.HasFlag(id, vertex.FlagHasFormula) {
		return in.g.Vertices.Value(id), nil
	}
	cell := in.g.Vertices.Coord(id)
	ec := evalCtx{sheet: cell.Sheet, cell: cell, seed: seed}
	v, err := in.eval(ctx, ec, root)
	in.log.Debug().Uint32("vertex", uint32(id)).Bool("error", v.IsError() || err != nil).Msg("vertex evaluated")
	return v, err
}

// eval evaluates node within ec, returning a scalar or array LiteralValue.
func (in *Interpreter) eval(ctx context.Context, ec evalCtx, id ast.Id) (value.LiteralValue, error) {
	n := in.g.Arena().Get(id)
	switch n.Kind {
	case ast.KindLiteral:
		return evalLiteral(n), nil

	case ast.KindRef:
		if !n.Ref.Valid() {
			// a structural edit (delete_rows/delete_cols) rewrote this
			// reference into the dead-reference sentinel because it fell
			// strictly inside the deleted band.
			return value.ErrorOf(value.ErrRef), nil
		}
		sheet := n.Sheet
		if !n.HasSheet {
			sheet = ec.sheet
		}
		ref := coord.CellRef{Sheet: sheet, Coord: n.Ref}
		return in.g.GetCellValue(ref), nil

	case ast.KindRange:
		if !n.Range.Start.Valid() || !n.Range.End.Valid() {
			return value.ErrorOf(value.ErrRef), nil
		}
		r := n.Range
		if !n.HasSheet {
			r.Sheet = ec.sheet
		}
		rv := in.rangeView(r)
		return rangeToArray(rv), nil

	case ast.KindName:
		id, entry, ok := in.g.ResolveNameEntry(ec.sheet, n.Name)
		if !ok {
			return value.ErrorOf(value.ErrName), nil
		}
		_ = id
		switch entry.Kind {
		case 0: // names.KindCell
			return in.g.GetCellValue(entry.Cell), nil
		case 1: // names.KindRange
			return rangeToArray(in.rangeView(entry.Range)), nil
		default: // names.KindFormula
			return in.eval(ctx, ec, entry.Formula)
		}

	case ast.KindUnaryOp:
		v, err := in.eval(ctx, ec, n.Left)
		if err != nil {
			return value.LiteralValue{}, err
		}
		if v.IsError() {
			return v, nil
		}
		num, errv := v.ToNumber(false)
		if errv != nil {
			return value.Error(*errv), nil
		}
		switch n.Op {
		case "-":
			return value.Number(-num), nil
		case "+":
			return value.Number(num), nil
		case "%":
			return value.Number(num / 100.0), nil
		}
		return value.ErrorOf(value.ErrValue), nil

	case ast.KindBinaryOp:
		return in.evalBinary(ctx, ec, n)

	case ast.KindCall:
		return in.evalCall(ctx, ec, n)

	case ast.KindArrayLit:
		rows := make([][]value.LiteralValue, len(n.Rows))
		for r, row := range n.Rows {
			cells := make([]value.LiteralValue, len(row))
			for c, cellID := range row {
				v, err := in.eval(ctx, ec, cellID)
				if err != nil {
					return value.LiteralValue{}, err
				}
				cells[c] = v
			}
			rows[r] = cells
		}
		return value.NewArray(rows), nil

	case ast.KindUnion:
		// a reference union is only meaningful as a reference argument;
		// evaluated as a value it degrades to its first part's value,
		// consistent with Excel's "multi-area reference used where a
		// single value is expected" fallback.
		if len(n.Parts) == 0 {
			return value.ErrorOf(value.ErrRef), nil
		}
		return in.eval(ctx, ec, n.Parts[0])

	default:
		return value.ErrorOf(value.ErrValue), nil
	}
}

func evalLiteral(n *ast.Node) value.LiteralValue {
	switch n.LitKind {
	case ast.LitNumber:
		return value.Number(n.Num)
	case ast.LitText:
		return value.Text(n.Text)
	case ast.LitBool:
		return value.Bool(n.Bool)
	default:
		return value.Empty
	}
}

// evalBinary implements Excel-style broadcasting: scalar⊕scalar is a
// direct op; any array operand broadcasts element-wise against the other
// operand (padding a smaller shape with Empty, coerced to 0/"").
func (in *Interpreter) evalBinary(ctx context.Context, ec evalCtx, n *ast.Node) (value.LiteralValue, error) {
	l, err := in.eval(ctx, ec, n.Left)
	if err != nil {
		return value.LiteralValue{}, err
	}
	r, err := in.eval(ctx, ec, n.Right)
	if err != nil {
		return value.LiteralValue{}, err
	}

	if l.IsArray() || r.IsArray() {
		return broadcast(l, r, n.Op), nil
	}
	return applyScalarOp(l, r, n.Op), nil
}

func broadcast(l, r value.LiteralValue, op string) value.LiteralValue {
	lr, lc := l.Dims()
	rr, rc := r.Dims()
	rows := lr
	if rr > rows {
		rows = rr
	}
	cols := lc
	if rc > cols {
		cols = rc
	}
	out := make([][]value.LiteralValue, rows)
	for i := 0; i < rows; i++ {
		row := make([]value.LiteralValue, cols)
		for j := 0; j < cols; j++ {
			row[j] = applyScalarOp(elemAt(l, i, j), elemAt(r, i, j), op)
		}
		out[i] = row
	}
	return value.NewArray(out)
}

func elemAt(v value.LiteralValue, i, j int) value.LiteralValue {
	if !v.IsArray() {
		if i == 0 && j == 0 {
			return v
		}
		return value.Empty
	}
	if i >= len(v.Array) || j >= len(v.Array[i]) {
		return value.Empty
	}
	return v.Array[i][j]
}

func applyScalarOp(l, r value.LiteralValue, op string) value.LiteralValue {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}

	switch op {
	case "&":
		return value.Text(l.ToText() + r.ToText())
	case "=", "<>", "<", ">", "<=", ">=":
		cmp, errv, ok := value.Compare(l, r)
		if !ok {
			return value.Error(*errv)
		}
		var b bool
		switch op {
		case "=":
			b = cmp == 0
		case "<>":
			b = cmp != 0
		case "<":
			b = cmp < 0
		case ">":
			b = cmp > 0
		case "<=":
			b = cmp <= 0
		case ">=":
			b = cmp >= 0
		}
		return value.Bool(b)
	}

	ln, lerr := l.ToNumber(false)
	if lerr != nil {
		return value.Error(*lerr)
	}
	rn, rerr := r.ToNumber(false)
	if rerr != nil {
		return value.Error(*rerr)
	}

	switch op {
	case "+":
		return value.Number(ln + rn)
	case "-":
		return value.Number(ln - rn)
	case "*":
		return value.Number(ln * rn)
	case "/":
		if rn == 0 {
			return value.ErrorOf(value.ErrDiv)
		}
		return value.Number(ln / rn)
	case "^":
		if ln < 0 && rn != math.Trunc(rn) {
			return value.ErrorOf(value.ErrNum)
		}
		return value.Number(math.Pow(ln, rn))
	}
	return value.ErrorOf(value.ErrValue)
}

// evalCall dispatches a function call through the registry, wrapping
// each argument node in a lazily-evaluated ArgumentHandle so that
// BoolOnly (AND/OR) handlers can short-circuit without this function
// evaluating every argument up front.
func (in *Interpreter) evalCall(ctx context.Context, ec evalCtx, n *ast.Node) (value.LiteralValue, error) {
	h, ok := in.reg.Lookup(n.Func)
	if !ok {
		return value.ErrorOf(value.ErrName), nil
	}
	if len(n.Args) < h.MinArgs() {
		return value.ErrorOf(value.ErrValue), nil
	}

	args := make([]functions.ArgumentHandle, len(n.Args))
	for i, argID := range n.Args {
		args[i] = &argHandle{in: in, ctx: ctx, ec: ec, node: argID}
	}

	fctx := &callContext{in: in, ec: ec}
	return h.Call(fctx, args)
}

// rangeView constructs a functions.RangeView-compatible view over r,
// resolving open-ended bounds against the sheet's used region.
func (in *Interpreter) rangeView(r coord.RangeRef) *rangeViewImpl {
	if r.IsOpenEnded() {
		rows, cols := in.g.Arrow.UsedRegion(r.Sheet)
		r = r.Resolve(rows, cols)
	}
	return &rangeViewImpl{in: in, r: r}
}

func rangeToArray(rv *rangeViewImpl) value.LiteralValue {
	rows, cols := rv.Dims()
	out := make([][]value.LiteralValue, rows)
	for i := 0; i < rows; i++ {
		row := make([]value.LiteralValue, cols)
		for j := 0; j < cols; j++ {
			row[j] = rv.At(i, j)
		}
		out[i] = row
	}
	return value.NewArray(out)
}

// --- functions.ArgumentHandle / Reference / RangeView / Context impls

type argHandle struct {
	in   *Interpreter
	ctx  context.Context
	ec   evalCtx
	node ast.Id
}

func (a *argHandle) Value() (value.LiteralValue, error) {
	return a.in.eval(a.ctx, a.ec, a.node)
}

func (a *argHandle) AsReference() (functions.Reference, bool) {
	n := a.in.g.Arena().Get(a.node)
	switch n.Kind {
	case ast.KindRef:
		r := coord.RangeRef{Sheet: n.Sheet, Start: n.Ref, End: n.Ref}
		if !n.HasSheet {
			r.Sheet = a.ec.sheet
		}
		return &refImpl{r: r}, true
	case ast.KindRange:
		r := n.Range
		if !n.HasSheet {
			r.Sheet = a.ec.sheet
		}
		return &refImpl{r: r}, true
	case ast.KindName:
		_, entry, ok := a.in.g.ResolveNameEntry(a.ec.sheet, n.Name)
		if !ok || entry.Kind == 2 {
			return nil, false
		}
		if entry.Kind == 0 {
			return &refImpl{r: coord.RangeRef{Sheet: entry.Cell.Sheet, Start: entry.Cell.Coord, End: entry.Cell.Coord}}, true
		}
		return &refImpl{r: entry.Range}, true
	default:
		return nil, false
	}
}

func (a *argHandle) AsRangeView() (functions.RangeView, bool) {
	ref, ok := a.AsReference()
	if !ok {
		return nil, false
	}
	return a.in.rangeView(ref.Range()), true
}

type refImpl struct{ r coord.RangeRef }

func (r *refImpl) Range() coord.RangeRef { return r.r }

type rangeViewImpl struct {
	in *Interpreter
	r  coord.RangeRef
}

func (rv *rangeViewImpl) Range() coord.RangeRef { return rv.r }

func (rv *rangeViewImpl) Dims() (int, int) {
	return int(rv.r.Height()), int(rv.r.Width())
}

func (rv *rangeViewImpl) At(row, col int) value.LiteralValue {
	ref := coord.CellRef{
		Sheet: rv.r.Sheet,
		Coord: coord.Coord{Row: rv.r.Start.Row + uint32(row), Col: rv.r.Start.Col + uint32(col)},
	}
	return rv.in.g.GetCellValue(ref)
}

func (rv *rangeViewImpl) Rows(yield func(row []value.LiteralValue) bool) {
	_, cols := rv.Dims()
	buf := make([]value.LiteralValue, cols)
	for r := rv.r.Start.Row; r <= rv.r.End.Row; r++ {
		for c := 0; c < cols; c++ {
			buf[c] = rv.in.g.GetCellValue(coord.CellRef{Sheet: rv.r.Sheet, Coord: coord.Coord{Row: r, Col: rv.r.Start.Col + uint32(c)}})
		}
		if !yield(buf) {
			return
		}
	}
}

// callContext implements functions.Context for one call's duration.
type callContext struct {
	in *Interpreter
	ec evalCtx
}

func (c *callContext) CurrentCell() coord.CellRef { return c.ec.cell }
func (c *callContext) Cancelled() bool            { return false }
func (c *callContext) Seed() uint64               { return c.ec.seed }

func (c *callContext) ResolveRange(r coord.RangeRef) functions.RangeView {
	return c.in.rangeView(r)
}
