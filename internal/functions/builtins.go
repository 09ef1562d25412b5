package functions

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PSU3D0/formualizer-sub003/internal/value"
)

// Clock abstracts wall-clock access so NOW/TODAY are deterministic in
// tests, mirroring the teacher's Clock/WallClock split in builtin.go.
type Clock interface {
	Now() time.Time
}

// WallClock is the production Clock, backed by time.Now.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// baseHandler gives every concrete handler below its Name/Capabilities/
// MinArgs/Variadic bookkeeping without repeating boilerplate.
type baseHandler struct {
	name     string
	caps     Capability
	minArgs  int
	variadic bool
	call     func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error)
}

func (b *baseHandler) Name() string            { return b.name }
func (b *baseHandler) Capabilities() Capability { return b.caps }
func (b *baseHandler) MinArgs() int             { return b.minArgs }
func (b *baseHandler) Variadic() bool           { return b.variadic }
func (b *baseHandler) Call(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
	return b.call(ctx, args)
}

// RegisterDefaults populates r with a reference set of built-ins covering
// every capability in spec.md §4.7, using clock for NOW/TODAY. This is
// not the Excel function catalog (explicitly out of scope, spec.md §1) —
// just enough for the engine's dependency/scheduling machinery to have
// real callers.
func RegisterDefaults(r *Registry, clock Clock) {
	if clock == nil {
		clock = WallClock{}
	}
	for _, h := range defaultHandlers(clock) {
		r.Register(h)
	}
}

func defaultHandlers(clock Clock) []Handler {
	return []Handler{
		reduceHandler("SUM", func(acc, v float64) float64 { return acc + v }, 0),
		reduceHandler("PRODUCT", func(acc, v float64) float64 { return acc * v }, 1),
		countHandler(),
		averageHandler(),
		minMaxHandler("MAX", true),
		minMaxHandler("MIN", false),
		ifHandler(),
		andOrHandler("AND", true),
		andOrHandler("OR", false),
		notHandler(),
		concatenateHandler(),
		nowHandler(clock),
		todayHandler(clock),
		randHandler(),
		randBetweenHandler(),
		offsetHandler(),
		indirectHandler(),
		ddbHandler(),
		vlookupHandler(),
	}
}

// --- reduction-capability handlers: iterate via RangeView, never
// materializing an argument that is a whole-column range.

func reduceHandler(name string, fold func(acc, v float64) float64, identity float64) Handler {
	return &baseHandler{
		name: name, caps: Pure | Reduction, minArgs: 1, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			acc := identity
			err := forEachNumber(args, func(f float64) { acc = fold(acc, f) })
			if err != nil {
				return value.LiteralValue{}, nil
			}
			return value.Number(acc), nil
		},
	}
}

func countHandler() Handler {
	return &baseHandler{
		name: "COUNT", caps: Pure | Reduction, minArgs: 1, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			n := 0
			_ = forEachNumber(args, func(float64) { n++ })
			return value.Int(int64(n)), nil
		},
	}
}

func averageHandler() Handler {
	return &baseHandler{
		name: "AVERAGE", caps: Pure | Reduction, minArgs: 1, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			sum, n := 0.0, 0
			err := forEachNumber(args, func(f float64) { sum += f; n++ })
			if err != nil {
				return value.ErrorOf(value.ErrValue), nil
			}
			if n == 0 {
				return value.ErrorOf(value.ErrDiv), nil
			}
			return value.Number(sum / float64(n)), nil
		},
	}
}

func minMaxHandler(name string, isMax bool) Handler {
	return &baseHandler{
		name: name, caps: Pure | Reduction, minArgs: 1, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			best := 0.0
			seen := false
			_ = forEachNumber(args, func(f float64) {
				if !seen || (isMax && f > best) || (!isMax && f < best) {
					best, seen = f, true
				}
			})
			return value.Number(best), nil
		},
	}
}

// forEachNumber iterates every numeric cell across args, coercing
// scalars and walking RangeViews via Rows (bounded, chunk-friendly
// iteration per spec.md's supplemented window-ctx requirement). Text and
// empty cells inside ranges are skipped (Excel aggregate-function
// convention); a scalar argument that does not coerce to a number is
// skipped as well, and only an error value stops the walk.
func forEachNumber(args []ArgumentHandle, f func(float64)) error {
	for _, a := range args {
		if rv, ok := a.AsRangeView(); ok {
			var walkErr error
			rv.Rows(func(row []value.LiteralValue) bool {
				for _, cell := range row {
					if cell.IsEmpty() || cell.Kind == value.KindText {
						continue
					}
					if cell.IsError() {
						walkErr = cell.Err
						return false
					}
					n, errv := cell.ToNumber(false)
					if errv != nil {
						continue
					}
					f(n)
				}
				return true
			})
			if walkErr != nil {
				return walkErr
			}
			continue
		}
		v, err := a.Value()
		if err != nil {
			return err
		}
		if v.IsEmpty() {
			continue
		}
		if v.IsError() {
			return v.Err
		}
		n, errv := v.ToNumber(false)
		if errv != nil {
			continue
		}
		f(n)
	}
	return nil
}

// --- logical handlers

func ifHandler() Handler {
	return &baseHandler{
		name: "IF", caps: Pure, minArgs: 2, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			cond, err := args[0].Value()
			if err != nil {
				return value.LiteralValue{}, err
			}
			if cond.IsError() {
				return cond, nil
			}
			b := truthy(cond)
			if b {
				return args[1].Value()
			}
			if len(args) >= 3 {
				return args[2].Value()
			}
			return value.Bool(false), nil
		},
	}
}

func truthy(v value.LiteralValue) bool {
	switch v.Kind {
	case value.KindBoolean:
		return v.Bool
	default:
		n, err := v.ToNumber(false)
		return err == nil && n != 0
	}
}

// andOrHandler short-circuits lazily: it stops pulling arguments once a
// decisive value is found, per spec.md §4.7 ("AND/OR must short-circuit
// lazily ... without evaluating the rest").
func andOrHandler(name string, isAnd bool) Handler {
	return &baseHandler{
		name: name, caps: Pure | BoolOnly, minArgs: 1, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			for _, a := range args {
				v, err := a.Value()
				if err != nil {
					return value.LiteralValue{}, err
				}
				if v.IsError() {
					return v, nil
				}
				b := truthy(v)
				if isAnd && !b {
					return value.Bool(false), nil
				}
				if !isAnd && b {
					return value.Bool(true), nil
				}
			}
			return value.Bool(isAnd), nil
		},
	}
}

func notHandler() Handler {
	return &baseHandler{
		name: "NOT", caps: Pure | BoolOnly, minArgs: 1,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			v, err := args[0].Value()
			if err != nil {
				return value.LiteralValue{}, err
			}
			if v.IsError() {
				return v, nil
			}
			return value.Bool(!truthy(v)), nil
		},
	}
}

func concatenateHandler() Handler {
	return &baseHandler{
		name: "CONCATENATE", caps: Pure, minArgs: 1, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			var b strings.Builder
			for _, a := range args {
				v, err := a.Value()
				if err != nil {
					return value.LiteralValue{}, err
				}
				if v.IsError() {
					return v, nil
				}
				b.WriteString(v.ToText())
			}
			return value.Text(b.String()), nil
		},
	}
}

// --- volatile handlers

func nowHandler(clock Clock) Handler {
	return &baseHandler{
		name: "NOW", caps: Volatile, minArgs: 0,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			return value.DateTime(clock.Now()), nil
		},
	}
}

func todayHandler(clock Clock) Handler {
	return &baseHandler{
		name: "TODAY", caps: Volatile, minArgs: 0,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			t := clock.Now()
			return value.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())), nil
		},
	}
}

func randHandler() Handler {
	return &baseHandler{
		name: "RAND", caps: Volatile, minArgs: 0,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			return value.Number(seededFloat(ctx.Seed())), nil
		},
	}
}

func randBetweenHandler() Handler {
	return &baseHandler{
		name: "RANDBETWEEN", caps: Volatile, minArgs: 2,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			lo, err := numArg(args, 0)
			if err != nil {
				return value.LiteralValue{}, err
			}
			hi, err := numArg(args, 1)
			if err != nil {
				return value.LiteralValue{}, err
			}
			if hi < lo {
				return value.ErrorOf(value.ErrNum), nil
			}
			span := hi - lo + 1
			return value.Int(int64(lo) + int64(seededFloat(ctx.Seed())*span)), nil
		},
	}
}

// --- reference-returning / Dynamic handlers (spec.md §4.6): re-evaluated
// against a recording resolver every pass because the cells they touch
// can change between evaluations.

func offsetHandler() Handler {
	return &baseHandler{
		name: "OFFSET", caps: ReturnsReference | Dynamic | Volatile, minArgs: 3, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			ref, ok := args[0].AsReference()
			if !ok {
				return value.ErrorOf(value.ErrRef), nil
			}
			rowOff, err := numArg(args, 1)
			if err != nil {
				return value.LiteralValue{}, err
			}
			colOff, err := numArg(args, 2)
			if err != nil {
				return value.LiteralValue{}, err
			}
			r := ref.Range()
			r.Start.Row = addOffset(r.Start.Row, rowOff)
			r.End.Row = addOffset(r.End.Row, rowOff)
			r.Start.Col = addOffset(r.Start.Col, colOff)
			r.End.Col = addOffset(r.End.Col, colOff)
			if len(args) >= 5 {
				h, _ := numArg(args, 3)
				w, _ := numArg(args, 4)
				if h > 0 {
					r.End.Row = r.Start.Row + uint32(h) - 1
				}
				if w > 0 {
					r.End.Col = r.Start.Col + uint32(w) - 1
				}
			}
			rv := ctx.ResolveRange(r)
			if rv == nil {
				return value.ErrorOf(value.ErrRef), nil
			}
			if rows, cols := rv.Dims(); rows == 1 && cols == 1 {
				return rv.At(0, 0), nil
			}
			return rangeViewToArray(rv), nil
		},
	}
}

func addOffset(base uint32, delta float64) uint32 {
	v := int64(base) + int64(delta)
	if v < 1 {
		return 1
	}
	return uint32(v)
}

func indirectHandler() Handler {
	return &baseHandler{
		name: "INDIRECT", caps: ReturnsReference | Dynamic | Volatile, minArgs: 1,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			// No textual address is resolved: the registry boundary only
			// sees ArgumentHandle/value, and the interpreter has no
			// INDIRECT path either, so every readable argument yields
			// #REF!; a read failure is returned as the error.
			v, err := args[0].Value()
			if err != nil {
				return value.LiteralValue{}, err
			}
			if v.Kind != value.KindText {
				return value.ErrorOf(value.ErrRef), nil
			}
			return value.ErrorOf(value.ErrRef), nil
		},
	}
}

func rangeViewToArray(rv RangeView) value.LiteralValue {
	rows, cols := rv.Dims()
	out := make([][]value.LiteralValue, rows)
	for r := 0; r < rows; r++ {
		row := make([]value.LiteralValue, cols)
		for c := 0; c < cols; c++ {
			row[c] = rv.At(r, c)
		}
		out[r] = row
	}
	return value.NewArray(out)
}

// --- lookup

func vlookupHandler() Handler {
	return &baseHandler{
		name: "VLOOKUP", caps: Pure | Lookup, minArgs: 3, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			key, err := args[0].Value()
			if err != nil {
				return value.LiteralValue{}, err
			}
			rv, ok := args[1].AsRangeView()
			if !ok {
				return value.ErrorOf(value.ErrValue), nil
			}
			colIdx, err := numArg(args, 2)
			if err != nil {
				return value.LiteralValue{}, err
			}
			rows, cols := rv.Dims()
			ci := int(colIdx) - 1
			if ci < 0 || ci >= cols {
				return value.ErrorOf(value.ErrRef), nil
			}
			for r := 0; r < rows; r++ {
				if value.Equal(rv.At(r, 0), key) {
					return rv.At(r, ci), nil
				}
			}
			return value.ErrorOf(value.ErrNA), nil
		},
	}
}

// --- financial: DDB, reproducing original_source's fractional-period
// truncation rather than prorating it (spec.md §9 open question, resolved
// here as an intentional deviation from Excel, not a bug).

func ddbHandler() Handler {
	return &baseHandler{
		name: "DDB", caps: Pure, minArgs: 4, variadic: true,
		call: func(ctx Context, args []ArgumentHandle) (value.LiteralValue, error) {
			cost, err := numArg(args, 0)
			if err != nil {
				return value.LiteralValue{}, err
			}
			salvage, err := numArg(args, 1)
			if err != nil {
				return value.LiteralValue{}, err
			}
			life, err := numArg(args, 2)
			if err != nil {
				return value.LiteralValue{}, err
			}
			period, err := numArg(args, 3)
			if err != nil {
				return value.LiteralValue{}, err
			}
			factor := 2.0
			if len(args) >= 5 {
				factor, _ = numArg(args, 4)
			}
			if cost < 0 || salvage < 0 || life <= 0 || period <= 0 || period > life {
				return value.ErrorOf(value.ErrNum), nil
			}
			// deviation: truncate the period to an integer count of
			// whole periods rather than prorating the final fractional
			// period, matching the original engine's behavior.
			periods := int(period)
			rate := factor / life
			bookValue := cost
			var depreciation float64
			for i := 0; i < periods; i++ {
				depreciation = bookValue * rate
				if bookValue-depreciation < salvage {
					depreciation = bookValue - salvage
				}
				bookValue -= depreciation
			}
			return value.Number(depreciation), nil
		},
	}
}

func numArg(args []ArgumentHandle, i int) (float64, error) {
	v, err := args[i].Value()
	if err != nil {
		return 0, err
	}
	if v.IsError() {
		return 0, v.Err
	}
	n, errv := v.ToNumber(false)
	if errv != nil {
		return 0, *errv
	}
	return n, nil
}

// seededFloat derives a float64 in [0,1) from the evaluation seed so that
// RAND/RANDBETWEEN are reproducible within a single evaluation pass when
// the workbook is configured with a fixed seed, and fall back to the
// process-global source otherwise.
func seededFloat(seed uint64) float64 {
	if seed == 0 {
		return rand.Float64()
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	return r.Float64()
}
