// Package functions is the function registry boundary described by
// spec.md §4.7/§9: "consumed, not redesigned." It defines the handler
// contract (capability-tagged, ArgumentHandle-based) that the interpreter
// (internal/interp) drives, plus a small set of built-in functions
// exercising every capability (Pure, Volatile, ReturnsReference, Lookup,
// Reduction, BoolOnly) and the Dynamic flag from spec.md §4.6.
//
// The interfaces below are defined here (not in internal/interp) so that
// internal/interp can depend on functions without functions needing to
// import the interpreter back — the interpreter supplies concrete
// implementations of Context/ArgumentHandle/RangeView at call time.
package functions

import (
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
)

// Capability is a bit set of handler capabilities.
type Capability uint16

const (
	Pure Capability = 1 << iota
	Volatile
	ReturnsReference
	Lookup
	Reduction
	BoolOnly
	// Dynamic marks a function whose reference set can change between
	// evaluations (OFFSET, INDIRECT): the scheduler must re-derive its
	// virtual dependencies on every pass (spec.md §4.6).
	Dynamic
)

func (c Capability) Has(f Capability) bool { return c&f != 0 }

// Reference is an opaque reference-returning result (e.g. from OFFSET),
// resolved back into a RangeView or cell value by the interpreter.
type Reference interface {
	Range() coord.RangeRef
}

// RangeView is a lazy 2D view over cells, implemented by internal/interp
// against either the dependency graph or the Arrow store.
type RangeView interface {
	Dims() (rows, cols int)
	At(row, col int) value.LiteralValue
	Range() coord.RangeRef
	// Rows streams the view row-major; used by Reduction-capability
	// handlers to avoid materializing the whole view.
	Rows(yield func(row []value.LiteralValue) bool)
}

// ArgumentHandle gives a handler three access modes onto one argument:
// eagerly resolved scalar value, treat-as-reference, or a RangeView for
// columnar iteration (spec.md §4.7).
type ArgumentHandle interface {
	Value() (value.LiteralValue, error)
	AsReference() (Reference, bool)
	AsRangeView() (RangeView, bool)
}

// Context exposes what a handler needs from the evaluation environment:
// current cell, current sheet, cancellation, and range resolution.
type Context interface {
	CurrentCell() coord.CellRef
	Cancelled() bool
	ResolveRange(r coord.RangeRef) RangeView
	Seed() uint64
}

// Handler is a single function implementation.
type Handler interface {
	Name() string
	Capabilities() Capability
	MinArgs() int
	Variadic() bool
	Call(ctx Context, args []ArgumentHandle) (value.LiteralValue, error)
}

// Registry holds every registered Handler by upper-cased name. It is
// immutable after Seal and safe for concurrent lock-free reads thereafter,
// per spec.md §5 ("Function registry: immutable after startup;
// lock-free read").
type Registry struct {
	handlers map[string]Handler
	sealed   bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Panics if called after Seal, or if a handler
// for the same name is already registered — both are programmer errors at
// startup, not recoverable API errors.
func (r *Registry) Register(h Handler) {
	if r.sealed {
		panic("functions: Register called after Seal")
	}
	name := h.Name()
	if _, exists := r.handlers[name]; exists {
		panic("functions: duplicate handler for " + name)
	}
	r.handlers[name] = h
}

// Seal freezes the registry; must be called before any Workbook uses it.
func (r *Registry) Seal() { r.sealed = true }

// Lookup returns the handler for name (case-sensitive upper-case), if any.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// IsVolatile reports whether name is registered with the Volatile
// capability. Unknown names are not volatile (they'll fail at call time
// with #NAME?).
func (r *Registry) IsVolatile(name string) bool {
	h, ok := r.handlers[name]
	return ok && h.Capabilities().Has(Volatile)
}

// IsDynamic reports whether name is registered with the Dynamic capability.
func (r *Registry) IsDynamic(name string) bool {
	h, ok := r.handlers[name]
	return ok && h.Capabilities().Has(Dynamic)
}

// IsReturnsReference reports whether name's handler returns a reference
// rather than a value (OFFSET, INDEX in reference mode, CHOOSE, etc.).
func (r *Registry) IsReturnsReference(name string) bool {
	h, ok := r.handlers[name]
	return ok && h.Capabilities().Has(ReturnsReference)
}
