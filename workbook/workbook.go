// Package workbook is the public façade (spec.md §4.4/§6): the single
// entry point embedding programs construct to load, mutate, evaluate,
// and query a spreadsheet-formula workbook. It wires together
// internal/graph, internal/scheduler, internal/interp, internal/editor,
// internal/ingest, and internal/config behind one API surface, the way
// the teacher's top-level Spreadsheet type wires Storage/DependencyGraph/
// FormulaEngine together.
package workbook

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
	"github.com/PSU3D0/formualizer-sub003/internal/ast"
	"github.com/PSU3D0/formualizer-sub003/internal/config"
	"github.com/PSU3D0/formualizer-sub003/internal/coord"
	"github.com/PSU3D0/formualizer-sub003/internal/editor"
	"github.com/PSU3D0/formualizer-sub003/internal/functions"
	"github.com/PSU3D0/formualizer-sub003/internal/graph"
	"github.com/PSU3D0/formualizer-sub003/internal/ingest"
	"github.com/PSU3D0/formualizer-sub003/internal/interp"
	"github.com/PSU3D0/formualizer-sub003/internal/names"
	"github.com/PSU3D0/formualizer-sub003/internal/scheduler"
	"github.com/PSU3D0/formualizer-sub003/internal/stripe"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

// Workbook is one in-memory spreadsheet session: a dependency graph, its
// evaluation scheduler/interpreter, and its structural editor, all
// sharing one AST arena and one zerolog logger.
type Workbook struct {
	ID uuid.UUID

	cfg   config.Config
	arena *ast.Arena
	fns   *functions.Registry
	clock functions.Clock

	Graph     *graph.Graph
	Scheduler *scheduler.Scheduler
	Interp    *interp.Interpreter
	Editor    *editor.Editor

	log zerolog.Logger

	cancelled atomic.Bool
}

// Option configures a Workbook at construction time.
type Option func(*Workbook)

// WithLogger installs a zerolog.Logger that every subsystem logs
// through, tagged with a workbook_id field so parallel sessions'
// log lines can be told apart.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Workbook) { w.log = logger }
}

// WithClock supplies the Clock NOW()/TODAY() resolve against; defaults to
// functions.WallClock{}.
func WithClock(clock functions.Clock) Option {
	return func(w *Workbook) { w.clock = clock }
}

// New creates an empty Workbook validated against cfg (config.Default()
// if the caller has no overrides).
func New(cfg config.Config, opts ...Option) (*Workbook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Workbook{
		ID:    newSessionID(),
		cfg:   cfg,
		arena: ast.NewArena(),
		log:   zerolog.Nop(),
		clock: functions.WallClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With().Str("workbook_id", w.ID.String()).Logger()

	w.fns = functions.NewRegistry()
	functions.RegisterDefaults(w.fns, w.clock)
	w.fns.Seal()

	stripeCfg := stripe.Config{
		RangeExpansionLimit: cfg.RangeExpansionLimit,
		BlockWidthThreshold:  cfg.BlockSize,
		BlockHeightThreshold: cfg.BlockSize,
		BlockSize:            cfg.BlockSize,
		BlocksEnabled:        cfg.BlockStripesEnabled,
	}
	w.Graph = graph.New(stripeCfg, w.arena)
	w.Graph.SetLogger(w.log)

	w.Scheduler = scheduler.New(w.Graph, scheduler.Config{
		EnableParallel:       cfg.EnableParallel,
		MaxThreads:           cfg.MaxThreads,
		WorkbookSeed:         cfg.WorkbookSeed,
		ArrowCanonicalValues: cfg.ArrowCanonicalValues,
		ParallelThreshold:    cfg.ParallelThreshold,
	})
	w.Scheduler.SetLogger(w.log)

	w.Interp = interp.New(w.Graph, w.fns)
	w.Interp.SetLogger(w.log)

	w.Editor = editor.New(w.Graph, w.arena, cfg.UndoRetention, w.log)
	w.Scheduler.SetSpillApplier(w.Editor)

	return w, nil
}

// Config returns the validated configuration this workbook was built
// with.
func (w *Workbook) Config() config.Config { return w.cfg }

// Arena returns the shared AST arena, exposed for xlio backends that need
// to parse formulas outside of the ingest builder's staging flow.
func (w *Workbook) Arena() *ast.Arena { return w.arena }

// Functions returns the sealed function registry this workbook evaluates
// against.
func (w *Workbook) Functions() *functions.Registry { return w.fns }

// NewIngestBuilder returns a fresh ingest.Builder staging into this
// workbook's graph/arena/registry.
func (w *Workbook) NewIngestBuilder() *ingest.Builder {
	return ingest.New(w.Graph, w.arena, w.fns, w.log)
}

// AddSheet registers a new sheet, routed through the structural editor
// so the operation is undoable.
func (w *Workbook) AddSheet(name string) (coord.SheetId, error) {
	return w.Editor.AddSheet(name)
}

// SetCellValue sets a literal value, routed through the structural
// editor.
func (w *Workbook) SetCellValue(ref coord.CellRef, v value.LiteralValue) {
	w.Editor.SetCellValue(ref, v)
}

// SetCellFormula parses src (without a leading '=') against ref's sheet
// context and installs it, routed through the structural editor.
func (w *Workbook) SetCellFormula(ref coord.CellRef, src string) error {
	ctx := &formulaContext{w: w, ref: ref}
	root, refs, ranges, volatile, err := ctx.parse(src)
	if err != nil {
		return apperr.Wrap(apperr.InvalidArgument, err, "workbook: parse formula at %s", ref.Coord.A1())
	}
	_, err = w.Editor.SetCellFormula(ref, root, refs, ranges, volatile)
	return err
}

// GetCellValue returns ref's current cached value.
func (w *Workbook) GetCellValue(ref coord.CellRef) value.LiteralValue {
	return w.Graph.GetCellValue(ref)
}

// DefineName defines (or redefines) a named range/cell/formula.
func (w *Workbook) DefineName(entry names.Entry) names.Id {
	return w.Editor.DefineName(entry)
}

// EvaluateAll runs the scheduler over every dirty/volatile vertex.
func (w *Workbook) EvaluateAll(ctx context.Context) (scheduler.EvalResult, error) {
	return w.Scheduler.EvaluateAll(ctx, w.Interp, &w.cancelled)
}

// EvaluateCells runs the scheduler over targets and their transitive
// dependencies only.
func (w *Workbook) EvaluateCells(ctx context.Context, targets []coord.CellRef) (scheduler.EvalResult, error) {
	ids := make([]vertex.Id, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, w.Graph.EnsureVertex(t))
	}
	return w.Scheduler.EvaluateCells(ctx, ids, w.Interp, &w.cancelled)
}

// Cancel requests the in-flight (or next) evaluation pass stop after its
// current layer, per spec.md §4.5's cancellation semantics.
func (w *Workbook) Cancel() { w.cancelled.Store(true) }

// Resume clears a prior Cancel so the next evaluation pass runs to
// completion again.
func (w *Workbook) Resume() { w.cancelled.Store(false) }

// Undo/Redo delegate to the structural editor.
func (w *Workbook) Undo() error { return w.Editor.Undo() }
func (w *Workbook) Redo() error { return w.Editor.Redo() }

func newSessionID() uuid.UUID { return uuid.New() }
