// Package scheduler computes a layered evaluation plan over the
// dependency graph's candidate set and executes it, optionally across a
// bounded worker pool. The layering algorithm generalizes the teacher's
// DFS-based GetCalculationOrder/HasCycle (graph.go) into an explicit
// Kahn's-algorithm layering so that same-layer vertices can be evaluated
// in parallel; the worker pool itself follows mcpxcel's
// semaphore.Weighted request-gating pattern (internal/runtime/runtime.go).
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/PSU3D0/formualizer-sub003/internal/graph"
	"github.com/PSU3D0/formualizer-sub003/internal/value"
	"github.com/PSU3D0/formualizer-sub003/internal/vertex"
)

// SpillApplier reacts to a freshly computed array result, committing or
// clearing a spill region around the anchor vertex. Declared as an
// interface here (rather than importing internal/editor) so the scheduler
// never depends on the structural editor, mirroring the Interpreter
// inversion above.
type SpillApplier interface {
	ApplySpill(anchor vertex.Id, result value.LiteralValue)
}

// Config mirrors spec.md §4.5's evaluation inputs.
type Config struct {
	EnableParallel      bool
	MaxThreads          int
	WorkbookSeed        uint64
	ArrowCanonicalValues bool
	// ParallelThreshold is the minimum layer size before a layer is
	// partitioned across the worker pool; small layers run inline since
	// goroutine dispatch overhead would dominate.
	ParallelThreshold int
}

// DefaultConfig returns sane defaults for a single workbook evaluation.
func DefaultConfig() Config {
	return Config{
		EnableParallel:    true,
		MaxThreads:        4,
		ParallelThreshold: 32,
	}
}

// Interpreter evaluates a single vertex's formula AST. Defining this as
// an interface here (rather than importing internal/interp) keeps the
// scheduler from depending on the concrete interpreter, matching the
// same inversion internal/functions uses for ArgumentHandle/Context.
type Interpreter interface {
	EvaluateVertex(ctx context.Context, id vertex.Id, seed uint64) (value.LiteralValue, error)
}

// EvalResult is the outcome of a scheduler run.
type EvalResult struct {
	ComputedVertices int
	CycleErrors      int
	Elapsed          time.Duration
	Cancelled        bool
}

// LayerPlan is one layer's diagnostic summary.
type LayerPlan struct {
	Size          int
	SampleVertex  vertex.Id
	HasSample     bool
	ParallelEligible bool
}

// EvalPlan is a diagnostic view of what evaluate_all/evaluate_cells would
// do, without executing anything.
type EvalPlan struct {
	Layers        []LayerPlan
	CyclesDetected []vertex.Id
	DirtyTotal    int
	VolatileTotal int
}

// Scheduler drives evaluation over a *graph.Graph using an Interpreter.
type Scheduler struct {
	g      *graph.Graph
	cfg    Config
	pool   *semaphore.Weighted
	log    zerolog.Logger
	spills SpillApplier
}

// New creates a Scheduler bound to g with the given config.
func New(g *graph.Graph, cfg Config) *Scheduler {
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 1
	}
	return &Scheduler{g: g, cfg: cfg, pool: semaphore.NewWeighted(int64(cfg.MaxThreads)), log: zerolog.Nop()}
}

// SetLogger installs the structured logger evaluation passes report
// through (per-pass/per-layer counts only, never per-cell).
func (s *Scheduler) SetLogger(logger zerolog.Logger) {
	s.log = logger.With().Str("component", "scheduler").Logger()
}

// SetSpillApplier installs the spill-region reconciler evaluateOne calls
// after every non-spill-child evaluation, whatever the result's shape, so
// a region can be committed, resized or cleared.
func (s *Scheduler) SetSpillApplier(applier SpillApplier) { s.spills = applier }

// layer computes a Kahn's-algorithm topological layering restricted to
// candidates: layer 0 has no unresolved candidate deps, each later layer
// depends only on earlier ones. Any vertex left over once no further
// layer can be formed is part of a cycle.
func (s *Scheduler) layer(candidates []vertex.Id) (layers [][]vertex.Id, cyclic []vertex.Id) {
	candSet := make(map[vertex.Id]struct{}, len(candidates))
	for _, c := range candidates {
		candSet[c] = struct{}{}
	}

	remaining := make(map[vertex.Id]struct{}, len(candidates))
	for _, c := range candidates {
		remaining[c] = struct{}{}
	}

	for len(remaining) > 0 {
		var layer []vertex.Id
		for id := range remaining {
			ready := true
			for _, dep := range s.precedentCandidates(id, candSet) {
				if _, stillPending := remaining[dep]; stillPending {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			// every remaining vertex has at least one unresolved dep
			// still in `remaining` — a cycle among them.
			for id := range remaining {
				cyclic = append(cyclic, id)
			}
			return layers, cyclic
		}
		for _, id := range layer {
			delete(remaining, id)
		}
		layers = append(layers, layer)
	}
	return layers, cyclic
}

// precedentCandidates returns id's out-edge precedents restricted to the
// candidate set, plus any virtual (range/stripe-derived) precedents
// within candidates. Static virtual deps (spec.md §4.6) are approximated
// here via the stripe index's reverse lookup already folded into the
// edge store by the graph façade's dirty propagation; genuinely dynamic
// (OFFSET/INDIRECT) deps are resolved by the interpreter at evaluation
// time and are intentionally NOT part of the static layering, since they
// can change every pass.
func (s *Scheduler) precedentCandidates(id vertex.Id, candSet map[vertex.Id]struct{}) []vertex.Id {
	var out []vertex.Id
	for _, p := range s.g.Edges.Precedents(id) {
		if _, ok := candSet[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Plan computes an EvalPlan for the current dirty ∪ volatile set without
// executing anything.
func (s *Scheduler) Plan() EvalPlan {
	candidates := s.g.EvaluationVertices()
	layers, cyclic := s.layer(candidates)
	plan := EvalPlan{CyclesDetected: cyclic}
	for _, l := range layers {
		lp := LayerPlan{Size: len(l), ParallelEligible: s.cfg.EnableParallel && len(l) >= s.cfg.ParallelThreshold}
		if len(l) > 0 {
			lp.SampleVertex = l[0]
			lp.HasSample = true
		}
		plan.Layers = append(plan.Layers, lp)
	}
	for range candidates {
		plan.DirtyTotal++
	}
	return plan
}

// EvaluateAll evaluates every dirty or volatile vertex and their
// transitive dependencies.
func (s *Scheduler) EvaluateAll(ctx context.Context, interp Interpreter, cancelled *atomic.Bool) (EvalResult, error) {
	return s.evaluate(ctx, s.g.EvaluationVertices(), interp, cancelled)
}

// EvaluateCells evaluates only targets and their transitive dependencies.
func (s *Scheduler) EvaluateCells(ctx context.Context, targets []vertex.Id, interp Interpreter, cancelled *atomic.Bool) (EvalResult, error) {
	closure := s.transitiveClosure(targets)
	return s.evaluate(ctx, closure, interp, cancelled)
}

func (s *Scheduler) transitiveClosure(targets []vertex.Id) []vertex.Id {
	seen := make(map[vertex.Id]struct{})
	var out []vertex.Id
	var visit func(id vertex.Id)
	visit = func(id vertex.Id) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
		for _, p := range s.g.Edges.Precedents(id) {
			visit(p)
		}
	}
	for _, t := range targets {
		visit(t)
	}
	return out
}

func (s *Scheduler) evaluate(ctx context.Context, candidates []vertex.Id, interp Interpreter, cancelled *atomic.Bool) (EvalResult, error) {
	start := nowForElapsed()
	layers, cyclic := s.layer(candidates)
	s.log.Debug().Int("candidates", len(candidates)).Int("layers", len(layers)).Int("cycles", len(cyclic)).Msg("evaluation pass planned")

	for _, id := range cyclic {
		s.g.Vertices.SetFlag(id, vertex.FlagInCycle)
		s.g.Vertices.SetValue(id, value.ErrorOf(value.ErrCirc))
		s.g.ClearDirty(id)
	}

	result := EvalResult{CycleErrors: len(cyclic)}

	for i, l := range layers {
		s.log.Debug().Int("layer", i).Int("size", len(l)).Msg("evaluating layer")
		if cancelled != nil && cancelled.Load() {
			result.Cancelled = true
			return result, nil
		}

		if s.cfg.EnableParallel && len(l) >= s.cfg.ParallelThreshold {
			n, err := s.evaluateLayerParallel(ctx, l, interp, cancelled)
			result.ComputedVertices += n
			if err != nil {
				return result, err
			}
		} else {
			n := s.evaluateLayerSerial(ctx, l, interp, cancelled)
			result.ComputedVertices += n
		}

		if cancelled != nil && cancelled.Load() {
			result.Cancelled = true
			return result, nil
		}
	}

	result.Elapsed = elapsedSince(start)
	s.log.Info().Int("computed", result.ComputedVertices).Int("cycle_errors", result.CycleErrors).
		Dur("elapsed", result.Elapsed).Bool("cancelled", result.Cancelled).Msg("evaluation pass complete")
	return result, nil
}

func (s *Scheduler) evaluateLayerSerial(ctx context.Context, layer []vertex.Id, interp Interpreter, cancelled *atomic.Bool) int {
	n := 0
	for _, id := range layer {
		if cancelled != nil && cancelled.Load() {
			break
		}
		s.evaluateOne(ctx, id, interp)
		n++
	}
	return n
}

func (s *Scheduler) evaluateLayerParallel(ctx context.Context, layer []vertex.Id, interp Interpreter, cancelled *atomic.Bool) (int, error) {
	var count int64
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, id := range layer {
		id := id
		if cancelled != nil && cancelled.Load() {
			break
		}
		if err := s.pool.Acquire(egCtx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer s.pool.Release(1)
			if cancelled != nil && cancelled.Load() {
				return nil
			}
			s.evaluateOne(egCtx, id, interp)
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
	}
	err := eg.Wait()
	return int(count), err
}

func (s *Scheduler) evaluateOne(ctx context.Context, id vertex.Id, interp Interpreter) {
	if s.g.Vertices.HasFlag(id, vertex.FlagIsReference) && s.g.Vertices.HasFlag(id, vertex.FlagInCycle) {
		s.g.Vertices.SetValue(id, value.ErrorOf(value.ErrRef))
		s.g.ClearDirty(id)
		return
	}

	v, err := interp.EvaluateVertex(ctx, id, s.cfg.WorkbookSeed)
	if err != nil {
		v = value.ErrorOf(value.ErrCalc)
	}
	s.g.Vertices.SetValue(id, v)
	s.g.ClearDirty(id)

	if s.spills != nil && !s.g.Vertices.HasFlag(id, vertex.FlagSpillChild) {
		s.spills.ApplySpill(id, v)
	}

	if s.cfg.ArrowCanonicalValues && !v.IsArray() {
		c := s.g.Vertices.Coord(id)
		s.g.Arrow.SetCell(c.Sheet, c.Coord.Row, c.Coord.Col, v)
	}
}

// nowForElapsed/elapsedSince wrap time.Now so evaluate()'s timing logic
// has one seam; workflows embedding the scheduler in deterministic tests
// can ignore Elapsed entirely since it is diagnostic-only.
func nowForElapsed() time.Time { return time.Now() }
func elapsedSince(t time.Time) time.Duration { return time.Since(t) }
