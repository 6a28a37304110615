// Package retainer computes, after a major collection, the retainer set of
// every live closure: the set of retainers through which it is kept alive.
//
// A pass walks the heap from its roots without native recursion, using a
// chunked explicit stack. Per-closure state is stamped with a pass marker
// so starting a new pass invalidates every slot in O(1).
package retainer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/internal/retainerset"
	"github.com/retainer-prof/pkg/collections"
	apperrors "github.com/retainer-prof/pkg/errors"
	"github.com/retainer-prof/pkg/utils"
)

const tracerName = "github.com/retainer-prof/internal/retainer"

// RootSource enumerates the traversal roots.
type RootSource interface {
	ForEachThread(fn func(heap.ClosureID) error) error
	ForEachWeak(fn func(heap.ClosureID) error) error
	ForEachStable(fn func(heap.ClosureID) error) error
}

// GenerationSource enumerates the mutable-object worklists of each generation.
type GenerationSource interface {
	NumGenerations() int
	ForEachMutList(g int, fn func(heap.ClosureID) error) error
	ForEachMutOnceList(g int, fn func(heap.ClosureID) error) error
}

// Config configures a Profiler.
type Config struct {
	Scheme Scheme
	// StackChunkSize is the number of work items per stack chunk.
	StackChunkSize int
	// MaxStackChunks bounds the live stack chunks; zero is unbounded.
	MaxStackChunks int
	// Validate drops every interned set before each pass.
	Validate bool

	Roots       RootSource
	Generations GenerationSource
	Observer    Observer
	Logger      utils.Logger
	Clock       utils.Clock
}

// PassResult summarizes a completed pass.
type PassResult struct {
	Generation     int
	Marker         uint32
	Scheme         string
	ObjectsVisited int
	VisitEvents    int
	// AvgVisits is VisitEvents / ObjectsVisited, zero when nothing was visited.
	AvgVisits      float64
	RetainerSets   int
	// NewSets counts the sets first interned during this pass.
	NewSets        int
	StackChunks    int
	MaxStackDepth  int
	MaxNestedDepth int
	Duration       time.Duration
}

// Profiler runs retainer passes over one heap. It is not safe for
// concurrent use.
type Profiler struct {
	heap   *heap.Heap
	cfg    Config
	store  *retainerset.Store
	pool   *collections.ChunkPool[workItem]
	stack  *traverseStack
	logger utils.Logger

	// marker is the heap marker this profiler's last pass ran under.
	marker     uint32
	generation int
	last       *PassResult
}

// New creates a profiler over h.
func New(h *heap.Heap, cfg Config) *Profiler {
	if cfg.Scheme == nil {
		cfg.Scheme = InfoScheme{}
	}
	if cfg.StackChunkSize <= 0 {
		cfg.StackChunkSize = 1024
	}
	if cfg.Roots == nil {
		cfg.Roots = h
	}
	if cfg.Generations == nil {
		cfg.Generations = h
	}
	if cfg.Clock == nil {
		cfg.Clock = utils.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	pool := collections.NewChunkPool[workItem](cfg.StackChunkSize, cfg.MaxStackChunks)
	return &Profiler{
		heap:   h,
		cfg:    cfg,
		store:  retainerset.NewStore(),
		pool:   pool,
		stack:  newTraverseStack(pool),
		logger: logger.WithField("scheme", cfg.Scheme.Name()),
	}
}

// Heap returns the profiled heap.
func (p *Profiler) Heap() *heap.Heap { return p.heap }

// Scheme returns the retainer scheme in use.
func (p *Profiler) Scheme() Scheme { return p.cfg.Scheme }

// Store returns the retainer-set store.
func (p *Profiler) Store() *retainerset.Store { return p.store }

// Marker returns the heap marker of this profiler's last pass.
func (p *Profiler) Marker() uint32 { return p.marker }

// LastResult returns the summary of the last completed pass, or nil. A
// pass is superseded, and its result withdrawn, once any pass starts on
// the same heap.
func (p *Profiler) LastResult() *PassResult {
	if p.last == nil || p.marker != p.heap.Marker() {
		return nil
	}
	return p.last
}

// Run performs one pass. It must only be called right after a completed
// major collection, with the heap quiescent. On error no result is
// published and retainer sets stay unavailable until a later pass succeeds.
func (p *Profiler) Run(ctx context.Context) (*PassResult, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "retainer.Pass")
	defer span.End()

	start := p.cfg.Clock.Now()
	p.last = nil
	p.marker = p.heap.NextMarker()
	log := p.logger.WithField("pass", p.generation)
	log.Debug("Starting retainer pass, marker=%d", p.marker)

	ps := &pass{
		heap:     p.heap,
		store:    p.store,
		scheme:   p.cfg.Scheme,
		stack:    p.stack,
		marker:   p.marker,
		observer: p.cfg.Observer,
	}
	err := p.computeRetainerSets(ps)
	p.stack.close()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Retainer pass aborted: %v", err)
		return nil, err
	}

	res := &PassResult{
		Generation:     p.generation,
		Marker:         p.marker,
		Scheme:         p.cfg.Scheme.Name(),
		ObjectsVisited: ps.objectsVisited,
		VisitEvents:    ps.visitEvents,
		RetainerSets:   p.store.Len(),
		NewSets:        p.store.Created(),
		StackChunks:    p.stack.chunks,
		MaxStackDepth:  p.stack.maxDepth,
		MaxNestedDepth: p.stack.maxNested,
		Duration:       p.cfg.Clock.Since(start),
	}
	if ps.objectsVisited > 0 {
		res.AvgVisits = float64(ps.visitEvents) / float64(ps.objectsVisited)
	}
	span.SetAttributes(
		attribute.Int("retainer.objects_visited", res.ObjectsVisited),
		attribute.Int("retainer.visit_events", res.VisitEvents),
		attribute.Int("retainer.sets", res.RetainerSets),
		attribute.Int("retainer.new_sets", res.NewSets),
		attribute.Int("retainer.stack_chunks", res.StackChunks),
	)
	log.Info("Retainer pass done: objects=%d, visits=%d, avg=%.3f, sets=%d (new %d)",
		res.ObjectsVisited, res.VisitEvents, res.AvgVisits, res.RetainerSets, res.NewSets)

	p.generation++
	p.last = res
	return res, nil
}

func (p *Profiler) computeRetainerSets(ps *pass) error {
	if err := p.stack.init(); err != nil {
		return err
	}
	if p.cfg.Validate {
		p.store.Reset()
	} else {
		p.store.Refresh()
	}

	root := func(id heap.ClosureID) error { return p.retainRoot(ps, id) }
	if err := p.cfg.Roots.ForEachThread(root); err != nil {
		return err
	}
	if err := p.cfg.Roots.ForEachWeak(root); err != nil {
		return err
	}
	if err := p.cfg.Roots.ForEachStable(root); err != nil {
		return err
	}

	maybeInit := func(id heap.ClosureID) error {
		c := p.heap.Closure(id)
		if c == nil {
			return apperrors.Newf(apperrors.CodeInvariantViolation, "mutable list holds missing closure %d", id)
		}
		c.MaybeInit(p.marker)
		return nil
	}
	for g := 0; g < p.cfg.Generations.NumGenerations(); g++ {
		if err := p.cfg.Generations.ForEachMutList(g, maybeInit); err != nil {
			return err
		}
		if err := p.cfg.Generations.ForEachMutOnceList(g, maybeInit); err != nil {
			return err
		}
	}
	return nil
}

// retainRoot traverses everything reachable from one root. The root is its
// own parent; its retainer is R(root), or System when it is not a retainer.
func (p *Profiler) retainRoot(ps *pass, id heap.ClosureID) error {
	c := p.heap.Closure(id)
	if c == nil {
		return apperrors.Newf(apperrors.CodeInvariantViolation, "root references missing closure %d", id)
	}
	if !ps.stack.isEmpty() {
		return apperrors.Newf(apperrors.CodeInvariantViolation,
			"traversal stack holds %d items at root %d", ps.stack.depth, id)
	}
	ps.stack.markRoot()

	isRetainer, err := IsRetainerKind(c.Kind())
	if err != nil {
		return err
	}
	r := retainerset.System
	if isRetainer {
		r = p.cfg.Scheme.RetainerOf(c)
	}
	return ps.retainClosure(c, c, r)
}

// RetainerSetOf returns the set computed for id by the last completed pass.
// A nil set means the closure was not reached.
func (p *Profiler) RetainerSetOf(id heap.ClosureID) (*retainerset.Set, error) {
	if p.LastResult() == nil {
		return nil, apperrors.ErrPassIncomplete
	}
	c := p.heap.Closure(id)
	if c == nil {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "closure %d not found", id)
	}
	set, _ := c.RetainerSet(p.marker)
	return set, nil
}

// ResetStaticObjects brings the retainer slots of the given static objects
// into the valid-empty state for the current marker. IND_STATIC objects
// never carry a set and are skipped.
func (p *Profiler) ResetStaticObjects(ids []heap.ClosureID) error {
	for _, id := range ids {
		c := p.heap.Closure(id)
		if c == nil {
			return apperrors.Newf(apperrors.CodeInvariantViolation, "static list holds missing closure %d", id)
		}
		switch c.Kind() {
		case heap.KindIndStatic:
		case heap.KindThunkStatic, heap.KindFunStatic, heap.KindConstrStatic:
			c.MaybeInit(p.marker)
		default:
			return apperrors.Invariant("static object reset", c.Kind())
		}
	}
	return nil
}
