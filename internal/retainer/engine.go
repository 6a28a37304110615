package retainer

import (
	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/internal/retainerset"
	apperrors "github.com/retainer-prof/pkg/errors"
)

// Visit is one counted visit of the traversal.
type Visit struct {
	Child    heap.ClosureID
	Parent   heap.ClosureID
	Retainer retainerset.Retainer
}

// Observer receives every counted visit of a pass, in traversal order.
type Observer interface {
	OnVisit(v Visit)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(v Visit)

// OnVisit calls f(v).
func (f ObserverFunc) OnVisit(v Visit) { f(v) }

// pass is the state of a single profiling pass.
type pass struct {
	heap     *heap.Heap
	store    *retainerset.Store
	scheme   Scheme
	stack    *traverseStack
	marker   uint32
	observer Observer

	objectsVisited int
	visitEvents    int
}

// retainClosure computes the retainer sets of c and every closure reachable
// from it that still needs an update. cp is c's parent and r its most
// recent retainer. The stack depth is the same on entry and on return.
func (p *pass) retainClosure(c, cp *heap.Closure, r retainerset.Retainer) error {
	for {
		child, parent, childR, err := p.step(c, cp, r)
		if err != nil {
			return err
		}
		if child == nil {
			child, parent, childR, err = p.pop()
			if err != nil {
				return err
			}
			if child == nil {
				return nil
			}
		}
		c, cp, r = child, parent, childR
	}
}

// step processes c and returns the first child to continue with, or a nil
// child when the caller should unwind.
func (p *pass) step(c, cp *heap.Closure, r retainerset.Retainer) (*heap.Closure, *heap.Closure, retainerset.Retainer, error) {
	c, skip, err := p.prefilter(c)
	if err != nil || skip {
		return nil, nil, 0, err
	}

	p.visitEvents++
	if p.observer != nil {
		p.observer.OnVisit(Visit{Child: c.ID, Parent: cp.ID, Retainer: r})
	}

	c.MaybeInit(p.marker)
	setOfC, _ := c.RetainerSet(p.marker)

	parentIsRetainer, err := IsRetainerKind(cp.Kind())
	if err != nil {
		return nil, nil, 0, err
	}
	var s *retainerset.Set
	if !parentIsRetainer {
		s, _ = cp.RetainerSet(p.marker)
	}

	cIsRetainer, err := IsRetainerKind(c.Kind())
	if err != nil {
		return nil, nil, 0, err
	}

	var childR retainerset.Retainer
	if setOfC == nil {
		p.objectsVisited++
		if s == nil {
			c.Associate(p.marker, p.store.Singleton(r))
		} else {
			c.Associate(p.marker, s)
		}
		childR = r
		if cIsRetainer {
			childR = p.scheme.RetainerOf(c)
		}
	} else {
		if p.store.IsMember(r, setOfC) {
			return nil, nil, 0, nil
		}
		if s != nil && p.store.Cardinality(s) == p.store.Cardinality(setOfC)+1 {
			c.Associate(p.marker, s)
		} else {
			c.Associate(p.marker, p.store.Add(r, setOfC))
		}
		if cIsRetainer {
			return nil, nil, 0, nil
		}
		childR = r
	}

	if shape, _ := ShapeOf(c.Kind()); shape == ShapeStack {
		return nil, nil, 0, p.descendStackShaped(c, childR)
	}

	cur, err := newCursor(c)
	if err != nil {
		return nil, nil, 0, err
	}
	firstID, ok := cur.next()
	if !ok {
		return nil, nil, 0, nil
	}
	first, err := p.resolve(firstID, c)
	if err != nil {
		return nil, nil, 0, err
	}
	if cur.more() {
		if err := p.stack.push(workItem{cur: cur, r: childR}); err != nil {
			return nil, nil, 0, err
		}
	}
	return first, c, childR, nil
}

// prefilter applies the kind-specific short circuits that happen before a
// visit is counted. It follows relocated threads and static indirections;
// a chain longer than the heap must revisit a closure and is rejected.
func (p *pass) prefilter(c *heap.Closure) (*heap.Closure, bool, error) {
	for hops := 0; ; hops++ {
		if hops > p.heap.Len() {
			return nil, false, apperrors.Newf(apperrors.CodeInvariantViolation,
				"%s closure %d starts an indirection cycle", c.Kind(), c.ID)
		}
		switch c.Kind() {
		case heap.KindTSO:
			if c.Thread == nil {
				return nil, false, apperrors.Newf(apperrors.CodeInvariantViolation,
					"TSO closure %d has no thread state", c.ID)
			}
			if c.Thread.State.Finished() {
				return nil, true, nil
			}
			if c.Thread.State == heap.ThreadRelocated {
				next, err := p.resolve(c.Thread.Link, c)
				if err != nil {
					return nil, false, err
				}
				c = next
				continue
			}
		case heap.KindIndStatic:
			next, err := p.resolve(c.Field(0), c)
			if err != nil {
				return nil, false, err
			}
			c = next
			continue
		case heap.KindConstrIntlike, heap.KindConstrCharlike, heap.KindConstrNoCAFStatic:
			return nil, true, nil
		case heap.KindThunkStatic, heap.KindFunStatic:
			if len(c.Info.SRT) == 0 {
				return nil, true, nil
			}
		}
		return c, false, nil
	}
}

// pop resumes the innermost paused closure. It returns a nil child once
// the current traversal has consumed everything it pushed.
func (p *pass) pop() (*heap.Closure, *heap.Closure, retainerset.Retainer, error) {
	for !p.stack.isOnBoundary() {
		item := p.stack.peek()
		id, ok := item.cur.next()
		if !ok {
			p.stack.popOff()
			continue
		}
		parent, r := item.cur.c, item.r
		if !item.cur.more() {
			p.stack.popOff()
		}
		child, err := p.resolve(id, parent)
		if err != nil {
			return nil, nil, 0, err
		}
		return child, parent, r, nil
	}
	return nil, nil, 0, nil
}

// resolve dereferences a child reference held by parent.
func (p *pass) resolve(id heap.ClosureID, parent *heap.Closure) (*heap.Closure, error) {
	c := p.heap.Closure(id)
	if c == nil {
		return nil, apperrors.Newf(apperrors.CodeInvariantViolation,
			"%s closure %d references missing closure %d", parent.Kind(), parent.ID, id)
	}
	return c, nil
}
