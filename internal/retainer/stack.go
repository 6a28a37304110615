package retainer

import (
	"errors"

	"github.com/retainer-prof/internal/retainerset"
	"github.com/retainer-prof/pkg/collections"
	apperrors "github.com/retainer-prof/pkg/errors"
)

// workItem is a closure paused part-way through its children, together
// with the retainer its children are attributed to.
type workItem struct {
	cur cursor
	r   retainerset.Retainer
}

// traverseStack is a LIFO of work items over a linked chain of fixed-size
// chunks. Chunks emptied by pops stay linked and are reused by later
// pushes; the chain is released by close.
//
// A boundary is the depth at which the innermost traversal started.
// Nested traversals entered from the frame walker save the enclosing
// boundary on the boundaries stack and restore it on exit.
type traverseStack struct {
	pool    *collections.ChunkPool[workItem]
	first   *collections.Chunk[workItem]
	current *collections.Chunk[workItem]
	top     int // next free index in current

	depth      int
	boundary   int
	boundaries *collections.Stack[int]

	chunks    int
	maxDepth  int
	maxNested int
}

func newTraverseStack(pool *collections.ChunkPool[workItem]) *traverseStack {
	return &traverseStack{pool: pool, boundaries: collections.NewStack[int](16)}
}

// init allocates the first chunk and resets the counters.
func (s *traverseStack) init() error {
	s.close()
	c, err := s.allocate()
	if err != nil {
		return err
	}
	s.first, s.current = c, c
	s.top, s.depth, s.boundary = 0, 0, 0
	s.boundaries.Clear()
	s.chunks, s.maxDepth, s.maxNested = 1, 0, 0
	return nil
}

// close releases the whole chunk chain.
func (s *traverseStack) close() {
	if s.first != nil {
		s.pool.FreeChain(s.first)
	}
	s.first, s.current = nil, nil
	s.top, s.depth = 0, 0
}

func (s *traverseStack) allocate() (*collections.Chunk[workItem], error) {
	c, err := s.pool.Allocate()
	if err != nil {
		if errors.Is(err, collections.ErrChunkLimit) {
			return nil, apperrors.Wrap(apperrors.CodeResourceExhausted,
				"cannot allocate traversal stack chunk", err)
		}
		return nil, err
	}
	return c, nil
}

func (s *traverseStack) push(item workItem) error {
	if s.top == len(s.current.Items) {
		next := s.current.Next
		if next == nil {
			c, err := s.allocate()
			if err != nil {
				return err
			}
			c.Prev = s.current
			s.current.Next = c
			s.chunks++
			next = c
		}
		s.current = next
		s.top = 0
	}
	s.current.Items[s.top] = item
	s.top++
	s.depth++
	if s.depth > s.maxDepth {
		s.maxDepth = s.depth
	}
	return nil
}

// peek returns the topmost item for in-place advancement.
func (s *traverseStack) peek() *workItem {
	return &s.current.Items[s.top-1]
}

// popOff discards the topmost item. The caller must not be at a boundary.
func (s *traverseStack) popOff() {
	s.top--
	s.depth--
	s.current.Items[s.top] = workItem{}
	if s.top == 0 && s.current.Prev != nil {
		s.current = s.current.Prev
		s.top = len(s.current.Items)
	}
}

func (s *traverseStack) isEmpty() bool {
	return s.depth == 0
}

// isOnBoundary reports whether the innermost traversal has consumed every
// item it pushed.
func (s *traverseStack) isOnBoundary() bool {
	return s.depth == s.boundary
}

// markRoot starts a top-level traversal on an empty stack.
func (s *traverseStack) markRoot() {
	s.boundary = s.depth
}

// enterNested opens a nested traversal; the returned func restores the
// enclosing boundary and must run on every exit path.
func (s *traverseStack) enterNested() func() {
	s.boundaries.Push(s.boundary)
	s.boundary = s.depth
	if n := s.boundaries.Len(); n > s.maxNested {
		s.maxNested = n
	}
	return func() {
		s.boundary, _ = s.boundaries.Pop()
	}
}

// nested returns the current nesting depth of walker traversals.
func (s *traverseStack) nested() int {
	return s.boundaries.Len()
}
