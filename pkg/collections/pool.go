// Package collections holds the allocation helpers behind the traversal
// stack: a slice pool, fixed-size chunks drawn from it, a small LIFO and a
// word-packed bitset.
package collections

import "sync"

// SlicePool recycles slices of one element type. Slices come back empty
// with their capacity kept.
type SlicePool[T any] struct {
	pool       sync.Pool
	initialCap int
}

// NewSlicePool creates a pool whose fresh slices have capacity initialCap,
// or 256 when initialCap is not positive.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	if initialCap <= 0 {
		initialCap = 256
	}
	p := &SlicePool[T]{initialCap: initialCap}
	p.pool.New = func() any {
		s := make([]T, 0, initialCap)
		return &s
	}
	return p
}

// Get returns an empty slice.
func (p *SlicePool[T]) Get() *[]T {
	return p.pool.Get().(*[]T)
}

// Put zeroes s so pooled slices do not pin what they pointed to, then
// recycles it.
func (p *SlicePool[T]) Put(s *[]T) {
	full := (*s)[:cap(*s)]
	clear(full)
	*s = full[:0]
	p.pool.Put(s)
}

// InitialCap is the capacity of slices the pool allocates itself.
func (p *SlicePool[T]) InitialCap() int {
	return p.initialCap
}
