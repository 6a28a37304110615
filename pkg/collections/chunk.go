package collections

import (
	"errors"
	"sync/atomic"
)

// ErrChunkLimit is returned by Allocate when the pool's chunk limit is reached.
var ErrChunkLimit = errors.New("chunk limit reached")

// Chunk is a fixed-capacity block of items linked into a chain.
// Prev and Next are maintained by the chunk's owner; the pool only
// follows Next when a chain is released.
type Chunk[T any] struct {
	Items []T
	Prev  *Chunk[T]
	Next  *Chunk[T]

	buf *[]T
}

// ChunkPool hands out chunks of a fixed capacity backed by a SlicePool.
// A limit of zero means unbounded.
type ChunkPool[T any] struct {
	slices *SlicePool[T]
	size   int
	limit  int64
	live   atomic.Int64
	total  atomic.Int64
}

// NewChunkPool creates a chunk pool whose chunks hold size items.
func NewChunkPool[T any](size, limit int) *ChunkPool[T] {
	if size <= 0 {
		size = 1024
	}
	if limit < 0 {
		limit = 0
	}
	return &ChunkPool[T]{
		slices: NewSlicePool[T](size),
		size:   size,
		limit:  int64(limit),
	}
}

// Allocate returns a zeroed, unlinked chunk.
func (p *ChunkPool[T]) Allocate() (*Chunk[T], error) {
	if p.limit > 0 && p.live.Load() >= p.limit {
		return nil, ErrChunkLimit
	}
	buf := p.slices.Get()
	if cap(*buf) < p.size {
		s := make([]T, 0, p.size)
		buf = &s
	}
	*buf = (*buf)[:p.size]
	p.live.Add(1)
	p.total.Add(1)
	return &Chunk[T]{Items: *buf, buf: buf}, nil
}

// FreeChain releases c and every chunk reachable through Next.
func (p *ChunkPool[T]) FreeChain(c *Chunk[T]) {
	for c != nil {
		next := c.Next
		if c.buf != nil {
			p.slices.Put(c.buf)
			p.live.Add(-1)
		}
		c.Items, c.buf, c.Prev, c.Next = nil, nil, nil, nil
		c = next
	}
}

// ChunkSize returns the number of items per chunk.
func (p *ChunkPool[T]) ChunkSize() int {
	return p.size
}

// Live returns the number of chunks allocated and not yet freed.
func (p *ChunkPool[T]) Live() int {
	return int(p.live.Load())
}

// Allocated returns the number of chunks handed out over the pool's lifetime.
func (p *ChunkPool[T]) Allocated() int {
	return int(p.total.Load())
}
