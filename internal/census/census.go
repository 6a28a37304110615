// Package census aggregates the live heap by retainer set after a
// retainer pass.
package census

import (
	"sort"

	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/internal/retainer"
	"github.com/retainer-prof/internal/retainerset"
	apperrors "github.com/retainer-prof/pkg/errors"
	"github.com/retainer-prof/pkg/model"
)

// Entry is the share of the heap kept alive by one retainer set.
type Entry struct {
	SetID     uint32   `json:"set_id"`
	Retainers []string `json:"retainers"`
	Objects   int      `json:"objects"`
	Words     int      `json:"words"`
	Percent   float64  `json:"percent"`

	set *retainerset.Set
}

// Set returns the retainer set the entry describes.
func (e *Entry) Set() *retainerset.Set { return e.set }

// Census is a per-retainer-set breakdown of one pass.
type Census struct {
	Generation   int     `json:"generation"`
	Scheme       string  `json:"scheme"`
	TotalObjects int     `json:"total_objects"`
	TotalWords   int     `json:"total_words"`
	Unreached    int     `json:"unreached"`
	Entries      []Entry `json:"entries"`
}

// Option configures Take.
type Option func(*options)

type options struct {
	topN int
}

// WithTopN keeps only the n largest entries; totals still cover the whole heap.
func WithTopN(n int) Option {
	return func(o *options) {
		o.topN = n
	}
}

// Take builds a census of the last completed pass of p. Closures without a
// valid set for the current marker count as unreached.
func Take(p *retainer.Profiler, opts ...Option) (*Census, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	res := p.LastResult()
	if res == nil {
		return nil, apperrors.ErrPassIncomplete
	}

	h := p.Heap()
	marker := p.Marker()
	byID := make(map[retainerset.SetID]*Entry)
	c := &Census{Generation: res.Generation, Scheme: res.Scheme}

	h.ForEach(func(cl *heap.Closure) {
		set, valid := cl.RetainerSet(marker)
		if !valid || set == nil {
			c.Unreached++
			return
		}
		words := cl.SizeW()
		c.TotalObjects++
		c.TotalWords += words

		e, ok := byID[set.ID()]
		if !ok {
			e = &Entry{SetID: uint32(set.ID()), set: set}
			byID[set.ID()] = e
		}
		e.Objects++
		e.Words += words
	})

	scheme := p.Scheme()
	c.Entries = make([]Entry, 0, len(byID))
	for _, e := range byID {
		e.Retainers = describe(h, scheme, e.set)
		if c.TotalWords > 0 {
			e.Percent = float64(e.Words) / float64(c.TotalWords) * 100
		}
		c.Entries = append(c.Entries, *e)
	}
	sort.Slice(c.Entries, func(i, j int) bool {
		a, b := c.Entries[i], c.Entries[j]
		if a.Words != b.Words {
			return a.Words > b.Words
		}
		return a.SetID < b.SetID
	})
	if o.topN > 0 && len(c.Entries) > o.topN {
		c.Entries = c.Entries[:o.topN]
	}
	return c, nil
}

func describe(h *heap.Heap, scheme retainer.Scheme, set *retainerset.Set) []string {
	elems := set.Elements()
	out := make([]string, len(elems))
	for i, r := range elems {
		out[i] = scheme.Describe(h, r)
	}
	return out
}

// Usage converts the entries for reporting.
func (c *Census) Usage() []model.SetUsage {
	out := make([]model.SetUsage, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = model.SetUsage{
			SetID:     e.SetID,
			Retainers: e.Retainers,
			Objects:   e.Objects,
			Words:     e.Words,
			Percent:   e.Percent,
		}
	}
	return out
}
