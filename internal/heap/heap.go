// Package heap models a post-collection heap snapshot: tagged closures in an
// index-addressed arena, their layout tables, the root lists and the
// per-generation mutable lists.
package heap

import (
	"fmt"
)

// Generation holds the mutable-object worklists of one generation.
type Generation struct {
	MutList     []ClosureID
	MutOnceList []ClosureID
}

// Heap is an arena of closures plus the lists a retainer pass reads.
type Heap struct {
	closures []*Closure // index = ClosureID, slot 0 unused
	infos    []*InfoTable
	centres  []*CostCentre
	stacks   []*CostCentreStack

	Threads       []ClosureID
	Weak          []ClosureID
	Stable        []ClosureID
	Generations   []Generation
	StaticObjects []ClosureID

	marker uint32
}

// New creates an empty heap.
func New() *Heap {
	return &Heap{closures: []*Closure{nil}}
}

// NextMarker starts a new pass over h. Every slot stamped under an earlier
// marker, by any profiler, reads as stale afterwards. Zero is never issued
// because it is the stamp of a slot no pass has touched.
func (h *Heap) NextMarker() uint32 {
	h.marker++
	if h.marker == 0 {
		h.marker = 1
	}
	return h.marker
}

// Marker returns the marker of the most recently started pass, or zero.
func (h *Heap) Marker() uint32 {
	return h.marker
}

// Len returns the number of closures.
func (h *Heap) Len() int {
	return len(h.closures) - 1
}

// Closure returns the closure with the given id, or nil.
func (h *Heap) Closure(id ClosureID) *Closure {
	if id == Nil || int(id) >= len(h.closures) {
		return nil
	}
	return h.closures[id]
}

// Add stores c, assigns its ID and returns it.
func (h *Heap) Add(c *Closure) ClosureID {
	c.ID = ClosureID(len(h.closures))
	h.closures = append(h.closures, c)
	return c.ID
}

// ForEach calls fn for every closure in allocation order.
func (h *Heap) ForEach(fn func(c *Closure)) {
	for _, c := range h.closures[1:] {
		fn(c)
	}
}

// AddInfo registers an info table and assigns its ID (starting at 1).
func (h *Heap) AddInfo(info *InfoTable) *InfoTable {
	info.ID = uint32(len(h.infos) + 1)
	h.infos = append(h.infos, info)
	return info
}

// Info returns the info table with the given id, or nil.
func (h *Heap) Info(id uint32) *InfoTable {
	if id == 0 || int(id) > len(h.infos) {
		return nil
	}
	return h.infos[id-1]
}

// AddCostCentre registers a cost centre and assigns its ID.
func (h *Heap) AddCostCentre(cc *CostCentre) *CostCentre {
	cc.ID = uint32(len(h.centres) + 1)
	h.centres = append(h.centres, cc)
	return cc
}

// CostCentre returns the cost centre with the given id, or nil.
func (h *Heap) CostCentre(id uint32) *CostCentre {
	if id == 0 || int(id) > len(h.centres) {
		return nil
	}
	return h.centres[id-1]
}

// AddCostCentreStack registers a stack and assigns its ID.
func (h *Heap) AddCostCentreStack(s *CostCentreStack) *CostCentreStack {
	s.ID = uint32(len(h.stacks) + 1)
	h.stacks = append(h.stacks, s)
	return s
}

// CostCentreStack returns the stack with the given id, or nil.
func (h *Heap) CostCentreStack(id uint32) *CostCentreStack {
	if id == 0 || int(id) > len(h.stacks) {
		return nil
	}
	return h.stacks[id-1]
}

// ForEachThread calls fn for every thread root.
func (h *Heap) ForEachThread(fn func(ClosureID) error) error {
	return each(h.Threads, fn)
}

// ForEachWeak calls fn for every live weak reference.
func (h *Heap) ForEachWeak(fn func(ClosureID) error) error {
	return each(h.Weak, fn)
}

// ForEachStable calls fn for every stable-reference table entry.
func (h *Heap) ForEachStable(fn func(ClosureID) error) error {
	return each(h.Stable, fn)
}

// NumGenerations returns the number of generations.
func (h *Heap) NumGenerations() int {
	return len(h.Generations)
}

// ForEachMutList calls fn for every entry of generation g's mut_list.
func (h *Heap) ForEachMutList(g int, fn func(ClosureID) error) error {
	if g < 0 || g >= len(h.Generations) {
		return nil
	}
	return each(h.Generations[g].MutList, fn)
}

// ForEachMutOnceList calls fn for every entry of generation g's mut_once_list.
func (h *Heap) ForEachMutOnceList(g int, fn func(ClosureID) error) error {
	if g < 0 || g >= len(h.Generations) {
		return nil
	}
	return each(h.Generations[g].MutOnceList, fn)
}

// Validate checks that every reference held in a field, SRT, root or list
// resolves to a closure.
func (h *Heap) Validate() error {
	check := func(where string, id ClosureID) error {
		if h.Closure(id) == nil {
			return fmt.Errorf("%s: dangling reference %d", where, id)
		}
		return nil
	}
	for _, c := range h.closures[1:] {
		if c.Info == nil {
			return fmt.Errorf("closure %d: missing info table", c.ID)
		}
		for _, p := range c.Ptrs {
			if err := check(fmt.Sprintf("closure %d", c.ID), p); err != nil {
				return err
			}
		}
		for _, p := range c.Info.SRT {
			if err := check(fmt.Sprintf("srt of %s", c.Info), p); err != nil {
				return err
			}
		}
	}
	lists := map[string][]ClosureID{
		"threads": h.Threads, "weak": h.Weak, "stable": h.Stable, "static": h.StaticObjects,
	}
	for g, gen := range h.Generations {
		lists[fmt.Sprintf("gen %d mut_list", g)] = gen.MutList
		lists[fmt.Sprintf("gen %d mut_once_list", g)] = gen.MutOnceList
	}
	for name, ids := range lists {
		for _, id := range ids {
			if err := check(name, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func each(ids []ClosureID, fn func(ClosureID) error) error {
	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}
