package heap

import (
	"github.com/retainer-prof/internal/retainerset"
)

// ClosureID addresses a closure in its heap. Zero is the nil reference.
type ClosureID uint32

// Nil is the absent reference.
const Nil ClosureID = 0

// ThreadState is the run state of a thread object.
type ThreadState uint8

const (
	ThreadRunGHC ThreadState = iota
	ThreadInterpret
	ThreadRelocated
	ThreadComplete
	ThreadKilled
)

var threadStateNames = map[ThreadState]string{
	ThreadRunGHC:    "run",
	ThreadInterpret: "interpret",
	ThreadRelocated: "relocated",
	ThreadComplete:  "complete",
	ThreadKilled:    "killed",
}

func (s ThreadState) String() string {
	if n, ok := threadStateNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseThreadState resolves a state name.
func ParseThreadState(name string) (ThreadState, bool) {
	for s, n := range threadStateNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// Finished reports whether the thread will never run again.
func (s ThreadState) Finished() bool {
	return s == ThreadComplete || s == ThreadKilled
}

// Thread holds the scheduler state of a TSO.
type Thread struct {
	State ThreadState
	// Link is the new location of a relocated thread.
	Link ClosureID
}

// Frame is one activation record on a thread or suspended-application stack.
type Frame struct {
	Info    *InfoTable
	Payload []Word
}

// CostCentre is a unit of cost attribution.
type CostCentre struct {
	ID     uint32
	Label  string
	Module string
}

func (cc *CostCentre) String() string {
	if cc.Module == "" {
		return cc.Label
	}
	return cc.Module + "." + cc.Label
}

// CostCentreStack is a chain of cost centres; CC is its head.
type CostCentreStack struct {
	ID   uint32
	CC   *CostCentre
	Prev *CostCentreStack
}

func (s *CostCentreStack) String() string {
	out := ""
	for p := s; p != nil; p = p.Prev {
		if p.CC == nil {
			continue
		}
		if out != "" {
			out += "<"
		}
		out += p.CC.String()
	}
	return out
}

// Closure is a heap object. Ptrs holds the reference fields in the order
// the kind's layout defines them:
//
//	MVAR          head, tail, value
//	WEAK          key, value, finalizer
//	MUT_VAR       var
//	BLACKHOLE_BQ  blocking queue
//	THUNK_SELECTOR selectee
//	IND*          indirectee
//	PAP, AP       function
//	AP_STACK      function
//	others        pointer payload
type Closure struct {
	ID   ClosureID
	Info *InfoTable
	Ptrs []ClosureID

	// Args is the argument payload of PAP and AP.
	Args []Word
	// Stack holds the frames of TSO and AP_STACK, innermost first.
	Stack []Frame
	// Thread is set for TSO.
	Thread *Thread
	// BCOBitmap is the argument layout of a BCO.
	BCOBitmap *LargeBitmap
	CCS       *CostCentreStack

	slot slot
}

// Kind returns the closure's kind tag.
func (c *Closure) Kind() Kind {
	if c == nil || c.Info == nil {
		return KindInvalid
	}
	return c.Info.Kind
}

// Field returns reference field i, or Nil when absent.
func (c *Closure) Field(i int) ClosureID {
	if i < 0 || i >= len(c.Ptrs) {
		return Nil
	}
	return c.Ptrs[i]
}

// slot holds the per-object retainer set. It is valid only when stamp
// equals the pass marker it is read with.
type slot struct {
	stamp uint32
	set   *retainerset.Set
}

// RetainerSet returns the closure's set under marker. valid is false when
// the slot belongs to another pass; a valid slot may hold a nil set.
func (c *Closure) RetainerSet(marker uint32) (set *retainerset.Set, valid bool) {
	if c.slot.stamp != marker {
		return nil, false
	}
	return c.slot.set, true
}

// MaybeInit brings a stale slot into the valid-empty state for marker.
func (c *Closure) MaybeInit(marker uint32) {
	if c.slot.stamp != marker {
		c.slot = slot{stamp: marker}
	}
}

// Associate makes s the closure's retainer set under marker.
func (c *Closure) Associate(marker uint32, s *retainerset.Set) {
	c.slot = slot{stamp: marker, set: s}
}

// SizeW returns the closure's size in words, header included.
func (c *Closure) SizeW() int {
	const header = 2
	n := header + len(c.Ptrs) + len(c.Args)
	if c.Info != nil {
		n += c.Info.NNonPtrs
	}
	for _, f := range c.Stack {
		n += 1 + len(f.Payload)
	}
	return n
}
