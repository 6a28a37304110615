package retainer

import (
	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/internal/retainerset"
	apperrors "github.com/retainer-prof/pkg/errors"
)

// descendStackShaped drains every child of a TSO, PAP, AP or AP_STACK in
// one nested traversal. Each reference found is retained with c as parent
// and r as the most recent retainer.
func (p *pass) descendStackShaped(c *heap.Closure, r retainerset.Retainer) error {
	defer p.stack.enterNested()()

	switch c.Kind() {
	case heap.KindTSO:
		return p.retainStack(c, r, c.Stack)
	case heap.KindPAP, heap.KindAP:
		return p.retainPAP(c, r)
	case heap.KindAPStack:
		if err := p.retainRef(c.Field(0), c, r); err != nil {
			return err
		}
		return p.retainStack(c, r, c.Stack)
	}
	return apperrors.Invariant("stack walker", c.Kind())
}

// retainStack walks frames innermost first.
func (p *pass) retainStack(c *heap.Closure, r retainerset.Retainer, frames []heap.Frame) error {
	for i := range frames {
		f := &frames[i]
		if f.Info == nil {
			return apperrors.Newf(apperrors.CodeInvariantViolation,
				"frame %d of closure %d has no info table", i, c.ID)
		}
		if err := p.retainFrame(c, r, f); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) retainFrame(c *heap.Closure, r retainerset.Retainer, f *heap.Frame) error {
	switch f.Info.Kind {
	case heap.KindUpdateFrame:
		if len(f.Payload) < 1 {
			return shortFrame(c, f, 1)
		}
		return p.retainRef(f.Payload[0].ID(), c, r)

	case heap.KindStopFrame, heap.KindCatchFrame, heap.KindRetSmall, heap.KindRetVecSmall:
		bm := f.Info.Bitmap
		if err := p.retainWords(c, r, f, f.Payload, bm.Size, bm.Live); err != nil {
			return err
		}
		return p.retainSRT(c, r, f.Info.SRT)

	case heap.KindRetBig, heap.KindRetVecBig:
		bm := f.Info.Large
		if err := p.retainWords(c, r, f, f.Payload, bm.Size(), bm.Live); err != nil {
			return err
		}
		return p.retainSRT(c, r, f.Info.SRT)

	case heap.KindRetBCO:
		if len(f.Payload) < 1 {
			return shortFrame(c, f, 1)
		}
		bcoID := f.Payload[0].ID()
		if err := p.retainRef(bcoID, c, r); err != nil {
			return err
		}
		bco := p.heap.Closure(bcoID)
		if bco.Kind() != heap.KindBCO {
			return apperrors.Invariant("RET_BCO frame", bco.Kind())
		}
		bm := bco.BCOBitmap
		return p.retainWords(c, r, f, f.Payload[1:], bm.Size(), bm.Live)

	case heap.KindRetDyn:
		return p.retainRetDyn(c, r, f)

	case heap.KindRetFun:
		if len(f.Payload) < 1 {
			return shortFrame(c, f, 1)
		}
		funID := f.Payload[0].ID()
		if err := p.retainRef(funID, c, r); err != nil {
			return err
		}
		fun := p.heap.Closure(funID)
		if err := p.retainArgs(c, r, f, fun, f.Payload[1:], -1); err != nil {
			return err
		}
		return p.retainSRT(c, r, f.Info.SRT)
	}
	return apperrors.Invariant("stack walker", f.Info.Kind)
}

// retainRetDyn walks a frame whose liveness is stored in the frame itself.
func (p *pass) retainRetDyn(c *heap.Closure, r retainerset.Retainer, f *heap.Frame) error {
	if len(f.Payload) < 1 {
		return shortFrame(c, f, 1)
	}
	dyn := f.Payload[0]
	words := f.Payload[1:]
	live := dyn.RetDynLiveness()
	if err := p.retainWords(c, r, f, words, live.Size, live.Live); err != nil {
		return err
	}
	ptrStart := heap.RetDynBitmapSize + dyn.RetDynNonPtrs() + heap.RetDynNonPtrRegsSize
	ptrEnd := ptrStart + dyn.RetDynPtrs()
	if ptrEnd > len(words) {
		return shortFrame(c, f, ptrEnd+1)
	}
	for _, w := range words[ptrStart:ptrEnd] {
		if err := p.retainRef(w.ID(), c, r); err != nil {
			return err
		}
	}
	return nil
}

// retainPAP walks the function and argument payload of a PAP or AP.
func (p *pass) retainPAP(c *heap.Closure, r retainerset.Retainer) error {
	funID := c.Field(0)
	if err := p.retainRef(funID, c, r); err != nil {
		return err
	}
	fun := p.heap.Closure(funID)
	if fun.Kind() == heap.KindPAP {
		return apperrors.Invariant("partial application function", fun.Kind())
	}
	return p.retainArgs(c, r, nil, fun, c.Args, len(c.Args))
}

// retainArgs walks an argument block laid out by fun's calling convention.
// n is the number of argument words, or -1 to take it from the layout.
func (p *pass) retainArgs(c *heap.Closure, r retainerset.Retainer, f *heap.Frame,
	fun *heap.Closure, words []heap.Word, n int) error {
	if fun.Info.Fun == nil {
		return apperrors.Newf(apperrors.CodeInvariantViolation,
			"%s closure %d applied without an argument descriptor", fun.Kind(), fun.ID)
	}
	fi := fun.Info.Fun
	switch fi.Type {
	case heap.ArgGen:
		return p.retainWords(c, r, f, words, sizeOr(n, fi.Bitmap.Size), fi.Bitmap.Live)
	case heap.ArgGenBig:
		return p.retainWords(c, r, f, words, sizeOr(n, fi.Large.Size()), fi.Large.Live)
	case heap.ArgBCO:
		if f != nil {
			// Only partial applications can be laid out by their own BCO.
			return apperrors.Newf(apperrors.CodeInvariantViolation,
				"ARG_BCO function %d in RET_FUN frame", fun.ID)
		}
		bm := fun.BCOBitmap
		return p.retainWords(c, r, f, words, sizeOr(n, bm.Size()), bm.Live)
	}
	std, ok := heap.StdArgBitmap(fi.Type)
	if !ok {
		return apperrors.Newf(apperrors.CodeInvariantViolation,
			"invalid argument convention %s of closure %d", fi.Type, fun.ID)
	}
	return p.retainWords(c, r, f, words, sizeOr(n, std.Size), std.Live)
}

// retainWords retains every live word among the first size words.
func (p *pass) retainWords(c *heap.Closure, r retainerset.Retainer, f *heap.Frame,
	words []heap.Word, size int, live func(int) bool) error {
	if size > len(words) {
		if f != nil {
			return shortFrame(c, f, size)
		}
		return apperrors.Newf(apperrors.CodeInvariantViolation,
			"closure %d holds %d argument words, layout needs %d", c.ID, len(words), size)
	}
	for i := 0; i < size; i++ {
		if !live(i) {
			continue
		}
		if err := p.retainRef(words[i].ID(), c, r); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) retainSRT(c *heap.Closure, r retainerset.Retainer, srt []heap.ClosureID) error {
	for _, id := range srt {
		if err := p.retainRef(id, c, r); err != nil {
			return err
		}
	}
	return nil
}

// retainRef runs a reentrant traversal from the referenced closure.
func (p *pass) retainRef(id heap.ClosureID, parent *heap.Closure, r retainerset.Retainer) error {
	child, err := p.resolve(id, parent)
	if err != nil {
		return err
	}
	return p.retainClosure(child, parent, r)
}

func sizeOr(n, size int) int {
	if n >= 0 {
		return n
	}
	return size
}

func shortFrame(c *heap.Closure, f *heap.Frame, need int) error {
	return apperrors.Newf(apperrors.CodeInvariantViolation,
		"%s frame of closure %d holds %d words, layout needs %d", f.Info.Kind, c.ID, len(f.Payload), need)
}
