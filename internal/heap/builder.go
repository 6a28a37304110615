package heap

// Builder assembles heaps programmatically. Every closure created through
// Object gets its own info table, so info-table identity distinguishes it.
type Builder struct {
	h *Heap
}

// NewBuilder creates a builder over an empty heap.
func NewBuilder() *Builder {
	return &Builder{h: New()}
}

// Heap returns the heap under construction.
func (b *Builder) Heap() *Heap {
	return b.h
}

// Info registers a new info table.
func (b *Builder) Info(name string, kind Kind) *InfoTable {
	return b.h.AddInfo(&InfoTable{Name: name, Kind: kind})
}

// Object allocates a closure of kind whose reference fields are ptrs.
func (b *Builder) Object(kind Kind, ptrs ...ClosureID) ClosureID {
	info := b.h.AddInfo(&InfoTable{Kind: kind, NPtrs: len(ptrs)})
	return b.WithInfo(info, ptrs...)
}

// WithInfo allocates a closure sharing an existing info table.
func (b *Builder) WithInfo(info *InfoTable, ptrs ...ClosureID) ClosureID {
	return b.h.Add(&Closure{Info: info, Ptrs: append([]ClosureID(nil), ptrs...)})
}

// Static allocates a static object of kind with the given SRT.
func (b *Builder) Static(kind Kind, srt ...ClosureID) ClosureID {
	info := b.h.AddInfo(&InfoTable{Kind: kind, SRT: append([]ClosureID(nil), srt...)})
	id := b.WithInfo(info)
	b.h.StaticObjects = append(b.h.StaticObjects, id)
	return id
}

// WithSRT allocates a function or thunk with free variables ptrs and an SRT.
func (b *Builder) WithSRT(kind Kind, srt []ClosureID, ptrs ...ClosureID) ClosureID {
	info := b.h.AddInfo(&InfoTable{Kind: kind, NPtrs: len(ptrs), SRT: append([]ClosureID(nil), srt...)})
	return b.WithInfo(info, ptrs...)
}

// Function allocates a FUN with the given argument convention.
func (b *Builder) Function(fun FunInfo, ptrs ...ClosureID) ClosureID {
	f := fun
	info := b.h.AddInfo(&InfoTable{Kind: KindFun, NPtrs: len(ptrs), Fun: &f})
	return b.WithInfo(info, ptrs...)
}

// PAP allocates a partial application of fun to args.
func (b *Builder) PAP(kind Kind, fun ClosureID, args ...Word) ClosureID {
	info := b.h.AddInfo(&InfoTable{Kind: kind})
	return b.h.Add(&Closure{Info: info, Ptrs: []ClosureID{fun}, Args: append([]Word(nil), args...)})
}

// Thread allocates a runnable TSO with the given frames and registers it
// as a thread root.
func (b *Builder) Thread(frames ...Frame) ClosureID {
	id := b.ThreadIn(ThreadRunGHC, frames...)
	b.h.Threads = append(b.h.Threads, id)
	return id
}

// ThreadIn allocates a TSO in state without registering it as a root.
func (b *Builder) ThreadIn(state ThreadState, frames ...Frame) ClosureID {
	info := b.h.AddInfo(&InfoTable{Kind: KindTSO})
	return b.h.Add(&Closure{Info: info, Thread: &Thread{State: state}, Stack: frames})
}

// APStack allocates a suspended application of fun with the given frames.
func (b *Builder) APStack(fun ClosureID, frames ...Frame) ClosureID {
	info := b.h.AddInfo(&InfoTable{Kind: KindAPStack})
	return b.h.Add(&Closure{Info: info, Ptrs: []ClosureID{fun}, Stack: frames})
}

// Frame builds a frame of kind laid out by bitmap.
func (b *Builder) Frame(kind Kind, bitmap SmallBitmap, srt []ClosureID, payload ...Word) Frame {
	info := b.h.AddInfo(&InfoTable{Kind: kind, Bitmap: bitmap, SRT: srt})
	return Frame{Info: info, Payload: payload}
}

// LargeFrame builds a frame of kind laid out by a large bitmap.
func (b *Builder) LargeFrame(kind Kind, bitmap *LargeBitmap, srt []ClosureID, payload ...Word) Frame {
	info := b.h.AddInfo(&InfoTable{Kind: kind, Large: bitmap, SRT: srt})
	return Frame{Info: info, Payload: payload}
}

// UpdateFrame builds an update frame for updatee.
func (b *Builder) UpdateFrame(updatee ClosureID) Frame {
	info := b.h.AddInfo(&InfoTable{Kind: KindUpdateFrame})
	return Frame{Info: info, Payload: []Word{Ref(updatee)}}
}

// Set replaces the reference fields of an existing closure, for cycles.
func (b *Builder) Set(id ClosureID, ptrs ...ClosureID) {
	c := b.h.Closure(id)
	c.Ptrs = append(c.Ptrs[:0], ptrs...)
	c.Info.NPtrs = len(ptrs)
}
