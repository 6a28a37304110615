package retainer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retainer-prof/internal/heap"
)

func childIDs(vs []Visit) []heap.ClosureID {
	out := make([]heap.ClosureID, len(vs))
	for i, v := range vs {
		out[i] = v.Child
	}
	return out
}

func leaves(b *heap.Builder, n int) []heap.ClosureID {
	out := make([]heap.ClosureID, n)
	for i := range out {
		out[i] = b.Object(heap.KindConstr01)
	}
	return out
}

func TestWalker_UpdateAndLargeBitmapFrames(t *testing.T) {
	b := heap.NewBuilder()
	l := leaves(b, 4)
	srtLeaf := b.Object(heap.KindConstr01)

	payload := make([]heap.Word, 70)
	payload[0] = heap.Ref(l[1])
	payload[65] = heap.Ref(l[2])
	payload[69] = heap.Ref(l[3])
	big := heap.NewLargeBitmap(70, []uint64{1, 1<<1 | 1<<5})

	tso := b.Thread(
		b.UpdateFrame(l[0]),
		b.LargeFrame(heap.KindRetBig, big, []heap.ClosureID{srtLeaf}, payload...),
	)
	h := b.Heap()

	rec := &recorder{}
	p, _ := runPass(t, h, Config{Observer: rec})

	assert.Equal(t, []heap.ClosureID{l[0], l[1], l[2], l[3], srtLeaf}, childIDs(rec.childrenOf(tso)))
	assert.Equal(t, elems(h, tso), setOf(t, p, srtLeaf).Elements())
}

func TestWalker_RetDynFrame(t *testing.T) {
	b := heap.NewBuilder()
	l := leaves(b, 4)

	payload := []heap.Word{heap.PackRetDyn(0b101, 1, 2)}
	regs := make([]heap.Word, heap.RetDynBitmapSize)
	regs[0] = heap.Ref(l[0])
	regs[2] = heap.Ref(l[1])
	payload = append(payload, regs...)
	payload = append(payload, make([]heap.Word, 1+heap.RetDynNonPtrRegsSize)...)
	payload = append(payload, heap.Ref(l[2]), heap.Ref(l[3]))

	info := b.Info("dyn", heap.KindRetDyn)
	tso := b.Thread(heap.Frame{Info: info, Payload: payload})
	rec := &recorder{}
	runPass(t, b.Heap(), Config{Observer: rec})

	assert.Equal(t, l, childIDs(rec.childrenOf(tso)))
}

func TestWalker_RetBCOFrame(t *testing.T) {
	b := heap.NewBuilder()
	l := leaves(b, 2)
	bco := b.Object(heap.KindBCO)
	b.Heap().Closure(bco).BCOBitmap = heap.NewLargeBitmap(3, []uint64{0b101})

	info := b.Info("bco_ret", heap.KindRetBCO)
	tso := b.Thread(heap.Frame{Info: info, Payload: []heap.Word{heap.Ref(bco), heap.Ref(l[0]), 5, heap.Ref(l[1])}})
	rec := &recorder{}
	runPass(t, b.Heap(), Config{Observer: rec})

	assert.Equal(t, []heap.ClosureID{bco, l[0], l[1]}, childIDs(rec.childrenOf(tso)))
}

func TestWalker_RetFunFrame(t *testing.T) {
	tests := []struct {
		name string
		fun  heap.FunInfo
		args func(l []heap.ClosureID) []heap.Word
		want func(l []heap.ClosureID) []heap.ClosureID
	}{
		{
			name: "ARG_GEN",
			fun:  heap.FunInfo{Type: heap.ArgGen, Bitmap: heap.BitmapFromPattern("NP")},
			args: func(l []heap.ClosureID) []heap.Word { return []heap.Word{7, heap.Ref(l[0])} },
			want: func(l []heap.ClosureID) []heap.ClosureID { return l[:1] },
		},
		{
			name: "ARG_GEN_BIG",
			fun:  heap.FunInfo{Type: heap.ArgGenBig, Large: heap.NewLargeBitmap(3, []uint64{0b011})},
			args: func(l []heap.ClosureID) []heap.Word { return []heap.Word{heap.Ref(l[0]), heap.Ref(l[1]), 3} },
			want: func(l []heap.ClosureID) []heap.ClosureID { return l[:2] },
		},
		{
			name: "standard ARG_PNP",
			fun:  heap.FunInfo{Type: heap.ArgPNP},
			args: func(l []heap.ClosureID) []heap.Word { return []heap.Word{heap.Ref(l[1]), 0, heap.Ref(l[0])} },
			want: func(l []heap.ClosureID) []heap.ClosureID { return []heap.ClosureID{l[1], l[0]} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := heap.NewBuilder()
			l := leaves(b, 2)
			srtLeaf := b.Object(heap.KindConstr01)
			fun := b.Function(tt.fun)
			info := b.Heap().AddInfo(&heap.InfoTable{Kind: heap.KindRetFun, SRT: []heap.ClosureID{srtLeaf}})
			payload := append([]heap.Word{heap.Ref(fun)}, tt.args(l)...)
			tso := b.Thread(heap.Frame{Info: info, Payload: payload})

			rec := &recorder{}
			runPass(t, b.Heap(), Config{Observer: rec})

			want := append([]heap.ClosureID{fun}, tt.want(l)...)
			want = append(want, srtLeaf)
			assert.Equal(t, want, childIDs(rec.childrenOf(tso)))
		})
	}
}

func TestWalker_PAP(t *testing.T) {
	b := heap.NewBuilder()
	l := leaves(b, 3)
	fun := b.Function(heap.FunInfo{Type: heap.ArgNPP})
	pap := b.PAP(heap.KindPAP, fun, 1, heap.Ref(l[0]), heap.Ref(l[1]))
	tso := b.Thread(refsFrame(b, pap))
	h := b.Heap()

	rec := &recorder{}
	p, _ := runPass(t, h, Config{Observer: rec})

	assert.Equal(t, []heap.ClosureID{fun, l[0], l[1]}, childIDs(rec.childrenOf(pap)))
	// PAP is not a retainer, so its arguments keep the thread's set.
	assert.Same(t, setOf(t, p, pap), setOf(t, p, l[1]))
	assert.Equal(t, elems(h, tso), setOf(t, p, l[0]).Elements())
}

func TestWalker_APWithBCOFunction(t *testing.T) {
	b := heap.NewBuilder()
	l := leaves(b, 2)
	bcoInfo := b.Heap().AddInfo(&heap.InfoTable{Kind: heap.KindBCO, Fun: &heap.FunInfo{Type: heap.ArgBCO}})
	bco := b.WithInfo(bcoInfo)
	b.Heap().Closure(bco).BCOBitmap = heap.NewLargeBitmap(2, []uint64{0b10})
	ap := b.PAP(heap.KindAP, bco, heap.Ref(l[0]), heap.Ref(l[1]))
	b.Thread(refsFrame(b, ap))
	h := b.Heap()

	rec := &recorder{}
	p, _ := runPass(t, h, Config{Observer: rec})

	assert.Equal(t, []heap.ClosureID{bco, l[1]}, childIDs(rec.childrenOf(ap)))
	assert.Nil(t, setOf(t, p, l[0]))
	// AP is a retainer of its live arguments.
	assert.Equal(t, elems(h, ap), setOf(t, p, l[1]).Elements())
}

func TestWalker_APStack(t *testing.T) {
	b := heap.NewBuilder()
	l := leaves(b, 2)
	fun := b.Function(heap.FunInfo{Type: heap.ArgNone})
	aps := b.APStack(fun, b.UpdateFrame(l[0]), refsFrame(b, l[1]))
	b.Thread(refsFrame(b, aps))
	h := b.Heap()

	rec := &recorder{}
	p, res := runPass(t, h, Config{Observer: rec})

	assert.Equal(t, []heap.ClosureID{fun, l[0], l[1]}, childIDs(rec.childrenOf(aps)))
	assert.Equal(t, elems(h, aps), setOf(t, p, l[0]).Elements())
	// thread walker plus nested AP_STACK walker
	assert.Equal(t, 2, res.MaxNestedDepth)
}

func TestWalker_NestedTraversalKeepsOuterItems(t *testing.T) {
	b := heap.NewBuilder()
	l := leaves(b, 3)
	inner := b.Object(heap.KindConstr20, l[0], l[1])
	sub := b.ThreadIn(heap.ThreadRunGHC, refsFrame(b, inner))
	outer := b.Object(heap.KindConstr20, sub, l[2])
	tso := b.Thread(refsFrame(b, outer))
	h := b.Heap()

	rec := &recorder{}
	p, _ := runPass(t, h, Config{Observer: rec})

	// l[2] is reached from outer only after the nested walk of sub returns.
	var order []heap.ClosureID
	for _, v := range rec.visits {
		order = append(order, v.Child)
	}
	assert.Equal(t, []heap.ClosureID{tso, outer, sub, inner, l[0], l[1], l[2]}, order)
	assert.Equal(t, elems(h, tso), setOf(t, p, l[2]).Elements())
	assert.Equal(t, elems(h, sub), setOf(t, p, l[0]).Elements())
}
