package retainer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/internal/retainerset"
)

// refsFrame builds a RET_SMALL frame whose every slot is a reference.
func refsFrame(b *heap.Builder, refs ...heap.ClosureID) heap.Frame {
	words := make([]heap.Word, len(refs))
	for i, id := range refs {
		words[i] = heap.Ref(id)
	}
	return b.Frame(heap.KindRetSmall, heap.BitmapFromPattern(strings.Repeat("P", len(refs))), nil, words...)
}

// rOf is the info-scheme retainer of id.
func rOf(h *heap.Heap, id heap.ClosureID) retainerset.Retainer {
	return retainerset.Retainer(h.Closure(id).Info.ID)
}

type recorder struct {
	visits []Visit
}

func (r *recorder) OnVisit(v Visit) { r.visits = append(r.visits, v) }

// childrenOf returns the visits whose parent is id, excluding the root self-visit.
func (r *recorder) childrenOf(id heap.ClosureID) []Visit {
	var out []Visit
	for _, v := range r.visits {
		if v.Parent == id && v.Child != id {
			out = append(out, v)
		}
	}
	return out
}

func runPass(t *testing.T, h *heap.Heap, cfg Config) (*Profiler, *PassResult) {
	t.Helper()
	p := New(h, cfg)
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	return p, res
}

func setOf(t *testing.T, p *Profiler, id heap.ClosureID) *retainerset.Set {
	t.Helper()
	s, err := p.RetainerSetOf(id)
	require.NoError(t, err)
	return s
}

func elems(h *heap.Heap, ids ...heap.ClosureID) []retainerset.Retainer {
	out := make([]retainerset.Retainer, len(ids))
	for i, id := range ids {
		out[i] = rOf(h, id)
	}
	return out
}
