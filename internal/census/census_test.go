package census

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retainer-prof/internal/heap"
	"github.com/retainer-prof/internal/retainer"
	apperrors "github.com/retainer-prof/pkg/errors"
)

type fixture struct {
	h                    *heap.Heap
	shared, a, unreached heap.ClosureID
	t1, t2               heap.ClosureID
}

// newFixture builds two threads: t1 keeps a and, through it, shared; t2
// keeps shared directly. unreached hangs off nothing.
func newFixture() *fixture {
	b := heap.NewBuilder()
	f := &fixture{}
	f.shared = b.Object(heap.KindConstr01)
	f.a = b.Object(heap.KindConstr10, f.shared)
	f.unreached = b.Object(heap.KindConstr)
	f.t1 = b.Thread(refs(b, f.a))
	f.t2 = b.Thread(refs(b, f.shared))
	f.h = b.Heap()
	return f
}

func refs(b *heap.Builder, id heap.ClosureID) heap.Frame {
	return b.Frame(heap.KindRetSmall, heap.BitmapFromPattern("P"), nil, heap.Ref(id))
}

func run(t *testing.T, h *heap.Heap) *retainer.Profiler {
	t.Helper()
	p := retainer.New(h, retainer.Config{})
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	return p
}

func TestTake(t *testing.T) {
	f := newFixture()
	p := run(t, f.h)

	c, err := Take(p)
	require.NoError(t, err)

	assert.Equal(t, "info", c.Scheme)
	assert.Equal(t, 0, c.Generation)
	assert.Equal(t, 4, c.TotalObjects)
	assert.Equal(t, 13, c.TotalWords)
	assert.Equal(t, 1, c.Unreached)
	require.Len(t, c.Entries, 3)

	name := func(id heap.ClosureID) string { return f.h.Closure(id).Info.String() }

	// t1 itself (4 words) plus a (3 words)
	assert.Equal(t, []string{name(f.t1)}, c.Entries[0].Retainers)
	assert.Equal(t, 2, c.Entries[0].Objects)
	assert.Equal(t, 7, c.Entries[0].Words)

	assert.Equal(t, []string{name(f.t2)}, c.Entries[1].Retainers)
	assert.Equal(t, 1, c.Entries[1].Objects)
	assert.Equal(t, 4, c.Entries[1].Words)

	assert.ElementsMatch(t, []string{name(f.t1), name(f.t2)}, c.Entries[2].Retainers)
	assert.Equal(t, 2, c.Entries[2].Words)
	assert.Equal(t, 2, c.Entries[2].Set().Len())
	assert.InDelta(t, 2.0/13*100, c.Entries[2].Percent, 1e-9)

	sharedSet, err := p.RetainerSetOf(f.shared)
	require.NoError(t, err)
	assert.Equal(t, uint32(sharedSet.ID()), c.Entries[2].SetID)
}

func TestUsage(t *testing.T) {
	f := newFixture()
	c, err := Take(run(t, f.h))
	require.NoError(t, err)

	usage := c.Usage()
	require.Len(t, usage, len(c.Entries))
	for i, u := range usage {
		assert.Equal(t, c.Entries[i].SetID, u.SetID)
		assert.Equal(t, c.Entries[i].Words, u.Words)
		assert.Equal(t, c.Entries[i].Retainers, u.Retainers)
	}
}

func TestTakeTopN(t *testing.T) {
	f := newFixture()
	p := run(t, f.h)

	c, err := Take(p, WithTopN(1))
	require.NoError(t, err)
	require.Len(t, c.Entries, 1)
	assert.Equal(t, 7, c.Entries[0].Words)
	assert.Equal(t, 13, c.TotalWords)
}

func TestTakeCCSScheme(t *testing.T) {
	f := newFixture()
	main := f.h.AddCostCentre(&heap.CostCentre{Label: "main", Module: "Main"})
	ccs := f.h.AddCostCentreStack(&heap.CostCentreStack{CC: main})
	f.h.Closure(f.t1).CCS = ccs

	p := retainer.New(f.h, retainer.Config{Scheme: retainer.CCSScheme{}})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	c, err := Take(p)
	require.NoError(t, err)
	assert.Equal(t, "ccs", c.Scheme)

	labels := make(map[string]int)
	for _, e := range c.Entries {
		for _, r := range e.Retainers {
			labels[r] += e.Words
		}
	}
	assert.Equal(t, 9, labels["Main.main"])
	assert.Equal(t, 6, labels["SYSTEM"])
}

func TestTakeWithoutPass(t *testing.T) {
	f := newFixture()
	p := retainer.New(f.h, retainer.Config{})

	_, err := Take(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPassIncomplete)
}

func TestTakeAfterPassSuperseded(t *testing.T) {
	f := newFixture()
	first := run(t, f.h)
	second := run(t, f.h)

	_, err := Take(first)
	assert.ErrorIs(t, err, apperrors.ErrPassIncomplete)

	c, err := Take(second)
	require.NoError(t, err)
	assert.Len(t, c.Entries, 3)
}
