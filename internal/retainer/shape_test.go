package retainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retainer-prof/internal/heap"
	apperrors "github.com/retainer-prof/pkg/errors"
)

func TestShapeOf(t *testing.T) {
	tests := []struct {
		kind heap.Kind
		want Shape
	}{
		{heap.KindConstr02, ShapeNoChildren},
		{heap.KindArrWords, ShapeNoChildren},
		{heap.KindMutVar, ShapeOneFixed},
		{heap.KindThunkSelector, ShapeOneFixed},
		{heap.KindConstr20, ShapeTwoFixed},
		{heap.KindMVar, ShapeThreeFixed},
		{heap.KindWeak, ShapeThreeFixed},
		{heap.KindConstr, ShapePtrArray},
		{heap.KindMutArrPtrsFrozen, ShapePtrArray},
		{heap.KindFun11, ShapeFixedPlusSRT},
		{heap.KindThunk, ShapePtrArrayPlusSRT},
		{heap.KindThunkStatic, ShapeSRTOnly},
		{heap.KindFun02, ShapeSRTOnly},
		{heap.KindAPStack, ShapeStack},
		{heap.KindTSO, ShapeStack},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := ShapeOf(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShapeOf_InvalidKinds(t *testing.T) {
	for _, k := range []heap.Kind{
		heap.KindInvalid, heap.KindInd, heap.KindIndStatic, heap.KindConstrIntlike,
		heap.KindUpdateFrame, heap.KindRetFun, heap.KindEvacuated, heap.KindRemoteRef,
	} {
		_, err := ShapeOf(k)
		assert.True(t, apperrors.IsInvariantViolation(err), k.String())
	}
}

func TestIsRetainerKind(t *testing.T) {
	retainers := []heap.Kind{
		heap.KindTSO, heap.KindMVar, heap.KindMutArrPtrs, heap.KindThunk02,
		heap.KindThunkSelector, heap.KindAP, heap.KindAPStack, heap.KindThunkStatic, heap.KindWeak,
	}
	for _, k := range retainers {
		ok, err := IsRetainerKind(k)
		require.NoError(t, err)
		assert.True(t, ok, k.String())
	}

	plain := []heap.Kind{
		heap.KindConstr, heap.KindFun10, heap.KindPAP, heap.KindBlackholeBQ,
		heap.KindIndOldGen, heap.KindConstrStatic, heap.KindFunStatic, heap.KindBCO,
	}
	for _, k := range plain {
		ok, err := IsRetainerKind(k)
		require.NoError(t, err)
		assert.False(t, ok, k.String())
	}

	_, err := IsRetainerKind(heap.KindConstrNoCAFStatic)
	assert.True(t, apperrors.IsInvariantViolation(err))
}

// Every kind the classifier accepts is either traversable or filtered, and
// every traversable kind has a retainer classification.
func TestClassifiersAgree(t *testing.T) {
	for _, k := range heap.Kinds() {
		_, shapeErr := ShapeOf(k)
		_, retErr := IsRetainerKind(k)
		assert.Equal(t, shapeErr == nil, retErr == nil, k.String())
	}
}

func TestCursor_PtrsThenSRT(t *testing.T) {
	b := heap.NewBuilder()
	x := b.Object(heap.KindConstr01)
	y := b.Object(heap.KindConstr01)
	s := b.Object(heap.KindConstr01)
	fn := b.WithSRT(heap.KindFun, []heap.ClosureID{s}, x, y)
	c := b.Heap().Closure(fn)

	cur, err := newCursor(c)
	require.NoError(t, err)

	var got []heap.ClosureID
	for cur.more() {
		id, ok := cur.next()
		require.True(t, ok)
		got = append(got, id)
	}
	assert.Equal(t, []heap.ClosureID{x, y, s}, got)
	_, ok := cur.next()
	assert.False(t, ok)
}

func TestCursor_ConstructorIgnoresSRT(t *testing.T) {
	b := heap.NewBuilder()
	x := b.Object(heap.KindConstr01)
	info := b.Heap().AddInfo(&heap.InfoTable{Kind: heap.KindConstr, NPtrs: 1, SRT: []heap.ClosureID{x}})
	c := b.Heap().Closure(b.WithInfo(info, x))

	cur, err := newCursor(c)
	require.NoError(t, err)
	_, ok := cur.next()
	assert.True(t, ok)
	assert.False(t, cur.more())
}

func TestCursor_MissingFields(t *testing.T) {
	b := heap.NewBuilder()
	c := b.Heap().Closure(b.Object(heap.KindMVar))

	_, err := newCursor(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares 3 pointers but holds 0")
}
