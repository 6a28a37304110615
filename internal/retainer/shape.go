package retainer

import (
	"github.com/retainer-prof/internal/heap"
	apperrors "github.com/retainer-prof/pkg/errors"
)

// Shape is the child-enumeration pattern of a closure kind.
type Shape uint8

const (
	ShapeNoChildren Shape = iota
	ShapeOneFixed
	ShapeTwoFixed
	ShapeThreeFixed
	ShapePtrArray
	ShapeFixedPlusSRT
	ShapePtrArrayPlusSRT
	ShapeSRTOnly
	ShapeStack
)

var shapeNames = [...]string{
	ShapeNoChildren:      "no-children",
	ShapeOneFixed:        "one-fixed",
	ShapeTwoFixed:        "two-fixed",
	ShapeThreeFixed:      "three-fixed",
	ShapePtrArray:        "pointer-array",
	ShapeFixedPlusSRT:    "fixed-plus-srt",
	ShapePtrArrayPlusSRT: "pointer-array-plus-srt",
	ShapeSRTOnly:         "srt-only",
	ShapeStack:           "stack-shaped",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown-shape"
}

// ShapeOf classifies kind. Kinds that can never be traversed as heap
// objects (frames, forwarding placeholders, static objects filtered
// before traversal) are invariant violations.
func ShapeOf(kind heap.Kind) (Shape, error) {
	switch kind {
	case heap.KindConstr01, heap.KindConstr02,
		heap.KindCAFBlackhole, heap.KindBlackhole, heap.KindSEBlackhole, heap.KindSECAFBlackhole,
		heap.KindArrWords:
		return ShapeNoChildren, nil

	case heap.KindMutVar, heap.KindMutCons, heap.KindBlackholeBQ, heap.KindThunkSelector,
		heap.KindIndPerm, heap.KindIndOldGenPerm, heap.KindIndOldGen,
		heap.KindConstr10, heap.KindConstr11:
		return ShapeOneFixed, nil

	case heap.KindConstr20:
		return ShapeTwoFixed, nil

	case heap.KindMVar, heap.KindWeak:
		return ShapeThreeFixed, nil

	case heap.KindConstr, heap.KindForeign, heap.KindStableName, heap.KindBCO, heap.KindConstrStatic,
		heap.KindMutArrPtrs, heap.KindMutArrPtrsFrozen:
		return ShapePtrArray, nil

	case heap.KindFun10, heap.KindFun11, heap.KindThunk10, heap.KindThunk11:
		return ShapeFixedPlusSRT, nil

	case heap.KindFun, heap.KindFun20, heap.KindThunk, heap.KindThunk20:
		return ShapePtrArrayPlusSRT, nil

	case heap.KindFunStatic, heap.KindFun01, heap.KindFun02,
		heap.KindThunkStatic, heap.KindThunk01, heap.KindThunk02:
		return ShapeSRTOnly, nil

	case heap.KindTSO, heap.KindPAP, heap.KindAP, heap.KindAPStack:
		return ShapeStack, nil
	}
	return 0, apperrors.Invariant("shape classifier", kind)
}

// IsRetainerKind reports whether closures of kind act as retainers.
func IsRetainerKind(kind heap.Kind) (bool, error) {
	switch kind {
	case heap.KindTSO,
		heap.KindMVar, heap.KindMutVar, heap.KindMutCons, heap.KindMutArrPtrs, heap.KindMutArrPtrsFrozen,
		heap.KindThunk, heap.KindThunk10, heap.KindThunk01, heap.KindThunk20, heap.KindThunk11, heap.KindThunk02,
		heap.KindThunkSelector, heap.KindAP, heap.KindAPStack,
		heap.KindThunkStatic,
		heap.KindWeak:
		return true, nil

	case heap.KindConstr, heap.KindConstr10, heap.KindConstr01, heap.KindConstr20, heap.KindConstr11, heap.KindConstr02,
		heap.KindFun, heap.KindFun10, heap.KindFun01, heap.KindFun20, heap.KindFun11, heap.KindFun02,
		heap.KindPAP,
		heap.KindCAFBlackhole, heap.KindBlackhole, heap.KindSEBlackhole, heap.KindSECAFBlackhole, heap.KindBlackholeBQ,
		heap.KindIndPerm, heap.KindIndOldGenPerm, heap.KindIndOldGen,
		heap.KindConstrStatic, heap.KindFunStatic,
		heap.KindForeign, heap.KindStableName, heap.KindBCO, heap.KindArrWords:
		return false, nil
	}
	return false, apperrors.Invariant("retainer classifier", kind)
}

// cursor enumerates the children of a non-stack-shaped closure: its
// reference fields first, then its SRT.
type cursor struct {
	c      *heap.Closure
	nptrs  int
	pos    int
	srt    []heap.ClosureID
	srtPos int
}

func newCursor(c *heap.Closure) (cursor, error) {
	shape, err := ShapeOf(c.Kind())
	if err != nil {
		return cursor{}, err
	}
	cur := cursor{c: c}
	switch shape {
	case ShapeNoChildren:
	case ShapeOneFixed, ShapeFixedPlusSRT:
		cur.nptrs = 1
	case ShapeTwoFixed:
		cur.nptrs = 2
	case ShapeThreeFixed:
		cur.nptrs = 3
	case ShapePtrArray, ShapePtrArrayPlusSRT:
		switch c.Kind() {
		case heap.KindMutArrPtrs, heap.KindMutArrPtrsFrozen:
			cur.nptrs = len(c.Ptrs)
		case heap.KindFun20, heap.KindThunk20:
			cur.nptrs = 2
		default:
			cur.nptrs = c.Info.NPtrs
		}
	case ShapeSRTOnly:
	case ShapeStack:
		return cursor{}, apperrors.Invariant("push", c.Kind())
	}
	if cur.nptrs > len(c.Ptrs) {
		return cursor{}, apperrors.Newf(apperrors.CodeInvariantViolation,
			"%s closure %d declares %d pointers but holds %d", c.Kind(), c.ID, cur.nptrs, len(c.Ptrs))
	}
	switch shape {
	case ShapeFixedPlusSRT, ShapePtrArrayPlusSRT, ShapeSRTOnly:
		cur.srt = c.Info.SRT
	}
	return cur, nil
}

// next returns the next child, or false when none remain.
func (cur *cursor) next() (heap.ClosureID, bool) {
	if cur.pos < cur.nptrs {
		id := cur.c.Ptrs[cur.pos]
		cur.pos++
		return id, true
	}
	if cur.srtPos < len(cur.srt) {
		id := cur.srt[cur.srtPos]
		cur.srtPos++
		return id, true
	}
	return heap.Nil, false
}

// more reports whether next would return another child.
func (cur *cursor) more() bool {
	return cur.pos < cur.nptrs || cur.srtPos < len(cur.srt)
}
