package heap

// RET_DYN frame layout: payload[0] is a packed liveness word, followed by
// RetDynBitmapSize register words described by the liveness bitmap, the
// non-pointer words plus RetDynNonPtrRegsSize saved registers, then the
// pointer words.
const (
	RetDynBitmapSize     = 8
	RetDynNonPtrRegsSize = 10
)

// PackRetDyn builds the liveness word of a RET_DYN frame.
func PackRetDyn(liveness uint16, nonPtrs, ptrs uint8) Word {
	return Word(liveness) | Word(nonPtrs)<<16 | Word(ptrs)<<24
}

// RetDynLiveness returns the register bitmap of a packed liveness word.
func (w Word) RetDynLiveness() SmallBitmap {
	return SmallBitmap{Size: RetDynBitmapSize, Bits: uint64(w & 0xffff)}
}

// RetDynNonPtrs returns the number of non-pointer words.
func (w Word) RetDynNonPtrs() int {
	return int((w >> 16) & 0xff)
}

// RetDynPtrs returns the number of pointer words.
func (w Word) RetDynPtrs() int {
	return int((w >> 24) & 0xff)
}
