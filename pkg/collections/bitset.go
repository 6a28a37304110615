package collections

import "math/bits"

// Bitset is a fixed-size set of bit positions. Bit i lives in word i/64 at
// position i%64, the layout of a multi-word pointer bitmap.
type Bitset struct {
	words []uint64
	size  int
}

// NewBitset creates an empty bitset of size bits.
func NewBitset(size int) *Bitset {
	size = max(size, 0)
	return &Bitset{words: make([]uint64, (size+63)/64), size: size}
}

// NewBitsetFromWords copies words into a bitset of size bits. Bits at or
// past size are dropped.
func NewBitsetFromWords(size int, words []uint64) *Bitset {
	b := NewBitset(size)
	copy(b.words, words)
	if tail := b.size % 64; tail != 0 {
		b.words[len(b.words)-1] &= 1<<tail - 1
	}
	return b
}

// Set sets bit i. Positions outside the bitset are ignored.
func (b *Bitset) Set(i int) {
	if i >= 0 && i < b.size {
		b.words[i/64] |= 1 << (i % 64)
	}
}

// Test reports whether bit i is set.
func (b *Bitset) Test(i int) bool {
	return i >= 0 && i < b.size && b.words[i/64]&(1<<(i%64)) != 0
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b *Bitset) Size() int { return b.size }

// Words returns the backing words; callers must not modify them.
func (b *Bitset) Words() []uint64 { return b.words }
