package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitset_SetTest(t *testing.T) {
	b := NewBitset(100)
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(99)
	b.Set(100) // out of range
	b.Set(-1)

	assert.Equal(t, 100, b.Size())
	assert.Equal(t, 4, b.Count())
	assert.True(t, b.Test(63))
	assert.True(t, b.Test(64))
	assert.False(t, b.Test(1))
	assert.False(t, b.Test(100))
	assert.False(t, b.Test(-1))
}

func TestBitset_FromWords(t *testing.T) {
	// word 0: bits 0, 1, 3; word 1: bits 64..69 and one past the size
	b := NewBitsetFromWords(70, []uint64{0b1011, 0xff})

	assert.Equal(t, 70, b.Size())
	assert.Equal(t, 9, b.Count())
	assert.True(t, b.Test(69))
	assert.False(t, b.Test(70))
	assert.Equal(t, []uint64{0b1011, 0x3f}, b.Words())
}

func TestBitset_FromShortWords(t *testing.T) {
	b := NewBitsetFromWords(130, []uint64{1})
	assert.Equal(t, 1, b.Count())
	assert.Len(t, b.Words(), 3)
	assert.False(t, b.Test(129))
}

func TestBitset_Empty(t *testing.T) {
	b := NewBitsetFromWords(0, []uint64{1})
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, 0, b.Count())
	assert.False(t, b.Test(0))

	assert.Equal(t, 0, NewBitset(-5).Size())
}
