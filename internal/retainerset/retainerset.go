// Package retainerset implements an interning store for immutable sets of
// retainers. Two sets with the same members are always the same *Set.
package retainerset

import (
	"encoding/binary"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Retainer is an opaque identity used for set membership.
type Retainer uint64

// System is the retainer attributed to roots that are not retainers themselves.
const System Retainer = 0

// SetID identifies an interned set inside its store. IDs start at 1.
type SetID uint32

// Set is an immutable, interned retainer set.
type Set struct {
	id    SetID
	hash  uint64
	elems []Retainer // sorted ascending, no duplicates
}

// ID returns the store-assigned identifier.
func (s *Set) ID() SetID {
	return s.id
}

// Len returns the number of retainers in the set.
func (s *Set) Len() int {
	return len(s.elems)
}

// Contains reports whether r is a member of s.
func (s *Set) Contains(r Retainer) bool {
	i := sort.Search(len(s.elems), func(i int) bool { return s.elems[i] >= r })
	return i < len(s.elems) && s.elems[i] == r
}

// Elements returns a copy of the members in ascending order.
func (s *Set) Elements() []Retainer {
	out := make([]Retainer, len(s.elems))
	copy(out, s.elems)
	return out
}

func (s *Set) String() string {
	parts := make([]string, len(s.elems))
	for i, r := range s.elems {
		parts[i] = strconv.FormatUint(uint64(r), 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func hashElems(elems []Retainer) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, r := range elems {
		binary.LittleEndian.PutUint64(buf[:], uint64(r))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func equalElems(a, b []Retainer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
