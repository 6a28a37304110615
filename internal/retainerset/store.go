package retainerset

// Store hash-conses retainer sets. It is not safe for concurrent use; a
// profiling pass owns it for the pass's duration.
type Store struct {
	buckets map[uint64][]*Set
	sets    []*Set // index = id-1
	// refreshed is len(sets) at the last Refresh or Reset.
	refreshed int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[uint64][]*Set)}
}

// Singleton returns the canonical set {r}.
func (st *Store) Singleton(r Retainer) *Set {
	return st.intern([]Retainer{r})
}

// Add returns the canonical set s ∪ {r}. If r is already a member, s
// itself is returned.
func (st *Store) Add(r Retainer, s *Set) *Set {
	if s == nil {
		return st.Singleton(r)
	}
	if s.Contains(r) {
		return s
	}
	elems := make([]Retainer, 0, len(s.elems)+1)
	inserted := false
	for _, e := range s.elems {
		if !inserted && r < e {
			elems = append(elems, r)
			inserted = true
		}
		elems = append(elems, e)
	}
	if !inserted {
		elems = append(elems, r)
	}
	return st.intern(elems)
}

// IsMember reports whether r belongs to s. A nil set has no members.
func (st *Store) IsMember(r Retainer, s *Set) bool {
	return s != nil && s.Contains(r)
}

// Cardinality returns |s|.
func (st *Store) Cardinality(s *Set) int {
	if s == nil {
		return 0
	}
	return s.Len()
}

// Lookup returns the set with the given id.
func (st *Store) Lookup(id SetID) (*Set, bool) {
	if id == 0 || int(id) > len(st.sets) {
		return nil, false
	}
	return st.sets[id-1], true
}

// Len returns the number of interned sets.
func (st *Store) Len() int {
	return len(st.sets)
}

// ForEach calls fn for every interned set in creation order until fn
// returns false.
func (st *Store) ForEach(fn func(*Set) bool) {
	for _, s := range st.sets {
		if !fn(s) {
			return
		}
	}
}

// Created returns the number of sets interned since the last Refresh or
// Reset.
func (st *Store) Created() int {
	return len(st.sets) - st.refreshed
}

// Refresh prepares the store for a new pass. Interned sets are kept
// because most of them recur across passes; only Created starts over.
func (st *Store) Refresh() {
	st.refreshed = len(st.sets)
}

// Reset drops every interned set. Sets handed out earlier stay valid as
// values but are no longer canonical.
func (st *Store) Reset() {
	st.buckets = make(map[uint64][]*Set)
	st.sets = nil
	st.refreshed = 0
}

func (st *Store) intern(elems []Retainer) *Set {
	h := hashElems(elems)
	for _, s := range st.buckets[h] {
		if equalElems(s.elems, elems) {
			return s
		}
	}
	s := &Set{id: SetID(len(st.sets) + 1), hash: h, elems: elems}
	st.sets = append(st.sets, s)
	st.buckets[h] = append(st.buckets[h], s)
	return s
}
