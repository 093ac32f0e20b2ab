package solution

// Set deduplicates solutions by structural equality, remembering the order
// in which distinct solutions were first added.
type Set struct {
	buckets map[uint64][]int
	items   []Solution
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{buckets: make(map[uint64][]int)}
}

// Add inserts s and reports whether it was not already present.
func (set *Set) Add(s Solution) bool {
	h := s.Hash()
	for _, idx := range set.buckets[h] {
		if set.items[idx].Equal(s) {
			return false
		}
	}
	set.buckets[h] = append(set.buckets[h], len(set.items))
	set.items = append(set.items, s)
	return true
}

// Contains reports whether an equal solution was added.
func (set *Set) Contains(s Solution) bool {
	for _, idx := range set.buckets[s.Hash()] {
		if set.items[idx].Equal(s) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct solutions.
func (set *Set) Len() int { return len(set.items) }

// Items returns the distinct solutions in first-insertion order.
func (set *Set) Items() []Solution { return set.items }
