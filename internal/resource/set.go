package resource

// Set is an insertion-ordered collection of distinct resources.
type Set struct {
	items []Identifier
	seen  map[string]struct{}
}

// NewSet returns a set holding ids without duplicates.
func NewSet(ids ...Identifier) *Set {
	s := &Set{seen: make(map[string]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

// Add appends ids not already present.
func (s *Set) Add(ids ...Identifier) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, id := range ids {
		if _, ok := s.seen[id.Key()]; ok {
			continue
		}
		s.seen[id.Key()] = struct{}{}
		s.items = append(s.items, id)
	}
}

// Has reports whether an equal resource is in the set.
func (s *Set) Has(id Identifier) bool {
	_, ok := s.seen[id.Key()]
	return ok
}

// Len returns the number of resources.
func (s *Set) Len() int { return len(s.items) }

// Slice returns a copy of the resources in insertion order.
func (s *Set) Slice() []Identifier {
	return append([]Identifier(nil), s.items...)
}

// AnyIntersects reports whether some member of s intersects some member of o.
func AnyIntersects(a, b []Identifier) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Intersects(y) {
				return true
			}
		}
	}
	return false
}
