package phase

import "strings"

// Set is an immutable set of phases.
type Set uint8

// NewSet returns the set containing ps.
func NewSet(ps ...Phase) Set {
	var s Set
	for _, p := range ps {
		if p.Valid() {
			s |= 1 << uint(p)
		}
	}
	return s
}

// AllSet contains every phase.
func AllSet() Set {
	return NewSet(All()...)
}

// ParseSet parses phase names into a set.
func ParseSet(names []string) (Set, error) {
	var s Set
	for _, n := range names {
		p, err := Parse(n)
		if err != nil {
			return 0, err
		}
		s = s.With(p)
	}
	return s, nil
}

// Contains reports whether p is in s.
func (s Set) Contains(p Phase) bool {
	return p.Valid() && s&(1<<uint(p)) != 0
}

// With returns a copy of s that also contains p.
func (s Set) With(p Phase) Set {
	return s | NewSet(p)
}

// Len returns the number of phases in s.
func (s Set) Len() int {
	n := 0
	for _, p := range All() {
		if s.Contains(p) {
			n++
		}
	}
	return n
}

// IsEmpty reports whether s has no phases.
func (s Set) IsEmpty() bool { return s == 0 }

// Slice returns the phases of s in lifecycle order.
func (s Set) Slice() []Phase {
	var out []Phase
	for _, p := range All() {
		if s.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s Set) String() string {
	ps := s.Slice()
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}
