// Package resource identifies the data assets targets read and write.
//
// A resource is a category (file, hiveTable, ...), a name and an optional
// partition map. Names and partition values may be glob patterns, which makes
// a resource a description of a set of concrete assets. Dependency edges
// between targets are derived from Intersects.
package resource

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
)

// Well-known categories.
const (
	CategoryFile               = "file"
	CategoryLocal              = "local"
	CategoryHiveTable          = "hiveTable"
	CategoryHiveTablePartition = "hiveTablePartition"
)

// Wildcard matches any partition value.
const Wildcard = "*"

// Identifier is an immutable resource identifier. Use the constructors; the
// zero value is not a valid resource.
type Identifier struct {
	category  string
	name      string
	partition map[string]string
	key       string
}

// New returns a resource of the given category. The partition map is copied.
func New(category, name string, partition map[string]string) Identifier {
	id := Identifier{category: category, name: name}
	if len(partition) > 0 {
		id.partition = maps.Clone(partition)
	}
	id.key = id.buildKey()
	return id
}

// File identifies a file by path.
func File(p string) Identifier {
	return New(CategoryFile, p, nil)
}

// Local identifies a path on the local filesystem of the runner.
func Local(p string) Identifier {
	return New(CategoryLocal, p, nil)
}

// HiveTable identifies a whole table.
func HiveTable(database, table string) Identifier {
	return New(CategoryHiveTable, database+"."+table, nil)
}

// HivePartition identifies a set of partitions of a table.
func HivePartition(database, table string, partition map[string]string) Identifier {
	return New(CategoryHiveTablePartition, database+"."+table, partition)
}

// Custom identifies a resource of an arbitrary category.
func Custom(category, name string) Identifier {
	return New(category, name, nil)
}

func (r Identifier) Category() string { return r.category }

func (r Identifier) Name() string { return r.name }

// Partition returns a copy of the partition map, or nil.
func (r Identifier) Partition() map[string]string {
	if r.partition == nil {
		return nil
	}
	return maps.Clone(r.partition)
}

// IsZero reports whether r was never constructed.
func (r Identifier) IsZero() bool {
	return r.category == "" && r.name == ""
}

// Validate reports whether r has a category and a name.
func (r Identifier) Validate() error {
	if r.category == "" {
		return fmt.Errorf("resource %q has no category", r.key)
	}
	if r.name == "" {
		return fmt.Errorf("resource %q has no name", r.key)
	}
	if _, err := path.Match(r.name, ""); err != nil {
		return fmt.Errorf("resource %q: invalid name pattern: %w", r.key, err)
	}
	return nil
}

// Equal reports whether r and o denote exactly the same resource.
func (r Identifier) Equal(o Identifier) bool {
	return r.key == o.key
}

// Contains reports whether every asset described by o is also described by r.
// Categories must be equal, r's name pattern must match o's name and every
// partition key of r must be present in o with a matching value.
func (r Identifier) Contains(o Identifier) bool {
	if r.category != o.category {
		return false
	}
	if !match(r.name, o.name) {
		return false
	}
	for k, v := range r.partition {
		ov, ok := o.partition[k]
		if !ok {
			return false
		}
		if v != Wildcard && !match(v, ov) {
			return false
		}
	}
	return true
}

// Intersects reports whether either resource contains the other. A
// requirement is satisfied by a provision when they intersect.
func (r Identifier) Intersects(o Identifier) bool {
	return r.Contains(o) || o.Contains(r)
}

// Key returns the canonical form category:name[k=v,...] with sorted keys.
func (r Identifier) Key() string { return r.key }

func (r Identifier) String() string { return r.key }

// MarshalText implements encoding.TextMarshaler.
func (r Identifier) MarshalText() ([]byte, error) {
	return []byte(r.key), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Identifier) UnmarshalText(text []byte) error {
	id, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = id
	return nil
}

func (r Identifier) buildKey() string {
	var b strings.Builder
	b.WriteString(r.category)
	b.WriteByte(':')
	b.WriteString(r.name)
	if len(r.partition) > 0 {
		b.WriteByte('[')
		for i, k := range slices.Sorted(maps.Keys(r.partition)) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(r.partition[k])
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Parse parses the canonical form produced by Key.
func Parse(s string) (Identifier, error) {
	category, rest, ok := strings.Cut(s, ":")
	if !ok || category == "" {
		return Identifier{}, fmt.Errorf("invalid resource %q: expected <category>:<name>", s)
	}
	name, partition := splitPartition(rest)
	id := New(category, name, partition)
	if err := id.Validate(); err != nil {
		return Identifier{}, err
	}
	return id, nil
}

// splitPartition separates a trailing [k=v,...] block from the name. A
// bracket expression that is not a list of assignments is part of the name
// (it may be a glob character class).
func splitPartition(s string) (string, map[string]string) {
	if !strings.HasSuffix(s, "]") {
		return s, nil
	}
	open := strings.LastIndexByte(s, '[')
	if open < 0 {
		return s, nil
	}
	inner := s[open+1 : len(s)-1]
	if inner == "" {
		return s, nil
	}
	partition := make(map[string]string)
	for _, part := range strings.Split(inner, ",") {
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return s, nil
		}
		partition[k] = strings.TrimSpace(v)
	}
	return s[:open], partition
}

func match(pattern, name string) bool {
	if pattern == name {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
