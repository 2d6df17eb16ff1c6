// Package lazy provides values computed once on first access.
package lazy

import "sync"

// Cell holds a value produced by a function on first access. Concurrent
// callers block until the first computation finishes and all observe the
// same result, including its error.
type Cell[T any] struct {
	once  sync.Once
	fn    func() (T, error)
	value T
	err   error
}

// New returns a cell backed by fn.
func New[T any](fn func() (T, error)) *Cell[T] {
	return &Cell[T]{fn: fn}
}

// Of returns a cell backed by a function that cannot fail.
func Of[T any](fn func() T) *Cell[T] {
	return New(func() (T, error) { return fn(), nil })
}

// Get computes the value on the first call and returns it on every call.
func (c *Cell[T]) Get() (T, error) {
	c.once.Do(func() {
		if c.fn != nil {
			c.value, c.err = c.fn()
		}
		c.fn = nil
	})
	return c.value, c.err
}

// MustGet is Get for cells that cannot fail. It panics on error.
func (c *Cell[T]) MustGet() T {
	v, err := c.Get()
	if err != nil {
		panic(err)
	}
	return v
}
