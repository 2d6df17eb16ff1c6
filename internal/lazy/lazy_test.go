package lazy

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellComputesOnce(t *testing.T) {
	var calls atomic.Int32
	c := New(func() (int, error) {
		calls.Add(1)
		return 42, nil
	})

	assert.Zero(t, calls.Load(), "nothing is computed before the first Get")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get()
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCellCachesError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	c := New(func() (string, error) {
		calls++
		return "", boom
	})

	_, err := c.Get()
	require.ErrorIs(t, err, boom)
	_, err = c.Get()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Panics(t, func() { c.MustGet() })
}

func TestOf(t *testing.T) {
	c := Of(func() []string { return []string{"a"} })
	assert.Equal(t, []string{"a"}, c.MustGet())
}
