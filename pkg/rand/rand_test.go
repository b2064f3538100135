package rand

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntnBounds(t *testing.T) {
	r := New(42)
	seen := make(map[int]bool)
	for i := 0; i < 5000; i++ {
		v := r.Intn(31)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 31)
		seen[v] = true
	}
	assert.Len(t, seen, 31)
}

func TestFloat64Bounds(t *testing.T) {
	r := New(7)
	for i := 0; i < 5000; i++ {
		f := r.Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	a, b := New(1234), New(1234)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
	}
}

func TestConcurrentUse(t *testing.T) {
	r := New(99)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = r.Intn(10)
				_ = r.Float64()
			}
		}()
	}
	wg.Wait()
}

func TestIntnPanicsOnNonPositive(t *testing.T) {
	assert.Panics(t, func() { New(1).Intn(0) })
}
