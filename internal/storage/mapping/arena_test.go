package mapping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArenaAlloc(t *testing.T) {
	a := newArena[int](2)

	i0, g0 := a.alloc()
	i1, g1 := a.alloc()
	i2, _ := a.alloc() // grows past the initial capacity

	assert.Equal(t, []int{0, 1, 2}, []int{i0, i1, i2}, "fresh slots are appended in order")
	assert.Equal(t, uint32(1), g0, "first generation")
	assert.Equal(t, uint32(1), g1)
	assert.Equal(t, 3, a.len())

	*a.at(i1) = 42
	assert.Equal(t, 42, *a.lookup(i1, g1))
}

func TestArenaReuse(t *testing.T) {
	a := newArena[int](0)
	i0, _ := a.alloc()
	i1, _ := a.alloc()
	i2, _ := a.alloc()

	*a.at(i1) = 7
	a.release(i1)
	a.release(i2)
	assert.Equal(t, 1, a.len())

	// Free list is LIFO
	r, g := a.alloc()
	assert.Equal(t, i2, r)
	assert.Equal(t, uint32(2), g, "generation bumps on reuse")

	r, _ = a.alloc()
	assert.Equal(t, i1, r)
	assert.Equal(t, 0, *a.at(r), "reused slot is zeroed")

	r, _ = a.alloc()
	assert.Equal(t, 3, r, "free list exhausted, slab grows")
	_ = i0
}

func TestArenaLookup(t *testing.T) {
	a := newArena[int](0)
	idx, gen := a.alloc()

	assert.NotNil(t, a.lookup(idx, gen))
	assert.Nil(t, a.lookup(idx, gen+1), "wrong generation")
	assert.Nil(t, a.lookup(-1, gen), "negative index")
	assert.Nil(t, a.lookup(5, gen), "index out of range")

	a.release(idx)
	assert.Nil(t, a.lookup(idx, gen), "released slot")

	idx2, gen2 := a.alloc()
	assert.Equal(t, idx, idx2)
	assert.Nil(t, a.lookup(idx, gen), "stale generation after reuse")
	assert.NotNil(t, a.lookup(idx2, gen2))
}

func TestArenaGenerationSkipsZero(t *testing.T) {
	a := newArena[int](0)
	idx, _ := a.alloc()
	a.slots[idx].gen = math.MaxUint32
	a.release(idx)

	_, gen := a.alloc()
	assert.Equal(t, uint32(1), gen, "generation 0 is never handed out")
	assert.Nil(t, a.lookup(0, 0), "zero handle never resolves")
}

func TestArenaEach(t *testing.T) {
	a := newArena[int](0)
	for i := 0; i < 4; i++ {
		idx, _ := a.alloc()
		*a.at(idx) = i * 10
	}
	a.release(1)

	var seen []int
	a.each(func(idx int, v *int) {
		seen = append(seen, *v)
	})
	assert.Equal(t, []int{0, 20, 30}, seen)
}
