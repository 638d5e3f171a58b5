package mapping

type slot[T any] struct {
	val  T
	gen  uint32
	live bool
}

// arena holds fixed-size records in a growable slab. Freed slots are chained
// through nextFree and reused before the slab grows. Every allocation bumps
// the slot generation so handles to a freed slot stop resolving.
type arena[T any] struct {
	slots    []slot[T]
	nextFree []int // Free list for allocation
	freeHead int   // Head of free list
	live     int
}

func newArena[T any](capacity int) arena[T] {
	return arena[T]{
		slots:    make([]slot[T], 0, capacity),
		nextFree: make([]int, 0, capacity),
		freeHead: nilIdx,
	}
}

// alloc returns a zeroed live slot and its generation.
func (a *arena[T]) alloc() (int, uint32) {
	idx := a.allocFromFree()
	if idx == nilIdx {
		a.slots = append(a.slots, slot[T]{})
		a.nextFree = append(a.nextFree, nilIdx)
		idx = len(a.slots) - 1
	}

	s := &a.slots[idx]
	var zero T
	s.val = zero
	s.gen++
	if s.gen == 0 { // generation 0 is reserved for zero handles
		s.gen = 1
	}
	s.live = true
	a.live++
	return idx, s.gen
}

func (a *arena[T]) release(idx int) {
	s := &a.slots[idx]
	var zero T
	s.val = zero
	s.live = false
	a.live--
	a.returnToFree(idx)
}

// lookup resolves idx only if the slot is live and still on generation gen.
func (a *arena[T]) lookup(idx int, gen uint32) *T {
	if idx < 0 || idx >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if !s.live || s.gen != gen {
		return nil
	}
	return &s.val
}

// at is the unchecked accessor used for indices taken from internal links.
func (a *arena[T]) at(idx int) *T {
	return &a.slots[idx].val
}

func (a *arena[T]) each(fn func(idx int, v *T)) {
	for i := range a.slots {
		if a.slots[i].live {
			fn(i, &a.slots[i].val)
		}
	}
}

func (a *arena[T]) len() int {
	return a.live
}

func (a *arena[T]) allocFromFree() int {
	if a.freeHead == nilIdx {
		return nilIdx
	}
	freeIdx := a.freeHead
	a.freeHead = a.nextFree[freeIdx]
	a.nextFree[freeIdx] = nilIdx
	return freeIdx
}

func (a *arena[T]) returnToFree(idx int) {
	a.nextFree[idx] = a.freeHead
	a.freeHead = idx
}
