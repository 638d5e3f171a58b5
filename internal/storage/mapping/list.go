package mapping

import "fmt"

const nilIdx = -1

type link struct {
	prev int
	next int
}

func unlinked() link {
	return link{prev: nilIdx, next: nilIdx}
}

// linkOf returns the link a list threads through for the record at idx.
type linkOf func(idx int) *link

// list is a doubly linked list of arena indices. Front is the oldest entry.
type list struct {
	head int
	tail int
	size int
}

func newList() list {
	return list{head: nilIdx, tail: nilIdx}
}

func (l *list) pushBack(idx int, at linkOf) {
	node := at(idx)
	tmp := l.tail
	l.tail = idx
	node.prev = tmp
	node.next = nilIdx

	if tmp != nilIdx {
		at(tmp).next = idx
	}
	if l.head == nilIdx {
		l.head = idx
	}
	l.size++
}

func (l *list) remove(idx int, at linkOf) {
	node := at(idx)
	if l.head == nilIdx || (node.next == nilIdx && node.prev == nilIdx && l.head != idx) {
		panic(fmt.Sprintf("[mapping] [list.remove] index %d is not linked", idx))
	}

	prev := node.prev
	next := node.next
	isHead := prev == nilIdx
	isTail := next == nilIdx

	switch {
	case isHead && isTail:
		// Only one node in the list
		l.head = nilIdx
		l.tail = nilIdx
	case isHead && !isTail:
		// Removing head, next becomes new head
		l.head = next
		at(next).prev = nilIdx
	case !isHead && isTail:
		// Removing tail, prev becomes new tail
		l.tail = prev
		at(prev).next = nilIdx
	case !isHead && !isTail:
		// Removing middle node, connect prev and next
		at(prev).next = next
		at(next).prev = prev
	}

	// Clear the removed node's links
	node.next = nilIdx
	node.prev = nilIdx
	l.size--
}

// walk visits entries front to back until fn returns false. fn may remove
// the entry it is visiting.
func (l *list) walk(at linkOf, fn func(idx int) bool) {
	for cur := l.head; cur != nilIdx; {
		next := at(cur).next
		if !fn(cur) {
			return
		}
		cur = next
	}
}

func (l *list) len() int {
	return l.size
}
