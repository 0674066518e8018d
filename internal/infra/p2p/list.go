package p2p

// Handle addresses one element of a List. Handles are generation-tagged: once
// an element is removed, every handle to it goes stale even if its slot is
// reused. The zero Handle is never valid.
type Handle struct {
	index int
	gen   uint32
}

// Valid reports whether h was ever issued by a List.
func (h Handle) Valid() bool { return h.gen != 0 }

type slot[T any] struct {
	value T
	gen   uint32
	used  bool
	prev  int
	next  int
}

// List is an insertion-ordered, doubly linked list stored in an arena.
// PushBack and Remove are O(1); removed slots are recycled through a free list.
// List is not safe for concurrent use.
type List[T any] struct {
	slots []slot[T]
	free  []int
	head  int
	tail  int
	size  int
}

// NewList creates an empty list.
func NewList[T any]() *List[T] {
	return &List[T]{head: -1, tail: -1}
}

// Len returns the number of live elements.
func (l *List[T]) Len() int { return l.size }

// PushBack appends v and returns its handle.
func (l *List[T]) PushBack(v T) Handle {
	var idx int
	if n := len(l.free); n > 0 {
		idx = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		l.slots = append(l.slots, slot[T]{})
		idx = len(l.slots) - 1
	}

	s := &l.slots[idx]
	if s.gen == 0 {
		s.gen = 1
	}
	s.value = v
	s.used = true
	s.prev = l.tail
	s.next = -1

	if l.tail >= 0 {
		l.slots[l.tail].next = idx
	} else {
		l.head = idx
	}
	l.tail = idx
	l.size++

	return Handle{index: idx, gen: s.gen}
}

// Contains reports whether h refers to a live element.
func (l *List[T]) Contains(h Handle) bool {
	if h.gen == 0 || h.index < 0 || h.index >= len(l.slots) {
		return false
	}
	s := &l.slots[h.index]
	return s.used && s.gen == h.gen
}

// Get returns the element behind h.
func (l *List[T]) Get(h Handle) (T, bool) {
	if !l.Contains(h) {
		var zero T
		return zero, false
	}
	return l.slots[h.index].value, true
}

// Remove unlinks the element behind h. It returns false for stale handles.
func (l *List[T]) Remove(h Handle) (T, bool) {
	var zero T
	if !l.Contains(h) {
		return zero, false
	}

	s := &l.slots[h.index]
	v := s.value

	if s.prev >= 0 {
		l.slots[s.prev].next = s.next
	} else {
		l.head = s.next
	}
	if s.next >= 0 {
		l.slots[s.next].prev = s.prev
	} else {
		l.tail = s.prev
	}

	s.value = zero
	s.used = false
	s.prev, s.next = -1, -1
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}

	l.free = append(l.free, h.index)
	l.size--
	return v, true
}

// Front returns the oldest element.
func (l *List[T]) Front() (Handle, bool) {
	return l.handleAt(l.head)
}

// Back returns the newest element.
func (l *List[T]) Back() (Handle, bool) {
	return l.handleAt(l.tail)
}

// Next returns the element after h. Callers that may remove h while
// iterating must fetch Next before removing.
func (l *List[T]) Next(h Handle) (Handle, bool) {
	if !l.Contains(h) {
		return Handle{}, false
	}
	return l.handleAt(l.slots[h.index].next)
}

// Prev returns the element before h.
func (l *List[T]) Prev(h Handle) (Handle, bool) {
	if !l.Contains(h) {
		return Handle{}, false
	}
	return l.handleAt(l.slots[h.index].prev)
}

// Values returns the elements in insertion order.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.size)
	for i := l.head; i >= 0; i = l.slots[i].next {
		out = append(out, l.slots[i].value)
	}
	return out
}

func (l *List[T]) handleAt(idx int) (Handle, bool) {
	if idx < 0 {
		return Handle{}, false
	}
	return Handle{index: idx, gen: l.slots[idx].gen}, true
}
