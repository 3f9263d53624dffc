package mill

// Links is the intrusive linkage embedded in every list-member type
// (here: *task for the ready queue, *sendClause[T]/*recvClause[T] for a
// channel endpoint's waiter queues). It is generalized from the stdlib container/list
// design (see DESIGN.md) to an embeddable generic field so membership
// costs no extra allocation and erase is O(1) given a pointer to the
// element, with no interface-boxing on insert.
//
// T is instantiated as the pointer type itself (e.g. Links[*task]),
// which keeps the linker constraint below trivial to satisfy with a
// pointer-receiver method.
type Links[T any] struct {
	prev, next T
	list       *List[T]
}

// linker is implemented by pointer types that embed a Links[T] field
// and expose it via a pointer-receiver accessor method. comparable is
// required so the list can use a nil/zero sentinel internally.
type linker[T any] interface {
	comparable
	link() *Links[T]
}

// List is an intrusive doubly-linked list of T (T is itself a pointer
// type implementing linker[T]). The zero value is an empty, ready to
// use list.
type List[T linker[T]] struct {
	head, tail T
	length     int
}

// Len returns the number of elements currently linked into the list.
func (l *List[T]) Len() int { return l.length }

// Front returns the first element, or the zero value if empty.
func (l *List[T]) Front() T { return l.head }

// Empty reports whether the list has no elements.
func (l *List[T]) Empty() bool { return l.length == 0 }

// PushBack appends v to the tail of the list. v must not already be
// linked into any list.
func (l *List[T]) PushBack(v T) {
	lk := v.link()
	if lk.list != nil {
		panic("mill: list element already linked")
	}
	lk.list = l
	lk.prev = l.tail
	var zero T
	lk.next = zero
	if l.tail != zero {
		l.tail.link().next = v
	} else {
		l.head = v
	}
	l.tail = v
	l.length++
}

// PopFront removes and returns the head element, or the zero value if
// the list is empty.
func (l *List[T]) PopFront() T {
	var zero T
	v := l.head
	if v == zero {
		return zero
	}
	l.Erase(v)
	return v
}

// Erase removes v from l. It is a no-op if v is not currently linked
// into l.
func (l *List[T]) Erase(v T) {
	var zero T
	if v == zero {
		return
	}
	lk := v.link()
	if lk.list != l {
		return
	}
	if lk.prev != zero {
		lk.prev.link().next = lk.next
	} else {
		l.head = lk.next
	}
	if lk.next != zero {
		lk.next.link().prev = lk.prev
	} else {
		l.tail = lk.prev
	}
	lk.prev, lk.next, lk.list = zero, zero, nil
	l.length--
}

// Linked reports whether v is currently linked into any list.
func Linked[T linker[T]](v T) bool {
	return v.link().list != nil
}

// ForEach visits elements from head to tail. fn may erase the current
// element from l but must not otherwise mutate l's membership ahead of
// the cursor.
func (l *List[T]) ForEach(fn func(T)) {
	var zero T
	for n := l.head; n != zero; {
		next := n.link().next
		fn(n)
		n = next
	}
}
