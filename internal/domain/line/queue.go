package line

// Queue is a doubly-linked FIFO of *Line with O(1) append, pop-front,
// pop-back and merge. It caches a member count and a cached length
// defined as the sum over all members of (len(Bytes) + byteCost).
type Queue struct {
	head, tail *Line
	count      int
	length     int64
	nextSeq    uint64
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue { return &Queue{} }

// Count returns the number of lines currently in the queue.
func (q *Queue) Count() int { return q.count }

// Length returns the cached byte length of the queue.
func (q *Queue) Length() int64 { return q.length }

// Empty reports whether the queue holds no lines.
func (q *Queue) Empty() bool { return q.head == nil }

// Append adds l to the tail of the queue. l must not already be
// resident in any queue.
func (q *Queue) Append(l *Line) {
	l.next = nil
	q.nextSeq++
	l.Seq = q.nextSeq

	if q.head == nil {
		l.prev = nil
		q.head = l
	} else {
		q.tail.next = l
		l.prev = q.tail
	}
	q.tail = l

	q.count++
	q.length += int64(l.Len()) + byteCost
}

// Prepend adds l to the head of the queue.
func (q *Queue) Prepend(l *Line) {
	l.prev = nil
	if q.head == nil {
		l.next = nil
		q.tail = l
	} else {
		q.head.prev = l
		l.next = q.head
	}
	q.head = l

	q.count++
	q.length += int64(l.Len()) + byteCost
}

// PopFront removes and returns the line at the head of the queue, or
// nil if the queue is empty.
func (q *Queue) PopFront() *Line {
	l := q.head
	if l == nil {
		return nil
	}

	q.head = l.next
	if q.head == nil {
		q.tail = nil
	} else {
		q.head.prev = nil
	}

	q.count--
	q.length -= int64(l.Len()) + byteCost

	l.next, l.prev = nil, nil
	return l
}

// PopBack removes and returns the line at the tail of the queue, or
// nil if the queue is empty.
func (q *Queue) PopBack() *Line {
	l := q.tail
	if l == nil {
		return nil
	}

	q.tail = l.prev
	if q.tail == nil {
		q.head = nil
	} else {
		q.tail.next = nil
	}

	q.count--
	q.length -= int64(l.Len()) + byteCost

	l.next, l.prev = nil, nil
	return l
}

// Peek returns the line at the head of the queue without removing it,
// or nil if the queue is empty.
func (q *Queue) Peek() *Line { return q.head }

// PeekBack returns the line at the tail of the queue without removing
// it, or nil if the queue is empty.
func (q *Queue) PeekBack() *Line { return q.tail }

// Clear destroys all lines in the queue, releasing references so the
// garbage collector can reclaim them.
func (q *Queue) Clear() {
	q.head = nil
	q.tail = nil
	q.count = 0
	q.length = 0
}

// Merge drains src into the tail of dst, in order, leaving src empty.
// O(1): only the boundary pointers and cached totals are touched, no
// line bodies are copied.
func Merge(dst, src *Queue) {
	if src.head == nil {
		return
	}

	if dst.head == nil {
		dst.head = src.head
		dst.tail = src.tail
	} else {
		dst.tail.next = src.head
		src.head.prev = dst.tail
		dst.tail = src.tail
	}

	dst.count += src.count
	dst.length += src.length
	if src.nextSeq > dst.nextSeq {
		dst.nextSeq = src.nextSeq
	}

	src.head, src.tail = nil, nil
	src.count, src.length = 0, 0
}

// Each calls fn for every line in the queue, head to tail. fn must not
// mutate the queue.
func (q *Queue) Each(fn func(*Line)) {
	for l := q.head; l != nil; l = l.next {
		fn(l)
	}
}

// EachReverse calls fn for every line in the queue, tail to head. fn
// must not mutate the queue. Returning false from fn stops iteration
// early, mirroring the history scan's backward walk in the recall
// subsystem.
func (q *Queue) EachReverse(fn func(*Line) bool) {
	for l := q.tail; l != nil; l = l.prev {
		if !fn(l) {
			return
		}
	}
}

// TrimFront pops lines from the front of the queue until its cached
// length is at or below cap, or the queue is empty. It returns the
// number of lines dropped.
func (q *Queue) TrimFront(capBytes int64) int {
	dropped := 0
	for q.length > capBytes && q.head != nil {
		q.PopFront()
		dropped++
	}
	return dropped
}
