// Package queue implements the bounded max-heap used to select the k nearest
// candidates of a query.
package queue

import "slices"

// Item is a neighbor candidate: a primitive id and its distance to the query.
type Item struct {
	ID       uint32
	Distance float32
}

// worse reports whether a ranks behind b. Items are ordered by distance; on
// equal distance the lower id wins, which makes selection deterministic.
func worse(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.ID > b.ID
}

// Bounded is a fixed-capacity max-heap that retains the k best items seen.
//
// The root is the worst retained item; once the heap is full its distance is
// the tightest radius a k-NN traversal still has to search.
//
// Bounded is NOT thread-safe.
type Bounded struct {
	k     int
	items []Item // value-based storage, items[0] is the maximum
}

// NewBounded creates a queue with capacity k. Storage is preallocated.
func NewBounded(k int) *Bounded {
	if k < 0 {
		k = 0
	}
	return &Bounded{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Reset empties the queue and sets a new capacity. The backing array is
// reused and only grows when k exceeds every capacity used so far.
func (q *Bounded) Reset(k int) {
	if k < 0 {
		k = 0
	}
	q.k = k
	if cap(q.items) < k {
		q.items = make([]Item, 0, k)
		return
	}
	q.items = q.items[:0]
}

// Len returns the number of retained items.
func (q *Bounded) Len() int { return len(q.items) }

// Cap returns the capacity k.
func (q *Bounded) Cap() int { return q.k }

// Full reports whether Len() == Cap().
func (q *Bounded) Full() bool { return len(q.items) >= q.k }

// Max returns the worst retained item.
func (q *Bounded) Max() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// TryAccept offers a candidate whose distance the caller has already checked
// against currentRadius.
//
// While the queue is not full every candidate is accepted. Once full, a
// candidate replaces the maximum only if it ranks ahead of it. When an
// acceptance leaves the queue full, the returned radius is the distance of
// the new maximum; otherwise currentRadius is returned unchanged.
func (q *Bounded) TryAccept(item Item, currentRadius float32) (bool, float32) {
	switch {
	case len(q.items) < q.k:
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
	case q.k > 0 && worse(q.items[0], item):
		q.items[0] = item
		q.siftDown(0)
	default:
		return false, currentRadius
	}

	if len(q.items) == q.k {
		return true, q.items[0].Distance
	}
	return true, currentRadius
}

// Items returns the retained items in heap order. The slice is only valid
// until the next mutation of the queue.
func (q *Bounded) Items() []Item { return q.items }

// AppendSorted appends the retained items to dst in ascending order and
// returns the extended slice. The queue is unchanged.
func (q *Bounded) AppendSorted(dst []Item) []Item {
	start := len(dst)
	dst = append(dst, q.items...)
	slices.SortFunc(dst[start:], func(a, b Item) int {
		switch {
		case worse(b, a):
			return -1
		case worse(a, b):
			return 1
		default:
			return 0
		}
	})
	return dst
}

// Pop removes and returns the worst item.
func (q *Bounded) Pop() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}
	root := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return root, true
}

// Drain pops every item, worst first, into dst.
func (q *Bounded) Drain(dst []Item) []Item {
	for {
		it, ok := q.Pop()
		if !ok {
			return dst
		}
		dst = append(dst, it)
	}
}

func (q *Bounded) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !worse(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Bounded) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && worse(q.items[r], q.items[l]) {
			best = r
		}
		if !worse(q.items[best], q.items[i]) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
