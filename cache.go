package rayknn

import (
	"sync/atomic"

	"github.com/hupe1980/rayknn/internal/queue"
)

// Neighbor is a k-NN result: the index of a point in the array passed to
// SetPoints and its Euclidean distance to the query position.
type Neighbor struct {
	ID       uint32
	Distance float32
}

// QueryResult summarizes a k-NN query.
type QueryResult struct {
	// Count is the number of neighbors found, at most k.
	Count int

	// Radius is the distance of the farthest neighbor if k neighbors were
	// found, otherwise the radius the query was issued with.
	Radius float32

	// Epoch identifies the point set the neighbors index into.
	Epoch uint64
}

// QueryCache holds the scratch state of one query at a time. Results stay
// readable until the cache serves its next query.
//
// A cache may be reused across accelerators and goroutines, but not by two
// queries at once; that misuse fails with ErrCacheBusy.
type QueryCache struct {
	q         *queue.Bounded
	epoch     uint64
	items     []queue.Item
	neighbors []Neighbor

	busy     atomic.Bool
	released atomic.Bool
}

// NewQueryCache creates a cache sized for k up to capacityHint. Larger k grow
// the cache on demand.
func NewQueryCache(capacityHint int) *QueryCache {
	return &QueryCache{
		q: queue.NewBounded(max(capacityHint, 0)),
	}
}

// Release invalidates the cache.
func (c *QueryCache) Release() error {
	if c.busy.Load() {
		return ErrCacheBusy
	}
	if !c.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	c.q = nil
	c.items = nil
	c.neighbors = nil
	return nil
}

// acquire marks the cache busy for a query.
func (c *QueryCache) acquire() error {
	if c.released.Load() {
		return ErrReleased
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrCacheBusy
	}
	// Release may have won the race.
	if c.released.Load() {
		c.busy.Store(false)
		return ErrReleased
	}
	return nil
}

func (c *QueryCache) release() { c.busy.Store(false) }

// Len returns the number of neighbors of the last query.
func (c *QueryCache) Len() int {
	if c.q == nil {
		return 0
	}
	return c.q.Len()
}

// Epoch returns the accelerator epoch of the last query.
func (c *QueryCache) Epoch() uint64 { return c.epoch }

// Neighbors returns the neighbors of the last query in no particular order.
// The slice is reused by the next call.
func (c *QueryCache) Neighbors() []Neighbor {
	if c.q == nil {
		return nil
	}
	c.neighbors = c.neighbors[:0]
	for _, it := range c.q.Items() {
		c.neighbors = append(c.neighbors, Neighbor(it))
	}
	return c.neighbors
}

// Sorted returns the neighbors of the last query by ascending distance, ties
// by ascending id. The slice is reused by the next call.
func (c *QueryCache) Sorted() []Neighbor {
	if c.q == nil {
		return nil
	}
	c.items = c.q.AppendSorted(c.items[:0])
	c.neighbors = c.neighbors[:0]
	for _, it := range c.items {
		c.neighbors = append(c.neighbors, Neighbor(it))
	}
	return c.neighbors
}

// AppendSorted appends the sorted neighbors of the last query to dst.
func (c *QueryCache) AppendSorted(dst []Neighbor) []Neighbor {
	return append(dst, c.Sorted()...)
}
