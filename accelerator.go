package rayknn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/internal/bvh"
	"github.com/hupe1980/rayknn/internal/queue"
	"github.com/hupe1980/rayknn/resource"
)

const pointSize = int64(12)

// pointIndex is an immutable built point set.
type pointIndex struct {
	points []geom.Vec3
	tree   *bvh.Tree
	epoch  uint64
	bytes  int64
}

// Accelerator answers k-nearest-neighbor queries over a point set.
//
// A built accelerator is read-only and serves concurrent queries, each with
// its own QueryCache. SetPoints is exclusive: it fails with
// ErrConcurrentRebuild instead of waiting for in-flight queries.
type Accelerator struct {
	opts options

	index    atomic.Pointer[pointIndex]
	epoch    atomic.Uint64
	inFlight atomic.Int64
	building atomic.Bool
	released atomic.Bool
}

// NewAccelerator creates an accelerator without points. Queries fail with
// ErrNotBuilt until SetPoints succeeds.
func NewAccelerator(optFns ...Option) *Accelerator {
	o := applyOptions(optFns)
	o.logger = o.logger.WithComponent("knn")
	return &Accelerator{opts: o}
}

// SetPoints replaces the point set. The points are copied; the primitive id of
// a point is its index in points. The previous index is dropped first, so a
// failed build leaves the accelerator unbuilt.
func (a *Accelerator) SetPoints(ctx context.Context, points []geom.Vec3) error {
	if a.released.Load() {
		return ErrReleased
	}
	if !a.building.CompareAndSwap(false, true) {
		return ErrConcurrentRebuild
	}
	defer a.building.Store(false)

	if a.inFlight.Load() > 0 {
		return ErrConcurrentRebuild
	}

	for i, p := range points {
		if !p.IsFinite() {
			return fmt.Errorf("%w: point %d", ErrInvalidPoint, i)
		}
	}
	if uint64(len(points)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d points", ErrTooManyPrimitives, len(points))
	}

	epoch := a.epoch.Add(1)
	if old := a.index.Swap(nil); old != nil {
		a.opts.resources.ReleaseMemory(old.bytes)
	}

	start := time.Now()
	idx, err := a.build(ctx, points, epoch)
	elapsed := time.Since(start)

	a.opts.metricsCollector.RecordBuild(len(points), elapsed, err)
	if err != nil {
		a.opts.logger.LogBuild(ctx, len(points), 0, elapsed, err)
		a.opts.report(buildErrorCode(err), err.Error())
		return err
	}
	a.opts.logger.LogBuild(ctx, len(points), idx.bytes, elapsed, nil)

	a.index.Store(idx)
	return nil
}

func (a *Accelerator) build(ctx context.Context, points []geom.Vec3, epoch uint64) (*pointIndex, error) {
	n := len(points)
	reserved := int64(n)*pointSize + bvh.EstimateMemory(n)
	if err := a.opts.resources.AcquireMemory(reserved); err != nil {
		return nil, &ErrBuild{Primitives: n, cause: err}
	}

	pts := make([]geom.Vec3, n)
	copy(pts, points)

	tree, err := bvh.Build(ctx, n, func(i int) geom.AABB {
		return geom.PointAABB(pts[i])
	}, a.opts.buildOptions())
	if err != nil {
		a.opts.resources.ReleaseMemory(reserved)
		return nil, &ErrBuild{Primitives: n, cause: err}
	}

	// Trim the reservation to what the tree actually holds.
	used := int64(n)*pointSize + tree.MemoryFootprint()
	if used < reserved {
		a.opts.resources.ReleaseMemory(reserved - used)
	} else {
		used = reserved
	}

	return &pointIndex{points: pts, tree: tree, epoch: epoch, bytes: used}, nil
}

func buildErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, resource.ErrMemoryLimitExceeded):
		return ErrorOutOfMemory
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCanceled
	case errors.Is(err, ErrTooManyPrimitives):
		return ErrorInvalidArgument
	default:
		return ErrorUnknown
	}
}

// Epoch returns the number of SetPoints calls so far.
func (a *Accelerator) Epoch() uint64 { return a.epoch.Load() }

// Built reports whether the accelerator holds an index.
func (a *Accelerator) Built() bool { return a.index.Load() != nil }

// Points returns the indexed points. The slice must not be modified.
func (a *Accelerator) Points() []geom.Vec3 {
	if idx := a.index.Load(); idx != nil {
		return idx.points
	}
	return nil
}

// Len returns the number of indexed points.
func (a *Accelerator) Len() int { return len(a.Points()) }

// Bounds returns the bounding box of the indexed points.
func (a *Accelerator) Bounds() geom.AABB {
	if idx := a.index.Load(); idx != nil {
		return idx.tree.Bounds()
	}
	return geom.EmptyAABB()
}

// Release drops the index and invalidates the accelerator.
func (a *Accelerator) Release() error {
	if !a.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	if old := a.index.Swap(nil); old != nil {
		a.opts.resources.ReleaseMemory(old.bytes)
	}
	return nil
}

// KnnQuery finds the k points nearest to pos that lie strictly within radius
// and stores them in cache. A radius of +Inf searches the whole set; k == 0
// returns no neighbors.
func (a *Accelerator) KnnQuery(pos geom.Vec3, radius float32, k int, cache *QueryCache) (QueryResult, error) {
	return a.KnnQueryFiltered(pos, radius, k, cache, nil)
}

// KnnQueryFiltered is KnnQuery restricted to the point ids in allow. A nil
// allow-list admits every point.
func (a *Accelerator) KnnQueryFiltered(pos geom.Vec3, radius float32, k int, cache *QueryCache, allow *roaring.Bitmap) (QueryResult, error) {
	start := time.Now()
	res, err := a.query(pos, radius, k, cache, allow)
	a.opts.metricsCollector.RecordQuery(k, res.Count, time.Since(start), err)
	if err != nil {
		a.opts.logger.LogQuery(context.Background(), k, 0, radius, err)
	}
	return res, err
}

func (a *Accelerator) query(pos geom.Vec3, radius float32, k int, cache *QueryCache, allow *roaring.Bitmap) (QueryResult, error) {
	a.inFlight.Add(1)
	defer a.inFlight.Add(-1)

	switch {
	case a.released.Load():
		return QueryResult{}, ErrReleased
	case a.building.Load():
		return QueryResult{}, ErrConcurrentRebuild
	case cache == nil:
		return QueryResult{}, fmt.Errorf("%w: nil query cache", ErrReleased)
	case k < 0:
		return QueryResult{}, ErrInvalidK
	case radius != radius || radius < 0:
		return QueryResult{}, ErrInvalidRadius
	case !pos.IsFinite():
		return QueryResult{}, ErrInvalidPoint
	}

	idx := a.index.Load()
	if idx == nil {
		return QueryResult{}, ErrNotBuilt
	}

	if err := cache.acquire(); err != nil {
		return QueryResult{}, err
	}
	defer cache.release()

	q := cache.q
	q.Reset(k)
	cache.epoch = idx.epoch

	res := QueryResult{Radius: radius, Epoch: idx.epoch}
	if k == 0 {
		return res, nil
	}

	search(idx, q, pos, radius, allow)

	res.Count = q.Len()
	if q.Full() {
		m, _ := q.Max()
		res.Radius = m.Distance
	}
	return res, nil
}

// search runs the bounded traversal. Every candidate is re-checked against
// the current radius because the tree may still visit leaves scheduled
// before the radius shrank.
func search(idx *pointIndex, q *queue.Bounded, pos geom.Vec3, radius float32, allow *roaring.Bitmap) {
	pts := idx.points
	pq := bvh.PointQuery{Center: pos, Radius: radius}

	idx.tree.PointQuery(&pq, func(pq *bvh.PointQuery, id uint32) bool {
		if allow != nil && !allow.Contains(id) {
			return false
		}

		d := geom.Distance(pq.Center, pts[id])
		if d > pq.Radius {
			return false
		}
		if d == pq.Radius {
			// Only a full queue can take a tie at its radius, and only from
			// a lower id.
			m, ok := q.Max()
			if !q.Full() || !ok || id >= m.ID {
				return false
			}
		}

		ok, r := q.TryAccept(queue.Item{ID: id, Distance: d}, pq.Radius)
		if ok && r < pq.Radius {
			pq.Radius = r
			return true
		}
		return false
	})
}
