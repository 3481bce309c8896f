package rayknn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/rayknn/blobstore"
	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/snapshot"
)

const defaultCacheCapacity = 16

// builtSet is the user data matching the points of the current build.
type builtSet[T any] struct {
	userData []T
}

// NearestNeighborSearch collects points with attached user data and answers
// k-NN queries over them.
//
// AddPoint may be called from several goroutines. Once built, any number of
// goroutines may query concurrently; each borrows a pooled QueryCache. Adding,
// building and querying at the same time is not supported: Build fails with
// ErrConcurrentRebuild if it overlaps a query.
type NearestNeighborSearch[T any] struct {
	opts  options
	accel *Accelerator

	mu        sync.Mutex
	positions []geom.Vec3
	userData  []T

	built  atomic.Pointer[builtSet[T]]
	caches sync.Pool
}

// NewNearestNeighborSearch creates an empty search structure.
func NewNearestNeighborSearch[T any](optFns ...Option) *NearestNeighborSearch[T] {
	s := &NearestNeighborSearch[T]{
		opts:  applyOptions(optFns),
		accel: NewAccelerator(optFns...),
	}
	s.caches.New = func() any { return NewQueryCache(defaultCacheCapacity) }
	return s
}

// AddPoint adds a point. Its id is the number of points added before it. The
// structure must be built again before the point can be found.
func (s *NearestNeighborSearch[T]) AddPoint(pos geom.Vec3, userData T) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uint32(len(s.positions))
	s.positions = append(s.positions, pos)
	s.userData = append(s.userData, userData)
	s.built.Store(nil)
	return id
}

// Len returns the number of added points.
func (s *NearestNeighborSearch[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// Build indexes every point added so far.
func (s *NearestNeighborSearch[T]) Build(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.accel.SetPoints(ctx, s.positions); err != nil {
		s.built.Store(nil)
		return err
	}
	s.built.Store(&builtSet[T]{userData: s.userData})
	return nil
}

// Clear removes all points. Queries fail with ErrNotBuilt until the next Build.
func (s *NearestNeighborSearch[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = nil
	s.userData = nil
	s.built.Store(nil)
}

// UserData returns the user data of the point with the given id in the
// current build.
func (s *NearestNeighborSearch[T]) UserData(id uint32) (T, bool) {
	var zero T
	b := s.built.Load()
	if b == nil || int(id) >= len(b.userData) {
		return zero, false
	}
	return b.userData[id], true
}

// Position returns the position of the point with the given id in the
// current build.
func (s *NearestNeighborSearch[T]) Position(id uint32) (geom.Vec3, bool) {
	pts := s.accel.Points()
	if s.built.Load() == nil || int(id) >= len(pts) {
		return geom.Vec3{}, false
	}
	return pts[id], true
}

func (s *NearestNeighborSearch[T]) query(pos geom.Vec3, maxCount int, maxRadius float32, fn func(c *QueryCache, b *builtSet[T], res QueryResult)) (QueryResult, error) {
	b := s.built.Load()
	if b == nil {
		return QueryResult{}, ErrNotBuilt
	}

	c := s.caches.Get().(*QueryCache)
	defer s.caches.Put(c)

	res, err := s.accel.KnnQuery(pos, maxRadius, maxCount, c)
	if err != nil {
		return res, err
	}
	fn(c, b, res)
	return res, nil
}

// QueryNearest returns the user data of the maxCount points nearest to pos
// within maxRadius, closest first, and the radius actually searched.
func (s *NearestNeighborSearch[T]) QueryNearest(pos geom.Vec3, maxCount int, maxRadius float32) ([]T, float32, error) {
	var out []T
	res, err := s.query(pos, maxCount, maxRadius, func(c *QueryCache, b *builtSet[T], _ QueryResult) {
		sorted := c.Sorted()
		if len(sorted) == 0 {
			return
		}
		out = make([]T, len(sorted))
		for i, n := range sorted {
			out[i] = b.userData[n.ID]
		}
	})
	return out, res.Radius, err
}

// QueryNearestSorted returns the maxCount neighbors nearest to pos within
// maxRadius, closest first. Use UserData to resolve their ids.
func (s *NearestNeighborSearch[T]) QueryNearestSorted(pos geom.Vec3, maxCount int, maxRadius float32) ([]Neighbor, QueryResult, error) {
	var out []Neighbor
	res, err := s.query(pos, maxCount, maxRadius, func(c *QueryCache, _ *builtSet[T], _ QueryResult) {
		out = c.AppendSorted(nil)
	})
	return out, res, err
}

// ForAllNearest calls fn for each of the maxCount neighbors nearest to pos
// within maxRadius, in no particular order.
func (s *NearestNeighborSearch[T]) ForAllNearest(pos geom.Vec3, maxCount int, maxRadius float32, fn func(pos geom.Vec3, userData T, distance float32)) error {
	pts := s.accel.Points()
	_, err := s.query(pos, maxCount, maxRadius, func(c *QueryCache, b *builtSet[T], _ QueryResult) {
		for _, n := range c.Neighbors() {
			fn(pts[n.ID], b.userData[n.ID], n.Distance)
		}
	})
	return err
}

// SaveSnapshot writes the built points to store. User data is not persisted.
func (s *NearestNeighborSearch[T]) SaveSnapshot(ctx context.Context, store blobstore.Store, name string, optFns ...func(o *snapshot.Options)) error {
	if s.built.Load() == nil {
		return ErrNotBuilt
	}
	optFns = append([]func(o *snapshot.Options){snapshot.WithResources(s.opts.resources)}, optFns...)
	err := snapshot.SavePoints(ctx, store, name, s.accel.Points(), optFns...)
	s.opts.logger.LogSnapshot(ctx, "save", name, err)
	return err
}

// LoadSnapshot replaces all points with the ones stored under name and builds.
// Every loaded point gets the zero value as user data.
func (s *NearestNeighborSearch[T]) LoadSnapshot(ctx context.Context, store blobstore.Store, name string, optFns ...func(o *snapshot.Options)) error {
	optFns = append([]func(o *snapshot.Options){snapshot.WithResources(s.opts.resources)}, optFns...)
	pts, err := snapshot.LoadPoints(ctx, store, name, optFns...)
	s.opts.logger.LogSnapshot(ctx, "load", name, err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.positions = pts
	s.userData = make([]T, len(pts))
	s.built.Store(nil)
	s.mu.Unlock()

	return s.Build(ctx)
}

// Close releases the accelerator.
func (s *NearestNeighborSearch[T]) Close() error {
	s.built.Store(nil)
	return s.accel.Release()
}
