package rayknn

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/internal/bvh"
	"github.com/hupe1980/rayknn/mesh"
)

// primRef locates a triangle in the scene.
type primRef struct {
	mesh uint32
	face uint32
}

// sceneIndex is an immutable committed scene.
type sceneIndex struct {
	meshes []*mesh.TriangleMesh
	prims  []primRef
	tree   *bvh.Tree
	bytes  int64
}

func (s *sceneIndex) triangle(id uint32) (v0, v1, v2 geom.Vec3) {
	ref := s.prims[id]
	return s.meshes[ref.mesh].Triangle(int(ref.face))
}

// Scene is a set of triangle meshes that rays are traced against.
//
// Meshes are added with AddMesh and become visible after Commit. A committed
// scene serves concurrent Trace and IsOccluded calls.
type Scene struct {
	opts  options
	stats rayTracerStats

	mu     sync.Mutex
	meshes []*mesh.TriangleMesh

	index    atomic.Pointer[sceneIndex]
	dirty    atomic.Bool
	released atomic.Bool
}

// NewScene creates an empty scene.
func NewScene(optFns ...Option) *Scene {
	o := applyOptions(optFns)
	o.logger = o.logger.WithComponent("scene")
	return &Scene{opts: o}
}

// AddMesh appends m and returns its id. Ids are assigned sequentially from
// zero. The scene must be committed again before the mesh is traced.
func (s *Scene) AddMesh(m *mesh.TriangleMesh) (uint32, error) {
	if s.released.Load() {
		return 0, ErrReleased
	}
	if m == nil {
		return 0, &mesh.ErrInvalidMesh{Reason: "nil mesh"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if uint64(len(s.meshes)) >= math.MaxUint32 {
		return 0, ErrTooManyPrimitives
	}
	id := uint32(len(s.meshes))
	s.meshes = append(s.meshes, m)
	s.dirty.Store(true)
	return id, nil
}

// NumMeshes returns the number of added meshes.
func (s *Scene) NumMeshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meshes)
}

// Mesh returns the mesh with the given id.
func (s *Scene) Mesh(id uint32) (*mesh.TriangleMesh, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) >= len(s.meshes) {
		return nil, false
	}
	return s.meshes[id], true
}

// Commit builds the acceleration structure over all added meshes.
func (s *Scene) Commit(ctx context.Context) error {
	if s.released.Load() {
		return ErrReleased
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meshes := append([]*mesh.TriangleMesh(nil), s.meshes...)
	var prims []primRef
	for mi, m := range meshes {
		for f := 0; f < m.NumFaces(); f++ {
			prims = append(prims, primRef{mesh: uint32(mi), face: uint32(f)})
		}
	}
	if uint64(len(prims)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d triangles", ErrTooManyPrimitives, len(prims))
	}

	start := time.Now()
	idx, err := s.build(ctx, meshes, prims)
	elapsed := time.Since(start)

	s.opts.metricsCollector.RecordBuild(len(prims), elapsed, err)
	if err != nil {
		s.opts.logger.LogBuild(ctx, len(prims), 0, elapsed, err)
		s.opts.report(buildErrorCode(err), err.Error())
		return err
	}
	s.opts.logger.LogBuild(ctx, len(prims), idx.bytes, elapsed, nil)

	if old := s.index.Swap(idx); old != nil {
		s.opts.resources.ReleaseMemory(old.bytes)
	}
	s.dirty.Store(false)
	return nil
}

func (s *Scene) build(ctx context.Context, meshes []*mesh.TriangleMesh, prims []primRef) (*sceneIndex, error) {
	n := len(prims)
	reserved := bvh.EstimateMemory(n) + int64(n)*8
	if err := s.opts.resources.AcquireMemory(reserved); err != nil {
		return nil, &ErrBuild{Primitives: n, cause: err}
	}

	tree, err := bvh.Build(ctx, n, func(i int) geom.AABB {
		ref := prims[i]
		return meshes[ref.mesh].Bounds(int(ref.face))
	}, s.opts.buildOptions())
	if err != nil {
		s.opts.resources.ReleaseMemory(reserved)
		return nil, &ErrBuild{Primitives: n, cause: err}
	}

	used := tree.MemoryFootprint() + int64(n)*8
	if used < reserved {
		s.opts.resources.ReleaseMemory(reserved - used)
	} else {
		used = reserved
	}

	return &sceneIndex{meshes: meshes, prims: prims, tree: tree, bytes: used}, nil
}

// Release drops the acceleration structure and invalidates the scene.
func (s *Scene) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	if old := s.index.Swap(nil); old != nil {
		s.opts.resources.ReleaseMemory(old.bytes)
	}
	s.mu.Lock()
	s.meshes = nil
	s.mu.Unlock()
	return nil
}

func (s *Scene) committed() (*sceneIndex, error) {
	if s.released.Load() {
		return nil, ErrReleased
	}
	idx := s.index.Load()
	if idx == nil || s.dirty.Load() {
		return nil, ErrNotCommitted
	}
	return idx, nil
}

// Trace returns the closest hit along ray with a distance of at least
// ray.MinDistance. A miss is reported by an invalid Hit, not an error.
func (s *Scene) Trace(ray geom.Ray) (Hit, error) {
	idx, err := s.committed()
	if err != nil {
		s.opts.logger.LogTrace(context.Background(), "trace", err)
		return Hit{}, err
	}

	hit := traceIndex(idx, ray)
	s.stats.notifyRay(hit.Valid())
	s.opts.metricsCollector.RecordTrace(false, hit.Valid())
	return hit, nil
}

func traceIndex(idx *sceneIndex, ray geom.Ray) Hit {
	intersect := func(id uint32, tMin, tMax float32) (float32, bool) {
		v0, v1, v2 := idx.triangle(id)
		t, _, _, ok := geom.IntersectTriangle(ray.Origin, ray.Direction, v0, v1, v2, tMin, tMax)
		return t, ok
	}

	id, _, ok := idx.tree.Intersect(ray, ray.MinDistance, float32(math.Inf(1)), intersect)
	if !ok {
		return Hit{}
	}

	ref := idx.prims[id]
	v0, v1, v2 := idx.triangle(id)
	t, u, v, _ := geom.IntersectTriangle(ray.Origin, ray.Direction, v0, v1, v2, ray.MinDistance, float32(math.Inf(1)))

	return newHit(idx.meshes[ref.mesh], ref.mesh, ref.face, mesh.Barycentric{U: u, V: v}, t)
}

// IsOccluded reports whether anything blocks the shadow ray.
func (s *Scene) IsOccluded(ray ShadowRay) (bool, error) {
	idx, err := s.committed()
	if err != nil {
		s.opts.logger.LogTrace(context.Background(), "occluded", err)
		return false, err
	}

	occluded := occludedIndex(idx, ray)
	s.stats.notifyShadowRay(occluded)
	s.opts.metricsCollector.RecordTrace(true, occluded)
	return occluded, nil
}

func occludedIndex(idx *sceneIndex, sr ShadowRay) bool {
	ray := sr.Ray
	return idx.tree.Occluded(ray, ray.MinDistance, sr.MaxDistance, func(id uint32, tMin, tMax float32) (float32, bool) {
		v0, v1, v2 := idx.triangle(id)
		t, _, _, ok := geom.IntersectTriangle(ray.Origin, ray.Direction, v0, v1, v2, tMin, tMax)
		return t, ok
	})
}

// IsOccludedBetween reports whether the segment between two surface points is
// blocked.
func (s *Scene) IsOccludedBetween(from, to Hit) (bool, error) {
	return s.IsOccluded(MakeShadowRay(from, to))
}

// IsOccludedTo reports whether the segment from a surface point to target is
// blocked.
func (s *Scene) IsOccludedTo(from Hit, target geom.Vec3) (bool, error) {
	return s.IsOccluded(MakeShadowRayTo(from, target))
}

// LeavesScene reports whether a ray from a surface point in direction is
// blocked before it escapes the scene. It returns true if the ray is
// occluded, matching IsOccluded.
func (s *Scene) LeavesScene(from Hit, direction geom.Vec3) (bool, error) {
	return s.IsOccluded(MakeBackgroundShadowRay(from, direction))
}

// Stats returns the ray counters accumulated since the scene was created.
func (s *Scene) Stats() RayTracerStats { return s.stats.snapshot() }

// ResetStats zeroes the ray counters.
func (s *Scene) ResetStats() { s.stats.reset() }
