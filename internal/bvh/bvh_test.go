package bvh

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/resource"
)

func randomPoints(n int, seed int64) []geom.Vec3 {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]geom.Vec3, n)
	for i := range pts {
		pts[i] = geom.V(rng.Float32()*100, rng.Float32()*100, rng.Float32()*100)
	}
	return pts
}

func pointTree(t *testing.T, pts []geom.Vec3, optFns ...func(o *Options)) *Tree {
	t.Helper()
	tree, err := Build(context.Background(), len(pts), func(i int) geom.AABB {
		return geom.PointAABB(pts[i])
	}, optFns...)
	require.NoError(t, err)
	return tree
}

func TestBuild_Empty(t *testing.T) {
	tree := pointTree(t, nil)

	assert.Equal(t, 0, tree.Len())
	assert.True(t, tree.Bounds().IsEmpty())
	assert.Equal(t, Stats{}, tree.Stats())

	called := false
	tree.PointQuery(&PointQuery{Radius: float32(math.Inf(1))}, func(*PointQuery, uint32) bool {
		called = true
		return false
	})
	assert.False(t, called)
}

func TestBuild_EveryPrimitiveInExactlyOneLeaf(t *testing.T) {
	pts := randomPoints(5000, 1)
	tree := pointTree(t, pts)

	seen := make([]int, len(pts))
	tree.PointQuery(&PointQuery{Radius: float32(math.Inf(1))}, func(_ *PointQuery, id uint32) bool {
		seen[id]++
		return false
	})
	for id, n := range seen {
		assert.Equal(t, 1, n, "primitive %d", id)
	}

	s := tree.Stats()
	assert.Equal(t, 2*s.Leaves-1, s.Nodes)
	assert.LessOrEqual(t, s.MaxLeaf, maxLeafSize)
	assert.Less(t, s.MaxDepth, 64)
	assert.Positive(t, tree.MemoryFootprint())
	assert.LessOrEqual(t, tree.MemoryFootprint(), EstimateMemory(len(pts)))
}

func TestBuild_DuplicatePoints(t *testing.T) {
	pts := make([]geom.Vec3, 1000)
	for i := range pts {
		pts[i] = geom.V(1, 2, 3)
	}
	tree := pointTree(t, pts)

	s := tree.Stats()
	assert.LessOrEqual(t, s.MaxLeaf, maxLeafSize)
	assert.Less(t, s.MaxDepth, 20)

	count := 0
	tree.PointQuery(&PointQuery{Center: geom.V(1, 2, 3), Radius: 0.5}, func(*PointQuery, uint32) bool {
		count++
		return false
	})
	assert.Equal(t, len(pts), count)
}

func TestBuild_Parallel(t *testing.T) {
	pts := randomPoints(3000, 2)
	rc := resource.NewController(resource.Config{MaxBuildWorkers: 4})

	seq := pointTree(t, pts)
	par := pointTree(t, pts, func(o *Options) {
		o.ParallelThreshold = 100
		o.Resources = rc
	})

	assert.Equal(t, seq.Bounds(), par.Bounds())
	assert.Equal(t, seq.Stats(), par.Stats())
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pts := randomPoints(100, 3)
	_, err := Build(ctx, len(pts), func(i int) geom.AABB { return geom.PointAABB(pts[i]) })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPointQuery_ShrinkingRadiusFindsNearest(t *testing.T) {
	pts := randomPoints(2000, 4)
	tree := pointTree(t, pts)
	center := geom.V(50, 50, 50)

	q := &PointQuery{Center: center, Radius: float32(math.Inf(1))}
	best := uint32(math.MaxUint32)
	visited := 0
	tree.PointQuery(q, func(q *PointQuery, id uint32) bool {
		visited++
		d := geom.Distance(q.Center, pts[id])
		if d < q.Radius {
			q.Radius = d
			best = id
			return true
		}
		return false
	})

	want := 0
	for i := range pts {
		if geom.Distance(center, pts[i]) < geom.Distance(center, pts[want]) {
			want = i
		}
	}
	assert.Equal(t, uint32(want), best)
	assert.Less(t, visited, len(pts)/4, "pruning should skip most of the tree")
}

func TestPointQuery_RadiusCoversCandidates(t *testing.T) {
	pts := randomPoints(1000, 5)
	tree := pointTree(t, pts)
	center := geom.V(20, 30, 40)
	const radius = 15

	var got []uint32
	tree.PointQuery(&PointQuery{Center: center, Radius: radius}, func(_ *PointQuery, id uint32) bool {
		if geom.Distance(center, pts[id]) <= radius {
			got = append(got, id)
		}
		return false
	})

	var want []uint32
	for i, p := range pts {
		if geom.Distance(center, p) <= radius {
			want = append(want, uint32(i))
		}
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, want, got)
}

// boxes on the x axis, one unit wide, centered at 0, 3, 6, ...
func boxRow(n int) []geom.AABB {
	boxes := make([]geom.AABB, n)
	for i := range boxes {
		c := float32(3 * i)
		boxes[i] = geom.AABB{Min: geom.V(c-0.5, -0.5, -0.5), Max: geom.V(c+0.5, 0.5, 0.5)}
	}
	return boxes
}

func boxHit(boxes []geom.AABB, ray geom.Ray) RayFunc {
	inv := ray.InvDirection()
	return func(id uint32, tMin, tMax float32) (float32, bool) {
		return boxes[id].IntersectRay(ray.Origin, inv, tMin, tMax)
	}
}

func TestIntersect_Closest(t *testing.T) {
	boxes := boxRow(50)
	tree, err := Build(context.Background(), len(boxes), func(i int) geom.AABB { return boxes[i] })
	require.NoError(t, err)

	ray := geom.Ray{Origin: geom.V(-10, 0, 0), Direction: geom.V(1, 0, 0)}
	id, d, ok := tree.Intersect(ray, 0, float32(math.Inf(1)), boxHit(boxes, ray))
	require.True(t, ok)
	assert.Equal(t, uint32(0), id)
	assert.InDelta(t, 9.5, d, 1e-5)

	back := geom.Ray{Origin: geom.V(1000, 0, 0), Direction: geom.V(-1, 0, 0)}
	id, d, ok = tree.Intersect(back, 0, float32(math.Inf(1)), boxHit(boxes, back))
	require.True(t, ok)
	assert.Equal(t, uint32(49), id)
	assert.InDelta(t, 1000-147-0.5, d, 1e-3)

	// Starting past the first box.
	id, _, ok = tree.Intersect(ray, 11, float32(math.Inf(1)), boxHit(boxes, ray))
	require.True(t, ok)
	assert.Equal(t, uint32(1), id)
}

func TestIntersect_Miss(t *testing.T) {
	boxes := boxRow(10)
	tree, err := Build(context.Background(), len(boxes), func(i int) geom.AABB { return boxes[i] })
	require.NoError(t, err)

	up := geom.Ray{Origin: geom.V(1.5, 0, 0), Direction: geom.V(0, 1, 0)}
	_, _, ok := tree.Intersect(up, 0, float32(math.Inf(1)), boxHit(boxes, up))
	assert.False(t, ok)

	away := geom.Ray{Origin: geom.V(-10, 0, 0), Direction: geom.V(-1, 0, 0)}
	_, _, ok = tree.Intersect(away, 0, float32(math.Inf(1)), boxHit(boxes, away))
	assert.False(t, ok)
}

func TestOccluded(t *testing.T) {
	boxes := boxRow(10)
	tree, err := Build(context.Background(), len(boxes), func(i int) geom.AABB { return boxes[i] })
	require.NoError(t, err)

	ray := geom.Ray{Origin: geom.V(-10, 0, 0), Direction: geom.V(1, 0, 0)}
	assert.True(t, tree.Occluded(ray, 0, 100, boxHit(boxes, ray)))
	assert.False(t, tree.Occluded(ray, 0, 5, boxHit(boxes, ray)))
	assert.False(t, tree.Occluded(ray, 5, 1, boxHit(boxes, ray)))
}
