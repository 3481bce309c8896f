package rayknn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/mesh"
)

func quadMesh(t *testing.T) *mesh.TriangleMesh {
	t.Helper()
	m, err := mesh.New(mesh.Data{
		Vertices: []geom.Vec3{
			geom.V(-1, 0, -1),
			geom.V(1, 0, -1),
			geom.V(1, 0, 1),
			geom.V(-1, 0, 1),
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	})
	require.NoError(t, err)
	return m
}

func quadScene(t *testing.T, optFns ...Option) (*Scene, *mesh.TriangleMesh) {
	t.Helper()
	s := NewScene(optFns...)
	m := quadMesh(t)
	id, err := s.AddMesh(m)
	require.NoError(t, err)
	require.Equal(t, uint32(0), id)
	require.NoError(t, s.Commit(context.Background()))
	return s, m
}

func TestScene_Trace(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s, m := quadScene(t, WithMetricsCollector(metrics))

	hit, err := s.Trace(geom.Ray{
		Origin:      geom.V(-0.5, -10, 0),
		Direction:   geom.V(0, 1, 0),
		MinDistance: 1,
	})
	require.NoError(t, err)
	require.True(t, hit.Valid())

	assert.InDelta(t, 10, hit.Distance, 1e-6)
	assert.Equal(t, uint32(1), hit.PrimID)
	assert.Equal(t, uint32(0), hit.MeshID)
	assert.Same(t, m, hit.Mesh)
	assert.InDelta(t, -0.5, hit.Position.X, 1e-6)
	assert.InDelta(t, 0, hit.Position.Y, 1e-6)
	assert.Equal(t, geom.V(0, -1, 0), hit.Normal)
	assert.Equal(t, hit.Normal, hit.ShadingNormal())
	assert.Positive(t, hit.ErrorOffset)

	assert.Equal(t, RayTracerStats{NumRays: 1, NumRayHits: 1}, s.Stats())
	assert.Equal(t, int64(1), metrics.GetStats().RayHits)

	s.ResetStats()
	assert.Equal(t, RayTracerStats{}, s.Stats())
}

func TestScene_Miss(t *testing.T) {
	s, _ := quadScene(t)

	hit, err := s.Trace(geom.Ray{
		Origin:      geom.V(-0.5, -10, 0),
		Direction:   geom.V(0, -1, 0),
		MinDistance: 1,
	})
	require.NoError(t, err)
	assert.False(t, hit.Valid())
	assert.Equal(t, RayTracerStats{NumRays: 1}, s.Stats())
	assert.False(t, rawHit(hit).Valid())
}

func TestScene_MinDistance(t *testing.T) {
	s, _ := quadScene(t)

	hit, err := s.Trace(geom.Ray{
		Origin:      geom.V(-0.5, -10, 0),
		Direction:   geom.V(0, 1, 0),
		MinDistance: 11,
	})
	require.NoError(t, err)
	assert.False(t, hit.Valid())
}

func TestScene_ShadowRays(t *testing.T) {
	s, _ := quadScene(t)

	a := SurfacePoint(geom.V(-0.5, -10, 0))
	b := SurfacePoint(geom.V(-0.5, 10, 0))
	c := SurfacePoint(geom.V(-0.5, -20, 0))

	for _, tc := range []struct {
		name     string
		from, to Hit
		occluded bool
	}{
		{"a to b", a, b, true},
		{"b to a", b, a, true},
		{"a to c", a, c, false},
		{"c to a", c, a, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			occluded, err := s.IsOccludedBetween(tc.from, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.occluded, occluded)
		})
	}

	occluded, err := s.IsOccludedTo(a, b.Position)
	require.NoError(t, err)
	assert.True(t, occluded)

	occluded, err = s.LeavesScene(a, geom.V(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, occluded)

	occluded, err = s.LeavesScene(a, geom.V(0, -1, 0))
	require.NoError(t, err)
	assert.False(t, occluded)

	st := s.Stats()
	assert.Equal(t, uint64(7), st.NumShadowRays)
	assert.Equal(t, uint64(4), st.NumOccluded)
}

func TestScene_SpawnFromHit(t *testing.T) {
	s, _ := quadScene(t)

	hit, err := s.Trace(geom.Ray{Origin: geom.V(-0.5, -10, 0), Direction: geom.V(0, 1, 0)})
	require.NoError(t, err)
	require.True(t, hit.Valid())

	// Leaving through the surface it came from must not hit it again.
	next, err := s.Trace(SpawnRay(hit, geom.V(0, -1, 0)))
	require.NoError(t, err)
	assert.False(t, next.Valid())

	occluded, err := s.IsOccludedTo(hit, geom.V(-0.5, -5, 0))
	require.NoError(t, err)
	assert.False(t, occluded)

	occluded, err = s.IsOccludedTo(hit, geom.V(-0.5, 5, 0))
	require.NoError(t, err)
	assert.False(t, occluded, "the far side is reached through the offset origin")
}

func TestScene_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewScene()
	ray := geom.Ray{Origin: geom.V(-0.5, -10, 0), Direction: geom.V(0, 1, 0)}

	_, err := s.Trace(ray)
	assert.ErrorIs(t, err, ErrNotCommitted)

	require.NoError(t, s.Commit(ctx))
	hit, err := s.Trace(ray)
	require.NoError(t, err)
	assert.False(t, hit.Valid())

	_, err = s.AddMesh(nil)
	var meshErr *mesh.ErrInvalidMesh
	assert.ErrorAs(t, err, &meshErr)

	id, err := s.AddMesh(quadMesh(t))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)
	assert.Equal(t, 1, s.NumMeshes())

	_, err = s.IsOccluded(ShadowRay{Ray: ray, MaxDistance: 100})
	assert.ErrorIs(t, err, ErrNotCommitted)

	require.NoError(t, s.Commit(ctx))
	hit, err = s.Trace(ray)
	require.NoError(t, err)
	assert.True(t, hit.Valid())

	m, ok := s.Mesh(0)
	assert.True(t, ok)
	assert.Same(t, m, hit.Mesh)
	_, ok = s.Mesh(1)
	assert.False(t, ok)

	require.NoError(t, s.Release())
	assert.ErrorIs(t, s.Release(), ErrReleased)
	_, err = s.Trace(ray)
	assert.ErrorIs(t, err, ErrReleased)
	_, err = s.AddMesh(quadMesh(t))
	assert.ErrorIs(t, err, ErrReleased)
}

func TestScene_ManyMeshes(t *testing.T) {
	s := NewScene(WithLeafSize(1))
	for i := 0; i < 20; i++ {
		y := float32(i)
		m, err := mesh.New(mesh.Data{
			Vertices: []geom.Vec3{geom.V(-1, y, -1), geom.V(1, y, -1), geom.V(1, y, 1), geom.V(-1, y, 1)},
			Indices:  []uint32{0, 1, 2, 0, 2, 3},
		})
		require.NoError(t, err)
		_, err = s.AddMesh(m)
		require.NoError(t, err)
	}
	require.NoError(t, s.Commit(context.Background()))

	hit, err := s.Trace(geom.Ray{Origin: geom.V(0.2, 100, 0.1), Direction: geom.V(0, -1, 0)})
	require.NoError(t, err)
	require.True(t, hit.Valid())
	assert.Equal(t, uint32(19), hit.MeshID)
	assert.InDelta(t, 81, hit.Distance, 1e-4)

	hit, err = s.Trace(geom.Ray{Origin: geom.V(0.2, 7.5, 0.1), Direction: geom.V(0, 1, 0)})
	require.NoError(t, err)
	assert.Equal(t, uint32(8), hit.MeshID)
}
