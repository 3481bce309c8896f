package rayknn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/rayknn/geom"
)

func surfaceHit(p, n geom.Vec3, offset float32) Hit {
	return Hit{Position: p, Normal: n, ErrorOffset: offset}
}

func TestSpawnRay(t *testing.T) {
	from := surfaceHit(geom.V(0, 0, 0), geom.V(0, 1, 0), 0.01)

	up := SpawnRay(from, geom.V(0, 1, 0))
	assert.Equal(t, geom.V(0, 0.01, 0), up.Origin)
	assert.Equal(t, float32(0.01), up.MinDistance)

	down := SpawnRay(from, geom.V(0, -1, 0))
	assert.Equal(t, geom.V(0, -0.01, 0), down.Origin)
	assert.Equal(t, geom.V(0, -1, 0), down.Direction)
}

func TestMakeShadowRay(t *testing.T) {
	from := surfaceHit(geom.V(0, 0, 0), geom.V(0, 1, 0), 0.01)
	to := surfaceHit(geom.V(0, 10, 0), geom.V(0, -1, 0), 0.01)

	sr := MakeShadowRay(from, to)
	assert.Equal(t, geom.V(0, 0.01, 0), sr.Ray.Origin)
	assert.InDelta(t, 9.98, sr.Ray.Direction.Y, 1e-5)
	assert.Equal(t, float32(shadowEpsilon), sr.Ray.MinDistance)
	assert.Equal(t, float32(1-shadowEpsilon), sr.MaxDistance)

	// Positions without surface information are not moved.
	sr = MakeShadowRay(SurfacePoint(geom.V(1, 2, 3)), SurfacePoint(geom.V(1, 2, 5)))
	assert.Equal(t, geom.V(1, 2, 3), sr.Ray.Origin)
	assert.Equal(t, geom.V(0, 0, 2), sr.Ray.Direction)
}

func TestMakeShadowRayTo(t *testing.T) {
	from := surfaceHit(geom.V(0, 0, 0), geom.V(0, 0, 1), 0.5)

	sr := MakeShadowRayTo(from, geom.V(0, 0, 10))
	assert.Equal(t, geom.V(0, 0, 1), sr.Ray.Direction)
	assert.Equal(t, geom.V(0, 0, 0.5), sr.Ray.Origin)
	assert.Equal(t, float32(9.5), sr.MaxDistance)

	sr = MakeShadowRayTo(from, from.Position)
	assert.Equal(t, geom.Vec3{}, sr.Ray.Direction)
}

func TestMakeBackgroundShadowRay(t *testing.T) {
	from := surfaceHit(geom.V(0, 0, 0), geom.V(0, 0, 1), 0.5)

	sr := MakeBackgroundShadowRay(from, geom.V(0, 0, -1))
	assert.Equal(t, geom.V(0, 0, -0.5), sr.Ray.Origin)
	assert.Greater(t, sr.MaxDistance, float32(1e30))
}
