package rayknn

import (
	"math"

	"github.com/hupe1980/rayknn/geom"
)

// ShadowRay is a ray that is only tested for occlusion within
// [Ray.MinDistance, MaxDistance].
type ShadowRay struct {
	Ray         geom.Ray
	MaxDistance float32
}

// offsetPoint moves the hit position off the surface, to the side dir points to.
func offsetPoint(from Hit, dir geom.Vec3) geom.Vec3 {
	sign := float32(1)
	if dir.Dot(from.Normal) < 0 {
		sign = -1
	}
	return from.Position.Add(from.Normal.Scale(sign * from.ErrorOffset))
}

// SpawnRay starts a ray at a surface point, offset against self-intersection.
func SpawnRay(from Hit, dir geom.Vec3) geom.Ray {
	return geom.Ray{
		Origin:      offsetPoint(from, dir),
		Direction:   dir,
		MinDistance: from.ErrorOffset,
	}
}

// MakeShadowRay connects two surface points. Both ends are offset so that
// neither surface occludes the ray.
func MakeShadowRay(from, to Hit) ShadowRay {
	dir := to.Position.Sub(from.Position)
	p0 := offsetPoint(from, dir)
	p1 := offsetPoint(to, dir.Neg())

	return ShadowRay{
		Ray: geom.Ray{
			Origin:      p0,
			Direction:   p1.Sub(p0),
			MinDistance: shadowEpsilon,
		},
		MaxDistance: 1 - shadowEpsilon,
	}
}

// MakeShadowRayTo connects a surface point with an arbitrary position. Without
// surface information at target the far end is not offset.
func MakeShadowRayTo(from Hit, target geom.Vec3) ShadowRay {
	dir := target.Sub(from.Position)
	dist := dir.Length()
	if dist > 0 {
		dir = dir.Scale(1 / dist)
	}
	return ShadowRay{
		Ray:         SpawnRay(from, dir),
		MaxDistance: dist - from.ErrorOffset,
	}
}

// MakeBackgroundShadowRay is a shadow ray from a surface point that leaves
// the scene in direction.
func MakeBackgroundShadowRay(from Hit, direction geom.Vec3) ShadowRay {
	return ShadowRay{
		Ray:         SpawnRay(from, direction),
		MaxDistance: math.MaxFloat32,
	}
}
