package geom

import "math"

// AABB is an axis-aligned bounding box. An empty box has Min > Max.
type AABB struct {
	Min, Max Vec3
}

// EmptyAABB returns a box that contains nothing; extending it by a point
// yields the degenerate box of that point.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// PointAABB returns the zero-volume box of p.
func PointAABB(p Vec3) AABB { return AABB{Min: p, Max: p} }

// IsEmpty reports whether the box contains no point.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend returns the smallest box containing b and p.
func (b AABB) Extend(p Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Centroid returns the center of the box.
func (b AABB) Centroid() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extent returns Max - Min.
func (b AABB) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// LongestAxis returns the axis (0, 1, 2) with the largest extent.
func (b AABB) LongestAxis() int {
	e := b.Extent()
	switch {
	case e.X >= e.Y && e.X >= e.Z:
		return 0
	case e.Y >= e.Z:
		return 1
	default:
		return 2
	}
}

// SurfaceArea returns the surface area, 0 for empty boxes.
func (b AABB) SurfaceArea() float32 {
	if b.IsEmpty() {
		return 0
	}
	e := b.Extent()
	return 2 * (e.X*e.Y + e.Y*e.Z + e.Z*e.X)
}

// Contains reports whether p lies inside or on the box.
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// DistanceSquaredTo returns the squared distance from p to the closest point
// of the box; 0 if p is inside.
func (b AABB) DistanceSquaredTo(p Vec3) float32 {
	dx := axisDist(p.X, b.Min.X, b.Max.X)
	dy := axisDist(p.Y, b.Min.Y, b.Max.Y)
	dz := axisDist(p.Z, b.Min.Z, b.Max.Z)
	return dx*dx + dy*dy + dz*dz
}

func axisDist(v, lo, hi float32) float32 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

// IntersectRay runs the slab test for a ray given by origin and the
// reciprocal of its direction. It returns the entry distance and whether the
// ray overlaps the box within [tMin, tMax].
func (b AABB) IntersectRay(origin, invDir Vec3, tMin, tMax float32) (float32, bool) {
	for axis := 0; axis < 3; axis++ {
		o := origin.Index(axis)
		inv := invDir.Index(axis)
		t0 := (b.Min.Index(axis) - o) * inv
		t1 := (b.Max.Index(axis) - o) * inv
		if inv < 0 {
			t0, t1 = t1, t0
		}
		// NaN from 0*Inf keeps the current bounds.
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMax < tMin {
			return 0, false
		}
	}
	return tMin, true
}
