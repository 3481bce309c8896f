package geom

// IntersectTriangle intersects the ray (origin, dir) with the triangle
// (v0, v1, v2) from both sides. On a hit within [tMin, tMax] it returns the
// ray parameter and the barycentric coordinates (u, v) of the hit point
// p = (1-u-v)*v0 + u*v1 + v*v2.
func IntersectTriangle(origin, dir, v0, v1, v2 Vec3, tMin, tMax float32) (t, u, v float32, ok bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)

	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det == 0 || !isFinite(det) {
		return 0, 0, 0, false
	}
	inv := 1 / det

	s := origin.Sub(v0)
	u = s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := s.Cross(e1)
	v = dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = e2.Dot(q) * inv
	if t < tMin || t > tMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
