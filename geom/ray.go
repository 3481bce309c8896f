package geom

// Ray is a half line that is intersected with a scene.
//
// Direction does not need to be normalized: distances reported for a ray are
// multiples of its direction length.
type Ray struct {
	Origin    Vec3
	Direction Vec3
	// MinDistance discards hits closer than this value.
	MinDistance float32
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// InvDirection returns 1/Direction component-wise; zero components map to ±Inf.
func (r Ray) InvDirection() Vec3 {
	return Vec3{1 / r.Direction.X, 1 / r.Direction.Y, 1 / r.Direction.Z}
}
