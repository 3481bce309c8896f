// Package geom provides the small float32 vector vocabulary shared by the
// k-NN accelerator, the BVH and the ray tracer.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Vec3 is a 3D vector or point.
//
// A point has no identity beyond its position in the array it is stored in;
// that position is its primitive id.
type Vec3 struct {
	X, Y, Z float32
}

// V constructs a Vec3.
func V(x, y, z float32) Vec3 { return Vec3{X: x, Y: y, Z: z} }

// Add returns a + b.
func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }

// Sub returns a - b.
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

// Scale returns a * s.
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

// Mul returns the component-wise product.
func (a Vec3) Mul(b Vec3) Vec3 { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }

// Neg returns -a.
func (a Vec3) Neg() Vec3 { return Vec3{-a.X, -a.Y, -a.Z} }

// Dot returns the dot product.
func (a Vec3) Dot(b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

// Cross returns the cross product a x b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// LengthSquared returns |a|².
func (a Vec3) LengthSquared() float32 { return a.Dot(a) }

// Length returns |a|.
func (a Vec3) Length() float32 { return sqrt32(a.LengthSquared()) }

// Normalize returns a / |a|. The zero vector is returned unchanged.
func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// Min returns the component-wise minimum.
func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{min(a.X, b.X), min(a.Y, b.Y), min(a.Z, b.Z)}
}

// Max returns the component-wise maximum.
func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{max(a.X, b.X), max(a.Y, b.Y), max(a.Z, b.Z)}
}

// Abs returns the component-wise absolute value.
func (a Vec3) Abs() Vec3 {
	return Vec3{abs32(a.X), abs32(a.Y), abs32(a.Z)}
}

// MaxComponent returns the largest component.
func (a Vec3) MaxComponent() float32 { return max(a.X, a.Y, a.Z) }

// Index returns the component for axis 0, 1 or 2.
func (a Vec3) Index(axis int) float32 {
	switch axis {
	case 0:
		return a.X
	case 1:
		return a.Y
	default:
		return a.Z
	}
}

// IsFinite reports whether no component is NaN or infinite.
func (a Vec3) IsFinite() bool {
	return isFinite(a.X) && isFinite(a.Y) && isFinite(a.Z)
}

// SDF converts a to the sdfx vector type.
func (a Vec3) SDF() v3.Vec {
	return v3.Vec{X: float64(a.X), Y: float64(a.Y), Z: float64(a.Z)}
}

// FromSDF converts an sdfx vector to a Vec3.
func FromSDF(v v3.Vec) Vec3 {
	return Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec3) float32 {
	return a.Sub(b).Length()
}

func sqrt32(x float32) float32 { return float32(math.Sqrt(float64(x))) }

func abs32(x float32) float32 { return math.Float32frombits(math.Float32bits(x) &^ (1 << 31)) }

func isFinite(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
