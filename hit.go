package rayknn

import (
	"math"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/mesh"
)

const (
	// errorOffsetScale is 32 float32 ulps at 1.
	errorOffsetScale = 32 * 1.19209e-7
	shadowEpsilon    = 1e-5
)

// InvalidID marks a miss in RawHit.
const InvalidID = math.MaxUint32

// Hit describes the closest intersection of a ray with a scene. The zero Hit
// is a miss.
type Hit struct {
	Mesh        *mesh.TriangleMesh
	MeshID      uint32
	PrimID      uint32
	Barycentric mesh.Barycentric

	// Distance is the ray parameter of the hit, in multiples of the ray
	// direction length.
	Distance float32

	Position geom.Vec3

	// Normal is the unit face normal.
	Normal geom.Vec3

	// ErrorOffset is how far rays spawned at the hit are moved off the surface.
	ErrorOffset float32
}

func newHit(m *mesh.TriangleMesh, meshID, face uint32, b mesh.Barycentric, t float32) Hit {
	h := Hit{
		Mesh:        m,
		MeshID:      meshID,
		PrimID:      face,
		Barycentric: b,
		Distance:    t,
		Position:    m.ComputePosition(int(face), b),
		Normal:      m.FaceNormal(int(face)),
	}
	h.ErrorOffset = max(h.Position.Abs().MaxComponent(), t) * errorOffsetScale
	return h
}

// SurfacePoint returns a Hit that only carries a position. It can be used as
// the end of shadow rays when no surface information is available.
func SurfacePoint(p geom.Vec3) Hit {
	return Hit{Position: p}
}

// Valid reports whether the ray hit something.
func (h Hit) Valid() bool { return h.Mesh != nil }

// ShadingNormal interpolates the mesh's vertex normals at the hit.
func (h Hit) ShadingNormal() geom.Vec3 {
	if h.Mesh == nil {
		return geom.Vec3{}
	}
	return h.Mesh.ComputeShadingNormal(int(h.PrimID), h.Barycentric)
}

// TextureCoordinates interpolates the mesh's texture coordinates at the hit.
func (h Hit) TextureCoordinates() mesh.TexCoord {
	if h.Mesh == nil {
		return mesh.TexCoord{}
	}
	return h.Mesh.ComputeTextureCoordinates(int(h.PrimID), h.Barycentric)
}

// RawHit is the flat hit record returned by Device.TraceSingle. MeshID is
// InvalidID on a miss.
type RawHit struct {
	MeshID   uint32
	PrimID   uint32
	U, V     float32
	Distance float32
}

// Valid reports whether the ray hit something.
func (h RawHit) Valid() bool { return h.MeshID != InvalidID }

func rawHit(h Hit) RawHit {
	if !h.Valid() {
		return RawHit{MeshID: InvalidID, PrimID: InvalidID}
	}
	return RawHit{
		MeshID:   h.MeshID,
		PrimID:   h.PrimID,
		U:        h.Barycentric.U,
		V:        h.Barycentric.V,
		Distance: h.Distance,
	}
}
