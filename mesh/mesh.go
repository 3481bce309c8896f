// Package mesh provides the immutable triangle meshes that are added to a
// scene.
package mesh

import (
	"fmt"

	"github.com/hupe1980/rayknn/geom"
)

// ErrInvalidMesh reports malformed mesh input.
type ErrInvalidMesh struct {
	Reason string
}

func (e *ErrInvalidMesh) Error() string {
	return fmt.Sprintf("invalid mesh: %s", e.Reason)
}

// TexCoord is a texture coordinate.
type TexCoord struct {
	U, V float32
}

// Barycentric is a point inside a triangle, relative to its vertices:
// p = (1-U-V)*v0 + U*v1 + V*v2.
type Barycentric struct {
	U, V float32
}

// Data holds the input of New. Normals and TexCoords are optional; when set
// they must contain one entry per vertex.
type Data struct {
	Vertices  []geom.Vec3
	Indices   []uint32
	Normals   []geom.Vec3
	TexCoords []TexCoord
}

// TriangleMesh is an indexed triangle list with per-face normals and areas.
type TriangleMesh struct {
	vertices  []geom.Vec3
	indices   []uint32
	normals   []geom.Vec3
	texCoords []TexCoord

	faceNormals []geom.Vec3
	areas       []float32
	surfaceArea float32
}

// New validates and copies d. Triangles are counter-clockwise when seen from
// the side their face normal points to.
func New(d Data) (*TriangleMesh, error) {
	if len(d.Indices)%3 != 0 {
		return nil, &ErrInvalidMesh{Reason: fmt.Sprintf("index count %d is not a multiple of 3", len(d.Indices))}
	}
	if len(d.Normals) != 0 && len(d.Normals) != len(d.Vertices) {
		return nil, &ErrInvalidMesh{Reason: fmt.Sprintf("%d normals for %d vertices", len(d.Normals), len(d.Vertices))}
	}
	if len(d.TexCoords) != 0 && len(d.TexCoords) != len(d.Vertices) {
		return nil, &ErrInvalidMesh{Reason: fmt.Sprintf("%d texture coordinates for %d vertices", len(d.TexCoords), len(d.Vertices))}
	}
	for i, idx := range d.Indices {
		if int(idx) >= len(d.Vertices) {
			return nil, &ErrInvalidMesh{Reason: fmt.Sprintf("index %d at %d out of range [0, %d)", idx, i, len(d.Vertices))}
		}
	}
	for i, v := range d.Vertices {
		if !v.IsFinite() {
			return nil, &ErrInvalidMesh{Reason: fmt.Sprintf("vertex %d is not finite", i)}
		}
	}

	m := &TriangleMesh{
		vertices: append([]geom.Vec3(nil), d.Vertices...),
		indices:  append([]uint32(nil), d.Indices...),
	}
	if len(d.Normals) > 0 {
		m.normals = make([]geom.Vec3, len(d.Normals))
		for i, n := range d.Normals {
			m.normals[i] = n.Normalize()
		}
	}
	if len(d.TexCoords) > 0 {
		m.texCoords = append([]TexCoord(nil), d.TexCoords...)
	}

	n := m.NumFaces()
	m.faceNormals = make([]geom.Vec3, n)
	m.areas = make([]float32, n)
	for f := 0; f < n; f++ {
		v0, v1, v2 := m.Triangle(f)
		c := v1.Sub(v0).Cross(v2.Sub(v0))
		m.faceNormals[f] = c.Normalize()
		m.areas[f] = 0.5 * c.Length()
		m.surfaceArea += m.areas[f]
	}

	return m, nil
}

// NumFaces returns the number of triangles.
func (m *TriangleMesh) NumFaces() int { return len(m.indices) / 3 }

// NumVertices returns the number of vertices.
func (m *TriangleMesh) NumVertices() int { return len(m.vertices) }

// Vertices returns the vertex positions. The slice must not be modified.
func (m *TriangleMesh) Vertices() []geom.Vec3 { return m.vertices }

// Indices returns the triangle indices. The slice must not be modified.
func (m *TriangleMesh) Indices() []uint32 { return m.indices }

// HasShadingNormals reports whether per-vertex normals were supplied.
func (m *TriangleMesh) HasShadingNormals() bool { return m.normals != nil }

// Normals returns the per-vertex shading normals, or nil. The slice must not be modified.
func (m *TriangleMesh) Normals() []geom.Vec3 { return m.normals }

// TexCoords returns the per-vertex texture coordinates, or nil. The slice must not be modified.
func (m *TriangleMesh) TexCoords() []TexCoord { return m.texCoords }

// HasTextureCoordinates reports whether texture coordinates were supplied.
func (m *TriangleMesh) HasTextureCoordinates() bool { return m.texCoords != nil }

// Triangle returns the vertices of face f.
func (m *TriangleMesh) Triangle(f int) (v0, v1, v2 geom.Vec3) {
	i := 3 * f
	return m.vertices[m.indices[i]], m.vertices[m.indices[i+1]], m.vertices[m.indices[i+2]]
}

// Bounds returns the bounding box of face f.
func (m *TriangleMesh) Bounds(f int) geom.AABB {
	v0, v1, v2 := m.Triangle(f)
	return geom.PointAABB(v0).Extend(v1).Extend(v2)
}

// FaceNormal returns the unit normal of face f; zero for degenerate faces.
func (m *TriangleMesh) FaceNormal(f int) geom.Vec3 { return m.faceNormals[f] }

// Area returns the area of face f.
func (m *TriangleMesh) Area(f int) float32 { return m.areas[f] }

// SurfaceArea returns the total area of all faces.
func (m *TriangleMesh) SurfaceArea() float32 { return m.surfaceArea }

// ComputePosition interpolates the position at b on face f.
func (m *TriangleMesh) ComputePosition(f int, b Barycentric) geom.Vec3 {
	v0, v1, v2 := m.Triangle(f)
	return interpolate(v0, v1, v2, b)
}

// ComputeShadingNormal interpolates the vertex normals at b on face f. Without
// vertex normals the face normal is returned.
func (m *TriangleMesh) ComputeShadingNormal(f int, b Barycentric) geom.Vec3 {
	if m.normals == nil {
		return m.faceNormals[f]
	}
	i := 3 * f
	n0, n1, n2 := m.normals[m.indices[i]], m.normals[m.indices[i+1]], m.normals[m.indices[i+2]]
	return interpolate(n0, n1, n2, b).Normalize()
}

// ComputeTextureCoordinates interpolates the texture coordinates at b on face
// f. It returns the zero TexCoord if the mesh has none.
func (m *TriangleMesh) ComputeTextureCoordinates(f int, b Barycentric) TexCoord {
	if m.texCoords == nil {
		return TexCoord{}
	}
	i := 3 * f
	t0, t1, t2 := m.texCoords[m.indices[i]], m.texCoords[m.indices[i+1]], m.texCoords[m.indices[i+2]]
	w := 1 - b.U - b.V
	return TexCoord{
		U: w*t0.U + b.U*t1.U + b.V*t2.U,
		V: w*t0.V + b.U*t1.V + b.V*t2.V,
	}
}

func interpolate(a0, a1, a2 geom.Vec3, b Barycentric) geom.Vec3 {
	return a0.Scale(1 - b.U - b.V).Add(a1.Scale(b.U)).Add(a2.Scale(b.V))
}
