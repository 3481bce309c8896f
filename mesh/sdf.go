package mesh

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"

	"github.com/hupe1980/rayknn/geom"
)

// FromSDF3 tessellates s with uniform marching cubes, cells along the longest
// axis of its bounding box. Coincident vertices are welded.
func FromSDF3(s sdf.SDF3, cells int) (*TriangleMesh, error) {
	if s == nil {
		return nil, &ErrInvalidMesh{Reason: "nil solid"}
	}
	if cells <= 0 {
		return nil, &ErrInvalidMesh{Reason: fmt.Sprintf("cells must be positive, got %d", cells)}
	}

	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	lookup := make(map[geom.Vec3]uint32, len(triangles))
	d := Data{
		Vertices: make([]geom.Vec3, 0, len(triangles)),
		Indices:  make([]uint32, 0, 3*len(triangles)),
	}

	for _, tri := range triangles {
		// Marching cubes emits slivers with a zero normal; skip them.
		if n := tri.Normal(); n.X == 0 && n.Y == 0 && n.Z == 0 {
			continue
		}
		for j := 0; j < 3; j++ {
			v := geom.FromSDF(tri[j])
			idx, ok := lookup[v]
			if !ok {
				idx = uint32(len(d.Vertices))
				lookup[v] = idx
				d.Vertices = append(d.Vertices, v)
			}
			d.Indices = append(d.Indices, idx)
		}
	}

	return New(d)
}
