package bvh

import (
	"github.com/hupe1980/rayknn/geom"
)

// PointQuery is the query sphere handed to a PointQueryFunc. The callback may
// lower Radius to prune the remaining traversal.
type PointQuery struct {
	Center geom.Vec3
	Radius float32
}

// PointQueryFunc is invoked once for each primitive in a leaf whose box
// intersects the current query sphere. It reports whether it lowered
// q.Radius.
type PointQueryFunc func(q *PointQuery, primID uint32) bool

// PointQuery traverses the tree, visiting nearer children first.
func (t *Tree) PointQuery(q *PointQuery, fn PointQueryFunc) {
	if len(t.nodes) == 0 {
		return
	}

	r2 := q.Radius * q.Radius
	if t.nodes[0].bounds.DistanceSquaredTo(q.Center) > r2 {
		return
	}

	var buf [64]uint32
	stack := append(buf[:0], 0)

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nd := &t.nodes[idx]
		if nd.bounds.DistanceSquaredTo(q.Center) > r2 {
			continue
		}

		if nd.count > 0 {
			for _, id := range t.prims[nd.start : nd.start+nd.count] {
				if fn(q, id) {
					r2 = q.Radius * q.Radius
				}
			}
			continue
		}

		left, right := idx+1, nd.right
		dl := t.nodes[left].bounds.DistanceSquaredTo(q.Center)
		dr := t.nodes[right].bounds.DistanceSquaredTo(q.Center)

		if dl > dr {
			left, right = right, left
			dl, dr = dr, dl
		}
		if dr <= r2 {
			stack = append(stack, right)
		}
		if dl <= r2 {
			stack = append(stack, left)
		}
	}
}

// RayFunc tests primitive primID against a ray restricted to [tMin, tMax] and
// returns the hit distance.
type RayFunc func(primID uint32, tMin, tMax float32) (float32, bool)

// Intersect returns the closest primitive hit by ray within [tMin, tMax].
func (t *Tree) Intersect(ray geom.Ray, tMin, tMax float32, fn RayFunc) (uint32, float32, bool) {
	var (
		hitID  uint32
		hitT   float32
		hasHit bool
	)

	t.walkRay(ray, tMin, tMax, func(id uint32, far float32) (float32, bool) {
		if d, ok := fn(id, tMin, far); ok {
			hitID, hitT, hasHit = id, d, true
			return d, false
		}
		return far, false
	})

	return hitID, hitT, hasHit
}

// Occluded reports whether any primitive is hit within [tMin, tMax].
func (t *Tree) Occluded(ray geom.Ray, tMin, tMax float32, fn RayFunc) bool {
	occluded := false

	t.walkRay(ray, tMin, tMax, func(id uint32, far float32) (float32, bool) {
		if _, ok := fn(id, tMin, far); ok {
			occluded = true
			return far, true
		}
		return far, false
	})

	return occluded
}

// walkRay visits leaves along the ray front to back. visit returns the new far
// distance and whether to stop.
func (t *Tree) walkRay(ray geom.Ray, tMin, tMax float32, visit func(id uint32, far float32) (float32, bool)) {
	if len(t.nodes) == 0 || !(tMin <= tMax) {
		return
	}

	inv := ray.InvDirection()
	far := tMax

	if _, ok := t.nodes[0].bounds.IntersectRay(ray.Origin, inv, tMin, far); !ok {
		return
	}

	type entry struct {
		idx  uint32
		near float32
	}
	var buf [64]entry
	stack := append(buf[:0], entry{0, tMin})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if e.near > far {
			continue
		}

		nd := &t.nodes[e.idx]
		if nd.count > 0 {
			for _, id := range t.prims[nd.start : nd.start+nd.count] {
				var stop bool
				far, stop = visit(id, far)
				if stop {
					return
				}
			}
			continue
		}

		left, right := e.idx+1, nd.right
		nl, okl := t.nodes[left].bounds.IntersectRay(ray.Origin, inv, tMin, far)
		nr, okr := t.nodes[right].bounds.IntersectRay(ray.Origin, inv, tMin, far)

		switch {
		case okl && okr:
			if nl > nr {
				left, right = right, left
				nl, nr = nr, nl
			}
			stack = append(stack, entry{right, nr}, entry{left, nl})
		case okl:
			stack = append(stack, entry{left, nl})
		case okr:
			stack = append(stack, entry{right, nr})
		}
	}
}
