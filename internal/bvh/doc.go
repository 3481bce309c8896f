// Package bvh implements the bounding volume hierarchy that backs both the
// k-NN accelerator and the triangle scene.
//
// Primitives are described by a bounds callback, the same way user geometry is
// described to a ray tracing kernel: the tree never sees points or triangles,
// only their boxes and ids. Two traversals are offered:
//
//   - PointQuery visits every primitive whose leaf lies within a query sphere.
//     The callback may shrink the sphere; later pruning uses the new radius.
//     Primitives already scheduled before a shrink may still be visited, so
//     callers must re-check distances themselves.
//   - Intersect / Occluded walk the tree along a ray with a shrinking far
//     distance (closest hit) or stop at the first hit (any hit).
//
// A Tree is immutable after Build and safe for concurrent traversals.
package bvh
