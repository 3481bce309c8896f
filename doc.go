// Package rayknn provides k-nearest-neighbor search over 3D points and
// ray/triangle-mesh intersection for renderers.
//
// Both are served by a bounding volume hierarchy built with the surface area
// heuristic. Builds may fan out across goroutines; queries never do.
//
// # Quick Start
//
// Nearest neighbors:
//
//	accel := rayknn.NewAccelerator()
//	_ = accel.SetPoints(ctx, points)
//
//	cache := rayknn.NewQueryCache(8)
//	res, _ := accel.KnnQuery(pos, float32(math.Inf(1)), 8, cache)
//	for _, n := range cache.Sorted() {
//	    fmt.Println(n.ID, n.Distance)
//	}
//	fmt.Println(res.Count, res.Radius)
//
// Ray tracing:
//
//	scene := rayknn.NewScene()
//	m, _ := mesh.New(mesh.Data{Vertices: verts, Indices: idx})
//	_, _ = scene.AddMesh(m)
//	_ = scene.Commit(ctx)
//
//	hit, _ := scene.Trace(geom.Ray{Origin: o, Direction: d})
//	if hit.Valid() {
//	    occluded, _ := scene.IsOccludedTo(hit, light)
//	}
//
// # Query Semantics
//
// KnnQuery returns at most k points whose distance to the query is strictly
// less than the radius. Of points at equal distance, the one with the lower id
// is kept. The returned radius is the distance of the k-th neighbor if k were
// found, otherwise the radius the query was issued with.
//
// # Concurrency
//
// A built Accelerator or committed Scene serves any number of concurrent
// queries. Each k-NN query needs its own QueryCache; sharing one between two
// running queries fails with ErrCacheBusy. Rebuilding while queries are in
// flight fails with ErrConcurrentRebuild.
//
// # Handles
//
// Device exposes the same objects behind generation-checked handles, for
// callers that cannot hold Go pointers. Deleted handles fail with
// ErrStaleHandle instead of resolving to a reused slot.
//
// # Persistence
//
// Point sets and meshes are stored in the snapshot format on any
// blobstore.Store: local files, memory, S3 or MinIO.
package rayknn
