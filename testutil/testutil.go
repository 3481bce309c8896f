package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/rayknn/geom"
)

// SearchResult is one neighbor of a reference query.
type SearchResult struct {
	ID       uint32
	Distance float32
}

// RNG wraps a seeded random source. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates an RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0,1).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

func (r *RNG) vec3Locked(lo, hi float32) geom.Vec3 {
	span := hi - lo
	return geom.V(
		lo+r.rand.Float32()*span,
		lo+r.rand.Float32()*span,
		lo+r.rand.Float32()*span,
	)
}

// Point returns a point uniformly distributed in [-extent, extent)³.
func (r *RNG) Point(extent float32) geom.Vec3 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vec3Locked(-extent, extent)
}

// UniformPoints returns num points uniformly distributed in [-extent, extent)³.
func (r *RNG) UniformPoints(num int, extent float32) []geom.Vec3 {
	r.mu.Lock()
	defer r.mu.Unlock()

	pts := make([]geom.Vec3, num)
	for i := range pts {
		pts[i] = r.vec3Locked(-extent, extent)
	}
	return pts
}

// ClusteredPoints returns num points in Gaussian blobs around clusters centers
// drawn from [-extent, extent)³.
func (r *RNG) ClusteredPoints(num, clusters int, extent, spread float32) []geom.Vec3 {
	r.mu.Lock()
	defer r.mu.Unlock()

	centers := make([]geom.Vec3, max(clusters, 1))
	for i := range centers {
		centers[i] = r.vec3Locked(-extent, extent)
	}

	pts := make([]geom.Vec3, num)
	for i := range pts {
		c := centers[r.rand.Intn(len(centers))]
		pts[i] = c.Add(geom.V(
			float32(r.rand.NormFloat64())*spread,
			float32(r.rand.NormFloat64())*spread,
			float32(r.rand.NormFloat64())*spread,
		))
	}
	return pts
}

// GridPoints returns n points along the diagonal: point i is (3i, 3i+1, 3i+2).
func GridPoints(n int) []geom.Vec3 {
	pts := make([]geom.Vec3, n)
	for i := range pts {
		f := float32(i)
		pts[i] = geom.V(3*f, 3*f+1, 3*f+2)
	}
	return pts
}

// DuplicatePoints returns n copies of p.
func DuplicatePoints(n int, p geom.Vec3) []geom.Vec3 {
	pts := make([]geom.Vec3, n)
	for i := range pts {
		pts[i] = p
	}
	return pts
}

// BruteForceKNN returns the k points nearest to center that lie strictly
// within radius, by ascending distance and ascending id on ties.
func BruteForceKNN(points []geom.Vec3, center geom.Vec3, radius float32, k int) []SearchResult {
	if k <= 0 {
		return nil
	}

	var results []SearchResult
	for i, p := range points {
		if d := geom.Distance(center, p); d < radius {
			results = append(results, SearchResult{ID: uint32(i), Distance: d})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ComputeRecall returns the share of groundTruth ids found in approximate.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))
	truth := make(map[uint32]struct{}, k)
	for i := range k {
		truth[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate {
		if _, ok := truth[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}
