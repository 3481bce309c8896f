package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rayknn"
	"github.com/hupe1980/rayknn/blobstore"
	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/mesh"
	"github.com/hupe1980/rayknn/snapshot"
	"github.com/hupe1980/rayknn/testutil"
)

// KnnReport summarizes the k-NN workload.
type KnnReport struct {
	Points  int
	Build   time.Duration
	Queries int
	Elapsed time.Duration
	Found   int64
	Recall  float64
}

// QPS returns the query throughput.
func (r KnnReport) QPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Queries) / r.Elapsed.Seconds()
}

// TraceReport summarizes the ray tracing workload.
type TraceReport struct {
	Triangles int
	Build     time.Duration
	Rays      int
	Elapsed   time.Duration
	Stats     rayknn.RayTracerStats
}

// runKnn builds an accelerator over clustered points and queries it from
// cfg.Workers goroutines, each with its own cache.
func runKnn(ctx context.Context, cfg *Config, opts []rayknn.Option) (KnnReport, error) {
	rng := testutil.NewRNG(cfg.Seed)
	points := rng.ClusteredPoints(cfg.Points, max(cfg.Clusters, 1), cfg.Extent, cfg.Extent/20)

	if cfg.SnapshotDir != "" {
		var err error
		points, err = roundTrip(ctx, cfg, points)
		if err != nil {
			return KnnReport{}, err
		}
	}

	accel := rayknn.NewAccelerator(opts...)
	defer accel.Release()

	start := time.Now()
	if err := accel.SetPoints(ctx, points); err != nil {
		return KnnReport{}, err
	}
	report := KnnReport{Points: len(points), Build: time.Since(start), Queries: cfg.Queries}

	queries := rng.UniformPoints(cfg.Queries, cfg.Extent)
	radius := cfg.SearchRadius()

	var next, found atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	start = time.Now()
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			cache := rayknn.NewQueryCache(cfg.K)
			defer cache.Release()
			for {
				i := int(next.Add(1) - 1)
				if i >= len(queries) || gctx.Err() != nil {
					return gctx.Err()
				}
				res, err := accel.KnnQuery(queries[i], radius, cfg.K, cache)
				if err != nil {
					return err
				}
				found.Add(int64(res.Count))
			}
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Elapsed = time.Since(start)
	report.Found = found.Load()

	report.Recall = recall(accel, points, queries[:min(cfg.RecallSamples, len(queries))], radius, cfg.K)
	return report, nil
}

func recall(accel *rayknn.Accelerator, points, queries []geom.Vec3, radius float32, k int) float64 {
	if len(queries) == 0 {
		return 1
	}
	cache := rayknn.NewQueryCache(k)
	defer cache.Release()

	var sum float64
	for _, q := range queries {
		if _, err := accel.KnnQuery(q, radius, k, cache); err != nil {
			return 0
		}
		got := make([]testutil.SearchResult, 0, k)
		for _, n := range cache.Sorted() {
			got = append(got, testutil.SearchResult{ID: n.ID, Distance: n.Distance})
		}
		sum += testutil.ComputeRecall(testutil.BruteForceKNN(points, q, radius, k), got)
	}
	return sum / float64(len(queries))
}

// roundTrip persists points to the snapshot directory and loads them back.
func roundTrip(ctx context.Context, cfg *Config, points []geom.Vec3) ([]geom.Vec3, error) {
	store := blobstore.NewLocalStore(cfg.SnapshotDir)
	name := fmt.Sprintf("points-%d.rknn", cfg.Seed)

	rc := snapshot.WithResources(resourceController(cfg))
	catalog := snapshot.NewCatalog(store)
	if err := snapshot.SavePoints(ctx, store, name, points, rc); err != nil {
		return nil, err
	}
	if err := catalog.Publish(ctx, name); err != nil {
		return nil, err
	}
	current, err := catalog.Current(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.LoadPoints(ctx, store, current, rc)
}

// benchSolid is a rounded box with a closed spherical cavity and a cylinder
// through it.
func benchSolid() (sdf.SDF3, error) {
	box, err := sdf.Box3D(v3.Vec{X: 4, Y: 4, Z: 4}, 0.3)
	if err != nil {
		return nil, err
	}
	sphere, err := sdf.Sphere3D(1.6)
	if err != nil {
		return nil, err
	}
	cyl, err := sdf.Cylinder3D(6, 0.8, 0)
	if err != nil {
		return nil, err
	}
	cyl = sdf.Transform3D(cyl, sdf.Translate3d(v3.Vec{X: 1, Y: 1, Z: 0}))
	return sdf.Union3D(sdf.Difference3D(box, sphere), cyl), nil
}

// runTrace tessellates the bench solid and shoots rays from a sphere around
// it towards the origin, testing shadow rays back to the ray origin.
func runTrace(ctx context.Context, cfg *Config, opts []rayknn.Option) (TraceReport, error) {
	solid, err := benchSolid()
	if err != nil {
		return TraceReport{}, err
	}
	m, err := mesh.FromSDF3(solid, cfg.SDFCells)
	if err != nil {
		return TraceReport{}, err
	}

	scene := rayknn.NewScene(opts...)
	defer scene.Release()
	if _, err := scene.AddMesh(m); err != nil {
		return TraceReport{}, err
	}

	start := time.Now()
	if err := scene.Commit(ctx); err != nil {
		return TraceReport{}, err
	}
	report := TraceReport{Triangles: m.NumFaces(), Build: time.Since(start), Rays: cfg.Rays}

	rng := testutil.NewRNG(cfg.Seed + 1)
	rays := make([]geom.Ray, cfg.Rays)
	for i := range rays {
		origin := rng.Point(1).Normalize().Scale(10)
		target := rng.Point(1)
		rays[i] = geom.Ray{Origin: origin, Direction: target.Sub(origin).Normalize()}
	}

	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	start = time.Now()
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= len(rays) || gctx.Err() != nil {
					return gctx.Err()
				}
				hit, err := scene.Trace(rays[i])
				if err != nil {
					return err
				}
				if !hit.Valid() {
					continue
				}
				if _, err := scene.IsOccludedTo(hit, rays[i].Origin); err != nil {
					return err
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Elapsed = time.Since(start)
	report.Stats = scene.Stats()
	return report, nil
}
