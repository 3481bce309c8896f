package rayknn

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see package observability).
type MetricsCollector interface {
	// RecordBuild is called after each accelerator or scene build.
	// primitives is the number of points or triangles, err is nil if successful.
	RecordBuild(primitives int, duration time.Duration, err error)

	// RecordQuery is called after each k-NN query.
	// k is the number of neighbors requested, found the number returned.
	RecordQuery(k, found int, duration time.Duration, err error)

	// RecordTrace is called after each ray query. shadow is true for
	// occlusion queries, hit reports whether something was hit.
	RecordTrace(shadow, hit bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordTrace(bool, bool)                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildPrimitives atomic.Int64
	BuildTotalNanos atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryResults    atomic.Int64
	QueryTotalNanos atomic.Int64
	RayCount        atomic.Int64
	RayHits         atomic.Int64
	ShadowRayCount  atomic.Int64
	ShadowRayHits   atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(primitives int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildPrimitives.Add(int64(primitives))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(k, found int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryResults.Add(int64(found))
}

// RecordTrace implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrace(shadow, hit bool) {
	if shadow {
		b.ShadowRayCount.Add(1)
		if hit {
			b.ShadowRayHits.Add(1)
		}
		return
	}
	b.RayCount.Add(1)
	if hit {
		b.RayHits.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildPrimitives: b.BuildPrimitives.Load(),
		BuildAvgNanos:   avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryResults:    b.QueryResults.Load(),
		QueryAvgNanos:   avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		RayCount:        b.RayCount.Load(),
		RayHits:         b.RayHits.Load(),
		ShadowRayCount:  b.ShadowRayCount.Load(),
		ShadowRayHits:   b.ShadowRayHits.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	BuildPrimitives int64
	BuildAvgNanos   int64
	QueryCount      int64
	QueryErrors     int64
	QueryResults    int64
	QueryAvgNanos   int64
	RayCount        int64
	RayHits         int64
	ShadowRayCount  int64
	ShadowRayHits   int64
}
