package rayknn

import "sync/atomic"

// RayTracerStats counts the rays traced by a scene.
type RayTracerStats struct {
	NumRays       uint64
	NumRayHits    uint64
	NumShadowRays uint64
	NumOccluded   uint64
}

type rayTracerStats struct {
	rays       atomic.Uint64
	rayHits    atomic.Uint64
	shadowRays atomic.Uint64
	occluded   atomic.Uint64
}

func (s *rayTracerStats) notifyRay(hit bool) {
	s.rays.Add(1)
	if hit {
		s.rayHits.Add(1)
	}
}

func (s *rayTracerStats) notifyShadowRay(occluded bool) {
	s.shadowRays.Add(1)
	if occluded {
		s.occluded.Add(1)
	}
}

func (s *rayTracerStats) snapshot() RayTracerStats {
	return RayTracerStats{
		NumRays:       s.rays.Load(),
		NumRayHits:    s.rayHits.Load(),
		NumShadowRays: s.shadowRays.Load(),
		NumOccluded:   s.occluded.Load(),
	}
}

func (s *rayTracerStats) reset() {
	s.rays.Store(0)
	s.rayHits.Store(0)
	s.shadowRays.Store(0)
	s.occluded.Store(0)
}
