package rayknn

import (
	"context"
	"errors"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/internal/handle"
	"github.com/hupe1980/rayknn/mesh"
)

// SceneHandle identifies a scene owned by a Device.
type SceneHandle uint64

// AcceleratorHandle identifies a k-NN accelerator owned by a Device.
type AcceleratorHandle uint64

// CacheHandle identifies a query cache owned by a Device.
type CacheHandle uint64

// Device owns scenes, accelerators and query caches behind opaque handles.
//
// Handles carry a generation: a handle whose object was deleted fails with
// ErrStaleHandle even after its slot is reused, and a handle that was never
// issued fails with ErrInvalidHandle. A Device is safe for concurrent use;
// the objects behind the handles keep their own concurrency rules.
type Device struct {
	optFns []Option
	opts   options

	scenes *handle.Registry[*Scene]
	accels *handle.Registry[*Accelerator]
	caches *handle.Registry[*QueryCache]
}

// NewDevice creates a device. The options are inherited by every scene and
// accelerator it creates.
func NewDevice(optFns ...Option) *Device {
	o := applyOptions(optFns)
	o.logger = o.logger.WithComponent("device")
	return &Device{
		optFns: optFns,
		opts:   o,
		scenes: handle.NewRegistry[*Scene](),
		accels: handle.NewRegistry[*Accelerator](),
		caches: handle.NewRegistry[*QueryCache](),
	}
}

func handleErr(kind string, h uint64, err error) error {
	return &ErrHandle{Kind: kind, Handle: h, cause: err}
}

// InitScene creates an empty scene.
func (d *Device) InitScene() SceneHandle {
	return SceneHandle(d.scenes.Insert(NewScene(d.optFns...)))
}

func (d *Device) scene(h SceneHandle) (*Scene, error) {
	s, err := d.scenes.Get(handle.Handle(h))
	if err != nil {
		return nil, handleErr("scene", uint64(h), err)
	}
	return s, nil
}

// AddTriangleMesh adds an indexed triangle list to a scene and returns the
// mesh id. The arrays are copied.
func (d *Device) AddTriangleMesh(h SceneHandle, vertices []geom.Vec3, indices []uint32) (uint32, error) {
	s, err := d.scene(h)
	if err != nil {
		return 0, err
	}
	m, err := mesh.New(mesh.Data{Vertices: vertices, Indices: indices})
	if err != nil {
		return 0, err
	}
	return s.AddMesh(m)
}

// FinalizeScene commits a scene.
func (d *Device) FinalizeScene(ctx context.Context, h SceneHandle) error {
	s, err := d.scene(h)
	if err != nil {
		return err
	}
	return s.Commit(ctx)
}

// TraceSingle traces one ray. On a miss the returned hit has MeshID InvalidID.
func (d *Device) TraceSingle(h SceneHandle, ray geom.Ray) (RawHit, error) {
	s, err := d.scene(h)
	if err != nil {
		return RawHit{MeshID: InvalidID, PrimID: InvalidID}, err
	}
	hit, err := s.Trace(ray)
	if err != nil {
		return RawHit{MeshID: InvalidID, PrimID: InvalidID}, err
	}
	return rawHit(hit), nil
}

// IsOccluded reports whether anything is hit along ray within
// [ray.MinDistance, maxDistance].
func (d *Device) IsOccluded(h SceneHandle, ray geom.Ray, maxDistance float32) (bool, error) {
	s, err := d.scene(h)
	if err != nil {
		return false, err
	}
	return s.IsOccluded(ShadowRay{Ray: ray, MaxDistance: maxDistance})
}

// DeleteScene releases a scene. Its handle becomes stale.
func (d *Device) DeleteScene(h SceneHandle) error {
	s, err := d.scenes.Remove(handle.Handle(h))
	if err != nil {
		return handleErr("scene", uint64(h), err)
	}
	return s.Release()
}

// NewKnnAccelerator creates an accelerator without points.
func (d *Device) NewKnnAccelerator() AcceleratorHandle {
	return AcceleratorHandle(d.accels.Insert(NewAccelerator(d.optFns...)))
}

func (d *Device) accel(h AcceleratorHandle) (*Accelerator, error) {
	a, err := d.accels.Get(handle.Handle(h))
	if err != nil {
		return nil, handleErr("accelerator", uint64(h), err)
	}
	return a, nil
}

// ReleaseKnnAccelerator releases an accelerator. Its handle becomes stale.
func (d *Device) ReleaseKnnAccelerator(h AcceleratorHandle) error {
	a, err := d.accels.Remove(handle.Handle(h))
	if err != nil {
		return handleErr("accelerator", uint64(h), err)
	}
	return a.Release()
}

// SetKnnPoints rebuilds an accelerator over a copy of points.
func (d *Device) SetKnnPoints(ctx context.Context, h AcceleratorHandle, points []geom.Vec3) error {
	a, err := d.accel(h)
	if err != nil {
		return err
	}
	return a.SetPoints(ctx, points)
}

// NewKnnQueryCache creates a query cache.
func (d *Device) NewKnnQueryCache(capacityHint int) CacheHandle {
	return CacheHandle(d.caches.Insert(NewQueryCache(capacityHint)))
}

func (d *Device) cache(h CacheHandle) (*QueryCache, error) {
	c, err := d.caches.Get(handle.Handle(h))
	if err != nil {
		return nil, handleErr("query cache", uint64(h), err)
	}
	return c, nil
}

// ReleaseKnnQueryCache releases a query cache. Its handle becomes stale.
func (d *Device) ReleaseKnnQueryCache(h CacheHandle) error {
	c, err := d.caches.Get(handle.Handle(h))
	if err != nil {
		return handleErr("query cache", uint64(h), err)
	}
	if err := c.Release(); err != nil {
		return err
	}
	_, err = d.caches.Remove(handle.Handle(h))
	if err != nil {
		return handleErr("query cache", uint64(h), err)
	}
	return nil
}

// KnnQuery runs a k-NN query. The returned neighbors are unordered and owned
// by the cache: they stay valid until the cache serves its next query.
func (d *Device) KnnQuery(ah AcceleratorHandle, ch CacheHandle, pos geom.Vec3, radius float32, k int) ([]Neighbor, QueryResult, error) {
	a, err := d.accel(ah)
	if err != nil {
		return nil, QueryResult{}, err
	}
	c, err := d.cache(ch)
	if err != nil {
		return nil, QueryResult{}, err
	}

	res, err := a.KnnQuery(pos, radius, k, c)
	if err != nil {
		return nil, res, err
	}
	return c.Neighbors(), res, nil
}

// Close releases every object still owned by the device. All handles become
// stale.
func (d *Device) Close() error {
	var errs []error
	for _, s := range d.scenes.Drain() {
		if err := s.Release(); err != nil && !errors.Is(err, ErrReleased) {
			errs = append(errs, err)
		}
	}
	for _, a := range d.accels.Drain() {
		if err := a.Release(); err != nil && !errors.Is(err, ErrReleased) {
			errs = append(errs, err)
		}
	}
	for _, c := range d.caches.Drain() {
		if err := c.Release(); err != nil && !errors.Is(err, ErrReleased) {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		d.opts.logger.Error("close failed", "error", err)
		d.opts.report(ErrorInvalidOperation, err.Error())
	}
	return err
}
