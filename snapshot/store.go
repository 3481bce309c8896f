package snapshot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/rayknn/blobstore"
	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/mesh"
	"github.com/hupe1980/rayknn/resource"
)

func save(ctx context.Context, store blobstore.Store, name string, o Options, encode func(io.Writer) error) error {
	blob, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", name, err)
	}

	bw := bufio.NewWriterSize(resource.NewRateLimitedWriter(ctx, blob, o.Resources), 256<<10)
	if err := encode(bw); err != nil {
		_ = blob.Abort()
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		_ = blob.Abort()
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := blob.Close(); err != nil {
		return fmt.Errorf("snapshot: commit %s: %w", name, err)
	}
	return nil
}

func load(ctx context.Context, store blobstore.Store, name string, o Options, decode func(io.Reader) error) error {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", name, err)
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	defer rc.Close()

	r := bufio.NewReaderSize(resource.NewRateLimitedReader(ctx, rc, o.Resources), 256<<10)
	if err := decode(r); err != nil {
		return fmt.Errorf("snapshot: decode %s: %w", name, err)
	}
	return nil
}

// SavePoints writes pts to store under name.
func SavePoints(ctx context.Context, store blobstore.Store, name string, pts []geom.Vec3, optFns ...func(*Options)) error {
	o := applyOptions(optFns)
	return save(ctx, store, name, o, func(w io.Writer) error {
		return EncodePoints(w, pts, optFns...)
	})
}

// LoadPoints reads the points stored under name.
func LoadPoints(ctx context.Context, store blobstore.Store, name string, optFns ...func(*Options)) ([]geom.Vec3, error) {
	var pts []geom.Vec3
	err := load(ctx, store, name, applyOptions(optFns), func(r io.Reader) error {
		var err error
		pts, err = DecodePoints(r, optFns...)
		return err
	})
	return pts, err
}

// SaveMesh writes m to store under name.
func SaveMesh(ctx context.Context, store blobstore.Store, name string, m *mesh.TriangleMesh, optFns ...func(*Options)) error {
	o := applyOptions(optFns)
	return save(ctx, store, name, o, func(w io.Writer) error {
		return EncodeMesh(w, m, optFns...)
	})
}

// LoadMesh reads the mesh stored under name.
func LoadMesh(ctx context.Context, store blobstore.Store, name string, optFns ...func(*Options)) (*mesh.TriangleMesh, error) {
	var m *mesh.TriangleMesh
	err := load(ctx, store, name, applyOptions(optFns), func(r io.Reader) error {
		var err error
		m, err = DecodeMesh(r, optFns...)
		return err
	})
	return m, err
}

// CurrentName is the name of the pointer blob maintained by a Catalog.
const CurrentName = "CURRENT"

// Catalog tracks which snapshot in a store is the current one. The pointer is
// a small blob written with Put, so publishing is atomic on every store. With
// an s3.DDBCommitStore concurrent publishers are serialized as well.
type Catalog struct {
	store blobstore.Store
}

// NewCatalog creates a catalog over store.
func NewCatalog(store blobstore.Store) *Catalog {
	return &Catalog{store: store}
}

// Publish makes name the current snapshot. The snapshot must exist.
func (c *Catalog) Publish(ctx context.Context, name string) error {
	if name == "" || name == CurrentName || strings.ContainsAny(name, "\n") {
		return fmt.Errorf("snapshot: invalid name %q", name)
	}
	b, err := c.store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("snapshot: publish %s: %w", name, err)
	}
	_ = b.Close()

	if err := c.store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return fmt.Errorf("snapshot: publish %s: %w", name, err)
	}
	return nil
}

// Current returns the name of the current snapshot. It fails with an error
// matching blobstore.ErrNotFound if nothing was published yet.
func (c *Catalog) Current(ctx context.Context) (string, error) {
	data, err := blobstore.ReadAll(ctx, c.store, CurrentName)
	if err != nil {
		return "", fmt.Errorf("snapshot: current: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
