package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/mesh"
	"github.com/hupe1980/rayknn/resource"
	"github.com/klauspost/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Options configures encoding and persistence.
type Options struct {
	// Compression of the payload. Default CompressionLZ4.
	Compression Compression
	// Resources, if set, accounts decode buffers and throttles store IO.
	Resources *resource.Controller
}

// WithCompression sets the payload compression.
func WithCompression(c Compression) func(*Options) {
	return func(o *Options) { o.Compression = c }
}

// WithResources accounts memory and IO against rc.
func WithResources(rc *resource.Controller) func(*Options) {
	return func(o *Options) { o.Resources = rc }
}

func applyOptions(optFns []func(*Options)) Options {
	o := Options{Compression: CompressionLZ4}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

func putVec3(b []byte, v geom.Vec3) []byte {
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v.X))
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v.Y))
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v.Z))
}

func getVec3(b []byte) geom.Vec3 {
	return geom.Vec3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func appendVec3s(b []byte, vs []geom.Vec3) []byte {
	for _, v := range vs {
		b = putVec3(b, v)
	}
	return b
}

func readVec3s(b []byte, n int) ([]geom.Vec3, []byte) {
	vs := make([]geom.Vec3, n)
	for i := range vs {
		vs[i] = getVec3(b[i*12:])
	}
	return vs, b[n*12:]
}

func write(w io.Writer, h header, raw []byte, o Options) error {
	stored, c, err := compress(raw, o.Compression)
	if err != nil {
		return err
	}
	h.Compression = c
	h.StoredSize = uint64(len(stored))
	h.Checksum = crc32.Checksum(raw, castagnoli)

	if _, err := w.Write(h.marshal()); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// read decodes the header and returns the verified, uncompressed payload.
func read(r io.Reader, want Kind, o Options) (header, []byte, func(), error) {
	var h header
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, nil, nil, fmt.Errorf("%w: short header", ErrCorrupt)
		}
		return h, nil, nil, err
	}
	if err := h.unmarshal(buf); err != nil {
		return h, nil, nil, err
	}
	if h.Kind != want {
		return h, nil, nil, &ErrKindMismatch{Want: want, Got: h.Kind}
	}
	size, err := h.payloadSize()
	if err != nil {
		return h, nil, nil, err
	}

	reserved := int64(size + h.StoredSize)
	if err := o.Resources.AcquireMemory(reserved); err != nil {
		return h, nil, nil, err
	}
	release := func() { o.Resources.ReleaseMemory(reserved) }

	stored := make([]byte, h.StoredSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		release()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, nil, nil, fmt.Errorf("%w: short payload", ErrCorrupt)
		}
		return h, nil, nil, err
	}
	raw, err := decompress(stored, h.Compression, int(size))
	if err != nil {
		release()
		return h, nil, nil, err
	}
	if crc32.Checksum(raw, castagnoli) != h.Checksum {
		release()
		return h, nil, nil, ErrChecksum
	}
	return h, raw, release, nil
}

// EncodePoints writes pts as a points snapshot.
func EncodePoints(w io.Writer, pts []geom.Vec3, optFns ...func(*Options)) error {
	raw := appendVec3s(make([]byte, 0, len(pts)*12), pts)
	return write(w, header{Kind: KindPoints, Count0: uint64(len(pts))}, raw, applyOptions(optFns))
}

// DecodePoints reads a points snapshot.
func DecodePoints(r io.Reader, optFns ...func(*Options)) ([]geom.Vec3, error) {
	h, raw, release, err := read(r, KindPoints, applyOptions(optFns))
	if err != nil {
		return nil, err
	}
	defer release()

	pts, _ := readVec3s(raw, int(h.Count0))
	return pts, nil
}

// EncodeMesh writes m as a mesh snapshot, including its optional shading
// normals and texture coordinates.
func EncodeMesh(w io.Writer, m *mesh.TriangleMesh, optFns ...func(*Options)) error {
	h := header{
		Kind:   KindMesh,
		Count0: uint64(m.NumVertices()),
		Count1: uint64(len(m.Indices())),
	}
	if m.HasShadingNormals() {
		h.Flags |= flagNormals
	}
	if m.HasTextureCoordinates() {
		h.Flags |= flagTexCoords
	}

	raw := make([]byte, 0, m.NumVertices()*32+len(m.Indices())*4)
	raw = appendVec3s(raw, m.Vertices())
	for _, idx := range m.Indices() {
		raw = binary.LittleEndian.AppendUint32(raw, idx)
	}
	raw = appendVec3s(raw, m.Normals())
	for _, tc := range m.TexCoords() {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(tc.U))
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(tc.V))
	}
	return write(w, h, raw, applyOptions(optFns))
}

// DecodeMesh reads a mesh snapshot. The mesh is validated like any other.
func DecodeMesh(r io.Reader, optFns ...func(*Options)) (*mesh.TriangleMesh, error) {
	h, raw, release, err := read(r, KindMesh, applyOptions(optFns))
	if err != nil {
		return nil, err
	}
	defer release()

	nv, ni := int(h.Count0), int(h.Count1)
	var d mesh.Data
	d.Vertices, raw = readVec3s(raw, nv)

	d.Indices = make([]uint32, ni)
	for i := range d.Indices {
		d.Indices[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	raw = raw[ni*4:]

	if h.Flags&flagNormals != 0 {
		d.Normals, raw = readVec3s(raw, nv)
	}
	if h.Flags&flagTexCoords != 0 {
		d.TexCoords = make([]mesh.TexCoord, nv)
		for i := range d.TexCoords {
			d.TexCoords[i] = mesh.TexCoord{
				U: math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:])),
				V: math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:])),
			}
		}
	}

	m, err := mesh.New(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return m, nil
}
