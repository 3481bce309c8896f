package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	magic      uint32 = 'R' | 'K'<<8 | 'N'<<16 | 'N'<<24
	version    uint16 = 1
	headerSize        = 44

	// maxPayload bounds the decoded size so that a corrupt header cannot
	// trigger a huge allocation.
	maxPayload = 1 << 36
)

// Kind is the content type of a snapshot.
type Kind uint8

const (
	KindPoints Kind = 1
	KindMesh   Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindPoints:
		return "points"
	case KindMesh:
		return "mesh"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const (
	flagNormals   uint32 = 1 << 0
	flagTexCoords uint32 = 1 << 1
)

var (
	ErrInvalidMagic       = errors.New("snapshot: invalid magic")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
	ErrChecksum           = errors.New("snapshot: checksum mismatch")
	ErrCorrupt            = errors.New("snapshot: corrupt data")
)

// ErrKindMismatch is returned when a snapshot holds a different kind of
// content than requested.
type ErrKindMismatch struct {
	Want, Got Kind
}

func (e *ErrKindMismatch) Error() string {
	return fmt.Sprintf("snapshot: want %s, got %s", e.Want, e.Got)
}

type header struct {
	Kind        Kind
	Compression Compression
	Flags       uint32
	Count0      uint64
	Count1      uint64
	StoredSize  uint64
	Checksum    uint32
}

func (h *header) marshal() []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:], magic)
	binary.LittleEndian.PutUint16(b[4:], version)
	b[6] = byte(h.Kind)
	b[7] = byte(h.Compression)
	binary.LittleEndian.PutUint32(b[8:], h.Flags)
	binary.LittleEndian.PutUint64(b[12:], h.Count0)
	binary.LittleEndian.PutUint64(b[20:], h.Count1)
	binary.LittleEndian.PutUint64(b[28:], h.StoredSize)
	binary.LittleEndian.PutUint32(b[36:], h.Checksum)
	return b
}

func (h *header) unmarshal(b []byte) error {
	if binary.LittleEndian.Uint32(b[0:]) != magic {
		return ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(b[4:]); v != version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	h.Kind = Kind(b[6])
	h.Compression = Compression(b[7])
	h.Flags = binary.LittleEndian.Uint32(b[8:])
	h.Count0 = binary.LittleEndian.Uint64(b[12:])
	h.Count1 = binary.LittleEndian.Uint64(b[20:])
	h.StoredSize = binary.LittleEndian.Uint64(b[28:])
	h.Checksum = binary.LittleEndian.Uint32(b[36:])
	return nil
}

// payloadSize is the uncompressed size implied by the header, or an error if
// it is implausible.
func (h *header) payloadSize() (uint64, error) {
	if h.Count0 > maxPayload || h.Count1 > maxPayload {
		return 0, ErrCorrupt
	}
	var size uint64
	switch h.Kind {
	case KindPoints:
		if h.Count1 != 0 || h.Flags != 0 {
			return 0, ErrCorrupt
		}
		size = h.Count0 * 12
	case KindMesh:
		if h.Count1%3 != 0 || h.Flags&^(flagNormals|flagTexCoords) != 0 {
			return 0, ErrCorrupt
		}
		perVertex := uint64(12)
		if h.Flags&flagNormals != 0 {
			perVertex += 12
		}
		if h.Flags&flagTexCoords != 0 {
			perVertex += 8
		}
		size = h.Count0*perVertex + h.Count1*4
	default:
		return 0, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, h.Kind)
	}
	if size > maxPayload || h.StoredSize > size {
		return 0, ErrCorrupt
	}
	return size, nil
}
