package snapshot

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the payload is stored.
type Compression uint8

const (
	CompressionNone Compression = 0
	// CompressionLZ4 is fast and suits snapshots that are loaded often.
	CompressionLZ4 Compression = 1
	// CompressionZstd gives the better ratio.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// compress returns the stored form of raw and the compression actually used.
// Payloads that do not shrink are stored uncompressed.
func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	if len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("snapshot: lz4: %w", err)
		}
		out = buf[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, 0, fmt.Errorf("snapshot: zstd: %w", err)
		}
		out = enc.EncodeAll(raw, nil)
		zstdEncoders.Put(enc)
	default:
		return nil, 0, fmt.Errorf("snapshot: unknown compression %d", c)
	}

	if len(out) == 0 || len(out) >= len(raw) {
		return raw, CompressionNone, nil
	}
	return out, c, nil
}

func decompress(stored []byte, c Compression, rawSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(stored) != rawSize {
			return nil, ErrCorrupt
		}
		return stored, nil
	case CompressionLZ4:
		raw := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if n != rawSize {
			return nil, ErrCorrupt
		}
		return raw, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("snapshot: zstd: %w", err)
		}
		defer zstdDecoders.Put(dec)
		raw, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if len(raw) != rawSize {
			return nil, ErrCorrupt
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, c)
	}
}
