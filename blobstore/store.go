package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It matches os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// ErrClosed is returned when writing to a finished WritableBlob.
var ErrClosed = errors.New("blobstore: blob closed")

// Store reads and writes named, immutable blobs. Implementations are safe for
// concurrent use.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob. Readers see either the old or the new content.
	Put(ctx context.Context, name string, data []byte) error
	// Create starts a streaming write. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	Size() int64
}

// WritableBlob is a streaming write. Abort discards everything written.
type WritableBlob interface {
	io.WriteCloser
	Abort() error
}

// ReadAll opens name and returns its whole content.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if b.Size() == 0 {
		return []byte{}, nil
	}
	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	defer rc.Close()

	data := make([]byte, b.Size())
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	return data, nil
}

// readAtSlice implements Blob.ReadAt semantics over an in-memory slice.
func readAtSlice(data, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blobstore: negative offset %d", off)
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func rangeSlice(data []byte, off, length int64) []byte {
	if off < 0 || off >= int64(len(data)) || length <= 0 {
		return nil
	}
	end := off + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[off:end]
}
