// Package blobstore stores named, immutable blobs such as point and mesh
// snapshots.
//
// Built-in implementations:
//
//   - MemoryStore: in-process, for tests
//   - LocalStore: files below a directory, read through memory mappings
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// A Store is safe for concurrent use. Blobs are written either at once with
// Put or streamed with Create; in both cases a reader sees the complete old
// or the complete new content.
package blobstore
