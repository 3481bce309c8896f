// Package snapshot persists point sets and triangle meshes.
//
// A snapshot is a 44-byte little-endian header followed by the payload:
//
//	magic "RKNN" | version u16 | kind u8 | compression u8 | flags u32 |
//	count0 u64 | count1 u64 | stored size u64 | crc32c u32 | reserved u32
//
// The checksum covers the uncompressed payload. Points are stored as packed
// float32 triples. A mesh stores its vertices, its indices and, depending on
// the flags, per-vertex normals and texture coordinates.
//
// Save and Load move snapshots through a blobstore.Store; a Catalog keeps a
// CURRENT pointer to the latest published snapshot.
package snapshot
