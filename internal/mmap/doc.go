// Package mmap maps snapshot files read-only into memory.
//
// A Mapping is safe for concurrent reads. Close is idempotent; the slice
// returned by Bytes must not be used after Close.
//
// Unix platforms use mmap(2) and madvise(2). On Windows the file is mapped
// with CreateFileMapping/MapViewOfFile and access hints are ignored.
package mmap
