// Package blobstore abstracts the storage backends database backups are
// written to.
//
// A backup is a flat set of named blobs (one per collection file plus a
// manifest). Implementations must be safe for concurrent use; Backup
// uploads several blobs in parallel.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3
//   - minio.Store: MinIO and other S3-compatible systems
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore reads and writes named blobs.
type BlobStore interface {
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Open opens a blob for reading. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
