// Package blobstore provides the opaque object storage abstraction (C1) used
// to hold uploaded document bytes. Implementations must be safe for
// concurrent use.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("blobstore: object not found")
	ErrAccessDenied  = errors.New("blobstore: access denied")
	ErrBucketMissing = errors.New("blobstore: bucket does not exist")
)

// Store is the narrow capability set the processing pipeline needs from an
// object storage backend: upload, streamed upload, download-to-path,
// delete, and presigned read URLs.
type Store interface {
	// Put uploads the full content of data under name, returning the
	// stored name on success.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)

	// PutStream uploads content read from r (exactly length bytes) under
	// name, returning the stored name on success.
	PutStream(ctx context.Context, name string, r io.Reader, length int64, contentType string) (string, error)

	// Get downloads the object named name to localPath.
	Get(ctx context.Context, name string, localPath string) error

	// Delete removes the object named name. Deleting a missing object is
	// not an error.
	Delete(ctx context.Context, name string) error

	// PresignedGet returns a time-limited URL for reading the object named
	// name.
	PresignedGet(ctx context.Context, name string, ttl time.Duration) (string, error)
}
