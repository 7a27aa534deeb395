package objectstore

import (
	"context"
	"io"
	"time"
)

// Store is the object-store side of the reconciler. Keys are full object
// keys; callers build them by prefixing a project-relative forward-slash
// path with the project's root key before calling into Store.
type Store interface {
	// ListRecursive returns every object whose key starts with prefix,
	// paginating internally. The prefix itself is not stripped from the
	// returned keys.
	ListRecursive(ctx context.Context, prefix string) ([]Object, error)

	Get(ctx context.Context, key string) (*GetResult, error)
	Put(ctx context.Context, params PutParams) (*PutResult, error)
	Copy(ctx context.Context, sourceKey, destinationKey string) (*CopyResult, error)

	// Delete is idempotent: deleting an already-absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Object describes a single entry returned by ListRecursive.
type Object struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

type GetResult struct {
	Body         io.ReadCloser
	ETag         string
	Size         int64
	LastModified time.Time
}

type PutParams struct {
	Key  string
	Size int64
	Body io.Reader

	// Metadata is stored as S3 user metadata (x-amz-meta-*).
	Metadata map[string]string

	// Tags is stored as the object's tag set.
	Tags map[string]string
}

type PutResult struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

type CopyResult struct {
	ETag         string
	LastModified time.Time
}

// listingTimestampLayout is the format a shell-based predecessor tool (`aws
// s3 ls`) would have written into an older manifest, UTC, no offset.
const listingTimestampLayout = "2006-01-02 15:04:05"

// ParseListingTimestamp parses the "yyyy-MM-dd HH:mm:ss" listing form as a
// UTC instant. Nothing in this module calls it: the SDK returns time.Time
// values directly, and manifest.Load decodes its timestamps as RFC 3339.
func ParseListingTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(listingTimestampLayout, s, time.UTC)
}
