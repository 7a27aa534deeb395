package objectstore

import (
	"context"
	"log/slog"
	"time"
)

// DryRunStore wraps a Store and stubs every mutating call to a log line,
// for the orchestrator's --dry-run mode. Reads (ListRecursive, Get) pass
// through unchanged — a dry run still needs the real three-way diff, it
// just never writes to the object store. Downloads to the local mirror are
// not stubbed.
type DryRunStore struct {
	inner Store
}

var _ Store = (*DryRunStore)(nil)

func NewDryRunStore(inner Store) *DryRunStore {
	return &DryRunStore{inner: inner}
}

func (s *DryRunStore) ListRecursive(ctx context.Context, prefix string) ([]Object, error) {
	return s.inner.ListRecursive(ctx, prefix)
}

func (s *DryRunStore) Get(ctx context.Context, key string) (*GetResult, error) {
	return s.inner.Get(ctx, key)
}

func (s *DryRunStore) Put(ctx context.Context, params PutParams) (*PutResult, error) {
	slog.Info("dry-run: would put object", "key", params.Key, "size", params.Size)
	return &PutResult{Key: params.Key, Size: params.Size, LastModified: time.Now().UTC()}, nil
}

func (s *DryRunStore) Copy(ctx context.Context, sourceKey, destinationKey string) (*CopyResult, error) {
	slog.Info("dry-run: would copy object", "from", sourceKey, "to", destinationKey)
	return &CopyResult{LastModified: time.Now().UTC()}, nil
}

func (s *DryRunStore) Delete(ctx context.Context, key string) error {
	slog.Info("dry-run: would delete object", "key", key)
	return nil
}
