package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openmined/filevine-s3-sync/internal/fingerprint"
	"github.com/openmined/filevine-s3-sync/internal/localscan"
	"github.com/openmined/filevine-s3-sync/internal/manifest"
	"github.com/openmined/filevine-s3-sync/internal/objectstore"
	"github.com/openmined/filevine-s3-sync/internal/pathutil"
)

// unionEntry merges what the three sources know about one lowercased key.
type unionEntry struct {
	originalKey string // case-preserving form, preferring S3's relOriginal
	local       *localscan.Entry
	s3          *objectstore.Object
	prev        *manifest.Entry
}

func (r *Reconciler) fullPass(ctx context.Context, project Project, st *projectState, opts Options) error {
	if !opts.HydrateOnly && r.origin != nil {
		if err := r.origin.RefreshFromOrigin(ctx, project.ID); err != nil {
			slog.Warn("webhook refresh failed, continuing with stale origin state", "project", project.Name, "error", err)
		}
	}

	local, err := localscan.Scan(project.LocalRoot)
	if err != nil {
		return fmt.Errorf("scan local %q: %w", project.LocalRoot, err)
	}

	objects, err := r.store.ListRecursive(ctx, project.objectPrefix)
	if err != nil {
		return fmt.Errorf("list %q: %w", project.objectPrefix, err)
	}

	union := make(map[string]*unionEntry)

	for relKey, entry := range local {
		lower := strings.ToLower(relKey)
		e := unionEntryFor(union, lower, relKey)
		localCopy := entry
		e.local = &localCopy
	}

	for i := range objects {
		obj := objects[i]
		relKey, ok := project.RelKey(obj.Key)
		if !ok {
			continue
		}
		if relKey == "" {
			continue
		}
		lower := strings.ToLower(relKey)
		e := unionEntryFor(union, lower, relKey)
		e.s3 = &objects[i]
	}

	for _, relKey := range st.manifest.Paths() {
		entry, ok := st.manifest.Get(relKey)
		if !ok {
			continue
		}
		lower := strings.ToLower(relKey)
		// The manifest's form is used only for keys neither side has now.
		e, ok := union[lower]
		if !ok {
			e = &unionEntry{originalKey: relKey}
			union[lower] = e
		}
		entryCopy := entry
		e.prev = &entryCopy
	}

	keys := make([]sortKey, 0, len(union))
	for lower, e := range union {
		base := filepath.Base(e.originalKey)
		// Placeholders are themselves ignored for content propagation
		// (pathutil.IsIgnored says so too), but they still need their own
		// key so processKey's placeholder branch can run; processKey
		// returns before any content transfer for them, so this bypass
		// never leaks a placeholder into upload/download handling.
		if pathutil.IsPlaceholder(base) {
			keys = append(keys, newSortKey(lower, e.originalKey))
			continue
		}
		if pathutil.IsIgnored(base) {
			continue
		}
		keys = append(keys, newSortKey(lower, e.originalKey))
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	for _, k := range keys {
		e := union[k.lowerKey]
		if err := r.processKey(ctx, project, st, opts, k, e); err != nil {
			slog.Error("reconcile key failed, continuing pass", "project", project.Name, "key", e.originalKey, "error", err)
		}
	}

	return st.manifest.Save()
}

func unionEntryFor(union map[string]*unionEntry, lower, originalKey string) *unionEntry {
	e, ok := union[lower]
	if !ok {
		e = &unionEntry{originalKey: originalKey}
		union[lower] = e
		return e
	}
	// Prefer the S3 original-case form for writes; local's form is used
	// only when the key doesn't exist in S3 at all.
	if e.s3 == nil {
		e.originalKey = originalKey
	}
	return e
}

func (r *Reconciler) processKey(ctx context.Context, project Project, st *projectState, opts Options, k sortKey, e *unionEntry) error {
	if k.isPlaceholder {
		return r.processPlaceholder(project, st, k, e)
	}

	inLocal := e.local != nil
	inS3 := e.s3 != nil
	inPrev := e.prev != nil

	switch {
	case inPrev && !inS3 && e.prev.Source == manifest.SourceS3:
		return r.deleteLocalIfPresent(project, st, e)

	case inPrev && !inLocal && e.prev.Source == manifest.SourceLocal:
		if opts.HydrateOnly {
			return nil
		}
		return r.deleteRemote(ctx, project, st, e)

	case inLocal && inS3:
		return r.compare(ctx, project, st, opts, e)

	case inLocal && !inS3:
		if opts.HydrateOnly {
			return nil
		}
		return r.uploadNewLocal(ctx, project, st, e)

	case inS3 && !inLocal:
		return r.downloadNewRemote(ctx, project, st, e)
	}

	return nil
}

func (r *Reconciler) processPlaceholder(project Project, st *projectState, k sortKey, e *unionEntry) error {
	relDir := strings.TrimSuffix(e.originalKey, ".placeholder")
	relDir = strings.TrimSuffix(relDir, "/")

	dir := project.LocalRoot
	if relDir != "" {
		dir = filepath.Join(project.LocalRoot, filepath.FromSlash(relDir))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure placeholder dir %q: %w", dir, err)
	}

	lastModified := time.Now().UTC()
	if e.s3 != nil {
		lastModified = e.s3.LastModified
	}
	// Re-derive the canonical key from relDir rather than trusting
	// e.originalKey's form verbatim, so the manifest always records the
	// same placeholderKey the rest of the package builds object keys with.
	st.manifest.Set(placeholderKey(relDir), manifest.SourceS3, fingerprint.Fingerprint{}, lastModified)
	return nil
}

func (r *Reconciler) deleteLocalIfPresent(project Project, st *projectState, e *unionEntry) error {
	absPath := filepath.Join(project.LocalRoot, filepath.FromSlash(e.originalKey))
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete local %q: %w", absPath, err)
	}
	st.sidecars.Delete(e.originalKey)
	st.manifest.Delete(e.originalKey)
	return nil
}

func (r *Reconciler) deleteRemote(ctx context.Context, project Project, st *projectState, e *unionEntry) error {
	objectKey := project.ObjectKey(e.originalKey)
	if err := r.store.Delete(ctx, objectKey); err != nil {
		return fmt.Errorf("delete remote %q: %w", objectKey, err)
	}
	st.sidecars.Delete(e.originalKey)
	st.manifest.Delete(e.originalKey)
	return nil
}

func (r *Reconciler) uploadNewLocal(ctx context.Context, project Project, st *projectState, e *unionEntry) error {
	absPath := filepath.Join(project.LocalRoot, filepath.FromSlash(e.originalKey))

	curr, err := fingerprint.Of(absPath)
	if err != nil {
		slog.Warn("fingerprint failed, skipping new local file", "path", absPath, "error", err)
		return nil
	}

	if sc, ok := st.sidecars.Load(e.originalKey); ok && sc.Origin == originFilevine && sc.Fingerprint.Equal(curr) {
		// Downloaded earlier this pass (or a prior one) and not yet
		// manifest-recorded; echo shield still applies.
		return nil
	}

	return r.uploadLocalFile(ctx, project, st, e.originalKey, absPath, curr)
}

func (r *Reconciler) downloadNewRemote(ctx context.Context, project Project, st *projectState, e *unionEntry) error {
	return r.downloadToLocal(ctx, project, st, e.originalKey, e.s3)
}

func (r *Reconciler) downloadToLocal(ctx context.Context, project Project, st *projectState, relKey string, obj *objectstore.Object) error {
	absPath := filepath.Join(project.LocalRoot, filepath.FromSlash(relKey))

	objectKey := project.ObjectKey(relKey)
	result, err := r.store.Get(ctx, objectKey)
	if err != nil {
		return fmt.Errorf("download %q: %w", objectKey, err)
	}
	defer result.Body.Close()

	if err := writeFileAtomically(absPath, result.Body); err != nil {
		return fmt.Errorf("write %q: %w", absPath, err)
	}

	curr, err := fingerprint.Of(absPath)
	if err != nil {
		return fmt.Errorf("fingerprint %q: %w", absPath, err)
	}

	now := time.Now().UTC()
	if err := st.sidecars.Save(relKey, fingerprint.Sidecar{Origin: originFilevine, Fingerprint: curr, MarkedAt: now}); err != nil {
		slog.Warn("sidecar save failed", "project", project.Name, "key", relKey, "error", err)
	}
	st.manifest.Set(relKey, manifest.SourceS3, curr, obj.LastModified)

	slog.Debug("downloaded", "project", project.Name, "key", relKey, "size", humanize.Bytes(uint64(curr.Size)))
	return nil
}

// compare handles the "both exist" case: unchanged bytes always win, then
// the skew guard, then last-writer-wins by modification time.
func (r *Reconciler) compare(ctx context.Context, project Project, st *projectState, opts Options, e *unionEntry) error {
	absPath := filepath.Join(project.LocalRoot, filepath.FromSlash(e.originalKey))

	curr, err := fingerprint.Of(absPath)
	if err != nil {
		slog.Warn("fingerprint failed, skipping compare", "path", absPath, "error", err)
		return nil
	}

	sc, hasSidecar := st.sidecars.Load(e.originalKey)
	if hasSidecar && sc.Fingerprint.Equal(curr) {
		// Bytes unchanged on disk since the last reconciled write; skip
		// regardless of timestamp drift from touch-only operations.
		st.manifest.Set(e.originalKey, sourceFromSidecar(sc), curr, e.local.LastModified)
		return nil
	}

	lt := e.local.LastModified
	stT := e.s3.LastModified
	delta := lt.Sub(stT)
	if delta < 0 {
		delta = -delta
	}
	if delta < skewGuard {
		st.manifest.Set(e.originalKey, sourceFromSidecar(sc), curr, lt)
		return nil
	}

	if lt.After(stT) {
		if opts.HydrateOnly {
			return nil
		}
		return r.uploadLocalFile(ctx, project, st, e.originalKey, absPath, curr)
	}

	return r.downloadToLocal(ctx, project, st, e.originalKey, e.s3)
}

func sourceFromSidecar(sc *fingerprint.Sidecar) manifest.Source {
	if sc != nil && sc.Origin == originFilevine {
		return manifest.SourceS3
	}
	return manifest.SourceLocal
}

