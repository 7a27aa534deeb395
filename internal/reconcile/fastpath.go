package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/filevine-s3-sync/internal/fingerprint"
	"github.com/openmined/filevine-s3-sync/internal/manifest"
	"github.com/openmined/filevine-s3-sync/internal/objectstore"
	"github.com/openmined/filevine-s3-sync/internal/origin"
	"github.com/openmined/filevine-s3-sync/internal/pathutil"
)

// fastPath reconciles a single file the watcher observed changing. It never
// touches any other key in the project.
func (r *Reconciler) fastPath(ctx context.Context, project Project, st *projectState, opts Options) error {
	base := filepath.Base(opts.ChangedFile)
	info, statErr := os.Stat(opts.ChangedFile)
	exists := statErr == nil

	if exists && info.IsDir() {
		return nil
	}
	if pathutil.IsIgnored(base) {
		return nil
	}
	if opts.HydrateOnly {
		return nil
	}

	relKey, err := filepath.Rel(project.LocalRoot, opts.ChangedFile)
	if err != nil {
		return fmt.Errorf("fast path: relativize %q: %w", opts.ChangedFile, err)
	}
	relKey = filepath.ToSlash(relKey)
	objectKey := project.ObjectKey(relKey)

	if !exists {
		if err := r.store.Delete(ctx, objectKey); err != nil {
			slog.Error("fast path delete failed", "project", project.Name, "key", relKey, "error", err)
			return err
		}
		st.sidecars.Delete(relKey)
		st.manifest.Delete(relKey)
		return st.manifest.Save()
	}

	curr, err := fingerprint.Of(opts.ChangedFile)
	if err != nil {
		slog.Warn("fast path fingerprint failed, skipping", "project", project.Name, "key", relKey, "error", err)
		return nil
	}

	if sc, ok := st.sidecars.Load(relKey); ok && sc.Fingerprint.Equal(curr) {
		// Echo shield: this write is the local side of an inbound copy.
		return nil
	}

	return r.uploadLocalFile(ctx, project, st, relKey, opts.ChangedFile, curr)
}

// uploadLocalFile pushes relKey's current content to the object store,
// records the sidecar/manifest state, and best-effort mirrors it to Origin.
func (r *Reconciler) uploadLocalFile(ctx context.Context, project Project, st *projectState, relKey, absPath string, curr fingerprint.Fingerprint) error {
	file, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", absPath, err)
	}
	defer file.Close()

	objectKey := project.ObjectKey(relKey)
	if _, err := r.store.Put(ctx, objectstore.PutParams{
		Key:  objectKey,
		Size: curr.Size,
		Body: file,
	}); err != nil {
		slog.Error("upload failed", "project", project.Name, "key", relKey, "error", err)
		return err
	}

	now := time.Now().UTC()
	if err := st.sidecars.Save(relKey, fingerprint.Sidecar{Origin: originLocal, Fingerprint: curr, MarkedAt: now}); err != nil {
		slog.Warn("sidecar save failed", "project", project.Name, "key", relKey, "error", err)
	}
	st.manifest.Set(relKey, manifest.SourceLocal, curr, now)
	if err := st.manifest.Save(); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	r.mirrorToOrigin(ctx, project, relKey, absPath)
	return nil
}

// mirrorToOrigin best-effort pushes the file to Origin too. A failure here
// never fails the reconciliation — the object store write already
// succeeded and is authoritative.
func (r *Reconciler) mirrorToOrigin(ctx context.Context, project Project, relKey, absPath string) {
	if r.origin == nil || !r.config.EnableOriginUpload || project.ID <= 0 {
		return
	}

	folderSubpath := filepath.ToSlash(filepath.Dir(relKey))
	if folderSubpath == "." {
		folderSubpath = ""
	}

	if err := r.origin.UploadFile(ctx, project.ID, absPath, origin.UploadOptions{
		FolderSubpath:   folderSubpath,
		RootFolderID:    r.config.RootFolderID,
		RequireResolved: r.config.RequireResolved,
	}); err != nil {
		slog.Error("origin upload failed", "project", project.Name, "key", relKey, "error", err)
	}
}
