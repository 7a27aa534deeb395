// Package reconcile implements the three-way merge between a project's
// local mirror, its object-store prefix, and the manifest recorded at the
// end of the previous pass.
package reconcile

import (
	"context"
	"time"

	"github.com/openmined/filevine-s3-sync/internal/objectstore"
	"github.com/openmined/filevine-s3-sync/internal/origin"
)

// skewGuard is the modification-time tolerance under which compare transfers
// nothing in either direction, even when the local bytes no longer match the
// sidecar fingerprint.
const skewGuard = 2 * time.Second

const (
	originLocal    = "local"
	originFilevine = "filevine"
)

// OriginClient is the subset of the Origin adapter the reconciler depends
// on. origin.Client satisfies it; tests supply a stub.
type OriginClient interface {
	RefreshFromOrigin(ctx context.Context, projectID int) error
	UploadFile(ctx context.Context, projectID int, localPath string, opts origin.UploadOptions) error
}

// Config holds the reconciler's cross-project settings, assembled once from
// internal/config at startup.
type Config struct {
	EnableOriginUpload bool
	RequireResolved    bool
	RootFolderID       string
}

// Reconciler is the sole mutator of local files and object-store objects
// during a sync pass. One Reconciler instance serves every project; a
// per-project mutex (held internally) guarantees at most one reconciliation
// runs per project at a time, while different projects proceed concurrently.
type Reconciler struct {
	store  objectstore.Store
	origin OriginClient
	config Config
	states *stateRegistry
}

// New builds a Reconciler. origin may be nil, in which case webhook refresh
// and Origin upload are silently skipped (EnableOriginUpload is effectively
// always false).
func New(store objectstore.Store, originClient OriginClient, cfg Config) *Reconciler {
	return &Reconciler{
		store:  store,
		origin: originClient,
		config: cfg,
		states: newStateRegistry(),
	}
}

// Reconcile runs either the fast path (opts.ChangedFile set) or a full pass
// for project, serialized against any other in-flight reconciliation for
// the same project.
func (r *Reconciler) Reconcile(ctx context.Context, project Project, opts Options) error {
	st, err := r.states.get(project)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if opts.ChangedFile != "" {
		return r.fastPath(ctx, project, st, opts)
	}
	return r.fullPass(ctx, project, st, opts)
}
