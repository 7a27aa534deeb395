package reconcile

// Options parameterizes a single call to Reconciler.Reconcile. Exactly one
// of the two modes applies: a fast-path single-file reconciliation when
// ChangedFile is set, otherwise a full pass over the whole project.
type Options struct {
	// ChangedFile is the absolute local path that triggered a fast-path
	// reconciliation. Empty means "run a full pass".
	ChangedFile string

	// HydrateOnly disables all outbound writes (S3 uploads/deletes, Origin
	// uploads); only downloads and placeholder-driven folder creation
	// occur. Used for a project's first pass, before its watcher starts.
	HydrateOnly bool
}
