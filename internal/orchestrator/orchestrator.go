// Package orchestrator drives discovery, hydration, watcher lifecycle, and
// the background poll loop described in spec §4.9, on top of
// internal/reconcile's per-project reconciliation engine.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmined/filevine-s3-sync/internal/config"
	"github.com/openmined/filevine-s3-sync/internal/objectstore"
	"github.com/openmined/filevine-s3-sync/internal/origin"
	"github.com/openmined/filevine-s3-sync/internal/pathutil"
	"github.com/openmined/filevine-s3-sync/internal/projectmap"
	"github.com/openmined/filevine-s3-sync/internal/reconcile"
	"github.com/openmined/filevine-s3-sync/internal/watcher"
)

// Orchestrator owns project discovery and the set of live per-project
// watchers, and is the single writer of the shared project map.
type Orchestrator struct {
	cfg        *config.Config
	store      objectstore.Store
	origin     *origin.Client
	reconciler *reconcile.Reconciler
	projectMap *projectmap.Map

	mu       sync.Mutex
	projects map[string]reconcile.Project
	byID     map[int]reconcile.Project
	watchers map[string]*watcher.Watcher
}

// New builds an Orchestrator. All dependencies are already constructed —
// the orchestrator only sequences their use.
func New(cfg *config.Config, store objectstore.Store, originClient *origin.Client, reconciler *reconcile.Reconciler, projectMap *projectmap.Map) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		origin:     originClient,
		reconciler: reconciler,
		projectMap: projectMap,
		projects:   make(map[string]reconcile.Project),
		byID:       make(map[int]reconcile.Project),
		watchers:   make(map[string]*watcher.Watcher),
	}
}

// ProjectByID implements webhook.ProjectLookup.
func (o *Orchestrator) ProjectByID(projectID int) (reconcile.Project, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.byID[projectID]
	return p, ok
}

// Reconcile implements webhook.Reconciler by delegating straight to the
// shared *reconcile.Reconciler — the orchestrator adds no behavior here,
// it just satisfies the narrower interface the webhook router depends on.
func (o *Orchestrator) Reconcile(ctx context.Context, project reconcile.Project, opts reconcile.Options) error {
	return o.reconciler.Reconcile(ctx, project, opts)
}

// Run performs the startup sequence from §4.9 — discover, serially hydrate,
// start watchers, one full pass — then runs the 300s poll loop until ctx is
// canceled. Each per-project watcher and the poll loop are supervised by an
// errgroup so a panic-free, unrecoverable failure in one brings the whole
// orchestrator down rather than silently wedging.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if err := o.discoverAndOnboard(ctx, g); err != nil {
		return fmt.Errorf("initial discovery: %w", err)
	}

	g.Go(func() error {
		return o.pollLoop(ctx, g)
	})

	err := g.Wait()
	o.stopAllWatchers()
	return err
}

// discoverAndOnboard lists projects from the object store and onboards any
// not already known: hydrate, then start its watcher, then one full pass.
// Serial hydration is required — parallel hydration could cause watchers on
// incomplete trees to interpret downloads as local creations.
func (o *Orchestrator) discoverAndOnboard(ctx context.Context, g *errgroup.Group) error {
	names, err := discoverProjectNames(ctx, o.store, o.cfg.S3RootPrefix)
	if err != nil {
		return err
	}

	for _, name := range names {
		o.mu.Lock()
		_, known := o.projects[pathutil.Sanitize(name)]
		o.mu.Unlock()
		if known {
			if err := o.fullPass(ctx, pathutil.Sanitize(name)); err != nil {
				slog.Error("full pass failed", "project", name, "error", err)
			}
			continue
		}

		if err := o.onboardProject(ctx, g, name); err != nil {
			slog.Error("onboard project failed", "project", name, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) onboardProject(ctx context.Context, g *errgroup.Group, name string) error {
	localRoot := filepath.Join(o.cfg.ZDriveRoot, pathutil.Sanitize(name))
	if err := os.MkdirAll(localRoot, 0o755); err != nil {
		return fmt.Errorf("create local root %q: %w", localRoot, err)
	}
	project := reconcile.NewProject(name, localRoot, o.cfg.S3RootPrefix, o.cfg.OrgFolderName)

	if id, ok := o.projectMap.Resolve(project.Name); ok {
		project.ID = id
	} else if o.origin != nil {
		if id, found, err := o.origin.ResolveProjectID(ctx, project.Name); err != nil {
			slog.Warn("resolve project id failed, continuing unresolved", "project", project.Name, "error", err)
		} else if found {
			project.ID = id
			if err := o.projectMap.Record(project.Name, id); err != nil {
				slog.Warn("project map save failed", "project", project.Name, "error", err)
			}
		}
	}

	if err := o.reconciler.Reconcile(ctx, project, reconcile.Options{HydrateOnly: true}); err != nil {
		return fmt.Errorf("hydrate %q: %w", project.Name, err)
	}

	w, err := watcher.New(project.LocalRoot, func(ctx context.Context, path string) {
		if err := o.reconciler.Reconcile(ctx, project, reconcile.Options{ChangedFile: path}); err != nil {
			slog.Error("fast path reconcile failed", "project", project.Name, "path", path, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("start watcher %q: %w", project.Name, err)
	}

	g.Go(func() error {
		w.Run(ctx)
		return nil
	})

	o.mu.Lock()
	o.projects[project.Name] = project
	if project.ID > 0 {
		o.byID[project.ID] = project
	}
	o.watchers[project.Name] = w
	o.mu.Unlock()

	return o.reconciler.Reconcile(ctx, project, reconcile.Options{})
}

func (o *Orchestrator) fullPass(ctx context.Context, sanitizedName string) error {
	o.mu.Lock()
	project, ok := o.projects[sanitizedName]
	o.mu.Unlock()
	if !ok {
		return nil
	}
	return o.reconciler.Reconcile(ctx, project, reconcile.Options{})
}

// pollLoop re-discovers projects and runs a full pass for already-watched
// ones every PollIntervalSeconds. A timer, not a ticker, is used so a pass
// that overruns the interval doesn't leave a queued tick waiting behind it.
func (o *Orchestrator) pollLoop(ctx context.Context, g *errgroup.Group) error {
	interval := time.Duration(o.cfg.PollIntervalSeconds) * time.Second
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := o.discoverAndOnboard(ctx, g); err != nil {
				slog.Error("poll loop discovery failed", "error", err)
			}
			timer.Reset(interval)
		}
	}
}

func (o *Orchestrator) stopAllWatchers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for name, w := range o.watchers {
		if err := w.Close(); err != nil {
			slog.Warn("watcher close failed", "project", name, "error", err)
		}
	}
}
