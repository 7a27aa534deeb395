package reconcile

import (
	"fmt"
	"sync"

	"github.com/openmined/filevine-s3-sync/internal/fingerprint"
	"github.com/openmined/filevine-s3-sync/internal/manifest"
)

// projectState holds everything owned exclusively by one project: its
// manifest, its sidecar store, and the mutex serializing every
// reconciliation (fast-path or full pass) for that project, per the
// per-project mutual-exclusion design note.
type projectState struct {
	mu       sync.Mutex
	manifest *manifest.Manifest
	sidecars fingerprint.SidecarStore
}

// stateRegistry is a map from project name to its projectState, created on
// first use and never removed — a project's lifetime only grows.
type stateRegistry struct {
	mu     sync.Mutex
	states map[string]*projectState
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{states: make(map[string]*projectState)}
}

func (r *stateRegistry) get(project Project) (*projectState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.states[project.Name]; ok {
		return st, nil
	}

	m, err := manifest.Load(project.LocalRoot)
	if err != nil {
		return nil, fmt.Errorf("load manifest for %q: %w", project.Name, err)
	}

	st := &projectState{
		manifest: m,
		sidecars: fingerprint.NewDirSidecarStore(project.LocalRoot),
	}
	r.states[project.Name] = st
	return st, nil
}
