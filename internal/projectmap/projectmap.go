// Package projectmap persists the project display-name to numeric Origin
// project-id mapping shared by the orchestrator and the webhook router.
package projectmap

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/openmined/filevine-s3-sync/internal/utils"
)

// Map is a thread-safe, disk-backed bidirectional index between a sanitized
// project name and its resolved Origin project id.
type Map struct {
	mu       sync.RWMutex
	path     string
	nameToID map[string]int
	idToName map[int]string
}

// Load reads the project map from path, or starts empty if it doesn't exist
// yet (first run, before any project has been resolved against Origin).
func Load(path string) (*Map, error) {
	m := &Map{
		path:     path,
		nameToID: make(map[string]int),
		idToName: make(map[int]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project map %q: %w", path, err)
	}

	var nameToID map[string]int
	if err := json.Unmarshal(data, &nameToID); err != nil {
		return nil, fmt.Errorf("parse project map %q: %w", path, err)
	}
	for name, id := range nameToID {
		m.nameToID[name] = id
		m.idToName[id] = name
	}
	return m, nil
}

// Resolve returns the cached project id for name, if known.
func (m *Map) Resolve(name string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.nameToID[name]
	return id, ok
}

// NameFor returns the cached project name for id, if known.
func (m *Map) NameFor(id int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.idToName[id]
	return name, ok
}

// Record stores a resolved (name, id) pair and persists the map.
func (m *Map) Record(name string, id int) error {
	m.mu.Lock()
	m.nameToID[name] = id
	m.idToName[id] = name
	data, err := json.MarshalIndent(m.nameToID, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal project map: %w", err)
	}

	if err := utils.EnsureParent(m.path); err != nil {
		return fmt.Errorf("ensure project map dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project map: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("rename project map into place: %w", err)
	}
	return nil
}
