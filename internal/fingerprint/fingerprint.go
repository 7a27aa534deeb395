// Package fingerprint computes content fingerprints for local files and
// persists the sidecar metadata (origin, fingerprint, markedAt) used to
// distinguish an echoed write from a genuine local edit.
package fingerprint

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/filevine-s3-sync/internal/utils"
)

// Fingerprint identifies file content by size and MD5 digest, the same pair
// the reconciler uses to detect an echoed write versus a genuine edit.
type Fingerprint struct {
	Size int64
	MD5  string
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s|%d", f.MD5, f.Size)
}

// Equal reports whether two fingerprints describe identical content.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Size == other.Size && f.MD5 == other.MD5
}

// Of hashes the file at path and returns its fingerprint. Callers with a
// cached (size, modTime) match from a previous scan should skip calling this
// and reuse the prior fingerprint instead, since hashing is the expensive part.
func Of(path string) (Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %q: %w", path, err)
	}

	h := md5.New()
	if _, err := io.Copy(h, file); err != nil {
		return Fingerprint{}, fmt.Errorf("hash %q: %w", path, err)
	}

	return Fingerprint{
		Size: info.Size(),
		MD5:  fmt.Sprintf("%x", h.Sum(nil)),
	}, nil
}

// Sidecar records what the reconciler last wrote to a path: the fingerprint
// it wrote, which side the write came from ("local" for an upload,
// "filevine" for an inbound download), and the wall-clock time of the write.
type Sidecar struct {
	Origin      string      `json:"origin"`
	Fingerprint Fingerprint `json:"fingerprint"`
	MarkedAt    time.Time   `json:"markedAt"`
}

// SidecarStore persists the Sidecar for a project-relative path.
type SidecarStore interface {
	Load(relPath string) (*Sidecar, bool)
	Save(relPath string, s Sidecar) error
	Delete(relPath string) error
}

// DirSidecarStore mirrors each tracked file's metadata into a parallel
// ".sync" directory inside the project root, one JSON file per tracked
// path. This is the portable alternative to NTFS ADS or xattrs. Sidecars are
// keyed by relative path only: a file moved outside the reconciler has no
// sidecar at its new path, and its old sidecar is not re-associated.
type DirSidecarStore struct {
	sidecarRoot string
}

func NewDirSidecarStore(projectRoot string) *DirSidecarStore {
	return &DirSidecarStore{sidecarRoot: filepath.Join(projectRoot, ".sync")}
}

func (s *DirSidecarStore) sidecarPath(relPath string) string {
	return filepath.Join(s.sidecarRoot, filepath.FromSlash(relPath)+".json")
}

func (s *DirSidecarStore) Load(relPath string) (*Sidecar, bool) {
	data, err := os.ReadFile(s.sidecarPath(relPath))
	if err != nil {
		return nil, false
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, false
	}
	return &sc, true
}

func (s *DirSidecarStore) Save(relPath string, sc Sidecar) error {
	path := s.sidecarPath(relPath)
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure sidecar parent: %w", err)
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename sidecar: %w", err)
	}
	return nil
}

func (s *DirSidecarStore) Delete(relPath string) error {
	err := os.Remove(s.sidecarPath(relPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove sidecar: %w", err)
	}
	return nil
}
