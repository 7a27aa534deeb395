// Package localscan enumerates the files under a project's local mirror
// directory for the reconciler's full pass.
package localscan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/openmined/filevine-s3-sync/internal/pathutil"
)

// Entry describes a single regular file found under a project root.
type Entry struct {
	RelKey       string
	LastModified time.Time
	Size         int64
}

// Scan walks root recursively and returns every non-ignored regular file,
// keyed by its forward-slash relative path. Symlinks are skipped rather than
// followed, since a followed symlink could walk outside the project root.
func Scan(root string) (map[string]Entry, error) {
	entries := make(map[string]Entry)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %q: %w", path, walkErr)
		}
		if d.IsDir() {
			if pathutil.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		base := filepath.Base(path)
		if pathutil.IsIgnored(base) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("rel %q: %w", path, err)
		}
		relKey := filepath.ToSlash(relPath)

		info, err := d.Info()
		if err != nil {
			// Vanished between WalkDir listing the entry and Info(); skip it,
			// the next pass will pick up whatever settled state remains.
			return nil
		}

		entries[relKey] = Entry{
			RelKey:       relKey,
			LastModified: info.ModTime().UTC(),
			Size:         info.Size(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", root, err)
	}

	return entries, nil
}
