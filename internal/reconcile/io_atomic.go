package reconcile

import (
	"fmt"
	"io"
	"os"

	"github.com/openmined/filevine-s3-sync/internal/utils"
)

// writeFileAtomically streams body to a temp file beside path and renames
// it into place, so a reconciler crash mid-download never leaves a
// truncated file for the next pass to mistake for genuine content.
func writeFileAtomically(path string, body io.Reader) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}

	tmp := path + ".downloading"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
