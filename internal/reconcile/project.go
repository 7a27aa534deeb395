package reconcile

import (
	"path"
	"strings"

	"github.com/openmined/filevine-s3-sync/internal/pathutil"
)

// Project describes one unit of sync: a sanitized display name, its local
// mirror directory, and the object-store prefix its keys live under.
type Project struct {
	// Name is the sanitized project display name, used both as the local
	// directory name and as two segments of the object key layout.
	Name string

	// ID is the Origin project id once resolved; zero means unresolved.
	ID int

	// LocalRoot is the absolute local mirror directory for this project.
	LocalRoot string

	// objectPrefix is rootPrefix/name/orgSegment/name/ — everything before
	// the project-relative key.
	objectPrefix string
}

// NewProject builds a Project and its object key prefix from the layout
// `<rootPrefix>/<sanitizedProject>/<orgSegment>/<sanitizedProject>/`.
func NewProject(name, localRoot, rootPrefix, orgSegment string) Project {
	sanitized := pathutil.Sanitize(name)
	prefix := strings.Join([]string{
		strings.Trim(rootPrefix, "/"),
		sanitized,
		orgSegment,
		sanitized,
	}, "/") + "/"

	return Project{
		Name:         sanitized,
		LocalRoot:    localRoot,
		objectPrefix: prefix,
	}
}

// ObjectKey builds the full object-store key for a project-relative path.
func (p Project) ObjectKey(relKey string) string {
	return p.objectPrefix + relKey
}

// RelKey strips the project's object prefix from a full object key. ok is
// false if fullKey doesn't belong to this project.
func (p Project) RelKey(fullKey string) (relKey string, ok bool) {
	if !strings.HasPrefix(fullKey, p.objectPrefix) {
		return "", false
	}
	return strings.TrimPrefix(fullKey, p.objectPrefix), true
}

// placeholderKey builds the ".placeholder" object key for a folder's
// project-relative path (possibly the project root, relDir == "").
func placeholderKey(relDir string) string {
	if relDir == "" {
		return ".placeholder"
	}
	return path.Join(relDir, ".placeholder")
}
