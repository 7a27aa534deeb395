package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/openmined/filevine-s3-sync/internal/objectstore"
)

// discoverProjectNames lists the distinct project names present under the
// configured S3 root prefix. The object key layout is
// <rootPrefix>/<project>/<orgSegment>/<project>/<relKey>, so the project
// name is always the first path segment after the prefix.
func discoverProjectNames(ctx context.Context, store objectstore.Store, rootPrefix string) ([]string, error) {
	prefix := strings.Trim(rootPrefix, "/") + "/"
	objects, err := store.ListRecursive(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover projects under %q: %w", prefix, err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, prefix)
		segment, _, ok := strings.Cut(rest, "/")
		if !ok || segment == "" {
			continue
		}
		if !seen[segment] {
			seen[segment] = true
			names = append(names, segment)
		}
	}
	return names, nil
}
