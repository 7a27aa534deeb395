package reconcile

import (
	"path"
	"strings"

	"github.com/openmined/filevine-s3-sync/internal/pathutil"
)

// sortKey orders the union of keys for a full pass: all ".placeholder"
// objects first (so folders exist before files land in them), then by path
// depth ascending, then lexicographically. lowerKey is the case-insensitive
// comparison key; originalKey is whichever case-preserving form a given
// source observed it in.
type sortKey struct {
	lowerKey    string
	originalKey string
	isPlaceholder bool
	depth         int
}

func newSortKey(lowerKey, originalKey string) sortKey {
	return sortKey{
		lowerKey:      lowerKey,
		originalKey:   originalKey,
		isPlaceholder: pathutil.IsPlaceholder(path.Base(lowerKey)),
		depth:         strings.Count(lowerKey, "/"),
	}
}

// less implements the fixed processing order from the full-pass contract.
func less(a, b sortKey) bool {
	if a.isPlaceholder != b.isPlaceholder {
		return a.isPlaceholder
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	return a.lowerKey < b.lowerKey
}
