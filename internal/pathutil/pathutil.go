// Package pathutil sanitizes project/folder names for filesystem safety and
// recognizes transient or editor scratch files that must never be synced.
package pathutil

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const unnamedFallback = "Unnamed"

var invalidNameChars = strings.NewReplacer(
	"<", "", ">", "", ":", "", "\"", "", "/", "", "\\", "", "|", "", "?", "",
)

// Sanitize strips characters that are unsafe in a filesystem path component,
// collapses whitespace, and trims trailing dots. An empty result becomes
// "Unnamed" so a project is never mapped to an invisible directory.
func Sanitize(name string) string {
	cleaned := invalidNameChars.Replace(name)
	cleaned = stripControlBytes(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimRight(cleaned, ".")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return unnamedFallback
	}
	return cleaned
}

func stripControlBytes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// hexScratchPattern matches editor scratch files like "report.docx.3F2A9B1C" —
// an original filename with a hex-suffixed extension tacked on.
var hexScratchPattern = regexp.MustCompile(`^.*\..*\.[0-9A-Fa-f]{8}$`)

// literalIgnoreSuffixes and literalIgnoreNames are checked before falling
// back to doublestar, since most ignore decisions are cheap literal matches.
var literalIgnoreSuffixes = []string{
	".placeholder", ".tmp", ".part", ".crdownload", ".temp", ".swp", ".swx", ".lnk",
}

var literalIgnoreNames = map[string]bool{
	".DS_Store":             true,
	"Thumbs.db":             true,
	".last_sync_state.json": true,
}

// IsIgnored reports whether basename is a transient or editor scratch file
// that must be excluded from content propagation, placeholder folder
// creation notwithstanding (the reconciler special-cases ".placeholder").
func IsIgnored(basename string) bool {
	if literalIgnoreNames[basename] {
		return true
	}
	for _, suffix := range literalIgnoreSuffixes {
		if strings.HasSuffix(basename, suffix) {
			return true
		}
	}
	if strings.HasPrefix(basename, "~$") {
		return true
	}
	if hexScratchPattern.MatchString(basename) {
		return true
	}
	ok, _ := doublestar.Match("*.*.[0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f][0-9A-Fa-f]", basename)
	return ok
}

// IsPlaceholder reports whether basename names a folder placeholder object.
func IsPlaceholder(basename string) bool {
	return strings.HasSuffix(basename, ".placeholder")
}

// sidecarDirName is the sync package's own metadata directory, rooted inside
// every project's local mirror. It must never be walked or watched as part
// of the project's content, or the sidecars it holds would be scanned as
// ordinary local files and re-propagated.
const sidecarDirName = ".sync"

// IsIgnoredDir reports whether a directory (by basename) must be excluded
// from both the local scan and the filesystem watcher entirely, including
// everything beneath it.
func IsIgnoredDir(basename string) bool {
	return basename == sidecarDirName
}

// LongPath extends local drive-letter Windows paths with the long-path
// prefix so paths beyond MAX_PATH remain addressable. UNC paths and paths
// already carrying the prefix are returned unchanged. On non-Windows
// platforms it is a no-op, since the short-path limit doesn't apply.
func LongPath(p string) string {
	if runtime.GOOS != "windows" {
		return p
	}
	return longPathWindows(p)
}

func longPathWindows(p string) string {
	const prefix = `\\?\`
	const uncPrefix = `\\`
	if strings.HasPrefix(p, prefix) {
		return p
	}
	if strings.HasPrefix(p, uncPrefix) {
		return p
	}
	if len(p) >= 2 && p[1] == ':' {
		return prefix + p
	}
	return p
}
