package watcher

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which directories are watched and which changed paths count
// toward a rebuild. All decisions are made on the path relative to Root.
type Filter struct {
	Root           string
	IgnoreDirs     []string
	SourcePaths    []string
	ConfigSuffixes []string
	IgnoreGlobs    []string
}

// relative returns the slash separated path of p relative to the root, and
// false when p lies outside it.
func (f *Filter) relative(p string) (string, bool) {
	rel, err := filepath.Rel(f.Root, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}

	return rel, true
}

func (f *Filter) ignoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ignored := range f.IgnoreDirs {
		if name == ignored {
			return true
		}
	}

	return false
}

// IsWatchable reports whether path may be descended into and watched. The
// root is always watchable; below it, any dot-directory or deny-listed
// directory name in the path, or a matching ignore glob, excludes it.
func (f *Filter) IsWatchable(path string) bool {
	rel, ok := f.relative(path)
	if !ok {
		return false
	}
	if rel == "." {
		return true
	}

	for _, segment := range strings.Split(rel, "/") {
		if f.ignoredDir(segment) {
			return false
		}
	}

	for _, pattern := range f.IgnoreGlobs {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
	}

	return true
}

// IsRelevantChange reports whether a change to path should trigger a
// rebuild: the path must be watchable and either sit under one of the source
// paths or carry a build configuration suffix.
func (f *Filter) IsRelevantChange(path string) bool {
	if !f.IsWatchable(path) {
		return false
	}
	rel, _ := f.relative(path)

	for _, src := range f.SourcePaths {
		src = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(src)), "/")
		if rel == src || strings.HasPrefix(rel, src+"/") {
			return true
		}
	}

	for _, suffix := range f.ConfigSuffixes {
		if strings.HasSuffix(rel, suffix) {
			return true
		}
	}

	return false
}
